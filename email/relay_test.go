package email

import (
	"testing"
)

func TestParseRelay(t *testing.T) {
	testCases := []struct {
		description   string
		input         string
		expected      Relay
		shouldBeError bool
	}{
		{
			description: "host and port",
			input:       "mail.example.com:587",
			expected:    Relay{Host: "mail.example.com", Port: 587},
		},
		{
			description: "smtp scheme",
			input:       "smtp://0.0.0.0:123",
			expected:    Relay{Host: "0.0.0.0", Port: 123},
		},
		{
			description: "ipv6",
			input:       "[::1]:25",
			expected:    Relay{Host: "::1", Port: 25},
		},
		{
			description: "surrounding whitespace",
			input:       " 127.0.0.1:25 ",
			expected:    Relay{Host: "127.0.0.1", Port: 25},
		},
		{
			description:   "wrong scheme",
			input:         "https://0.0.0.0:123",
			shouldBeError: true,
		},
		{
			description:   "no port",
			input:         "smtp://0.0.0.0",
			shouldBeError: true,
		},
		{
			description:   "port out of range",
			input:         "0.0.0.0:70000",
			shouldBeError: true,
		},
		{
			description:   "no host",
			input:         ":25",
			shouldBeError: true,
		},
		{
			description:   "empty",
			input:         "",
			shouldBeError: true,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.description, func(t *testing.T) {
			r, err := ParseRelay(tc.input)
			if (err != nil) != tc.shouldBeError {
				t.Fatalf(
					"%v: unexpected error status--wanted %v but got %v with error %v",
					tc.description,
					tc.shouldBeError,
					err != nil,
					err,
				)
			}
			if r != tc.expected {
				t.Errorf("expected %+v but got %+v", tc.expected, r)
			}
		})
	}
}

func TestParseRelays(t *testing.T) {
	rs, err := ParseRelays([]string{"a.example.com:25", "b.example.com:587"})
	if err != nil {
		t.Fatal(err)
	}
	if len(rs) != 2 || rs[0].Host != "a.example.com" || rs[1].Port != 587 {
		t.Errorf("unexpected relays: %+v", rs)
	}

	if _, err := ParseRelays([]string{"a.example.com:25", "nope"}); err == nil {
		t.Error("expected an error for a relay without a port")
	}
}
