package email

import (
	"fmt"
	"net"
	"net/url"
	"regexp"
	"strconv"
	"strings"
)

const smtpScheme string = "smtp://"

var schemePattern = regexp.MustCompile(`^[a-zA-Z][a-zA-Z0-9+.-]*://`)

// Relay is a host:port that accepts mail submissions.
type Relay struct {
	Host string
	Port int
}

// Address returns r in host:port form, suitable for dialing.
func (r Relay) Address() string {
	return net.JoinHostPort(r.Host, strconv.Itoa(r.Port))
}

func (r Relay) String() string {
	return r.Address()
}

// ParseRelay parses a relay address such as "mail.example.com:587". The
// smtp:// scheme is optional, and no other scheme is accepted.
func ParseRelay(s string) (Relay, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Relay{}, fmt.Errorf("the relay address is empty")
	}

	// Don't require the user to include a scheme. If we can't
	// find one, use one for SMTP.
	ra := s
	if !schemePattern.MatchString(s) {
		ra = smtpScheme + s
	}
	if !strings.HasPrefix(strings.ToLower(ra), smtpScheme) {
		return Relay{}, fmt.Errorf("relay address %q must use the smtp scheme or none", s)
	}

	u, err := url.Parse(ra)
	if err != nil {
		return Relay{}, fmt.Errorf("can't parse relay address %q: %v", s, err)
	}
	if u.Hostname() == "" {
		return Relay{}, fmt.Errorf("relay address %q has no host", s)
	}
	if u.Port() == "" {
		return Relay{}, fmt.Errorf("relay address %q has no port", s)
	}

	p, err := strconv.Atoi(u.Port())
	if err != nil || p < 1 || p > 65535 {
		return Relay{}, fmt.Errorf("relay address %q has an invalid port", s)
	}

	return Relay{
		Host: u.Hostname(),
		Port: p,
	}, nil
}

// ParseRelays parses each of ss in order.
func ParseRelays(ss []string) ([]Relay, error) {
	rs := make([]Relay, 0, len(ss))
	for _, s := range ss {
		r, err := ParseRelay(s)
		if err != nil {
			return nil, err
		}
		rs = append(rs, r)
	}
	return rs, nil
}
