package postman

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/ptgott/postman/email"
	"github.com/ptgott/postman/mailerr"
	"github.com/ptgott/postman/message"
	"github.com/ptgott/postman/smtptest"
	"github.com/ptgott/postman/userconfig"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testAssembler() *message.Assembler {
	return &message.Assembler{
		Now:      func() time.Time { return time.Date(2024, 1, 2, 3, 4, 5, 0, time.Local) },
		Hostname: func() (string, error) { return "sender-host", nil },
		Logger:   zerolog.Nop(),
	}
}

// An invalid recipient is dropped, an empty subject gets a placeholder,
// and the message goes out over the single relay without credentials.
func TestSendDropsInvalidRecipients(t *testing.T) {
	srv := smtptest.StartServer(t, smtptest.Options{})
	relay, err := email.ParseRelay(srv.Address())
	require.NoError(t, err)

	p, err := New(Config{
		Email: email.Config{
			Relays:               []email.Relay{relay},
			SkipCertVerification: true,
		},
		Assembler: testAssembler(),
		Logger:    zerolog.Nop(),
	})
	require.NoError(t, err)

	err = p.Send(context.Background(), Request{
		Sender:     "a@x.com",
		Recipients: []string{"ok@good.com", "bad"},
		Subject:    "",
	})
	require.NoError(t, err)

	msgs := srv.Messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, "a@x.com", msgs[0].From)
	assert.Equal(t, []string{"ok@good.com"}, msgs[0].To)

	h, parts, err := smtptest.ParseEmail(msgs[0].Body)
	require.NoError(t, err)
	assert.Equal(t, "[20240102-030405][sender-host] No subject", h.Get("Subject"))
	assert.Equal(t, "ok@good.com", h.Get("To"))
	require.Len(t, parts, 1)
	assert.Equal(t, "text/plain", parts[0].MediaType)
	assert.Equal(t, "Empty", string(parts[0].Body))
}

// With no relay configured and nothing in the environment, we fail before
// touching the network.
func TestSendWithoutRelay(t *testing.T) {
	_, err := userconfig.Resolve(userconfig.Meta{}, nil, func(string) string { return "" })
	assert.Equal(t, mailerr.REASON_CONFIGURATION, mailerr.ReasonOf(err))

	_, err = New(Config{Logger: zerolog.Nop()})
	assert.Equal(t, mailerr.REASON_CONFIGURATION, mailerr.ReasonOf(err))
}

func TestSendNoValidRecipients(t *testing.T) {
	var out bytes.Buffer
	p, err := New(Config{OutputWr: &out, Logger: zerolog.Nop()})
	require.NoError(t, err)

	err = p.Send(context.Background(), Request{
		Sender:     "a@x.com",
		Recipients: []string{"bad", "worse@"},
	})
	assert.Equal(t, mailerr.REASON_NO_VALID_RECIPIENTS, mailerr.ReasonOf(err))
	assert.Zero(t, out.Len())
}

func TestSendWritesOutputInsteadOfDelivering(t *testing.T) {
	var out bytes.Buffer
	p, err := New(Config{
		OutputWr:  &out,
		Assembler: testAssembler(),
		Logger:    zerolog.Nop(),
	})
	require.NoError(t, err)

	err = p.Send(context.Background(), Request{
		Sender:     "a@x.com",
		Recipients: []string{"you@example.com"},
		Subject:    "Dry run",
		Body:       "<p>Nothing to see</p>",
		Important:  true,
	})
	require.NoError(t, err)

	h, parts, err := smtptest.ParseEmail(out.String())
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(h.Get("Subject"), "Dry run"))
	assert.Equal(t, "1", h.Get("X-Priority"))
	require.Len(t, parts, 1)
	assert.Equal(t, "text/html", parts[0].MediaType)
}
