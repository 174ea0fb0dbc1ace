package email

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"os"
	"strings"
	"time"

	"github.com/emersion/go-sasl"
	"github.com/emersion/go-smtp"
	"github.com/ptgott/postman/mailerr"
	"github.com/ptgott/postman/message"
	"github.com/rs/zerolog"
)

// Credentials authenticate us to a relay.
type Credentials struct {
	Login  string
	Secret string
}

// Timeouts bound each phase of a delivery. A zero value means the default.
type Timeouts struct {
	// Opening the TCP connection to a single relay
	Connect time.Duration
	// Each of the greeting, TLS negotiation, authentication and envelope
	// commands
	Command time.Duration
	// Transmitting the message data
	Submit time.Duration
}

// DefaultTimeouts are used for any zero field of Config.Timeouts.
var DefaultTimeouts = Timeouts{
	Connect: 10 * time.Second,
	Command: 30 * time.Second,
	Submit:  2 * time.Minute,
}

func (t Timeouts) withDefaults() Timeouts {
	if t.Connect == 0 {
		t.Connect = DefaultTimeouts.Connect
	}
	if t.Command == 0 {
		t.Command = DefaultTimeouts.Command
	}
	if t.Submit == 0 {
		t.Submit = DefaultTimeouts.Submit
	}
	return t
}

// Config contains everything a Client needs to deliver mail. Build one with
// userconfig, or directly in tests.
type Config struct {
	// Tried in order until one accepts a connection
	Relays []Relay
	// nil means submissions are unauthenticated
	Credentials *Credentials
	// Needed for relays with self-signed certificates
	SkipCertVerification bool
	Timeouts             Timeouts
	// Sent in EHLO. Defaults to the host name, or "localhost".
	LocalName string
}

// Client delivers Envelopes through the first available relay.
type Client struct {
	relays      []Relay
	credentials *Credentials
	tlsConfig   *tls.Config
	timeouts    Timeouts
	localName   string
	logger      zerolog.Logger

	// Opens connections. A net.Dialer is used if nil. Tests swap this out.
	dial func(ctx context.Context, network, addr string) (net.Conn, error)
}

// NewClient validates c and returns a Client. Returns a configuration
// error if there are no relays or the credentials are incomplete.
func NewClient(c Config, l zerolog.Logger) (*Client, error) {
	if len(c.Relays) == 0 {
		return nil, mailerr.NewConfigurationError("no relay is configured", nil)
	}
	if c.Credentials != nil && (c.Credentials.Login == "" || c.Credentials.Secret == "") {
		return nil, mailerr.NewConfigurationError("credentials need both a login and a secret", nil)
	}

	ln := c.LocalName
	if ln == "" {
		h, err := os.Hostname()
		if err != nil || h == "" {
			h = "localhost"
		}
		ln = h
	}

	t := c.Timeouts.withDefaults()
	d := net.Dialer{Timeout: t.Connect}

	return &Client{
		relays:      append([]Relay(nil), c.Relays...),
		credentials: c.Credentials,
		tlsConfig: &tls.Config{
			InsecureSkipVerify: c.SkipCertVerification,
			MinVersion:         tls.VersionTLS12,
		},
		timeouts:  t,
		localName: ln,
		logger:    l,
		dial:      d.DialContext,
	}, nil
}

// Deliver submits e to the first relay that accepts a connection. Only a
// failure to connect moves on to the next relay. Once a relay has accepted
// the connection, any failure ends the delivery. A nil error means the relay
// accepted the message for every recipient.
func (c *Client) Deliver(ctx context.Context, e *message.Envelope) error {
	conn, relay, err := c.selectRelay(ctx)
	if err != nil {
		return err
	}
	// Closing the connection also releases the TLS session and the SMTP
	// client on top of it.
	defer conn.Close()
	// Deadlines bound each phase, but a cancelled ctx ends the session
	// right away.
	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()

	sc, err := c.negotiate(conn, relay)
	if err != nil {
		return err
	}
	defer sc.Close()

	if err := c.authenticate(conn, sc, relay); err != nil {
		return err
	}

	if err := c.submit(conn, sc, relay, e); err != nil {
		return err
	}

	// The message is already accepted at this point, so a failed QUIT
	// isn't worth reporting.
	conn.SetDeadline(time.Now().Add(c.timeouts.Command))
	if err := sc.Quit(); err != nil {
		c.logger.Debug().Err(err).Str("relay", relay.String()).Msg("QUIT failed after delivery")
	}

	c.logger.Info().
		Str("relay", relay.String()).
		Strs("recipients", e.Recipients).
		Msg("delivered the message")
	return nil
}

// selectRelay returns a connection to the first relay that accepts one.
func (c *Client) selectRelay(ctx context.Context) (net.Conn, Relay, error) {
	var errs []string
	for _, r := range c.relays {
		conn, err := c.dial(ctx, "tcp", r.Address())
		if err != nil {
			c.logger.Error().Err(err).Str("relay", r.String()).Msg("can't connect to relay")
			errs = append(errs, err.Error())
			continue
		}
		c.logger.Debug().Str("relay", r.String()).Msg("connected to relay")
		return conn, r, nil
	}
	return nil, Relay{}, mailerr.NewNoRelayError(
		"every relay refused the connection",
		errors.New(strings.Join(errs, "; ")),
	)
}

// negotiate reads the greeting, says hello, and upgrades the connection to
// TLS. The client says hello again over TLS as part of the upgrade.
func (c *Client) negotiate(conn net.Conn, r Relay) (*smtp.Client, error) {
	conn.SetDeadline(time.Now().Add(c.timeouts.Command))

	sc, err := smtp.NewClient(conn, r.Host)
	if err != nil {
		return nil, mailerr.NewNegotiationError(
			fmt.Sprintf("no greeting from %v", r),
			err,
		)
	}
	if err := sc.Hello(c.localName); err != nil {
		sc.Close()
		return nil, mailerr.NewNegotiationError(
			fmt.Sprintf("%v rejected the greeting", r),
			err,
		)
	}
	if ok, _ := sc.Extension("STARTTLS"); !ok {
		sc.Close()
		return nil, mailerr.NewNegotiationError(
			fmt.Sprintf("%v does not support STARTTLS", r),
			nil,
		)
	}

	tc := c.tlsConfig.Clone()
	tc.ServerName = r.Host
	if err := sc.StartTLS(tc); err != nil {
		sc.Close()
		return nil, mailerr.NewNegotiationError(
			fmt.Sprintf("can't negotiate TLS with %v", r),
			err,
		)
	}
	c.logger.Debug().Str("relay", r.String()).Msg("negotiated TLS")
	return sc, nil
}

// authenticate logs in if we have credentials. The client aborts the
// session when the relay rejects a login, so a rejection is fatal.
func (c *Client) authenticate(conn net.Conn, sc *smtp.Client, r Relay) error {
	if c.credentials == nil {
		c.logger.Debug().Str("relay", r.String()).Msg("no credentials, submitting unauthenticated")
		return nil
	}
	conn.SetDeadline(time.Now().Add(c.timeouts.Command))

	err := sc.Auth(c.saslClient(sc))
	if err == nil {
		c.logger.Debug().Str("relay", r.String()).Str("login", c.credentials.Login).Msg("authenticated")
		return nil
	}

	c.logger.WithLevel(zerolog.FatalLevel).
		Err(err).
		Str("relay", r.String()).
		Str("login", c.credentials.Login).
		Msg("the relay rejected our credentials")
	return mailerr.NewAuthenticationError(
		fmt.Sprintf("%v rejected the login %q", r, c.credentials.Login),
		err,
	)
}

// saslClient prefers PLAIN, falling back to LOGIN when the relay only
// advertises that.
func (c *Client) saslClient(sc *smtp.Client) sasl.Client {
	_, mechs := sc.Extension("AUTH")
	if mechanism(mechs) == sasl.Login {
		return sasl.NewLoginClient(c.credentials.Login, c.credentials.Secret)
	}
	return sasl.NewPlainClient("", c.credentials.Login, c.credentials.Secret)
}

// mechanism picks a SASL mechanism from the relay's AUTH extension
// parameters. PLAIN wins wherever it appears in the list. Relays that
// advertise neither get PLAIN too.
func mechanism(advertised string) string {
	login := false
	for _, m := range strings.Fields(strings.ToUpper(advertised)) {
		switch m {
		case sasl.Plain:
			return sasl.Plain
		case sasl.Login:
			login = true
		}
	}
	if login {
		return sasl.Login
	}
	return sasl.Plain
}

// submit sends the envelope sender, the recipients and the message data.
func (c *Client) submit(conn net.Conn, sc *smtp.Client, r Relay, e *message.Envelope) error {
	conn.SetDeadline(time.Now().Add(c.timeouts.Command))

	if err := sc.Mail(e.Sender, nil); err != nil {
		return mailerr.NewSenderRefusedError(
			fmt.Sprintf("%v refused the sender %v", r, e.Sender),
			err,
		)
	}
	for _, rcpt := range e.Recipients {
		if err := sc.Rcpt(rcpt); err != nil {
			return mailerr.NewSenderRefusedError(
				fmt.Sprintf("%v refused the recipient %v", r, rcpt),
				err,
			)
		}
	}

	conn.SetDeadline(time.Now().Add(c.timeouts.Submit))
	w, err := sc.Data()
	if err != nil {
		return mailerr.NewSenderRefusedError(
			fmt.Sprintf("%v refused the message data", r),
			err,
		)
	}
	if _, err := e.WriteTo(w); err != nil {
		w.Close()
		return mailerr.NewSenderRefusedError(
			fmt.Sprintf("can't transmit the message to %v", r),
			err,
		)
	}
	if err := w.Close(); err != nil {
		return mailerr.NewSenderRefusedError(
			fmt.Sprintf("%v refused the message", r),
			err,
		)
	}
	return nil
}
