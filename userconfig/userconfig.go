package userconfig

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/alecthomas/units"
	"github.com/ptgott/postman/address"
	"github.com/ptgott/postman/email"
	"github.com/ptgott/postman/mailerr"

	yaml "gopkg.in/yaml.v2"
)

// DefaultSender is used when no sender is configured anywhere.
const DefaultSender = "noresponse@postman.org"

// Environment variables consulted when neither flags nor the config file
// say otherwise
const (
	EnvServer   = "SMTP_SERVER"
	EnvLogin    = "SMTP_LOGIN"
	EnvPassword = "SMTP_PASS"
)

// Meta represents all current config options that the application can use
// for delivery. Not meant to be used directly for sending email without
// calling CheckAndSetDefaults.
type Meta struct {
	Sender               string   `yaml:"sender"`
	Relays               []string `yaml:"relays"`
	Login                string   `yaml:"login"`
	Password             string   `yaml:"password"`
	VerifyDomains        bool     `yaml:"verifyDomains"`
	SkipCertVerification bool     `yaml:"skipCertVerification"`
	MaxAttachmentSize    ByteSize `yaml:"maxAttachmentSize"`
	Timeouts             Timeouts `yaml:"timeouts"`
}

// ByteSize is a size in bytes that users write as, e.g., "25MiB".
type ByteSize int64

// UnmarshalYAML parses a human-readable size.
func (b *ByteSize) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var s string
	if err := unmarshal(&s); err != nil {
		return fmt.Errorf("can't parse the size: %v", err)
	}
	n, err := ParseByteSize(s)
	if err != nil {
		return err
	}
	*b = n
	return nil
}

// ParseByteSize parses sizes such as "25MiB" or "512KB". Units are powers
// of two either way.
func ParseByteSize(s string) (ByteSize, error) {
	n, err := units.ParseBase2Bytes(strings.TrimSpace(s))
	if err != nil {
		return 0, fmt.Errorf("can't parse %q as a size: %v", s, err)
	}
	return ByteSize(n), nil
}

// Timeouts bound each phase of a delivery. Zero values get defaults.
type Timeouts struct {
	Connect time.Duration
	Command time.Duration
	Submit  time.Duration
}

// UnmarshalYAML parses a user-provided YAML configuration, returning any
// parsing errors.
func (t *Timeouts) UnmarshalYAML(unmarshal func(interface{}) error) error {
	v := make(map[string]string)
	err := unmarshal(&v)

	if err != nil {
		return fmt.Errorf("can't parse the timeouts: %v", err)
	}

	for k, dst := range map[string]*time.Duration{
		"connect": &t.Connect,
		"command": &t.Command,
		"submit":  &t.Submit,
	} {
		d, ok := v[k]
		if !ok {
			continue
		}
		pd, err := time.ParseDuration(d)
		if err != nil {
			return fmt.Errorf(
				"can't parse the %v timeout as a duration: %v",
				k,
				err,
			)
		}
		if pd < 0 {
			return fmt.Errorf("the %v timeout can't be negative", k)
		}
		*dst = pd
	}

	return nil
}

// Parse reads a YAML configuration file. The Reader r can be either JSON or
// YAML.
func Parse(r io.Reader) (*Meta, error) {
	var m Meta
	err := yaml.NewDecoder(r).Decode(&m)
	if errors.Is(err, io.EOF) {
		// An empty file configures nothing
		return &m, nil
	}
	if err != nil {
		return &Meta{}, fmt.Errorf("can't read the config file as YAML: %v", err)
	}
	return &m, nil
}

// FromEnv returns the settings found in the environment. getenv is
// usually os.Getenv.
func FromEnv(getenv func(string) string) Meta {
	var m Meta
	if s := strings.TrimSpace(getenv(EnvServer)); s != "" {
		m.Relays = []string{s}
	}
	m.Login = getenv(EnvLogin)
	m.Password = getenv(EnvPassword)
	return m
}

// Merge returns a copy of m with any unset option taken from fallback.
// Credentials are merged as a pair, so a login from one source is never
// combined with a password from another.
func (m Meta) Merge(fallback Meta) Meta {
	if m.Sender == "" {
		m.Sender = fallback.Sender
	}
	if len(m.Relays) == 0 {
		m.Relays = fallback.Relays
	}
	if m.Login == "" && m.Password == "" {
		m.Login = fallback.Login
		m.Password = fallback.Password
	}
	m.VerifyDomains = m.VerifyDomains || fallback.VerifyDomains
	m.SkipCertVerification = m.SkipCertVerification || fallback.SkipCertVerification
	if m.MaxAttachmentSize == 0 {
		m.MaxAttachmentSize = fallback.MaxAttachmentSize
	}
	if m.Timeouts.Connect == 0 {
		m.Timeouts.Connect = fallback.Timeouts.Connect
	}
	if m.Timeouts.Command == 0 {
		m.Timeouts.Command = fallback.Timeouts.Command
	}
	if m.Timeouts.Submit == 0 {
		m.Timeouts.Submit = fallback.Timeouts.Submit
	}
	return m
}

// CheckAndSetDefaults validates m and either returns a copy of m with
// default settings applied or returns a configuration error.
func (m *Meta) CheckAndSetDefaults() (Meta, error) {
	c, err := m.CheckWithoutRelays()
	if err != nil {
		return Meta{}, err
	}
	c.Relays = append([]string(nil), m.Relays...)

	if len(c.Relays) == 0 {
		return Meta{}, mailerr.NewConfigurationError(
			fmt.Sprintf("no relay is configured and %v is not set", EnvServer),
			nil,
		)
	}
	if _, err := email.ParseRelays(c.Relays); err != nil {
		return Meta{}, mailerr.NewConfigurationError("a relay address is invalid", err)
	}

	return c, nil
}

// CheckWithoutRelays is CheckAndSetDefaults for messages that are written
// out instead of delivered. Relays are neither required nor parsed, and the
// returned copy has none.
func (m *Meta) CheckWithoutRelays() (Meta, error) {
	c := *m
	c.Relays = nil

	if c.Sender == "" {
		c.Sender = DefaultSender
	}
	if !address.IsValid(c.Sender) {
		return Meta{}, mailerr.NewConfigurationError(
			fmt.Sprintf("the sender %q is not a valid address", c.Sender),
			nil,
		)
	}

	if (c.Login == "") != (c.Password == "") {
		return Meta{}, mailerr.NewConfigurationError(
			"a login and a password must be configured together",
			nil,
		)
	}

	if c.MaxAttachmentSize < 0 {
		return Meta{}, mailerr.NewConfigurationError("the maximum attachment size can't be negative", nil)
	}

	return c, nil
}

func merge(explicit Meta, file *Meta, getenv func(string) string) Meta {
	m := explicit
	if file != nil {
		m = m.Merge(*file)
	}
	return m.Merge(FromEnv(getenv))
}

// Resolve merges explicit settings (usually from flags) over the config
// file (which may be nil) over the environment, then validates the result.
func Resolve(explicit Meta, file *Meta, getenv func(string) string) (Meta, error) {
	m := merge(explicit, file, getenv)
	return m.CheckAndSetDefaults()
}

// ResolveWithoutRelays is Resolve for messages that won't be delivered.
func ResolveWithoutRelays(explicit Meta, file *Meta, getenv func(string) string) (Meta, error) {
	m := merge(explicit, file, getenv)
	return m.CheckWithoutRelays()
}

// EmailConfig returns the delivery settings in m. Call CheckAndSetDefaults
// first.
func (m *Meta) EmailConfig() (email.Config, error) {
	rs, err := email.ParseRelays(m.Relays)
	if err != nil {
		return email.Config{}, mailerr.NewConfigurationError("a relay address is invalid", err)
	}
	c := email.Config{
		Relays:               rs,
		SkipCertVerification: m.SkipCertVerification,
		Timeouts: email.Timeouts{
			Connect: m.Timeouts.Connect,
			Command: m.Timeouts.Command,
			Submit:  m.Timeouts.Submit,
		},
	}
	if m.Login != "" {
		c.Credentials = &email.Credentials{
			Login:  m.Login,
			Secret: m.Password,
		}
	}
	return c, nil
}
