package e2e

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/ptgott/postman/message"
	"github.com/ptgott/postman/postman"
	"github.com/ptgott/postman/smtptest"
	"github.com/ptgott/postman/userconfig"
	"github.com/rs/zerolog"
)

// Payload files written to every test environment, by name
var payloadFiles = map[string][]byte{
	"report.csv": []byte("name,count\nalpha,1\nbeta,2\n"),
	"notes.txt":  []byte("first line\nsecond line\n"),
	"logo.png":   append([]byte("\x89PNG\r\n\x1a\n"), bytes.Repeat([]byte{0, 1, 2, 254, 255}, 40)...),
	"blob.bin":   bytes.Repeat([]byte{0xde, 0xad, 0xbe, 0xef}, 1024),
	"empty.txt":  {},
}

// testEnvironmentConfig exposes options that should be available and
// perhaps changeable when spinning up a test environment. While they
// may not vary between tests, they shouldn't be buried inside
// functions.
type testEnvironmentConfig struct {
	serverOpts smtptest.Options
	// Put a relay that refuses connections ahead of the running one
	deadRelayFirst bool
}

// testEnvironment manages all dependencies required to simulate a "real"
// environment and run the e2e tests. Callers should create this via
// startTestEnvironment.
type testEnvironment struct {
	SMTPServer  smtptest.Server
	relays      []string
	tempDirPath string
}

// startTestEnvironment starts an SMTP server and writes the payload files to
// a temporary directory. Everything is torn down when t ends.
func startTestEnvironment(t *testing.T, c testEnvironmentConfig) (*testEnvironment, error) {
	te := &testEnvironment{
		tempDirPath: t.TempDir(),
	}
	t.Cleanup(te.tearDown)

	for name, b := range payloadFiles {
		if err := os.WriteFile(te.path(name), b, 0o600); err != nil {
			return te, fmt.Errorf("could not write the payload file %v: %w", name, err)
		}
	}

	key, cert, err := smtptest.GenerateTLSFiles(t)
	if err != nil {
		return te, err
	}
	ts, err := smtptest.NewInProcessServer(key, cert, c.serverOpts)
	if err != nil {
		return te, err
	}

	te.SMTPServer = ts

	go ts.Start()

	if c.deadRelayFirst {
		te.relays = append(te.relays, smtptest.RefusingAddress(t))
	}
	te.relays = append(te.relays, ts.Address())

	return te, nil
}

// path returns the location of a payload file
func (te *testEnvironment) path(name string) string {
	return filepath.Join(te.tempDirPath, name)
}

// send writes a config file for opts, resolves it the way the CLI does with
// the given environment, and sends r.
func (te *testEnvironment) send(opts appConfigOptions, env map[string]string, r postman.Request) error {
	if opts.RelayAddresses == nil {
		opts.RelayAddresses = te.relays
	}
	cp := filepath.Join(te.tempDirPath, "config.yaml")
	if err := createAppConfig(cp, opts); err != nil {
		return err
	}

	f, err := os.Open(cp)
	if err != nil {
		return err
	}
	defer f.Close()

	file, err := userconfig.Parse(f)
	if err != nil {
		return err
	}

	m, err := userconfig.Resolve(userconfig.Meta{}, file, func(k string) string { return env[k] })
	if err != nil {
		return err
	}
	ec, err := m.EmailConfig()
	if err != nil {
		return err
	}

	p, err := postman.New(postman.Config{
		Email:             ec,
		MaxAttachmentSize: int64(m.MaxAttachmentSize),
		Assembler: &message.Assembler{
			Now:      time.Now,
			Hostname: func() (string, error) { return "e2e-host", nil },
			Logger:   zerolog.Nop(),
		},
		Logger: zerolog.Nop(),
	})
	if err != nil {
		return err
	}

	r.Sender = m.Sender
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	return p.Send(ctx, r)
}

// tearDown returns the testEnvironment to its state prior to start. The
// temporary directory is removed by the testing package.
func (te *testEnvironment) tearDown() {
	if te.SMTPServer != nil {
		te.SMTPServer.Close()
	}
}
