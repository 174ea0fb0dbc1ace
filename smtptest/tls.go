package smtptest

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/flashmob/go-guerrilla/tests/testcert"
)

// GenerateTLSFiles writes a TLS key and certificate to a temporary test
// directory that is removed after the test suite runs. It returns the file
// paths of the key and certificate. The certificate is a root cert.
func GenerateTLSFiles(t *testing.T) (keyPath string, certPath string, err error) {
	host := "127.0.0.1"
	d := t.TempDir() + string(os.PathSeparator)
	err = testcert.GenerateCert(
		host,
		"",                         // defaults to now
		time.Duration(1)*time.Hour, // the test suite won't run for this long
		true,                       // is a CA cert
		2048,                       // usually seen in online tutorials
		"",                         // using the default ecdsa curve,
		d,
	)

	if err != nil {
		return
	}

	// These path names are hardcoded into testcert.GenerateCert
	keyPath = filepath.Join(d, host+".key.pem")
	certPath = filepath.Join(d, host+".cert.pem")

	return
}

// StartServer generates TLS files, starts an InProcessServer with opts and
// stops it when the test ends.
func StartServer(t *testing.T, opts Options) *InProcessServer {
	t.Helper()
	k, c, err := GenerateTLSFiles(t)
	if err != nil {
		t.Fatal(err)
	}
	srv, err := NewInProcessServer(k, c, opts)
	if err != nil {
		t.Fatal(err)
	}
	go srv.Start()
	t.Cleanup(srv.Close)
	return srv
}

// RefusingAddress returns a local address that refuses connections.
func RefusingAddress(t *testing.T) string {
	t.Helper()
	srv, err := NewInProcessServer("", "", Options{DisableTLS: true})
	if err != nil {
		t.Fatal(err)
	}
	addr := srv.Address()
	// Nothing is serving, so closing the listener frees the port and any
	// dial to it is refused.
	srv.listener.Close()
	return addr
}
