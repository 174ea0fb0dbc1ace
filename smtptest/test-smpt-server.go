package smtptest

var _ Server = &InProcessServer{}

// Server is a relay that tests can send mail through and then inspect.
// It's started at the beginning of a test and closed right after.
type Server interface {
	// Start serves SMTP until Close is called. Blocking, so callers run it
	// in a goroutine.
	Start() error

	// Close stops the server. Safe to defer. A Server can't be restarted.
	Close()

	// RetrieveEmails returns the raw messages received at or after epoch
	// nanoseconds t, in the order they arrived.
	RetrieveEmails(t int64) ([]string, error)

	// Address returns the host:port clients should dial.
	Address() string
}
