package postman

import (
	"context"
	"io"

	"github.com/ptgott/postman/address"
	"github.com/ptgott/postman/email"
	"github.com/ptgott/postman/message"
	"github.com/ptgott/postman/payload"
	"github.com/rs/zerolog"
)

// Request is a single message to send. Body is HTML and may be empty.
// Attachments and Embeds are file paths.
type Request struct {
	Sender      string
	Recipients  []string
	Subject     string
	Body        string
	Attachments []string
	Embeds      []string
	Important   bool
}

// Config wires the pipeline's collaborators together.
type Config struct {
	Email email.Config
	// Verifies recipient domains. nil disables the check.
	Checker address.DomainChecker
	// Files larger than this are left out. Zero means no limit.
	MaxAttachmentSize int64
	// If set, the serialized message is written here instead of being
	// delivered. Intended for the -noemail flag.
	OutputWr io.Writer
	// Builds envelopes. A default Assembler is used if nil.
	Assembler *message.Assembler
	Logger    zerolog.Logger
}

// Postman validates, assembles and delivers messages. Each call to Send is
// independent of the others.
type Postman struct {
	validator *address.Validator
	assembler *message.Assembler
	client    *email.Client
	maxSize   int64
	outwr     io.Writer
	logger    zerolog.Logger
}

// New returns a Postman for c. Returns a configuration error if c can't
// deliver mail, unless c.OutputWr is set.
func New(c Config) (*Postman, error) {
	p := &Postman{
		validator: address.NewValidator(c.Checker, c.Logger),
		assembler: c.Assembler,
		maxSize:   c.MaxAttachmentSize,
		outwr:     c.OutputWr,
		logger:    c.Logger,
	}
	if p.assembler == nil {
		p.assembler = message.NewAssembler(c.Logger)
	}

	if c.OutputWr == nil {
		cl, err := email.NewClient(c.Email, c.Logger)
		if err != nil {
			return nil, err
		}
		p.client = cl
	}
	return p, nil
}

// Send runs one request through the pipeline: recipients are validated,
// files are classified, the message is assembled and then delivered (or
// written to the configured output). Files that can't be used are left
// out with a warning. Any other problem aborts the send and is returned.
func (p *Postman) Send(ctx context.Context, r Request) error {
	rs, err := p.validator.Validate(r.Recipients)
	if err != nil {
		return err
	}
	p.logger.Info().Strs("recipients", rs).Msg("validated recipients")

	cl := payload.NewClassifier(r.Body, p.maxSize, p.logger)
	specs := append(payload.Embeds(r.Embeds...), payload.Attachments(r.Attachments...)...)
	parts := cl.ClassifyAll(specs)

	e, err := p.assembler.Assemble(message.Draft{
		Sender:     r.Sender,
		Recipients: rs,
		Subject:    r.Subject,
		Body:       r.Body,
		Parts:      parts,
		Important:  r.Important,
	})
	if err != nil {
		return err
	}

	if p.outwr != nil {
		if _, err := e.WriteTo(p.outwr); err != nil {
			p.logger.Error().Err(err).Msg("cannot write the message output")
			return err
		}
		return nil
	}

	p.logger.Info().Str("subject", e.Subject).Msg("attempting to send an email")
	return p.client.Deliver(ctx, e)
}
