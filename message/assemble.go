package message

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/ptgott/postman/html"
	"github.com/rs/zerolog"
)

const (
	noSubject      = "No subject"
	emptyBody      = "Empty"
	unknownHost    = "Unknown"
	subjectTimeFmt = "20060102-150405"
)

// Draft contains everything the caller decides about a message. Body is
// HTML; an empty Body means there is none.
type Draft struct {
	Sender     string
	Recipients []string
	Subject    string
	Body       string
	// Parts produced by the payload classifier, in the caller's order
	Parts     []Part
	Important bool
}

// Assembler builds Envelopes. The zero value is usable and reads the
// clock and host name from the system.
type Assembler struct {
	// Now returns the current time. time.Now is used if nil.
	Now func() time.Time
	// Hostname returns the sending host's name. os.Hostname is used if nil.
	Hostname func() (string, error)
	Logger   zerolog.Logger
}

// NewAssembler returns an Assembler that logs to l.
func NewAssembler(l zerolog.Logger) *Assembler {
	return &Assembler{Logger: l}
}

func (a *Assembler) now() time.Time {
	if a.Now == nil {
		return time.Now()
	}
	return a.Now()
}

// host returns the sending host's name, or "Unknown" if we can't find it.
func (a *Assembler) host() string {
	f := a.Hostname
	if f == nil {
		f = os.Hostname
	}
	h, err := f()
	if err != nil || h == "" {
		a.Logger.Debug().Err(err).Msg("can't determine the host name")
		return unknownHost
	}
	return h
}

// DecorateSubject prefixes subject with a timestamp and the host name. An
// empty subject is replaced with "No subject".
func DecorateSubject(subject string, t time.Time, host string) string {
	if subject == "" {
		subject = noSubject
	}
	return fmt.Sprintf("[%v][%v] %v", t.Format(subjectTimeFmt), host, subject)
}

// Assemble builds an Envelope from d. Inline parts come first, then the
// body, then attachments. Relative order within inline parts and within
// attachments is preserved.
func (a *Assembler) Assemble(d Draft) (*Envelope, error) {
	if d.Sender == "" {
		return nil, fmt.Errorf("a message needs a sender")
	}
	if len(d.Recipients) == 0 {
		return nil, fmt.Errorf("a message needs at least one recipient")
	}

	t := a.now()
	host := a.host()
	subject := DecorateSubject(d.Subject, t, host)

	e := &Envelope{
		Sender:     d.Sender,
		Recipients: append([]string(nil), d.Recipients...),
		Subject:    subject,
	}
	e.Headers = []Header{
		{Key: "Subject", Value: subject},
		{Key: "From", Value: d.Sender},
		{Key: "To", Value: strings.Join(d.Recipients, ", ")},
		{Key: "Date", Value: t.Format(time.RFC1123Z)},
		{Key: "X-Generated-By", Value: host},
	}
	if d.Important {
		e.Headers = append(e.Headers,
			Header{Key: "X-Priority", Value: "1"},
			Header{Key: "X-MSMail-Priority", Value: "High"},
		)
	}
	e.Headers = append(e.Headers,
		Header{Key: "Message-Id", Value: fmt.Sprintf("<%v@%v>", uuid.New(), host)},
		Header{Key: "Mime-Version", Value: "1.0"},
	)

	var inline, attached []Part
	for _, p := range d.Parts {
		if p.IsInline() {
			inline = append(inline, p)
		} else {
			attached = append(attached, p)
		}
	}

	var body Part
	if d.Body != "" {
		body = Text([]byte(d.Body), "html", "utf-8")
		a.checkContentIDs(d.Body, inline)
	} else {
		body = Text([]byte(emptyBody), "plain", "utf-8")
	}

	e.Parts = make([]Part, 0, len(d.Parts)+1)
	e.Parts = append(e.Parts, inline...)
	e.Parts = append(e.Parts, body)
	e.Parts = append(e.Parts, attached...)

	a.Logger.Debug().
		Str("subject", subject).
		Int("recipients", len(e.Recipients)).
		Int("parts", len(e.Parts)).
		Msg("assembled the message")

	return e, nil
}

// checkContentIDs warns about cid: references in the body that no inline
// part satisfies. Mail clients show these as broken images.
func (a *Assembler) checkContentIDs(body string, inline []Part) {
	refs, err := html.ContentIDs(body)
	if err != nil {
		a.Logger.Debug().Err(err).Msg("can't parse the body for content ID references")
		return
	}
	have := make(map[string]struct{}, len(inline))
	for _, p := range inline {
		have[p.ContentID] = struct{}{}
	}
	for _, r := range refs {
		if _, ok := have[r]; !ok {
			a.Logger.Warn().Str("cid", r).Msg("the body references an image that isn't embedded")
		}
	}
}
