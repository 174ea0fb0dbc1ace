package payload

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	units "github.com/docker/go-units"
	"github.com/ptgott/postman/message"
	"github.com/rs/zerolog"
)

// Role says how a file should appear in a message.
type Role int

const (
	// RoleAttachment offers the file as a download.
	RoleAttachment Role = iota
	// RoleEmbed shows the file inside the body, where the body references
	// it as cid:<file base name>.
	RoleEmbed
)

func (r Role) String() string {
	if r == RoleEmbed {
		return "embed"
	}
	return "attachment"
}

// Spec points at one file to include in a message.
type Spec struct {
	Path string
	Role Role
}

// Attachments returns a Spec with RoleAttachment for each path.
func Attachments(paths ...string) []Spec {
	return specs(paths, RoleAttachment)
}

// Embeds returns a Spec with RoleEmbed for each path.
func Embeds(paths ...string) []Spec {
	return specs(paths, RoleEmbed)
}

func specs(paths []string, r Role) []Spec {
	s := make([]Spec, len(paths))
	for n, p := range paths {
		s[n] = Spec{Path: p, Role: r}
	}
	return s
}

// ErrSkipped is wrapped by every error Classify returns. A skipped file is
// left out of the message; it never stops the send.
var ErrSkipped = errors.New("skipping file")

func skip(format string, a ...interface{}) error {
	return fmt.Errorf("%w: %v", ErrSkipped, fmt.Sprintf(format, a...))
}

// Classifier turns Specs into message parts.
type Classifier struct {
	// The HTML body of the message, searched for cid: references when
	// embedding
	Body string
	// Files larger than this are skipped. Zero means no limit.
	MaxSize int64
	Logger  zerolog.Logger
}

// NewClassifier returns a Classifier for a message with the given body.
func NewClassifier(body string, maxSize int64, l zerolog.Logger) *Classifier {
	return &Classifier{
		Body:    body,
		MaxSize: maxSize,
		Logger:  l,
	}
}

// Classify reads the file at s.Path and returns the part it should become.
// Any error wraps ErrSkipped and explains why the file was left out.
func (c *Classifier) Classify(s Spec) (message.Part, error) {
	fi, err := os.Stat(s.Path)
	if err != nil {
		return message.Part{}, skip("can't stat %v: %v", s.Path, err)
	}
	if !fi.Mode().IsRegular() {
		return message.Part{}, skip("%v is not a regular file", s.Path)
	}
	if fi.Size() == 0 {
		return message.Part{}, skip("%v is empty", s.Path)
	}
	if c.MaxSize > 0 && fi.Size() > c.MaxSize {
		return message.Part{}, skip(
			"%v is %v, larger than the %v limit",
			s.Path,
			units.BytesSize(float64(fi.Size())),
			units.BytesSize(float64(c.MaxSize)),
		)
	}

	name := filepath.Base(s.Path)

	if s.Role == RoleEmbed {
		return c.embed(s.Path, name)
	}
	return c.attach(s.Path, name)
}

// embed builds an inline image whose content ID is the file's base name.
func (c *Classifier) embed(path, name string) (message.Part, error) {
	if !strings.Contains(c.Body, "cid:"+name) {
		return message.Part{}, skip("the body never references cid:%v", name)
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return message.Part{}, skip("can't read %v: %v", path, err)
	}
	p := message.Image(b, guessMediaType(name), name, "")
	return p.WithDisposition(message.DispositionInline, name), nil
}

func (c *Classifier) attach(path, name string) (message.Part, error) {
	mt := guessMediaType(name)
	b, err := os.ReadFile(path)
	if err != nil {
		return message.Part{}, skip("can't read %v: %v", path, err)
	}

	var p message.Part
	switch major, minor, _ := strings.Cut(mt, "/"); major {
	case "text":
		if !sniffTabular(b) {
			b = normalizeLineEndings(b)
		}
		p = message.Text(b, minor, "utf-8")
	case "image":
		p = message.Image(b, mt, "", name)
	default:
		p = message.Binary(b, mt, name)
	}
	return p.WithDisposition(message.DispositionAttachment, name), nil
}

// ClassifyAll classifies specs in order, logging and leaving out the ones
// that are skipped.
func (c *Classifier) ClassifyAll(specs []Spec) []message.Part {
	parts := make([]message.Part, 0, len(specs))
	for _, s := range specs {
		p, err := c.Classify(s)
		if err != nil {
			c.Logger.Warn().
				Err(err).
				Str("path", s.Path).
				Str("role", s.Role.String()).
				Msg("leaving a file out of the message")
			continue
		}
		c.Logger.Debug().
			Str("path", s.Path).
			Str("role", s.Role.String()).
			Str("kind", p.Kind.String()).
			Str("type", p.MediaType).
			Str("size", units.HumanSize(float64(len(p.Content)))).
			Msg("added a file to the message")
		parts = append(parts, p)
	}
	return parts
}
