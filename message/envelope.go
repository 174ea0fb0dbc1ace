package message

import (
	"fmt"
	"io"
	"mime"
	"strings"

	gomessage "github.com/emersion/go-message"
)

// Header is a single header field.
type Header struct {
	Key   string
	Value string
}

// Envelope is an assembled message plus the routing metadata the relay
// needs. Build one with an Assembler. Nothing modifies an Envelope once
// it's built.
type Envelope struct {
	Sender     string
	Recipients []string
	Subject    string
	// In insertion order
	Headers []Header
	Parts   []Part
}

// Header returns the value of the first header named key, or "".
func (e *Envelope) Header(key string) string {
	for _, h := range e.Headers {
		if strings.EqualFold(h.Key, key) {
			return h.Value
		}
	}
	return ""
}

// counter counts the bytes written through it.
type counter struct {
	w io.Writer
	n int64
}

func (c *counter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n += int64(n)
	return n, err
}

// WriteTo serializes e as a multipart/mixed MIME message, with parts in
// the order of e.Parts.
func (e *Envelope) WriteTo(w io.Writer) (int64, error) {
	var h gomessage.Header
	// The header is written last-added first, so add fields in reverse to
	// keep them in insertion order on the wire.
	for i := len(e.Headers) - 1; i >= 0; i-- {
		k, v := e.Headers[i].Key, e.Headers[i].Value
		if strings.EqualFold(k, "Subject") {
			v = mime.QEncoding.Encode("utf-8", v)
		}
		h.Add(k, v)
	}
	h.SetContentType("multipart/mixed", map[string]string{})

	c := &counter{w: w}
	mw, err := gomessage.CreateWriter(c, h)
	if err != nil {
		return c.n, fmt.Errorf("can't write the message header: %w", err)
	}

	for n, p := range e.Parts {
		pw, err := mw.CreatePart(partHeader(p))
		if err != nil {
			return c.n, fmt.Errorf("can't create MIME part %v: %w", n, err)
		}
		if _, err := pw.Write(p.Content); err != nil {
			return c.n, fmt.Errorf("can't write MIME part %v: %w", n, err)
		}
		if err := pw.Close(); err != nil {
			return c.n, fmt.Errorf("can't close MIME part %v: %w", n, err)
		}
	}

	if err := mw.Close(); err != nil {
		return c.n, fmt.Errorf("can't close the message: %w", err)
	}
	return c.n, nil
}

func partHeader(p Part) gomessage.Header {
	var h gomessage.Header

	params := map[string]string{}
	if p.Charset != "" {
		params["charset"] = p.Charset
	}
	if p.Filename != "" && p.Kind != KindText {
		params["name"] = p.Filename
	}
	h.SetContentType(p.MediaType, params)

	if p.Encoding != "" {
		h.Set("Content-Transfer-Encoding", p.Encoding)
	}

	if p.Disposition != "" {
		dp := map[string]string{}
		if p.Filename != "" {
			dp["filename"] = p.Filename
		}
		h.SetContentDisposition(p.Disposition, dp)
	}

	if p.ContentID != "" {
		h.Set("Content-Id", "<"+p.ContentID+">")
	}
	return h
}
