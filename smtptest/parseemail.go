package smtptest

import (
	"errors"
	"fmt"
	"io"
	"strings"

	gomessage "github.com/emersion/go-message"
)

// Part is one decoded MIME part of a received message.
type Part struct {
	MediaType   string
	Disposition string
	Filename    string
	ContentID   string
	Body        []byte
}

// ParseEmail reads a raw message as received by a test server and returns
// its header along with its decoded top-level parts. A message that isn't
// multipart yields a single part.
func ParseEmail(raw string) (gomessage.Header, []Part, error) {
	e, err := gomessage.Read(strings.NewReader(raw))
	if err != nil {
		return gomessage.Header{}, nil, fmt.Errorf("can't read the message: %v", err)
	}

	mr := e.MultipartReader()
	if mr == nil {
		p, err := readPart(e)
		if err != nil {
			return e.Header, nil, err
		}
		return e.Header, []Part{p}, nil
	}

	var parts []Part
	for {
		pe, err := mr.NextPart()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return e.Header, nil, fmt.Errorf("can't read part %v: %v", len(parts), err)
		}
		p, err := readPart(pe)
		if err != nil {
			return e.Header, nil, err
		}
		parts = append(parts, p)
	}
	return e.Header, parts, nil
}

func readPart(e *gomessage.Entity) (Part, error) {
	mt, _, err := e.Header.ContentType()
	if err != nil {
		return Part{}, err
	}
	disp, dp, _ := e.Header.ContentDisposition()
	b, err := io.ReadAll(e.Body)
	if err != nil {
		return Part{}, err
	}
	return Part{
		MediaType:   mt,
		Disposition: disp,
		Filename:    dp["filename"],
		ContentID:   strings.Trim(e.Header.Get("Content-Id"), "<>"),
		Body:        b,
	}, nil
}
