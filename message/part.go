package message

import "fmt"

// Kind tags the variant held by a Part.
type Kind int

const (
	// KindText is textual content carried with a charset.
	KindText Kind = iota
	// KindImage is image content, either embedded in the body through a
	// content ID or attached with a filename.
	KindImage
	// KindBinary is any other content, carried base64-encoded.
	KindBinary
)

func (k Kind) String() string {
	switch k {
	case KindText:
		return "text"
	case KindImage:
		return "image"
	case KindBinary:
		return "binary"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// Disposition values for the Content-Disposition header
const (
	DispositionInline     = "inline"
	DispositionAttachment = "attachment"
)

// Transfer encodings we emit
const (
	EncodingQuotedPrintable = "quoted-printable"
	EncodingBase64          = "base64"
)

// Part is one MIME part of an outgoing message. Use the constructors to
// build one, since they keep the fields consistent with the Kind.
type Part struct {
	Kind Kind
	// Full media type, e.g. "text/csv" or "image/png"
	MediaType string
	// Only meaningful for KindText
	Charset     string
	Content     []byte
	ContentID   string
	Filename    string
	Disposition string
	Encoding    string
}

// Text returns a KindText part with the given subtype (e.g., "plain",
// "html", "csv").
func Text(content []byte, subtype, charset string) Part {
	return Part{
		Kind:      KindText,
		MediaType: "text/" + subtype,
		Charset:   charset,
		Content:   content,
		Encoding:  EncodingQuotedPrintable,
	}
}

// Image returns a KindImage part. Either contentID or filename may be
// empty.
func Image(content []byte, mediaType, contentID, filename string) Part {
	return Part{
		Kind:      KindImage,
		MediaType: mediaType,
		Content:   content,
		ContentID: contentID,
		Filename:  filename,
		Encoding:  EncodingBase64,
	}
}

// Binary returns a KindBinary part.
func Binary(content []byte, mediaType, filename string) Part {
	return Part{
		Kind:      KindBinary,
		MediaType: mediaType,
		Content:   content,
		Filename:  filename,
		Encoding:  EncodingBase64,
	}
}

// WithDisposition returns a copy of p with the given Content-Disposition and
// filename.
func (p Part) WithDisposition(disposition, filename string) Part {
	p.Disposition = disposition
	p.Filename = filename
	return p
}

// IsInline reports whether p is displayed as part of the body rather than
// offered as a download.
func (p Part) IsInline() bool {
	return p.Disposition == DispositionInline
}
