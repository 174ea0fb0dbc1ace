package payload

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/ptgott/postman/message"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// writeFile creates a file called name in a temp directory and returns its
// path.
func writeFile(t *testing.T, name string, content []byte) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(p, content, 0o600))
	return p
}

func TestClassifySkips(t *testing.T) {
	dir := t.TempDir()

	testCases := []struct {
		description string
		spec        Spec
		body        string
		maxSize     int64
	}{
		{
			description: "missing file",
			spec:        Spec{Path: filepath.Join(dir, "nope.txt"), Role: RoleAttachment},
		},
		{
			description: "directory",
			spec:        Spec{Path: dir, Role: RoleAttachment},
		},
		{
			description: "empty text attachment",
			spec:        Spec{Path: writeFile(t, "empty.txt", nil), Role: RoleAttachment},
		},
		{
			description: "empty binary attachment",
			spec:        Spec{Path: writeFile(t, "empty.pdf", nil), Role: RoleAttachment},
		},
		{
			description: "empty embed",
			spec:        Spec{Path: writeFile(t, "empty.png", nil), Role: RoleEmbed},
			body:        `<img src="cid:empty.png">`,
		},
		{
			description: "embed not referenced by the body",
			spec:        Spec{Path: writeFile(t, "logo.png", []byte("png")), Role: RoleEmbed},
			body:        `<img src="cid:other.png">`,
		},
		{
			description: "embed without a body",
			spec:        Spec{Path: writeFile(t, "logo.png", []byte("png")), Role: RoleEmbed},
		},
		{
			description: "too large",
			spec:        Spec{Path: writeFile(t, "big.bin", bytes.Repeat([]byte("x"), 2048)), Role: RoleAttachment},
			maxSize:     1024,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.description, func(t *testing.T) {
			c := NewClassifier(tc.body, tc.maxSize, zerolog.Nop())
			_, err := c.Classify(tc.spec)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrSkipped))
		})
	}
}

func TestClassifyUnreadable(t *testing.T) {
	if runtime.GOOS == "windows" || os.Geteuid() == 0 {
		t.Skip("file permissions aren't enforced here")
	}
	p := writeFile(t, "secret.txt", []byte("hidden"))
	require.NoError(t, os.Chmod(p, 0o000))

	_, err := NewClassifier("", 0, zerolog.Nop()).Classify(Spec{Path: p, Role: RoleAttachment})
	assert.True(t, errors.Is(err, ErrSkipped))
}

func TestClassifyEmbed(t *testing.T) {
	p := writeFile(t, "logo.png", []byte("\x89PNG data"))
	c := NewClassifier(`<p><img src="cid:logo.png"></p>`, 0, zerolog.Nop())

	part, err := c.Classify(Spec{Path: p, Role: RoleEmbed})
	require.NoError(t, err)

	assert.Equal(t, message.KindImage, part.Kind)
	assert.Equal(t, "image/png", part.MediaType)
	assert.Equal(t, "logo.png", part.ContentID)
	assert.Equal(t, "logo.png", part.Filename)
	assert.Equal(t, message.DispositionInline, part.Disposition)
	assert.Equal(t, []byte("\x89PNG data"), part.Content)
}

func TestClassifyAttachments(t *testing.T) {
	testCases := []struct {
		description string
		name        string
		content     string
		kind        message.Kind
		mediaType   string
		expected    string
	}{
		{
			description: "plain text gets CRLF line endings",
			name:        "notes.txt",
			content:     "line one\nline two\rline three\r\n",
			kind:        message.KindText,
			mediaType:   "text/plain",
			expected:    "line one\r\nline two\r\nline three\r\n",
		},
		{
			description: "csv is left alone",
			name:        "data.csv",
			content:     "a,b,c\n1,2,3\n4,5,6\n",
			kind:        message.KindText,
			mediaType:   "text/csv",
			expected:    "a,b,c\n1,2,3\n4,5,6\n",
		},
		{
			description: "malformed csv is normalized like plain text",
			name:        "broken.csv",
			content:     "a,b,c\n1,2\n",
			kind:        message.KindText,
			mediaType:   "text/csv",
			expected:    "a,b,c\r\n1,2\r\n",
		},
		{
			description: "attached image",
			name:        "photo.jpg",
			content:     "\xff\xd8\xff jpeg",
			kind:        message.KindImage,
			mediaType:   "image/jpeg",
			expected:    "\xff\xd8\xff jpeg",
		},
		{
			description: "pdf",
			name:        "report.pdf",
			content:     "%PDF-1.4",
			kind:        message.KindBinary,
			mediaType:   "application/pdf",
			expected:    "%PDF-1.4",
		},
		{
			description: "unknown extension",
			name:        "blob.qqq",
			content:     "\x00\x01\x02",
			kind:        message.KindBinary,
			mediaType:   "application/octet-stream",
			expected:    "\x00\x01\x02",
		},
		{
			description: "compressed text",
			name:        "data.csv.gz",
			content:     "\x1f\x8b\x08",
			kind:        message.KindBinary,
			mediaType:   "application/octet-stream",
			expected:    "\x1f\x8b\x08",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.description, func(t *testing.T) {
			p := writeFile(t, tc.name, []byte(tc.content))
			part, err := NewClassifier("", 0, zerolog.Nop()).Classify(Spec{Path: p, Role: RoleAttachment})
			require.NoError(t, err)

			assert.Equal(t, tc.kind, part.Kind)
			assert.Equal(t, tc.mediaType, part.MediaType)
			assert.Equal(t, tc.expected, string(part.Content))
			assert.Equal(t, message.DispositionAttachment, part.Disposition)
			assert.Equal(t, tc.name, part.Filename)
			assert.Empty(t, part.ContentID)
		})
	}
}

func TestClassifyAll(t *testing.T) {
	var logs strings.Builder
	body := `<img src="cid:a.png">`
	c := NewClassifier(body, 0, zerolog.New(&logs))

	embedded := writeFile(t, "a.png", []byte("png"))
	unreferenced := writeFile(t, "b.png", []byte("png"))
	doc := writeFile(t, "doc.pdf", []byte("%PDF"))
	empty := writeFile(t, "empty.txt", nil)

	specs := append(Embeds(embedded, unreferenced), Attachments(doc, empty)...)
	parts := c.ClassifyAll(specs)

	require.Len(t, parts, 2)
	assert.Equal(t, "a.png", parts[0].Filename)
	assert.Equal(t, "doc.pdf", parts[1].Filename)
	assert.Equal(t, 2, strings.Count(logs.String(), `"level":"warn"`))
}

func TestSniffTabular(t *testing.T) {
	testCases := []struct {
		description string
		input       string
		expected    bool
	}{
		{"comma separated", "a,b\n1,2\n", true},
		{"semicolon separated", "a;b;c\n1;2;3\n", true},
		{"tab separated", "a\tb\n1\t2\n", true},
		{"quoted fields", "\"a,1\",b\n\"c\",d\n", true},
		{"single record", "a,b,c\n", false},
		{"single column", "a\nb\nc\n", false},
		{"ragged rows", "a,b\n1,2,3\n", false},
		{"prose", "Hello there.\nHow are you?\n", false},
	}

	for _, tc := range testCases {
		t.Run(tc.description, func(t *testing.T) {
			assert.Equal(t, tc.expected, sniffTabular([]byte(tc.input)))
		})
	}
}

func TestGuessMediaType(t *testing.T) {
	testCases := map[string]string{
		"a.txt":     "text/plain",
		"A.TXT":     "text/plain",
		"a.png":     "image/png",
		"a.tar.gz":  "application/octet-stream",
		"a.log.bz2": "application/octet-stream",
		"Makefile":  "application/octet-stream",
	}
	for name, expected := range testCases {
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, expected, guessMediaType(name))
		})
	}
}
