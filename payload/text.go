package payload

import (
	"bytes"
	"encoding/csv"
	"io"
)

// Delimiters we try when sniffing for tabular data, most common first
var delimiters = []rune{',', ';', '\t', '|'}

// sniffLimit caps how much of a file we look at when sniffing
const sniffLimit = 4096

// sniffTabular reports whether b looks like delimited tabular data: at
// least two records, every one of them with the same number of fields, and
// more than one field per record.
func sniffTabular(b []byte) bool {
	sample := b
	if len(sample) > sniffLimit {
		sample = sample[:sniffLimit]
		// Drop the last, probably truncated, line
		if i := bytes.LastIndexByte(sample, '\n'); i > 0 {
			sample = sample[:i+1]
		}
	}
	for _, d := range delimiters {
		if bytes.IndexRune(sample, d) < 0 {
			continue
		}
		if consistentFields(sample, d) {
			return true
		}
	}
	return false
}

func consistentFields(sample []byte, delim rune) bool {
	r := csv.NewReader(bytes.NewReader(sample))
	r.Comma = delim
	// Any mismatch in field counts between records is reported as an error
	r.FieldsPerRecord = 0

	var records int
	for {
		rec, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return false
		}
		if len(rec) < 2 {
			return false
		}
		records++
	}
	return records >= 2
}

// normalizeLineEndings converts bare LF and bare CR line endings to CRLF.
func normalizeLineEndings(b []byte) []byte {
	b = bytes.ReplaceAll(b, []byte("\r\n"), []byte("\n"))
	b = bytes.ReplaceAll(b, []byte("\r"), []byte("\n"))
	return bytes.ReplaceAll(b, []byte("\n"), []byte("\r\n"))
}
