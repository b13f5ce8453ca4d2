package document

import (
	"bytes"
	"encoding/json"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// Format captures the textual layout of a loaded document so that a
// re-serialized document looks like the one the application wrote.
type Format struct {
	BOM             bool
	Indent          string // empty means compact
	TrailingNewline bool
	CRLF            bool
}

// DefaultFormat is used for documents created from scratch.
var DefaultFormat = Format{Indent: "  ", TrailingNewline: true}

// detectFormat inspects raw (BOM already removed).
func detectFormat(raw []byte, bom bool) Format {
	f := Format{BOM: bom}
	f.CRLF = bytes.Contains(raw, []byte("\r\n"))
	trimmed := bytes.TrimRight(raw, " \t")
	f.TrailingNewline = bytes.HasSuffix(trimmed, []byte("\n"))

	// The indent unit is the leading whitespace of the first line after the
	// opening brace.
	start := bytes.IndexByte(raw, '{')
	if start < 0 {
		return f
	}
	rest := raw[start+1:]
	nl := bytes.IndexByte(rest, '\n')
	if nl < 0 {
		return f
	}
	line := rest[nl+1:]
	n := 0
	for n < len(line) && (line[n] == ' ' || line[n] == '\t') {
		n++
	}
	if n > 0 {
		f.Indent = string(line[:n])
	}
	return f
}

// stripBOM removes a leading UTF-8 byte order mark.
func stripBOM(raw []byte) ([]byte, bool) {
	if bytes.HasPrefix(raw, utf8BOM) {
		return raw[len(utf8BOM):], true
	}
	return raw, false
}

// render lays out a marshaled value according to f.
func render(v json.Marshaler, f Format) ([]byte, error) {
	raw, err := v.MarshalJSON()
	if err != nil {
		return nil, err
	}
	var compact bytes.Buffer
	if err := json.Compact(&compact, raw); err != nil {
		return nil, err
	}

	var out bytes.Buffer
	if f.BOM {
		out.Write(utf8BOM)
	}
	if f.Indent == "" {
		out.Write(compact.Bytes())
	} else if err := json.Indent(&out, compact.Bytes(), "", f.Indent); err != nil {
		return nil, err
	}
	if f.TrailingNewline {
		out.WriteByte('\n')
	}

	b := out.Bytes()
	if f.CRLF {
		b = bytes.ReplaceAll(b, []byte("\n"), []byte("\r\n"))
	}
	return b, nil
}
