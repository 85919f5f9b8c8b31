package body

import (
	"bytes"
	"strings"
	"unicode/utf8"
)

// Field is one decoded text field of a form or multipart body. Names are
// not guaranteed unique; duplicates keep their order of appearance.
type Field struct {
	Name  string
	Value string
}

// FilePart is the raw content of one multipart file segment, trailing CRLF
// stripped. FieldName is empty when the part carried no name parameter.
type FilePart struct {
	Content   []byte
	FieldName string
}

var (
	crlf      = []byte("\r\n")
	headerSep = []byte("\r\n\r\n")
)

// DecodeMultipart parses a multipart/form-data body delimited by boundary
// into its text fields and file parts, both in encounter order.
//
// Decoding never fails: a body without the boundary marker yields empty
// results, a truncated part ends the scan with whatever was collected, and
// a field whose content is not valid UTF-8 is dropped (a part with a
// filename is kept as a file regardless of its bytes). All searches are
// literal byte-subsequence searches; boundaries and part headers are ASCII.
func DecodeMultipart(data []byte, boundary string) ([]Field, []FilePart) {
	fields := make([]Field, 0)
	files := make([]FilePart, 0)

	metrics := GetBodyMetrics()
	metrics.multipartDecodes.Inc()

	delim := []byte("--" + boundary)

	start := bytes.Index(data, delim)
	if start < 0 {
		return fields, files
	}

	rest := skipCRLF(data[start+len(delim):])

	partEnd := append(append([]byte{}, crlf...), delim...)
	closing := append(append([]byte{}, delim...), '-', '-')

	for {
		sep := bytes.Index(rest, headerSep)
		if sep < 0 {
			// Truncated part headers: return what has been collected.
			break
		}

		name, isFile := parseContentDisposition(rest[:sep])
		content := rest[sep+len(headerSep):]

		done := false
		if next := bytes.Index(content, partEnd); next >= 0 {
			rest = content[next+len(partEnd):]
			content = content[:next]
		} else {
			// Final part: content ends at the closing marker, or at the end
			// of a truncated body.
			if end := bytes.Index(content, closing); end >= 0 {
				content = content[:end]
			}
			done = true
		}

		content = trimTrailingCRLF(content)

		switch {
		case isFile:
			files = append(files, FilePart{Content: content, FieldName: name})
			metrics.multipartParts.WithLabelValues("file").Inc()
		case name != "" && utf8.Valid(content):
			fields = append(fields, Field{Name: name, Value: string(content)})
			metrics.multipartParts.WithLabelValues("field").Inc()
		default:
			metrics.multipartDropped.Inc()
		}

		if done || bytes.HasPrefix(rest, []byte("--")) {
			break
		}
		rest = skipCRLF(rest)
	}

	return fields, files
}

// parseContentDisposition extracts the name parameter and whether the part
// is a file (filename or filename* present) from a part's header block.
func parseContentDisposition(header []byte) (string, bool) {
	var name string
	var isFile bool

	for _, line := range strings.Split(string(header), "\r\n") {
		if !strings.HasPrefix(strings.ToLower(line), "content-disposition:") {
			continue
		}

		for _, part := range strings.Split(line, ";") {
			part = strings.TrimSpace(part)
			key, value, ok := strings.Cut(part, "=")
			if !ok {
				continue
			}
			key = strings.ToLower(strings.TrimSpace(key))
			value = unquote(strings.TrimSpace(value))

			switch key {
			case "name":
				name = value
			case "filename", "filename*":
				isFile = true
			}
		}
	}

	return name, isFile
}

// unquote strips a single pair of surrounding double quotes.
func unquote(s string) string {
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		return s[1 : len(s)-1]
	}
	return s
}

// skipCRLF skips one leading CRLF.
func skipCRLF(b []byte) []byte {
	return bytes.TrimPrefix(b, crlf)
}

// trimTrailingCRLF trims one trailing CRLF.
func trimTrailingCRLF(b []byte) []byte {
	return bytes.TrimSuffix(b, crlf)
}

// EncodeMultipart renders fields and files as a multipart/form-data body
// with the given boundary, the inverse of DecodeMultipart.
func EncodeMultipart(fields []Field, files []FilePart, boundary string) []byte {
	var buf bytes.Buffer

	for _, f := range fields {
		buf.WriteString("--" + boundary + "\r\n")
		buf.WriteString(`Content-Disposition: form-data; name="` + f.Name + `"` + "\r\n\r\n")
		buf.WriteString(f.Value)
		buf.WriteString("\r\n")
	}

	for _, f := range files {
		buf.WriteString("--" + boundary + "\r\n")
		buf.WriteString(`Content-Disposition: form-data; name="` + f.FieldName +
			`"; filename="` + f.FieldName + `"` + "\r\n")
		buf.WriteString("Content-Type: application/octet-stream\r\n\r\n")
		buf.Write(f.Content)
		buf.WriteString("\r\n")
	}

	buf.WriteString("--" + boundary + "--\r\n")

	return buf.Bytes()
}
