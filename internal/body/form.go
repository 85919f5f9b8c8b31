package body

import (
	"net/url"
	"strings"
)

// ParseForm decodes an application/x-www-form-urlencoded body into fields,
// preserving order and duplicates. Pairs that fail percent-decoding are
// dropped, mirroring the multipart decoder's leniency.
func ParseForm(data []byte) []Field {
	fields := make([]Field, 0)

	for _, pair := range strings.Split(string(data), "&") {
		if pair == "" {
			continue
		}

		rawKey, rawValue, _ := strings.Cut(pair, "=")

		key, err := url.QueryUnescape(rawKey)
		if err != nil || key == "" {
			continue
		}
		value, err := url.QueryUnescape(rawValue)
		if err != nil {
			continue
		}

		fields = append(fields, Field{Name: key, Value: value})
	}

	return fields
}

// FieldMap collapses fields into a simple map, last seen wins.
func FieldMap(fields []Field) map[string]string {
	m := make(map[string]string, len(fields))
	for _, f := range fields {
		m[f.Name] = f.Value
	}
	return m
}

// FieldValues collapses fields into a multimap, preserving duplicates.
func FieldValues(fields []Field) url.Values {
	values := make(url.Values, len(fields))
	for _, f := range fields {
		values.Add(f.Name, f.Value)
	}
	return values
}
