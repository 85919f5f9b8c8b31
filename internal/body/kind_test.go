package body

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassify(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		contentType string
		want        Kind
	}{
		{
			name:        "plain json",
			contentType: "application/json",
			want:        KindJSON,
		},
		{
			name:        "json with charset",
			contentType: "application/json; charset=utf-8",
			want:        KindJSON,
		},
		{
			name:        "json suffix",
			contentType: "application/vnd.api+json",
			want:        KindJSON,
		},
		{
			name:        "urlencoded form",
			contentType: "application/x-www-form-urlencoded",
			want:        KindForm,
		},
		{
			name:        "multipart form",
			contentType: "multipart/form-data; boundary=abc",
			want:        KindMultipartForm,
		},
		{
			name:        "plain text",
			contentType: "text/plain",
			want:        KindText,
		},
		{
			name:        "html",
			contentType: "text/html; charset=utf-8",
			want:        KindText,
		},
		{
			name:        "xml",
			contentType: "application/xml",
			want:        KindText,
		},
		{
			name:        "xml suffix",
			contentType: "application/soap+xml",
			want:        KindText,
		},
		{
			name:        "png",
			contentType: "image/png",
			want:        KindBinary,
		},
		{
			name:        "octet stream",
			contentType: "application/octet-stream",
			want:        KindBinary,
		},
		{
			name:        "absent header",
			contentType: "",
			want:        KindBinary,
		},
		{
			name:        "garbage header",
			contentType: ";;;",
			want:        KindBinary,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			assert.Equal(t, tt.want, Classify(tt.contentType))
		})
	}
}

func TestClassifyRequest(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		contentType string
		hasBody     bool
		want        Kind
	}{
		{
			name:        "bodyless without header is empty",
			contentType: "",
			hasBody:     false,
			want:        KindEmpty,
		},
		{
			name:        "body without header is binary",
			contentType: "",
			hasBody:     true,
			want:        KindBinary,
		},
		{
			name:        "bodyless with garbage header is empty",
			contentType: "not a media type at all;;",
			hasBody:     false,
			want:        KindEmpty,
		},
		{
			name:        "json body",
			contentType: "application/json",
			hasBody:     true,
			want:        KindJSON,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			assert.Equal(t, tt.want, ClassifyRequest(tt.contentType, tt.hasBody))
		})
	}
}

func TestKind_String(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "json", KindJSON.String())
	assert.Equal(t, "multipart_form", KindMultipartForm.String())
	assert.Equal(t, "empty", KindEmpty.String())
	assert.Equal(t, "unknown", Kind(99).String())
}

func TestMultipartBoundary(t *testing.T) {
	t.Parallel()

	boundary, ok := MultipartBoundary("multipart/form-data; boundary=abc123")
	assert.True(t, ok)
	assert.Equal(t, "abc123", boundary)

	_, ok = MultipartBoundary("multipart/form-data")
	assert.False(t, ok)

	_, ok = MultipartBoundary("application/json")
	assert.False(t, ok)

	_, ok = MultipartBoundary("")
	assert.False(t, ok)
}
