package body

import (
	"mime"
	"strings"
)

// Kind classifies a request or response body by its media type.
type Kind int

const (
	// KindEmpty marks a body-less request with no usable content type.
	KindEmpty Kind = iota

	// KindJSON covers application/json and any application/*+json suffix.
	KindJSON

	// KindForm covers application/x-www-form-urlencoded.
	KindForm

	// KindMultipartForm covers multipart/form-data.
	KindMultipartForm

	// KindText covers text/* and XML media types.
	KindText

	// KindBinary covers everything else.
	KindBinary
)

// String returns the kind name for logging.
func (k Kind) String() string {
	switch k {
	case KindEmpty:
		return "empty"
	case KindJSON:
		return "json"
	case KindForm:
		return "form"
	case KindMultipartForm:
		return "multipart_form"
	case KindText:
		return "text"
	case KindBinary:
		return "binary"
	default:
		return "unknown"
	}
}

// Classify maps a Content-Type header value to a body kind. Only the media
// type is inspected; no body bytes are read. An absent or unparseable
// header classifies as binary.
func Classify(contentType string) Kind {
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return KindBinary
	}

	switch {
	case mediaType == "application/json":
		return KindJSON
	case strings.HasPrefix(mediaType, "application/") && strings.HasSuffix(mediaType, "+json"):
		return KindJSON
	case mediaType == "application/x-www-form-urlencoded":
		return KindForm
	case mediaType == "multipart/form-data":
		return KindMultipartForm
	case strings.HasPrefix(mediaType, "text/"):
		return KindText
	case mediaType == "application/xml":
		return KindText
	case strings.HasPrefix(mediaType, "application/") && strings.HasSuffix(mediaType, "+xml"):
		return KindText
	default:
		return KindBinary
	}
}

// ClassifyRequest classifies a request body. A request without a body whose
// Content-Type is absent or unparseable is KindEmpty rather than KindBinary.
func ClassifyRequest(contentType string, hasBody bool) Kind {
	if _, _, err := mime.ParseMediaType(contentType); err != nil {
		if !hasBody {
			return KindEmpty
		}
		return KindBinary
	}
	return Classify(contentType)
}

// MultipartBoundary extracts the boundary parameter from a multipart
// Content-Type header. The second return is false when the header is not
// multipart/form-data or carries no boundary.
func MultipartBoundary(contentType string) (string, bool) {
	mediaType, params, err := mime.ParseMediaType(contentType)
	if err != nil || mediaType != "multipart/form-data" {
		return "", false
	}
	boundary, ok := params["boundary"]
	if !ok || boundary == "" {
		return "", false
	}
	return boundary, true
}
