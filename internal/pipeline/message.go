package pipeline

import (
	"context"
	"net/http"
)

// Request is the transport-neutral view of an inbound HTTP request handed
// to the pipeline. Middleware may mutate it in place; the mutated request
// is what the route handler sees.
type Request struct {
	Method     string
	Path       string
	Header     http.Header
	Body       []byte
	RemoteAddr string
}

// NewRequest creates a request with an empty header map.
func NewRequest(method, path string) *Request {
	return &Request{
		Method: method,
		Path:   path,
		Header: make(http.Header),
	}
}

// ContentType returns the Content-Type header value.
func (r *Request) ContentType() string {
	return r.Header.Get("Content-Type")
}

// HasBody reports whether the request carries a non-empty body.
func (r *Request) HasBody() bool {
	return len(r.Body) > 0
}

// Response is the mutable response built up as the request moves through
// the pipeline.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// NewResponse creates an empty 200 response.
func NewResponse() *Response {
	return &Response{
		StatusCode: http.StatusOK,
		Header:     make(http.Header),
	}
}

// JSONResponse creates a response with the given status and a JSON body.
func JSONResponse(status int, body string) *Response {
	resp := NewResponse()
	resp.StatusCode = status
	resp.Header.Set("Content-Type", "application/json")
	resp.Body = []byte(body)
	return resp
}

// SetHeader sets a response header, replacing any existing values.
func (r *Response) SetHeader(key, value string) {
	if r.Header == nil {
		r.Header = make(http.Header)
	}
	r.Header.Set(key, value)
}

// Handler is the route handler supplied by the router. It is invoked exactly
// once per request that no pre-middleware short-circuited.
type Handler func(ctx context.Context, req *Request) *Response
