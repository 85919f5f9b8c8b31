package pipeline

import (
	"context"
	"net/http"
)

// Action is the three-way outcome of a pre-middleware invocation.
type Action int

const (
	// ActionContinue proceeds to the next middleware unchanged.
	ActionContinue Action = iota

	// ActionContinueWithHeaders proceeds to the next middleware and carries
	// the verdict's headers forward to the final response.
	ActionContinueWithHeaders

	// ActionShortCircuit stops the pipeline and returns the verdict's
	// response verbatim.
	ActionShortCircuit
)

// String returns the action name for logging.
func (a Action) String() string {
	switch a {
	case ActionContinue:
		return "continue"
	case ActionContinueWithHeaders:
		return "continue_with_headers"
	case ActionShortCircuit:
		return "short_circuit"
	default:
		return "unknown"
	}
}

// Verdict is the result of a pre-middleware invocation. Exactly one of the
// three actions holds; Response is set only for ActionShortCircuit and
// Headers only for ActionContinueWithHeaders.
type Verdict struct {
	Action   Action
	Response *Response
	Headers  http.Header
}

// Continue returns a verdict that proceeds to the next middleware.
func Continue() Verdict {
	return Verdict{Action: ActionContinue}
}

// ContinueWithHeaders returns a verdict that proceeds but carries the given
// headers forward. They replace any headers a previous middleware carried
// and are merged into the final response wherever it did not set them.
func ContinueWithHeaders(headers http.Header) Verdict {
	return Verdict{Action: ActionContinueWithHeaders, Headers: headers}
}

// ShortCircuit returns a verdict that terminates the pipeline with resp.
func ShortCircuit(resp *Response) Verdict {
	return Verdict{Action: ActionShortCircuit, Response: resp}
}

// Middleware identifies a pipeline middleware. Scope is a path prefix; an
// empty scope means "/" (all paths).
type Middleware interface {
	Name() string
	Scope() string
}

// PreMiddleware runs before the route handler.
type PreMiddleware interface {
	Middleware
	Before(ctx context.Context, req *Request) (Verdict, error)
}

// PostMiddleware runs after the route handler. Returning a non-nil response
// replaces the in-flight response; returning nil keeps it.
type PostMiddleware interface {
	Middleware
	After(ctx context.Context, req *Request, resp *Response) (*Response, error)
}

// PreFunc adapts a function to PreMiddleware.
type PreFunc struct {
	name  string
	scope string
	fn    func(ctx context.Context, req *Request) (Verdict, error)
}

// NewPre creates a PreMiddleware from a function.
func NewPre(name, scope string, fn func(ctx context.Context, req *Request) (Verdict, error)) *PreFunc {
	return &PreFunc{name: name, scope: scope, fn: fn}
}

// Name implements Middleware.
func (p *PreFunc) Name() string { return p.name }

// Scope implements Middleware.
func (p *PreFunc) Scope() string { return p.scope }

// Before implements PreMiddleware.
func (p *PreFunc) Before(ctx context.Context, req *Request) (Verdict, error) {
	return p.fn(ctx, req)
}

// PostFunc adapts a function to PostMiddleware.
type PostFunc struct {
	name  string
	scope string
	fn    func(ctx context.Context, req *Request, resp *Response) (*Response, error)
}

// NewPost creates a PostMiddleware from a function.
func NewPost(
	name, scope string,
	fn func(ctx context.Context, req *Request, resp *Response) (*Response, error),
) *PostFunc {
	return &PostFunc{name: name, scope: scope, fn: fn}
}

// Name implements Middleware.
func (p *PostFunc) Name() string { return p.name }

// Scope implements Middleware.
func (p *PostFunc) Scope() string { return p.scope }

// After implements PostMiddleware.
func (p *PostFunc) After(ctx context.Context, req *Request, resp *Response) (*Response, error) {
	return p.fn(ctx, req, resp)
}

// ResponderFunc is the legacy pre-middleware contract: the middleware may
// mutate the request and optionally produce a response without saying how
// the executor should treat it.
type ResponderFunc func(ctx context.Context, req *Request) (*Response, error)

// NewResponder adapts a ResponderFunc to the explicit verdict contract.
// A nil response continues the chain. A non-nil response terminates the
// pipeline for preflight (OPTIONS) requests and otherwise carries the
// response's headers forward while the route handler still runs. This is
// the single place that preserves the original method-dependent behavior.
func NewResponder(name, scope string, fn ResponderFunc) *PreFunc {
	return NewPre(name, scope, func(ctx context.Context, req *Request) (Verdict, error) {
		resp, err := fn(ctx, req)
		if err != nil {
			return Verdict{}, err
		}
		if resp == nil {
			return Continue(), nil
		}
		if req.Method == http.MethodOptions {
			return ShortCircuit(resp), nil
		}
		return ContinueWithHeaders(resp.Header), nil
	})
}
