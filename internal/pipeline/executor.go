package pipeline

import (
	"context"
	"net/http"
	"runtime/debug"
	"time"

	"github.com/dkoretsky/pipegate/internal/observability"
)

// errInternal is the body of the generic 500 substituted for middleware and
// handler failures.
const errInternal = `{"error":"internal server error"}`

// Executor runs the pre-handler-post middleware chain for a single request.
// Middleware registration happens once at startup; the lists are read-only
// while requests are in flight.
type Executor struct {
	pre       []PreMiddleware
	post      []PostMiddleware
	logger    observability.Logger
	accessLog bool
}

// ExecutorOption is a functional option for configuring the executor.
type ExecutorOption func(*Executor)

// WithExecutorLogger sets the logger for the executor.
func WithExecutorLogger(logger observability.Logger) ExecutorOption {
	return func(e *Executor) {
		e.logger = logger
	}
}

// WithAccessLog enables per-request access logging.
func WithAccessLog() ExecutorOption {
	return func(e *Executor) {
		e.accessLog = true
	}
}

// NewExecutor creates an executor with no middleware registered.
func NewExecutor(opts ...ExecutorOption) *Executor {
	e := &Executor{
		logger: observability.NopLogger(),
	}

	for _, opt := range opts {
		opt(e)
	}

	return e
}

// AddPre registers a pre-phase middleware. Not safe to call concurrently
// with Execute.
func (e *Executor) AddPre(mw PreMiddleware) {
	e.pre = append(e.pre, mw)
}

// AddPost registers a post-phase middleware. Not safe to call concurrently
// with Execute.
func (e *Executor) AddPost(mw PostMiddleware) {
	e.post = append(e.post, mw)
}

// Execute runs the full pipeline for one request and always returns a
// response. Errors and panics inside middleware or the handler surface as a
// generic 500; they never propagate to the caller.
func (e *Executor) Execute(ctx context.Context, req *Request, handler Handler) *Response {
	start := time.Now()
	metrics := GetExecutorMetrics()
	metrics.requestsTotal.Inc()

	resp := e.run(ctx, req, handler)

	elapsed := time.Since(start)
	metrics.requestDuration.Observe(elapsed.Seconds())

	if e.accessLog {
		e.logger.WithContext(ctx).Info("request completed",
			observability.String("method", req.Method),
			observability.String("path", req.Path),
			observability.Int("status", resp.StatusCode),
			observability.Duration("duration", elapsed),
		)
	}

	return resp
}

func (e *Executor) run(ctx context.Context, req *Request, handler Handler) *Response {
	// Pre phase. A short-circuit or failure returns its response verbatim:
	// no handler, no post phase, no pending-header merge.
	var pending http.Header

	for _, mw := range e.pre {
		if !ScopeMatches(mw.Scope(), req.Path) {
			continue
		}

		verdict, err := e.invokePre(ctx, mw, req)
		if err != nil {
			return e.failMiddleware(mw, err)
		}

		switch verdict.Action {
		case ActionShortCircuit:
			GetExecutorMetrics().shortCircuits.WithLabelValues(mw.Name()).Inc()
			if verdict.Response == nil {
				return JSONResponse(http.StatusInternalServerError, errInternal)
			}
			return verdict.Response
		case ActionContinueWithHeaders:
			// The most recent capture wins wholesale; middleware that need
			// their headers to survive must run last in the pre phase.
			pending = verdict.Headers
			GetExecutorMetrics().pendingHeaderSets.Inc()
		case ActionContinue:
		}
	}

	resp := e.invokeHandler(ctx, req, handler)

	// Post phase. Each matching middleware may replace the response; a
	// failure substitutes the generic 500 exactly as a pre failure would.
	for _, mw := range e.post {
		if !ScopeMatches(mw.Scope(), req.Path) {
			continue
		}

		out, err := e.invokePost(ctx, mw, req, resp)
		if err != nil {
			return e.failMiddleware(mw, err)
		}
		if out != nil {
			resp = out
		}
	}

	mergePending(resp, pending)

	return resp
}

// invokePre calls a pre-middleware with panic containment.
func (e *Executor) invokePre(
	ctx context.Context,
	mw PreMiddleware,
	req *Request,
) (verdict Verdict, err error) {
	defer e.recoverPanic(mw.Name(), req, &err)
	return mw.Before(ctx, req)
}

// invokePost calls a post-middleware with panic containment.
func (e *Executor) invokePost(
	ctx context.Context,
	mw PostMiddleware,
	req *Request,
	resp *Response,
) (out *Response, err error) {
	defer e.recoverPanic(mw.Name(), req, &err)
	return mw.After(ctx, req, resp)
}

// invokeHandler calls the route handler with panic containment. A nil
// handler response is treated as a handler failure.
func (e *Executor) invokeHandler(ctx context.Context, req *Request, handler Handler) *Response {
	var failed error

	resp := func() *Response {
		defer e.recoverPanic("handler", req, &failed)
		return handler(ctx, req)
	}()

	if failed != nil || resp == nil {
		return JSONResponse(http.StatusInternalServerError, errInternal)
	}

	return resp
}

// recoverPanic converts a panic into an error assigned through errp.
func (e *Executor) recoverPanic(name string, req *Request, errp *error) {
	if r := recover(); r != nil {
		GetExecutorMetrics().panicsRecovered.Inc()
		e.logger.Error("panic recovered",
			observability.String("middleware", name),
			observability.String("method", req.Method),
			observability.String("path", req.Path),
			observability.Any("error", r),
			observability.String("stack", string(debug.Stack())),
		)
		*errp = &panicError{value: r}
	}
}

// failMiddleware logs a middleware failure and returns the generic 500.
func (e *Executor) failMiddleware(mw Middleware, err error) *Response {
	GetExecutorMetrics().middlewareErrors.WithLabelValues(mw.Name()).Inc()
	if _, isPanic := err.(*panicError); !isPanic {
		e.logger.Error("middleware failed",
			observability.String("middleware", mw.Name()),
			observability.Error(err),
		)
	}
	return JSONResponse(http.StatusInternalServerError, errInternal)
}

// mergePending fills response header gaps from headers a pre-middleware
// carried forward. Headers the response already set win: a pre-phase
// override must not clobber a handler or post-phase decision.
func mergePending(resp *Response, pending http.Header) {
	if len(pending) == 0 {
		return
	}
	if resp.Header == nil {
		resp.Header = make(http.Header)
	}
	for key, values := range pending {
		if len(resp.Header.Values(key)) > 0 {
			continue
		}
		for _, v := range values {
			resp.Header.Add(key, v)
		}
	}
}

// panicError wraps a recovered panic value as an error.
type panicError struct {
	value interface{}
}

func (p *panicError) Error() string {
	return "panic in pipeline"
}
