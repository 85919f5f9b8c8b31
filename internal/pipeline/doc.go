// Package pipeline implements the per-request middleware executor.
//
// A request flows through three phases: registered pre-middleware in
// registration order, the route handler, and registered post-middleware in
// registration order. Each middleware carries a path scope; middleware whose
// scope does not match the request path are skipped.
//
// Pre-middleware return an explicit Verdict:
//
//   - Continue: proceed to the next middleware.
//   - ContinueWithHeaders: proceed, but carry the given headers forward and
//     merge them into the final response wherever the response did not set
//     them itself.
//   - ShortCircuit: stop the pipeline and return the verdict's response
//     verbatim; the route handler and post phase never run.
//
// Post-middleware may replace the in-flight response; returning nil keeps
// the current one.
//
// The executor is the panic boundary for the request: a panic or error in
// any middleware or in the route handler is converted into a generic 500
// response and never propagates to the caller.
//
// The middleware lists are built once at startup and are read-only during
// request processing; registration is not safe concurrently with Execute.
// The pipeline implements no cancellation of its own: if the hosting
// transport abandons a request mid-flight, the goroutine simply runs to
// completion and its response is discarded.
package pipeline
