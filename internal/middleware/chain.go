package middleware

import (
	"context"
	"net/http"

	"github.com/dkoretsky/pipegate/internal/pipeline"
)

// Chain runs several pre-middlewares as a single pipeline entry and merges
// the headers they carry. The executor keeps only the last carried header
// set, so registering header-carrying middlewares separately would drop all
// but the final one; the chain accumulates them instead, later members
// winning on conflicting keys. A short-circuit or error from any member
// stops the chain immediately.
type Chain struct {
	name string
	mws  []pipeline.PreMiddleware
}

// NewChain creates a chain over the given pre-middlewares in run order.
func NewChain(name string, mws ...pipeline.PreMiddleware) *Chain {
	return &Chain{name: name, mws: mws}
}

// Name implements pipeline.Middleware.
func (c *Chain) Name() string { return c.name }

// Scope implements pipeline.Middleware. The chain itself applies everywhere;
// each member is filtered by its own scope per request.
func (c *Chain) Scope() string { return "/" }

// Before implements pipeline.PreMiddleware.
func (c *Chain) Before(ctx context.Context, req *pipeline.Request) (pipeline.Verdict, error) {
	var carried http.Header

	for _, mw := range c.mws {
		if !pipeline.ScopeMatches(mw.Scope(), req.Path) {
			continue
		}

		verdict, err := mw.Before(ctx, req)
		if err != nil {
			return pipeline.Verdict{}, err
		}

		switch verdict.Action {
		case pipeline.ActionShortCircuit:
			return verdict, nil
		case pipeline.ActionContinueWithHeaders:
			if carried == nil {
				carried = make(http.Header)
			}
			for key, values := range verdict.Headers {
				carried[key] = values
			}
		}
	}

	if carried == nil {
		return pipeline.Continue(), nil
	}
	return pipeline.ContinueWithHeaders(carried), nil
}
