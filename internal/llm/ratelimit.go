package llm

import (
	"context"
	"fmt"

	"golang.org/x/time/rate"
)

// RateLimited spaces calls to a provider with a token bucket.
type RateLimited struct {
	base    Client
	limiter *rate.Limiter
}

// NewRateLimited allows perSecond calls per second with a burst of burst.
func NewRateLimited(base Client, perSecond float64, burst int) *RateLimited {
	if burst < 1 {
		burst = 1
	}
	return &RateLimited{base: base, limiter: rate.NewLimiter(rate.Limit(perSecond), burst)}
}

// Generate waits for a token, then delegates.
func (r *RateLimited) Generate(ctx context.Context, req Request) (Generation, error) {
	if err := r.limiter.Wait(ctx); err != nil {
		return Generation{}, fmt.Errorf("llm rate limit wait: %w", err)
	}
	return r.base.Generate(ctx, req)
}

var _ Client = (*RateLimited)(nil)
