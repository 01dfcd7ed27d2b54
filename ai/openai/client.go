package openai

import (
	"context"
	"fmt"
	"time"

	"github.com/poiesic/examscribe/ai"
	"github.com/poiesic/examscribe/core"
	"golang.org/x/time/rate"
)

// newLimiter builds the limiter for a provider. A zero rate means unthrottled.
func newLimiter(rps float64) *rate.Limiter {
	if rps <= 0 {
		return rate.NewLimiter(rate.Inf, 0)
	}
	burst := int(rps)
	if burst < 1 {
		burst = 1
	}
	return rate.NewLimiter(rate.Limit(rps), burst)
}

// token returns the API key to send. Local OpenAI-compatible services
// don't require authentication but the client insists on a value.
func token(config *ai.Config) string {
	if config.APIKey == "" {
		return "none"
	}
	return config.APIKey
}

// call waits for a rate limiter slot and runs fn under the configured timeout.
func call(ctx context.Context, limiter *rate.Limiter, timeout time.Duration, fn func(ctx context.Context) error) error {
	if err := limiter.Wait(ctx); err != nil {
		return fmt.Errorf("%w: rate limiter: %w", core.ErrExternalService, err)
	}
	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return fn(callCtx)
}
