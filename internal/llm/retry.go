package llm

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v5"
	"go.uber.org/zap"
)

// RetryProvider retries transient failures with jittered exponential
// backoff. Invalid responses get a single retry; truncated output and
// context errors are returned immediately.
type RetryProvider struct {
	inner  Provider
	config RetryConfig
	logger *zap.Logger
}

// WithRetry wraps p. logger may be nil.
func WithRetry(p Provider, cfg RetryConfig, logger *zap.Logger) Provider {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.MaxAttempts < 1 {
		cfg.MaxAttempts = 1
	}
	return &RetryProvider{inner: p, config: cfg, logger: logger}
}

func (r *RetryProvider) Generate(ctx context.Context, req Request) (*Response, error) {
	var (
		lastErr       error
		invalidBudget = 1
	)

	attempt := func() (*Response, error) {
		resp, err := r.inner.Generate(ctx, req)
		if err == nil {
			return resp, nil
		}
		lastErr = err

		if !retryable(err, &invalidBudget) {
			return nil, backoff.Permanent(err)
		}
		var rl *ErrRateLimit
		if errors.As(err, &rl) && rl.RetryAfter > 0 {
			return nil, errors.Join(err, &backoff.RetryAfterError{Duration: rl.RetryAfter})
		}
		return nil, err
	}

	tries := 0
	resp, err := backoff.Retry(ctx, attempt,
		backoff.WithBackOff(r.newBackOff()),
		backoff.WithMaxTries(uint(r.config.MaxAttempts)),
		backoff.WithMaxElapsedTime(0),
		backoff.WithNotify(func(err error, wait time.Duration) {
			tries++
			r.logger.Info("retrying llm request",
				zap.String("purpose", PurposeFrom(ctx)),
				zap.Int("attempt", tries),
				zap.Duration("wait", wait),
				zap.Error(lastErr),
			)
		}),
	)
	if err == nil {
		return resp, nil
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return nil, ctxErr
	}
	return nil, lastErr
}

func (r *RetryProvider) ModelID() string {
	return r.inner.ModelID()
}

func (r *RetryProvider) newBackOff() *backoff.ExponentialBackOff {
	b := backoff.NewExponentialBackOff()
	b.RandomizationFactor = 0.2
	if r.config.InitialWait > 0 {
		b.InitialInterval = r.config.InitialWait
	}
	if r.config.MaxWait > 0 {
		b.MaxInterval = r.config.MaxWait
	}
	if r.config.Multiplier >= 1 {
		b.Multiplier = r.config.Multiplier
	}
	return b
}

// retryable consumes invalidBudget when err is an invalid response.
func retryable(err error, invalidBudget *int) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	var maxTok *ErrMaxTokensExceeded
	if errors.As(err, &maxTok) {
		return false
	}

	var invResp *ErrInvalidResponse
	if errors.As(err, &invResp) {
		if *invalidBudget == 0 {
			return false
		}
		*invalidBudget--
	}

	// Rate limits, outages and raw transport errors are all worth another try.
	return true
}
