package completion

import (
	"context"
	"errors"
	"math"
	"math/rand/v2"
	"time"

	"github.com/pario-ai/wanderplan/pkg/config"
)

// Backoff computes exponential delays between retry attempts.
type Backoff struct {
	cfg    config.BackoffConfig
	random func() float64
}

// NewBackoff returns a Backoff for cfg. A zero Initial disables waiting.
func NewBackoff(cfg config.BackoffConfig) Backoff {
	if cfg.Multiplier <= 0 {
		cfg.Multiplier = 2
	}
	return Backoff{cfg: cfg, random: rand.Float64}
}

// Delay returns the wait before retry n (n >= 1): initial * multiplier^(n-1),
// capped at max, with +/-30% jitter when enabled.
func (b Backoff) Delay(n int) time.Duration {
	if b.cfg.Initial <= 0 || n < 1 {
		return 0
	}
	delay := float64(b.cfg.Initial) * math.Pow(b.cfg.Multiplier, float64(n-1))
	if b.cfg.Max > 0 && delay > float64(b.cfg.Max) {
		delay = float64(b.cfg.Max)
	}
	if b.cfg.Jitter && b.random != nil {
		delay += (b.random() - 0.5) * 2 * delay * 0.3
	}
	if delay < 0 {
		delay = float64(b.cfg.Initial)
	}
	return time.Duration(delay)
}

// IsRetryable classifies a provider error. Transport errors and timeouts
// are retryable; status errors only for 408, 429 and 5xx.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	var se *StatusError
	if errors.As(err, &se) {
		return se.Retryable()
	}
	return !errors.Is(err, context.Canceled)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
