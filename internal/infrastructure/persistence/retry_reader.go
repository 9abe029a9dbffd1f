package persistence

import (
	"context"
	"math"
	"math/rand"
	"sync"
	"time"

	"ideagraph-backend/internal/domain/idea"
	appErrors "ideagraph-backend/pkg/errors"

	"go.uber.org/zap"
)

// RetryConfig configures retry behavior for idea loads.
type RetryConfig struct {
	MaxRetries    int           // Attempts after the first one
	InitialDelay  time.Duration // Delay before the first retry
	MaxDelay      time.Duration // Cap on the backoff
	BackoffFactor float64       // Multiplier per attempt
	JitterFactor  float64       // Random variation, 0.0 to 1.0
}

// DefaultRetryConfig returns the retry settings used when none are configured.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:    2,
		InitialDelay:  100 * time.Millisecond,
		MaxDelay:      2 * time.Second,
		BackoffFactor: 2.0,
		JitterFactor:  0.1,
	}
}

// RetryIdeaReader retries idea loads that fail with an unavailable error,
// backing off exponentially with jitter. Other errors are returned at once.
type RetryIdeaReader struct {
	inner  IdeaReader
	config RetryConfig
	logger *zap.Logger

	mu   sync.Mutex
	rand *rand.Rand
}

var _ IdeaReader = (*RetryIdeaReader)(nil)

// NewRetryIdeaReader wraps inner.
func NewRetryIdeaReader(inner IdeaReader, config RetryConfig, logger *zap.Logger) *RetryIdeaReader {
	return &RetryIdeaReader{
		inner:  inner,
		config: config,
		logger: logger,
		rand:   rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// ListIdeas loads the user's ideas, retrying transient failures.
func (r *RetryIdeaReader) ListIdeas(ctx context.Context, userID string) ([]idea.Idea, error) {
	var lastErr error

	for attempt := 0; attempt <= r.config.MaxRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, appErrors.FromContext(err, "idea load abandoned")
		}

		ideas, err := r.inner.ListIdeas(ctx, userID)
		if err == nil {
			if attempt > 0 {
				r.logger.Info("Idea load succeeded after retry",
					zap.String("userID", userID),
					zap.Int("attempt", attempt),
				)
			}
			return ideas, nil
		}

		lastErr = err
		if attempt == r.config.MaxRetries || !appErrors.IsUnavailable(err) {
			break
		}

		delay := r.delay(attempt)
		r.logger.Warn("Retrying idea load",
			zap.String("userID", userID),
			zap.Int("attempt", attempt+1),
			zap.Duration("delay", delay),
			zap.Error(err),
		)

		timer := time.NewTimer(delay)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return nil, appErrors.FromContext(ctx.Err(), "idea load abandoned during retry")
		}
	}

	return nil, lastErr
}

// delay computes the backoff before the next attempt.
func (r *RetryIdeaReader) delay(attempt int) time.Duration {
	base := float64(r.config.InitialDelay) * math.Pow(r.config.BackoffFactor, float64(attempt))
	if base > float64(r.config.MaxDelay) {
		base = float64(r.config.MaxDelay)
	}

	r.mu.Lock()
	jitter := r.config.JitterFactor * base * (r.rand.Float64()*2 - 1)
	r.mu.Unlock()

	if d := base + jitter; d > 0 {
		return time.Duration(d)
	}
	return 0
}
