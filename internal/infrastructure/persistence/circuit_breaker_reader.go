package persistence

import (
	"context"
	"errors"
	"fmt"
	"time"

	"ideagraph-backend/internal/domain/idea"
	appErrors "ideagraph-backend/pkg/errors"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"
)

// CircuitBreakerConfig configures the breaker in front of the idea store.
type CircuitBreakerConfig struct {
	Name         string
	MaxRequests  uint32
	Interval     time.Duration
	Timeout      time.Duration
	FailureRatio float64
	MinRequests  uint32
}

// CircuitBreakerIdeaReader fails fast with an unavailable error while the
// wrapped store keeps failing. Not-found, validation and cancellation errors
// come from the caller and do not count as failures.
type CircuitBreakerIdeaReader struct {
	inner  IdeaReader
	cb     *gobreaker.CircuitBreaker
	logger *zap.Logger
}

var _ IdeaReader = (*CircuitBreakerIdeaReader)(nil)

// NewCircuitBreakerIdeaReader wraps inner. onStateChange may be nil.
func NewCircuitBreakerIdeaReader(inner IdeaReader, cfg CircuitBreakerConfig, logger *zap.Logger, onStateChange func(name string, from, to gobreaker.State)) *CircuitBreakerIdeaReader {
	r := &CircuitBreakerIdeaReader{inner: inner, logger: logger}

	r.cb = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        cfg.Name,
		MaxRequests: cfg.MaxRequests,
		Interval:    cfg.Interval,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			// Only trip if we have enough requests to make a decision
			if counts.Requests < cfg.MinRequests {
				return false
			}
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return failureRatio >= cfg.FailureRatio
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("Circuit breaker state changed",
				zap.String("name", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
			if onStateChange != nil {
				onStateChange(name, from, to)
			}
		},
		IsSuccessful: func(err error) bool {
			return err == nil || appErrors.IsNotFound(err) || appErrors.IsValidation(err) || appErrors.IsCanceled(err)
		},
	})
	return r
}

// ListIdeas calls the wrapped reader through the breaker.
func (r *CircuitBreakerIdeaReader) ListIdeas(ctx context.Context, userID string) ([]idea.Idea, error) {
	result, err := r.cb.Execute(func() (interface{}, error) {
		return r.inner.ListIdeas(ctx, userID)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			r.logger.Warn("Circuit breaker rejected idea load",
				zap.String("name", r.cb.Name()),
				zap.String("userID", userID),
			)
			return nil, appErrors.NewUnavailable(fmt.Sprintf("idea store temporarily unavailable (%s)", r.cb.State()), err)
		}
		return nil, err
	}
	return result.([]idea.Idea), nil
}

// State returns the breaker state
func (r *CircuitBreakerIdeaReader) State() gobreaker.State {
	return r.cb.State()
}
