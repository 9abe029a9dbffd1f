package persistence

import (
	"context"
	"errors"
	"testing"
	"time"

	"ideagraph-backend/internal/domain/idea"
	appErrors "ideagraph-backend/pkg/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type scriptedReader struct {
	errs  []error
	calls int
}

func (s *scriptedReader) ListIdeas(context.Context, string) ([]idea.Idea, error) {
	s.calls++
	if s.calls <= len(s.errs) {
		return nil, s.errs[s.calls-1]
	}
	return []idea.Idea{{ID: "A"}}, nil
}

func fastRetry() RetryConfig {
	return RetryConfig{
		MaxRetries:    2,
		InitialDelay:  time.Millisecond,
		MaxDelay:      5 * time.Millisecond,
		BackoffFactor: 2,
	}
}

func TestRetryIdeaReader(t *testing.T) {
	throttled := appErrors.NewUnavailable("throttled", errors.New("ProvisionedThroughputExceeded"))

	tests := []struct {
		name      string
		errs      []error
		wantCalls int
		wantErr   func(error) bool
	}{
		{"first try", nil, 1, nil},
		{"recovers after transient failures", []error{throttled, throttled}, 3, nil},
		{"gives up after max retries", []error{throttled, throttled, throttled}, 3, appErrors.IsUnavailable},
		{"does not retry caller errors", []error{appErrors.NewNotFound("missing")}, 1, appErrors.IsNotFound},
		{"does not retry internal errors", []error{appErrors.NewInternal("boom", nil)}, 1, appErrors.IsInternal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			inner := &scriptedReader{errs: tt.errs}
			reader := NewRetryIdeaReader(inner, fastRetry(), zap.NewNop())

			ideas, err := reader.ListIdeas(context.Background(), "u1")
			assert.Equal(t, tt.wantCalls, inner.calls)
			if tt.wantErr != nil {
				require.Error(t, err)
				assert.True(t, tt.wantErr(err))
				return
			}
			require.NoError(t, err)
			assert.Len(t, ideas, 1)
		})
	}
}

func TestRetryIdeaReaderHonoursCancellation(t *testing.T) {
	throttled := appErrors.NewUnavailable("throttled", nil)
	inner := &scriptedReader{errs: []error{throttled, throttled, throttled}}

	cfg := fastRetry()
	cfg.InitialDelay = time.Hour
	cfg.MaxDelay = time.Hour
	reader := NewRetryIdeaReader(inner, cfg, zap.NewNop())

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := reader.ListIdeas(ctx, "u1")
	require.Error(t, err)
	assert.True(t, appErrors.IsUnavailable(err))
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, 1, inner.calls)
}

func TestRetryIdeaReaderReportsCallerCancellation(t *testing.T) {
	throttled := appErrors.NewUnavailable("throttled", nil)
	inner := &scriptedReader{errs: []error{throttled, throttled, throttled}}

	cfg := fastRetry()
	cfg.InitialDelay = time.Hour
	cfg.MaxDelay = time.Hour
	reader := NewRetryIdeaReader(inner, cfg, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	_, err := reader.ListIdeas(ctx, "u1")
	require.Error(t, err)
	assert.True(t, appErrors.IsCanceled(err))
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, inner.calls)

	_, err = reader.ListIdeas(ctx, "u1")
	assert.True(t, appErrors.IsCanceled(err))
	assert.Equal(t, 1, inner.calls, "an abandoned request does not reach the store")
}

func TestRetryDelayIsCapped(t *testing.T) {
	reader := NewRetryIdeaReader(&scriptedReader{}, RetryConfig{
		InitialDelay:  100 * time.Millisecond,
		MaxDelay:      300 * time.Millisecond,
		BackoffFactor: 2,
	}, zap.NewNop())

	assert.Equal(t, 100*time.Millisecond, reader.delay(0))
	assert.Equal(t, 200*time.Millisecond, reader.delay(1))
	assert.Equal(t, 300*time.Millisecond, reader.delay(5))
}
