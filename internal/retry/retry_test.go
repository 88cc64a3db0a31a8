package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errFlaky = errors.New("flaky")
var errFatal = errors.New("fatal")

func classify(err error) Decision {
	if errors.Is(err, errFatal) {
		return Fatal
	}
	return Retryable
}

func TestDoRetryCeiling(t *testing.T) {
	calls := 0
	var retries []State
	_, st, err := Do(context.Background(), Policy{
		MaxAttempts: 4,
		Classify:    classify,
		Delay:       Fixed(time.Millisecond),
		OnRetry:     func(s State) { retries = append(retries, s) },
	}, func(ctx context.Context, attempt int) (string, error) {
		assert.Equal(t, calls, attempt)
		calls++
		return "", errFlaky
	})
	require.ErrorIs(t, err, errFlaky)
	assert.Equal(t, 4, calls)
	assert.Equal(t, 4, st.Attempt)
	assert.Len(t, retries, 3)
	assert.Equal(t, time.Millisecond, retries[0].NextDelay)
}

func TestDoFatalShortCircuit(t *testing.T) {
	calls := 0
	_, st, err := Do(context.Background(), Policy{MaxAttempts: 10, Classify: classify, Delay: Fixed(time.Hour)},
		func(ctx context.Context, attempt int) (int, error) {
			calls++
			return 0, errFatal
		})
	require.ErrorIs(t, err, errFatal)
	assert.Equal(t, 1, calls)
	assert.Equal(t, 1, st.Attempt)
}

func TestDoSucceedsAfterFailures(t *testing.T) {
	calls := 0
	v, st, err := Do(context.Background(), Policy{MaxAttempts: 5, Classify: classify},
		func(ctx context.Context, attempt int) (int, error) {
			calls++
			if calls < 3 {
				return 0, errFlaky
			}
			return 42, nil
		})
	require.NoError(t, err)
	assert.Equal(t, 42, v)
	assert.Equal(t, 3, st.Attempt)
	assert.NoError(t, st.LastError)
}

func TestDoZeroAttemptsRunsOnce(t *testing.T) {
	calls := 0
	_, _, err := Do(context.Background(), Policy{}, func(ctx context.Context, attempt int) (int, error) {
		calls++
		return 0, errFlaky
	})
	require.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestDoStopsWhenContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()
	_, _, err := Do(ctx, Policy{MaxAttempts: 100, Classify: classify, Delay: Fixed(time.Hour)},
		func(ctx context.Context, attempt int) (int, error) {
			calls++
			return 0, errFlaky
		})
	require.ErrorIs(t, err, errFlaky)
	assert.Equal(t, 1, calls)
}

func TestLinear(t *testing.T) {
	d := Linear(2*time.Second, 500*time.Millisecond, 15*time.Second)
	assert.Equal(t, 2*time.Second, d(0))
	assert.Equal(t, 2500*time.Millisecond, d(1))
	assert.Equal(t, 7*time.Second, d(10))
	assert.Equal(t, 15*time.Second, d(26))
	assert.Equal(t, 15*time.Second, d(1000))
	assert.Equal(t, 2*time.Second, d(-3))
}

func TestSleepCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	start := time.Now()
	err := Sleep(ctx, time.Minute)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Less(t, time.Since(start), time.Second)
}
