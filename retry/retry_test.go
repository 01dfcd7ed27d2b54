package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func policy(attempts int) Policy {
	return Policy{MaxAttempts: attempts, BaseDelay: 10 * time.Millisecond}
}

func TestDo_Success(t *testing.T) {
	attempts := 0
	err := Do(context.Background(), policy(3), func(context.Context) error {
		attempts++
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 1, attempts, "should succeed on first try")
}

func TestDo_EventualSuccess(t *testing.T) {
	attempts := 0
	err := Do(context.Background(), policy(5), func(context.Context) error {
		attempts++
		if attempts < 3 {
			return errors.New("temporary error")
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, attempts, "should succeed on third attempt")
}

func TestDo_AllAttemptsFail(t *testing.T) {
	attempts := 0
	expectedErr := errors.New("persistent error")
	err := Do(context.Background(), policy(3), func(context.Context) error {
		attempts++
		return expectedErr
	})
	require.Error(t, err)
	assert.Equal(t, expectedErr, err, "should return the original error")
	assert.Equal(t, 3, attempts, "should attempt exactly maxAttempts times")
}

func TestDo_PermanentStopsImmediately(t *testing.T) {
	attempts := 0
	cause := errors.New("dimension mismatch")
	err := Do(context.Background(), policy(5), func(context.Context) error {
		attempts++
		return Permanent(cause)
	})
	assert.Equal(t, cause, err)
	assert.Equal(t, 1, attempts)
}

func TestDo_ContextCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	attempts := 0
	err := Do(ctx, policy(10), func(context.Context) error {
		attempts++
		if attempts == 2 {
			cancel()
		}
		return errors.New("error")
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.LessOrEqual(t, attempts, 2, "should stop when context is canceled")
}

func TestDo_ExponentialBackoff(t *testing.T) {
	attempts := 0
	var delays []time.Duration
	lastTime := time.Now()

	err := Do(context.Background(), policy(5), func(context.Context) error {
		attempts++
		if attempts > 1 {
			delays = append(delays, time.Since(lastTime))
		}
		lastTime = time.Now()
		if attempts < 4 {
			return errors.New("error")
		}
		return nil
	})
	require.NoError(t, err)
	require.Len(t, delays, 3)
	assert.Greater(t, delays[1], delays[0], "second delay should be greater than first")
	assert.Greater(t, delays[2], delays[1], "third delay should be greater than second")
}

func TestDo_InvalidMaxAttempts(t *testing.T) {
	for _, n := range []int{0, -1} {
		attempts := 0
		err := Do(context.Background(), policy(n), func(context.Context) error {
			attempts++
			return nil
		})
		assert.ErrorIs(t, err, ErrInvalidMaxAttempts)
		assert.Equal(t, 0, attempts)
	}
}

func TestPermanentNil(t *testing.T) {
	assert.NoError(t, Permanent(nil))
}
