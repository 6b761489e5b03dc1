package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRetrier_RetriesRetryableUntilSuccess(t *testing.T) {
	r := New(WithMaxAttempts(3), WithInitialDelay(time.Millisecond), WithJitter(0))

	attempts := 0
	err := r.Do(context.Background(), func(context.Context) error {
		attempts++
		if attempts < 3 {
			return Retryable(errors.New("flaky"))
		}
		return nil
	})

	assert.NoError(t, err)
	assert.Equal(t, 3, attempts)
}

func TestRetrier_StopsOnPlainError(t *testing.T) {
	r := New(WithMaxAttempts(5), WithInitialDelay(time.Millisecond))
	plain := errors.New("bad request")

	attempts := 0
	err := r.Do(context.Background(), func(context.Context) error {
		attempts++
		return plain
	})

	assert.ErrorIs(t, err, plain)
	assert.Equal(t, 1, attempts)
}

func TestRetrier_UnwrapsAfterLastAttempt(t *testing.T) {
	r := New(WithMaxAttempts(2), WithInitialDelay(time.Millisecond))
	cause := errors.New("still down")

	err := r.Do(context.Background(), func(context.Context) error { return Retryable(cause) })

	assert.Equal(t, cause, err)
}

func TestRetrier_PermanentShortCircuits(t *testing.T) {
	r := New(WithMaxAttempts(5), WithRetryIf(func(error) bool { return true }))
	cause := errors.New("forbidden")

	attempts := 0
	err := r.Do(context.Background(), func(context.Context) error {
		attempts++
		return Permanent(cause)
	})

	assert.Equal(t, cause, err)
	assert.Equal(t, 1, attempts)
}

func TestDoWithData(t *testing.T) {
	v, err := DoWithData(context.Background(), New(), func(context.Context) (int, error) { return 42, nil })
	assert.NoError(t, err)
	assert.Equal(t, 42, v)
}
