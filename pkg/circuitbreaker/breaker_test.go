package circuitbreaker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errFail = errors.New("downstream failure")

func failingN(n int) func() error {
	calls := 0
	return func() error {
		calls++
		if calls <= n {
			return errFail
		}
		return nil
	}
}

func TestExecute_StaysClosedOnSuccess(t *testing.T) {
	cb := New("test", Config{FailureThreshold: 3})

	for i := 0; i < 10; i++ {
		require.NoError(t, cb.Execute(context.Background(), func() error { return nil }))
	}
	assert.Equal(t, StateClosed, cb.State())
}

func TestExecute_OpensAfterThreshold(t *testing.T) {
	cb := New("test", Config{FailureThreshold: 3, Timeout: time.Minute})

	for i := 0; i < 3; i++ {
		require.ErrorIs(t, cb.Execute(context.Background(), func() error { return errFail }), errFail)
	}
	assert.Equal(t, StateOpen, cb.State())

	err := cb.Execute(context.Background(), func() error { return nil })
	assert.ErrorIs(t, err, ErrCircuitOpen)
}

func TestExecute_SuccessResetsFailureCount(t *testing.T) {
	cb := New("test", Config{FailureThreshold: 3})

	op := failingN(2)
	require.Error(t, cb.Execute(context.Background(), op))
	require.Error(t, cb.Execute(context.Background(), op))
	require.NoError(t, cb.Execute(context.Background(), op))

	// Two more failures should not trip a threshold of three.
	require.Error(t, cb.Execute(context.Background(), func() error { return errFail }))
	require.Error(t, cb.Execute(context.Background(), func() error { return errFail }))
	assert.Equal(t, StateClosed, cb.State())
}

func TestExecute_HalfOpenRecovery(t *testing.T) {
	cb := New("test", Config{
		MaxRequests:      2,
		FailureThreshold: 1,
		SuccessThreshold: 2,
		Timeout:          10 * time.Millisecond,
	})

	require.Error(t, cb.Execute(context.Background(), func() error { return errFail }))
	require.Equal(t, StateOpen, cb.State())

	time.Sleep(20 * time.Millisecond)
	require.Equal(t, StateHalfOpen, cb.State())

	require.NoError(t, cb.Execute(context.Background(), func() error { return nil }))
	require.NoError(t, cb.Execute(context.Background(), func() error { return nil }))
	assert.Equal(t, StateClosed, cb.State())
}

func TestExecute_HalfOpenFailureReopens(t *testing.T) {
	cb := New("test", Config{
		FailureThreshold: 1,
		Timeout:          10 * time.Millisecond,
	})

	require.Error(t, cb.Execute(context.Background(), func() error { return errFail }))
	time.Sleep(20 * time.Millisecond)
	require.Equal(t, StateHalfOpen, cb.State())

	require.Error(t, cb.Execute(context.Background(), func() error { return errFail }))
	assert.Equal(t, StateOpen, cb.State())
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "closed", StateClosed.String())
	assert.Equal(t, "half-open", StateHalfOpen.String())
	assert.Equal(t, "open", StateOpen.String())
}
