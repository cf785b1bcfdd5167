package circuit_breaker_test

import (
	"errors"
	"testing"
	"time"

	"github.com/Astemirdum/library-catalog/pkg/circuit_breaker"
	"github.com/stretchr/testify/require"
)

func Test_circuitBreaker_Call(t *testing.T) {
	t.Parallel()
	errService := errors.New("service error")
	successfulService := func() error { return nil }
	failingService := func() error { return errService }

	cb := circuit_breaker.New(10, 50*time.Millisecond, 0.3, 3)

	for i := 0; i < 20; i++ {
		require.NoError(t, cb.Call(successfulService))
	}
	require.Equal(t, circuit_breaker.Closed, cb.State())

	// 3 failures out of 10 reach the 30% threshold
	for i := 0; i < 3; i++ {
		require.ErrorIs(t, cb.Call(failingService), errService)
	}
	require.Equal(t, circuit_breaker.Open, cb.State())

	called := false
	err := cb.Call(func() error {
		called = true
		return nil
	})
	require.ErrorIs(t, err, circuit_breaker.ErrOpenCB)
	require.False(t, called)

	time.Sleep(80 * time.Millisecond)

	// a failed probe in half-open goes straight back to open
	require.ErrorIs(t, cb.Call(failingService), errService)
	require.Equal(t, circuit_breaker.Open, cb.State())

	time.Sleep(80 * time.Millisecond)

	for i := 0; i < 2; i++ {
		require.NoError(t, cb.Call(successfulService))
		require.Equal(t, circuit_breaker.HalfOpen, cb.State())
	}
	require.NoError(t, cb.Call(successfulService))
	require.Equal(t, circuit_breaker.Closed, cb.State())
}

func Test_circuitBreaker_Reset(t *testing.T) {
	t.Parallel()
	cb := circuit_breaker.New(2, time.Hour, 0.5, 1)
	require.Error(t, cb.Call(func() error { return errors.New("boom") }))
	require.Equal(t, circuit_breaker.Open, cb.State())

	cb.Reset()
	require.Equal(t, circuit_breaker.Closed, cb.State())
	require.NoError(t, cb.Call(func() error { return nil }))
}
