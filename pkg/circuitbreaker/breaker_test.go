package circuitbreaker

import (
	"errors"
	"testing"
	"time"

	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_TripsAtConfiguredRatio(t *testing.T) {
	cb := New("test", Config{
		MaxRequests:  1,
		Timeout:      time.Minute,
		MinRequests:  3,
		FailureRatio: 0.5,
	})

	boom := errors.New("upstream down")
	for i := 0; i < 3; i++ {
		_, err := cb.Execute(func() (interface{}, error) { return nil, boom })
		require.ErrorIs(t, err, boom)
	}

	_, err := cb.Execute(func() (interface{}, error) { return "ok", nil })
	assert.ErrorIs(t, err, gobreaker.ErrOpenState)
}

func TestNew_StaysClosedBelowMinRequests(t *testing.T) {
	cb := New("test", Config{
		MaxRequests:  1,
		Timeout:      time.Minute,
		MinRequests:  5,
		FailureRatio: 0.5,
	})

	boom := errors.New("upstream down")
	for i := 0; i < 3; i++ {
		cb.Execute(func() (interface{}, error) { return nil, boom })
	}

	got, err := cb.Execute(func() (interface{}, error) { return "ok", nil })
	require.NoError(t, err)
	assert.Equal(t, "ok", got)
}

func TestNew_ZeroConfigFallsBackToDefaults(t *testing.T) {
	cb := New("test", Config{})
	require.NotNil(t, cb)

	got, err := cb.Execute(func() (interface{}, error) { return 42, nil })
	require.NoError(t, err)
	assert.Equal(t, 42, got)
}
