package middleware

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"
)

func TestRateLimiter_ConcurrentFirstRequestsShareOneLimiter(t *testing.T) {
	rl := NewRateLimiter(60)

	const goroutines = 32
	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		limiters = make(map[*rate.Limiter]struct{})
	)

	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			l := rl.GetLimiter("198.51.100.7")
			mu.Lock()
			limiters[l] = struct{}{}
			mu.Unlock()
		}()
	}
	wg.Wait()

	// A second limiter for the same IP would hand out extra burst.
	assert.Len(t, limiters, 1)
}

func TestRateLimiter_SeparateIPsGetSeparateLimiters(t *testing.T) {
	rl := NewRateLimiter(60)

	a := rl.GetLimiter("10.0.0.1")
	b := rl.GetLimiter("10.0.0.2")
	require.NotNil(t, a)
	require.NotNil(t, b)
	assert.NotSame(t, a, b)

	assert.Same(t, a, rl.GetLimiter("10.0.0.1"))
}
