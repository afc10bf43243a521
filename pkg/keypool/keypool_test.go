package keypool

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTake_RoundRobin(t *testing.T) {
	p := New([]string{"a", "b", "c"}, 10, time.Hour)

	var got []string
	for i := 0; i < 6; i++ {
		key, err := p.Take(1)
		require.NoError(t, err)
		got = append(got, key)
	}

	assert.Equal(t, []string{"a", "b", "c", "a", "b", "c"}, got)
}

func TestTake_EmptyPool(t *testing.T) {
	p := New(nil, 10, time.Hour)

	_, err := p.Take(1)
	assert.ErrorIs(t, err, ErrNoKeys)
}

// TestTake_QuotaFairness tests that with 3 credentials of quota 5, no
// credential is selected a 6th time before the window resets.
func TestTake_QuotaFairness(t *testing.T) {
	p := New([]string{"a", "b", "c"}, 5, time.Hour)

	counts := map[string]int{}
	for i := 0; i < 15; i++ {
		key, err := p.Take(1)
		require.NoError(t, err)
		counts[key]++
	}

	assert.Equal(t, 5, counts["a"])
	assert.Equal(t, 5, counts["b"])
	assert.Equal(t, 5, counts["c"])

	// The 16th request degrades to the least-used credential instead of
	// failing, but tracked usage never silently resets.
	key, err := p.Take(1)
	require.NoError(t, err)
	assert.Contains(t, []string{"a", "b", "c"}, key)

	for _, u := range p.Snapshot() {
		assert.True(t, u.Exhausted)
		assert.GreaterOrEqual(t, u.Used, 5)
	}
}

func TestTake_SkipsExhausted(t *testing.T) {
	p := New([]string{"a", "b"}, 10, time.Hour)

	p.MarkExhausted("a")

	key, err := p.Take(1)
	require.NoError(t, err)
	assert.Equal(t, "b", key)

	key, err = p.Take(1)
	require.NoError(t, err)
	assert.Equal(t, "b", key)
}

func TestMarkExhausted_PinsToLimit(t *testing.T) {
	p := New([]string{"a", "b"}, 100, time.Hour)

	_, err := p.Take(30) // a: 30
	require.NoError(t, err)

	p.MarkExhausted("a")

	assert.Equal(t, 0, p.Remaining("a"))
	assert.Equal(t, 100, p.Remaining("b"))

	// Pinning never lowers usage that already exceeded the limit.
	p.MarkExhausted("a")
	assert.Equal(t, 0, p.Remaining("a"))
}

func TestWindowRollover_ResetsUsage(t *testing.T) {
	current := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	clock := func() time.Time { return current }

	p := New([]string{"a"}, 5, 24*time.Hour, WithClock(clock))

	for i := 0; i < 5; i++ {
		_, err := p.Take(1)
		require.NoError(t, err)
	}
	assert.Equal(t, 0, p.Remaining("a"))

	// Window elapses: usage resets before selection.
	current = current.Add(24 * time.Hour)

	key, err := p.Take(1)
	require.NoError(t, err)
	assert.Equal(t, "a", key)
	assert.Equal(t, 4, p.Remaining("a"))
}

func TestTake_LeastUsedFallback(t *testing.T) {
	p := New([]string{"a", "b"}, 5, time.Hour)

	p.MarkExhausted("a")
	p.MarkExhausted("b")

	// Both pinned at 5; degradation picks a and pushes it to 7.
	_, err := p.Take(2)
	require.NoError(t, err)

	key, err := p.Take(1)
	require.NoError(t, err)
	assert.Equal(t, "b", key, "least-used credential preferred during degradation")
}

func TestTake_Concurrent(t *testing.T) {
	p := New([]string{"a", "b", "c"}, 1000, time.Hour)

	const goroutines = 50
	const perGoroutine = 20

	var wg sync.WaitGroup
	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < perGoroutine; j++ {
				_, err := p.Take(1)
				assert.NoError(t, err)
			}
		}()
	}
	wg.Wait()

	total := 0
	for _, u := range p.Snapshot() {
		total += u.Used
	}
	assert.Equal(t, goroutines*perGoroutine, total, "every take accounted exactly once")
}
