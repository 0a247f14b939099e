package ratelimit

import (
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var longToken = strings.Repeat("a", 88)

func testSettings(spacing time.Duration) Settings {
	return Settings{
		RatelimitTime:     spacing,
		HardRatelimitTime: 2 * time.Second,
		CleanupInterval:   time.Minute,
		Enabled:           true,
	}
}

func TestCheckRefusesBadTokenLengths(t *testing.T) {
	l := New(testSettings(time.Second))

	for _, token := range []string{"", "shortToken", strings.Repeat("a", 63), strings.Repeat("a", 513)} {
		ok, wait := l.Check(token)
		assert.False(t, ok, "token of length %d must be refused", len(token))
		assert.Zero(t, wait)
	}
	assert.Zero(t, l.Len(), "refused tokens must not create entries")
}

func TestCheckAcceptsBoundaryLengths(t *testing.T) {
	l := New(testSettings(time.Second))

	ok, wait := l.Check(strings.Repeat("a", 64))
	assert.True(t, ok)
	assert.Zero(t, wait)

	ok, wait = l.Check(strings.Repeat("b", 512))
	assert.True(t, ok)
	assert.Zero(t, wait)
}

func TestFirstCheckIsImmediate(t *testing.T) {
	l := New(testSettings(10 * time.Second))

	start := time.Now()
	ok, wait := l.Check(longToken)
	require.True(t, ok)
	assert.Zero(t, wait)
	assert.Less(t, time.Since(start), 100*time.Millisecond)
	assert.Equal(t, 1, l.Len())
}

func TestSequentialChecksReserveContiguousSlots(t *testing.T) {
	const spacing = 500 * time.Millisecond
	l := New(testSettings(spacing))

	ok, wait := l.Check(longToken)
	require.True(t, ok)
	require.Zero(t, wait)

	// Each admitted caller sleeps its wait before the next check, the
	// way the dispatch pipeline does.
	start := time.Now()
	for i := 0; i < 3; i++ {
		ok, wait := l.Check(longToken)
		require.True(t, ok, "sequential check %d must admit", i)
		require.Greater(t, wait, time.Duration(0))
		require.LessOrEqual(t, wait, spacing)
		time.Sleep(wait)
	}
	elapsed := time.Since(start)
	assert.GreaterOrEqual(t, elapsed+50*time.Millisecond, 3*spacing,
		"three paced pushes must take at least three windows")
}

func TestCheckAfterLapsedWindowIsImmediate(t *testing.T) {
	const spacing = 200 * time.Millisecond
	l := New(testSettings(spacing))

	ok, _ := l.Check(longToken)
	require.True(t, ok)

	time.Sleep(spacing + 50*time.Millisecond)

	ok, wait := l.Check(longToken)
	assert.True(t, ok)
	assert.Zero(t, wait, "a lapsed window must reset instead of queueing")
}

func TestPenalizeBlocksAbsolutely(t *testing.T) {
	settings := testSettings(100 * time.Millisecond)
	settings.HardRatelimitTime = 500 * time.Millisecond
	l := New(settings)

	ok, _ := l.Check(longToken)
	require.True(t, ok)

	l.Penalize(longToken)

	deadline := time.Now().Add(400 * time.Millisecond)
	for time.Now().Before(deadline) {
		ok, wait := l.Check(longToken)
		assert.False(t, ok, "checks inside the hard window must be refused")
		assert.Zero(t, wait)
		time.Sleep(50 * time.Millisecond)
	}

	time.Sleep(200 * time.Millisecond)
	ok, _ = l.Check(longToken)
	assert.True(t, ok, "the hard window must lift once it expires")
}

func TestPenalizeCreatesEntry(t *testing.T) {
	l := New(testSettings(time.Second))

	l.Penalize(longToken)
	require.Equal(t, 1, l.Len())

	ok, wait := l.Check(longToken)
	assert.False(t, ok)
	assert.Zero(t, wait)
}

func TestDisabledLimiterAdmitsEverything(t *testing.T) {
	settings := testSettings(time.Second)
	settings.Enabled = false
	l := New(settings)

	for i := 0; i < 5; i++ {
		ok, wait := l.Check("short")
		assert.True(t, ok)
		assert.Zero(t, wait)
	}
	assert.Zero(t, l.Len())
}

func TestSweepDropsIdleEntries(t *testing.T) {
	settings := testSettings(50 * time.Millisecond)
	settings.CleanupInterval = 100 * time.Millisecond
	l := New(settings)

	ok, _ := l.Check(longToken)
	require.True(t, ok)
	require.Equal(t, 1, l.Len())

	// Entry still fresh: sweep must keep it.
	l.Sweep()
	assert.Equal(t, 1, l.Len())

	time.Sleep(150 * time.Millisecond)
	l.Sweep()
	assert.Zero(t, l.Len())
}

func TestSweepKeepsPenalizedEntries(t *testing.T) {
	settings := testSettings(50 * time.Millisecond)
	settings.CleanupInterval = 50 * time.Millisecond
	settings.HardRatelimitTime = time.Minute
	l := New(settings)

	l.Penalize(longToken)
	time.Sleep(100 * time.Millisecond)

	l.Sweep()
	assert.Equal(t, 1, l.Len(), "entries inside a hard window must survive sweeps")
}

func TestConcurrentChecksSerializePerToken(t *testing.T) {
	const spacing = 200 * time.Millisecond
	l := New(testSettings(spacing))

	ok, wait := l.Check(longToken)
	require.True(t, ok)
	require.Zero(t, wait)

	// A concurrent burst: exactly one caller may hold the next slot, the
	// rest must be refused while that reservation is pending.
	var admitted, refused int
	var mu sync.Mutex
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, wait := l.Check(longToken)
			mu.Lock()
			defer mu.Unlock()
			if ok {
				admitted++
				assert.Greater(t, wait, time.Duration(0))
			} else {
				refused++
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, admitted, "only the first contender gets the reserved slot")
	assert.Equal(t, 7, refused)
}

func TestDistinctTokensDoNotInterfere(t *testing.T) {
	l := New(testSettings(10 * time.Second))

	other := strings.Repeat("b", 88)
	ok, wait := l.Check(longToken)
	require.True(t, ok)
	require.Zero(t, wait)

	ok, wait = l.Check(other)
	assert.True(t, ok)
	assert.Zero(t, wait)
	assert.Equal(t, 2, l.Len())
}
