package blocklist

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testSettings() Settings {
	return Settings{
		InvalidToken:   BlockingTimes{Initial: 100 * time.Second, Extended: 500 * time.Second},
		PushError:      BlockingTimes{Initial: 10 * time.Second, Extended: 20 * time.Second},
		BlockExtension: 60 * time.Second,
	}
}

// fakeClock drives the blocklist's epoch-second arithmetic directly.
type fakeClock struct {
	now int64
	ok  bool
}

func newTestBlocklist(start int64) (*Blocklist, *fakeClock) {
	clock := &fakeClock{now: start, ok: true}
	b := New(testSettings())
	b.now = func() (int64, bool) { return clock.now, clock.ok }
	return b, clock
}

func TestUnknownTokenIsNotBlocked(t *testing.T) {
	b, _ := newTestBlocklist(1000)
	assert.False(t, b.IsBlocked("some-token"))
	assert.Zero(t, b.Len())
}

func TestBlockInvalidBlocksImmediately(t *testing.T) {
	b, _ := newTestBlocklist(1000)

	b.BlockInvalid("some-token")
	assert.True(t, b.IsBlocked("some-token"))
	assert.Equal(t, 1, b.Len())
}

func TestBlockExpires(t *testing.T) {
	b, clock := newTestBlocklist(1000)

	b.BlockOnPushError("some-token")
	require.True(t, b.IsBlocked("some-token"))

	// PushError initial window is 10s.
	clock.now = 1011
	assert.False(t, b.IsBlocked("some-token"))
	// The expired entry stays until swept.
	assert.Equal(t, 1, b.Len())
}

func TestLookupExtendsPastMidpoint(t *testing.T) {
	b, clock := newTestBlocklist(1000)

	// Invalid-token initial window: [1000, 1100].
	b.BlockInvalid("some-token")

	// Before the midpoint a lookup must not move the window.
	clock.now = 1040
	require.True(t, b.IsBlocked("some-token"))
	clock.now = 1101
	assert.False(t, b.IsBlocked("some-token"))

	// Reblock: [1101, 1201]; past the midpoint the lookup extends the
	// window to now + blockExtension.
	b.BlockInvalid("some-token")
	clock.now = 1160
	require.True(t, b.IsBlocked("some-token"))
	clock.now = 1220
	assert.True(t, b.IsBlocked("some-token"), "window must have been extended to 1160+60")
	clock.now = 1281
	assert.False(t, b.IsBlocked("some-token"))
}

func TestRepeatOffenseExtendsWithExtendedWindow(t *testing.T) {
	b, clock := newTestBlocklist(1000)

	// PushError windows: initial 10s, extended 20s. Block at [1000, 1010].
	b.BlockOnPushError("some-token")

	// A repeat offense past the midpoint extends by the extended
	// duration: block_end = 1006 + 20.
	clock.now = 1006
	b.BlockOnPushError("some-token")

	clock.now = 1011
	assert.True(t, b.IsBlocked("some-token"), "window must outlive the initial 10s")
	clock.now = 1027
	assert.False(t, b.IsBlocked("some-token"))
}

func TestRepeatOffenseBeforeMidpointKeepsWindow(t *testing.T) {
	b, clock := newTestBlocklist(1000)

	// [1000, 1010]; a repeat at 1002 is before the midpoint, the
	// window must not move.
	b.BlockOnPushError("some-token")
	clock.now = 1002
	b.BlockOnPushError("some-token")

	clock.now = 1011
	assert.False(t, b.IsBlocked("some-token"))
}

func TestReblockAfterExpiryStartsFreshWindow(t *testing.T) {
	b, clock := newTestBlocklist(1000)

	b.BlockOnPushError("some-token")
	clock.now = 1050
	require.False(t, b.IsBlocked("some-token"))

	// Reblock resets block_start: fresh window [1050, 1060].
	b.BlockOnPushError("some-token")
	require.True(t, b.IsBlocked("some-token"))
	clock.now = 1059
	assert.True(t, b.IsBlocked("some-token"))
}

func TestSweepDropsExpiredEntries(t *testing.T) {
	b, clock := newTestBlocklist(1000)

	b.BlockOnPushError("expired")
	b.BlockInvalid("active")
	require.Equal(t, 2, b.Len())

	clock.now = 1050
	b.Sweep()
	assert.Equal(t, 1, b.Len())
	assert.True(t, b.IsBlocked("active"))
	assert.False(t, b.IsBlocked("expired"))
}

func TestUnreadableClockDegrades(t *testing.T) {
	b, clock := newTestBlocklist(1000)

	b.BlockInvalid("some-token")
	require.True(t, b.IsBlocked("some-token"))

	clock.ok = false
	assert.False(t, b.IsBlocked("some-token"), "an unreadable clock must read as not blocked")
	b.BlockInvalid("other-token")
	b.Sweep()

	clock.ok = true
	assert.False(t, b.IsBlocked("other-token"), "writes with an unreadable clock must be dropped")
	assert.True(t, b.IsBlocked("some-token"), "the sweep with an unreadable clock must not remove entries")
}

func TestBlockCategoriesAreIndependent(t *testing.T) {
	b, clock := newTestBlocklist(1000)

	b.BlockOnPushError("push-error-token")
	b.BlockInvalid("invalid-token")

	// Past the push-error window but inside the invalid-token one.
	clock.now = 1020
	assert.False(t, b.IsBlocked("push-error-token"))
	assert.True(t, b.IsBlocked("invalid-token"))
}
