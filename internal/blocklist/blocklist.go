// Package blocklist tracks device tokens that backends reported as dead
// or repeatedly failing. Blocks are windows in wall-clock epoch seconds;
// a token that keeps getting hit during the second half of its window
// has the window pushed out, one that goes quiet expires normally.
package blocklist

import (
	"log/slog"
	"sync"
	"time"
)

// Settings are the per-module block windows, taken from the module's
// blacklist configuration section.
type Settings struct {
	// InvalidToken is applied when the backend reports the token as
	// unregistered or gone.
	InvalidToken BlockingTimes
	// PushError is applied on unclassified push errors.
	PushError BlockingTimes
	// BlockExtension is how far IsBlocked pushes out a still-active
	// block once past its midpoint.
	BlockExtension time.Duration
}

// BlockingTimes is an (initial, extended) pair of block durations for
// one block category.
type BlockingTimes struct {
	Initial  time.Duration
	Extended time.Duration
}

// entry arithmetic is in whole epoch seconds. blockStart == 0 means
// never set and always reads unblocked.
type entry struct {
	mu         sync.Mutex
	blockStart int64
	blockEnd   int64
}

func (e *entry) isBlocked(now int64) bool {
	return e.blockStart != 0 && now <= e.blockEnd
}

// extend pushes blockEnd out to now+ext, but only once the block is
// past the midpoint of its current window.
func (e *entry) extend(now, ext int64) {
	if now-e.blockStart >= (e.blockEnd-e.blockStart)/2 {
		e.blockEnd = now + ext
	}
}

func (e *entry) reset(now, initial int64) {
	e.blockStart = now
	e.blockEnd = now + initial
}

// Blocklist is a per-token block map. Safe for concurrent use.
type Blocklist struct {
	mu      sync.RWMutex
	entries map[string]*entry

	invalidToken BlockingTimes
	pushError    BlockingTimes
	extension    time.Duration

	// now returns epoch seconds; ok=false signals an unreadable clock,
	// which degrades to "not blocked" on reads and a no-op on writes.
	now func() (int64, bool)
}

func New(settings Settings) *Blocklist {
	return &Blocklist{
		entries:      make(map[string]*entry),
		invalidToken: settings.InvalidToken,
		pushError:    settings.PushError,
		extension:    settings.BlockExtension,
		now:          func() (int64, bool) { return time.Now().Unix(), true },
	}
}

// IsBlocked reports whether token is currently blocked. As a side
// effect a still-active block past its midpoint is extended by the
// configured block extension, so tokens that keep getting queried near
// the end of their block stay blocked.
func (b *Blocklist) IsBlocked(token string) bool {
	b.mu.RLock()
	e, ok := b.entries[token]
	b.mu.RUnlock()
	if !ok {
		return false
	}

	now, clockOK := b.now()
	if !clockOK {
		slog.Error("could not read wall clock, treating token as not blocked", "token", token)
		return false
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.isBlocked(now) {
		// Expired entries are left for the sweeper.
		return false
	}
	e.extend(now, int64(b.extension/time.Second))
	return true
}

// BlockInvalid blocks token under the invalid-token category.
func (b *Blocklist) BlockInvalid(token string) {
	b.block(token, b.invalidToken)
}

// BlockOnPushError blocks token under the push-error category.
func (b *Blocklist) BlockOnPushError(token string) {
	b.block(token, b.pushError)
}

func (b *Blocklist) block(token string, times BlockingTimes) {
	now, clockOK := b.now()
	if !clockOK {
		slog.Error("could not read wall clock, dropping block request", "token", token)
		return
	}
	initial := int64(times.Initial / time.Second)
	extended := int64(times.Extended / time.Second)

	b.mu.Lock()
	e, ok := b.entries[token]
	if !ok {
		slog.Info("blocking token", "token", token, "until", now+initial)
		b.entries[token] = &entry{blockStart: now, blockEnd: now + initial}
		b.mu.Unlock()
		return
	}
	b.mu.Unlock()

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.isBlocked(now) {
		// Repeat offense inside an active block: extend under the
		// midpoint rule, keeping the original block start.
		slog.Info("extending block time of token", "token", token)
		e.extend(now, extended)
	} else {
		slog.Info("reblocking token", "token", token)
		e.reset(now, initial)
	}
}

// Sweep drops entries whose block window has passed. Candidates are
// collected under the read lock so lookups stay unblocked during the
// scan.
func (b *Blocklist) Sweep() {
	now, clockOK := b.now()
	if !clockOK {
		slog.Error("could not read wall clock, skipping blocklist sweep")
		return
	}

	b.mu.RLock()
	var expired []string
	for token, e := range b.entries {
		e.mu.Lock()
		if now > e.blockEnd {
			expired = append(expired, token)
		}
		e.mu.Unlock()
	}
	b.mu.RUnlock()

	if len(expired) == 0 {
		return
	}

	b.mu.Lock()
	for _, token := range expired {
		if e, ok := b.entries[token]; ok {
			e.mu.Lock()
			if now > e.blockEnd {
				delete(b.entries, token)
			}
			e.mu.Unlock()
		}
	}
	b.mu.Unlock()
}

// Len reports the current number of tracked tokens.
func (b *Blocklist) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.entries)
}
