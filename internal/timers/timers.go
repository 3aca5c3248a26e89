package timers

import (
	"log/slog"
	"sync"
	"time"
)

// Kind names a timer family. Disconnect and turn timers are per player,
// inactivity and cleanup are session-wide and use player id zero.
type Kind string

const (
	KindDisconnect Kind = "disconnect"
	KindInactivity Kind = "inactivity"
	KindCleanup    Kind = "cleanup"
	KindTurn       Kind = "turn"
)

// FireFunc runs on a timer goroutine. Implementations must hand off into
// their own serialization, typically an event inbox, instead of mutating
// shared state directly.
type FireFunc func(kind Kind, playerID int)

type timerKey struct {
	kind     Kind
	playerID int
}

type timerEntry struct {
	timer    *time.Timer
	deadline time.Time
}

// Scheduler keys one-shot timers by (kind, player id). Arming a key that
// is already armed replaces the previous timer, it never stacks.
type Scheduler struct {
	logger *slog.Logger
	fire   FireFunc

	mu      sync.Mutex
	entries map[timerKey]*timerEntry
	closed  bool
}

func NewScheduler(logger *slog.Logger, fire FireFunc) *Scheduler {
	return &Scheduler{
		logger:  logger.With("component", "timers"),
		fire:    fire,
		entries: make(map[timerKey]*timerEntry),
	}
}

// Start - arms the timer for the key, replacing any existing one.
func (that *Scheduler) Start(kind Kind, playerID int, duration time.Duration) {
	that.mu.Lock()
	defer that.mu.Unlock()

	if that.closed {
		return
	}

	k := timerKey{kind: kind, playerID: playerID}
	if existing, ok := that.entries[k]; ok {
		existing.timer.Stop()
	}

	e := &timerEntry{deadline: time.Now().Add(duration)}
	e.timer = time.AfterFunc(duration, func() {
		that.fired(k, e)
	})
	that.entries[k] = e

	that.logger.Debug("timer armed", "kind", string(kind), "player_id", playerID, "duration", duration.String())
}

// fired - the entry identity check drops callbacks from timers that were
// replaced or canceled after they had already expired.
func (that *Scheduler) fired(k timerKey, e *timerEntry) {
	that.mu.Lock()
	current, ok := that.entries[k]
	if !ok || current != e || that.closed {
		that.mu.Unlock()
		return
	}
	delete(that.entries, k)
	that.mu.Unlock()

	that.fire(k.kind, k.playerID)
}

// Cancel - disarms the timer for the key. Reports whether one was armed.
func (that *Scheduler) Cancel(kind Kind, playerID int) bool {
	that.mu.Lock()
	defer that.mu.Unlock()

	k := timerKey{kind: kind, playerID: playerID}
	e, ok := that.entries[k]
	if !ok {
		return false
	}
	e.timer.Stop()
	delete(that.entries, k)

	that.logger.Debug("timer canceled", "kind", string(kind), "player_id", playerID)

	return true
}

// Remaining - time left until the timer fires, for reconnection countdowns
// and similar UI. The second return value reports whether the timer is
// armed at all.
func (that *Scheduler) Remaining(kind Kind, playerID int) (time.Duration, bool) {
	that.mu.Lock()
	defer that.mu.Unlock()

	e, ok := that.entries[timerKey{kind: kind, playerID: playerID}]
	if !ok {
		return 0, false
	}
	remaining := time.Until(e.deadline)
	if remaining < 0 {
		remaining = 0
	}
	return remaining, true
}

func (that *Scheduler) Active(kind Kind, playerID int) bool {
	that.mu.Lock()
	defer that.mu.Unlock()

	_, ok := that.entries[timerKey{kind: kind, playerID: playerID}]
	return ok
}

// CancelAll - disarms everything. Session teardown calls this so no timer
// outlives the state it points at.
func (that *Scheduler) CancelAll() {
	that.mu.Lock()
	defer that.mu.Unlock()

	for k, e := range that.entries {
		e.timer.Stop()
		delete(that.entries, k)
	}
}

// Close - cancels everything and rejects any further Start.
func (that *Scheduler) Close() {
	that.mu.Lock()
	defer that.mu.Unlock()

	that.closed = true
	for k, e := range that.entries {
		e.timer.Stop()
		delete(that.entries, k)
	}
}
