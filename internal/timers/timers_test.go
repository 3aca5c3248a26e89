package timers

import (
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type firedRecorder struct {
	mu    sync.Mutex
	fired []timerKey
}

func (that *firedRecorder) record(kind Kind, playerID int) {
	that.mu.Lock()
	defer that.mu.Unlock()
	that.fired = append(that.fired, timerKey{kind: kind, playerID: playerID})
}

func (that *firedRecorder) count() int {
	that.mu.Lock()
	defer that.mu.Unlock()
	return len(that.fired)
}

func newTestScheduler() (*Scheduler, *firedRecorder) {
	recorder := &firedRecorder{}
	return NewScheduler(slog.Default(), recorder.record), recorder
}

func TestScheduler_StartAndFire(t *testing.T) {
	t.Run("An armed timer fires once with its key", func(t *testing.T) {
		// Given: a scheduler with a short disconnect timer
		scheduler, recorder := newTestScheduler()
		defer scheduler.Close()
		scheduler.Start(KindDisconnect, 2, 10*time.Millisecond)

		// Then: it fires exactly once
		require.Eventually(t, func() bool { return recorder.count() == 1 }, time.Second, time.Millisecond)
		recorder.mu.Lock()
		defer recorder.mu.Unlock()
		assert.Equal(t, timerKey{kind: KindDisconnect, playerID: 2}, recorder.fired[0])

		// And: the key is no longer armed
		assert.False(t, scheduler.Active(KindDisconnect, 2))
	})

	t.Run("Restarting a key replaces the timer instead of stacking", func(t *testing.T) {
		// Given: a timer armed twice in a row for the same key
		scheduler, recorder := newTestScheduler()
		defer scheduler.Close()
		scheduler.Start(KindDisconnect, 2, 10*time.Millisecond)
		scheduler.Start(KindDisconnect, 2, 30*time.Millisecond)

		// Then: only one firing ever happens
		require.Eventually(t, func() bool { return recorder.count() == 1 }, time.Second, time.Millisecond)
		time.Sleep(50 * time.Millisecond)
		assert.Equal(t, 1, recorder.count())
	})

	t.Run("Timers with different player ids are independent", func(t *testing.T) {
		// Given: the same kind armed for two players
		scheduler, recorder := newTestScheduler()
		defer scheduler.Close()
		scheduler.Start(KindTurn, 1, 10*time.Millisecond)
		scheduler.Start(KindTurn, 2, 10*time.Millisecond)

		// Then: both fire
		require.Eventually(t, func() bool { return recorder.count() == 2 }, time.Second, time.Millisecond)
	})
}

func TestScheduler_Cancel(t *testing.T) {
	t.Run("A canceled timer never fires", func(t *testing.T) {
		// Given: an armed timer
		scheduler, recorder := newTestScheduler()
		defer scheduler.Close()
		scheduler.Start(KindInactivity, 0, 20*time.Millisecond)

		// When: canceling it before it expires
		canceled := scheduler.Cancel(KindInactivity, 0)

		// Then: the cancel is acknowledged and nothing fires
		require.True(t, canceled)
		time.Sleep(40 * time.Millisecond)
		assert.Zero(t, recorder.count())
	})

	t.Run("Canceling an unarmed key reports false", func(t *testing.T) {
		// Given: an empty scheduler
		scheduler, _ := newTestScheduler()
		defer scheduler.Close()

		// When / Then: cancel is a no-op
		assert.False(t, scheduler.Cancel(KindCleanup, 0))
	})
}

func TestScheduler_Remaining(t *testing.T) {
	t.Run("Remaining counts down and disappears after firing", func(t *testing.T) {
		// Given: a timer with a generous duration
		scheduler, _ := newTestScheduler()
		defer scheduler.Close()
		scheduler.Start(KindDisconnect, 3, time.Minute)

		// When: asking for the remaining time
		remaining, ok := scheduler.Remaining(KindDisconnect, 3)

		// Then: it is positive and within the armed duration
		require.True(t, ok)
		assert.Greater(t, remaining, 50*time.Second)
		assert.LessOrEqual(t, remaining, time.Minute)

		// And: an unarmed key has no remaining time
		_, ok = scheduler.Remaining(KindDisconnect, 99)
		assert.False(t, ok)
	})
}

func TestScheduler_Close(t *testing.T) {
	t.Run("Close cancels all timers and rejects new ones", func(t *testing.T) {
		// Given: a scheduler with several armed timers
		scheduler, recorder := newTestScheduler()
		scheduler.Start(KindDisconnect, 1, 20*time.Millisecond)
		scheduler.Start(KindTurn, 2, 20*time.Millisecond)
		scheduler.Start(KindInactivity, 0, 20*time.Millisecond)

		// When: closing the scheduler
		scheduler.Close()

		// Then: nothing fires and new timers are refused
		scheduler.Start(KindCleanup, 0, 5*time.Millisecond)
		time.Sleep(40 * time.Millisecond)
		assert.Zero(t, recorder.count())
		assert.False(t, scheduler.Active(KindCleanup, 0))
	})
}
