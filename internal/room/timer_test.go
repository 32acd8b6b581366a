package room

import (
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
)

// advance moves the fake clock one tick once the ticker goroutine is
// waiting on it.
func advance(t *testing.T, clock *clockwork.FakeClock) {
	t.Helper()
	clock.BlockUntil(1)
	clock.Advance(time.Second)
}

// expectTimerUpdated asserts the next delivery is a tick with the given
// remaining seconds and returns it.
func expectTimerUpdated(t *testing.T, b *recordingBroadcaster, remaining int) delivery {
	t.Helper()
	d := b.next(t)
	if d.event.Type != EventTimerUpdated {
		t.Fatalf("expected timer-updated, got %s", d.event.Type)
	}
	var payload TimerUpdatedPayload
	decodePayload(t, d.event, &payload)
	if payload.Remaining != remaining {
		t.Fatalf("expected remaining %d, got %d", remaining, payload.Remaining)
	}
	return d
}

func TestTimerCountdown(t *testing.T) {
	s, b, clock := newTestStore()
	joinAll(s, b, "r1", "a", "b")

	s.StartTimer("r1", 3, TimerWork)

	started := b.next(t)
	if started.event.Type != EventTimerStarted {
		t.Fatalf("expected timer-started, got %s", started.event.Type)
	}
	if len(started.targets) != 2 {
		t.Errorf("timer-started is a full-room broadcast, got targets %v", started.targets)
	}
	var snap Timer
	decodePayload(t, started.event, &snap)
	if snap.Remaining != 3 || snap.Duration != 3 || !snap.Running || snap.Kind != TimerWork {
		t.Errorf("unexpected timer snapshot: %+v", snap)
	}

	// remaining counts strictly down: 2, 1, 0, then exactly one completion.
	for remaining := 2; remaining >= 0; remaining-- {
		advance(t, clock)
		expectTimerUpdated(t, b, remaining)
	}

	done := b.next(t)
	if done.event.Type != EventTimerCompleted {
		t.Fatalf("expected timer-completed, got %s", done.event.Type)
	}
	var completed TimerCompletedPayload
	decodePayload(t, done.event, &completed)
	if completed.Kind != TimerWork {
		t.Errorf("expected completed type work, got %q", completed.Kind)
	}
	b.expectNone(t)

	// The completed record stays at remaining 0 until reset or a new start.
	s.Register("c")
	s.Join("c", "r1", UserInfo{Name: "Cy"})
	ack := b.next(t)
	var joined RoomJoinedPayload
	decodePayload(t, ack.event, &joined)
	if joined.Room.Timer == nil || joined.Room.Timer.Remaining != 0 || joined.Room.Timer.Running {
		t.Errorf("expected stored completed timer at remaining 0, got %+v", joined.Room.Timer)
	}
}

func TestTimerSurvivesOwnerDisconnect(t *testing.T) {
	s, b, clock := newTestStore()
	joinAll(s, b, "r1", "a", "b")

	s.StartTimer("r1", 3, TimerWork)
	b.next(t) // timer-started

	advance(t, clock)
	expectTimerUpdated(t, b, 2)

	// The timer is room-owned: the starter disconnecting must not stop it.
	s.Disconnect("a")
	left := b.next(t)
	if left.event.Type != EventParticipantLeft {
		t.Fatalf("expected participant-left, got %s", left.event.Type)
	}

	advance(t, clock)
	d := expectTimerUpdated(t, b, 1)
	if len(d.targets) != 1 || d.targets[0] != "b" {
		t.Errorf("remaining member must keep receiving ticks, got %v", d.targets)
	}

	advance(t, clock)
	expectTimerUpdated(t, b, 0)
	if done := b.next(t); done.event.Type != EventTimerCompleted {
		t.Fatalf("expected timer-completed, got %s", done.event.Type)
	}
}

func TestTimerPauseAndResume(t *testing.T) {
	s, b, clock := newTestStore()
	joinAll(s, b, "r1", "a")

	s.StartTimer("r1", 10, TimerBreak)
	b.next(t) // timer-started

	for remaining := 9; remaining >= 7; remaining-- {
		advance(t, clock)
		expectTimerUpdated(t, b, remaining)
	}

	s.PauseTimer("r1")
	paused := b.next(t)
	if paused.event.Type != EventTimerPaused {
		t.Fatalf("expected timer-paused, got %s", paused.event.Type)
	}
	var snap Timer
	decodePayload(t, paused.event, &snap)
	if snap.Remaining != 7 || snap.Running {
		t.Errorf("pause must preserve remaining, got %+v", snap)
	}

	// No ticks while paused.
	clock.Advance(5 * time.Second)
	b.expectNone(t)

	// Resuming re-starts with the previously observed remaining; no second
	// is lost or duplicated across the round-trip.
	s.StartTimer("r1", snap.Remaining, TimerBreak)
	b.next(t) // timer-started

	advance(t, clock)
	expectTimerUpdated(t, b, 6)
}

func TestTimerReset(t *testing.T) {
	s, b, clock := newTestStore()
	joinAll(s, b, "r1", "a")

	s.StartTimer("r1", 10, TimerWork)
	b.next(t) // timer-started

	s.ResetTimer("r1")
	d := b.next(t)
	if d.event.Type != EventTimerReset {
		t.Fatalf("expected timer-reset, got %s", d.event.Type)
	}

	clock.Advance(3 * time.Second)
	b.expectNone(t)

	// Reset with no timer is a silent no-op, as is pause.
	s.ResetTimer("r1")
	s.PauseTimer("r1")
	s.PauseTimer("unknown-room")
	b.expectNone(t)
}

func TestStartReplacesRunningTimer(t *testing.T) {
	s, b, clock := newTestStore()
	joinAll(s, b, "r1", "a")

	s.StartTimer("r1", 100, TimerWork)
	b.next(t) // timer-started

	advance(t, clock)
	expectTimerUpdated(t, b, 99)

	// A new start supersedes the old timer outright; the old tick loop is
	// cancelled, never producing a duplicate stream.
	s.StartTimer("r1", 50, TimerBreak)
	started := b.next(t)
	var snap Timer
	decodePayload(t, started.event, &snap)
	if snap.Remaining != 50 || snap.Kind != TimerBreak {
		t.Errorf("unexpected replacement timer: %+v", snap)
	}

	advance(t, clock)
	expectTimerUpdated(t, b, 49)
	b.expectNone(t)
}

func TestRoomDeletionCancelsTimer(t *testing.T) {
	s, b, clock := newTestStore()
	joinAll(s, b, "r1", "a")

	s.StartTimer("r1", 10, TimerWork)
	b.next(t) // timer-started

	s.Leave("a")
	b.expectNone(t) // room empty: deleted silently

	clock.Advance(3 * time.Second)
	b.expectNone(t)

	if counts := s.RoomCounts(); len(counts) != 0 {
		t.Errorf("room should be gone, got %v", counts)
	}
}

func TestStartTimerValidation(t *testing.T) {
	s, b, _ := newTestStore()
	joinAll(s, b, "r1", "a")

	s.StartTimer("unknown-room", 10, TimerWork)
	s.StartTimer("r1", 0, TimerWork)
	s.StartTimer("r1", -5, TimerWork)
	s.StartTimer("r1", 10, TimerKind("nap"))
	b.expectNone(t)
}
