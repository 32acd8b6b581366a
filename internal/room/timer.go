package room

import (
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"
)

// StartTimer starts (or replaces) the countdown for a room and broadcasts
// timer-started to every member, the originator included. Any previous tick
// loop is cancelled under the lock before the new one is installed, so two
// loops never run for one room.
func (s *Store) StartTimer(roomID string, durationSec int, kind TimerKind) {
	s.mu.Lock()
	defer s.mu.Unlock()

	r := s.rooms[roomID]
	if r == nil {
		log.Warn().Str("room_id", roomID).Msg("start-timer for unknown room ignored")
		return
	}
	if durationSec <= 0 {
		log.Warn().Str("room_id", roomID).Int("duration_sec", durationSec).Msg("non-positive timer duration dropped")
		return
	}
	if !kind.Valid() {
		log.Warn().Str("room_id", roomID).Str("type", string(kind)).Msg("unknown timer type dropped")
		return
	}

	s.cancelTickLocked(r)

	t := &activeTimer{
		Timer: Timer{
			ID:        uuid.New().String(),
			RoomID:    roomID,
			Duration:  durationSec,
			Remaining: durationSec,
			Kind:      kind,
			Running:   true,
			StartedAt: s.clock.Now(),
		},
		stop: make(chan struct{}),
	}
	r.timer = t

	s.broadcaster.Broadcast(r.memberIDsLocked(""), NewEvent(EventTimerStarted, roomID, t.Timer))

	// The ticker is created here, not in the goroutine, so the countdown is
	// armed before StartTimer returns.
	ticker := s.clock.NewTicker(time.Second)
	go s.runTicker(roomID, t.ID, t.stop, ticker)

	log.Info().
		Str("room_id", roomID).
		Str("timer_id", t.ID).
		Int("duration_sec", durationSec).
		Str("type", string(kind)).
		Msg("timer started")
}

// PauseTimer stops the countdown, preserving the remaining seconds, and
// broadcasts timer-paused with the timer snapshot. Silent no-op when the
// room has no timer.
func (s *Store) PauseTimer(roomID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	r := s.rooms[roomID]
	if r == nil || r.timer == nil {
		return
	}

	s.cancelTickLocked(r)
	r.timer.Running = false

	s.broadcaster.Broadcast(r.memberIDsLocked(""), NewEvent(EventTimerPaused, roomID, r.timer.Timer))

	log.Info().
		Str("room_id", roomID).
		Int("remaining_sec", r.timer.Remaining).
		Msg("timer paused")
}

// ResetTimer clears the timer entirely and broadcasts timer-reset. Silent
// no-op when the room has no timer.
func (s *Store) ResetTimer(roomID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	r := s.rooms[roomID]
	if r == nil || r.timer == nil {
		return
	}

	s.cancelTickLocked(r)
	r.timer = nil

	s.broadcaster.Broadcast(r.memberIDsLocked(""), NewEvent(EventTimerReset, roomID, TimerResetPayload{RoomID: roomID}))

	log.Info().Str("room_id", roomID).Msg("timer reset")
}

// cancelTickLocked stops the room's tick loop if one is running. Safe to
// call on rooms with no timer or a paused/completed one.
func (s *Store) cancelTickLocked(r *roomState) {
	if r.timer != nil && r.timer.stop != nil {
		close(r.timer.stop)
		r.timer.stop = nil
	}
}

// runTicker drives one timer's countdown at 1 Hz until it completes, is
// cancelled, or is superseded by a newer timer.
func (s *Store) runTicker(roomID, timerID string, stop chan struct{}, ticker clockwork.Ticker) {
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.Chan():
			if !s.tick(roomID, timerID) {
				return
			}
		}
	}
}

// tick applies one countdown step and reports whether the loop should keep
// running. The timer id check rejects stale ticks from a superseded loop;
// combined with the store lock it makes cancellation synchronous with room
// deletion and timer replacement.
func (s *Store) tick(roomID, timerID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	r := s.rooms[roomID]
	if r == nil || r.timer == nil || r.timer.ID != timerID || !r.timer.Running {
		return false
	}

	if r.timer.Remaining > 0 {
		r.timer.Remaining--
	}

	members := r.memberIDsLocked("")
	s.broadcaster.Broadcast(members, NewEvent(EventTimerUpdated, roomID, TimerUpdatedPayload{
		RoomID:    roomID,
		Remaining: r.timer.Remaining,
	}))

	if r.timer.Remaining > 0 {
		return true
	}

	// Completed: the record stays in place at remaining 0 until an explicit
	// reset or a new start.
	r.timer.Running = false
	r.timer.stop = nil
	s.broadcaster.Broadcast(members, NewEvent(EventTimerCompleted, roomID, TimerCompletedPayload{
		RoomID: roomID,
		Kind:   r.timer.Kind,
	}))

	log.Info().
		Str("room_id", roomID).
		Str("timer_id", timerID).
		Str("type", string(r.timer.Kind)).
		Msg("timer completed")
	return false
}
