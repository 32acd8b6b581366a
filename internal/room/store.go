package room

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"
)

// Clock is the interface the store uses for time operations.
// In production, use clockwork.NewRealClock(). In tests, a FakeClock.
type Clock interface {
	Now() time.Time
	NewTicker(d time.Duration) clockwork.Ticker
}

// roomState holds one room's live state. All access goes through the
// store mutex.
type roomState struct {
	id           string
	participants map[string]*Participant // keyed by connection id
	timer        *activeTimer
	sessions     map[string]*FocusSession
}

// activeTimer pairs the timer record with the stop channel of its tick
// loop. stop is nil whenever no loop is running (paused, completed).
type activeTimer struct {
	Timer
	stop chan struct{}
}

// Store owns all room, connection, and session state. Every mutation is
// serialized through a single mutex, so each event is processed to
// completion before the next begins and per-room broadcast order matches
// mutation order. Missing references are logged no-ops, never errors.
type Store struct {
	mu       sync.Mutex
	rooms    map[string]*roomState
	conns    map[string]string // connection id -> room id ("" until joined)
	sessions map[string]string // session id -> room id

	clock       Clock
	broadcaster Broadcaster
	archiver    SessionArchiver // nil disables archiving
}

// NewStore creates a store wired to the given broadcaster. archiver may be
// nil, in which case completed sessions are not persisted anywhere.
func NewStore(broadcaster Broadcaster, clock Clock, archiver SessionArchiver) *Store {
	return &Store{
		rooms:       make(map[string]*roomState),
		conns:       make(map[string]string),
		sessions:    make(map[string]string),
		clock:       clock,
		broadcaster: broadcaster,
		archiver:    archiver,
	}
}

// Register records a new live connection. Called on transport-level
// connect, before any join.
func (s *Store) Register(connID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.conns[connID] = ""
	log.Debug().Str("connection_id", connID).Msg("connection registered")
}

// Join puts a connection into a room, creating the room if it does not
// exist. The joiner receives a room-joined snapshot; everyone else in the
// room receives participant-joined. A connection already in another room
// is moved.
func (s *Store) Join(connID, roomID string, user UserInfo) {
	s.mu.Lock()
	defer s.mu.Unlock()

	prev, ok := s.conns[connID]
	if !ok {
		log.Warn().Str("connection_id", connID).Msg("join from unknown connection ignored")
		return
	}
	if prev != "" && prev != roomID {
		s.leaveLocked(connID)
	}

	r := s.rooms[roomID]
	if r == nil {
		r = &roomState{
			id:           roomID,
			participants: make(map[string]*Participant),
			sessions:     make(map[string]*FocusSession),
		}
		s.rooms[roomID] = r
		log.Info().Str("room_id", roomID).Msg("room created")
	}

	now := s.clock.Now()
	p := &Participant{
		ID:       connID,
		Name:     user.Name,
		Avatar:   user.Avatar,
		Status:   StatusWorking,
		JoinedAt: now,
		LastSeen: now,
	}
	r.participants[connID] = p
	s.conns[connID] = roomID

	s.broadcaster.SendTo(connID, NewEvent(EventRoomJoined, roomID, RoomJoinedPayload{Room: r.snapshotLocked()}))
	if others := r.memberIDsLocked(connID); len(others) > 0 {
		s.broadcaster.Broadcast(others, NewEvent(EventParticipantJoined, roomID, *p))
	}

	log.Info().
		Str("connection_id", connID).
		Str("room_id", roomID).
		Int("participants", len(r.participants)).
		Msg("participant joined room")
}

// Leave removes a connection's participant from its room. The connection
// stays registered and may join another room. Idempotent.
func (s *Store) Leave(connID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.conns[connID]; !ok {
		return
	}
	s.leaveLocked(connID)
	s.conns[connID] = ""
}

// Disconnect removes the connection entirely. Cleanup is identical to an
// explicit leave. Idempotent.
func (s *Store) Disconnect(connID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.conns[connID]; !ok {
		return
	}
	s.leaveLocked(connID)
	delete(s.conns, connID)
	log.Debug().Str("connection_id", connID).Msg("connection removed")
}

// leaveLocked detaches connID from its current room, deleting the room if
// it becomes empty. No-op when the connection is not in a room.
func (s *Store) leaveLocked(connID string) {
	roomID := s.conns[connID]
	if roomID == "" {
		return
	}
	r := s.rooms[roomID]
	if r == nil {
		return
	}
	if _, ok := r.participants[connID]; !ok {
		return
	}
	delete(r.participants, connID)

	if len(r.participants) == 0 {
		s.deleteRoomLocked(r)
		return
	}
	s.broadcaster.Broadcast(r.memberIDsLocked(""), NewEvent(EventParticipantLeft, roomID, ParticipantLeftPayload{ParticipantID: connID}))
}

// deleteRoomLocked removes an empty room, cancelling its tick loop and
// dropping its sessions from the global index. Cancellation happens under
// the lock, so no tick can fire against a deleted room.
func (s *Store) deleteRoomLocked(r *roomState) {
	s.cancelTickLocked(r)
	for sessionID := range r.sessions {
		delete(s.sessions, sessionID)
	}
	delete(s.rooms, r.id)
	log.Info().Str("room_id", r.id).Msg("room deleted")
}

// UpdatePresence changes the sender's status and notifies the rest of the
// room. Unknown connections, connections not in a room, and unknown
// statuses are dropped.
func (s *Store) UpdatePresence(connID string, status Status) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !status.Valid() {
		log.Warn().Str("connection_id", connID).Str("status", string(status)).Msg("unknown presence status dropped")
		return
	}
	roomID := s.conns[connID]
	r := s.rooms[roomID]
	if r == nil {
		return
	}
	p := r.participants[connID]
	if p == nil {
		return
	}

	p.Status = status
	p.LastSeen = s.clock.Now()

	if others := r.memberIDsLocked(connID); len(others) > 0 {
		s.broadcaster.Broadcast(others, NewEvent(EventParticipantUpdated, roomID, ParticipantUpdatedPayload{
			ParticipantID: connID,
			Status:        status,
		}))
	}
}

// StartSession creates a focus session owned by connID in roomID and
// announces it to the entire room, owner included.
func (s *Store) StartSession(connID, roomID string, goals []string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	r := s.rooms[roomID]
	if r == nil {
		log.Warn().Str("room_id", roomID).Msg("start-focus-session for unknown room ignored")
		return
	}

	sess := &FocusSession{
		ID:        uuid.New().String(),
		RoomID:    roomID,
		OwnerID:   connID,
		Goals:     goals,
		StartedAt: s.clock.Now(),
	}
	r.sessions[sess.ID] = sess
	s.sessions[sess.ID] = roomID

	s.broadcaster.Broadcast(r.memberIDsLocked(""), NewEvent(EventFocusSessionStarted, roomID, *sess))

	log.Info().
		Str("session_id", sess.ID).
		Str("room_id", roomID).
		Str("connection_id", connID).
		Int("goals", len(goals)).
		Msg("focus session started")
}

// UpdateProgress overwrites a session's progress (clamped to 0-100) and
// rebroadcasts the session to its room. Sessions are looked up by id alone;
// there is no ownership check. Updates to completed or unknown sessions are
// dropped.
func (s *Store) UpdateProgress(sessionID string, progress int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, sess := s.sessionLocked(sessionID)
	if sess == nil {
		return
	}
	if sess.Completed {
		log.Warn().Str("session_id", sessionID).Msg("progress update on completed session dropped")
		return
	}

	if progress < 0 {
		progress = 0
	} else if progress > 100 {
		progress = 100
	}
	sess.Progress = progress

	s.broadcaster.Broadcast(r.memberIDsLocked(""), NewEvent(EventFocusSessionUpdated, r.id, *sess))
}

// CompleteSession terminates a session once, storing its achievements and
// rebroadcasting the final snapshot to the room. Completed sessions are
// handed to the archiver, off the event path.
func (s *Store) CompleteSession(sessionID string, achievements []string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, sess := s.sessionLocked(sessionID)
	if sess == nil {
		return
	}
	if sess.Completed {
		log.Warn().Str("session_id", sessionID).Msg("complete on already-completed session dropped")
		return
	}

	now := s.clock.Now()
	sess.EndedAt = &now
	sess.Achievements = achievements
	sess.Completed = true

	s.broadcaster.Broadcast(r.memberIDsLocked(""), NewEvent(EventFocusSessionCompleted, r.id, *sess))

	log.Info().
		Str("session_id", sessionID).
		Str("room_id", r.id).
		Int("progress", sess.Progress).
		Msg("focus session completed")

	if s.archiver != nil {
		archived := *sess
		go func() {
			if err := s.archiver.ArchiveSession(context.Background(), archived); err != nil {
				log.Error().Err(err).Str("session_id", archived.ID).Msg("failed to archive focus session")
			}
		}()
	}
}

// sessionLocked resolves a session id through the global index.
func (s *Store) sessionLocked(sessionID string) (*roomState, *FocusSession) {
	roomID, ok := s.sessions[sessionID]
	if !ok {
		log.Debug().Str("session_id", sessionID).Msg("unknown session id ignored")
		return nil, nil
	}
	r := s.rooms[roomID]
	if r == nil {
		return nil, nil
	}
	return r, r.sessions[sessionID]
}

// RoomCounts returns the participant count per active room.
func (s *Store) RoomCounts() map[string]int {
	s.mu.Lock()
	defer s.mu.Unlock()

	counts := make(map[string]int, len(s.rooms))
	for id, r := range s.rooms {
		counts[id] = len(r.participants)
	}
	return counts
}

// snapshotLocked builds the wire snapshot of a room.
func (r *roomState) snapshotLocked() Snapshot {
	snap := Snapshot{
		ID:           r.id,
		Participants: make([]Participant, 0, len(r.participants)),
	}
	for _, p := range r.participants {
		snap.Participants = append(snap.Participants, *p)
	}
	if r.timer != nil {
		t := r.timer.Timer
		snap.Timer = &t
	}
	return snap
}

// memberIDsLocked lists the room's connection ids, excluding except when
// non-empty.
func (r *roomState) memberIDsLocked(except string) []string {
	ids := make([]string, 0, len(r.participants))
	for id := range r.participants {
		if id == except {
			continue
		}
		ids = append(ids, id)
	}
	return ids
}
