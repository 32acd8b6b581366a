package room

import "time"

// Status is a participant's presence state within a room.
type Status string

const (
	StatusWorking Status = "working"
	StatusBreak   Status = "break"
	StatusAway    Status = "away"
)

// Valid reports whether s is one of the known presence states.
func (s Status) Valid() bool {
	switch s {
	case StatusWorking, StatusBreak, StatusAway:
		return true
	}
	return false
}

// TimerKind distinguishes work countdowns from break countdowns.
type TimerKind string

const (
	TimerWork  TimerKind = "work"
	TimerBreak TimerKind = "break"
)

// Valid reports whether k is a known timer kind.
func (k TimerKind) Valid() bool {
	return k == TimerWork || k == TimerBreak
}

// UserInfo carries the identity fields a client supplies when joining a
// room. The fields are passed through to other participants unchanged.
type UserInfo struct {
	Name   string `json:"name"`
	Avatar string `json:"avatar,omitempty"`
}

// Participant is a connection's presence record inside a room.
type Participant struct {
	ID       string    `json:"id"` // connection id
	Name     string    `json:"name"`
	Avatar   string    `json:"avatar,omitempty"`
	Status   Status    `json:"status"`
	JoinedAt time.Time `json:"joined_at"`
	LastSeen time.Time `json:"last_seen"`
}

// Timer is the authoritative countdown for a room. At most one exists per
// room; a completed timer stays in place at remaining 0 until an explicit
// reset or a new start.
type Timer struct {
	ID        string    `json:"id"`
	RoomID    string    `json:"room_id"`
	Duration  int       `json:"duration_sec"`
	Remaining int       `json:"remaining_sec"`
	Kind      TimerKind `json:"type"`
	Running   bool      `json:"running"`
	StartedAt time.Time `json:"started_at"`
}

// FocusSession is a participant-declared unit of work inside a room,
// independent of the room timer.
type FocusSession struct {
	ID           string     `json:"id"`
	RoomID       string     `json:"room_id"`
	OwnerID      string     `json:"owner_id"` // connection id of the starter
	Goals        []string   `json:"goals"`
	Progress     int        `json:"progress"` // 0-100, last value wins
	Completed    bool       `json:"completed"`
	Achievements []string   `json:"achievements,omitempty"`
	StartedAt    time.Time  `json:"started_at"`
	EndedAt      *time.Time `json:"ended_at,omitempty"`
}

// Snapshot is the full state of a room as sent to a joining connection.
type Snapshot struct {
	ID           string        `json:"id"`
	Participants []Participant `json:"participants"`
	Timer        *Timer        `json:"timer,omitempty"`
}
