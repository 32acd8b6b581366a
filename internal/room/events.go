package room

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// Event is the envelope for every message crossing the websocket channel,
// inbound and outbound.
type Event struct {
	ID        string          `json:"id"`
	RoomID    string          `json:"room_id,omitempty"`
	Type      EventType       `json:"type"`
	Timestamp time.Time       `json:"timestamp"`
	Data      json.RawMessage `json:"data,omitempty"`
}

// EventType identifies the kind of event carried by an envelope.
type EventType string

// Inbound event types (client commands).
const (
	EventJoinRoom          EventType = "join-room"
	EventLeaveRoom         EventType = "leave-room"
	EventUpdatePresence    EventType = "update-presence"
	EventStartFocusSession EventType = "start-focus-session"
	EventUpdateProgress    EventType = "update-progress"
	EventCompleteSession   EventType = "complete-session"
	EventStartTimer        EventType = "start-timer"
	EventPauseTimer        EventType = "pause-timer"
	EventResetTimer        EventType = "reset-timer"
)

// Outbound event types (server notifications).
const (
	EventRoomJoined            EventType = "room-joined"
	EventParticipantJoined     EventType = "participant-joined"
	EventParticipantLeft       EventType = "participant-left"
	EventParticipantUpdated    EventType = "participant-updated"
	EventFocusSessionStarted   EventType = "focus-session-started"
	EventFocusSessionUpdated   EventType = "focus-session-updated"
	EventFocusSessionCompleted EventType = "focus-session-completed"
	EventTimerStarted          EventType = "timer-started"
	EventTimerUpdated          EventType = "timer-updated"
	EventTimerPaused           EventType = "timer-paused"
	EventTimerReset            EventType = "timer-reset"
	EventTimerCompleted        EventType = "timer-completed"
)

// JoinRoomPayload asks to join a room, creating it if unknown.
type JoinRoomPayload struct {
	RoomID string   `json:"room_id"`
	User   UserInfo `json:"user"`
}

// LeaveRoomPayload asks to leave the current room.
type LeaveRoomPayload struct {
	RoomID string `json:"room_id"`
}

// UpdatePresencePayload changes the sender's presence status.
type UpdatePresencePayload struct {
	RoomID string `json:"room_id"`
	Status Status `json:"status"`
}

// StartFocusSessionPayload starts a goal-tracking session in a room.
type StartFocusSessionPayload struct {
	RoomID string   `json:"room_id"`
	Goals  []string `json:"goals"`
}

// UpdateProgressPayload overwrites a session's progress percentage.
type UpdateProgressPayload struct {
	SessionID string `json:"session_id"`
	Progress  int    `json:"progress"`
}

// CompleteSessionPayload terminates a session with its achievements.
type CompleteSessionPayload struct {
	SessionID    string   `json:"session_id"`
	Achievements []string `json:"achievements"`
}

// StartTimerPayload starts (or replaces) the room countdown.
type StartTimerPayload struct {
	RoomID   string    `json:"room_id"`
	Duration int       `json:"duration_sec"`
	Kind     TimerKind `json:"type"`
}

// PauseTimerPayload pauses the room countdown, preserving remaining time.
type PauseTimerPayload struct {
	RoomID string `json:"room_id"`
}

// ResetTimerPayload clears the room countdown entirely.
type ResetTimerPayload struct {
	RoomID string `json:"room_id"`
}

// RoomJoinedPayload acknowledges a join with the full room snapshot.
type RoomJoinedPayload struct {
	Room Snapshot `json:"room"`
}

// ParticipantLeftPayload notifies remaining members of a departure.
type ParticipantLeftPayload struct {
	ParticipantID string `json:"participant_id"`
}

// ParticipantUpdatedPayload notifies members of a status change.
type ParticipantUpdatedPayload struct {
	ParticipantID string `json:"participant_id"`
	Status        Status `json:"status"`
}

// TimerUpdatedPayload carries one countdown tick.
type TimerUpdatedPayload struct {
	RoomID    string `json:"room_id"`
	Remaining int    `json:"remaining_sec"`
}

// TimerResetPayload notifies members that the countdown was cleared.
type TimerResetPayload struct {
	RoomID string `json:"room_id"`
}

// TimerCompletedPayload notifies members that the countdown reached zero.
type TimerCompletedPayload struct {
	RoomID string    `json:"room_id"`
	Kind   TimerKind `json:"type"`
}

// NewEvent builds an outbound event envelope, marshaling the payload
// immediately so later delivery never races with state mutation.
func NewEvent(t EventType, roomID string, payload interface{}) *Event {
	data, err := json.Marshal(payload)
	if err != nil {
		log.Error().Err(err).Str("event_type", string(t)).Msg("failed to marshal event payload")
		data = nil
	}
	return &Event{
		ID:        uuid.New().String(),
		RoomID:    roomID,
		Type:      t,
		Timestamp: time.Now(),
		Data:      data,
	}
}

// ParseEventPayload parses an inbound event's data into the payload struct
// for its type. Unknown types return (nil, nil).
func ParseEventPayload(event *Event) (interface{}, error) {
	switch event.Type {
	case EventJoinRoom:
		var payload JoinRoomPayload
		if err := json.Unmarshal(event.Data, &payload); err != nil {
			return nil, err
		}
		return payload, nil

	case EventLeaveRoom:
		var payload LeaveRoomPayload
		if err := json.Unmarshal(event.Data, &payload); err != nil {
			return nil, err
		}
		return payload, nil

	case EventUpdatePresence:
		var payload UpdatePresencePayload
		if err := json.Unmarshal(event.Data, &payload); err != nil {
			return nil, err
		}
		return payload, nil

	case EventStartFocusSession:
		var payload StartFocusSessionPayload
		if err := json.Unmarshal(event.Data, &payload); err != nil {
			return nil, err
		}
		return payload, nil

	case EventUpdateProgress:
		var payload UpdateProgressPayload
		if err := json.Unmarshal(event.Data, &payload); err != nil {
			return nil, err
		}
		return payload, nil

	case EventCompleteSession:
		var payload CompleteSessionPayload
		if err := json.Unmarshal(event.Data, &payload); err != nil {
			return nil, err
		}
		return payload, nil

	case EventStartTimer:
		var payload StartTimerPayload
		if err := json.Unmarshal(event.Data, &payload); err != nil {
			return nil, err
		}
		return payload, nil

	case EventPauseTimer:
		var payload PauseTimerPayload
		if err := json.Unmarshal(event.Data, &payload); err != nil {
			return nil, err
		}
		return payload, nil

	case EventResetTimer:
		var payload ResetTimerPayload
		if err := json.Unmarshal(event.Data, &payload); err != nil {
			return nil, err
		}
		return payload, nil

	default:
		return nil, nil // unknown event type
	}
}
