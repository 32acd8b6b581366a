package gateway

import (
	"encoding/json"

	"github.com/rs/zerolog/log"

	"github.com/cowork-labs/focusroom/internal/room"
)

// dispatch routes one inbound client message to the room store. Malformed
// payloads and unknown event types are logged and dropped; a bad event from
// one client must never take down state shared with other rooms.
func (cm *ConnectionManager) dispatch(c *Connection, raw []byte) {
	var event room.Event
	if err := json.Unmarshal(raw, &event); err != nil {
		log.Warn().
			Err(err).
			Str("connection_id", c.ID).
			Msg("malformed event envelope dropped")
		return
	}

	payload, err := room.ParseEventPayload(&event)
	if err != nil {
		log.Warn().
			Err(err).
			Str("connection_id", c.ID).
			Str("event_type", string(event.Type)).
			Msg("malformed event payload dropped")
		return
	}

	switch p := payload.(type) {
	case room.JoinRoomPayload:
		if p.RoomID == "" {
			log.Warn().Str("connection_id", c.ID).Msg("join-room without room_id dropped")
			return
		}
		cm.rooms.Join(c.ID, p.RoomID, p.User)

	case room.LeaveRoomPayload:
		cm.rooms.Leave(c.ID)

	case room.UpdatePresencePayload:
		cm.rooms.UpdatePresence(c.ID, p.Status)

	case room.StartFocusSessionPayload:
		if p.RoomID == "" {
			log.Warn().Str("connection_id", c.ID).Msg("start-focus-session without room_id dropped")
			return
		}
		cm.rooms.StartSession(c.ID, p.RoomID, p.Goals)

	case room.UpdateProgressPayload:
		cm.rooms.UpdateProgress(p.SessionID, p.Progress)

	case room.CompleteSessionPayload:
		cm.rooms.CompleteSession(p.SessionID, p.Achievements)

	case room.StartTimerPayload:
		cm.rooms.StartTimer(p.RoomID, p.Duration, p.Kind)

	case room.PauseTimerPayload:
		cm.rooms.PauseTimer(p.RoomID)

	case room.ResetTimerPayload:
		cm.rooms.ResetTimer(p.RoomID)

	default:
		log.Warn().
			Str("connection_id", c.ID).
			Str("event_type", string(event.Type)).
			Msg("unknown event type dropped")
	}
}
