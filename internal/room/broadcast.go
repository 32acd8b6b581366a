package room

import "context"

// Broadcaster delivers outbound events to live connections. The store
// computes recipient lists; implementations must deliver events for a given
// room in the order the calls were made and must not block the caller.
type Broadcaster interface {
	// SendTo delivers an event to a single connection (direct acks such as
	// room-joined).
	SendTo(connID string, event *Event)
	// Broadcast delivers an event to every listed connection.
	Broadcast(connIDs []string, event *Event)
}

// SessionArchiver records completed focus sessions in external storage.
// Archiving is best-effort; failures are logged, never surfaced to clients.
type SessionArchiver interface {
	ArchiveSession(ctx context.Context, session FocusSession) error
}
