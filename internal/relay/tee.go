package relay

import "github.com/cowork-labs/focusroom/internal/room"

// Tee wraps a room.Broadcaster and mirrors every room broadcast to NATS.
// Direct acks (room-joined) stay between the server and the one connection.
type Tee struct {
	next room.Broadcaster
	pub  *Publisher
}

// NewTee wires a publisher in front of the real broadcaster.
func NewTee(next room.Broadcaster, pub *Publisher) *Tee {
	return &Tee{next: next, pub: pub}
}

func (t *Tee) SendTo(connID string, event *room.Event) {
	t.next.SendTo(connID, event)
}

func (t *Tee) Broadcast(connIDs []string, event *room.Event) {
	t.next.Broadcast(connIDs, event)
	t.pub.Publish(event)
}
