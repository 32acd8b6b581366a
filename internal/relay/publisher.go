package relay

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog/log"

	"github.com/cowork-labs/focusroom/internal/room"
)

// Config holds configuration for the NATS event publisher.
type Config struct {
	URL           string
	SubjectPrefix string
	MaxReconnects int
	ReconnectWait time.Duration
}

// DefaultConfig returns default publisher configuration.
func DefaultConfig() Config {
	return Config{
		URL:           nats.DefaultURL,
		SubjectPrefix: "focusroom.events",
		MaxReconnects: -1, // Infinite
		ReconnectWait: 2 * time.Second,
	}
}

// Publisher mirrors room broadcasts onto NATS subjects so downstream
// consumers (analytics, the CRUD apps) can observe room activity without
// holding a WebSocket connection. Publishing is best-effort and never
// authoritative for room state.
type Publisher struct {
	nc     *nats.Conn
	prefix string
}

// NewPublisher connects to NATS with infinite reconnects by default.
func NewPublisher(config Config) (*Publisher, error) {
	opts := []nats.Option{
		nats.MaxReconnects(config.MaxReconnects),
		nats.ReconnectWait(config.ReconnectWait),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			log.Error().Err(err).Msg("NATS disconnected")
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Info().Str("url", nc.ConnectedUrl()).Msg("NATS reconnected")
		}),
		nats.ErrorHandler(func(nc *nats.Conn, sub *nats.Subscription, err error) {
			log.Error().Err(err).Msg("NATS error")
		}),
	}

	nc, err := nats.Connect(config.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("connect to NATS: %w", err)
	}

	log.Info().Str("url", config.URL).Str("subject_prefix", config.SubjectPrefix).Msg("NATS event publisher connected")

	return &Publisher{nc: nc, prefix: config.SubjectPrefix}, nil
}

// Publish sends one event to <prefix>.<roomID>.
func (p *Publisher) Publish(event *room.Event) {
	data, err := json.Marshal(event)
	if err != nil {
		log.Error().Err(err).Str("event_type", string(event.Type)).Msg("failed to marshal event for NATS")
		return
	}

	subject := p.prefix
	if event.RoomID != "" {
		subject += "." + sanitizeToken(event.RoomID)
	}

	if err := p.nc.Publish(subject, data); err != nil {
		log.Error().Err(err).Str("subject", subject).Msg("failed to publish event to NATS")
	}
}

// Close drains and closes the NATS connection.
func (p *Publisher) Close() {
	if err := p.nc.Drain(); err != nil {
		log.Error().Err(err).Msg("failed to drain NATS connection")
	}
}

// sanitizeToken keeps caller-supplied room ids out of the NATS subject
// grammar.
func sanitizeToken(s string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case '.', '*', '>', ' ':
			return '_'
		}
		return r
	}, s)
}
