package history

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"

	"github.com/cowork-labs/focusroom/internal/room"
)

const schema = `
CREATE TABLE IF NOT EXISTS focus_session_history (
    id           TEXT PRIMARY KEY,
    room_id      TEXT NOT NULL,
    owner_id     TEXT NOT NULL,
    goals        TEXT[] NOT NULL DEFAULT '{}',
    progress     INT NOT NULL,
    achievements TEXT[] NOT NULL DEFAULT '{}',
    started_at   TIMESTAMPTZ NOT NULL,
    ended_at     TIMESTAMPTZ
)`

const insertSession = `
INSERT INTO focus_session_history (id, room_id, owner_id, goals, progress, achievements, started_at, ended_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
ON CONFLICT (id) DO NOTHING`

// PostgresArchiver persists completed focus sessions. Live room state is
// never stored; only the terminal session snapshot is.
type PostgresArchiver struct {
	pool *pgxpool.Pool
}

// NewPostgresArchiver connects to Postgres and ensures the history table
// exists.
func NewPostgresArchiver(ctx context.Context, databaseURL string) (*PostgresArchiver, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to postgres: %w", err)
	}
	if _, err := pool.Exec(ctx, schema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ensure history schema: %w", err)
	}

	log.Info().Msg("focus session history archiver connected")

	return &PostgresArchiver{pool: pool}, nil
}

// ArchiveSession implements room.SessionArchiver.
func (a *PostgresArchiver) ArchiveSession(ctx context.Context, sess room.FocusSession) error {
	_, err := a.pool.Exec(ctx, insertSession,
		sess.ID,
		sess.RoomID,
		sess.OwnerID,
		sess.Goals,
		sess.Progress,
		sess.Achievements,
		sess.StartedAt,
		sess.EndedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to archive session: %w", err)
	}
	return nil
}

// Close releases the connection pool.
func (a *PostgresArchiver) Close() {
	a.pool.Close()
}
