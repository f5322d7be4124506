package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/corrosion/corrosion-server-go/internal/game"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const actionLogSchema = `
CREATE TABLE IF NOT EXISTS action_log (
	id          UUID PRIMARY KEY,
	seq         BIGSERIAL,
	game_id     TEXT NOT NULL,
	player_id   BIGINT NOT NULL,
	action      TEXT NOT NULL,
	payload     JSONB NOT NULL,
	accepted    BOOLEAN NOT NULL,
	reason      TEXT NOT NULL DEFAULT '',
	turn        INTEGER NOT NULL,
	phase       TEXT NOT NULL,
	recorded_at TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS action_log_game_idx ON action_log (game_id, seq);
`

// ActionLogEntry is one persisted action attempt.
type ActionLogEntry struct {
	ID         uuid.UUID
	GameID     string
	PlayerID   game.ID
	Action     string
	Payload    json.RawMessage
	Accepted   bool
	Reason     string
	Turn       int
	Phase      string
	RecordedAt time.Time
}

// ActionLogRepository persists every action submitted to the engine.
// It implements game.ActionRecorder.
type ActionLogRepository struct {
	db *DB
}

var _ game.ActionRecorder = (*ActionLogRepository)(nil)

// NewActionLogRepository creates a repository backed by db.
func NewActionLogRepository(db *DB) *ActionLogRepository {
	return &ActionLogRepository{db: db}
}

// Migrate creates the action log table if it does not exist.
func (r *ActionLogRepository) Migrate(ctx context.Context) error {
	if _, err := r.db.Exec(ctx, actionLogSchema); err != nil {
		return fmt.Errorf("failed to migrate action log: %w", err)
	}
	return nil
}

// RecordAction implements game.ActionRecorder.
func (r *ActionLogRepository) RecordAction(ctx context.Context, record game.ActionRecord) error {
	payload, err := json.Marshal(record.Action)
	if err != nil {
		return fmt.Errorf("failed to encode action payload: %w", err)
	}

	q := `
	INSERT INTO action_log (
		id, game_id, player_id, action, payload,
		accepted, reason, turn, phase, recorded_at
	)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`
	return pgx.BeginTxFunc(ctx, r.db, pgx.TxOptions{}, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, q,
			uuid.New(),
			record.GameID,
			int64(record.PlayerID),
			record.Action.Name(),
			payload,
			record.Accepted,
			record.Reason,
			record.Turn,
			record.Phase.String(),
			record.RecordedAt,
		)
		return err
	})
}

// ListByGame returns a game's action attempts in submission order.
func (r *ActionLogRepository) ListByGame(ctx context.Context, gameID string) ([]ActionLogEntry, error) {
	q := `
	SELECT id, game_id, player_id, action, payload,
	       accepted, reason, turn, phase, recorded_at
	FROM action_log
	WHERE game_id = $1
	ORDER BY seq
	`
	rows, err := r.db.Query(ctx, q, gameID)
	if err != nil {
		return nil, fmt.Errorf("failed to query action log: %w", err)
	}
	defer rows.Close()

	var entries []ActionLogEntry
	for rows.Next() {
		var (
			e        ActionLogEntry
			playerID int64
			payload  []byte
		)
		if err := rows.Scan(
			&e.ID,
			&e.GameID,
			&playerID,
			&e.Action,
			&payload,
			&e.Accepted,
			&e.Reason,
			&e.Turn,
			&e.Phase,
			&e.RecordedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan action log row: %w", err)
		}
		e.PlayerID = game.ID(playerID)
		e.Payload = payload
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read action log: %w", err)
	}
	return entries, nil
}
