package state

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/gridline/bot-engine/internal/model"
)

// PostgresRepository implements Repository using PostgreSQL as the source
// of truth. Snapshots are stored whole as JSONB, one row per bot id; the
// engine only ever needs the latest state, so there is no history table —
// the trade list inside the snapshot is the audit trail.
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresRepository creates a PostgreSQL-backed repository.
func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{pool: pool}
}

// EnsureSchema creates the snapshot table when missing.
func (r *PostgresRepository) EnsureSchema(ctx context.Context) error {
	_, err := r.pool.Exec(ctx,
		`CREATE TABLE IF NOT EXISTS bot_snapshots (
			bot_id     TEXT PRIMARY KEY,
			snapshot   JSONB NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`)
	if err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}

func (r *PostgresRepository) Load(ctx context.Context, botID string) (*model.Snapshot, error) {
	var data []byte
	err := r.pool.QueryRow(ctx,
		`SELECT snapshot FROM bot_snapshots WHERE bot_id = $1`, botID).
		Scan(&data)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load snapshot %s: %w", botID, err)
	}
	return DecodeSnapshot(data)
}

func (r *PostgresRepository) Save(ctx context.Context, botID string, snap *model.Snapshot) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("marshal snapshot %s: %w", botID, err)
	}
	_, err = r.pool.Exec(ctx,
		`INSERT INTO bot_snapshots (bot_id, snapshot, updated_at)
		 VALUES ($1, $2, $3)
		 ON CONFLICT (bot_id) DO UPDATE
		 SET snapshot = EXCLUDED.snapshot, updated_at = EXCLUDED.updated_at`,
		botID, data, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("save snapshot %s: %w", botID, err)
	}
	return nil
}
