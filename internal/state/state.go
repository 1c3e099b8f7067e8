// Package state defines durable persistence of per-bot snapshots.
// Implementations include PostgreSQL (source of truth), Redis (read-through
// cache), and in-memory (for testing and single-process runs).
package state

import (
	"context"
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"

	"github.com/gridline/bot-engine/internal/model"
)

// Repository is the snapshot persistence contract. Load returns (nil, nil)
// when no snapshot exists for the bot. Both operations are fallible; the
// orchestrator logs failures and keeps running.
type Repository interface {
	// Load retrieves the latest snapshot for a bot.
	Load(ctx context.Context, botID string) (*model.Snapshot, error)

	// Save overwrites the bot's snapshot.
	Save(ctx context.Context, botID string, snap *model.Snapshot) error
}

// DefaultCash is the quote balance a fresh bot starts with.
var DefaultCash = decimal.NewFromInt(10000)

// NewSnapshot builds the default state for a bot seen for the first time.
func NewSnapshot(botID string) *model.Snapshot {
	return &model.Snapshot{
		Version: model.SnapshotVersion,
		BotID:   botID,
		Balance: model.Balance{
			Cash:           DefaultCash,
			Inventory:      decimal.Zero,
			ProfitVault:    decimal.Zero,
			InventoryVault: decimal.Zero,
		},
		UpdatedAt: time.Now().UTC(),
	}
}

// Migrate brings an older snapshot forward to the current schema, filling
// fields the stored shape predates (vaults, statistics). The caller always
// re-persists the migrated result. Returns true when anything changed.
func Migrate(snap *model.Snapshot) bool {
	if snap.Version >= model.SnapshotVersion {
		return false
	}
	// Version 0/1 snapshots may lack vault fields and the statistics
	// block; decimal zero values unmarshal safely, so only the version
	// marker needs correcting. Trades and positions carry forward as-is.
	snap.Version = model.SnapshotVersion
	return true
}

// DecodeSnapshot unmarshals a stored snapshot, tolerating older shapes.
func DecodeSnapshot(data []byte) (*model.Snapshot, error) {
	var snap model.Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, err
	}
	return &snap, nil
}
