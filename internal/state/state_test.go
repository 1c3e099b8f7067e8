package state

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/gridline/bot-engine/internal/model"
)

func TestNewSnapshotDefaults(t *testing.T) {
	snap := NewSnapshot("bot1")

	if snap.BotID != "bot1" {
		t.Errorf("bot id = %s", snap.BotID)
	}
	if !snap.Balance.Cash.Equal(decimal.NewFromInt(10000)) {
		t.Errorf("default cash = %s, want 10000", snap.Balance.Cash)
	}
	if snap.IsRunning || snap.IsPaused {
		t.Error("fresh snapshot must be idle")
	}
	if snap.Version != model.SnapshotVersion {
		t.Errorf("version = %d, want %d", snap.Version, model.SnapshotVersion)
	}
}

func TestMigrateOldSnapshot(t *testing.T) {
	// A version-0 snapshot as an older build would have written it:
	// no vaults, no statistics block, no version marker.
	raw := []byte(`{
		"bot_id": "bot1",
		"is_running": true,
		"balance": {"cash": "8999", "inventory": "0.02"},
		"trades": [],
		"positions": []
	}`)

	snap, err := DecodeSnapshot(raw)
	if err != nil {
		t.Fatal(err)
	}

	if !Migrate(snap) {
		t.Fatal("old snapshot must report a migration")
	}
	if snap.Version != model.SnapshotVersion {
		t.Errorf("migrated version = %d, want %d", snap.Version, model.SnapshotVersion)
	}
	if !snap.Balance.ProfitVault.IsZero() || !snap.Balance.InventoryVault.IsZero() {
		t.Error("missing vault fields must default to zero")
	}
	if !snap.Statistics.TotalFees.IsZero() {
		t.Error("missing statistics block must default to zero")
	}
	if !snap.Balance.Cash.Equal(decimal.NewFromInt(8999)) {
		t.Errorf("existing fields must survive migration, cash = %s", snap.Balance.Cash)
	}

	// Current snapshots migrate to themselves.
	if Migrate(snap) {
		t.Error("migrating a current snapshot must be a no-op")
	}
}

func TestMemoryRepositoryRoundTrip(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepository()

	if snap, err := repo.Load(ctx, "missing"); err != nil || snap != nil {
		t.Fatalf("absent bot should load (nil, nil), got (%v, %v)", snap, err)
	}

	in := NewSnapshot("bot1")
	in.Balance.Inventory = decimal.NewFromFloat(0.02)
	in.Trades = []model.Trade{{ID: "t1", Side: model.SideBuy}}

	if err := repo.Save(ctx, "bot1", in); err != nil {
		t.Fatal(err)
	}

	out, err := repo.Load(ctx, "bot1")
	if err != nil {
		t.Fatal(err)
	}
	if !out.Balance.Inventory.Equal(in.Balance.Inventory) {
		t.Errorf("inventory = %s, want %s", out.Balance.Inventory, in.Balance.Inventory)
	}
	if len(out.Trades) != 1 || out.Trades[0].ID != "t1" {
		t.Error("trades must round-trip")
	}
}
