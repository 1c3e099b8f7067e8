package ledger

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func d(f float64) decimal.Decimal {
	return decimal.NewFromFloat(f)
}

func addLot(t *testing.T, pm *PositionManager, price, size float64) string {
	t.Helper()
	p := pm.NewPosition(d(price), d(size), "test", time.Now().UTC())
	pm.Add(p)
	return p.ID
}

func TestAverageEntryPrice(t *testing.T) {
	pm := NewPositionManager()

	if !pm.AverageEntryPrice().IsZero() {
		t.Fatal("empty book should report zero average entry price")
	}

	addLot(t, pm, 50000, 0.01)
	addLot(t, pm, 52000, 0.02)

	// (50000*0.01 + 52000*0.02) / 0.03 = 1540/0.03
	want := d(1540).Div(d(0.03))
	if got := pm.AverageEntryPrice(); !got.Equal(want) {
		t.Errorf("average entry price = %s, want %s", got, want)
	}
}

func TestTotals(t *testing.T) {
	pm := NewPositionManager()
	addLot(t, pm, 100, 2)
	addLot(t, pm, 200, 3)

	if got := pm.TotalSize(); !got.Equal(d(5)) {
		t.Errorf("total size = %s, want 5", got)
	}
	if got := pm.TotalCostBasis(); !got.Equal(d(800)) {
		t.Errorf("total cost basis = %s, want 800", got)
	}
	if got := pm.UnrealizedPnL(d(300)); !got.Equal(d(700)) {
		t.Errorf("unrealized pnl at 300 = %s, want 700", got)
	}
}

func TestRemoveAndClear(t *testing.T) {
	pm := NewPositionManager()
	id := addLot(t, pm, 100, 1)
	addLot(t, pm, 110, 1)

	pm.Remove(id)
	if pm.Len() != 1 {
		t.Fatalf("expected 1 lot after remove, got %d", pm.Len())
	}
	pm.Remove("missing") // no-op
	if pm.Len() != 1 {
		t.Fatalf("remove of unknown id must be a no-op")
	}

	pm.ClearAll()
	if pm.Len() != 0 || !pm.TotalSize().IsZero() {
		t.Error("clear should empty the book")
	}
}

func TestConsumeOldestFIFO(t *testing.T) {
	pm := NewPositionManager()
	first := addLot(t, pm, 50000, 0.01)
	second := addLot(t, pm, 51000, 0.02)

	fills := pm.ConsumeOldest(d(0.015))

	if len(fills) != 2 {
		t.Fatalf("expected 2 fills, got %d", len(fills))
	}
	if fills[0].positionID != first || !fills[0].size.Equal(d(0.01)) {
		t.Errorf("first fill should fully consume the oldest lot, got %+v", fills[0])
	}
	if fills[1].positionID != second || !fills[1].size.Equal(d(0.005)) {
		t.Errorf("second fill should take half the newer lot, got %+v", fills[1])
	}

	// Matched cost basis: full first lot plus half the second lot.
	want := d(50000).Mul(d(0.01)).Add(d(51000).Mul(d(0.005)))
	got := fills[0].costBasis.Add(fills[1].costBasis)
	if !got.Equal(want) {
		t.Errorf("matched cost basis = %s, want %s", got, want)
	}

	// The partially consumed lot shrinks in place, it is not recreated.
	rest, ok := pm.Get(second)
	if !ok {
		t.Fatal("partially consumed lot must remain open")
	}
	if !rest.Size.Equal(d(0.015)) {
		t.Errorf("remaining size = %s, want 0.015", rest.Size)
	}
	if pm.Len() != 1 {
		t.Errorf("exhausted lot must be removed, book has %d lots", pm.Len())
	}
}

func TestMostProfitable(t *testing.T) {
	pm := NewPositionManager()

	if _, ok := pm.MostProfitable(d(100)); ok {
		t.Fatal("empty book has no most profitable lot")
	}

	addLot(t, pm, 100, 1)
	deep := addLot(t, pm, 80, 1)
	addLot(t, pm, 120, 1)

	best, ok := pm.MostProfitable(d(110))
	if !ok {
		t.Fatal("expected a lot")
	}
	if best.ID != deep {
		t.Errorf("most profitable should be the 80-entry lot, got entry %s", best.EntryPrice)
	}
}
