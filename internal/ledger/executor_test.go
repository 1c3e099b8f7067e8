package ledger

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/gridline/bot-engine/internal/model"
)

type recordingNotifier struct {
	mu    sync.Mutex
	calls []model.Trade
	done  chan struct{}
}

func (n *recordingNotifier) ProfitableSell(t model.Trade) {
	n.mu.Lock()
	n.calls = append(n.calls, t)
	n.mu.Unlock()
	select {
	case n.done <- struct{}{}:
	default:
	}
}

func newExec(t *testing.T) (*Executor, *PositionManager) {
	t.Helper()
	pm := NewPositionManager()
	return NewExecutor(pm, nil), pm
}

func TestExecuteBuy(t *testing.T) {
	e, pm := newExec(t)

	pos, trade, err := e.ExecuteBuy(d(0.02), d(50000), "grid entry")
	if err != nil {
		t.Fatal(err)
	}

	if !pos.EntryPrice.Equal(d(50000)) || !pos.Size.Equal(d(0.02)) {
		t.Errorf("lot = %s @ %s, want 0.02 @ 50000", pos.Size, pos.EntryPrice)
	}
	if !trade.Notional.Equal(d(1000)) {
		t.Errorf("notional = %s, want 1000", trade.Notional)
	}
	if !trade.Fees.Equal(d(1)) {
		t.Errorf("fees = %s, want 1 (0.1%% of 1000)", trade.Fees)
	}
	if pm.Len() != 1 {
		t.Errorf("book should hold 1 lot, has %d", pm.Len())
	}
	if len(e.History()) != 1 {
		t.Error("buy must append to trade history")
	}

	if _, _, err := e.ExecuteBuy(d(0), d(50000), "zero"); !errors.Is(err, ErrNonPositiveAmount) {
		t.Errorf("zero amount should fail, got %v", err)
	}
}

func TestExecuteSellFIFO(t *testing.T) {
	e, pm := newExec(t)

	// Buy 0.01 @ 50000, then 0.02 @ 51000; selling 0.015 consumes the
	// full first lot plus half the second lot's cost basis.
	if _, _, err := e.ExecuteBuy(d(0.01), d(50000), "a"); err != nil {
		t.Fatal(err)
	}
	if _, _, err := e.ExecuteBuy(d(0.02), d(51000), "b"); err != nil {
		t.Fatal(err)
	}

	trade, err := e.ExecuteSell(d(0.015), d(52000), "take profit")
	if err != nil {
		t.Fatal(err)
	}

	wantBasis := d(50000).Mul(d(0.01)).Add(d(51000).Mul(d(0.005))) // 755
	if !trade.CostBasis.Equal(wantBasis) {
		t.Errorf("cost basis = %s, want %s", trade.CostBasis, wantBasis)
	}

	notional := d(0.015).Mul(d(52000)) // 780
	fee := notional.Mul(DefaultFeeRate)
	wantProfit := notional.Sub(fee).Sub(wantBasis)
	if !trade.Profit.Equal(wantProfit) {
		t.Errorf("profit = %s, want %s", trade.Profit, wantProfit)
	}

	if !pm.TotalSize().Equal(d(0.015)) {
		t.Errorf("remaining inventory = %s, want 0.015", pm.TotalSize())
	}
}

func TestExecuteSellInsufficient(t *testing.T) {
	e, _ := newExec(t)
	if _, _, err := e.ExecuteBuy(d(0.01), d(50000), "a"); err != nil {
		t.Fatal(err)
	}

	_, err := e.ExecuteSell(d(0.02), d(52000), "too much")
	if !errors.Is(err, ErrInsufficientInventory) {
		t.Fatalf("expected ErrInsufficientInventory, got %v", err)
	}
	if len(e.History()) != 1 {
		t.Error("failed sell must not append to history")
	}
}

func TestSellPosition(t *testing.T) {
	e, pm := newExec(t)
	_, _, _ = e.ExecuteBuy(d(0.01), d(50000), "a")
	pos, _, _ := e.ExecuteBuy(d(0.02), d(48000), "b")

	trade, err := e.SellPosition(pos.ID, d(50000), "grid sell")
	if err != nil {
		t.Fatal(err)
	}
	if !trade.Amount.Equal(d(0.02)) {
		t.Errorf("sold %s, want the full 0.02 lot", trade.Amount)
	}
	if !trade.CostBasis.Equal(d(960)) {
		t.Errorf("cost basis = %s, want 960", trade.CostBasis)
	}
	if pm.Len() != 1 {
		t.Errorf("only the sold lot should close, book has %d lots", pm.Len())
	}

	if _, err := e.SellPosition("missing", d(50000), "x"); err == nil {
		t.Error("selling an unknown position must fail")
	}
}

func TestProfitableSellNotification(t *testing.T) {
	pm := NewPositionManager()
	n := &recordingNotifier{done: make(chan struct{}, 1)}
	e := NewExecutor(pm, n)

	_, _, _ = e.ExecuteBuy(d(0.02), d(50000), "a")
	if _, err := e.ExecuteSell(d(0.02), d(50500), "win"); err != nil {
		t.Fatal(err)
	}

	select {
	case <-n.done:
	case <-time.After(time.Second):
		t.Fatal("profitable sell should notify")
	}

	// Losing sells do not notify.
	_, _, _ = e.ExecuteBuy(d(0.02), d(50000), "b")
	if _, err := e.ExecuteSell(d(0.02), d(40000), "loss"); err != nil {
		t.Fatal(err)
	}
	select {
	case <-n.done:
		t.Fatal("losing sell must not notify")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestClearHistory(t *testing.T) {
	e, _ := newExec(t)
	_, _, _ = e.ExecuteBuy(d(0.01), d(50000), "a")
	e.ClearHistory()
	if len(e.History()) != 0 {
		t.Error("clear should empty the trade history")
	}
}
