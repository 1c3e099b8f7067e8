package bot

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/gridline/bot-engine/internal/feed"
	"github.com/gridline/bot-engine/internal/risk"
	"github.com/gridline/bot-engine/internal/state"
)

func newTestManager(t *testing.T) (*Manager, *state.MemoryRepository) {
	t.Helper()
	repo := state.NewMemoryRepository()
	limiter := risk.NewLimiter(decimal.Zero, decimal.Zero, 0, decimal.Zero)
	hub := NewHub("bot-1")
	mgr := NewManager(repo, limiter, nil, hub, "BTC-USD")
	hub.Bind(mgr)
	return mgr, repo
}

func TestManagerLazyCreation(t *testing.T) {
	mgr, _ := newTestManager(t)

	if _, ok := mgr.Lookup("bot-1"); ok {
		t.Fatal("lookup created a bot")
	}
	if mgr.Get("") != nil {
		t.Fatal("empty id resolved to a bot")
	}

	a := mgr.Get("bot-1")
	if a == nil {
		t.Fatal("get did not create the bot")
	}
	if b := mgr.Get("bot-1"); b != a {
		t.Fatal("second get returned a different instance")
	}
}

func TestManagerIDsSorted(t *testing.T) {
	mgr, _ := newTestManager(t)
	mgr.Get("charlie")
	mgr.Get("alpha")
	mgr.Get("bravo")

	ids := mgr.IDs()
	want := []string{"alpha", "bravo", "charlie"}
	if len(ids) != len(want) {
		t.Fatalf("ids = %v", ids)
	}
	for i := range want {
		if ids[i] != want[i] {
			t.Fatalf("ids = %v, want %v", ids, want)
		}
	}
}

func TestManagerTickFanout(t *testing.T) {
	mgr, _ := newTestManager(t)
	mgr.Get("bot-1")
	mgr.Get("bot-2")

	mgr.OnTick(feed.Tick{Pair: "BTC-USD", Price: d(42000), At: tickBase})

	for _, id := range []string{"bot-1", "bot-2"} {
		o, _ := mgr.Lookup(id)
		if !o.Status().CurrentPrice.Equal(d(42000)) {
			t.Fatalf("%s current price = %s, want 42000", id, o.Status().CurrentPrice)
		}
	}
}

func TestManagerShutdownFlushes(t *testing.T) {
	mgr, repo := newTestManager(t)
	mgr.Get("bot-1")
	mgr.OnTick(feed.Tick{Pair: "BTC-USD", Price: d(42000), At: tickBase})

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	mgr.Shutdown(ctx)

	snap, err := repo.Load(context.Background(), "bot-1")
	if err != nil {
		t.Fatal(err)
	}
	if snap == nil {
		t.Fatal("shutdown left no snapshot behind")
	}
	if !snap.CurrentPrice.Equal(d(42000)) {
		t.Fatalf("flushed price = %s, want 42000", snap.CurrentPrice)
	}
}
