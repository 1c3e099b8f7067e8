package bot_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/gridline/bot-engine/internal/bot"
	"github.com/gridline/bot-engine/internal/model"
	"github.com/gridline/bot-engine/internal/risk"
	"github.com/gridline/bot-engine/internal/state"
)

func newTestAPI(t *testing.T) (*bot.Manager, chi.Router) {
	t.Helper()
	repo := state.NewMemoryRepository()
	limiter := risk.NewLimiter(decimal.Zero, decimal.Zero, 0, decimal.Zero)
	hub := bot.NewHub("bot-1")
	mgr := bot.NewManager(repo, limiter, nil, hub, "BTC-USD")
	hub.Bind(mgr)

	r := chi.NewRouter()
	r.Get("/api/v1/bots", mgr.ListBots)
	r.Get("/api/v1/bots/{botID}", mgr.GetBot)
	r.Get("/api/v1/bots/{botID}/trades", mgr.GetTrades)
	r.Get("/api/v1/bots/{botID}/positions", mgr.GetPositions)
	return mgr, r
}

func get(t *testing.T, r chi.Router, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func TestListBots(t *testing.T) {
	mgr, r := newTestAPI(t)

	rec := get(t, r, "/api/v1/bots")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var empty []map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &empty); err != nil {
		t.Fatal(err)
	}
	if len(empty) != 0 {
		t.Fatalf("fresh registry lists %d bots", len(empty))
	}

	mgr.Get("bot-b")
	mgr.Get("bot-a")

	rec = get(t, r, "/api/v1/bots")
	var bots []map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &bots); err != nil {
		t.Fatal(err)
	}
	if len(bots) != 2 {
		t.Fatalf("listed %d bots, want 2", len(bots))
	}
	if bots[0]["botId"] != "bot-a" || bots[1]["botId"] != "bot-b" {
		t.Fatalf("bots not sorted: %v, %v", bots[0]["botId"], bots[1]["botId"])
	}
}

func TestGetBot(t *testing.T) {
	mgr, r := newTestAPI(t)
	mgr.Get("bot-1")

	rec := get(t, r, "/api/v1/bots/bot-1")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var snap model.Snapshot
	if err := json.Unmarshal(rec.Body.Bytes(), &snap); err != nil {
		t.Fatal(err)
	}
	if snap.BotID != "bot-1" {
		t.Fatalf("bot id = %q", snap.BotID)
	}
	if !snap.Balance.Cash.Equal(state.DefaultCash) {
		t.Fatalf("cash = %s, want default", snap.Balance.Cash)
	}

	if rec := get(t, r, "/api/v1/bots/nope"); rec.Code != http.StatusNotFound {
		t.Fatalf("unknown bot status = %d, want 404", rec.Code)
	}
}

func TestTradesAndPositionsEmpty(t *testing.T) {
	mgr, r := newTestAPI(t)
	mgr.Get("bot-1")

	for _, path := range []string{
		"/api/v1/bots/bot-1/trades",
		"/api/v1/bots/bot-1/positions",
	} {
		rec := get(t, r, path)
		if rec.Code != http.StatusOK {
			t.Fatalf("%s status = %d", path, rec.Code)
		}
		if body := rec.Body.String(); body != "[]\n" && body != "[]" {
			t.Fatalf("%s body = %q, want empty array", path, body)
		}
	}

	if rec := get(t, r, "/api/v1/bots/nope/trades"); rec.Code != http.StatusNotFound {
		t.Fatalf("unknown bot trades status = %d, want 404", rec.Code)
	}
}
