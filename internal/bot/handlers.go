package bot

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/gridline/bot-engine/internal/model"
)

// ListBots handles GET /api/v1/bots
func (m *Manager) ListBots(w http.ResponseWriter, r *http.Request) {
	ids := m.IDs()
	summaries := make([]map[string]any, 0, len(ids))
	for _, id := range ids {
		o, ok := m.Lookup(id)
		if !ok {
			continue
		}
		snap := o.Status()
		summaries = append(summaries, map[string]any{
			"botId":     id,
			"pair":      o.Pair(),
			"isRunning": snap.IsRunning,
			"isPaused":  snap.IsPaused,
			"strategy":  snap.StrategyType,
			"cash":      snap.Balance.Cash,
			"inventory": snap.Balance.Inventory,
		})
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(summaries)
}

// GetBot handles GET /api/v1/bots/{botID}
func (m *Manager) GetBot(w http.ResponseWriter, r *http.Request) {
	botID := chi.URLParam(r, "botID")

	o, ok := m.Lookup(botID)
	if !ok {
		writeError(w, "bot not found", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(o.Status())
}

// GetTrades handles GET /api/v1/bots/{botID}/trades
func (m *Manager) GetTrades(w http.ResponseWriter, r *http.Request) {
	botID := chi.URLParam(r, "botID")

	o, ok := m.Lookup(botID)
	if !ok {
		writeError(w, "bot not found", http.StatusNotFound)
		return
	}

	trades := o.Trades()
	if trades == nil {
		trades = []model.Trade{}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(trades)
}

// GetPositions handles GET /api/v1/bots/{botID}/positions
func (m *Manager) GetPositions(w http.ResponseWriter, r *http.Request) {
	botID := chi.URLParam(r, "botID")

	o, ok := m.Lookup(botID)
	if !ok {
		writeError(w, "bot not found", http.StatusNotFound)
		return
	}

	positions := o.Positions()
	if positions == nil {
		positions = []model.Position{}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(positions)
}

func writeError(w http.ResponseWriter, message string, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}
