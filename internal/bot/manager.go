package bot

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/gridline/bot-engine/internal/feed"
	"github.com/gridline/bot-engine/internal/ledger"
	"github.com/gridline/bot-engine/internal/metrics"
	"github.com/gridline/bot-engine/internal/risk"
	"github.com/gridline/bot-engine/internal/state"
)

// Manager is the bot registry. Bots are created lazily on first reference
// so a restored deployment only pays for the bots actually addressed.
type Manager struct {
	repo     state.Repository
	limiter  *risk.Limiter
	notifier ledger.Notifier
	hub      *Hub
	pair     string

	mu   sync.RWMutex
	bots map[string]*Orchestrator
}

// NewManager wires the registry. The hub must be Bind-ed back to the
// manager by the caller.
func NewManager(repo state.Repository, limiter *risk.Limiter, notifier ledger.Notifier, hub *Hub, pair string) *Manager {
	return &Manager{
		repo:     repo,
		limiter:  limiter,
		notifier: notifier,
		hub:      hub,
		pair:     pair,
		bots:     make(map[string]*Orchestrator),
	}
}

// Get returns the bot with the given id, creating and restoring it on
// first reference. Empty ids resolve to nothing.
func (m *Manager) Get(botID string) *Orchestrator {
	if botID == "" {
		return nil
	}

	m.mu.RLock()
	o, ok := m.bots[botID]
	m.mu.RUnlock()
	if ok {
		return o
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if o, ok := m.bots[botID]; ok {
		return o
	}
	o = NewOrchestrator(botID, m.pair, m.repo, m.limiter, m.notifier, m.hub.Broadcast)
	m.bots[botID] = o
	return o
}

// Lookup returns an existing bot without creating one.
func (m *Manager) Lookup(botID string) (*Orchestrator, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	o, ok := m.bots[botID]
	return o, ok
}

// IDs returns the registered bot ids, sorted.
func (m *Manager) IDs() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ids := make([]string, 0, len(m.bots))
	for id := range m.bots {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// OnTick fans one price tick out to every registered bot. Bots are
// snapshotted under the read lock first so a slow orchestrator never
// holds the registry.
func (m *Manager) OnTick(tick feed.Tick) {
	metrics.TicksTotal.WithLabelValues(tick.Pair).Inc()

	m.mu.RLock()
	bots := make([]*Orchestrator, 0, len(m.bots))
	for _, o := range m.bots {
		bots = append(bots, o)
	}
	m.mu.RUnlock()

	for _, o := range bots {
		o.OnPriceTick(tick.Price, tick.At)
	}
}

// Shutdown synchronously flushes every bot's snapshot. Called once on
// graceful shutdown.
func (m *Manager) Shutdown(ctx context.Context) {
	m.mu.RLock()
	bots := make([]*Orchestrator, 0, len(m.bots))
	for _, o := range m.bots {
		bots = append(bots, o)
	}
	m.mu.RUnlock()

	for _, o := range bots {
		flushCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		if err := o.Flush(flushCtx); err != nil {
			slog.Error("final snapshot flush failed", "bot", o.ID(), "err", err)
		}
		cancel()
	}
}
