// Package bot implements the trading-bot orchestration engine: per-bot
// lifecycle state machines, the price-tick hot path, state persistence and
// reconciliation, and WebSocket fan-out to observing clients.
package bot

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/gridline/bot-engine/internal/candle"
	"github.com/gridline/bot-engine/internal/ledger"
	"github.com/gridline/bot-engine/internal/metrics"
	"github.com/gridline/bot-engine/internal/model"
	"github.com/gridline/bot-engine/internal/risk"
	"github.com/gridline/bot-engine/internal/state"
	"github.com/gridline/bot-engine/internal/strategy"
)

// Hot-path tuning. Display updates happen on every tick; heavy analysis,
// reconciliation, and broadcast volume are each rate-limited independently.
const (
	minAnalysisInterval = 2 * time.Second
	reconcileInterval   = 10 * time.Second
	broadcastEveryNth   = 10
	saveTimeout         = 5 * time.Second
)

// broadcastPriceDelta is the fractional price move that forces a
// priceUpdate broadcast ahead of the Nth-tick schedule.
var broadcastPriceDelta = decimal.NewFromFloat(0.0005)

// Profit allocation on a winning sell, net of fees.
var (
	profitVaultShare    = decimal.NewFromFloat(0.6)
	inventoryVaultShare = decimal.NewFromFloat(0.2)
	reinvestShare       = decimal.NewFromFloat(0.2)
)

// defaultProfitTarget applies when no strategy config carries one (e.g.
// degraded mode profit-taking on restored positions).
var defaultProfitTarget = decimal.NewFromFloat(0.004)

// StartConfig carries the operator's start parameters.
type StartConfig struct {
	StrategyType   string               `json:"strategyType"`
	StrategyConfig model.StrategyConfig `json:"strategyConfig"`
}

// Orchestrator owns one bot: its lifecycle state machine, balance, candle
// window, ledger, and strategy. All mutations run under one mutex so a tick
// is handled to completion before the next interleaves — the correctness
// boundary for the ledger.
type Orchestrator struct {
	id      string
	pair    string
	repo    state.Repository
	limiter *risk.Limiter
	send    func(Message) // per-bot broadcast sink; never nil

	mu        sync.Mutex
	positions *ledger.PositionManager
	executor  *ledger.Executor
	window    *candle.Window

	strat          strategy.Strategy // nil in degraded mode
	strategyType   string
	strategyConfig model.StrategyConfig

	balance model.Balance
	stats   model.Statistics

	isRunning bool
	isPaused  bool

	currentPrice   decimal.Decimal
	lastAnalysisAt time.Time
	lastReconcile  time.Time
	lastBroadcast  decimal.Decimal
	tickCount      int

	// Aggregate range carried over from a restored snapshot, reported
	// until the live window has candles of its own.
	restoredHigh decimal.Decimal
	restoredLow  decimal.Decimal

	// saveSeq stamps each snapshot handed to the writer; savedSeq (under
	// saveMu) tracks the newest one that reached the repository, so a
	// slow older write never clobbers a newer one.
	saveSeq  uint64
	saveMu   sync.Mutex
	savedSeq uint64

	now func() time.Time
}

// NewOrchestrator constructs a bot and adopts its persisted snapshot when
// one exists: the snapshot is migrated, divergent ledgers are repaired from
// trade history, and the migrated shape is persisted back.
func NewOrchestrator(id, pair string, repo state.Repository, limiter *risk.Limiter, notifier ledger.Notifier, send func(Message)) *Orchestrator {
	if send == nil {
		send = func(Message) {}
	}
	pm := ledger.NewPositionManager()
	o := &Orchestrator{
		id:        id,
		pair:      pair,
		repo:      repo,
		limiter:   limiter,
		send:      send,
		positions: pm,
		executor:  ledger.NewExecutor(pm, notifier),
		window:    candle.NewWindow(candle.DefaultInterval, candle.DefaultCap),
		balance:   state.NewSnapshot(id).Balance,
		now:       time.Now,
	}
	o.restore()
	return o
}

// restore loads and adopts persisted state. Load failures leave the
// in-memory defaults in place.
func (o *Orchestrator) restore() {
	ctx, cancel := context.WithTimeout(context.Background(), saveTimeout)
	defer cancel()

	snap, err := o.repo.Load(ctx, o.id)
	if err != nil {
		slog.Error("state load failed, starting from defaults", "bot", o.id, "err", err)
		return
	}
	if snap == nil {
		return
	}

	migrated := state.Migrate(snap)
	o.adopt(snap)
	if o.isRunning {
		metrics.ActiveBots.Inc()
	}

	if migrated {
		o.persistLocked()
	}
	slog.Info("state restored", "bot", o.id,
		"cash", o.balance.Cash, "inventory", o.balance.Inventory,
		"positions", o.positions.Len(), "trades", len(snap.Trades))
}

// adopt replaces in-memory state with a (migrated) snapshot. Caller holds
// the lock or is the constructor.
func (o *Orchestrator) adopt(snap *model.Snapshot) {
	o.balance = snap.Balance
	o.stats = snap.Statistics
	o.strategyType = snap.StrategyType
	o.strategyConfig = snap.StrategyConfig
	o.currentPrice = snap.CurrentPrice
	o.restoredHigh = snap.RecentHigh
	o.restoredLow = snap.RecentLow
	o.executor.RestoreHistory(snap.Trades)
	o.positions.Restore(snap.Positions)

	// Ledger divergence: nonzero inventory with no matching position
	// list is repaired from the trade audit trail.
	if !o.positions.TotalSize().Equal(snap.Balance.Inventory) {
		repaired := ledger.Reconstruct(snap.Trades, snap.Balance.Inventory, o.now().UTC())
		slog.Warn("ledger divergence repaired from trade history",
			"bot", o.id,
			"inventory", snap.Balance.Inventory,
			"listed", o.positions.TotalSize(),
			"reconstructed_lots", len(repaired))
		o.positions.Restore(repaired)
	}

	// A snapshot taken while running resumes paused: the operator
	// decides when trading continues after a restart.
	o.isRunning = snap.IsRunning
	o.isPaused = snap.IsRunning
	if o.strat != nil {
		o.strat.RestorePositions(o.positions.List())
	}
}

// ID returns the bot id.
func (o *Orchestrator) ID() string { return o.id }

// Pair returns the traded pair symbol.
func (o *Orchestrator) Pair() string { return o.pair }

// --- Lifecycle commands ---

// Start transitions Idle→Running. Already running is a no-op. Strategy
// construction failure puts the bot in degraded mode (display, candles,
// and opportunistic profit-taking only) rather than failing the command.
func (o *Orchestrator) Start(cfg StartConfig) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.isRunning && !o.isPaused {
		return
	}

	strat, err := strategy.New(cfg.StrategyType, cfg.StrategyConfig)
	if err != nil {
		slog.Warn("strategy unavailable, running degraded",
			"bot", o.id, "type", cfg.StrategyType, "err", err)
		o.strat = nil
	} else {
		strat.RestorePositions(o.positions.List())
		o.strat = strat
		o.strategyConfig = strat.Config()
	}
	o.strategyType = cfg.StrategyType

	wasRunning := o.isRunning
	o.isRunning = true
	o.isPaused = false
	if !wasRunning {
		metrics.ActiveBots.Inc()
	}

	slog.Info("bot started", "bot", o.id, "strategy", cfg.StrategyType, "degraded", o.strat == nil)
	o.persistLocked()
	o.broadcastStatusLocked()
}

// Pause suspends strategy evaluation. Valid only from Running.
func (o *Orchestrator) Pause() {
	o.mu.Lock()
	defer o.mu.Unlock()

	if !o.isRunning || o.isPaused {
		return
	}
	o.isPaused = true
	slog.Info("bot paused", "bot", o.id)
	o.persistLocked()
	o.broadcastStatusLocked()
}

// Resume continues strategy evaluation. Valid only from Paused.
func (o *Orchestrator) Resume() {
	o.mu.Lock()
	defer o.mu.Unlock()

	if !o.isRunning || !o.isPaused {
		return
	}
	o.isPaused = false
	slog.Info("bot resumed", "bot", o.id)
	o.persistLocked()
	o.broadcastStatusLocked()
}

// Stop drops the strategy and leaves Running. Balance, trades, and open
// positions are retained.
func (o *Orchestrator) Stop() {
	o.mu.Lock()
	defer o.mu.Unlock()

	if !o.isRunning {
		return
	}
	o.strat = nil
	o.isRunning = false
	o.isPaused = false
	metrics.ActiveBots.Dec()

	slog.Info("bot stopped", "bot", o.id)
	o.persistLocked()
	o.send(Message{Type: MsgTradingStopped, BotID: o.id})
	o.broadcastStatusLocked()
}

// Reset restores the default balance and clears positions, trades, and
// statistics. Lifecycle flags are untouched.
func (o *Orchestrator) Reset() {
	o.mu.Lock()
	defer o.mu.Unlock()

	o.balance = state.NewSnapshot(o.id).Balance
	o.stats = model.Statistics{}
	o.positions.ClearAll()
	o.executor.ClearHistory()
	if o.strat != nil {
		o.strat.RestorePositions(nil)
	}

	slog.Info("bot reset", "bot", o.id)
	o.persistLocked()
	snap := o.snapshotLocked()
	o.send(Message{Type: MsgResetComplete, BotID: o.id, Status: snap})
	o.send(Message{Type: MsgStatus, BotID: o.id, Data: snap})
}

// Status returns a copy of the bot's full state.
func (o *Orchestrator) Status() *model.Snapshot {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.snapshotLocked()
}

// Trades returns the append-only execution history.
func (o *Orchestrator) Trades() []model.Trade {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.executor.History()
}

// Positions returns the open lots.
func (o *Orchestrator) Positions() []model.Position {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.positions.List()
}

// Flush synchronously persists the current snapshot. Called on graceful
// shutdown so the final state survives; in-flight older saves cannot
// overwrite it.
func (o *Orchestrator) Flush(ctx context.Context) error {
	o.mu.Lock()
	o.saveSeq++
	seq := o.saveSeq
	snap := o.snapshotLocked()
	o.mu.Unlock()
	return o.save(ctx, seq, snap)
}

// --- Price tick hot path ---

// OnPriceTick folds one observed price into the bot. Ticks are serialized
// by the orchestrator mutex; each is handled to completion, including the
// fire-and-forget persistence kick-off, before the next begins.
func (o *Orchestrator) OnPriceTick(price decimal.Decimal, at time.Time) {
	if !price.IsPositive() {
		return
	}
	start := time.Now()
	defer func() { metrics.TickLatency.Observe(time.Since(start).Seconds()) }()

	o.mu.Lock()
	defer o.mu.Unlock()

	// Display price updates on every tick regardless of rate limits.
	o.currentPrice = price
	o.tickCount++

	// Heavy work is rate-limited to bound CPU under bursty input.
	if at.Sub(o.lastAnalysisAt) < minAnalysisInterval {
		return
	}
	o.lastAnalysisAt = at

	// Flat-ledger reconciliation: with nothing at stake locally, the
	// durable view wins. Guards against drift after external mutation.
	if o.balance.Inventory.IsZero() && o.positions.Len() == 0 &&
		at.Sub(o.lastReconcile) >= reconcileInterval {
		o.lastReconcile = at
		o.reloadLocked()
	}

	// Opportunistic profit-take runs even while paused or stopped: a
	// bot holding profitable inventory harvests it regardless.
	if o.takeProfitLocked(price) {
		return
	}

	if !o.isRunning || o.isPaused {
		return
	}

	o.window.Update(price, at)
	o.maybeBroadcastPriceLocked(price)

	if o.strat == nil {
		return // degraded mode: no new signals
	}

	sig := o.strat.Analyze(o.window.Candles(), price)
	switch sig.Type {
	case model.SignalBuy:
		o.executeBuyLocked(sig, price)
	case model.SignalSell:
		o.executeSellLocked(sig, price)
	}
}

// reloadLocked re-adopts the durable snapshot.
func (o *Orchestrator) reloadLocked() {
	ctx, cancel := context.WithTimeout(context.Background(), saveTimeout)
	defer cancel()

	snap, err := o.repo.Load(ctx, o.id)
	if err != nil {
		slog.Warn("reconciliation load failed", "bot", o.id, "err", err)
		return
	}
	if snap == nil {
		return
	}
	state.Migrate(snap)

	running, paused := o.isRunning, o.isPaused
	price := o.currentPrice
	o.adopt(snap)
	// Reconciliation refreshes the ledger, not the live lifecycle or the
	// display price, which is fresher than anything persisted.
	o.isRunning, o.isPaused = running, paused
	o.currentPrice = price
}

// takeProfitLocked scans open lots for the highest unrealized gain and
// sells that single lot when it clears the profit target. Returns true
// when a sell executed.
func (o *Orchestrator) takeProfitLocked(price decimal.Decimal) bool {
	best, ok := o.positions.MostProfitable(price)
	if !ok || best.EntryPrice.IsZero() {
		return false
	}

	gain := price.Sub(best.EntryPrice).Div(best.EntryPrice)
	if gain.LessThan(o.profitTarget()) {
		return false
	}

	trade, err := o.executor.SellPosition(best.ID, price, "profit target reached")
	if err != nil {
		slog.Error("profit-take sell failed", "bot", o.id, "position", best.ID, "err", err)
		return false
	}
	if o.strat != nil {
		o.strat.RemovePosition(best.ID)
	}
	o.settleSellLocked(trade)
	return true
}

func (o *Orchestrator) profitTarget() decimal.Decimal {
	if o.strategyConfig.ProfitTarget.IsPositive() {
		return o.strategyConfig.ProfitTarget
	}
	return defaultProfitTarget
}

// executeBuyLocked sizes and executes a strategy buy signal. Limit
// violations drop the signal silently — routine behavior, not a fault.
func (o *Orchestrator) executeBuyLocked(sig model.Signal, price decimal.Decimal) {
	size := o.strat.CalculatePositionSize(o.balance.Cash, sig, price)
	if !size.IsPositive() {
		return
	}

	notional := size.Mul(price)
	fee := o.executor.Fee(notional)
	inventoryValue := o.balance.Inventory.Mul(price)

	if err := o.limiter.CheckBuy(notional, fee, o.balance.Cash, inventoryValue, o.positions.Len()); err != nil {
		metrics.RejectedBuys.WithLabelValues(o.id, err.Error()).Inc()
		slog.Debug("buy signal dropped", "bot", o.id, "notional", notional, "err", err)
		return
	}

	pos, trade, err := o.executor.ExecuteBuy(size, price, sig.Reason)
	if err != nil {
		slog.Error("buy execution failed", "bot", o.id, "err", err)
		return
	}
	o.strat.AddPosition(pos)

	o.balance.Cash = o.balance.Cash.Sub(notional).Sub(fee)
	o.balance.Inventory = o.balance.Inventory.Add(size)
	o.stats.TotalFees = o.stats.TotalFees.Add(fee)

	metrics.TradesTotal.WithLabelValues(o.id, model.SideBuy).Inc()
	slog.Info("buy executed", "bot", o.id,
		"amount", trade.Amount, "price", trade.Price,
		"notional", trade.Notional, "fees", trade.Fees, "reason", sig.Reason)

	o.persistLocked()
	o.broadcastStatusLocked()
}

// executeSellLocked handles a strategy sell signal with grid semantics:
// one profitable lot per sell, never the whole inventory. A signal with no
// lot clearing the target is dropped silently.
func (o *Orchestrator) executeSellLocked(sig model.Signal, price decimal.Decimal) {
	best, ok := o.positions.MostProfitable(price)
	if !ok || best.EntryPrice.IsZero() {
		return
	}
	gain := price.Sub(best.EntryPrice).Div(best.EntryPrice)
	if gain.LessThan(o.profitTarget()) {
		return
	}

	trade, err := o.executor.SellPosition(best.ID, price, sig.Reason)
	if err != nil {
		slog.Error("sell execution failed", "bot", o.id, "err", err)
		return
	}
	o.strat.RemovePosition(best.ID)
	o.settleSellLocked(trade)
}

// settleSellLocked applies a completed sell to balance and statistics,
// allocates profit, persists, and broadcasts.
//
// Winning sells split net profit 60/20/20: profit vault (quote), inventory
// vault (converted to base at execution price), and reinvested trading
// cash alongside the returned cost basis. Losing sells return full net
// proceeds to cash with no vault allocation.
func (o *Orchestrator) settleSellLocked(trade model.Trade) {
	o.balance.Inventory = o.balance.Inventory.Sub(trade.Amount)
	o.stats.TotalFees = o.stats.TotalFees.Add(trade.Fees)

	if trade.Profit.IsPositive() {
		toVault := trade.Profit.Mul(profitVaultShare)
		toInventory := trade.Profit.Mul(inventoryVaultShare)
		toReinvest := trade.Profit.Mul(reinvestShare)

		// Converting the inventory share to base units truncates at
		// decimal's division precision. The residual goes back to cash
		// so the account value identity holds exactly.
		vaultUnits := toInventory.Div(trade.Price)
		residual := toInventory.Sub(vaultUnits.Mul(trade.Price))

		o.balance.ProfitVault = o.balance.ProfitVault.Add(toVault)
		o.balance.InventoryVault = o.balance.InventoryVault.Add(vaultUnits)
		o.balance.Cash = o.balance.Cash.Add(trade.CostBasis).Add(toReinvest).Add(residual)

		o.stats.TotalRealizedProfit = o.stats.TotalRealizedProfit.Add(trade.Profit)
		o.stats.TotalReinvested = o.stats.TotalReinvested.Add(toReinvest)
		o.stats.WinningTrades++
		metrics.RealizedProfit.WithLabelValues(o.id).Add(toFloat(trade.Profit))
	} else {
		o.balance.Cash = o.balance.Cash.Add(trade.Notional).Sub(trade.Fees)
		o.stats.LosingTrades++
	}

	metrics.TradesTotal.WithLabelValues(o.id, model.SideSell).Inc()
	slog.Info("sell executed", "bot", o.id,
		"amount", trade.Amount, "price", trade.Price,
		"profit", trade.Profit, "cost_basis", trade.CostBasis,
		"fees", trade.Fees, "reason", trade.Reason)

	o.persistLocked()
	o.broadcastStatusLocked()
}

// --- Persistence and broadcast ---

// snapshotLocked assembles the persisted shape from live state.
func (o *Orchestrator) snapshotLocked() *model.Snapshot {
	high, low := o.window.Range()
	if high.IsZero() && low.IsZero() {
		high, low = o.restoredHigh, o.restoredLow
	}
	return &model.Snapshot{
		Version:        model.SnapshotVersion,
		BotID:          o.id,
		IsRunning:      o.isRunning,
		IsPaused:       o.isPaused,
		Balance:        o.balance,
		Statistics:     o.stats,
		Trades:         o.executor.History(),
		Positions:      o.positions.List(),
		StrategyType:   o.strategyType,
		StrategyConfig: o.strategyConfig,
		CurrentPrice:   o.currentPrice,
		RecentHigh:     high,
		RecentLow:      low,
		UpdatedAt:      o.now().UTC(),
	}
}

// persistLocked saves fire-and-forget: the snapshot is assembled under the
// lock, the write happens off the hot path. Failures are logged and the
// next natural save point retries.
func (o *Orchestrator) persistLocked() {
	o.saveSeq++
	seq := o.saveSeq
	snap := o.snapshotLocked()
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), saveTimeout)
		defer cancel()
		if err := o.save(ctx, seq, snap); err != nil {
			metrics.SaveFailures.Inc()
			slog.Error("state save failed", "bot", o.id, "err", err)
		}
	}()
}

// save writes one stamped snapshot. Writes are serialized, and a snapshot
// older than the newest persisted one is dropped.
func (o *Orchestrator) save(ctx context.Context, seq uint64, snap *model.Snapshot) error {
	o.saveMu.Lock()
	defer o.saveMu.Unlock()
	if seq <= o.savedSeq {
		return nil
	}
	if err := o.repo.Save(ctx, o.id, snap); err != nil {
		return err
	}
	o.savedSeq = seq
	return nil
}

func (o *Orchestrator) broadcastStatusLocked() {
	o.send(Message{Type: MsgStatus, BotID: o.id, Data: o.snapshotLocked()})
}

// maybeBroadcastPriceLocked sends the lightweight price envelope on a
// significant delta or every Nth tick, bounding broadcast volume without
// starving slow-moving UIs.
func (o *Orchestrator) maybeBroadcastPriceLocked(price decimal.Decimal) {
	significant := false
	if o.lastBroadcast.IsPositive() {
		delta := price.Sub(o.lastBroadcast).Abs().Div(o.lastBroadcast)
		significant = delta.GreaterThan(broadcastPriceDelta)
	}
	if !significant && o.tickCount%broadcastEveryNth != 0 {
		return
	}
	o.lastBroadcast = price
	o.send(Message{
		Type:   MsgPriceUpdate,
		BotID:  o.id,
		Price:  price,
		Status: LifecycleState{IsRunning: o.isRunning, IsPaused: o.isPaused},
	})
}

func toFloat(d decimal.Decimal) float64 {
	f, _ := d.Float64()
	return f
}
