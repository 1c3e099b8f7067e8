package strategy

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/gridline/bot-engine/internal/model"
)

// meanRevLookback is the number of candle closes averaged for the mean.
const meanRevLookback = 20

// meanReversion buys when price sits DropThreshold below the simple moving
// average of recent closes and sells lots that cleared the profit target.
type meanReversion struct {
	book
	cfg model.StrategyConfig
}

func newMeanReversion(cfg model.StrategyConfig) (Strategy, error) {
	return &meanReversion{cfg: cfg}, nil
}

func (m *meanReversion) Config() model.StrategyConfig { return m.cfg }

func (m *meanReversion) Analyze(candles []model.Candle, price decimal.Decimal) model.Signal {
	if !price.IsPositive() || len(candles) < 2 {
		return model.Signal{Type: model.SignalHold, Reason: "insufficient history"}
	}

	if m.anyLotAboveTarget(price, m.cfg.ProfitTarget) {
		return model.Signal{
			Type:   model.SignalSell,
			Reason: fmt.Sprintf("lot cleared %s profit target", m.cfg.ProfitTarget),
		}
	}

	start := len(candles) - meanRevLookback
	if start < 0 {
		start = 0
	}
	sum := decimal.Zero
	n := 0
	for _, c := range candles[start:] {
		sum = sum.Add(c.Close)
		n++
	}
	mean := sum.Div(decimal.NewFromInt(int64(n)))
	if !mean.IsPositive() {
		return model.Signal{Type: model.SignalHold, Reason: "degenerate mean"}
	}

	if len(m.lots) >= m.cfg.MaxGridLevels {
		return model.Signal{Type: model.SignalHold, Reason: "max positions open"}
	}

	deviation := mean.Sub(price).Div(mean)
	if deviation.GreaterThanOrEqual(m.cfg.DropThreshold) {
		return model.Signal{
			Type:   model.SignalBuy,
			Reason: fmt.Sprintf("price %s below %d-candle mean %s", deviation.Round(6), n, mean.Round(2)),
		}
	}

	return model.Signal{Type: model.SignalHold, Reason: "within band"}
}

func (m *meanReversion) CalculatePositionSize(cash decimal.Decimal, _ model.Signal, price decimal.Decimal) decimal.Decimal {
	return sizeFromCash(m.cfg, len(m.lots), cash, price)
}
