package strategy

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/gridline/bot-engine/internal/model"
)

// dcaCandleInterval is how many closed candles pass between accumulation
// buys.
const dcaCandleInterval = 15

// dca accumulates at a fixed candle cadence regardless of price direction,
// selling only lots that cleared the profit target. Cadence is tracked by
// candle start time so restarts do not double-buy.
type dca struct {
	book
	cfg          model.StrategyConfig
	lastBuyStart int64 // unix seconds of the candle that triggered the last buy
}

func newDCA(cfg model.StrategyConfig) (Strategy, error) {
	return &dca{cfg: cfg}, nil
}

func (s *dca) Config() model.StrategyConfig { return s.cfg }

func (s *dca) Analyze(candles []model.Candle, price decimal.Decimal) model.Signal {
	if !price.IsPositive() || len(candles) == 0 {
		return model.Signal{Type: model.SignalHold, Reason: "no data"}
	}

	if s.anyLotAboveTarget(price, s.cfg.ProfitTarget) {
		return model.Signal{
			Type:   model.SignalSell,
			Reason: fmt.Sprintf("lot cleared %s profit target", s.cfg.ProfitTarget),
		}
	}

	if len(s.lots) >= s.cfg.MaxGridLevels {
		return model.Signal{Type: model.SignalHold, Reason: "max positions open"}
	}

	latest := candles[len(candles)-1].StartTime.Unix()
	if s.lastBuyStart != 0 {
		interval := int64(dcaCandleInterval) * candleSeconds(candles)
		if latest-s.lastBuyStart < interval {
			return model.Signal{Type: model.SignalHold, Reason: "waiting for next interval"}
		}
	}

	s.lastBuyStart = latest
	return model.Signal{Type: model.SignalBuy, Reason: "scheduled accumulation"}
}

func (s *dca) CalculatePositionSize(cash decimal.Decimal, _ model.Signal, price decimal.Decimal) decimal.Decimal {
	return sizeFromCash(s.cfg, len(s.lots), cash, price)
}

// candleSeconds infers the bucket interval from adjacent candle start
// times, defaulting to one minute for short histories.
func candleSeconds(candles []model.Candle) int64 {
	if len(candles) >= 2 {
		d := candles[1].StartTime.Unix() - candles[0].StartTime.Unix()
		if d > 0 {
			return d
		}
	}
	return 60
}
