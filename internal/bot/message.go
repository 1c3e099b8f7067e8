package bot

import (
	"github.com/shopspring/decimal"

	"github.com/gridline/bot-engine/internal/model"
)

// Server → client message types.
const (
	MsgStatus         = "status"
	MsgPriceUpdate    = "priceUpdate"
	MsgTradingStopped = "tradingStopped"
	MsgResetComplete  = "resetComplete"
	MsgError          = "error"
)

// Client → server command types.
const (
	CmdStart     = "start"
	CmdStop      = "stop"
	CmdPause     = "pause"
	CmdResume    = "resume"
	CmdReset     = "reset"
	CmdGetStatus = "getStatus"
	CmdSelectBot = "selectBot"
)

// Message is the server→client envelope. Only the fields relevant to the
// type are populated. Status carries a LifecycleState on priceUpdate and a
// full *model.Snapshot on resetComplete.
type Message struct {
	Type   string          `json:"type"`
	BotID  string          `json:"botId,omitempty"`
	Data   *model.Snapshot `json:"data,omitempty"`
	Price  decimal.Decimal `json:"price,omitempty"`
	Status any             `json:"status,omitempty"`
	Error  string          `json:"error,omitempty"`
}

// LifecycleState is the lightweight flag pair carried by priceUpdate.
type LifecycleState struct {
	IsRunning bool `json:"isRunning"`
	IsPaused  bool `json:"isPaused"`
}

// Command is the client→server envelope. BotID defaults to the client's
// selected bot when omitted.
type Command struct {
	Type   string       `json:"type"`
	BotID  string       `json:"botId,omitempty"`
	Config *StartConfig `json:"config,omitempty"`
}
