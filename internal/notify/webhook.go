// Package notify delivers best-effort trade notifications to a chat
// webhook (Slack- or Discord-shaped payload). Delivery failures are logged
// and swallowed; a broken webhook must never affect trading.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gridline/bot-engine/internal/model"
)

// Webhook posts messages to a single webhook URL. An empty URL disables
// delivery entirely.
type Webhook struct {
	url     string
	botName string
	client  *http.Client
}

// NewWebhook creates a webhook notifier.
func NewWebhook(url, botName string) *Webhook {
	if botName == "" {
		botName = "bot-engine"
	}
	return &Webhook{
		url:     url,
		botName: botName,
		client:  &http.Client{Timeout: 10 * time.Second},
	}
}

// Enabled reports whether a webhook URL is configured.
func (w *Webhook) Enabled() bool { return w.url != "" }

// ProfitableSell implements the executor's notification hook.
func (w *Webhook) ProfitableSell(trade model.Trade) {
	w.Send(fmt.Sprintf("profit taken: sold %s @ %s, profit %s (fees %s)",
		trade.Amount, trade.Price, trade.Profit.Round(4), trade.Fees.Round(4)))
}

// Send posts one message. Best effort: errors are logged, never returned.
func (w *Webhook) Send(msg string) {
	if w.url == "" {
		return
	}

	body, err := json.Marshal(w.payload(msg))
	if err != nil {
		slog.Error("webhook marshal failed", "err", err)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(body))
	if err != nil {
		slog.Error("webhook request failed", "err", err)
		return
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := w.client.Do(req)
	if err != nil {
		slog.Warn("webhook delivery failed", "err", err)
		return
	}
	resp.Body.Close()
	if resp.StatusCode >= 300 {
		slog.Warn("webhook rejected", "status", resp.StatusCode)
	}
}

// payload shapes the message for the destination: Discord wants "content",
// Slack-compatible hooks want "text".
func (w *Webhook) payload(msg string) map[string]string {
	formatted := fmt.Sprintf("[%s] %s", w.botName, msg)
	if strings.Contains(w.url, "discord") {
		return map[string]string{"content": formatted, "username": w.botName}
	}
	return map[string]string{"text": formatted, "username": w.botName}
}
