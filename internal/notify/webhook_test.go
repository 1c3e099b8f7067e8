package notify

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/gridline/bot-engine/internal/model"
)

func TestSendPostsPayload(t *testing.T) {
	received := make(chan map[string]string, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var payload map[string]string
		json.NewDecoder(r.Body).Decode(&payload)
		received <- payload
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	wh := NewWebhook(srv.URL, "testbot")
	wh.ProfitableSell(model.Trade{
		Amount: decimal.NewFromFloat(0.02),
		Price:  decimal.NewFromInt(50500),
		Profit: decimal.NewFromFloat(8.99),
	})

	payload := <-received
	if payload["text"] == "" {
		t.Errorf("expected slack-shaped payload, got %v", payload)
	}
	if payload["username"] != "testbot" {
		t.Errorf("username = %q", payload["username"])
	}
}

func TestDisabledWebhook(t *testing.T) {
	wh := NewWebhook("", "")
	if wh.Enabled() {
		t.Error("empty URL must disable the webhook")
	}
	// Must not panic or block.
	wh.Send("ignored")
}

func TestDiscordPayloadShape(t *testing.T) {
	wh := NewWebhook("https://discord.com/api/webhooks/x", "bot")
	p := wh.payload("hi")
	if p["content"] == "" {
		t.Errorf("discord URLs use the content field, got %v", p)
	}
}
