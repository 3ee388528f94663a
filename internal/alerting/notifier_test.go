package alerting

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pre-resolution-lab/internal/strategy"
)

func sampleNote() Notification {
	return Notification{
		RunID:     "run-1",
		Reference: time.Date(2025, 6, 10, 12, 0, 0, 0, time.UTC),
		Params:    strategy.DefaultParams(),
		Result: strategy.Result{
			TotalMarkets:     120,
			QualifyingTrades: 10,
			Wins:             10,
			WinRate:          1,
			ExpectedValue:    0.012,
		},
		Threshold: 0.005,
		Report:    "narrative",
	}
}

func TestTelegramNotifierSuccess(t *testing.T) {
	received := make(map[string]string)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.True(t, strings.HasSuffix(r.URL.Path, "/bottoken/sendMessage"), r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&received))
		_ = json.NewEncoder(w).Encode(map[string]any{"ok": true})
	}))
	defer srv.Close()

	notifier := NewTelegramNotifier("token", "chat", srv.URL, time.Second, testLogger())
	require.NoError(t, notifier.Notify(context.Background(), sampleNote()))

	assert.Equal(t, "chat", received["chat_id"])
	assert.Contains(t, received["text"], "Run: run-1")
	assert.Contains(t, received["text"], "EV: 0.0120 per $1 (threshold 0.0050)")
	assert.True(t, strings.HasSuffix(received["text"], "narrative"))
}

func TestTelegramNotifierError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(map[string]any{"ok": false, "description": "chat not found"})
	}))
	defer srv.Close()

	notifier := NewTelegramNotifier("token", "chat", srv.URL, time.Second, testLogger())
	err := notifier.Notify(context.Background(), sampleNote())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "chat not found")
}

func TestTelegramNotifierStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	notifier := NewTelegramNotifier("token", "chat", srv.URL, time.Second, testLogger())
	assert.Error(t, notifier.Notify(context.Background(), sampleNote()))
}

func TestRenderMessage(t *testing.T) {
	text := RenderMessage(sampleNote())
	assert.Contains(t, text, "Reference: 2025-06-10T12:00:00Z UTC")
	assert.Contains(t, text, "Band: 0.98 - 1.00, 2 min before resolution, 7 day lookback")
	assert.Contains(t, text, "Trades: 10 of 120 markets")
	assert.Contains(t, text, "Win rate: 100.00%")
}

func testLogger() zerolog.Logger {
	return zerolog.Nop()
}
