package alerting

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"pre-resolution-lab/internal/strategy"
)

// Notification 封装一次策略分析的告警上下文。
type Notification struct {
	RunID     string
	Reference time.Time
	Params    strategy.Params
	Result    strategy.Result
	Threshold float64
	Report    string
}

// Notifier 定义告警输送接口。
type Notifier interface {
	Notify(ctx context.Context, notification Notification) error
}

// TelegramNotifier 通过 Telegram Bot API 推送消息。
type TelegramNotifier struct {
	botToken string
	chatID   string
	baseURL  string
	client   *http.Client
	logger   zerolog.Logger
}

// NewTelegramNotifier 构造 Telegram 告警器。
func NewTelegramNotifier(botToken, chatID, baseURL string, timeout time.Duration, logger zerolog.Logger) *TelegramNotifier {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if baseURL == "" {
		baseURL = "https://api.telegram.org"
	}

	return &TelegramNotifier{
		botToken: botToken,
		chatID:   chatID,
		baseURL:  strings.TrimRight(baseURL, "/"),
		client:   &http.Client{Timeout: timeout},
		logger:   logger.With().Str("component", "alert_telegram").Logger(),
	}
}

// Notify 调用 sendMessage API 推送文本。
func (n *TelegramNotifier) Notify(ctx context.Context, note Notification) error {
	payload := map[string]string{
		"chat_id": n.chatID,
		"text":    RenderMessage(note),
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal telegram payload: %w", err)
	}

	url := fmt.Sprintf("%s/bot%s/sendMessage", n.baseURL, n.botToken)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create telegram request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("send telegram request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("telegram unexpected status: %d", resp.StatusCode)
	}

	var result struct {
		OK          bool   `json:"ok"`
		Description string `json:"description"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err == nil {
		if !result.OK {
			return fmt.Errorf("telegram returned ok=false: %s", result.Description)
		}
	}

	n.logger.Info().Str("run_id", note.RunID).
		Int("qualifying_trades", note.Result.QualifyingTrades).
		Float64("expected_value", note.Result.ExpectedValue).
		Msg("alert sent (telegram)")
	return nil
}

// RenderMessage 生成告警正文：摘要 + 分析报告。
func RenderMessage(note Notification) string {
	ev := decimal.NewFromFloat(note.Result.ExpectedValue)
	wr := decimal.NewFromFloat(note.Result.WinRate).Mul(decimal.NewFromInt(100))

	builder := strings.Builder{}
	builder.WriteString("[Pre-Resolution Strategy Alert]\n")
	if note.RunID != "" {
		builder.WriteString(fmt.Sprintf("Run: %s\n", note.RunID))
	}
	builder.WriteString(fmt.Sprintf("Reference: %s UTC\n", note.Reference.UTC().Format(time.RFC3339)))
	builder.WriteString(fmt.Sprintf("Band: %.2f - %.2f, %d min before resolution, %d day lookback\n",
		note.Params.PriceMin, note.Params.PriceMax, note.Params.OffsetMinutes, note.Params.LookbackDays))
	builder.WriteString(fmt.Sprintf("Trades: %d of %d markets\n", note.Result.QualifyingTrades, note.Result.TotalMarkets))
	builder.WriteString(fmt.Sprintf("Win rate: %s%%\n", wr.StringFixed(2)))
	builder.WriteString(fmt.Sprintf("EV: %s per $1 (threshold %s)\n", ev.StringFixed(4), decimal.NewFromFloat(note.Threshold).StringFixed(4)))
	if note.Report != "" {
		builder.WriteString("\n")
		builder.WriteString(note.Report)
	}
	return builder.String()
}

var _ Notifier = (*TelegramNotifier)(nil)
