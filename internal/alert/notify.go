package alert

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog"
)

// Notifier delivers a formatted alert message to one channel
type Notifier interface {
	Send(ctx context.Context, message string) error
}

const telegramAPIBase = "https://api.telegram.org"

// TelegramNotifier sends messages through the Telegram bot API
type TelegramNotifier struct {
	botToken   string
	chatID     string
	baseURL    string
	httpClient *http.Client
	logger     zerolog.Logger
}

// NewTelegramNotifier creates a notifier for the given bot and chat
func NewTelegramNotifier(botToken, chatID string, logger zerolog.Logger) *TelegramNotifier {
	return &TelegramNotifier{
		botToken: botToken,
		chatID:   chatID,
		baseURL:  telegramAPIBase,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
		logger: logger.With().Str("component", "telegram").Logger(),
	}
}

type telegramMessage struct {
	ChatID    string `json:"chat_id"`
	Text      string `json:"text"`
	ParseMode string `json:"parse_mode"`
}

// Send posts the message to the configured chat
func (t *TelegramNotifier) Send(ctx context.Context, message string) error {
	if t.botToken == "" || t.chatID == "" {
		return fmt.Errorf("telegram bot token or chat ID not configured")
	}

	jsonBody, err := json.Marshal(telegramMessage{
		ChatID:    t.chatID,
		Text:      message,
		ParseMode: "Markdown",
	})
	if err != nil {
		return fmt.Errorf("marshal body: %w", err)
	}

	url := fmt.Sprintf("%s/bot%s/sendMessage", t.baseURL, t.botToken)
	req, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewReader(jsonBody))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("telegram API error %d: %s", resp.StatusCode, string(respBody))
	}

	t.logger.Debug().Int("chars", len(message)).Msg("Telegram notification sent")
	return nil
}

// LogNotifier writes alert messages to the log, used when no delivery
// channel is configured
type LogNotifier struct {
	logger zerolog.Logger
}

// NewLogNotifier creates a notifier that only logs
func NewLogNotifier(logger zerolog.Logger) *LogNotifier {
	return &LogNotifier{logger: logger.With().Str("component", "alerts").Logger()}
}

// Send logs the message at info level
func (l *LogNotifier) Send(ctx context.Context, message string) error {
	_ = ctx
	l.logger.Info().Msg("\n" + message)
	return nil
}

// Dispatch formats the batch and sends it, logging instead of failing
// so a scheduled scan never dies on a delivery problem. Empty batches
// are not sent.
func Dispatch(ctx context.Context, n Notifier, label string, alerts []Alert, logger zerolog.Logger) {
	if len(alerts) == 0 {
		logger.Debug().Str("scan", label).Msg("No alerts to dispatch")
		return
	}

	message := FormatBatch(label, alerts)
	if err := n.Send(ctx, message); err != nil {
		logger.Error().Err(err).Str("scan", label).Msg("Failed to send alerts")
		return
	}
	logger.Info().Str("scan", label).Int("alerts", len(alerts)).Msg("Alerts dispatched")
}
