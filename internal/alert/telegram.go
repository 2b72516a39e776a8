package alert

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"binance-trader/internal/jsonscan"
)

const telegramResponseLimit = 4096

// TelegramNotifier delivers order events through the Bot API sendMessage
// call. One message per Notify; formatting is the Manager's job.
type TelegramNotifier struct {
	chatID   string
	endpoint string
	client   *http.Client
}

func NewTelegramNotifier(botToken, chatID, baseURL string, timeout time.Duration) *TelegramNotifier {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &TelegramNotifier{
		chatID:   chatID,
		endpoint: strings.TrimRight(baseURL, "/") + "/bot" + botToken + "/sendMessage",
		client:   &http.Client{Timeout: timeout},
	}
}

type telegramSendMessageRequest struct {
	ChatID string `json:"chat_id"`
	Text   string `json:"text"`
}

func (t *TelegramNotifier) Notify(ctx context.Context, msg string) error {
	payload, err := json.Marshal(telegramSendMessageRequest{ChatID: t.chatID, Text: msg})
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.endpoint, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, telegramResponseLimit))
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("telegram status=%d body=%s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	text := string(body)
	if jsonscan.Has(text, "ok") && !jsonscan.Bool(text, "ok") {
		return fmt.Errorf("telegram api error: %s", strings.TrimSpace(jsonscan.String(text, "description")))
	}
	return nil
}
