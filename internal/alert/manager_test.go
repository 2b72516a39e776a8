package alert

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
)

type captureNotifier struct {
	mu       sync.Mutex
	messages []string
	block    chan struct{}
}

func (n *captureNotifier) Notify(ctx context.Context, msg string) error {
	if n.block != nil {
		select {
		case <-n.block:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	n.messages = append(n.messages, msg)
	return nil
}

func (n *captureNotifier) snapshot() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]string, len(n.messages))
	copy(out, n.messages)
	return out
}

func testLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

func TestManagerDeliversOrderEvent(t *testing.T) {
	notifier := &captureNotifier{}
	m := NewManager("testnet", notifier, testLogger())

	m.OrderEvent("order_submitted", map[string]string{
		"symbol":   "BTCUSDT",
		"side":     "BUY",
		"quantity": "0.001",
	})

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := m.Close(ctx); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	msgs := notifier.snapshot()
	if len(msgs) != 1 {
		t.Fatalf("len(messages) = %d, want 1", len(msgs))
	}
	for _, want := range []string{"order_submitted", "mode: testnet", "symbol: BTCUSDT", "side: BUY"} {
		if !strings.Contains(msgs[0], want) {
			t.Fatalf("message %q missing %q", msgs[0], want)
		}
	}
}

func TestManagerFieldsRenderedSorted(t *testing.T) {
	notifier := &captureNotifier{}
	m := NewManager("live", notifier, testLogger())

	m.OrderEvent("order_failed", map[string]string{
		"symbol": "ETHUSDT",
		"error":  "insufficient balance",
	})

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := m.Close(ctx); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	msgs := notifier.snapshot()
	if len(msgs) != 1 {
		t.Fatalf("len(messages) = %d, want 1", len(msgs))
	}
	errIdx := strings.Index(msgs[0], "error:")
	symIdx := strings.Index(msgs[0], "symbol:")
	if errIdx < 0 || symIdx < 0 || errIdx > symIdx {
		t.Fatalf("fields not sorted in message %q", msgs[0])
	}
}

func TestNilManagerIsNoOp(t *testing.T) {
	var m *Manager
	m.OrderEvent("order_submitted", nil)
	if err := m.Close(context.Background()); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
}

func TestNewManagerNilNotifierYieldsNil(t *testing.T) {
	if m := NewManager("testnet", nil, testLogger()); m != nil {
		t.Fatalf("NewManager(nil notifier) = %v, want nil", m)
	}
}

func TestManagerDropsWhenQueueFull(t *testing.T) {
	block := make(chan struct{})
	notifier := &captureNotifier{block: block}
	m := NewManager("testnet", notifier, testLogger())

	// First event occupies the worker, the rest fill the queue.
	for i := 0; i < defaultQueueSize+10; i++ {
		m.OrderEvent("order_submitted", nil)
	}
	m.OrderEvent("order_submitted", nil)
	close(block)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := m.Close(ctx); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if got := len(notifier.snapshot()); got > defaultQueueSize+1 {
		t.Fatalf("delivered = %d, want at most %d", got, defaultQueueSize+1)
	}
}

func TestTelegramNotifierSendsMessage(t *testing.T) {
	var gotPath string
	var gotBody []byte
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotBody, _ = io.ReadAll(r.Body)
		w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	n := NewTelegramNotifier("token", "42", srv.URL, time.Second)
	if err := n.Notify(context.Background(), "hello"); err != nil {
		t.Fatalf("Notify() error = %v", err)
	}
	if gotPath != "/bottoken/sendMessage" {
		t.Fatalf("path = %q, want %q", gotPath, "/bottoken/sendMessage")
	}
	var req telegramSendMessageRequest
	if err := json.Unmarshal(gotBody, &req); err != nil {
		t.Fatalf("unmarshal request: %v", err)
	}
	if req.ChatID != "42" || req.Text != "hello" {
		t.Fatalf("request = %+v, want chat 42 text hello", req)
	}
}

func TestTelegramNotifierAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"ok":false,"description":"chat not found"}`))
	}))
	defer srv.Close()

	n := NewTelegramNotifier("token", "42", srv.URL, time.Second)
	err := n.Notify(context.Background(), "hello")
	if err == nil || !strings.Contains(err.Error(), "chat not found") {
		t.Fatalf("Notify() error = %v, want chat not found", err)
	}
}

func TestTelegramNotifierHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad gateway", http.StatusBadGateway)
	}))
	defer srv.Close()

	n := NewTelegramNotifier("token", "42", srv.URL, time.Second)
	err := n.Notify(context.Background(), "hello")
	if err == nil || !strings.Contains(err.Error(), "status=502") {
		t.Fatalf("Notify() error = %v, want status=502", err)
	}
}
