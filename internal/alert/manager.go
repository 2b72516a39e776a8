package alert

import (
	"context"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"
)

// Notifier delivers a rendered alert message to an external channel.
type Notifier interface {
	Notify(ctx context.Context, msg string) error
}

// Alerter is the surface order paths report lifecycle events through.
// A nil *Manager satisfies it as a no-op.
type Alerter interface {
	OrderEvent(event string, fields map[string]string)
}

const (
	defaultQueueSize   = 64
	defaultSendTimeout = 20 * time.Second
)

type Manager struct {
	mode     string
	notifier Notifier
	log      *logrus.Logger
	queue    chan orderEvent
	stop     chan struct{}
	done     chan struct{}
	dropped  uint64
	mu       sync.RWMutex
	closed   bool
}

type orderEvent struct {
	event  string
	fields map[string]string
}

// NewManager starts the delivery goroutine. A nil notifier yields a nil
// manager, which is safe to call.
func NewManager(mode string, notifier Notifier, log *logrus.Logger) *Manager {
	if notifier == nil {
		return nil
	}
	m := &Manager{
		mode:     mode,
		notifier: notifier,
		log:      log,
		queue:    make(chan orderEvent, defaultQueueSize),
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
	go m.loop()
	return m
}

// OrderEvent enqueues an event without blocking the order path. Events are
// dropped when the queue is full.
func (m *Manager) OrderEvent(event string, fields map[string]string) {
	if m == nil {
		return
	}
	ev := orderEvent{event: event, fields: cloneFields(fields)}
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return
	}
	select {
	case m.queue <- ev:
	default:
		total := atomic.AddUint64(&m.dropped, 1)
		m.log.WithFields(logrus.Fields{
			"event":         event,
			"dropped_total": total,
		}).Warn("alert queue full, event dropped")
	}
}

// Close drains the queue and waits for in-flight sends, or until ctx expires.
func (m *Manager) Close(ctx context.Context) error {
	if m == nil {
		return nil
	}
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	close(m.stop)
	m.mu.Unlock()

	select {
	case <-m.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (m *Manager) loop() {
	defer close(m.done)
	for {
		select {
		case ev := <-m.queue:
			m.send(ev)
		case <-m.stop:
			for {
				select {
				case ev := <-m.queue:
					m.send(ev)
				default:
					return
				}
			}
		}
	}
}

func (m *Manager) send(ev orderEvent) {
	ctx, cancel := context.WithTimeout(context.Background(), defaultSendTimeout)
	defer cancel()
	if err := m.notifier.Notify(ctx, m.buildMessage(ev.event, ev.fields)); err != nil {
		m.log.WithFields(logrus.Fields{
			"event": ev.event,
			"error": err.Error(),
		}).Error("alert delivery failed")
	}
}

func (m *Manager) buildMessage(event string, fields map[string]string) string {
	lines := []string{
		"[binance-trader] " + event,
		"time: " + time.Now().UTC().Format(time.RFC3339),
		"mode: " + m.mode,
	}
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		lines = append(lines, k+": "+fields[k])
	}
	return strings.Join(lines, "\n")
}

func cloneFields(src map[string]string) map[string]string {
	if len(src) == 0 {
		return nil
	}
	dst := make(map[string]string, len(src))
	for k, v := range src {
		dst[k] = v
	}
	return dst
}
