// Package journal appends an order audit trail as daily JSON-lines files.
package journal

import (
	"bufio"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"binance-trader/internal/core"
)

// Entry is one recorded order attempt, successful or not.
type Entry struct {
	Time          time.Time       `json:"time"`
	Market        string          `json:"market"`
	Symbol        string          `json:"symbol"`
	Side          core.Side       `json:"side"`
	Type          core.OrderType  `json:"type"`
	OrderID       string          `json:"order_id,omitempty"`
	ClientOrderID string          `json:"client_order_id,omitempty"`
	Status        string          `json:"status,omitempty"`
	Qty           decimal.Decimal `json:"qty"`
	Price         decimal.Decimal `json:"price"`
	Error         string          `json:"error,omitempty"`
}

// Recorder is the surface order paths write through. A nil *Journal
// satisfies it as a no-op.
type Recorder interface {
	Record(e Entry) error
}

type Journal struct {
	root string
	mu   sync.Mutex
}

func New(root string) (*Journal, error) {
	if root == "" {
		return nil, errors.New("journal dir required")
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, err
	}
	return &Journal{root: root}, nil
}

// Record appends e to the file for its UTC day. The write is fsynced so a
// crash immediately after an order still leaves the attempt on disk.
func (j *Journal) Record(e Entry) error {
	if j == nil {
		return nil
	}
	if e.Time.IsZero() {
		e.Time = time.Now().UTC()
	}
	j.mu.Lock()
	defer j.mu.Unlock()

	dir := filepath.Join(j.root, "orders")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	data, err := json.Marshal(e)
	if err != nil {
		return err
	}
	f, err := os.OpenFile(j.dayPath(dir, e.Time), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()
	if _, err := f.Write(append(data, '\n')); err != nil {
		return err
	}
	return f.Sync()
}

// ReadDay returns all entries recorded on the UTC day containing t, oldest
// first. A day with no file yields an empty slice.
func (j *Journal) ReadDay(t time.Time) ([]Entry, error) {
	j.mu.Lock()
	defer j.mu.Unlock()

	f, err := os.Open(j.dayPath(filepath.Join(j.root, "orders"), t))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	defer f.Close()

	var entries []Entry
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		line := sc.Bytes()
		if len(line) == 0 {
			continue
		}
		var e Entry
		if err := json.Unmarshal(line, &e); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return entries, nil
}

func (j *Journal) dayPath(dir string, t time.Time) string {
	return filepath.Join(dir, t.UTC().Format("2006-01-02")+".jsonl")
}
