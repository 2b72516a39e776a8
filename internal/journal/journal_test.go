package journal

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"binance-trader/internal/core"
)

func TestRecordAndReadDay(t *testing.T) {
	j, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	at := time.Date(2026, 3, 14, 10, 30, 0, 0, time.UTC)
	entries := []Entry{
		{
			Time:          at,
			Market:        "spot",
			Symbol:        "BTCUSDT",
			Side:          core.Buy,
			Type:          core.Market,
			OrderID:       "101",
			ClientOrderID: "abc",
			Status:        "FILLED",
			Qty:           decimal.RequireFromString("0.001"),
			Price:         decimal.RequireFromString("50000"),
		},
		{
			Time:   at.Add(time.Hour),
			Market: "futures",
			Symbol: "ETHUSDT",
			Side:   core.Sell,
			Type:   core.Limit,
			Qty:    decimal.RequireFromString("0.5"),
			Price:  decimal.RequireFromString("3000"),
			Error:  "insufficient balance",
		},
	}
	for _, e := range entries {
		if err := j.Record(e); err != nil {
			t.Fatalf("Record() error = %v", err)
		}
	}

	got, err := j.ReadDay(at)
	if err != nil {
		t.Fatalf("ReadDay() error = %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("len(entries) = %d, want 2", len(got))
	}
	if got[0].OrderID != "101" || got[0].Status != "FILLED" {
		t.Fatalf("entries[0] = %+v, want order 101 FILLED", got[0])
	}
	if !got[0].Qty.Equal(decimal.RequireFromString("0.001")) {
		t.Fatalf("entries[0].Qty = %s, want 0.001", got[0].Qty)
	}
	if got[1].Error != "insufficient balance" {
		t.Fatalf("entries[1].Error = %q, want insufficient balance", got[1].Error)
	}
}

func TestRecordSplitsByUTCDay(t *testing.T) {
	dir := t.TempDir()
	j, err := New(dir)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	day1 := time.Date(2026, 3, 14, 23, 59, 0, 0, time.UTC)
	day2 := day1.Add(2 * time.Minute)
	for _, at := range []time.Time{day1, day2} {
		if err := j.Record(Entry{Time: at, Symbol: "BTCUSDT"}); err != nil {
			t.Fatalf("Record() error = %v", err)
		}
	}

	for _, name := range []string{"2026-03-14.jsonl", "2026-03-15.jsonl"} {
		if _, err := os.Stat(filepath.Join(dir, "orders", name)); err != nil {
			t.Fatalf("stat %s: %v", name, err)
		}
	}

	got, err := j.ReadDay(day2)
	if err != nil {
		t.Fatalf("ReadDay() error = %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("len(entries) = %d, want 1", len(got))
	}
}

func TestReadDayMissingFileIsEmpty(t *testing.T) {
	j, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	got, err := j.ReadDay(time.Now())
	if err != nil {
		t.Fatalf("ReadDay() error = %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("len(entries) = %d, want 0", len(got))
	}
}

func TestRecordDefaultsTime(t *testing.T) {
	j, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if err := j.Record(Entry{Symbol: "BTCUSDT"}); err != nil {
		t.Fatalf("Record() error = %v", err)
	}
	got, err := j.ReadDay(time.Now().UTC())
	if err != nil {
		t.Fatalf("ReadDay() error = %v", err)
	}
	if len(got) != 1 || got[0].Time.IsZero() {
		t.Fatalf("entries = %+v, want one entry with time set", got)
	}
}

func TestNilJournalRecordIsNoOp(t *testing.T) {
	var j *Journal
	if err := j.Record(Entry{Symbol: "BTCUSDT"}); err != nil {
		t.Fatalf("Record() error = %v", err)
	}
}

func TestNewRequiresDir(t *testing.T) {
	if _, err := New(""); err == nil {
		t.Fatalf("New(\"\") error = nil, want error")
	}
}
