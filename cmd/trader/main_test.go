package main

import (
	"testing"

	"binance-trader/internal/core"
)

func TestPositionSideArgDefaultsToBoth(t *testing.T) {
	got, err := positionSideArg([]string{"BTCUSDT", "SELL", "0.01"}, 3)
	if err != nil {
		t.Fatalf("positionSideArg() error = %v", err)
	}
	if got != core.PositionBoth {
		t.Fatalf("position side = %q, want BOTH", got)
	}
}

func TestPositionSideArgParsesExplicitSides(t *testing.T) {
	cases := []struct {
		arg  string
		want core.PositionSide
	}{
		{"long", core.PositionLong},
		{"SHORT", core.PositionShort},
		{"Both", core.PositionBoth},
	}
	for _, tc := range cases {
		got, err := positionSideArg([]string{tc.arg}, 0)
		if err != nil {
			t.Fatalf("positionSideArg(%q) error = %v", tc.arg, err)
		}
		if got != tc.want {
			t.Fatalf("positionSideArg(%q) = %q, want %q", tc.arg, got, tc.want)
		}
	}
}

func TestPositionSideArgRejectsUnknown(t *testing.T) {
	if _, err := positionSideArg([]string{"SIDEWAYS"}, 0); err == nil {
		t.Fatalf("positionSideArg(SIDEWAYS) error = nil, want error")
	}
}

func TestValidateRunsWithoutCredentials(t *testing.T) {
	for _, cmd := range []string{"price", "min-qty", "symbols", "validate", "history"} {
		if !publicCommands[cmd] {
			t.Fatalf("publicCommands[%q] = false, want true", cmd)
		}
	}
	for _, cmd := range []string{"buy", "sell", "account", "close"} {
		if publicCommands[cmd] {
			t.Fatalf("publicCommands[%q] = true, want false", cmd)
		}
	}
}
