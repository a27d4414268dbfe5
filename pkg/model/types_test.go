package model

import (
	"testing"
)

func TestTimeframeRank(t *testing.T) {
	for i, tf := range TimeframeOrder {
		if got := tf.Rank(); got != i {
			t.Errorf("Rank(%s): expected %d, got %d", tf, i, got)
		}
	}
	if got := Timeframe("5min").Rank(); got != -1 {
		t.Errorf("Rank of unknown timeframe: expected -1, got %d", got)
	}
}

func TestTimeframeHigherThan(t *testing.T) {
	if !TFDaily.HigherThan(TF4Hour) {
		t.Error("Expected daily to rank above 4hour")
	}
	if TF30Min.HigherThan(TFMonthly) {
		t.Error("Expected 30min to rank below monthly")
	}
	if TFWeekly.HigherThan(TFWeekly) {
		t.Error("Expected a timeframe not to rank above itself")
	}
}

func TestParseTimeframe(t *testing.T) {
	tf, err := ParseTimeframe("4hour")
	if err != nil {
		t.Fatalf("ParseTimeframe failed: %v", err)
	}
	if tf != TF4Hour {
		t.Errorf("Expected %s, got %s", TF4Hour, tf)
	}

	if _, err := ParseTimeframe("15min"); err == nil {
		t.Error("Expected error for unsupported timeframe")
	}
}

func TestHigherTimeframes(t *testing.T) {
	higher := HigherTimeframes(TF4Hour)
	want := []Timeframe{TFDaily, TFWeekly, TFMonthly}
	if len(higher) != len(want) {
		t.Fatalf("Expected %d higher timeframes, got %d", len(want), len(higher))
	}
	for i, tf := range want {
		if higher[i] != tf {
			t.Errorf("Position %d: expected %s, got %s", i, tf, higher[i])
		}
	}

	if got := HigherTimeframes(TFMonthly); len(got) != 0 {
		t.Errorf("Expected no timeframes above monthly, got %v", got)
	}
}

func TestLabelDirectional(t *testing.T) {
	tests := []struct {
		label Label
		want  bool
	}{
		{LabelTwoUp, true},
		{LabelTwoDown, true},
		{LabelInside, false},
		{LabelOutside, false},
		{LabelUndefined, false},
	}

	for _, tt := range tests {
		if got := tt.label.Directional(); got != tt.want {
			t.Errorf("Directional(%s): expected %v, got %v", tt.label, tt.want, got)
		}
	}
}
