package signal

import (
	"testing"
	"time"

	"github.com/rawblock/onchain-intel/pkg/models"
)

func snapshot(netFlow, dominance, avgTxsPerBlock float64) models.MetricsSnapshot {
	return models.MetricsSnapshot{
		Asset:          "BTC",
		Timeframe:      "1h",
		Timestamp:      time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		AvgTxsPerBlock: avgTxsPerBlock,
		Whale: models.WhaleMetrics{
			NetFlowBTC: netFlow,
			Dominance:  dominance,
		},
	}
}

func TestEvaluate_BaseScoreNoSignals(t *testing.T) {
	sig := Evaluate(snapshot(0, 0, 0), DefaultThresholds())

	if sig.Score != baseScore {
		t.Errorf("Score = %v, want base %v", sig.Score, baseScore)
	}
	if sig.Bias != models.BiasNeutral {
		t.Errorf("Bias = %v, want neutral", sig.Bias)
	}
	if sig.Confidence != 0.60 {
		t.Errorf("Confidence = %v, want 0.60", sig.Confidence)
	}
	if sig.ConflictingSignals != 0 {
		t.Errorf("ConflictingSignals = %d, want 0", sig.ConflictingSignals)
	}
}

// S1 — nominal positive: every signal true, score clamps at 100.
func TestEvaluate_S1NominalPositive(t *testing.T) {
	sig := Evaluate(snapshot(250, 0.42, 3200), DefaultThresholds())

	if !sig.SmartMoneyAccumulation || !sig.WhaleFlowDominant || !sig.NetworkGrowth || sig.DistributionRisk {
		t.Fatalf("signals = %+v, want {true,true,true,false}", sig)
	}
	want := clamp(baseScore+accumulationWeight+whaleDominanceWeight+growthWeight, 0, 100)
	if want != 100 {
		t.Fatalf("test setup: clamped weight sum = %v, want 100", want)
	}
	if sig.Score != want {
		t.Errorf("Score = %v, want %v", sig.Score, want)
	}
	if sig.Bias != models.BiasPositive {
		t.Errorf("Bias = %v, want positive", sig.Bias)
	}
	if sig.Confidence != 0.85 {
		t.Errorf("Confidence = %v, want 0.85", sig.Confidence)
	}
}

// S2 — direct conflict: accumulation and distribution risk both active
// forces confidence to 0.50 regardless of how many signals are active.
func TestEvaluate_S2DirectConflict(t *testing.T) {
	sig := models.DerivedSignal{SmartMoneyAccumulation: true, DistributionRisk: true, WhaleFlowDominant: true}
	sig.ConflictingSignals = conflicts(sig)

	if sig.ConflictingSignals != 1 {
		t.Fatalf("ConflictingSignals = %d, want 1", sig.ConflictingSignals)
	}
	if got := confidence(sig); got != 0.50 {
		t.Errorf("confidence() = %v, want 0.50 on conflict", got)
	}
}

func TestEvaluate_ScoreClampedAtMax(t *testing.T) {
	sig := Evaluate(snapshot(500, 1, 999999), DefaultThresholds())

	if sig.Score != 100 {
		t.Errorf("Score = %v, want clamped 100", sig.Score)
	}
	if sig.Bias != models.BiasPositive {
		t.Errorf("Bias = %v, want positive", sig.Bias)
	}
}

// Distribution risk alone gives the lowest score Evaluate can produce,
// 50-40 = 10: accumulation needs a positive net flow and distribution a
// negative one, so the two never combine and the 0 clamp is not reached.
func TestEvaluate_DistributionOnlyLowestScore(t *testing.T) {
	sig := Evaluate(snapshot(-500, 0, 0), DefaultThresholds())

	want := baseScore + distributionWeight
	if sig.Score != want {
		t.Errorf("Score = %v, want %v", sig.Score, want)
	}
	if sig.Bias != models.BiasNegative {
		t.Errorf("Bias = %v, want negative", sig.Bias)
	}
}

// P4: smart_money_accumulation iff net_flow_btc > 0;
// distribution_risk iff net_flow_btc < 0 and |net_flow_btc| > 100.
func TestEvaluate_P4SignalDefinitions(t *testing.T) {
	tests := []struct {
		name             string
		netFlow          float64
		wantAccumulation bool
		wantDistribution bool
	}{
		{"small positive flow sets accumulation", 30, true, false},
		{"zero flow sets neither", 0, false, false},
		{"small negative flow sets neither", -50, false, false},
		{"negative flow exactly at threshold is not distribution", -100, false, false},
		{"large negative flow sets distribution", -150, false, true},
		{"large positive flow sets accumulation only", 250, true, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sig := Evaluate(snapshot(tt.netFlow, 0, 0), DefaultThresholds())
			if sig.SmartMoneyAccumulation != tt.wantAccumulation {
				t.Errorf("SmartMoneyAccumulation = %v, want %v", sig.SmartMoneyAccumulation, tt.wantAccumulation)
			}
			if sig.DistributionRisk != tt.wantDistribution {
				t.Errorf("DistributionRisk = %v, want %v", sig.DistributionRisk, tt.wantDistribution)
			}
		})
	}
}

func TestEvaluate_NetworkGrowthIsAbsoluteThresholdOnCurrentSnapshot(t *testing.T) {
	tests := []struct {
		name           string
		avgTxsPerBlock float64
		want           bool
	}{
		{"below threshold", 2499, false},
		{"exactly at threshold is not growth", 2500, false},
		{"above threshold", 2501, true},
		{"first tick with no history still detects growth", 3200, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sig := Evaluate(snapshot(0, 0, tt.avgTxsPerBlock), DefaultThresholds())
			if sig.NetworkGrowth != tt.want {
				t.Errorf("NetworkGrowth = %v, want %v", sig.NetworkGrowth, tt.want)
			}
		})
	}
}

func TestEvaluate_WhaleDominanceThreshold(t *testing.T) {
	tests := []struct {
		name      string
		dominance float64
		want      bool
	}{
		{"below threshold", 0.29, false},
		{"exactly at threshold is not dominant", 0.30, false},
		{"above threshold", 0.31, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sig := Evaluate(snapshot(0, tt.dominance, 0), DefaultThresholds())
			if sig.WhaleFlowDominant != tt.want {
				t.Errorf("WhaleFlowDominant = %v, want %v", sig.WhaleFlowDominant, tt.want)
			}
		})
	}
}

func TestEvaluate_Confidence(t *testing.T) {
	tests := []struct {
		name           string
		netFlow        float64
		dominance      float64
		avgTxsPerBlock float64
		want           float64
	}{
		{"zero active", 0, 0, 0, 0.60},
		{"one active", 250, 0, 0, 0.60},
		{"two active", 250, 0.5, 0, 0.70},
		{"three active", 250, 0.5, 3000, 0.85},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sig := Evaluate(snapshot(tt.netFlow, tt.dominance, tt.avgTxsPerBlock), DefaultThresholds())
			if sig.Confidence != tt.want {
				t.Errorf("Confidence = %v, want %v", sig.Confidence, tt.want)
			}
		})
	}
}

func TestClamp(t *testing.T) {
	if clamp(150, 0, 100) != 100 {
		t.Error("clamp should cap at hi")
	}
	if clamp(-10, 0, 100) != 0 {
		t.Error("clamp should floor at lo")
	}
	if clamp(50, 0, 100) != 50 {
		t.Error("clamp should pass through in-range values")
	}
}
