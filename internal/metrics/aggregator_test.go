package metrics

import (
	"testing"
	"time"

	"github.com/rawblock/onchain-intel/pkg/models"
)

func TestWindowBlocks(t *testing.T) {
	tests := []struct {
		timeframe string
		want      int
	}{
		{"1h", 6},
		{"4h", 24},
		{"1d", 144},
		{"unknown", 6},
	}
	for _, tt := range tests {
		if got := WindowBlocks(tt.timeframe); got != tt.want {
			t.Errorf("WindowBlocks(%q) = %d, want %d", tt.timeframe, got, tt.want)
		}
	}
}

func TestFloorToTimeframe(t *testing.T) {
	ts := time.Date(2026, 3, 15, 13, 47, 22, 0, time.UTC)

	tests := []struct {
		timeframe string
		want      time.Time
	}{
		{"1h", time.Date(2026, 3, 15, 13, 0, 0, 0, time.UTC)},
		{"4h", time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)},
		{"1d", time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC)},
	}
	for _, tt := range tests {
		if got := FloorToTimeframe(ts, tt.timeframe); !got.Equal(tt.want) {
			t.Errorf("FloorToTimeframe(%q) = %v, want %v", tt.timeframe, got, tt.want)
		}
	}
}

func TestAggregate_FullData(t *testing.T) {
	vol := 500.0
	in := Input{
		Asset:     "BTC",
		Timeframe: "1h",
		Timestamp: time.Date(2026, 3, 15, 13, 30, 0, 0, time.UTC),
		Blocks: []models.RawBlock{
			{SizeBytes: 1000, TxCount: 10},
			{SizeBytes: 2000, TxCount: 20},
		},
		Mempool: &models.MempoolSnapshot{
			PendingTxs: 5000,
			SizeMB:     12.5,
			Fees:       models.RecommendedFees{FastestFee: 20, HourFee: 5},
		},
		WhaleTxs:       []models.WhaleTx{{ValueBTC: 100, Flow: models.FlowInflow, FeeBTC: 0.01}},
		TotalVolumeBTC: &vol,
	}

	snap := Aggregate(in)

	if snap.DataCompleteness != 1.0 {
		t.Errorf("DataCompleteness = %v, want 1.0 with all sources present", snap.DataCompleteness)
	}
	if snap.BlocksAnalyzed != 2 {
		t.Errorf("BlocksAnalyzed = %d, want 2", snap.BlocksAnalyzed)
	}
	if snap.AvgBlockSize != 1500 {
		t.Errorf("AvgBlockSize = %v, want 1500", snap.AvgBlockSize)
	}
	if snap.AvgTxsPerBlock != 15 {
		t.Errorf("AvgTxsPerBlock = %v, want 15", snap.AvgTxsPerBlock)
	}
	if snap.PendingTxs != 5000 || snap.MempoolSizeMB != 12.5 {
		t.Errorf("mempool fields not carried through: %+v", snap)
	}
	if snap.Whale.Count != 1 || snap.Whale.InflowBTC != 100 {
		t.Errorf("Whale aggregation wrong: %+v", snap.Whale)
	}
	if snap.TotalFeesBTC != 0.01 {
		t.Errorf("TotalFeesBTC = %v, want 0.01", snap.TotalFeesBTC)
	}
	if !snap.Timestamp.Equal(time.Date(2026, 3, 15, 13, 0, 0, 0, time.UTC)) {
		t.Errorf("Timestamp not floored to timeframe bucket: %v", snap.Timestamp)
	}
}

func TestAggregate_PartialFailureDegradesCompleteness(t *testing.T) {
	tests := []struct {
		name string
		in   Input
		want float64
	}{
		{"blocks missing", Input{Timeframe: "1h", Mempool: &models.MempoolSnapshot{}, WhaleTxs: []models.WhaleTx{}}, 2.0 / 3.0},
		{"mempool missing", Input{Timeframe: "1h", Blocks: []models.RawBlock{{}}, WhaleTxs: []models.WhaleTx{}}, 2.0 / 3.0},
		{"whale missing", Input{Timeframe: "1h", Blocks: []models.RawBlock{{}}, Mempool: &models.MempoolSnapshot{}}, 2.0 / 3.0},
		{"everything missing", Input{Timeframe: "1h"}, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			snap := Aggregate(tt.in)
			if diff := snap.DataCompleteness - tt.want; diff > 1e-9 || diff < -1e-9 {
				t.Errorf("DataCompleteness = %v, want %v", snap.DataCompleteness, tt.want)
			}
		})
	}
}

func TestAggregate_NeutralDefaults(t *testing.T) {
	snap := Aggregate(Input{Timeframe: "1h"})
	if snap.StabilityScore != 1.0 {
		t.Errorf("StabilityScore default = %v, want 1.0", snap.StabilityScore)
	}
	if snap.AnomalyCount != 0 {
		t.Errorf("AnomalyCount default = %d, want 0", snap.AnomalyCount)
	}
}
