// Package metrics implements C5: pure assembly of block, mempool, and
// whale data into a single MetricsSnapshot for one (asset, timeframe,
// timestamp).
package metrics

import (
	"time"

	"github.com/rawblock/onchain-intel/pkg/models"
)

// WindowBlocks returns how many blocks a timeframe's window covers
// (1h=6, 4h=24, 1d=144, assuming a ~10 minute block time).
func WindowBlocks(timeframe string) int {
	switch timeframe {
	case "1h":
		return 6
	case "4h":
		return 24
	case "1d":
		return 144
	default:
		return 6
	}
}

// FloorToTimeframe floors t (UTC) to the start of its timeframe bucket.
func FloorToTimeframe(t time.Time, timeframe string) time.Time {
	t = t.UTC()
	switch timeframe {
	case "1h":
		return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), 0, 0, 0, time.UTC)
	case "4h":
		return time.Date(t.Year(), t.Month(), t.Day(), (t.Hour()/4)*4, 0, 0, 0, time.UTC)
	case "1d":
		return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	default:
		return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), 0, 0, 0, time.UTC)
	}
}

// Input bundles everything the aggregator needs for one window. Any
// pointer left nil means that sub-source failed or was unavailable for
// this tick; the aggregator degrades data_completeness accordingly
// rather than failing the whole snapshot.
type Input struct {
	Asset       string
	Timeframe   string
	Timestamp   time.Time
	BlockHeight int64
	Blocks      []models.RawBlock // may be shorter than WindowBlocks(timeframe)
	Mempool     *models.MempoolSnapshot
	WhaleTxs    []models.WhaleTx
	TotalVolumeBTC *float64
}

// completenessUnit is how much data_completeness drops when one of the
// three optional sub-sources (blocks, mempool, whale) is missing.
const completenessUnit = 1.0 / 3.0

// Aggregate assembles a MetricsSnapshot from Input.
func Aggregate(in Input) models.MetricsSnapshot {
	snap := models.MetricsSnapshot{
		Asset:       in.Asset,
		Timeframe:   in.Timeframe,
		Timestamp:   FloorToTimeframe(in.Timestamp, in.Timeframe),
		BlockHeight: in.BlockHeight,
	}

	completeness := 1.0

	if len(in.Blocks) == 0 {
		completeness -= completenessUnit
	} else {
		snap.BlocksAnalyzed = len(in.Blocks)
		var totalSize, totalTxs int64
		for _, b := range in.Blocks {
			totalSize += b.SizeBytes
			totalTxs += int64(b.TxCount)
		}
		snap.TotalTransactions = totalTxs
		snap.AvgBlockSize = float64(totalSize) / float64(len(in.Blocks))
		snap.AvgTxsPerBlock = float64(totalTxs) / float64(len(in.Blocks))
	}

	if in.Mempool == nil {
		completeness -= completenessUnit
	} else {
		snap.PendingTxs = in.Mempool.PendingTxs
		snap.MempoolSizeMB = in.Mempool.SizeMB
		snap.FastestFee = in.Mempool.Fees.FastestFee
		snap.HourFee = in.Mempool.Fees.HourFee
	}

	if in.WhaleTxs == nil {
		completeness -= completenessUnit
	} else {
		var totalVol float64
		if in.TotalVolumeBTC != nil {
			totalVol = *in.TotalVolumeBTC
		}
		snap.Whale = whaleAggregate(in.WhaleTxs, totalVol)
	}

	for _, w := range in.WhaleTxs {
		snap.TotalFeesBTC += w.FeeBTC
	}

	if completeness < 0 {
		completeness = 0
	}
	snap.DataCompleteness = completeness

	// stability_score and anomaly_count are inputs this aggregator does
	// not itself compute; a future upstream signal producer may set
	// them. Until then they carry neutral defaults.
	snap.StabilityScore = 1.0
	snap.AnomalyCount = 0

	return snap
}

func whaleAggregate(whales []models.WhaleTx, totalVolume float64) models.WhaleMetrics {
	m := models.WhaleMetrics{Count: len(whales)}
	for _, w := range whales {
		m.TotalVolume += w.ValueBTC
		switch w.Flow {
		case models.FlowInflow:
			m.InflowBTC += w.ValueBTC
		case models.FlowOutflow:
			m.OutflowBTC += w.ValueBTC
		}
	}
	m.NetFlowBTC = m.InflowBTC - m.OutflowBTC
	if totalVolume > 0 {
		d := m.TotalVolume / totalVolume
		if d > 1 {
			d = 1
		}
		if d < 0 {
			d = 0
		}
		m.Dominance = d
	}
	return m
}
