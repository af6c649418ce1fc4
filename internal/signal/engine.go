// Package signal implements C7: a pure function mapping a MetricsSnapshot
// to the four boolean signals, a score, a bias, and a confidence.
package signal

import (
	"math"

	"github.com/rawblock/onchain-intel/pkg/models"
)

// Thresholds holds the tunable cutoffs the signal booleans are computed
// against.
type Thresholds struct {
	WhaleDominanceMin  float64 // whale_flow_dominant when whale.dominance exceeds this
	AvgTxsPerBlockMin  float64 // network_growth when avg_txs_per_block exceeds this
	DistributionMinAbs float64 // distribution_risk when |net_flow_btc| exceeds this (net_flow_btc must also be negative)
}

// DefaultThresholds returns the documented default cutoffs.
func DefaultThresholds() Thresholds {
	return Thresholds{
		WhaleDominanceMin:  0.30,
		AvgTxsPerBlockMin:  2500,
		DistributionMinAbs: 100,
	}
}

const (
	baseScore            = 50.0
	accumulationWeight   = 35.0
	whaleDominanceWeight = 10.0
	growthWeight         = 15.0
	distributionWeight   = -40.0

	biasPositiveCutoff = 65.0
	biasNegativeCutoff = 35.0
)

// Evaluate computes the DerivedSignal for one MetricsSnapshot. It is a
// pure function of curr alone; no history is consulted.
func Evaluate(curr models.MetricsSnapshot, t Thresholds) models.DerivedSignal {
	sig := models.DerivedSignal{
		Asset:     curr.Asset,
		Timeframe: curr.Timeframe,
		Timestamp: curr.Timestamp,
	}

	sig.SmartMoneyAccumulation = curr.Whale.NetFlowBTC > 0
	sig.WhaleFlowDominant = curr.Whale.Dominance > t.WhaleDominanceMin
	sig.NetworkGrowth = curr.AvgTxsPerBlock > t.AvgTxsPerBlockMin
	sig.DistributionRisk = curr.Whale.NetFlowBTC < 0 && math.Abs(curr.Whale.NetFlowBTC) > t.DistributionMinAbs

	score := baseScore
	if sig.SmartMoneyAccumulation {
		score += accumulationWeight
	}
	if sig.WhaleFlowDominant {
		score += whaleDominanceWeight
	}
	if sig.NetworkGrowth {
		score += growthWeight
	}
	if sig.DistributionRisk {
		score += distributionWeight
	}
	sig.Score = clamp(score, 0, 100)

	switch {
	case sig.Score >= biasPositiveCutoff:
		sig.Bias = models.BiasPositive
	case sig.Score <= biasNegativeCutoff:
		sig.Bias = models.BiasNegative
	default:
		sig.Bias = models.BiasNeutral
	}

	sig.ConflictingSignals = conflicts(sig)
	sig.Confidence = confidence(sig)

	return sig
}

// conflicts counts direct contradictions: accumulation and distribution
// risk both active is the one direct conflict.
func conflicts(s models.DerivedSignal) int {
	n := 0
	if s.SmartMoneyAccumulation && s.DistributionRisk {
		n++
	}
	return n
}

func confidence(s models.DerivedSignal) float64 {
	if s.ConflictingSignals > 0 {
		return 0.50
	}
	switch s.ActiveCount() {
	case 0, 1:
		return 0.60
	case 2:
		return 0.70
	default:
		return 0.85
	}
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
