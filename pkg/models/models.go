// Package models holds the wire and domain types shared across the
// ingest, whale-detection, signal, kill-switch, and API layers.
package models

import "time"

// RawBlock is a normalized block header as returned by any source adapter.
type RawBlock struct {
	Height    int64     `json:"height"`
	Hash      string    `json:"hash"`
	Timestamp time.Time `json:"timestamp"`
	TxCount   int       `json:"txCount"`
	SizeBytes int64     `json:"sizeBytes"`
}

// RawTxInput is one input of a RawTx. Value and Address are nil when the
// source adapter could not resolve the previous output (coinbase, or a
// source that doesn't expose prevout data).
type RawTxInput struct {
	TxID    string   `json:"txid"`
	Vout    int      `json:"vout"`
	Value   *float64 `json:"value,omitempty"`
	Address *string  `json:"address,omitempty"`
}

// RawTxOutput is one output of a RawTx.
type RawTxOutput struct {
	Value   float64 `json:"value"`
	Address *string `json:"address,omitempty"`
}

// RawTx is a normalized transaction as returned by any source adapter.
// Values are BTC, not satoshis (conversion happens in the adapter).
type RawTx struct {
	TxID        string        `json:"txid"`
	BlockHeight *int64        `json:"blockHeight,omitempty"`
	Timestamp   time.Time     `json:"timestamp"`
	Inputs      []RawTxInput  `json:"inputs"`
	Outputs     []RawTxOutput `json:"outputs"`
	FeeBTC      *float64      `json:"feeBtc,omitempty"`
	SizeBytes   int           `json:"sizeBytes"`
}

// TotalOutputValue sums output values.
func (t RawTx) TotalOutputValue() float64 {
	var sum float64
	for _, o := range t.Outputs {
		sum += o.Value
	}
	return sum
}

// TotalInputValue sums input values; ok is false if any input value is
// unknown (e.g. the source didn't resolve prevouts).
func (t RawTx) TotalInputValue() (sum float64, ok bool) {
	for _, in := range t.Inputs {
		if in.Value == nil {
			return 0, false
		}
		sum += *in.Value
	}
	return sum, true
}

// RecommendedFees is the mempool fee estimate surface (sat/vB).
type RecommendedFees struct {
	FastestFee  float64 `json:"fastestFee"`
	HalfHourFee float64 `json:"halfHourFee"`
	HourFee     float64 `json:"hourFee"`
	EconomyFee  float64 `json:"economyFee"`
	MinimumFee  float64 `json:"minimumFee"`
}

// MempoolSnapshot is a point-in-time view of the unconfirmed transaction
// pool.
type MempoolSnapshot struct {
	Timestamp     time.Time        `json:"timestamp"`
	PendingTxs    int64            `json:"pendingTxs"`
	SizeMB        float64          `json:"sizeMb"`
	Fees          RecommendedFees  `json:"fees"`
}

// FlowType classifies a whale transaction's relationship to exchanges.
type FlowType string

const (
	FlowInflow   FlowType = "inflow"
	FlowOutflow  FlowType = "outflow"
	FlowInternal FlowType = "internal"
	FlowUnknown  FlowType = "unknown"
)

// WhaleTier buckets a whale transaction by size.
type WhaleTier string

const (
	TierLarge      WhaleTier = "large"
	TierWhale      WhaleTier = "whale"
	TierUltraWhale WhaleTier = "ultra_whale"
	TierLeviathan  WhaleTier = "leviathan"
)

// WhaleTx is a single transaction that cleared a whale-tier threshold.
type WhaleTx struct {
	TxID        string    `json:"txid"`
	BlockHeight *int64    `json:"blockHeight,omitempty"`
	Timestamp   time.Time `json:"timestamp"`
	ValueBTC    float64   `json:"valueBtc"`
	Tier        WhaleTier `json:"tier"`
	Flow        FlowType  `json:"flow"`
	FeeBTC      float64   `json:"feeBtc"`
	InputCount  int       `json:"inputCount"`
	OutputCount int       `json:"outputCount"`
}

// WhaleMetrics aggregates whale activity over a window.
type WhaleMetrics struct {
	Count        int     `json:"count"`
	TotalVolume  float64 `json:"totalVolumeBtc"`
	InflowBTC    float64 `json:"inflowBtc"`
	OutflowBTC   float64 `json:"outflowBtc"`
	NetFlowBTC   float64 `json:"netFlowBtc"`
	Dominance    float64 `json:"dominance"`
}

// MetricsSnapshot is the aggregated per-(asset,timeframe,timestamp) input
// to the signal engine.
type MetricsSnapshot struct {
	Asset             string       `json:"asset"`
	Timeframe         string       `json:"timeframe"`
	Timestamp         time.Time    `json:"timestamp"`
	BlockHeight       int64        `json:"blockHeight"`
	BlocksAnalyzed    int          `json:"blocksAnalyzed"`
	TotalTransactions int64        `json:"totalTransactions"`
	AvgBlockSize      float64      `json:"avgBlockSize"`
	AvgTxsPerBlock    float64      `json:"avgTxsPerBlock"`
	PendingTxs        int64        `json:"pendingTxs"`
	MempoolSizeMB     float64      `json:"mempoolSizeMb"`
	TotalFeesBTC      float64      `json:"totalFeesBtc"`
	FastestFee        float64      `json:"fastestFee"`
	HourFee           float64      `json:"hourFee"`
	Whale             WhaleMetrics `json:"whale"`
	DataCompleteness  float64      `json:"dataCompleteness"`
	StabilityScore    float64      `json:"stabilityScore"`
	AnomalyCount      int          `json:"anomalyCount"`
}

// Bias is the directional read of a DerivedSignal.
type Bias string

const (
	BiasPositive Bias = "positive"
	BiasNegative Bias = "negative"
	BiasNeutral  Bias = "neutral"
)

// DerivedSignal is the pure output of the signal engine.
type DerivedSignal struct {
	Asset                     string  `json:"asset"`
	Timeframe                 string  `json:"timeframe"`
	Timestamp                 time.Time `json:"timestamp"`
	SmartMoneyAccumulation    bool    `json:"smartMoneyAccumulation"`
	WhaleFlowDominant         bool    `json:"whaleFlowDominant"`
	NetworkGrowth             bool    `json:"networkGrowth"`
	DistributionRisk          bool    `json:"distributionRisk"`
	Score                     float64 `json:"score"`
	Bias                      Bias    `json:"bias"`
	Confidence                float64 `json:"confidence"`
	ConflictingSignals        int     `json:"conflictingSignals"`
}

// ActiveCount returns how many of the four booleans are true.
func (s DerivedSignal) ActiveCount() int {
	n := 0
	for _, b := range []bool{s.SmartMoneyAccumulation, s.WhaleFlowDominant, s.NetworkGrowth, s.DistributionRisk} {
		if b {
			n++
		}
	}
	return n
}

// QualityFacts are the verification inputs consumed by the kill-switch.
type QualityFacts struct {
	InvariantsPassed  bool      `json:"invariantsPassed"`
	Deterministic     bool      `json:"deterministic"`
	DataAge           time.Duration `json:"dataAge"`
	DataCompleteness  float64   `json:"dataCompleteness"`
	StabilityScore    float64   `json:"stabilityScore"`
	ConflictingSignals int      `json:"conflictingSignals"`
}

// State is the kill-switch output state.
type State string

const (
	StateActive   State = "active"
	StateDegraded State = "degraded"
	StateBlocked  State = "blocked"
)

// UsagePolicy tells a downstream consumer how (or whether) to use a signal.
type UsagePolicy struct {
	Allowed           bool    `json:"allowed"`
	RecommendedWeight float64 `json:"recommendedWeight"`
	Notes             string  `json:"notes,omitempty"`
}

// DecisionContext is the signal-derived portion of the public Context.
type DecisionContext struct {
	OnchainScore *float64 `json:"onchainScore"`
	Bias         Bias     `json:"bias"`
	Confidence   float64  `json:"confidence"`
}

// RiskFlags surfaces the raw quality signals behind a Context's state.
type RiskFlags struct {
	DataLag          bool `json:"dataLag"`
	SignalConflict   bool `json:"signalConflict"`
	AnomalyDetected  bool `json:"anomalyDetected"`
}

// Verification mirrors QualityFacts in the public wire shape.
type Verification struct {
	InvariantsPassed bool    `json:"invariantsPassed"`
	Deterministic    bool    `json:"deterministic"`
	StabilityScore   float64 `json:"stabilityScore"`
	DataCompleteness float64 `json:"dataCompleteness"`
}

// Context is the public, quality-gated product served over HTTP.
type Context struct {
	Product         string          `json:"product"`
	Version         string          `json:"version"`
	Asset           string          `json:"asset"`
	Timeframe       string          `json:"timeframe"`
	Timestamp       time.Time       `json:"timestamp"`
	State           State           `json:"state"`
	DecisionContext DecisionContext `json:"decisionContext"`
	Signals         struct {
		SmartMoneyAccumulation bool `json:"smartMoneyAccumulation"`
		WhaleFlowDominant      bool `json:"whaleFlowDominant"`
		NetworkGrowth          bool `json:"networkGrowth"`
		DistributionRisk       bool `json:"distributionRisk"`
	} `json:"signals"`
	RiskFlags    RiskFlags    `json:"riskFlags"`
	Verification Verification `json:"verification"`
	UsagePolicy  UsagePolicy  `json:"usagePolicy"`
}

// AuditRecord is the persisted, hash-verifiable audit trail entry for one
// calculation.
type AuditRecord struct {
	CalculationHash string    `json:"calculationHash"`
	Asset           string    `json:"asset"`
	Timeframe       string    `json:"timeframe"`
	Timestamp       time.Time `json:"timestamp"`
	InputHash       string    `json:"inputDataHash"`
	ConfigHash      string    `json:"configHash"`
	OutputSnapshot  Context   `json:"outputSnapshot"`
	CreatedAt       time.Time `json:"createdAt"`
}

// HealthStatus is the per-adapter health classification.
type HealthStatus string

const (
	HealthUp       HealthStatus = "up"
	HealthDegraded HealthStatus = "degraded"
	HealthDown     HealthStatus = "down"
)

// SourceHealth tracks one adapter's rolling health.
type SourceHealth struct {
	Source              string       `json:"source"`
	Status              HealthStatus `json:"status"`
	ConsecutiveFailures int          `json:"consecutiveFailures"`
	EMAResponseTimeMS   float64      `json:"emaResponseTimeMs"`
	LastSuccess         *time.Time   `json:"lastSuccess,omitempty"`
	LastFailure         *time.Time   `json:"lastFailure,omitempty"`
	CooldownUntil       *time.Time   `json:"cooldownUntil,omitempty"`
}
