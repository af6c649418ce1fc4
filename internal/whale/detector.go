// Package whale implements C4: tiered size classification, exchange-flow
// classification, and dominance computation over a window of
// transactions.
package whale

import (
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/rawblock/onchain-intel/pkg/models"
)

// Tiers holds the BTC thresholds that separate whale tiers. Only fixed
// amounts (FixedThresholds) are implemented; there is no percentile-derived
// threshold source.
type Tiers struct {
	Large      float64
	Whale      float64
	UltraWhale float64
	Leviathan  float64
}

// DefaultTiers returns the default BTC-denominated tier thresholds.
func DefaultTiers() Tiers {
	return Tiers{Large: 10, Whale: 100, UltraWhale: 500, Leviathan: 1000}
}

// ThresholdSource supplies the tier thresholds a Detector should apply.
// FixedThresholds, which holds Tiers fixed at startup, is the only
// implementation.
type ThresholdSource interface {
	Thresholds() Tiers
}

// FixedThresholds implements ThresholdSource over a constant Tiers value.
type FixedThresholds struct{ T Tiers }

func (f FixedThresholds) Thresholds() Tiers { return f.T }

// Detector classifies transactions into whale tiers and flow direction.
type Detector struct {
	thresholds ThresholdSource
	tags       *ExchangeTagSet
}

func NewDetector(thresholds ThresholdSource, tags *ExchangeTagSet) *Detector {
	return &Detector{thresholds: thresholds, tags: tags}
}

// Classify returns the WhaleTx for tx if it clears the "large" threshold,
// or ok=false if it does not qualify as a whale transaction at all.
func (d *Detector) Classify(tx models.RawTx) (wtx models.WhaleTx, ok bool) {
	totalOut := tx.TotalOutputValue()
	totalIn, inOK := tx.TotalInputValue()

	value := totalOut
	if inOK && totalIn > value {
		value = totalIn
	}

	tiers := d.thresholds.Thresholds()
	tier, qualifies := classifyTier(value, tiers)
	if !qualifies {
		return models.WhaleTx{}, false
	}

	var fee float64
	if tx.FeeBTC != nil {
		fee = *tx.FeeBTC
	}

	wtx = models.WhaleTx{
		TxID:        tx.TxID,
		BlockHeight: tx.BlockHeight,
		Timestamp:   tx.Timestamp,
		ValueBTC:    value,
		Tier:        tier,
		Flow:        d.classifyFlow(tx),
		FeeBTC:      fee,
		InputCount:  len(tx.Inputs),
		OutputCount: len(tx.Outputs),
	}
	return wtx, true
}

func classifyTier(value float64, t Tiers) (models.WhaleTier, bool) {
	switch {
	case value >= t.Leviathan:
		return models.TierLeviathan, true
	case value >= t.UltraWhale:
		return models.TierUltraWhale, true
	case value >= t.Whale:
		return models.TierWhale, true
	case value >= t.Large:
		return models.TierLarge, true
	default:
		return "", false
	}
}

// classifyFlow tags a transaction inflow/outflow/internal when more than
// half of its input or output value touches a known exchange address.
func (d *Detector) classifyFlow(tx models.RawTx) models.FlowType {
	inputExch, inputTotal := d.exchangeShare(tx.Inputs)
	outputExch, outputTotal := d.exchangeOutShare(tx.Outputs)

	inputMajority := inputTotal > 0 && inputExch/inputTotal > 0.5
	outputMajority := outputTotal > 0 && outputExch/outputTotal > 0.5

	switch {
	case inputMajority && outputMajority:
		return models.FlowInternal
	case outputMajority:
		return models.FlowInflow // funds moving TO an exchange
	case inputMajority:
		return models.FlowOutflow // funds moving FROM an exchange
	default:
		return models.FlowUnknown
	}
}

func (d *Detector) exchangeShare(inputs []models.RawTxInput) (exch, total float64) {
	for _, in := range inputs {
		if in.Value == nil {
			continue
		}
		total += *in.Value
		if in.Address != nil && d.tags.IsTagged(*in.Address) {
			exch += *in.Value
		}
	}
	return exch, total
}

func (d *Detector) exchangeOutShare(outputs []models.RawTxOutput) (exch, total float64) {
	for _, out := range outputs {
		total += out.Value
		if out.Address != nil && d.tags.IsTagged(*out.Address) {
			exch += out.Value
		}
	}
	return exch, total
}

// Dominance computes whale-volume dominance for a window, clamped [0,1].
func Dominance(whaleVolume, totalVolume float64) float64 {
	if totalVolume <= 0 {
		return 0
	}
	d := whaleVolume / totalVolume
	if d < 0 {
		return 0
	}
	if d > 1 {
		return 1
	}
	return d
}

// Aggregate builds WhaleMetrics from a slice of classified WhaleTx over a
// window's total transacted volume.
func Aggregate(whales []models.WhaleTx, totalVolume float64) models.WhaleMetrics {
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
	m.Dominance = Dominance(m.TotalVolume, totalVolume)
	return m
}

// ValidateAddress confirms addr decodes as a mainnet Bitcoin address.
func ValidateAddress(addr string) bool {
	_, err := btcutil.DecodeAddress(addr, &chaincfg.MainNetParams)
	return err == nil
}
