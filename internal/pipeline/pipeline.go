// Package pipeline wires C1/C3 (ingest) through C4 (whale), C5 (metrics),
// C7 (signal), C8 (kill-switch), C6 (persistence), and C9 (audit) into the
// single per-(asset,timeframe) tick the scheduler drives.
package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/rawblock/onchain-intel/internal/audit"
	"github.com/rawblock/onchain-intel/internal/killswitch"
	"github.com/rawblock/onchain-intel/internal/metrics"
	"github.com/rawblock/onchain-intel/internal/signal"
	"github.com/rawblock/onchain-intel/internal/source"
	"github.com/rawblock/onchain-intel/internal/store"
	"github.com/rawblock/onchain-intel/internal/whale"
	"github.com/rawblock/onchain-intel/pkg/models"
	"github.com/rs/zerolog"
)

// Pipeline holds everything one tick needs.
type Pipeline struct {
	Provider        *source.Provider
	WhaleDetector   *whale.Detector
	SignalThresholds signal.Thresholds
	KillswitchConfig killswitch.Config
	Override        *killswitch.Override
	Store           *store.Store
	Log             zerolog.Logger
}

// Tick runs one full pass for (asset, timeframe) at "now", persisting
// metrics, the derived signal, observed whale transactions, and an audit
// record, and returning the resulting Context.
func (p *Pipeline) Tick(ctx context.Context, asset, timeframe string, now time.Time) (models.Context, error) {
	log := p.Log.With().Str("asset", asset).Str("timeframe", timeframe).Logger()

	height, err := p.Provider.GetBlockHeight(ctx)
	if err != nil {
		return models.Context{}, fmt.Errorf("tick: %w", err)
	}

	windowBlocks := metrics.WindowBlocks(timeframe)
	blocks := make([]models.RawBlock, 0, windowBlocks)
	var whaleTxs []models.WhaleTx
	var totalVolume float64

	for i := 0; i < windowBlocks; i++ {
		h := height - int64(i)
		if h < 0 {
			break
		}
		b, err := p.Provider.GetBlock(ctx, h)
		if err != nil {
			log.Warn().Err(err).Int64("height", h).Msg("block fetch failed, degrading")
			continue
		}
		blocks = append(blocks, b)

		txs, err := p.Provider.GetBlockTransactions(ctx, h)
		if err != nil {
			log.Warn().Err(err).Int64("height", h).Msg("block txs fetch failed, degrading")
			continue
		}
		// A fetched block with no whale tx still counts as whale data
		// present; only a nil slice tells the aggregator the source failed.
		if whaleTxs == nil {
			whaleTxs = []models.WhaleTx{}
		}
		for _, tx := range txs {
			totalVolume += tx.TotalOutputValue()
			if wtx, ok := p.WhaleDetector.Classify(tx); ok {
				whaleTxs = append(whaleTxs, wtx)
			}
		}
	}

	var mempoolPtr *models.MempoolSnapshot
	mp, err := p.Provider.GetMempoolInfo(ctx)
	if err != nil {
		log.Warn().Err(err).Msg("mempool fetch failed, degrading")
	} else {
		mempoolPtr = &mp
	}

	snapshot := metrics.Aggregate(metrics.Input{
		Asset:          asset,
		Timeframe:      timeframe,
		Timestamp:      now,
		BlockHeight:    height,
		Blocks:         blocks,
		Mempool:        mempoolPtr,
		WhaleTxs:       whaleTxs,
		TotalVolumeBTC: &totalVolume,
	})

	sig := signal.Evaluate(snapshot, p.SignalThresholds)

	quality := models.QualityFacts{
		InvariantsPassed:   invariantsHold(snapshot, sig),
		Deterministic:      true,
		DataAge:            time.Since(snapshot.Timestamp),
		DataCompleteness:   snapshot.DataCompleteness,
		StabilityScore:     snapshot.StabilityScore,
		ConflictingSignals: sig.ConflictingSignals,
	}

	ksResult := killswitch.EvaluateWithOverride(quality, sig, p.KillswitchConfig, p.Override)

	// A blocked context carries no score.
	var onchainScore *float64
	if ksResult.State != models.StateBlocked {
		score := sig.Score
		onchainScore = &score
	}
	out := models.Context{
		Product:   "onchain-intel",
		Version:   "1",
		Asset:     asset,
		Timeframe: timeframe,
		Timestamp: snapshot.Timestamp,
		State:     ksResult.State,
		DecisionContext: models.DecisionContext{
			OnchainScore: onchainScore,
			Bias:         sig.Bias,
			Confidence:   sig.Confidence,
		},
		RiskFlags: ksResult.RiskFlags,
		Verification: models.Verification{
			InvariantsPassed: quality.InvariantsPassed,
			Deterministic:    quality.Deterministic,
			StabilityScore:   quality.StabilityScore,
			DataCompleteness: quality.DataCompleteness,
		},
		UsagePolicy: ksResult.Policy,
	}
	out.Signals.SmartMoneyAccumulation = sig.SmartMoneyAccumulation
	out.Signals.WhaleFlowDominant = sig.WhaleFlowDominant
	out.Signals.NetworkGrowth = sig.NetworkGrowth
	out.Signals.DistributionRisk = sig.DistributionRisk

	if err := p.Store.SaveMetrics(ctx, snapshot); err != nil {
		return out, err
	}
	if err := p.Store.SaveWhaleTxs(ctx, asset, whaleTxs); err != nil {
		return out, err
	}

	cfgSnapshot := audit.ConfigSnapshot{
		MinConfidence:         p.KillswitchConfig.MinConfidence,
		StabilityThreshold:    p.KillswitchConfig.StabilityThreshold,
		CompletenessThreshold: p.KillswitchConfig.CompletenessThreshold,
		MaxDataAgeSeconds:     p.KillswitchConfig.MaxDataAge.Seconds(),
		MaxConflictingSignals: p.KillswitchConfig.MaxConflictingSignals,
		NormalWeight:          p.KillswitchConfig.NormalWeight,
		DegradedWeightFactor:  p.KillswitchConfig.DegradedWeightFactor,
	}
	rec := audit.Record(asset, timeframe, snapshot.Timestamp, snapshot, cfgSnapshot, out)

	if err := p.Store.SaveAuditRecord(ctx, rec); err != nil {
		return out, err
	}
	if err := p.Store.SaveSignal(ctx, sig, ksResult.State, rec.InputHash); err != nil {
		return out, err
	}

	return out, nil
}

// invariantsHold checks a handful of sanity invariants: scores and
// confidence in range, non-negative volumes.
func invariantsHold(m models.MetricsSnapshot, sig models.DerivedSignal) bool {
	if sig.Score < 0 || sig.Score > 100 {
		return false
	}
	if sig.Confidence < 0 || sig.Confidence > 1 {
		return false
	}
	if m.Whale.Dominance < 0 || m.Whale.Dominance > 1 {
		return false
	}
	if m.Whale.TotalVolume < 0 {
		return false
	}
	if m.DataCompleteness < 0 || m.DataCompleteness > 1 {
		return false
	}
	return true
}
