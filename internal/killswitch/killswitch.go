// Package killswitch implements C8: a pure priority-ordered state
// evaluator (BLOCKED over DEGRADED over ACTIVE) and the usage-policy
// weight scaling that goes with it.
package killswitch

import (
	"fmt"
	"time"

	"github.com/rawblock/onchain-intel/pkg/models"
)

// Config holds the thresholds the evaluator checks against.
type Config struct {
	MinConfidence         float64
	MaxDataAge            time.Duration
	StabilityThreshold    float64
	CompletenessThreshold float64
	MaxConflictingSignals int
	NormalWeight          float64
	DegradedWeightFactor  float64
}

// Result bundles the state and usage policy the kill-switch produces for
// one Evaluate call, plus the risk flags the API surfaces alongside them.
type Result struct {
	State       models.State
	Policy      models.UsagePolicy
	RiskFlags   models.RiskFlags
}

// EvaluateWithOverride checks an active manual Override before running the
// normal Evaluate priority list; an active override always wins and
// forces BLOCKED regardless of quality facts.
func EvaluateWithOverride(q models.QualityFacts, sig models.DerivedSignal, cfg Config, ov *Override) Result {
	if ov != nil {
		if reason, active := ov.Active(); active {
			return blocked(models.RiskFlags{}, "manual override: "+reason)
		}
	}
	return Evaluate(q, sig, cfg)
}

// Evaluate runs the priority-ordered check list against q/sig and returns
// the resulting state and usage policy.
func Evaluate(q models.QualityFacts, sig models.DerivedSignal, cfg Config) Result {
	riskFlags := models.RiskFlags{
		DataLag:         q.DataAge > cfg.MaxDataAge,
		SignalConflict:  sig.ConflictingSignals > cfg.MaxConflictingSignals,
		AnomalyDetected: false,
	}

	// BLOCKED takes priority over DEGRADED.
	if !q.InvariantsPassed {
		return blocked(riskFlags, "invariants failed")
	}
	if !q.Deterministic {
		return blocked(riskFlags, "non-deterministic calculation")
	}
	if q.DataAge > cfg.MaxDataAge {
		return blocked(riskFlags, fmt.Sprintf("data_age %s exceeds max %s", q.DataAge, cfg.MaxDataAge))
	}
	if sig.Confidence < cfg.MinConfidence {
		return blocked(riskFlags, fmt.Sprintf("confidence %.2f below min %.2f", sig.Confidence, cfg.MinConfidence))
	}

	if q.StabilityScore < cfg.StabilityThreshold {
		return degraded(riskFlags, cfg, fmt.Sprintf("stability %.2f below threshold %.2f", q.StabilityScore, cfg.StabilityThreshold))
	}
	if q.DataCompleteness < cfg.CompletenessThreshold {
		return degraded(riskFlags, cfg, fmt.Sprintf("completeness %.2f below threshold %.2f", q.DataCompleteness, cfg.CompletenessThreshold))
	}
	if sig.ConflictingSignals > cfg.MaxConflictingSignals {
		return degraded(riskFlags, cfg, fmt.Sprintf("conflicting signals %d exceeds max %d", sig.ConflictingSignals, cfg.MaxConflictingSignals))
	}

	return Result{
		State:     models.StateActive,
		Policy:    models.UsagePolicy{Allowed: true, RecommendedWeight: cfg.NormalWeight},
		RiskFlags: riskFlags,
	}
}

func blocked(flags models.RiskFlags, note string) Result {
	return Result{
		State:     models.StateBlocked,
		Policy:    models.UsagePolicy{Allowed: false, RecommendedWeight: 0, Notes: note},
		RiskFlags: flags,
	}
}

func degraded(flags models.RiskFlags, cfg Config, note string) Result {
	return Result{
		State:     models.StateDegraded,
		Policy:    models.UsagePolicy{Allowed: true, RecommendedWeight: cfg.DegradedWeightFactor * cfg.NormalWeight, Notes: note},
		RiskFlags: flags,
	}
}
