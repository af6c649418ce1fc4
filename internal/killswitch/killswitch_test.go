package killswitch

import (
	"testing"
	"time"

	"github.com/rawblock/onchain-intel/pkg/models"
)

func defaultConfig() Config {
	return Config{
		MinConfidence:         0.5,
		MaxDataAge:            6 * time.Hour,
		StabilityThreshold:    0.6,
		CompletenessThreshold: 0.75,
		MaxConflictingSignals: 2,
		NormalWeight:          1.0,
		DegradedWeightFactor:  0.3,
	}
}

func goodQuality() models.QualityFacts {
	return models.QualityFacts{
		InvariantsPassed:   true,
		Deterministic:      true,
		DataAge:            time.Minute,
		DataCompleteness:   1.0,
		StabilityScore:     1.0,
		ConflictingSignals: 0,
	}
}

func goodSignal() models.DerivedSignal {
	return models.DerivedSignal{Confidence: 0.9, ConflictingSignals: 0}
}

func TestEvaluate_ActiveOnGoodInputs(t *testing.T) {
	res := Evaluate(goodQuality(), goodSignal(), defaultConfig())

	if res.State != models.StateActive {
		t.Fatalf("State = %v, want active", res.State)
	}
	if !res.Policy.Allowed || res.Policy.RecommendedWeight != 1.0 {
		t.Errorf("Policy = %+v, want allowed at full weight", res.Policy)
	}
}

func TestEvaluate_BlockedTakesPriorityOverDegraded(t *testing.T) {
	// Both an invariant failure (BLOCKED trigger) and a stability failure
	// (DEGRADED trigger) are present; BLOCKED must win.
	q := goodQuality()
	q.InvariantsPassed = false
	q.StabilityScore = 0.1

	res := Evaluate(q, goodSignal(), defaultConfig())

	if res.State != models.StateBlocked {
		t.Errorf("State = %v, want blocked", res.State)
	}
	if res.Policy.Allowed {
		t.Error("blocked state must not allow usage")
	}
	if res.Policy.RecommendedWeight != 0 {
		t.Errorf("RecommendedWeight = %v, want 0 when blocked", res.Policy.RecommendedWeight)
	}
}

func TestEvaluate_BlockedReasons(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*models.QualityFacts, *models.DerivedSignal)
	}{
		{"invariants failed", func(q *models.QualityFacts, s *models.DerivedSignal) { q.InvariantsPassed = false }},
		{"non-deterministic", func(q *models.QualityFacts, s *models.DerivedSignal) { q.Deterministic = false }},
		{"data too old", func(q *models.QualityFacts, s *models.DerivedSignal) { q.DataAge = 24 * time.Hour }},
		{"confidence too low", func(q *models.QualityFacts, s *models.DerivedSignal) { s.Confidence = 0.1 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q := goodQuality()
			s := goodSignal()
			tt.mutate(&q, &s)

			res := Evaluate(q, s, defaultConfig())
			if res.State != models.StateBlocked {
				t.Errorf("State = %v, want blocked", res.State)
			}
		})
	}
}

func TestEvaluate_DegradedReasons(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*models.QualityFacts, *models.DerivedSignal)
	}{
		{"low stability", func(q *models.QualityFacts, s *models.DerivedSignal) { q.StabilityScore = 0.2 }},
		{"low completeness", func(q *models.QualityFacts, s *models.DerivedSignal) { q.DataCompleteness = 0.3 }},
		{"too many conflicts", func(q *models.QualityFacts, s *models.DerivedSignal) {
			q.ConflictingSignals = 5
			s.ConflictingSignals = 5
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q := goodQuality()
			s := goodSignal()
			tt.mutate(&q, &s)

			res := Evaluate(q, s, defaultConfig())
			if res.State != models.StateDegraded {
				t.Errorf("State = %v, want degraded", res.State)
			}
			cfg := defaultConfig()
			wantWeight := cfg.DegradedWeightFactor * cfg.NormalWeight
			if res.Policy.RecommendedWeight != wantWeight {
				t.Errorf("RecommendedWeight = %v, want %v", res.Policy.RecommendedWeight, wantWeight)
			}
		})
	}
}

func TestEvaluateWithOverride_ForcesBlocked(t *testing.T) {
	ov := &Override{}
	ov.Activate("known source outage", time.Hour)

	res := EvaluateWithOverride(goodQuality(), goodSignal(), defaultConfig(), ov)

	if res.State != models.StateBlocked {
		t.Errorf("State = %v, want blocked under active override", res.State)
	}
	if res.Policy.Notes == "" {
		t.Error("expected override reason recorded in Notes")
	}
}

func TestEvaluateWithOverride_ExpiredOverrideIgnored(t *testing.T) {
	ov := &Override{}
	ov.Activate("temporary", time.Millisecond)
	time.Sleep(5 * time.Millisecond)

	res := EvaluateWithOverride(goodQuality(), goodSignal(), defaultConfig(), ov)

	if res.State != models.StateActive {
		t.Errorf("State = %v, want active once override expires", res.State)
	}
}

func TestOverride_Clear(t *testing.T) {
	ov := &Override{}
	ov.Activate("maintenance", time.Hour)
	ov.Clear()

	if _, active := ov.Active(); active {
		t.Error("expected override to be inactive after Clear")
	}
}
