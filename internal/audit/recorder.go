// Package audit implements C9: deterministic canonicalization, SHA-256
// hashing, and integrity verification of the pipeline's calculation
// trail.
package audit

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/rawblock/onchain-intel/pkg/models"
)

// ConfigSnapshot is the subset of live configuration hashed alongside
// each calculation, so a later integrity check can detect whether
// thresholds changed since the calculation ran.
type ConfigSnapshot struct {
	MinConfidence          float64 `json:"minConfidence"`
	StabilityThreshold     float64 `json:"stabilityThreshold"`
	CompletenessThreshold  float64 `json:"completenessThreshold"`
	MaxDataAgeSeconds      float64 `json:"maxDataAgeSeconds"`
	MaxConflictingSignals  int     `json:"maxConflictingSignals"`
	NormalWeight           float64 `json:"normalWeight"`
	DegradedWeightFactor   float64 `json:"degradedWeightFactor"`
}

// Record computes the input hash, config hash, and calculation hash for
// one tick's output and returns the AuditRecord ready for persistence.
func Record(asset, timeframe string, timestamp time.Time, input any, cfg ConfigSnapshot, output models.Context) models.AuditRecord {
	inputHash := hashValue(input)
	configHash := hashValue(cfg)

	calcPayload := map[string]any{
		"asset":      asset,
		"timeframe":  timeframe,
		"timestamp":  timestamp.UTC().Format(time.RFC3339),
		"input_hash": inputHash,
		"config":     canonicalize(cfg),
		"output":     canonicalize(output),
	}
	calcHash := hashValue(calcPayload)

	return models.AuditRecord{
		CalculationHash: calcHash,
		Asset:           asset,
		Timeframe:       timeframe,
		Timestamp:       timestamp,
		InputHash:       inputHash,
		ConfigHash:      configHash,
		OutputSnapshot:  output,
		CreatedAt:       time.Now().UTC(),
	}
}

// VerifyIntegrity recomputes the calculation hash from a stored record's
// fields and reports whether it matches CalculationHash.
func VerifyIntegrity(rec models.AuditRecord, cfg ConfigSnapshot) bool {
	calcPayload := map[string]any{
		"asset":      rec.Asset,
		"timeframe":  rec.Timeframe,
		"timestamp":  rec.Timestamp.UTC().Format(time.RFC3339),
		"input_hash": rec.InputHash,
		"config":     canonicalize(cfg),
		"output":     canonicalize(rec.OutputSnapshot),
	}
	return hashValue(calcPayload) == rec.CalculationHash
}

// hashValue canonicalizes v and returns its SHA-256 hex digest.
func hashValue(v any) string {
	normalized := canonicalize(v)
	b, err := marshalSorted(normalized)
	if err != nil {
		// Canonicalize always produces JSON-marshalable primitives/maps/
		// slices; a marshal failure here means a caller passed a type
		// canonicalize doesn't know how to normalize.
		panic(fmt.Sprintf("audit: cannot hash value: %v", err))
	}
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}

// canonicalize round-trips v through JSON so struct fields surface as
// map[string]any, then recursively normalizes floats (rounded to 8
// decimals). Key order is fixed later by marshalSorted, so two
// structurally-equal values always produce the same serialized bytes.
func canonicalize(v any) any {
	b, err := json.Marshal(v)
	if err != nil {
		panic(fmt.Sprintf("audit: cannot marshal value for hashing: %v", err))
	}
	var generic any
	if err := json.Unmarshal(b, &generic); err != nil {
		panic(fmt.Sprintf("audit: cannot unmarshal value for hashing: %v", err))
	}
	return normalize(generic)
}

func normalize(v any) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			out[k] = normalize(val)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, val := range t {
			out[i] = normalize(val)
		}
		return out
	case float64:
		return roundTo8(t)
	default:
		return t
	}
}

func roundTo8(f float64) float64 {
	return math.Round(f*1e8) / 1e8
}

// marshalSorted serializes v with sorted map keys and no extraneous
// whitespace, matching json.dumps(..., sort_keys=True,
// separators=(',', ':')) from the Python original.
func marshalSorted(v any) ([]byte, error) {
	switch t := v.(type) {
	case map[string]any:
		keys := make([]string, 0, len(t))
		for k := range t {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		out := []byte("{")
		for i, k := range keys {
			if i > 0 {
				out = append(out, ',')
			}
			kb, err := json.Marshal(k)
			if err != nil {
				return nil, err
			}
			out = append(out, kb...)
			out = append(out, ':')
			vb, err := marshalSorted(t[k])
			if err != nil {
				return nil, err
			}
			out = append(out, vb...)
		}
		out = append(out, '}')
		return out, nil
	case []any:
		out := []byte("[")
		for i, e := range t {
			if i > 0 {
				out = append(out, ',')
			}
			eb, err := marshalSorted(e)
			if err != nil {
				return nil, err
			}
			out = append(out, eb...)
		}
		out = append(out, ']')
		return out, nil
	default:
		return json.Marshal(t)
	}
}
