// Package api implements C11: the read-only HTTP query service.
package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/rawblock/onchain-intel/internal/killswitch"
	"github.com/rawblock/onchain-intel/internal/source"
	"github.com/rawblock/onchain-intel/internal/store"
	"github.com/rawblock/onchain-intel/pkg/models"
	"github.com/rs/zerolog"
)

// Deps bundles everything the handlers need.
type Deps struct {
	Store            *store.Store
	Provider         *source.Provider
	Health           *source.HealthTracker
	KillswitchConfig killswitch.Config
	Override         *killswitch.Override
	Cache            *redis.Client // optional; nil disables the fallback cache
	Hub              *Hub
	Log              zerolog.Logger
}

// SetupRouter builds the gin engine with CORS, rate limiting, and the
// three query endpoints, plus the tick-event websocket feed.
func SetupRouter(d Deps, allowedOrigins, authToken string, rps float64, burst int) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(RequestIDMiddleware())
	r.Use(corsMiddleware(allowedOrigins))

	limiter := NewRateLimiter(rps, burst)

	r.GET("/health", d.handleHealth)

	v1 := r.Group("/api/v1/onchain")
	v1.Use(AuthMiddleware(authToken))
	v1.Use(limiter.Middleware())
	{
		v1.GET("/context", d.handleContext)
		v1.GET("/audit/:timestamp", d.handleAudit)
	}

	if d.Hub != nil {
		r.GET("/ws/ticks", d.Hub.Subscribe)
	}

	return r
}

func requestID(c *gin.Context) string {
	id, _ := c.Get("request_id")
	s, _ := id.(string)
	return s
}

func corsMiddleware(allowedOrigins string) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", allowedOrigins)
		c.Header("Access-Control-Allow-Methods", "GET, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Authorization, Content-Type")
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}

func (d Deps) handleHealth(c *gin.Context) {
	sources := d.Health.All()
	c.JSON(http.StatusOK, gin.H{
		"status":  "ok",
		"sources": sources,
	})
}

const cacheKeyPrefix = "onchain:context:"

// handleContext re-applies the kill-switch to the latest stored signal
// with the CURRENT live config: the non-audit path re-derives state from
// current thresholds, unlike the audit path which returns the stored
// snapshot verbatim.
func (d Deps) handleContext(c *gin.Context) {
	asset := c.DefaultQuery("asset", "BTC")
	timeframe := c.DefaultQuery("timeframe", "1h")

	sig, _, err := d.Store.LatestSignalAndState(c.Request.Context(), asset, timeframe)
	if err != nil {
		if cached, ok := d.readFallbackCache(c.Request.Context(), asset, timeframe); ok {
			d.Log.Warn().Str("request_id", requestID(c)).Str("asset", asset).Msg("serving context from fallback cache")
			c.JSON(http.StatusOK, cached)
			return
		}
		c.JSON(http.StatusNotFound, gin.H{"error": "no signal available for asset/timeframe"})
		return
	}

	snap, err := d.Store.LatestMetrics(c.Request.Context(), asset, timeframe)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "no metrics available for asset/timeframe"})
		return
	}

	quality := qualityFromSnapshot(snap, sig)
	ksResult := killswitch.EvaluateWithOverride(quality, sig, d.KillswitchConfig, d.Override)

	out := contextFromSignal(asset, timeframe, snap.Timestamp, sig, quality, ksResult)

	if ksResult.State == models.StateActive && d.Cache != nil {
		d.writeFallbackCache(c.Request.Context(), asset, timeframe, out)
	}

	c.JSON(http.StatusOK, out)
}

// handleAudit returns the stored, verbatim output_snapshot for a
// timestamp, re-derivation is intentionally NOT applied here.
func (d Deps) handleAudit(c *gin.Context) {
	asset := c.DefaultQuery("asset", "BTC")
	timeframe := c.DefaultQuery("timeframe", "1h")

	ts, err := time.Parse(time.RFC3339, c.Param("timestamp"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "timestamp must be RFC3339"})
		return
	}

	rec, err := d.Store.AuditRecordAt(c.Request.Context(), asset, timeframe, ts)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "no audit record for that timestamp"})
		return
	}

	c.JSON(http.StatusOK, rec)
}

func (d Deps) readFallbackCache(ctx context.Context, asset, timeframe string) (any, bool) {
	if d.Cache == nil {
		return nil, false
	}
	raw, err := d.Cache.Get(ctx, cacheKeyPrefix+asset+":"+timeframe).Result()
	if err != nil {
		return nil, false
	}
	var v map[string]any
	if err := json.Unmarshal([]byte(raw), &v); err != nil {
		return nil, false
	}
	if notes, ok := v["usagePolicy"].(map[string]any); ok {
		notes["notes"] = "fallback: cached signal"
	}
	return v, true
}

func (d Deps) writeFallbackCache(ctx context.Context, asset, timeframe string, out any) {
	b, err := json.Marshal(out)
	if err != nil {
		return
	}
	d.Cache.Set(ctx, cacheKeyPrefix+asset+":"+timeframe, b, time.Hour)
}

// qualityFromSnapshot reconstructs QualityFacts for re-evaluation; data
// age is measured against wall-clock now since the snapshot was stored.
func qualityFromSnapshot(snap models.MetricsSnapshot, sig models.DerivedSignal) models.QualityFacts {
	return models.QualityFacts{
		InvariantsPassed:   true,
		Deterministic:      true,
		DataAge:            time.Since(snap.Timestamp),
		DataCompleteness:   snap.DataCompleteness,
		StabilityScore:     snap.StabilityScore,
		ConflictingSignals: sig.ConflictingSignals,
	}
}

func contextFromSignal(asset, timeframe string, timestamp time.Time, sig models.DerivedSignal, quality models.QualityFacts, ks killswitch.Result) models.Context {
	// A blocked context carries no score.
	var score *float64
	if ks.State != models.StateBlocked {
		s := sig.Score
		score = &s
	}
	out := models.Context{
		Product:   "onchain-intel",
		Version:   "1",
		Asset:     asset,
		Timeframe: timeframe,
		Timestamp: timestamp,
		State:     ks.State,
		DecisionContext: models.DecisionContext{
			OnchainScore: score,
			Bias:         sig.Bias,
			Confidence:   sig.Confidence,
		},
		RiskFlags: ks.RiskFlags,
		Verification: models.Verification{
			InvariantsPassed: quality.InvariantsPassed,
			Deterministic:    quality.Deterministic,
			StabilityScore:   quality.StabilityScore,
			DataCompleteness: quality.DataCompleteness,
		},
		UsagePolicy: ks.Policy,
	}
	out.Signals.SmartMoneyAccumulation = sig.SmartMoneyAccumulation
	out.Signals.WhaleFlowDominant = sig.WhaleFlowDominant
	out.Signals.NetworkGrowth = sig.NetworkGrowth
	out.Signals.DistributionRisk = sig.DistributionRisk
	return out
}
