package source

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rawblock/onchain-intel/pkg/models"
)

var (
	healthStatusGauge = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "onchain",
		Subsystem: "source",
		Name:      "health_status",
		Help:      "Per-adapter health: 0=down, 1=degraded, 2=up.",
	}, []string{"source"})

	consecutiveFailuresGauge = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "onchain",
		Subsystem: "source",
		Name:      "consecutive_failures",
		Help:      "Consecutive failures for a source adapter.",
	}, []string{"source"})
)

func init() {
	prometheus.MustRegister(healthStatusGauge, consecutiveFailuresGauge)
}

// entry is one adapter's mutable health state, guarded by its own lock
// rather than a single provider-wide lock.
type entry struct {
	mu                  sync.Mutex
	status              models.HealthStatus
	consecutiveFailures int
	emaResponseTimeMS   float64
	lastSuccess         *time.Time
	lastFailure         *time.Time
	cooldownUntil       *time.Time
}

// HealthTracker implements C2: it classifies each adapter's health from a
// rolling count of consecutive failures, an EMA of response time, and a
// cooldown window before a DOWN adapter is retried.
type HealthTracker struct {
	degradedThreshold int
	downThreshold     int
	cooldown          time.Duration

	mu      sync.RWMutex
	entries map[string]*entry
}

// NewHealthTracker builds a tracker. degradedThreshold/downThreshold are
// consecutive-failure counts (defaults: 2 and 5); cooldown is how long a
// DOWN adapter is skipped before being retried (default 5 minutes).
func NewHealthTracker(degradedThreshold, downThreshold int, cooldown time.Duration) *HealthTracker {
	return &HealthTracker{
		degradedThreshold: degradedThreshold,
		downThreshold:     downThreshold,
		cooldown:          cooldown,
		entries:           make(map[string]*entry),
	}
}

func (h *HealthTracker) entryFor(source string) *entry {
	h.mu.RLock()
	e, ok := h.entries[source]
	h.mu.RUnlock()
	if ok {
		return e
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if e, ok = h.entries[source]; ok {
		return e
	}
	e = &entry{status: models.HealthUp}
	h.entries[source] = e
	return e
}

// RecordSuccess records a successful call and its response time.
func (h *HealthTracker) RecordSuccess(source string, responseTime time.Duration) {
	e := h.entryFor(source)
	rtMS := float64(responseTime.Microseconds()) / 1000.0

	e.mu.Lock()
	defer e.mu.Unlock()

	now := time.Now()
	e.consecutiveFailures = 0
	e.status = models.HealthUp
	e.cooldownUntil = nil
	e.lastSuccess = &now
	if e.emaResponseTimeMS == 0 {
		e.emaResponseTimeMS = rtMS
	} else {
		e.emaResponseTimeMS = 0.9*e.emaResponseTimeMS + 0.1*rtMS
	}

	consecutiveFailuresGauge.WithLabelValues(source).Set(0)
	healthStatusGauge.WithLabelValues(source).Set(statusValue(e.status))
}

// RecordFailure records a failed call.
func (h *HealthTracker) RecordFailure(source string) {
	e := h.entryFor(source)

	e.mu.Lock()
	defer e.mu.Unlock()

	now := time.Now()
	e.consecutiveFailures++
	e.lastFailure = &now

	switch {
	case e.consecutiveFailures >= h.downThreshold:
		e.status = models.HealthDown
		until := now.Add(h.cooldown)
		e.cooldownUntil = &until
	case e.consecutiveFailures >= h.degradedThreshold:
		e.status = models.HealthDegraded
	}

	consecutiveFailuresGauge.WithLabelValues(source).Set(float64(e.consecutiveFailures))
	healthStatusGauge.WithLabelValues(source).Set(statusValue(e.status))
}

// IsAvailable reports whether a source should currently be tried: it is
// available unless DOWN and still within its cooldown window.
func (h *HealthTracker) IsAvailable(source string) bool {
	e := h.entryFor(source)
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.status != models.HealthDown {
		return true
	}
	if e.cooldownUntil == nil {
		return true
	}
	return time.Now().After(*e.cooldownUntil)
}

// Status returns a snapshot of a source's current health.
func (h *HealthTracker) Status(source string) models.SourceHealth {
	e := h.entryFor(source)
	e.mu.Lock()
	defer e.mu.Unlock()

	return models.SourceHealth{
		Source:              source,
		Status:              e.status,
		ConsecutiveFailures: e.consecutiveFailures,
		EMAResponseTimeMS:   e.emaResponseTimeMS,
		LastSuccess:         e.lastSuccess,
		LastFailure:         e.lastFailure,
		CooldownUntil:       e.cooldownUntil,
	}
}

// All returns a snapshot of every tracked source's health.
func (h *HealthTracker) All() []models.SourceHealth {
	h.mu.RLock()
	names := make([]string, 0, len(h.entries))
	for name := range h.entries {
		names = append(names, name)
	}
	h.mu.RUnlock()

	out := make([]models.SourceHealth, 0, len(names))
	for _, name := range names {
		out = append(out, h.Status(name))
	}
	return out
}

func statusValue(s models.HealthStatus) float64 {
	switch s {
	case models.HealthUp:
		return 2
	case models.HealthDegraded:
		return 1
	default:
		return 0
	}
}
