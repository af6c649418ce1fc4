// Package scheduler implements C10: a ticker-driven, non-overlapping
// pipeline runner with a configurable tick interval and a skip counter
// for overruns.
package scheduler

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
)

var (
	tickSkippedCounter = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "onchain",
		Subsystem: "scheduler",
		Name:      "tick_skipped_total",
		Help:      "Ticks skipped because the previous tick was still running.",
	})

	tickDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "onchain",
		Subsystem: "scheduler",
		Name:      "tick_duration_seconds",
		Help:      "Wall-clock duration of each completed tick.",
		Buckets:   prometheus.DefBuckets,
	})

	tickErrorCounter = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "onchain",
		Subsystem: "scheduler",
		Name:      "tick_errors_total",
		Help:      "Ticks that returned an error.",
	})
)

func init() {
	prometheus.MustRegister(tickSkippedCounter, tickDuration, tickErrorCounter)
}

// State reports the scheduler's last/next run bookkeeping; a snapshot is
// passed to the OnTick callback after each tick.
type State struct {
	LastRun      time.Time
	NextRun      time.Time
	Running      bool
	LastDuration time.Duration
	LastError    string
}

// TickFunc runs one full pipeline pass (C5→C7→C8→C6→C9) for every
// configured (asset, timeframe) pair.
type TickFunc func(ctx context.Context) error

// OnTick is called after each tick completes (success or error), used by
// internal/api's websocket Hub to broadcast tick-complete/tick-error
// events to connected dashboards.
type OnTick func(state State)

// Scheduler runs TickFunc on a fixed interval, skipping a tick if the
// previous one is still in flight rather than overlapping it.
type Scheduler struct {
	interval time.Duration
	run      TickFunc
	onTick   OnTick
	log      zerolog.Logger

	running int32 // atomic: 1 while a tick is executing

	mu    chan struct{} // 1-buffered mutex guarding state below
	state State
}

// New builds a Scheduler. onTick may be nil.
func New(interval time.Duration, run TickFunc, onTick OnTick, log zerolog.Logger) *Scheduler {
	mu := make(chan struct{}, 1)
	mu <- struct{}{}
	return &Scheduler{
		interval: interval,
		run:      run,
		onTick:   onTick,
		log:      log.With().Str("component", "scheduler").Logger(),
		mu:       mu,
	}
}

// State returns a snapshot of the scheduler's current bookkeeping.
func (s *Scheduler) State() State {
	<-s.mu
	defer func() { s.mu <- struct{}{} }()
	return s.state
}

func (s *Scheduler) setState(fn func(*State)) {
	<-s.mu
	fn(&s.state)
	snapshot := s.state
	s.mu <- struct{}{}
	if s.onTick != nil {
		s.onTick(snapshot)
	}
}

// Run blocks, ticking until ctx is cancelled. Call it in its own
// goroutine; shutdown is simply cancelling ctx and letting the in-flight
// tick finish.
func (s *Scheduler) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.setState(func(st *State) { st.NextRun = time.Now().Add(s.interval) })

	var wg sync.WaitGroup
	for {
		select {
		case <-ctx.Done():
			s.log.Info().Msg("scheduler stopping")
			wg.Wait()
			return
		case now := <-ticker.C:
			wg.Add(1)
			go func() {
				defer wg.Done()
				s.tick(ctx, now)
			}()
		}
	}
}

func (s *Scheduler) tick(ctx context.Context, now time.Time) {
	if !atomic.CompareAndSwapInt32(&s.running, 0, 1) {
		tickSkippedCounter.Inc()
		s.log.Warn().Msg("tick skipped: previous tick still running")
		return
	}
	defer atomic.StoreInt32(&s.running, 0)

	start := time.Now()
	err := s.run(ctx)
	elapsed := time.Since(start)
	tickDuration.Observe(elapsed.Seconds())

	if err != nil {
		tickErrorCounter.Inc()
		s.log.Error().Err(err).Dur("elapsed", elapsed).Msg("tick failed")
	} else {
		s.log.Info().Dur("elapsed", elapsed).Msg("tick completed")
	}

	s.setState(func(st *State) {
		st.LastRun = now
		st.NextRun = now.Add(s.interval)
		st.Running = false
		st.LastDuration = elapsed
		if err != nil {
			st.LastError = err.Error()
		} else {
			st.LastError = ""
		}
	})
}

// RunOnce executes a single tick synchronously, without the skip check or
// state bookkeeping. The `run-tick` CLI subcommand does not go through it;
// it calls its tick function directly.
func (s *Scheduler) RunOnce(ctx context.Context) error {
	return s.run(ctx)
}
