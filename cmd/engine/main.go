// Command engine is the on-chain intelligence process entrypoint: it
// wires the ingest/whale/metrics/signal/killswitch/store/audit
// components together and dispatches one of three subcommands through a
// flat main() with stdlib flag parsing.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rawblock/onchain-intel/internal/api"
	"github.com/rawblock/onchain-intel/internal/config"
	"github.com/rawblock/onchain-intel/internal/killswitch"
	"github.com/rawblock/onchain-intel/internal/pipeline"
	"github.com/rawblock/onchain-intel/internal/scheduler"
	dsignal "github.com/rawblock/onchain-intel/internal/signal"
	"github.com/rawblock/onchain-intel/internal/source"
	"github.com/rawblock/onchain-intel/internal/source/blockchaininfo"
	"github.com/rawblock/onchain-intel/internal/source/blockcypher"
	"github.com/rawblock/onchain-intel/internal/source/mempoolspace"
	"github.com/rawblock/onchain-intel/internal/store"
	"github.com/rawblock/onchain-intel/internal/whale"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

func main() {
	if len(os.Args) < 2 {
		fmt.Fprintln(os.Stderr, "usage: engine <serve|run-tick|migrate>")
		os.Exit(1)
	}
	subcommand := os.Args[1]
	fs := flag.NewFlagSet(subcommand, flag.ExitOnError)
	fs.Parse(os.Args[2:])

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "config error:", err)
		os.Exit(1)
	}

	log := newLogger(cfg)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	st, err := store.Connect(ctx, cfg.DatabaseURL, cfg.DBPoolMin, cfg.DBPoolMax)
	if err != nil {
		log.Error().Err(err).Msg("database connection failed, continuing in degraded mode")
	}
	if st != nil {
		defer st.Close()
	}

	switch subcommand {
	case "migrate":
		if st == nil {
			log.Fatal().Msg("migrate requires a database connection")
		}
		if err := st.InitSchema(ctx); err != nil {
			log.Fatal().Err(err).Msg("schema migration failed")
		}
		log.Info().Msg("schema migration complete")

	case "run-tick":
		if st == nil {
			log.Fatal().Msg("run-tick requires a database connection")
		}
		p := buildPipeline(cfg, st, log)
		runTickFanOut(ctx, p, cfg, time.Now().UTC(), log)

	case "serve":
		runServe(ctx, cfg, st, log)

	default:
		fmt.Fprintf(os.Stderr, "unknown subcommand %q\n", subcommand)
		os.Exit(1)
	}
}

func runServe(ctx context.Context, cfg config.Config, st *store.Store, log zerolog.Logger) {
	var cache *redis.Client
	if cfg.RedisAddr != "" {
		cache = redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	}

	hub := api.NewHub(log)
	go hub.Run()

	var sched *scheduler.Scheduler
	if st != nil {
		p := buildPipeline(cfg, st, log)
		tick := func(ctx context.Context) error {
			return runTickFanOut(ctx, p, cfg, time.Now().UTC(), log)
		}
		onTick := func(s scheduler.State) {
			if b, err := marshalTickState(s); err == nil {
				hub.Broadcast(b)
			}
		}
		sched = scheduler.New(cfg.SchedulerInterval, tick, onTick, log)
		go sched.Run(ctx)
	} else {
		log.Warn().Msg("scheduler disabled: no database connection")
	}

	healthTracker := source.NewHealthTracker(cfg.DegradedFailureThreshold, cfg.DownFailureThreshold, cfg.HealthCooldown)
	provider := buildProvider(cfg, healthTracker, log)

	deps := api.Deps{
		Store:    st,
		Provider: provider,
		Health:   healthTracker,
		KillswitchConfig: killswitch.Config{
			MinConfidence:         cfg.MinConfidence,
			MaxDataAge:            cfg.MaxDataAge,
			StabilityThreshold:    cfg.StabilityThreshold,
			CompletenessThreshold: cfg.CompletenessThreshold,
			MaxConflictingSignals: cfg.MaxConflictingSignals,
			NormalWeight:          cfg.NormalWeight,
			DegradedWeightFactor:  cfg.DegradedWeightFactor,
		},
		Override: &killswitch.Override{},
		Cache:    cache,
		Hub:      hub,
		Log:      log,
	}

	router := api.SetupRouter(deps, cfg.AllowedOrigins, cfg.APIAuthToken, cfg.RateLimitRPS, cfg.RateLimitBurst)
	log.Info().Str("port", cfg.HTTPPort).Msg("starting http server")
	if err := router.Run(":" + cfg.HTTPPort); err != nil {
		log.Fatal().Err(err).Msg("http server exited")
	}
}

// runTickFanOut runs one pipeline tick per configured timeframe
// concurrently, bounded by MaxConcurrentTasks, and logs each outcome
// rather than failing the whole batch on one timeframe's error.
func runTickFanOut(ctx context.Context, p *pipeline.Pipeline, cfg config.Config, now time.Time, log zerolog.Logger) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(cfg.MaxConcurrentTasks)

	for _, tf := range cfg.Timeframes {
		tf := tf
		g.Go(func() error {
			out, err := p.Tick(gctx, cfg.Asset, tf, now)
			if err != nil {
				log.Error().Err(err).Str("timeframe", tf).Msg("tick failed")
				return nil
			}
			log.Info().Str("timeframe", tf).Str("state", string(out.State)).Msg("tick complete")
			return nil
		})
	}
	return g.Wait()
}

func buildProvider(cfg config.Config, health *source.HealthTracker, log zerolog.Logger) *source.Provider {
	adapters := []source.Adapter{
		mempoolspace.New(cfg.MempoolSpaceURL, cfg.SourceRequestTimeout, cfg.SourceRateLimitPerSec),
		blockchaininfo.New(cfg.BlockchainInfoURL, cfg.BlockchainInfoAPIKey, cfg.SourceRequestTimeout, cfg.SourceRateLimitPerSec),
		blockcypher.New(cfg.BlockCypherURL, cfg.BlockCypherAPIToken, cfg.SourceRequestTimeout, cfg.SourceRateLimitPerSec),
	}
	return source.NewProvider(adapters, health, log)
}

func buildPipeline(cfg config.Config, st *store.Store, log zerolog.Logger) *pipeline.Pipeline {
	health := source.NewHealthTracker(cfg.DegradedFailureThreshold, cfg.DownFailureThreshold, cfg.HealthCooldown)
	provider := buildProvider(cfg, health, log)

	var tierSource whale.ThresholdSource = whale.FixedThresholds{T: whale.Tiers{
		Large:      cfg.TierLargeBTC,
		Whale:      cfg.TierWhaleBTC,
		UltraWhale: cfg.TierUltraWhaleBTC,
		Leviathan:  cfg.TierLeviathanBTC,
	}}
	detector := whale.NewDetector(tierSource, whale.DefaultExchangeTags())

	return &pipeline.Pipeline{
		Provider:         provider,
		WhaleDetector:    detector,
		SignalThresholds: dsignal.DefaultThresholds(),
		KillswitchConfig: killswitch.Config{
			MinConfidence:         cfg.MinConfidence,
			MaxDataAge:            cfg.MaxDataAge,
			StabilityThreshold:    cfg.StabilityThreshold,
			CompletenessThreshold: cfg.CompletenessThreshold,
			MaxConflictingSignals: cfg.MaxConflictingSignals,
			NormalWeight:          cfg.NormalWeight,
			DegradedWeightFactor:  cfg.DegradedWeightFactor,
		},
		Override: &killswitch.Override{},
		Store:    st,
		Log:      log,
	}
}

// marshalTickState renders scheduler state as JSON for the tick-event
// websocket feed.
func marshalTickState(s scheduler.State) ([]byte, error) {
	return json.Marshal(s)
}

func newLogger(cfg config.Config) zerolog.Logger {
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	if cfg.LogFormat == "console" {
		return zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}).With().Timestamp().Logger()
	}
	return zerolog.New(os.Stdout).With().Timestamp().Logger()
}
