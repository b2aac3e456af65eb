// Command trader is the thin end-to-end entrypoint (spec.md §1): it loads
// configuration, constructs a historical broker, wires a fixed set of
// strategies, and drives internal/trader through a back-test window while
// serving the introspection HTTP surface alongside it. BROKER_MODE=live
// exits with a fatal log: no venue client is wired here.
//
// Grounded on the teacher's cmd/server/main.go construct-deps-then-run
// shape: logger, config, database, scheduler, then the domain runtime,
// then the HTTP server in a goroutine, then a signal-driven graceful
// shutdown.
package main

import (
	"context"
	"math/rand"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aristath/arduino-trader/internal/audit"
	"github.com/aristath/arduino-trader/internal/broker"
	"github.com/aristath/arduino-trader/internal/config"
	"github.com/aristath/arduino-trader/internal/database"
	"github.com/aristath/arduino-trader/internal/pipeline"
	"github.com/aristath/arduino-trader/internal/scheduler"
	"github.com/aristath/arduino-trader/internal/server"
	"github.com/aristath/arduino-trader/internal/strategy"
	"github.com/aristath/arduino-trader/internal/trader"
	"github.com/aristath/arduino-trader/pkg/logger"
)

func main() {
	log := logger.New(logger.Config{Level: "info", Pretty: true})
	log.Info().Msg("starting arduino-trader")

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}
	log.Info().Str("level", cfg.LogLevel).Msg("configuration loaded")

	db, err := database.New(cfg.DatabasePath)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open audit database")
	}
	defer db.Close()
	if err := db.Migrate(); err != nil {
		log.Fatal().Err(err).Msg("failed to run migrations")
	}

	rec, err := audit.NewRecorder(db, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize audit recorder")
	}

	sched := scheduler.New(log)
	sched.Start()
	defer sched.Stop()
	if err := sched.AddJob("@daily", pruneAuditJob{rec: rec}); err != nil {
		log.Fatal().Err(err).Msg("failed to register audit pruning job")
	}

	strategies, tickers := buildStrategies()

	bg, cancel := context.WithCancel(context.Background())
	defer cancel()

	var b broker.Broker
	var cache *broker.DataCache
	switch cfg.BrokerMode {
	case "live":
		log.Fatal().Msg("live broker wiring requires a concrete venue client; not configured")
		return
	default:
		cache = broker.NewDataCache()
		// Bar ingestion (CSV/parquet/venue REST) is explicitly out of scope
		// here; seedSyntheticBars stands in with a flat random walk so the
		// back-test has something to replay end to end.
		seedSyntheticBars(cache, []string{"AAPL", "MSFT"}, cfg.BacktestStart, cfg.BacktestStop, cfg.TickInterval)
		b = broker.NewHistoricalBroker(cfg.BacktestStart, cfg.TickInterval, cache, broker.FeeModel{
			VariableTransactionFee: cfg.VariableTransactionFee,
			FeePerShare:            cfg.FeePerShare,
			FixedTransactionFee:    cfg.FixedTransactionFee,
		})
	}

	tr, err := trader.New(bg, trader.Config{
		Tickers:    tickers,
		Strategies: strategies,
		Broker:     b,
		StartCash:  cfg.StartCash,
		Start:      cfg.BacktestStart,
		DTime:      cfg.TickInterval,
	}, log, rec)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to construct trader")
	}

	srv := server.New(server.Config{
		Addr:         cfg.HTTPAddr,
		Log:          log,
		Main:         tr.Context().Main,
		Audit:        rec,
		Cache:        cache,
		SessionStart: cfg.BacktestStart,
		DevMode:      cfg.DevMode,
	})

	go func() {
		if err := srv.Start(); err != nil && err.Error() != "http: Server closed" {
			log.Error().Err(err).Msg("introspection server stopped")
		}
	}()

	runErrCh := make(chan error, 1)
	go func() {
		switch cfg.BrokerMode {
		case "live":
			runErrCh <- tr.RunLive(bg, cfg.TickInterval)
		default:
			runErrCh <- tr.RunHistorical(bg, cfg.BacktestStop)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-quit:
		log.Info().Str("signal", sig.String()).Msg("shutting down")
		cancel()
	case err := <-runErrCh:
		if err != nil {
			log.Error().Err(err).Msg("trader run ended with error")
		} else {
			log.Info().Msg("back-test complete")
		}
		cancel()
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("introspection server forced to shutdown")
	}

	log.Info().Msg("stopped")
}

// buildStrategies returns the fixed strategy set this entrypoint drives.
// A manifest-file loader (spec.md §6's "strategy configuration surface")
// is not implemented; this is the thin wiring cmd/trader owns directly.
func buildStrategies() ([]*pipeline.Strategy, []string) {
	pair := &strategy.PairStrat{
		PairName:   "pair-aapl-msft",
		TickerA:    "AAPL",
		TickerB:    "MSFT",
		Gamma:      1.0,
		Horizon:    20,
		ZThreshold: 2.0,
		BaseQty:    10,
	}
	momentum := &strategy.MomentumStrat{
		StratName:        "momentum-aapl",
		Ticker:           "AAPL",
		Horizon:          14,
		RSIOversold:      30,
		RSIOverbought:    70,
		BollingerLowBand: 0.05,
		BollingerHiBand:  0.95,
		BaseQty:          5,
	}

	strategies := []*pipeline.Strategy{
		{StrategyName: "pair", Tickers: []string{"AAPL", "MSFT"}, Systems: []pipeline.StrategySystem{pair}},
		{StrategyName: "momentum", Tickers: []string{"AAPL"}, Systems: []pipeline.StrategySystem{momentum}},
	}
	return strategies, []string{"AAPL", "MSFT"}
}

// seedSyntheticBars fills cache with a deterministic random walk per ticker
// over [start, stop) at the given step — a placeholder for the venue data
// feed spec.md §1 places out of scope, just enough for cmd/trader to
// exercise the full pipeline against something.
func seedSyntheticBars(cache *broker.DataCache, tickers []string, start, stop time.Time, step time.Duration) {
	rng := rand.New(rand.NewSource(1))
	for _, ticker := range tickers {
		price := 100.0
		for t := start; t.Before(stop); t = t.Add(step) {
			price += rng.NormFloat64()
			if price < 1 {
				price = 1
			}
			cache.Put(ticker, broker.Bar{
				Time: t, Open: price, High: price, Low: price, Close: price, Volume: 1000,
			})
		}
	}
}

// pruneAuditJob deletes audit rows older than 90 days, run once a day by
// internal/scheduler so a long-lived deployment's database stays bounded.
type pruneAuditJob struct {
	rec *audit.Recorder
}

func (j pruneAuditJob) Name() string { return "prune-audit-log" }

func (j pruneAuditJob) Run() error {
	return j.rec.PruneOlderThan(time.Now().AddDate(0, 0, -90))
}
