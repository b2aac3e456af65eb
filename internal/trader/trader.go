// Package trader is the top-level wiring: it owns the main ledger and the
// per-asset/combined ledgers a set of strategies observes, and drives them
// through one tick at a time against a broker.Broker — identically in
// historical and live mode, per spec.md §5. Grounded on the teacher's
// cmd/server/main.go construct-deps-then-run shape, generalised from an
// HTTP server's lifecycle to a tick loop's.
package trader

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/arduino-trader/internal/audit"
	"github.com/aristath/arduino-trader/internal/broker"
	"github.com/aristath/arduino-trader/internal/components"
	"github.com/aristath/arduino-trader/internal/ecs"
	"github.com/aristath/arduino-trader/internal/indicators"
	"github.com/aristath/arduino-trader/internal/pipeline"
)

// Config is the trader configuration surface of spec.md §6: broker,
// strategies, start, plus the asset universe (the union of every
// strategy's tickers) and back-test-only starting cash/tick size.
type Config struct {
	Tickers         []string
	Strategies      []*pipeline.Strategy
	Broker          broker.Broker
	StartCash       float64
	Start           time.Time
	DTime           time.Duration
	TradingDayStart time.Duration
	TradingDayEnd   time.Duration
}

// Trader drives the main-stage pipeline one tick at a time.
type Trader struct {
	log     zerolog.Logger
	ctx     *pipeline.Context
	audit   *audit.Recorder
	systems []pipeline.System
	tickers []string
	dtime   time.Duration

	mu           sync.Mutex
	lastIngested map[string]time.Time
}

// New wires the main ledger's Cash/Clock singletons, one ledger per
// ticker, one combined ledger per multi-ticker strategy, and returns a
// Trader ready to Tick.
func New(bg context.Context, cfg Config, log zerolog.Logger, rec *audit.Recorder) (*Trader, error) {
	main := ecs.New("main")
	if _, err := ecs.SetSingleton(main, cfg.Start, components.Cash{Cash: cfg.StartCash}); err != nil {
		return nil, fmt.Errorf("trader: seed cash: %w", err)
	}
	if _, err := ecs.SetSingleton(main, cfg.Start, components.Clock{Time: cfg.Start, DTime: cfg.DTime}); err != nil {
		return nil, fmt.Errorf("trader: seed clock: %w", err)
	}

	assets := make(map[string]*ecs.Ledger, len(cfg.Tickers))
	for _, ticker := range cfg.Tickers {
		assets[ticker] = ecs.New(ticker)
	}
	for _, strat := range cfg.Strategies {
		if len(strat.Tickers) > 1 {
			assets[strat.CombinedID()] = ecs.New(strat.CombinedID())
		}
	}

	ctx := &pipeline.Context{
		Main:            main,
		Assets:          assets,
		Broker:          cfg.Broker,
		Strategies:      cfg.Strategies,
		TradingDayStart: cfg.TradingDayStart,
		TradingDayEnd:   cfg.TradingDayEnd,
	}

	return &Trader{
		log:          log.With().Str("component", "trader").Logger(),
		ctx:          ctx,
		audit:        rec,
		systems:      pipeline.MainStage(bg),
		tickers:      cfg.Tickers,
		dtime:        cfg.DTime,
		lastIngested: make(map[string]time.Time),
	}, nil
}

// Context exposes the pipeline context — internal/server reads Main from
// it for the introspection surface.
func (t *Trader) Context() *pipeline.Context { return t.ctx }

// ingestBars pulls every bar in [lastIngested[ticker], until] from the
// broker into ticker's asset ledger as Close/Open/High/Low/Volume columns,
// and advances lastIngested past the last bar pulled so the next call
// never re-ingests it (spec §5: "a strategy in tick t observes every bar
// whose timestamp is <= t, and no later bar").
func (t *Trader) ingestBars(bg context.Context, ticker string, until time.Time) error {
	l := t.ctx.Assets[ticker]

	t.mu.Lock()
	start := t.lastIngested[ticker]
	t.mu.Unlock()

	bars, err := t.ctx.Broker.Bars(bg, ticker, start, until.Add(time.Nanosecond), t.dtime)
	if err != nil {
		return fmt.Errorf("trader: bars for %s: %w", ticker, err)
	}
	for _, bar := range bars {
		e := l.Create(bar.Time)
		l.PutValue(ecs.Bar("Close"), e, bar.Close)
		l.PutValue(ecs.Bar("Open"), e, bar.Open)
		l.PutValue(ecs.Bar("High"), e, bar.High)
		l.PutValue(ecs.Bar("Low"), e, bar.Low)
		l.PutValue(ecs.Bar("Volume"), e, bar.Volume)
	}
	if len(bars) > 0 {
		t.mu.Lock()
		t.lastIngested[ticker] = bars[len(bars)-1].Time.Add(time.Nanosecond)
		t.mu.Unlock()
	}
	return nil
}

// Tick runs one full cycle: ingest new bars for every ticker, bring each
// asset ledger's indicator columns up to date, run the main-stage
// pipeline, then append this tick's new snapshot/fill rows to the audit
// log. This is the single synchronous call both RunHistorical (in a loop)
// and the live mode's main task (on every new-data wakeup) make.
func (t *Trader) Tick(bg context.Context) error {
	clock, _, err := ecs.Singleton[components.Clock](t.ctx.Main)
	if err != nil {
		return err
	}
	now := clock.Time

	for _, ticker := range t.tickers {
		if err := t.ingestBars(bg, ticker, now); err != nil {
			return err
		}
		l := t.ctx.Assets[ticker]
		indicators.EnsureSystems(l)
		if err := l.RunStage("indicators"); err != nil {
			return fmt.Errorf("trader: indicators for %s: %w", ticker, err)
		}
	}

	if err := pipeline.Run(t.systems, t.ctx); err != nil {
		return fmt.Errorf("trader: main stage: %w", err)
	}

	if t.audit != nil {
		if err := t.audit.Run(t.ctx.Main); err != nil {
			return fmt.Errorf("trader: audit: %w", err)
		}
	}
	return nil
}

// RunHistorical is the single-threaded cooperative loop of spec.md §5's
// historical mode: call Tick until the virtual clock reaches stop. All
// three logical tasks (data, trading, main) are synchronous calls within
// one Tick.
func (t *Trader) RunHistorical(bg context.Context, stop time.Time) error {
	for {
		clock, _, err := ecs.Singleton[components.Clock](t.ctx.Main)
		if err != nil {
			return err
		}
		if !clock.Time.Before(stop) {
			return nil
		}
		if err := t.Tick(bg); err != nil {
			return err
		}
	}
}
