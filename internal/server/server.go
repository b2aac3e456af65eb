// Package server is the read-only introspection HTTP surface over the
// running ledger (SPEC_FULL §6.1): GET /healthz, GET /snapshots (tail of
// the audit log), GET /positions (current Position components) and
// GET /drawdown (risk metrics over the audit log's value series). Write
// endpoints are out of scope — the wiring CLI that mutates a ledger is the
// core pipeline, not this surface (spec.md §1).
//
// Grounded on the teacher's internal/server/server.go: chi router, the
// same middleware stack (Recoverer, RequestID, RealIP, a custom logging
// middleware, cors.Handler, Timeout), the same Config/New/Start/Shutdown
// shape, generalised from a multi-module REST API fronting five sqlite
// databases to a single introspection surface fronting one ledger plus the
// audit recorder.
package server

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"

	"github.com/aristath/arduino-trader/internal/audit"
	"github.com/aristath/arduino-trader/internal/broker"
	"github.com/aristath/arduino-trader/internal/components"
	"github.com/aristath/arduino-trader/internal/ecs"
	"github.com/aristath/arduino-trader/pkg/formulas"
)

// Config holds the dependencies the introspection server reads from.
type Config struct {
	Addr         string
	Log          zerolog.Logger
	Main         *ecs.Ledger // the running main ledger; read-only from here
	Audit        *audit.Recorder
	Cache        *broker.DataCache // optional; backs /positions' session range
	SessionStart time.Time
	DevMode      bool
}

// Server is the chi-routed read-only HTTP surface.
type Server struct {
	router       *chi.Mux
	server       *http.Server
	log          zerolog.Logger
	main         *ecs.Ledger
	audit        *audit.Recorder
	cache        *broker.DataCache
	sessionStart time.Time
}

// New builds a Server ready to Start.
func New(cfg Config) *Server {
	s := &Server{
		router:       chi.NewRouter(),
		log:          cfg.Log.With().Str("component", "server").Logger(),
		main:         cfg.Main,
		audit:        cfg.Audit,
		cache:        cfg.Cache,
		sessionStart: cfg.SessionStart,
	}

	s.setupMiddleware(cfg.DevMode)
	s.setupRoutes()

	s.server = &http.Server{
		Addr:         cfg.Addr,
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return s
}

func (s *Server) setupMiddleware(devMode bool) {
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(s.loggingMiddleware)
	s.router.Use(middleware.Timeout(60 * time.Second))
	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))
	if !devMode {
		s.router.Use(middleware.Compress(5))
	}
}

func (s *Server) setupRoutes() {
	s.router.Get("/healthz", s.handleHealth)
	s.router.Get("/snapshots", s.handleSnapshots)
	s.router.Get("/positions", s.handlePositions)
	s.router.Get("/drawdown", s.handleDrawdown)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleSnapshots serves the tail of the audit log, newest-last, the same
// shape a dashboard chart would consume.
func (s *Server) handleSnapshots(w http.ResponseWriter, r *http.Request) {
	if s.audit == nil {
		writeJSON(w, http.StatusOK, []audit.SnapshotRow{})
		return
	}
	rows, err := s.audit.LatestSnapshots(200)
	if err != nil {
		s.log.Error().Err(err).Msg("failed to read snapshots")
		http.Error(w, "failed to read snapshots", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, rows)
}

// positionView is the wire shape for one row of /positions. SessionLow/High
// are omitted when no data cache is wired (e.g. in tests).
type positionView struct {
	Ticker      string   `json:"ticker"`
	Quantity    float64  `json:"quantity"`
	SessionLow  *float64 `json:"session_low,omitempty"`
	SessionHigh *float64 `json:"session_high,omitempty"`
}

// handlePositions reads every nonzero Position component directly off the
// live main ledger. Each ecs.All/ecs.Get call takes the ledger's mutex for
// that call only and the main tick holds no lock across the whole tick, so
// a request served mid-tick can see that tick part-way. When a data cache is wired it
// adds the session's close range per ticker via DataCache.CloseRange.
func (s *Server) handlePositions(w http.ResponseWriter, r *http.Request) {
	if s.main == nil {
		writeJSON(w, http.StatusOK, []positionView{})
		return
	}
	var out []positionView
	for _, e := range ecs.All[components.Position](s.main) {
		pos, ok := ecs.Get[components.Position](s.main, e)
		if !ok || pos.Quantity == 0 {
			continue
		}
		view := positionView{Ticker: pos.Ticker, Quantity: pos.Quantity}
		if s.cache != nil {
			if lo, hi, ok := s.cache.CloseRange(pos.Ticker, s.sessionStart, time.Now()); ok {
				view.SessionLow, view.SessionHigh = &lo, &hi
			}
		}
		out = append(out, view)
	}
	writeJSON(w, http.StatusOK, out)
}

// riskView bundles the audit log's drawdown/volatility read-model, served
// by GET /drawdown.
type riskView struct {
	formulas.DrawdownMetrics
	AnnualizedVolatility *float64 `json:"annualized_volatility,omitempty"`
	UlcerIndex           *float64 `json:"ulcer_index,omitempty"`
	SortinoRatio         *float64 `json:"sortino_ratio,omitempty"`
}

// handleDrawdown reports the audit log's drawdown/volatility/Ulcer Index
// metrics over the portfolio value series, via pkg/formulas.
func (s *Server) handleDrawdown(w http.ResponseWriter, r *http.Request) {
	if s.audit == nil {
		http.Error(w, "audit recorder not configured", http.StatusServiceUnavailable)
		return
	}
	rows, err := s.audit.LatestSnapshots(5000)
	if err != nil {
		s.log.Error().Err(err).Msg("failed to read snapshots for drawdown")
		http.Error(w, "failed to read snapshots", http.StatusInternalServerError)
		return
	}
	values := make([]float64, len(rows))
	for i, row := range rows {
		values[i] = row.Value
	}
	metrics := formulas.CalculateDrawdownMetrics(values)
	if metrics == nil {
		writeJSON(w, http.StatusOK, map[string]string{"status": "insufficient data"})
		return
	}
	view := riskView{DrawdownMetrics: *metrics, AnnualizedVolatility: formulas.CalculateVolatility(values)}
	if ulcerPeriod := len(values); ulcerPeriod > 0 {
		view.UlcerIndex = formulas.CalculateUlcerIndex(values, ulcerPeriod)
	}
	if returns := formulas.CalculateReturns(values); len(returns) > 0 {
		view.SortinoRatio = formulas.CalculateSortinoRatio(returns, 0, 0, len(returns))
	}
	writeJSON(w, http.StatusOK, view)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// Start serves until the listener errors (including on Shutdown, which
// returns http.ErrServerClosed — callers should not treat that as fatal).
func (s *Server) Start() error {
	s.log.Info().Str("addr", s.server.Addr).Msg("starting introspection server")
	return s.server.ListenAndServe()
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info().Msg("shutting down introspection server")
	return s.server.Shutdown(ctx)
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.log.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Dur("duration_ms", time.Since(start).Round(time.Millisecond)).
			Str("request_id", middleware.GetReqID(r.Context())).
			Msg("http request")
	})
}
