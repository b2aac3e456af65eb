package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/arduino-trader/internal/audit"
	"github.com/aristath/arduino-trader/internal/broker"
	"github.com/aristath/arduino-trader/internal/components"
	"github.com/aristath/arduino-trader/internal/database"
	"github.com/aristath/arduino-trader/internal/ecs"
	"github.com/aristath/arduino-trader/pkg/formulas"
)

func TestHealthzReportsOK(t *testing.T) {
	s := New(Config{Addr: ":0", Log: zerolog.Nop()})

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "ok", body["status"])
}

func TestPositionsReflectsLiveLedgerExcludingZeroQty(t *testing.T) {
	main := ecs.New("main")
	now := time.Now()

	e1 := main.Create(now)
	ecs.Attach(main, e1, components.Position{Ticker: "AAPL", Quantity: 10})
	e2 := main.Create(now)
	ecs.Attach(main, e2, components.Position{Ticker: "MSFT", Quantity: 0})

	s := New(Config{Addr: ":0", Log: zerolog.Nop(), Main: main})

	req := httptest.NewRequest(http.MethodGet, "/positions", nil)
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var positions []positionView
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &positions))
	require.Len(t, positions, 1)
	assert.Equal(t, "AAPL", positions[0].Ticker)
}

func TestPositionsIncludesSessionRangeWhenCacheWired(t *testing.T) {
	main := ecs.New("main")
	now := time.Now()
	e := main.Create(now)
	ecs.Attach(main, e, components.Position{Ticker: "AAPL", Quantity: 5})

	start := now.Add(-time.Hour)
	cache := broker.NewDataCache()
	cache.Put("AAPL", broker.Bar{Time: start, Close: 100})
	cache.Put("AAPL", broker.Bar{Time: start.Add(10 * time.Minute), Close: 90})
	cache.Put("AAPL", broker.Bar{Time: start.Add(20 * time.Minute), Close: 110})

	s := New(Config{Addr: ":0", Log: zerolog.Nop(), Main: main, Cache: cache, SessionStart: start})

	req := httptest.NewRequest(http.MethodGet, "/positions", nil)
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var positions []positionView
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &positions))
	require.Len(t, positions, 1)
	require.NotNil(t, positions[0].SessionLow)
	require.NotNil(t, positions[0].SessionHigh)
	assert.InDelta(t, 90, *positions[0].SessionLow, 1e-9)
	assert.InDelta(t, 110, *positions[0].SessionHigh, 1e-9)
}

func TestDrawdownReportsMetricsFromAuditLog(t *testing.T) {
	db, err := database.New(filepath.Join(t.TempDir(), "audit.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	rec, err := audit.NewRecorder(db, zerolog.Nop())
	require.NoError(t, err)

	main := ecs.New("main")
	now := time.Now()
	for i, v := range []float64{100, 110, 90, 95} {
		e := main.Create(now.Add(time.Duration(i) * time.Minute))
		ecs.Attach(main, e, components.PortfolioSnapshot{Time: now.Add(time.Duration(i) * time.Minute), Value: v, Cash: v})
	}
	require.NoError(t, rec.Run(main))

	s := New(Config{Addr: ":0", Log: zerolog.Nop(), Audit: rec})

	req := httptest.NewRequest(http.MethodGet, "/drawdown", nil)
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	var metrics formulas.DrawdownMetrics
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &metrics))
	assert.InDelta(t, (110.0-90.0)/110.0, metrics.MaxDrawdown, 1e-9)
}
