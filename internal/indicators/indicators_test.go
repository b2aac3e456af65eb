package indicators

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/arduino-trader/internal/ecs"
)

func putBars(l *ecs.Ledger, closes []float64) []ecs.EntityID {
	ids := make([]ecs.EntityID, len(closes))
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for i, c := range closes {
		e := l.Create(base.Add(time.Duration(i) * 24 * time.Hour))
		l.PutValue(ecs.Bar("Close"), e, c)
		ids[i] = e
	}
	return ids
}

func run(l *ecs.Ledger, times int) {
	for i := 0; i < times; i++ {
		EnsureSystems(l)
		_ = l.RunStage("indicators")
	}
}

func TestSolverReachesFixedPointAndWiresSMA(t *testing.T) {
	l := ecs.New("TEST")
	close := ecs.Bar("Close")
	sma3 := SMA(3, close)
	l.EnsureKey(sma3)

	ids := putBars(l, []float64{1, 2, 3, 4, 5})
	run(l, 1)

	_, ok := l.Value(sma3, ids[0])
	assert.False(t, ok, "first bar has no 3-bar window yet")
	_, ok = l.Value(sma3, ids[1])
	assert.False(t, ok)

	v, ok := l.Value(sma3, ids[2])
	require.True(t, ok)
	assert.InDelta(t, 2.0, v, 1e-9)

	v, ok = l.Value(sma3, ids[3])
	require.True(t, ok)
	assert.InDelta(t, 3.0, v, 1e-9)

	v, ok = l.Value(sma3, ids[4])
	require.True(t, ok)
	assert.InDelta(t, 4.0, v, 1e-9)
}

func TestSolverInstallsRSIPrerequisiteChain(t *testing.T) {
	l := ecs.New("TEST")
	close := ecs.Bar("Close")
	rsi := RSI(14, close)
	l.EnsureKey(rsi)

	EnsureSystems(l)

	diff := Difference(close)
	upd := UpDown(diff)
	ema := EMA(14, upd)
	assert.True(t, l.HasKey(diff))
	assert.True(t, l.HasKey(upd))
	assert.True(t, l.HasKey(ema))
}

func TestBollingerAboveMidpointAfterRiseBelowAfterFall(t *testing.T) {
	l := ecs.New("TEST")
	close := ecs.Bar("Close")
	boll := Bollinger(3, close)
	l.EnsureKey(boll)

	ids := putBars(l, []float64{10, 10, 10, 11, 9})
	run(l, 1)

	v, ok := l.Value(boll, ids[3])
	require.True(t, ok)
	assert.Greater(t, v, 0.5)

	v, ok = l.Value(boll, ids[4])
	require.True(t, ok)
	assert.Less(t, v, 0.5)
}

func TestEMASeedsFromSMAThenRecurses(t *testing.T) {
	l := ecs.New("TEST")
	close := ecs.Bar("Close")
	ema3 := EMA(3, close)
	l.EnsureKey(ema3)

	ids := putBars(l, []float64{1, 2, 3, 4, 5})
	run(l, 1)

	_, ok := l.Value(ema3, ids[0])
	assert.False(t, ok)

	v, ok := l.Value(ema3, ids[2])
	require.True(t, ok)
	assert.InDelta(t, 2.0, v, 1e-9) // seeded with SMA(3) of [1,2,3]

	v4, ok := l.Value(ema3, ids[3])
	require.True(t, ok)
	alpha := 2.0 / 4.0
	assert.InDelta(t, alpha*4+(1-alpha)*2.0, v4, 1e-9)
}

func TestSharpeUndefinedWhenFlat(t *testing.T) {
	l := ecs.New("TEST")
	close := ecs.Bar("Close")
	sharpe := Sharpe(3, close)
	l.EnsureKey(sharpe)

	ids := putBars(l, []float64{5, 5, 5, 5})
	run(l, 1)

	_, ok := l.Value(sharpe, ids[2])
	assert.False(t, ok, "zero stddev window yields no value")
}
