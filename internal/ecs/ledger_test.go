package ecs

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type Clock struct {
	Time  time.Time
	DTime time.Duration
}

func TestCreateAssignsMonotonicIDs(t *testing.T) {
	l := New("AAPL")
	base := time.Date(2026, 1, 1, 9, 30, 0, 0, time.UTC)
	e1 := l.Create(base)
	e2 := l.Create(base.Add(time.Minute))
	assert.Less(t, e1, e2)

	ts, ok := Get[TimeStamp](l, e1)
	require.True(t, ok)
	assert.True(t, ts.Time.Equal(base))
}

func TestSingletonDuplicateIsFatal(t *testing.T) {
	l := New("main")
	now := time.Now()
	_, err := SetSingleton(l, now, Clock{Time: now, DTime: time.Minute})
	require.NoError(t, err)

	_, err = SetSingleton(l, now, Clock{Time: now, DTime: time.Minute})
	require.Error(t, err)
	assert.True(t, IsFatal(err))
}

func TestSingletonMissingIsFatal(t *testing.T) {
	l := New("main")
	_, _, err := Singleton[Clock](l)
	require.Error(t, err)
	assert.True(t, IsFatal(err))
}

func TestUpdateSingletonMutatesInPlace(t *testing.T) {
	l := New("main")
	now := time.Now()
	_, err := SetSingleton(l, now, Clock{Time: now, DTime: time.Minute})
	require.NoError(t, err)

	err = UpdateSingleton(l, func(c *Clock) { c.Time = c.Time.Add(c.DTime) })
	require.NoError(t, err)

	c, _, err := Singleton[Clock](l)
	require.NoError(t, err)
	assert.True(t, c.Time.Equal(now.Add(time.Minute)))
}

func TestNewSinceYieldsOnlyUnseenEntities(t *testing.T) {
	l := New("main")
	now := time.Now()

	type Purchase struct{ Ticker string }

	e1 := l.Create(now)
	Attach(l, e1, Purchase{Ticker: "AAPL"})
	e2 := l.Create(now.Add(time.Minute))
	Attach(l, e2, Purchase{Ticker: "MSFT"})

	first := NewSince[Purchase](l, "purchaser")
	assert.Equal(t, []EntityID{e1, e2}, first)

	second := NewSince[Purchase](l, "purchaser")
	assert.Empty(t, second)

	e3 := l.Create(now.Add(2 * time.Minute))
	Attach(l, e3, Purchase{Ticker: "GOOG"})
	third := NewSince[Purchase](l, "purchaser")
	assert.Equal(t, []EntityID{e3}, third)
}

func TestValueColumnsAndSeries(t *testing.T) {
	l := New("AAPL")
	now := time.Now()
	closeKey := Bar("Close")

	var ids []EntityID
	for i, v := range []float64{1, 2, 3, 4, 5} {
		e := l.Create(now.Add(time.Duration(i) * time.Minute))
		l.PutValue(closeKey, e, v)
		ids = append(ids, e)
	}

	assert.Equal(t, ids, l.Series(closeKey))
	assert.Equal(t, []float64{1, 2, 3, 4, 5}, l.SeriesValues(closeKey))

	smaKey := Key{Kind: "SMA", Horizon: 3, Source: closeKey.String()}
	assert.False(t, l.HasKey(smaKey))
	created := l.EnsureKey(smaKey)
	assert.True(t, created)
	assert.True(t, l.HasKey(smaKey))
	assert.False(t, l.EnsureKey(smaKey))
}

func TestJoinRespectsIncludeAndExclude(t *testing.T) {
	l := New("main")
	now := time.Now()

	a := Key{Kind: "A"}
	b := Key{Kind: "B"}

	e1 := l.Create(now)
	l.PutValue(a, e1, 1)
	l.PutValue(b, e1, 1)

	e2 := l.Create(now)
	l.PutValue(a, e2, 1) // no B

	e3 := l.Create(now)
	l.PutValue(a, e3, 1)
	l.PutValue(b, e3, 1)

	got := l.Join([]Key{a}, []Key{b})
	assert.Equal(t, []EntityID{e2}, got)

	got = l.Join([]Key{a, b}, nil)
	assert.Equal(t, []EntityID{e1, e3}, got)
}

func TestKeyString(t *testing.T) {
	assert.Equal(t, "Close", Bar("Close").String())
	assert.Equal(t, "SMA<3,Close>", Key{Kind: "SMA", Horizon: 3, Source: "Close"}.String())
	assert.Equal(t, "LogVal<Close>", Key{Kind: "LogVal", Source: "Close"}.String())
}

func TestIndicatorsStageInsertedAfterMain(t *testing.T) {
	l := New("AAPL")
	l.Stage("main")
	st := l.Stage("indicators")
	assert.Equal(t, "indicators", st.Name)
	assert.Equal(t, []string{"main", "indicators"}, stageNames(l))
}

func TestIndicatorsStageAppendedWithoutMain(t *testing.T) {
	l := New("AAPL")
	l.Stage("indicators")
	assert.Equal(t, []string{"indicators"}, stageNames(l))
}

func stageNames(l *Ledger) []string {
	var names []string
	for _, s := range l.stages {
		names = append(names, s.Name)
	}
	return names
}
