package broker

import (
	"sort"
	"sync"
	"time"

	"gonum.org/v1/gonum/floats"
)

// DataCache holds the historical bar series the replay driver serves prices
// and order fills from, one sorted slice per ticker.
type DataCache struct {
	mu   sync.RWMutex
	bars map[string][]Bar
}

// NewDataCache returns an empty cache.
func NewDataCache() *DataCache {
	return &DataCache{bars: make(map[string][]Bar)}
}

// Put appends a bar to ticker's series, keeping it sorted by Time. Callers
// normally load bars in time order, so this is an O(1) append in the common
// case and falls back to a sorted insert otherwise.
func (c *DataCache) Put(ticker string, b Bar) {
	c.mu.Lock()
	defer c.mu.Unlock()
	s := c.bars[ticker]
	if len(s) == 0 || !b.Time.Before(s[len(s)-1].Time) {
		c.bars[ticker] = append(s, b)
		return
	}
	idx := sort.Search(len(s), func(i int) bool { return !s[i].Time.Before(b.Time) })
	s = append(s, Bar{})
	copy(s[idx+1:], s[idx:])
	s[idx] = b
	c.bars[ticker] = s
}

// BarAt returns the first bar for ticker whose Time is >= t — the "next
// price slot" the historical broker resolves fills against.
func (c *DataCache) BarAt(ticker string, t time.Time) (Bar, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	s := c.bars[ticker]
	idx := sort.Search(len(s), func(i int) bool { return !s[i].Time.Before(t) })
	if idx >= len(s) {
		return Bar{}, false
	}
	return s[idx], true
}

// LastBarAt returns the last bar for ticker whose Time is <= t.
func (c *DataCache) LastBarAt(ticker string, t time.Time) (Bar, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	s := c.bars[ticker]
	idx := sort.Search(len(s), func(i int) bool { return s[i].Time.After(t) })
	if idx == 0 {
		return Bar{}, false
	}
	return s[idx-1], true
}

// Range returns the bars for ticker in [start, stop).
func (c *DataCache) Range(ticker string, start, stop time.Time) []Bar {
	c.mu.RLock()
	defer c.mu.RUnlock()
	s := c.bars[ticker]
	lo := sort.Search(len(s), func(i int) bool { return !s[i].Time.Before(start) })
	hi := sort.Search(len(s), func(i int) bool { return !s[i].Time.Before(stop) })
	if lo >= hi {
		return nil
	}
	out := make([]Bar, hi-lo)
	copy(out, s[lo:hi])
	return out
}

// CloseRange returns the low/high close seen for ticker within [start, stop),
// used by the introspection server's position read-model to report a
// session range alongside the last price.
func (c *DataCache) CloseRange(ticker string, start, stop time.Time) (lo, hi float64, ok bool) {
	bars := c.Range(ticker, start, stop)
	if len(bars) == 0 {
		return 0, 0, false
	}
	closes := make([]float64, len(bars))
	for i, b := range bars {
		closes[i] = b.Close
	}
	return floats.Min(closes), floats.Max(closes), true
}
