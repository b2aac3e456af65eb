package ecs

// This file implements the scalar-valued column side of the ledger: bars
// and derived indicators, addressed by Key rather than Go type, per
// SPEC_FULL.md §9's "tagged-variant component kinds" note. Every such column is
// numeric (float64), so the "unregistered component is registered lazily
// if its element type is numeric" failure-semantics branch of spec §4.1 is
// unconditional here — the non-numeric-fatal branch only applies to the
// typed side (ledger.go), where it is structurally impossible in Go: every
// typed component is a concrete compile-time type, not a dynamically
// requested one.

func (l *Ledger) ensureKeyLocked(key Key) *Store[float64] {
	s, ok := l.values[key]
	if !ok {
		s = newStore[float64]()
		l.values[key] = s
	}
	return s
}

// EnsureKey registers an empty column for key if none exists yet, and
// reports whether it was newly created. This is how the indicator solver
// (internal/indicators) makes a prerequisite component "known" to the
// ledger so a later fixed-point pass can discover its own prerequisites.
func (l *Ledger) EnsureKey(key Key) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	_, existed := l.values[key]
	l.ensureKeyLocked(key)
	return !existed
}

// PutValue records v for key at entity e, registering the column if
// necessary.
func (l *Ledger) PutValue(key Key, e EntityID, v float64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.ensureKeyLocked(key).set(e, v)
	l.notifyLocked()
}

// Value returns the value of key at entity e, if any.
func (l *Ledger) Value(key Key, e EntityID) (float64, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	s, ok := l.values[key]
	if !ok {
		return 0, false
	}
	return s.get(e)
}

// HasKey reports whether column key is registered (not necessarily
// populated for any entity).
func (l *Ledger) HasKey(key Key) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	_, ok := l.values[key]
	return ok
}

// Keys returns every scalar column currently known to the ledger. The
// indicator solver iterates this set each fixed-point pass.
func (l *Ledger) Keys() []Key {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]Key, 0, len(l.values))
	for k := range l.values {
		out = append(out, k)
	}
	return out
}

// Series returns the entities bearing key, in insertion order.
func (l *Ledger) Series(key Key) []EntityID {
	l.mu.Lock()
	defer l.mu.Unlock()
	s, ok := l.values[key]
	if !ok {
		return nil
	}
	out := make([]EntityID, len(s.order))
	copy(out, s.order)
	return out
}

// SeriesValues returns key's values aligned with Series(key)'s order.
func (l *Ledger) SeriesValues(key Key) []float64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	s, ok := l.values[key]
	if !ok {
		return nil
	}
	out := make([]float64, len(s.order))
	for i, e := range s.order {
		out[i] = s.data[e]
	}
	return out
}

// NewValuesSince yields the entities added to key since the previous call
// for this (system, key) pair.
func (l *Ledger) NewValuesSince(system string, key Key) []EntityID {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.newValuesSinceLocked(system, key)
}

func (l *Ledger) newValuesSinceLocked(system string, key Key) []EntityID {
	s, ok := l.values[key]
	if !ok {
		return nil
	}
	mk := valueMarkKey{system: system, key: key}
	hwm := l.valueMarks[mk]
	var out []EntityID
	for _, e := range s.order {
		if e > hwm {
			out = append(out, e)
		}
	}
	if len(s.order) > 0 {
		l.valueMarks[mk] = s.order[len(s.order)-1]
	}
	return out
}

// NewValuesSinceMulti finds the smallest of keys and yields the entities
// added to it since the previous call for (system, that key) — spec §3's
// "new_entities yields the entities added to the smallest requested
// component of that system".
func (l *Ledger) NewValuesSinceMulti(system string, keys ...Key) []EntityID {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(keys) == 0 {
		return nil
	}
	best := keys[0]
	bestLen := -1
	for _, k := range keys {
		n := 0
		if s, ok := l.values[k]; ok {
			n = s.len()
		}
		if bestLen == -1 || n < bestLen {
			bestLen = n
			best = k
		}
	}
	return l.newValuesSinceLocked(system, best)
}

// ResetValueMark moves the (system, key) high-water mark to the column's
// current last entity, so the next NewValuesSince call yields only entities
// added after this call. Used by strategies' ResetDayMarks at a day close.
func (l *Ledger) ResetValueMark(system string, key Key) {
	l.mu.Lock()
	defer l.mu.Unlock()
	mk := valueMarkKey{system: system, key: key}
	s, ok := l.values[key]
	if !ok || len(s.order) == 0 {
		delete(l.valueMarks, mk)
		return
	}
	l.valueMarks[mk] = s.order[len(s.order)-1]
}

// Join returns every entity bearing all of include and none of exclude,
// with cost proportional to the smallest participating column (spec §3
// entity query).
func (l *Ledger) Join(include []Key, exclude []Key) []EntityID {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(include) == 0 {
		return nil
	}
	var smallest *Store[float64]
	for _, k := range include {
		s, ok := l.values[k]
		if !ok {
			return nil
		}
		if smallest == nil || s.len() < smallest.len() {
			smallest = s
		}
	}
	var out []EntityID
outer:
	for _, e := range smallest.order {
		for _, k := range include {
			if _, ok := l.values[k].get(e); !ok {
				continue outer
			}
		}
		for _, k := range exclude {
			if s, ok := l.values[k]; ok {
				if _, ok2 := s.get(e); ok2 {
					continue outer
				}
			}
		}
		out = append(out, e)
	}
	return out
}
