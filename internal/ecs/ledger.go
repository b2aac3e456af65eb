// Package ecs implements the entity/component ledger core: a typed,
// column-oriented store keyed by opaque entity identifiers, with
// stage-ordered systems, per-(system,component) change tracking, and join
// queries over columns.
package ecs

import (
	"fmt"
	"reflect"
	"sync"
	"time"

	"github.com/google/uuid"
)

// EntityID is an opaque identifier, unique within one ledger, assigned
// monotonically on creation. The zero value never denotes a real entity.
type EntityID uint64

// TimeStamp is attached to every entity created through Ledger.Create.
type TimeStamp struct {
	Time time.Time
}

type markKey struct {
	system string
	typ    reflect.Type
}

type valueMarkKey struct {
	system string
	key    Key
}

// Ledger is a single entity/component store: either a per-asset ledger
// (bars + indicators) or the main ledger (portfolio, orders, strategies).
// The mutex guards each individual ledger operation (Create, Attach, Get,
// PutValue, ...) for that call only; the main task, like the data/trading
// tasks, takes it per operation. A tick is not one critical section, so a
// concurrent reader can observe a tick part-way through.
type Ledger struct {
	mu sync.Mutex

	id         string
	instanceID string
	nextID     EntityID

	typed      map[reflect.Type]any // boxes *Store[T] for bookkeeping/order-lifecycle components
	singletons map[reflect.Type]EntityID
	marks      map[markKey]EntityID

	values     map[Key]*Store[float64] // scalar bar/indicator columns
	valueMarks map[valueMarkKey]EntityID

	stages []*Stage

	newData chan struct{}
}

// New creates an empty ledger identified by id (a ticker, a combined
// ticker join, or "main").
func New(id string) *Ledger {
	return &Ledger{
		id:         id,
		instanceID: uuid.NewString(),
		typed:      make(map[reflect.Type]any),
		singletons: make(map[reflect.Type]EntityID),
		marks:      make(map[markKey]EntityID),
		values:     make(map[Key]*Store[float64]),
		valueMarks: make(map[valueMarkKey]EntityID),
		newData:    make(chan struct{}, 1),
	}
}

// ID returns the ledger's identifier.
func (l *Ledger) ID() string { return l.id }

// InstanceID returns a UUID unique to this in-memory ledger instance,
// distinct across restarts even for two ledgers sharing the same ID — used
// by internal/audit to tag which run a recorded row belongs to, since the
// ledger itself carries no cross-restart state (spec §1 Non-goals).
func (l *Ledger) InstanceID() string { return l.instanceID }

// NewData returns the level-triggered new-data event channel (spec §5): a
// receive succeeds once per batch of mutations signalled since the last
// receive.
func (l *Ledger) NewData() <-chan struct{} { return l.newData }

func (l *Ledger) notifyLocked() {
	select {
	case l.newData <- struct{}{}:
	default:
	}
}

func (l *Ledger) createLocked(ts time.Time) EntityID {
	l.nextID++
	e := l.nextID
	storeForLocked[TimeStamp](l).set(e, TimeStamp{Time: ts})
	return e
}

// Create assigns a new entity and attaches its TimeStamp. Thread-safe: the
// data and trading tasks of spec §5 call this concurrently with the main
// task's tick as long as they don't hold the lock across a suspension
// point.
func (l *Ledger) Create(ts time.Time) EntityID {
	l.mu.Lock()
	defer l.mu.Unlock()
	e := l.createLocked(ts)
	l.notifyLocked()
	return e
}

func typeOf[T any]() reflect.Type {
	return reflect.TypeOf((*T)(nil)).Elem()
}

func storeForLocked[T any](l *Ledger) *Store[T] {
	t := typeOf[T]()
	if s, ok := l.typed[t]; ok {
		return s.(*Store[T])
	}
	s := newStore[T]()
	l.typed[t] = s
	return s
}

// Attach records component value v of type T on entity e. Safe to call
// concurrently with reads/writes of other component types.
func Attach[T any](l *Ledger, e EntityID, v T) {
	l.mu.Lock()
	defer l.mu.Unlock()
	storeForLocked[T](l).set(e, v)
	l.notifyLocked()
}

// Get returns entity e's component of type T, if any.
func Get[T any](l *Ledger, e EntityID) (T, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return storeForLocked[T](l).get(e)
}

// Has reports whether entity e bears a component of type T.
func Has[T any](l *Ledger, e EntityID) bool {
	_, ok := Get[T](l, e)
	return ok
}

// All returns every entity bearing a component of type T, in insertion
// order.
func All[T any](l *Ledger) []EntityID {
	l.mu.Lock()
	defer l.mu.Unlock()
	s := storeForLocked[T](l)
	out := make([]EntityID, len(s.order))
	copy(out, s.order)
	return out
}

// Count returns the population of component type T.
func Count[T any](l *Ledger) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return storeForLocked[T](l).len()
}

// Remove deletes entity e's component of type T, if present.
func Remove[T any](l *Ledger, e EntityID) {
	l.mu.Lock()
	defer l.mu.Unlock()
	storeForLocked[T](l).delete(e)
}

// Update reads entity e's component of type T, applies mutate, and writes
// the result back. Fails silently (no-op) if e bears no such component —
// callers that need existence should check Has first.
func Update[T any](l *Ledger, e EntityID, mutate func(*T)) {
	l.mu.Lock()
	defer l.mu.Unlock()
	s := storeForLocked[T](l)
	v, ok := s.get(e)
	if !ok {
		return
	}
	mutate(&v)
	s.set(e, v)
}

// SetSingleton creates a new entity bearing v as its sole component, and
// registers it as the singleton of type T. Returns a *FatalError if a
// singleton of type T already exists (spec §4.1 failure semantics).
func SetSingleton[T any](l *Ledger, ts time.Time, v T) (EntityID, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	t := typeOf[T]()
	if _, ok := l.singletons[t]; ok {
		return 0, fatal("SetSingleton", fmt.Errorf("duplicate singleton %s", t))
	}
	e := l.createLocked(ts)
	storeForLocked[T](l).set(e, v)
	l.singletons[t] = e
	l.notifyLocked()
	return e, nil
}

// Singleton returns the sole component of type T. Returns a *FatalError if
// none exists (spec §4.1 failure semantics).
func Singleton[T any](l *Ledger) (T, EntityID, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	var zero T
	t := typeOf[T]()
	e, ok := l.singletons[t]
	if !ok {
		return zero, 0, fatal("Singleton", fmt.Errorf("missing singleton %s", t))
	}
	v, _ := storeForLocked[T](l).get(e)
	return v, e, nil
}

// UpdateSingleton mutates the singleton component of type T in place.
// Cash, PurchasePower and Clock are updated through it; Position, which is
// one entity per ticker rather than a singleton, is updated with Update.
func UpdateSingleton[T any](l *Ledger, mutate func(*T)) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	t := typeOf[T]()
	e, ok := l.singletons[t]
	if !ok {
		return fatal("UpdateSingleton", fmt.Errorf("missing singleton %s", t))
	}
	s := storeForLocked[T](l)
	v, _ := s.get(e)
	mutate(&v)
	s.set(e, v)
	return nil
}

// NewSince yields the entities added to component type T since the
// previous call for this (system, T) pair — the sole mechanism by which
// systems observe incremental work (spec §3).
func NewSince[T any](l *Ledger, system string) []EntityID {
	l.mu.Lock()
	defer l.mu.Unlock()
	t := typeOf[T]()
	key := markKey{system: system, typ: t}
	s := storeForLocked[T](l)
	hwm := l.marks[key]
	var out []EntityID
	for _, e := range s.order {
		if e > hwm {
			out = append(out, e)
		}
	}
	if len(s.order) > 0 {
		l.marks[key] = s.order[len(s.order)-1]
	}
	return out
}

// ResetMark clears the (system, T) high-water mark, so the next NewSince
// call returns the whole column.
func ResetMark[T any](l *Ledger, system string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.marks, markKey{system: system, typ: typeOf[T]()})
}
