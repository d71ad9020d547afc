// Package valuestore implements ValueStore, the tiered last/recent/
// persistent attribute history described in SPEC_FULL.md §4.1. It is
// grounded on the teacher's internal/storage.memoryStorage (a
// sync.RWMutex-guarded map) and on AttributeValuesStorage.java, whose
// AtomicReference<AttributeValue<T>> becomes a lock-free
// atomic.Pointer[Value] here and whose ConcurrentNavigableMap becomes a
// RWMutex-guarded, insertion-ordered slice searched with sort.Search —
// Go has no concurrent sorted-map type in the standard library, and
// per-attribute read timestamps are monotone by contract, so an
// append-only slice gives the same O(log n) floor/ceiling lookups a
// skip-list map would.
package valuestore

import (
	"sort"
	"sync"
	"sync/atomic"

	"github.com/pv/attrengine/internal/errs"
	"github.com/pv/attrengine/internal/sink"
	"github.com/pv/attrengine/internal/ts"
)

// Default tier-down thresholds, carried verbatim from
// AttributeValuesStorage.PERSIST_VALUES_THRESHOLD /
// SAVE_TIMESTAMP_THRESHOLD.
const (
	DefaultPersistThreshold uint64 = 1_000_000
	DefaultUpdateThreshold  uint64 = 500_000
)

// EqualFunc reports whether two decoded Raw values are equal under the
// attribute kind's natural equality (decimal.Decimal.Equal for numeric
// attributes, built-in == for bool/string, element-wise comparison of
// fmt.Sprint forms for arrays). It is never asked to compare nils; Store handles the null
// case itself.
type EqualFunc func(a, b any) bool

// FatalHandler is invoked when a persist operation on the eviction path
// fails. Per SPEC_FULL.md §7, this is escalated to a fatal condition
// the Engine must act on (recover and stop), rather than merely logged.
type FatalHandler func(storeName string, err error)

// Store is a single attribute's tiered value history.
type Store struct {
	name             string
	sink             sink.PersistentSink
	codec            RecordCodec
	equal            EqualFunc
	persistThreshold uint64
	updateThreshold  uint64
	onFatal          FatalHandler

	last    atomic.Pointer[Value]
	counter atomic.Uint64

	mu          sync.RWMutex
	recent      []Value
	thresholdTS *ts.Timestamp
}

// Option configures a Store at construction.
type Option func(*Store)

// WithThresholds overrides the default tier-down thresholds.
func WithThresholds(persist, update uint64) Option {
	return func(s *Store) {
		s.persistThreshold = persist
		s.updateThreshold = update
	}
}

// WithFatalHandler registers the callback invoked when a persist on
// Add's eviction path fails. It runs synchronously on the goroutine
// that called Add.
func WithFatalHandler(h FatalHandler) Option {
	return func(s *Store) { s.onFatal = h }
}

// New builds a Store for the attribute identified by name, persisting
// evicted values through snk using codec's string encoding.
func New(name string, snk sink.PersistentSink, codec RecordCodec, equal EqualFunc, opts ...Option) *Store {
	s := &Store{
		name:             name,
		sink:             snk,
		codec:            codec,
		equal:            equal,
		persistThreshold: DefaultPersistThreshold,
		updateThreshold:  DefaultUpdateThreshold,
		onFatal:          func(string, error) {},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Add stores v as the new last value and appends it to the recent tier,
// evicting to the persistent sink when the tier-down thresholds are
// crossed. It returns false without storing anything if v's value
// equals the current last value's (natural equality of the decoded
// Raw), mirroring AttributeValuesStorage.addValue's dedup check. A
// value whose ReadTS equals the newest recent entry's becomes last but
// is not inserted into recent; the counter is incremented all the same
// — see DESIGN.md's Open Question 1.
func (s *Store) Add(v Value) bool {
	last := s.last.Load()
	if last != nil && valuesEqual(s.equal, last.Raw, v.Raw) {
		return false
	}

	s.last.Store(&v)
	counter := s.counter.Add(1)

	s.mu.Lock()
	if n := len(s.recent); n == 0 || !s.recent[n-1].ReadTS.Equal(v.ReadTS) {
		s.recent = append(s.recent, v)
	}
	var toPersist []Value
	switch {
	case counter%s.persistThreshold == 0:
		cut := s.thresholdTS
		next := v.ReadTS
		s.thresholdTS = &next
		if cut != nil {
			idx := sort.Search(len(s.recent), func(i int) bool {
				return !s.recent[i].ReadTS.Before(*cut)
			})
			toPersist = append([]Value(nil), s.recent[:idx]...)
			s.recent = append([]Value(nil), s.recent[idx:]...)
		}
	case counter%s.updateThreshold == 0:
		next := v.ReadTS
		s.thresholdTS = &next
	}
	s.mu.Unlock()

	if len(toPersist) > 0 {
		if err := s.persist(toPersist); err != nil {
			s.onFatal(s.name, errs.ErrPersist)
		}
	}

	return true
}

func valuesEqual(equal EqualFunc, a, b any) bool {
	if a == nil && b == nil {
		return true
	}
	if a == nil || b == nil {
		return false
	}
	return equal(a, b)
}

// GetLast returns the most recently added value, or nil if the store is
// empty. Lock-free, matching AtomicReference<AttributeValue<T>>.get().
func (s *Store) GetLast() *Value {
	p := s.last.Load()
	if p == nil {
		return nil
	}
	cp := *p
	return &cp
}

// GetInMemorySince returns every recent-tier value with ReadTS >= since,
// or a one-element slice holding the last value if recent is empty or
// its newest entry is older than since — matching
// AttributeValuesStorage.getInMemoryValues.
func (s *Store) GetInMemorySince(since ts.Timestamp) []Value {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if len(s.recent) == 0 || s.recent[len(s.recent)-1].ReadTS.Before(since) {
		if last := s.last.Load(); last != nil {
			return []Value{*last}
		}
		return nil
	}

	idx := sort.Search(len(s.recent), func(i int) bool {
		return !s.recent[i].ReadTS.Before(since)
	})
	out := make([]Value, len(s.recent)-idx)
	copy(out, s.recent[idx:])
	return out
}

// Floor returns the newest recent-tier value with ReadTS <= at. If every
// stored value is newer than at, it returns the oldest recent value
// (the original's "assume target is smaller than any stored" fallback).
// If the store has never held a value, Floor returns nil rather than
// dereferencing a missing entry — see DESIGN.md's Open Question 2,
// which deliberately does not preserve inMemValues.firstEntry() being
// called on an empty map.
func (s *Store) Floor(at ts.Timestamp) *Value {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if len(s.recent) == 0 {
		return nil
	}

	idx := sort.Search(len(s.recent), func(i int) bool {
		return s.recent[i].ReadTS.After(at)
	})
	if idx == 0 {
		cp := s.recent[0]
		return &cp
	}
	cp := s.recent[idx-1]
	return &cp
}

// Ceiling returns the oldest recent-tier value with ReadTS >= at, or the
// last value if no such entry exists (the recent tier is empty or every
// entry is older than at), matching
// AttributeValuesStorage.ceilingValue's lastValue fallback.
func (s *Store) Ceiling(at ts.Timestamp) *Value {
	s.mu.RLock()
	defer s.mu.RUnlock()

	idx := sort.Search(len(s.recent), func(i int) bool {
		return !s.recent[i].ReadTS.Before(at)
	})
	if idx == len(s.recent) {
		if last := s.last.Load(); last != nil {
			cp := *last
			return &cp
		}
		return nil
	}
	cp := s.recent[idx]
	return &cp
}

// GetAll returns every persisted value followed by every recent-tier
// value, oldest first. A persistence load failure is logged by the
// caller (GetAll itself returns the error so the Engine can decide how
// to surface it) and falls back to the recent tier alone, matching
// AttributeValuesStorage.getAllValues's StorageException handling.
func (s *Store) GetAll() ([]Value, error) {
	header, rows, err := s.sink.Load(s.name)
	_ = header

	s.mu.RLock()
	recent := make([]Value, len(s.recent))
	copy(recent, s.recent)
	s.mu.RUnlock()

	if err != nil {
		return recent, err
	}

	persisted := make([]Value, 0, len(rows))
	for _, row := range rows {
		v, decErr := s.codec.Decode(row)
		if decErr != nil {
			continue
		}
		persisted = append(persisted, v)
	}

	return append(persisted, recent...), nil
}

// ClearRecent discards the recent tier without persisting it. It is the
// caller's responsibility to ensure this does not race with Add — the
// concurrency contract here mirrors
// AttributeValuesStorage.clearInMemoryValues, which this implements
// without the commented-out "preserve last value" line: the active
// behavior in the original is an unconditional clear, and that is what
// is implemented (DESIGN.md Open Question 3).
func (s *Store) ClearRecent() {
	s.mu.Lock()
	s.recent = nil
	s.mu.Unlock()
}

// PersistRecent flushes the entire recent tier to the sink without
// clearing it, matching persistInMemoryValues.
func (s *Store) PersistRecent() error {
	s.mu.RLock()
	snapshot := make([]Value, len(s.recent))
	copy(snapshot, s.recent)
	s.mu.RUnlock()

	return s.persist(snapshot)
}

// PersistAndClearRecent flushes then discards the recent tier, matching
// persistAndClearInMemoryValues. The snapshot-then-clear is not a
// single atomic step against concurrent Add, by the same contract as
// ClearRecent.
func (s *Store) PersistAndClearRecent() error {
	s.mu.Lock()
	snapshot := s.recent
	s.recent = nil
	s.mu.Unlock()

	return s.persist(snapshot)
}

func (s *Store) persist(values []Value) error {
	if len(values) == 0 {
		return nil
	}
	body := make([][]string, len(values))
	for i, v := range values {
		body[i] = s.codec.Encode(v)
	}
	return s.sink.Save(s.name, s.codec.Header(), body)
}

// Count returns the number of values ever accepted by Add (including
// values with a repeated ReadTS that Add counted but did not insert
// into recent).
func (s *Store) Count() uint64 { return s.counter.Load() }
