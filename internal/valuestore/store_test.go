package valuestore

import (
	"errors"
	"strconv"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pv/attrengine/internal/attrval"
	"github.com/pv/attrengine/internal/sink"
	"github.com/pv/attrengine/internal/ts"
)

// intCodec is a minimal RecordCodec for ints, used only by these tests.
type intCodec struct{}

func (intCodec) Header() []string { return []string{"read_ts", "value"} }

func (intCodec) Encode(v Value) []string {
	return []string{ts.Format(v.ReadTS), strconv.Itoa(v.Raw.(int))}
}

func (intCodec) Decode(row []string) (Value, error) {
	readTS, err := ts.Parse(row[0])
	if err != nil {
		return Value{}, err
	}
	n, err := strconv.Atoi(row[1])
	if err != nil {
		return Value{}, err
	}
	return Value{ReadTS: readTS, WriteTS: readTS, Raw: n, Quality: attrval.Good}, nil
}

func intEqual(a, b any) bool { return a.(int) == b.(int) }

func newTestStore(snk sink.PersistentSink, opts ...Option) *Store {
	return New("test/attr", snk, intCodec{}, intEqual, opts...)
}

func tsAt(clock *ts.Clock) ts.Timestamp { return clock.Now() }

func TestStore_AddDedupsConsecutiveEqualValues(t *testing.T) {
	s := newTestStore(sink.NewMemory())
	clock := &ts.Clock{}

	inserted := s.Add(Value{ReadTS: tsAt(clock), Raw: 1})
	assert.True(t, inserted)

	inserted = s.Add(Value{ReadTS: tsAt(clock), Raw: 1})
	assert.False(t, inserted, "equal-valued reading should be deduped against last")

	inserted = s.Add(Value{ReadTS: tsAt(clock), Raw: 2})
	assert.True(t, inserted)
}

func TestStore_GetLast(t *testing.T) {
	s := newTestStore(sink.NewMemory())
	assert.Nil(t, s.GetLast(), "empty store has no last value")

	clock := &ts.Clock{}
	s.Add(Value{ReadTS: tsAt(clock), Raw: 7})
	last := s.GetLast()
	require.NotNil(t, last)
	assert.Equal(t, 7, last.Raw)
}

func TestStore_Floor(t *testing.T) {
	s := newTestStore(sink.NewMemory())
	assert.Nil(t, s.Floor(ts.Zero), "Floor on a never-populated store returns nil, not a crash")

	clock := &ts.Clock{}
	t1 := tsAt(clock)
	s.Add(Value{ReadTS: t1, Raw: 1})
	t2 := tsAt(clock)
	s.Add(Value{ReadTS: t2, Raw: 2})
	t3 := tsAt(clock)
	s.Add(Value{ReadTS: t3, Raw: 3})

	f := s.Floor(t2)
	require.NotNil(t, f)
	assert.Equal(t, 2, f.Raw)

	before := s.Floor(ts.Zero)
	require.NotNil(t, before)
	assert.Equal(t, 1, before.Raw, "a target older than every entry falls back to the oldest entry")
}

func TestStore_Ceiling(t *testing.T) {
	s := newTestStore(sink.NewMemory())
	assert.Nil(t, s.Ceiling(ts.Zero), "empty store has no ceiling and no last value to fall back to")

	clock := &ts.Clock{}
	t1 := tsAt(clock)
	s.Add(Value{ReadTS: t1, Raw: 1})
	t2 := tsAt(clock)
	s.Add(Value{ReadTS: t2, Raw: 2})

	c := s.Ceiling(t1)
	require.NotNil(t, c)
	assert.Equal(t, 1, c.Raw)

	future := tsAt(clock)
	after := s.Ceiling(future)
	require.NotNil(t, after)
	assert.Equal(t, 2, after.Raw, "a target newer than every entry falls back to the last value")
}

func TestStore_GetInMemorySince(t *testing.T) {
	s := newTestStore(sink.NewMemory())
	clock := &ts.Clock{}

	var marks []ts.Timestamp
	for i := 1; i <= 5; i++ {
		at := tsAt(clock)
		marks = append(marks, at)
		s.Add(Value{ReadTS: at, Raw: i})
	}

	since := s.GetInMemorySince(marks[2])
	require.Len(t, since, 3)
	assert.Equal(t, 3, since[0].Raw)
	assert.Equal(t, 5, since[len(since)-1].Raw)
}

func TestStore_ClearRecentIsUnconditional(t *testing.T) {
	s := newTestStore(sink.NewMemory())
	clock := &ts.Clock{}
	s.Add(Value{ReadTS: tsAt(clock), Raw: 1})

	s.ClearRecent()

	assert.Nil(t, s.Floor(ts.Zero), "ClearRecent discards recent unconditionally, it does not preserve last")
	since := s.GetInMemorySince(ts.Zero)
	require.Len(t, since, 1, "with recent empty, GetInMemorySince falls back to the last value")
	assert.Equal(t, 1, since[0].Raw)
	assert.NotNil(t, s.GetLast(), "GetLast is unaffected by ClearRecent, it reads the separate last-value slot")
}

func TestStore_PersistAndClearRecent(t *testing.T) {
	snk := sink.NewMemory()
	s := newTestStore(snk)
	clock := &ts.Clock{}
	s.Add(Value{ReadTS: tsAt(clock), Raw: 1})
	s.Add(Value{ReadTS: tsAt(clock), Raw: 2})

	require.NoError(t, s.PersistAndClearRecent())
	assert.Nil(t, s.Floor(ts.Zero))
	since := s.GetInMemorySince(ts.Zero)
	require.Len(t, since, 1)
	assert.Equal(t, 2, since[0].Raw)

	all, err := s.GetAll()
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, 1, all[0].Raw)
	assert.Equal(t, 2, all[1].Raw)
}

func TestStore_TierDownPersistsAcrossThreshold(t *testing.T) {
	snk := sink.NewMemory()
	s := newTestStore(snk, WithThresholds(4, 2))
	clock := &ts.Clock{}

	for i := 1; i <= 6; i++ {
		s.Add(Value{ReadTS: tsAt(clock), Raw: i})
	}

	all, err := s.GetAll()
	require.NoError(t, err)
	assert.Len(t, all, 6, "every accepted value is recoverable across the persisted+recent split")
	assert.EqualValues(t, 6, s.Count())
}

func TestStore_FatalHandlerInvokedOnPersistFailure(t *testing.T) {
	var mu sync.Mutex
	var gotName string
	s := newTestStore(failingSink{}, WithThresholds(2, 1), WithFatalHandler(func(name string, err error) {
		mu.Lock()
		gotName = name
		mu.Unlock()
	}))
	clock := &ts.Clock{}

	s.Add(Value{ReadTS: tsAt(clock), Raw: 1})
	s.Add(Value{ReadTS: tsAt(clock), Raw: 2})
	s.Add(Value{ReadTS: tsAt(clock), Raw: 3})
	s.Add(Value{ReadTS: tsAt(clock), Raw: 4})

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, "test/attr", gotName)
}

type failingSink struct{}

func (failingSink) Save(name string, header []string, body [][]string) error {
	return errors.New("sink: forced save failure")
}
func (failingSink) Load(name string) ([]string, [][]string, error) { return nil, nil, nil }
func (failingSink) Close() error                                   { return nil }

func TestStore_ConcurrentAdd(t *testing.T) {
	s := newTestStore(sink.NewMemory())
	clock := &ts.Clock{}

	const goroutines = 20
	const perGoroutine = 50

	var wg sync.WaitGroup
	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func(base int) {
			defer wg.Done()
			for j := 0; j < perGoroutine; j++ {
				s.Add(Value{ReadTS: tsAt(clock), Raw: base*perGoroutine + j})
			}
		}(i)
	}
	wg.Wait()

	assert.EqualValues(t, goroutines*perGoroutine, s.Count())
}
