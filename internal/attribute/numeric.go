package attribute

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/pv/attrengine/internal/ts"
)

// numericIndex mirrors NumericAttribute.java's private
// ConcurrentNavigableMap<Timestamp, BigDecimal> numericValues: a
// floor-searchable, insert-if-absent sorted index used purely to drive
// the precision filter, independent of the ValueStore's own recent
// tier. It is guarded by its own mutex rather than reusing the
// ValueStore's, since the original keeps numericValues as a second,
// independently-cleared map.
type numericIndex struct {
	mu      sync.Mutex
	entries []numericEntry
}

type numericEntry struct {
	at  ts.Timestamp
	val decimal.Decimal
}

func newNumericIndex() *numericIndex { return &numericIndex{} }

// floor returns the index of the newest entry with at <= target, or -1
// if every entry is newer than target (there is no floor).
func (n *numericIndex) floor(target ts.Timestamp) int {
	idx := sort.Search(len(n.entries), func(i int) bool {
		return n.entries[i].at.After(target)
	})
	return idx - 1
}

// insertIfAbsent inserts (at, val) only if at is not already present,
// matching ConcurrentNavigableMap.putIfAbsent. Entries are appended
// in-order since callers only ever insert at or after the current
// newest ReadTS.
func (n *numericIndex) insertIfAbsent(at ts.Timestamp, val decimal.Decimal) {
	if len(n.entries) > 0 && n.entries[len(n.entries)-1].at.Equal(at) {
		return
	}
	n.entries = append(n.entries, numericEntry{at: at, val: val})
}

func (n *numericIndex) clear() {
	n.mu.Lock()
	n.entries = nil
	n.mu.Unlock()
}

// decodeNumeric is the Go counterpart of NumericAttribute.addValueInternal.
// It parses raw the way the original's shared DecimalFormat / BigDecimal
// fallback does, then admits the value only if it differs from the
// floor entry by more than a's Precision. Because decimal.Decimal values
// are immutable and cheap to construct per call, there is no shared
// mutable parser state to guard here the way the original's static
// DecimalFormat + ParsePosition pair required (see DESIGN.md's
// discussion of that anti-pattern).
func (a *Attribute) decodeNumeric(readTS ts.Timestamp, raw any) (any, bool, error) {
	dec, err := parseDecimal(raw)
	if err != nil {
		return nil, false, err
	}

	a.numeric.mu.Lock()
	defer a.numeric.mu.Unlock()

	idx := a.numeric.floor(readTS)
	if idx < 0 {
		a.numeric.insertIfAbsent(readTS, dec)
		return dec, true, nil
	}

	prev := a.numeric.entries[idx].val
	diff := dec.Sub(prev).Abs()
	if diff.GreaterThan(a.Precision) {
		a.numeric.insertIfAbsent(readTS, dec)
		return dec, true, nil
	}

	return dec, false, nil
}

// parseDecimal mirrors the original's two-stage parse: first a
// locale-aware attempt (here, tolerant of thousands separators), then a
// strict decimal.NewFromString, matching DECIMAL_FORMAT.parse followed
// by the new BigDecimal(text) fallback on ParseException.
func parseDecimal(raw any) (decimal.Decimal, error) {
	var text string
	switch v := raw.(type) {
	case decimal.Decimal:
		return v, nil
	case string:
		text = v
	case float64, float32, int, int32, int64:
		text = fmt.Sprint(v)
	default:
		text = fmt.Sprint(v)
	}

	text = strings.TrimSpace(text)

	if dec, err := decimal.NewFromString(strings.ReplaceAll(text, ",", "")); err == nil {
		return dec, nil
	}

	dec, err := decimal.NewFromString(text)
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("cannot parse %q as decimal: %w", text, err)
	}
	return dec, nil
}

func equalFor(kind Kind) func(a, b any) bool {
	switch kind {
	case KindNumeric:
		return func(a, b any) bool {
			da, ok1 := a.(decimal.Decimal)
			db, ok2 := b.(decimal.Decimal)
			if !ok1 || !ok2 {
				return false
			}
			return da.Equal(db)
		}
	case KindArray:
		return func(a, b any) bool {
			aa, ok1 := a.([]any)
			ab, ok2 := b.([]any)
			if !ok1 || !ok2 || len(aa) != len(ab) {
				return false
			}
			for i := range aa {
				if fmt.Sprint(aa[i]) != fmt.Sprint(ab[i]) {
					return false
				}
			}
			return true
		}
	default:
		return func(a, b any) bool { return a == b }
	}
}
