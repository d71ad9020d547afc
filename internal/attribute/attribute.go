// Package attribute implements the tagged-variant Attribute type that
// replaces the Java original's generic Attribute<T>/NumericAttribute<T>
// class hierarchy (see SPEC_FULL.md Design Note 1): a single Kind enum
// dispatches decode and precision-filter behavior instead of
// subclassing. It is grounded on
// _examples/original_source/.../data/attribute/NumericAttribute.java for
// the numeric precision filter and on the teacher's
// internal/poller.BasePoller[T,U] for the generic scheduling shape that
// the Engine builds on top of this package.
package attribute

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/pv/attrengine/internal/attrval"
	"github.com/pv/attrengine/internal/errs"
	"github.com/pv/attrengine/internal/sink"
	"github.com/pv/attrengine/internal/ts"
	"github.com/pv/attrengine/internal/valuestore"
)

// Kind tags which decode and equality rules an Attribute uses.
type Kind int

const (
	KindNumeric Kind = iota
	KindBoolean
	KindString
	KindArray
)

func (k Kind) String() string {
	switch k {
	case KindNumeric:
		return "numeric"
	case KindBoolean:
		return "boolean"
	case KindString:
		return "string"
	case KindArray:
		return "array"
	default:
		return "unknown"
	}
}

// Interpolation selects how ValueAt fills gaps between stored samples.
type Interpolation int

const (
	InterpolationLast Interpolation = iota
	InterpolationNearest
	InterpolationLinear
)

// Method is how the engine obtains new readings for an attribute.
type Method int

const (
	MethodPoll Method = iota
	MethodEvent
)

// Attribute is one monitored device attribute: its identity, its
// scheduling and decode policy, and the ValueStore holding its history.
type Attribute struct {
	ID            int
	DeviceName    string
	AttributeName string
	Alias         string
	FullName      string
	Kind          Kind
	Interpolation Interpolation
	Method        Method
	EventType     string
	Delay         time.Duration
	Precision     decimal.Decimal

	store *valuestore.Store

	numeric *numericIndex // nil unless Kind == KindNumeric
}

// New builds an Attribute and its backing ValueStore. name is the
// persistent-sink record name (conventionally "device/attribute").
// persistThreshold and updateThreshold of zero fall back to the
// ValueStore package defaults.
func New(id int, deviceName, attributeName, alias string, kind Kind, interp Interpolation, method Method, eventType string, delay time.Duration, precision decimal.Decimal, snk sink.PersistentSink, onFatal valuestore.FatalHandler, persistThreshold, updateThreshold uint64) *Attribute {
	fullName := deviceName + "/" + attributeName

	a := &Attribute{
		ID:            id,
		DeviceName:    deviceName,
		AttributeName: attributeName,
		Alias:         alias,
		FullName:      fullName,
		Kind:          kind,
		Interpolation: interp,
		Method:        method,
		EventType:     eventType,
		Delay:         delay,
		Precision:     precision,
	}

	opts := []valuestore.Option{valuestore.WithFatalHandler(onFatal)}
	if persistThreshold > 0 && updateThreshold > 0 {
		opts = append(opts, valuestore.WithThresholds(persistThreshold, updateThreshold))
	}

	codec := codecFor(kind)
	a.store = valuestore.New(fullName, snk, codec, equalFor(kind), opts...)

	if kind == KindNumeric {
		a.numeric = newNumericIndex()
	}

	return a
}

// DisplayName returns the Alias if set, otherwise FullName, matching the
// "use-aliases" toggle on the HTTP control surface.
func (a *Attribute) DisplayName(useAliases bool) string {
	if useAliases && a.Alias != "" {
		return a.Alias
	}
	return a.FullName
}

// Store exposes the attribute's ValueStore for Engine-level scheduling
// and snapshot queries.
func (a *Attribute) Store() *valuestore.Store { return a.store }

// Clear discards the recent tier and, for numeric attributes, the
// precision-filter index alongside it — NumericAttribute.java overrides
// clear() for exactly this reason, since it carries a second map the
// base class's clear() does not know about.
func (a *Attribute) Clear() {
	a.store.ClearRecent()
	if a.numeric != nil {
		a.numeric.clear()
	}
}

// Add decodes and admits a reading into the attribute's ValueStore. It
// implements the two-stage acceptance rule from SPEC_FULL.md §4.2: a
// generic null-dedup check (reject a null reading once a non-null last
// value exists), then a kind-specific filter (the numeric precision
// filter for Kind == KindNumeric, unconditional acceptance otherwise),
// and finally the ValueStore's own exact-equality dedup.
func (a *Attribute) Add(readTS, writeTS ts.Timestamp, raw any, quality attrval.Quality, sourceID string) (bool, error) {
	if raw == nil {
		if last := a.store.GetLast(); last != nil && !last.IsNull() {
			return false, nil
		}
		return a.store.Add(valuestore.Value{ReadTS: readTS, WriteTS: writeTS, Raw: nil, Quality: quality, SourceID: sourceID}), nil
	}

	decoded, ok, err := a.decode(readTS, raw)
	if err != nil {
		return false, fmt.Errorf("%w: attribute %s: %v", errs.ErrDecode, a.FullName, err)
	}
	if !ok {
		return false, nil
	}

	return a.store.Add(valuestore.Value{ReadTS: readTS, WriteTS: writeTS, Raw: decoded, Quality: quality, SourceID: sourceID}), nil
}

// decode converts a raw device value into the stored representation for
// a's Kind and applies any kind-specific acceptance filter, returning
// ok=false when the filter rejects the value without it being an error
// (e.g. within the numeric precision band).
func (a *Attribute) decode(readTS ts.Timestamp, raw any) (decoded any, ok bool, err error) {
	switch a.Kind {
	case KindNumeric:
		return a.decodeNumeric(readTS, raw)
	case KindBoolean:
		b, convErr := toBool(raw)
		if convErr != nil {
			return nil, false, convErr
		}
		return b, true, nil
	case KindString:
		return fmt.Sprint(raw), true, nil
	case KindArray:
		arr, convErr := toArray(raw)
		if convErr != nil {
			return nil, false, convErr
		}
		return arr, true, nil
	default:
		return nil, false, fmt.Errorf("unhandled attribute kind %v", a.Kind)
	}
}

func toBool(raw any) (bool, error) {
	switch v := raw.(type) {
	case bool:
		return v, nil
	case string:
		switch v {
		case "true", "1", "on":
			return true, nil
		case "false", "0", "off":
			return false, nil
		}
	}
	return false, fmt.Errorf("cannot decode %v (%T) as boolean", raw, raw)
}

func toArray(raw any) ([]any, error) {
	switch v := raw.(type) {
	case []any:
		return v, nil
	default:
		return nil, fmt.Errorf("cannot decode %v (%T) as array", raw, raw)
	}
}
