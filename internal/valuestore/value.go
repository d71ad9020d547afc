package valuestore

import (
	"github.com/pv/attrengine/internal/attrval"
	"github.com/pv/attrengine/internal/ts"
)

// Value is a single reading, tagged-variant style: Raw carries the
// decoded value (a decimal.Decimal, bool, string, or []any for the
// numeric/boolean/string/array attribute kinds) or nil to mean a null
// reading. It plays the role of the Java AttributeValue<T>, but is not
// itself generic: decode and equality are dispatched by the owning
// Attribute at the point a Value is constructed, matching the
// tagged-variant re-architecture in place of generic subclassing.
type Value struct {
	ReadTS   ts.Timestamp
	WriteTS  ts.Timestamp
	Raw      any
	Quality  attrval.Quality
	SourceID string
}

// IsNull reports whether this is a null reading.
func (v Value) IsNull() bool { return v.Raw == nil }
