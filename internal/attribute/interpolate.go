package attribute

import (
	"github.com/shopspring/decimal"

	"github.com/pv/attrengine/internal/attrval"
	"github.com/pv/attrengine/internal/ts"
	"github.com/pv/attrengine/internal/valuestore"
)

// ValueAt answers a point-in-time query against the attribute's history
// according to its configured Interpolation, implementing SPEC_FULL.md
// §4.3. It returns nil if the store holds nothing on either side of at.
func (a *Attribute) ValueAt(at ts.Timestamp) *valuestore.Value {
	switch a.Interpolation {
	case InterpolationNearest:
		return a.nearest(at)
	case InterpolationLinear:
		return a.linear(at)
	default: // InterpolationLast
		return a.store.Floor(at)
	}
}

func (a *Attribute) nearest(at ts.Timestamp) *valuestore.Value {
	floor := a.store.Floor(at)
	ceil := a.store.Ceiling(at)

	switch {
	case floor == nil:
		return ceil
	case ceil == nil:
		return floor
	}

	dFloor := at.Time().Sub(floor.ReadTS.Time())
	dCeil := ceil.ReadTS.Time().Sub(at.Time())
	if dCeil < dFloor {
		return ceil
	}
	return floor // ties and floor-closer both resolve to floor
}

// linear only has a well-defined result for numeric attributes; other
// kinds fall back to the same floor-based answer InterpolationLast
// gives, a deliberate simplification recorded in DESIGN.md since
// SPEC_FULL.md leaves non-numeric LINEAR behavior unspecified.
func (a *Attribute) linear(at ts.Timestamp) *valuestore.Value {
	floor := a.store.Floor(at)
	ceil := a.store.Ceiling(at)

	switch {
	case floor == nil:
		return ceil
	case ceil == nil:
		return floor
	case a.Kind != KindNumeric:
		return floor
	case floor.ReadTS.Equal(ceil.ReadTS):
		return floor
	case floor.IsNull() || ceil.IsNull():
		return floor
	}

	t0, t1, t := floor.ReadTS.Time(), ceil.ReadTS.Time(), at.Time()
	span := t1.Sub(t0)
	if span <= 0 {
		return floor
	}
	frac := decimal.NewFromInt(int64(t.Sub(t0))).Div(decimal.NewFromInt(int64(span)))

	v0 := floor.Raw.(decimal.Decimal)
	v1 := ceil.Raw.(decimal.Decimal)
	interpolated := v0.Add(v1.Sub(v0).Mul(frac))

	return &valuestore.Value{
		ReadTS:   at,
		WriteTS:  at,
		Raw:      interpolated,
		Quality:  minQuality(floor.Quality, ceil.Quality),
		SourceID: floor.SourceID,
	}
}

func minQuality(a, b attrval.Quality) attrval.Quality {
	if a > b {
		return a
	}
	return b
}
