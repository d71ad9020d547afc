package attribute

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/shopspring/decimal"

	"github.com/pv/attrengine/internal/attrval"
	"github.com/pv/attrengine/internal/ts"
	"github.com/pv/attrengine/internal/valuestore"
)

// recordHeader names the columns every kind's codec writes, matching
// the column set of AttributeValue.HEADER plus the quality/source
// fields the original tracked implicitly via its Tango-specific
// AttributeValue subclasses.
var recordHeader = []string{"read_ts", "write_ts", "value", "quality", "source_id"}

type genericCodec struct {
	encodeRaw func(any) string
	decodeRaw func(string) (any, error)
}

func (c genericCodec) Header() []string { return recordHeader }

func (c genericCodec) Encode(v valuestore.Value) []string {
	raw := ""
	if v.Raw != nil {
		raw = c.encodeRaw(v.Raw)
	}
	return []string{
		ts.Format(v.ReadTS),
		ts.Format(v.WriteTS),
		raw,
		strconv.Itoa(int(v.Quality)),
		v.SourceID,
	}
}

func (c genericCodec) Decode(row []string) (valuestore.Value, error) {
	if len(row) != len(recordHeader) {
		return valuestore.Value{}, fmt.Errorf("attribute: malformed record row %v", row)
	}

	readTS, err := ts.Parse(row[0])
	if err != nil {
		return valuestore.Value{}, err
	}
	writeTS, err := ts.Parse(row[1])
	if err != nil {
		return valuestore.Value{}, err
	}

	var raw any
	if row[2] != "" {
		raw, err = c.decodeRaw(row[2])
		if err != nil {
			return valuestore.Value{}, err
		}
	}

	qualityInt, err := strconv.Atoi(row[3])
	if err != nil {
		return valuestore.Value{}, err
	}

	return valuestore.Value{
		ReadTS:   readTS,
		WriteTS:  writeTS,
		Raw:      raw,
		Quality:  attrval.Quality(qualityInt),
		SourceID: row[4],
	}, nil
}

func codecFor(kind Kind) valuestore.RecordCodec {
	switch kind {
	case KindNumeric:
		return genericCodec{
			encodeRaw: func(a any) string { return a.(decimal.Decimal).String() },
			decodeRaw: func(s string) (any, error) { return decimal.NewFromString(s) },
		}
	case KindBoolean:
		return genericCodec{
			encodeRaw: func(a any) string { return strconv.FormatBool(a.(bool)) },
			decodeRaw: func(s string) (any, error) { return strconv.ParseBool(s) },
		}
	case KindArray:
		return genericCodec{
			encodeRaw: func(a any) string {
				b, _ := json.Marshal(a)
				return string(b)
			},
			decodeRaw: func(s string) (any, error) {
				var out []any
				err := json.Unmarshal([]byte(s), &out)
				return out, err
			},
		}
	default: // KindString
		return genericCodec{
			encodeRaw: func(a any) string { return a.(string) },
			decodeRaw: func(s string) (any, error) { return s, nil },
		}
	}
}
