package rpc

import "github.com/pv/attrengine/internal/valuestore"

// wireValue is the JSON representation of a Value at the control
// surface boundary: millisecond-epoch timestamps, per SPEC_FULL.md §6.
type wireValue struct {
	ReadTS   int64  `json:"read_ts"`
	WriteTS  int64  `json:"write_ts"`
	Value    any    `json:"value"`
	Quality  int    `json:"quality"`
	SourceID string `json:"source_id"`
}

func toWireValue(v valuestore.Value) wireValue {
	var value any
	if v.Raw != nil {
		if s, ok := v.Raw.(interface{ String() string }); ok {
			value = s.String()
		} else {
			value = v.Raw
		}
	}

	return wireValue{
		ReadTS:   v.ReadTS.UnixMilli(),
		WriteTS:  v.WriteTS.UnixMilli(),
		Value:    value,
		Quality:  int(v.Quality),
		SourceID: v.SourceID,
	}
}
