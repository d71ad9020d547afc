// Package sink implements PersistentSink, the durable append/load
// abstraction each ValueStore hands its evicted values to. It is
// grounded on the teacher's internal/storage (table-per-backend,
// Storage interface) and internal/recording (header-row + body-row
// record layout) packages, generalized from a fixed DataPoint schema to
// an arbitrary header/body record shape so it can persist any attribute
// kind's string encoding.
package sink

// PersistentSink is a durable, append-keyed-by-name record store. Save is
// expected to be atomic: on crash, either every row from a single call is
// visible on the next Load or none are.
type PersistentSink interface {
	// Save appends body rows under name, writing header once per name
	// (repeated calls with the same name must use the same header).
	Save(name string, header []string, body [][]string) error
	// Load returns every row ever saved under name, in append order,
	// along with the header it was saved with. A name that was never
	// saved returns no header, an empty body (nil or zero-length) and no
	// error.
	Load(name string) (header []string, body [][]string, err error)
	// Close releases any resources held by the sink.
	Close() error
}
