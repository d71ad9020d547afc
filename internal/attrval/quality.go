// Package attrval defines the quality tag attached to every reading that
// flows through the engine. The value itself and its timestamps live in
// the tagged-variant Value type in internal/valuestore, since storage is
// dispatched by attribute kind rather than by a generic type parameter.
package attrval

// Quality annotates how much trust a reading deserves.
type Quality int

const (
	// Good means the device reported the value with no caveats.
	Good Quality = iota
	// Uncertain means the device or transport flagged the reading as
	// stale, interpolated upstream, or otherwise suspect.
	Uncertain
	// Bad means the reading is known-wrong: a device error code, a
	// decode failure recovered as a placeholder, or similar.
	Bad
)

func (q Quality) String() string {
	switch q {
	case Good:
		return "good"
	case Uncertain:
		return "uncertain"
	case Bad:
		return "bad"
	default:
		return "unknown"
	}
}
