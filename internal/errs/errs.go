// Package errs collects the sentinel error kinds shared across the
// engine so callers can classify failures with errors.Is instead of
// string matching, mirroring the checked-exception hierarchy of the
// Java original (ClientException, StorageException, ...).
package errs

import "errors"

var (
	// ErrConfig marks a malformed or internally inconsistent configuration.
	ErrConfig = errors.New("engine: invalid configuration")
	// ErrClientUnavailable marks a device client that could not be built
	// or that has lost its transport.
	ErrClientUnavailable = errors.New("engine: device client unavailable")
	// ErrAttributeUnknown marks a reference to an attribute the engine
	// has no record of.
	ErrAttributeUnknown = errors.New("engine: unknown attribute")
	// ErrRead marks a failed read from a device client.
	ErrRead = errors.New("engine: read failed")
	// ErrDecode marks a reading that could not be decoded into its
	// attribute's declared kind.
	ErrDecode = errors.New("engine: decode failed")
	// ErrPersist marks a failed write to a PersistentSink.
	ErrPersist = errors.New("engine: persist failed")
	// ErrQuiescenceViolation marks an operation that requires the engine
	// to be stopped (no concurrent writers) but was invoked while running.
	ErrQuiescenceViolation = errors.New("engine: operation requires quiescence")
)
