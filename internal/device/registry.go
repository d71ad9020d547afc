package device

import (
	"context"
	"fmt"
)

// Registry is the Go counterpart of EngineFactory.java's
// CompositeClientFactory: a set of per-transport Factory implementations
// selected by a transport-kind name from configuration (e.g. "sm" for
// the HTTP poll transport, "uwsgate" for the websocket event transport).
type Registry struct {
	factories map[string]Factory
}

// NewRegistry builds an empty Registry.
func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]Factory)}
}

// Register associates a transport-kind name with a Factory.
func (r *Registry) Register(transport string, f Factory) {
	r.factories[transport] = f
}

// NewClient builds a Client for deviceName using the Factory registered
// under the device's configured transport kind.
func (r *Registry) NewClient(ctx context.Context, transport, deviceName string, config map[string]string) (Client, error) {
	f, ok := r.factories[transport]
	if !ok {
		return nil, fmt.Errorf("device: no client factory registered for transport %q", transport)
	}
	return f.NewClient(ctx, deviceName, config)
}
