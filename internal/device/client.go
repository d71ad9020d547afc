// Package device defines DeviceClient, the capability a transport must
// offer the Engine: resolve an attribute's kind, read it on demand, and
// (for event-driven attributes) subscribe to a push feed. It is
// grounded on the teacher's internal/sm.Client (poll) and
// internal/uwsgate.Client (event), generalized behind one interface the
// way EngineFactory.java's CompositeClientFactory picks a concrete
// wpn.hdri.ss.client.Client implementation per device.
package device

import (
	"context"

	"github.com/pv/attrengine/internal/attribute"
	"github.com/pv/attrengine/internal/attrval"
)

// Reading is a single sample handed up from a transport, before the
// owning Attribute has decoded and precision-filtered it.
type Reading struct {
	Raw      any
	Quality  attrval.Quality
	SourceID string
}

// EventCallback is invoked by a Client for every pushed update on a
// subscribed attribute.
type EventCallback func(attributeName string, r Reading)

// Subscription is a handle to an active event subscription.
type Subscription interface {
	Unsubscribe() error
}

// Client is the capability set a device transport offers the Engine.
// A single device may be backed by any Client implementation; the
// Engine neither knows nor cares which.
type Client interface {
	// AttributeClass resolves the kind an attribute should be decoded
	// as, or errs.ErrAttributeUnknown if the device does not expose it.
	AttributeClass(ctx context.Context, attributeName string) (attribute.Kind, error)
	// Read performs a synchronous, on-demand read of one attribute.
	Read(ctx context.Context, attributeName string) (Reading, error)
	// Subscribe registers cb to be called on every push update for
	// attributeName of the given device event type. Only meaningful for
	// attributes configured with attribute.MethodEvent.
	Subscribe(ctx context.Context, attributeName, eventType string, cb EventCallback) (Subscription, error)
	// Close releases the underlying transport.
	Close() error
}

// Factory builds a Client for one device, by name, grounded on
// EngineFactory.java's CompositeClientFactory.createClient.
type Factory interface {
	NewClient(ctx context.Context, deviceName string, config map[string]string) (Client, error)
}
