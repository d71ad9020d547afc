package engine

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"github.com/pv/attrengine/internal/attribute"
	"github.com/pv/attrengine/internal/config"
	"github.com/pv/attrengine/internal/device"
	"github.com/pv/attrengine/internal/metrics"
	"github.com/pv/attrengine/internal/sink"
	"github.com/pv/attrengine/internal/ts"
)

// defaultDelay is used for an attribute that declares no explicit
// delay, matching the teacher's 5-second default poll-interval flag.
const defaultDelay = 5 * time.Second

// kindRegistrar is implemented by device clients (sm.Client,
// uwsgate.Client) that need to be told up front how to decode each
// attribute they will be asked to read or push, since their wire
// protocols carry no type tag of their own.
type kindRegistrar interface {
	RegisterKind(attributeName string, kind attribute.Kind)
}

// Builder wires a device catalogue into a running Engine, grounded
// directly on EngineFactory.java: enumerate devices, build a client per
// device via a composite factory (catching and skipping on failure),
// resolve each attribute's type via the client (collecting failures
// rather than aborting), assign a dense id, and partition by scheduling
// method. The worker pool is sized later, by Engine.Start, to the
// number of polled attributes.
type Builder struct {
	Registry *device.Registry
	Sink     sink.PersistentSink
	Metrics  *metrics.Registry
	Logger   *slog.Logger
	Clock    *ts.Clock

	PersistThreshold uint64
	UpdateThreshold  uint64
}

// Build constructs an Engine from devices, exactly as
// EngineFactory.newEngine builds an Engine from a
// StatusServerConfiguration.
func (b *Builder) Build(ctx context.Context, devices []config.DeviceSpec) (*Engine, error) {
	logger := b.Logger
	if logger == nil {
		logger = slog.Default()
	}

	totalAttributes := 0
	for _, dev := range devices {
		totalAttributes += len(dev.Attributes)
	}

	e := &Engine{
		logger:     logger,
		metrics:    b.Metrics,
		clock:      b.Clock,
		attributes: make(map[string]*attribute.Attribute, totalAttributes),
		clientOf:   make(map[string]device.Client, totalAttributes),
		state:      StateUninit,
	}

	var id int
	for _, dev := range devices {
		client, err := b.Registry.NewClient(ctx, dev.Transport, dev.Name, map[string]string{"url": dev.URL})
		if err != nil {
			logger.Error("failed to build device client, skipping device", "device", dev.Name, "error", err)
			continue
		}

		for _, spec := range dev.Attributes {
			// The catalogue's own Kind field is only a hint: our wire
			// clients (sm.Client, uwsgate.Client) carry no type tag of
			// their own and need telling up front, but the client's
			// AttributeClass answer is what actually gates whether the
			// attribute is monitored, matching EngineFactory.java's
			// client.getAttributeClass(devAttr.getName()).
			if registrar, ok := client.(kindRegistrar); ok {
				if hint, err := parseKind(spec.Kind); err == nil {
					registrar.RegisterKind(spec.Name, hint)
				}
			}

			kind, err := client.AttributeClass(ctx, spec.Name)
			if err != nil {
				logger.Error("unresolvable attribute kind", "device", dev.Name, "attribute", spec.Name, "error", err)
				e.failedAttributes = append(e.failedAttributes, dev.Name+"/"+spec.Name)
				continue
			}

			delay := spec.Delay
			if delay <= 0 {
				delay = defaultDelay
			}

			precision := decimal.Zero
			if spec.Precision != "" {
				p, err := decimal.NewFromString(spec.Precision)
				if err != nil {
					logger.Warn("invalid precision, using zero", "device", dev.Name, "attribute", spec.Name, "error", err)
				} else {
					precision = p
				}
			}

			attr := attribute.New(
				id, dev.Name, spec.Name, spec.Alias, kind,
				parseInterpolation(spec.Interpolation), parseMethod(spec.Method), spec.EventType,
				delay, precision, b.Sink,
				func(storeName string, err error) {
					// Escalated to a panic, recovered by the pool worker
					// running whichever task triggered the eviction
					// (admit/pollOnce), which halts the Engine instead
					// of just logging — a persist failure here must
					// stop collection, not be swallowed.
					panic(fatalPersistError{storeName: storeName, err: err})
				},
				b.PersistThreshold, b.UpdateThreshold,
			)
			id++

			e.attributes[attr.FullName] = attr
			e.clientOf[attr.FullName] = client

			if attr.Method == attribute.MethodPoll {
				e.polled = append(e.polled, attr)
				e.metrics.Attributes.WithLabelValues("poll").Inc()
			} else {
				e.eventDriven = append(e.eventDriven, attr)
				e.metrics.Attributes.WithLabelValues("event").Inc()
			}

			logger.Debug("monitoring attribute", "attribute", attr.FullName, "kind", kind.String())
		}
	}

	if len(e.attributes) != totalAttributes {
		logger.Warn("actual number of monitored attributes is less than configured",
			"actual", len(e.attributes), "total", totalAttributes)
	}

	if err := e.transition(StateIdle); err != nil {
		return nil, err
	}

	return e, nil
}

func parseKind(s string) (attribute.Kind, error) {
	switch s {
	case "", "numeric":
		return attribute.KindNumeric, nil
	case "boolean":
		return attribute.KindBoolean, nil
	case "string":
		return attribute.KindString, nil
	case "array":
		return attribute.KindArray, nil
	default:
		return 0, fmt.Errorf("unknown attribute kind %q", s)
	}
}

func parseInterpolation(s string) attribute.Interpolation {
	switch s {
	case "nearest":
		return attribute.InterpolationNearest
	case "linear":
		return attribute.InterpolationLinear
	default:
		return attribute.InterpolationLast
	}
}

func parseMethod(s string) attribute.Method {
	if s == "event" {
		return attribute.MethodEvent
	}
	return attribute.MethodPoll
}
