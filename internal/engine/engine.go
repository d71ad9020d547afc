package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pv/attrengine/internal/attribute"
	"github.com/pv/attrengine/internal/attrval"
	"github.com/pv/attrengine/internal/device"
	"github.com/pv/attrengine/internal/errs"
	"github.com/pv/attrengine/internal/metrics"
	"github.com/pv/attrengine/internal/ts"
	"github.com/pv/attrengine/internal/valuestore"
)

// Engine owns every monitored Attribute, the device clients backing
// them, and the worker pool that schedules reads. It is grounded on the
// teacher's internal/server.Instance, generalized from one UniSet2
// server to an arbitrary fleet of devices behind a device.Registry.
type Engine struct {
	logger  *slog.Logger
	metrics *metrics.Registry
	clock   *ts.Clock

	attributes  map[string]*attribute.Attribute // by FullName
	polled      []*attribute.Attribute
	eventDriven []*attribute.Attribute
	clientOf    map[string]device.Client // attribute FullName -> its device's Client

	failedAttributes []string

	mu    sync.RWMutex
	state State

	pool   *pool
	cancel context.CancelFunc
	subs   []device.Subscription
	tickWG sync.WaitGroup

	useAliases bool
}

// UseAliases toggles whether DisplayName on snapshot queries prefers an
// attribute's alias, matching the "POST /control/use-aliases" control
// surface operation.
func (e *Engine) UseAliases(v bool) {
	e.mu.Lock()
	e.useAliases = v
	e.mu.Unlock()
}

// State reports the Engine's current lifecycle state.
func (e *Engine) State() State {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.state
}

// FailedAttributes lists "device/attribute" names EngineBuilder could
// not resolve a type for, matching EngineFactory.getFailedAttributes.
func (e *Engine) FailedAttributes() []string {
	out := make([]string, len(e.failedAttributes))
	copy(out, e.failedAttributes)
	return out
}

func (e *Engine) transition(to State) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := validTransition(e.state, to); err != nil {
		return err
	}
	e.state = to
	return nil
}

// Start moves the Engine into a collecting state, scheduling a ticker
// per polled attribute and a live subscription per event-driven one.
// mode selects the poll cadence policy (SPEC_FULL.md §4.4): ModeHeavyDuty
// skips the inter-attribute stagger ModeLightPoll applies.
func (e *Engine) Start(ctx context.Context, mode Mode) error {
	if err := e.transition(mode.state()); err != nil {
		return err
	}

	runCtx, cancel := context.WithCancel(ctx)
	e.mu.Lock()
	e.cancel = cancel
	e.pool = newPool(len(e.polled))
	e.pool.onFatal = e.haltFatal
	e.mu.Unlock()

	stagger := mode == ModeLightPoll

	for i, attr := range e.polled {
		e.tickWG.Add(1)
		go e.runPollLoop(runCtx, attr, i, stagger)
	}

	for _, attr := range e.eventDriven {
		if err := e.startSubscription(runCtx, attr); err != nil {
			e.logger.Error("subscribe failed", "attribute", attr.FullName, "error", err)
		}
	}

	return nil
}

func (e *Engine) runPollLoop(ctx context.Context, attr *attribute.Attribute, idx int, stagger bool) {
	defer e.tickWG.Done()

	if stagger && attr.Delay > 0 {
		select {
		case <-time.After(time.Duration(idx%8) * attr.Delay / 8):
		case <-ctx.Done():
			return
		}
	}

	interval := attr.Delay
	if interval <= 0 {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	var inFlight atomic.Bool
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if !inFlight.CompareAndSwap(false, true) {
				// The previous tick's poll is still running: drop this tick.
				e.metrics.Overruns.WithLabelValues(attr.FullName).Inc()
				continue
			}
			a := attr
			ok := e.pool.trySubmit(func(taskCtx context.Context) {
				defer inFlight.Store(false)
				e.pollOnce(taskCtx, a)
			})
			if !ok {
				inFlight.Store(false)
				e.metrics.Overruns.WithLabelValues(attr.FullName).Inc()
			}
		}
	}
}

func (e *Engine) pollOnce(ctx context.Context, attr *attribute.Attribute) {
	client, ok := e.clientOf[attr.FullName]
	if !ok {
		e.logger.Error("no client for attribute", "attribute", attr.FullName)
		return
	}

	readCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	start := time.Now()
	defer func() {
		e.metrics.PollDuration.WithLabelValues(attr.FullName).Observe(time.Since(start).Seconds())
	}()

	reading, err := client.Read(readCtx, attr.AttributeName)
	if err != nil {
		e.metrics.ReadErrors.WithLabelValues(attr.FullName).Inc()
		e.logger.Warn("read failed", "attribute", attr.FullName, "error", err)
		return
	}

	e.admit(attr, reading)
}

func (e *Engine) admit(attr *attribute.Attribute, reading device.Reading) {
	readTS := e.clock.Now()
	writeTS := e.clock.Now()

	stored, err := attr.Add(readTS, writeTS, reading.Raw, reading.Quality, reading.SourceID)
	if err != nil {
		e.metrics.DecodeErrors.WithLabelValues(attr.FullName).Inc()
		e.logger.Warn("decode failed", "attribute", attr.FullName, "error", err)
		return
	}
	if stored {
		e.metrics.ValuesStored.WithLabelValues(attr.FullName).Inc()
	}
}

func (e *Engine) startSubscription(ctx context.Context, attr *attribute.Attribute) error {
	client, ok := e.clientOf[attr.FullName]
	if !ok {
		return fmt.Errorf("%w: %s", errs.ErrClientUnavailable, attr.FullName)
	}

	sub, err := client.Subscribe(ctx, attr.AttributeName, attr.EventType, func(attributeName string, r device.Reading) {
		a := attr
		ok := e.pool.trySubmit(func(taskCtx context.Context) {
			e.admit(a, r)
		})
		if !ok {
			e.metrics.Overruns.WithLabelValues(a.FullName).Inc()
		}
	})
	if err != nil {
		return err
	}

	e.mu.Lock()
	e.subs = append(e.subs, sub)
	e.mu.Unlock()
	return nil
}

// Stop cancels all scheduling, unsubscribes every event-driven
// attribute, and joins the worker pool, bounded by ctx's deadline. Per
// SPEC_FULL.md §5, this is a best-effort cancel followed by a bounded
// join, not a guaranteed-complete drain.
func (e *Engine) Stop(ctx context.Context) error {
	if err := e.transition(StateStopped); err != nil {
		return err
	}

	e.mu.Lock()
	cancel := e.cancel
	subs := e.subs
	e.subs = nil
	pl := e.pool
	e.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	for _, sub := range subs {
		if err := sub.Unsubscribe(); err != nil {
			e.logger.Warn("unsubscribe failed", "error", err)
		}
	}

	done := make(chan struct{})
	go func() {
		e.tickWG.Wait()
		if pl != nil {
			pl.close()
		}
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("engine: stop did not complete before deadline: %w", ctx.Err())
	}
}

// haltFatal is the pool's recovery path for fatalPersistError: it
// halts collection the same way Stop does, but asynchronously, since
// it runs on a pool worker goroutine that Stop's own shutdown would
// otherwise wait on and deadlock against.
func (e *Engine) haltFatal(storeName string, err error) {
	e.logger.Error("fatal persist failure, halting engine", "store", storeName, "error", err)
	e.metrics.PersistErrors.WithLabelValues(storeName).Inc()

	go func() {
		if stopErr := e.Stop(context.Background()); stopErr != nil {
			e.logger.Warn("fatal halt: stop did not complete cleanly", "error", stopErr)
		}
	}()
}

// GetLatestSnapshot returns the last value of every attribute, keyed by
// display name (alias or full name depending on UseAliases).
func (e *Engine) GetLatestSnapshot() map[string]*valuestore.Value {
	e.mu.RLock()
	useAliases := e.useAliases
	e.mu.RUnlock()

	out := make(map[string]*valuestore.Value, len(e.attributes))
	for _, attr := range e.attributes {
		if v := attr.Store().GetLast(); v != nil {
			out[attr.DisplayName(useAliases)] = v
		}
	}
	return out
}

// GetDataRange returns every monitored attribute's values with ReadTS
// in [from, to], keyed by display name, matching spec.md §4.4/§6's
// engine-wide get_data_range(t0,t1) -> map<name, array>. Per attribute
// it reads GetInMemorySince(from) and filters to ReadTS <= to, never
// GetAll: GetAll's result is undefined under concurrent writes (the
// engine only uses it during its own persist/clear windows), whereas
// this is called live, with ingestion concurrently running.
func (e *Engine) GetDataRange(from, to ts.Timestamp) map[string][]valuestore.Value {
	e.mu.RLock()
	useAliases := e.useAliases
	e.mu.RUnlock()

	out := make(map[string][]valuestore.Value, len(e.attributes))
	for _, attr := range e.attributes {
		out[attr.DisplayName(useAliases)] = attributeDataRange(attr, from, to)
	}
	return out
}

// AttributeDataRange is the single-attribute convenience form of
// GetDataRange, used by callers that already know which attribute
// they want (e.g. the /snapshot/range?attribute= query parameter).
func (e *Engine) AttributeDataRange(attributeName string, from, to ts.Timestamp) ([]valuestore.Value, error) {
	attr, ok := e.attributes[attributeName]
	if !ok {
		return nil, fmt.Errorf("%w: %s", errs.ErrAttributeUnknown, attributeName)
	}
	return attributeDataRange(attr, from, to), nil
}

func attributeDataRange(attr *attribute.Attribute, from, to ts.Timestamp) []valuestore.Value {
	since := attr.Store().GetInMemorySince(from)

	out := make([]valuestore.Value, 0, len(since))
	for _, v := range since {
		if !v.ReadTS.After(to) {
			out = append(out, v)
		}
	}
	return out
}

// GetSnapshotAt answers a point-in-time query for every monitored
// attribute, keyed by display name, matching spec.md §4.4/§6's
// engine-wide get_snapshot_at(t) -> map.
func (e *Engine) GetSnapshotAt(at ts.Timestamp) map[string]*valuestore.Value {
	e.mu.RLock()
	useAliases := e.useAliases
	e.mu.RUnlock()

	out := make(map[string]*valuestore.Value, len(e.attributes))
	for _, attr := range e.attributes {
		if v := attr.ValueAt(at); v != nil {
			out[attr.DisplayName(useAliases)] = v
		}
	}
	return out
}

// AttributeSnapshotAt is the single-attribute convenience form of
// GetSnapshotAt.
func (e *Engine) AttributeSnapshotAt(attributeName string, at ts.Timestamp) (*valuestore.Value, error) {
	attr, ok := e.attributes[attributeName]
	if !ok {
		return nil, fmt.Errorf("%w: %s", errs.ErrAttributeUnknown, attributeName)
	}
	return attr.ValueAt(at), nil
}

// Attribute looks up a monitored attribute by its full name.
func (e *Engine) Attribute(fullName string) (*attribute.Attribute, bool) {
	a, ok := e.attributes[fullName]
	return a, ok
}

// Quality is re-exported for callers that only import engine.
type Quality = attrval.Quality
