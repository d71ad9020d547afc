// Package engine wires attributes, device clients, and the ValueStore
// layer into a running collection process, grounded on the teacher's
// internal/poller.BasePoller[T,U] (generic ticker-driven polling with
// per-subscription change detection) and internal/server.Instance
// (owns client + poller + status).
package engine

import (
	"context"
	"sync"
)

// task is one unit of scheduled work: reading and admitting a single
// attribute's value, or running a pushed event's decode off the
// transport's own goroutine.
type task func(ctx context.Context)

// fatalPersistError is panicked by the FatalHandler an Attribute's
// ValueStore calls when a persist on its eviction path fails, per
// SPEC_FULL.md §7 ("escalated to a panic-recovered fatal shutdown of
// the Engine"). The pool recovers it in the worker goroutine that was
// running the task and routes it to the Engine instead of letting it
// crash the process.
type fatalPersistError struct {
	storeName string
	err       error
}

// pool is a fixed-size goroutine pool, sized to the number of polled
// attributes per SPEC_FULL.md §4.4 and §5 ("bare OS threads" resource
// policy: one ticker-goroutine-equivalent slot per polled attribute,
// pooled rather than spawned per tick). Event callbacks are submitted
// to the same pool so decode work is never run on the transport's own
// read-loop goroutine.
type pool struct {
	tasks chan task
	wg    sync.WaitGroup

	// onFatal is invoked, on the worker goroutine that recovered the
	// panic, when a task panics with fatalPersistError. Set by the Engine before
	// Start schedules any work.
	onFatal func(storeName string, err error)
}

func newPool(size int) *pool {
	if size < 1 {
		size = 1
	}
	p := &pool{tasks: make(chan task, size*4)}
	p.wg.Add(size)
	for i := 0; i < size; i++ {
		go p.worker()
	}
	return p
}

func (p *pool) worker() {
	defer p.wg.Done()
	for t := range p.tasks {
		p.runTask(t)
	}
}

func (p *pool) runTask(t task) {
	defer func() {
		r := recover()
		if r == nil {
			return
		}
		fe, ok := r.(fatalPersistError)
		if !ok {
			panic(r)
		}
		if p.onFatal != nil {
			p.onFatal(fe.storeName, fe.err)
		}
	}()
	t(context.Background())
}

// submit enqueues t, blocking if every worker is busy and the queue is
// full — this is the backpressure the bounded pool exists to apply.
func (p *pool) submit(t task) {
	p.tasks <- t
}

// trySubmit enqueues t only if a slot is immediately available,
// returning false (an overrun) otherwise. The polling scheduler uses
// this so a slow attribute cannot stall the rest of the fleet.
func (p *pool) trySubmit(t task) bool {
	select {
	case p.tasks <- t:
		return true
	default:
		return false
	}
}

// close stops accepting new tasks and waits for in-flight ones to
// drain, matching the "best-effort cancel then bounded join" shutdown
// contract of SPEC_FULL.md §5.
func (p *pool) close() {
	close(p.tasks)
	p.wg.Wait()
}
