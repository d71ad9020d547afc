package engine

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestPool_SubmitRunsTasks(t *testing.T) {
	p := newPool(2)

	var n atomic.Int32
	var wg sync.WaitGroup
	wg.Add(10)
	for i := 0; i < 10; i++ {
		p.submit(func(ctx context.Context) {
			n.Add(1)
			wg.Done()
		})
	}
	wg.Wait()
	p.close()

	assert.EqualValues(t, 10, n.Load())
}

func TestPool_TrySubmitFailsWhenSaturated(t *testing.T) {
	p := newPool(1)

	block := make(chan struct{})
	release := make(chan struct{})

	// occupy the single worker and fill its queue so further trySubmit
	// calls have nowhere to go.
	ok := p.trySubmit(func(ctx context.Context) { <-block })
	assert.True(t, ok)

	for {
		if !p.trySubmit(func(ctx context.Context) { <-release }) {
			break
		}
	}

	close(block)
	close(release)
	p.close()
}

func TestPool_CloseDrainsInFlightTasks(t *testing.T) {
	p := newPool(4)

	var n atomic.Int32
	for i := 0; i < 20; i++ {
		p.submit(func(ctx context.Context) {
			time.Sleep(time.Millisecond)
			n.Add(1)
		})
	}
	p.close()

	assert.EqualValues(t, 20, n.Load())
}
