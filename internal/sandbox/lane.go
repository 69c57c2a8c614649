package sandbox

import (
	"context"
	"sync"

	"github.com/GriffinCanCode/AgentOS/scriptbox/internal/infrastructure/monitoring"
)

// lane is the in-process run-queue: a pool with a single slot guarding the
// shared runtime and its console redirection.
type lane struct {
	slot    chan struct{}
	metrics *monitoring.Metrics

	mu     sync.RWMutex
	closed bool
}

func newLane(metrics *monitoring.Metrics) *lane {
	l := &lane{
		slot:    make(chan struct{}, 1),
		metrics: metrics,
	}
	l.slot <- struct{}{}
	return l
}

// acquire waits for the slot or for ctx to finish
func (l *lane) acquire(ctx context.Context) error {
	l.mu.RLock()
	closed := l.closed
	l.mu.RUnlock()
	if closed {
		return ErrClosed
	}

	l.metrics.AddQueueWaiting(1)
	defer l.metrics.AddQueueWaiting(-1)

	select {
	case _, ok := <-l.slot:
		if !ok {
			return ErrClosed
		}
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// release hands the slot to the next waiter
func (l *lane) release() {
	l.mu.RLock()
	defer l.mu.RUnlock()

	if l.closed {
		return
	}
	l.slot <- struct{}{}
}

// close wakes all waiters with ErrClosed. A holder's later release is a no-op.
func (l *lane) close() {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return
	}
	l.closed = true
	close(l.slot)
}

// idle reports whether nobody holds the slot
func (l *lane) idle() bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return !l.closed && len(l.slot) == 1
}
