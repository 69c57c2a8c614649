package sandbox

import (
	"context"
	"sync"

	"github.com/dop251/goja"

	"github.com/GriffinCanCode/AgentOS/scriptbox/internal/serialize"
)

// execution is one run of a unit on a runtime. It implements
// capability.Scope: async capabilities post their settlement back as jobs
// that only the goroutine driving the runtime executes.
type execution struct {
	ctx    context.Context
	cancel context.CancelFunc
	vm     *goja.Runtime

	jobs     chan func() error
	stop     chan struct{}
	stopOnce sync.Once

	mu       sync.Mutex
	finished bool
	tainted  bool
}

func newExecution(parent context.Context, vm *goja.Runtime) *execution {
	ctx, cancel := context.WithCancel(parent)
	return &execution{
		ctx:    ctx,
		cancel: cancel,
		vm:     vm,
		jobs:   make(chan func() error),
		stop:   make(chan struct{}),
	}
}

func (x *execution) Context() context.Context { return x.ctx }

func (x *execution) Runtime() *goja.Runtime { return x.vm }

// Async runs fn on its own goroutine and returns a promise settled on the
// runtime goroutine. Resolved values are copied through the serialization
// boundary.
func (x *execution) Async(fn func(ctx context.Context) (any, error)) goja.Value {
	p, resolve, reject := x.vm.NewPromise()

	go func() {
		v, err := fn(x.ctx)
		job := func() error {
			if err != nil {
				return reject(x.vm.NewGoError(err))
			}
			if jv, ok := v.(goja.Value); ok {
				return resolve(jv)
			}
			return resolve(serialize.ToJS(x.vm, serialize.Value(v)))
		}

		select {
		case x.jobs <- job:
		case <-x.stop:
		}
	}()

	return x.vm.ToValue(p)
}

// invoke calls the unit function and drives the runtime until its promise
// settles or the host stops waiting.
func (x *execution) invoke(fn goja.Callable, input, api goja.Value) (goja.Value, error) {
	ret, err := fn(goja.Undefined(), input, api)
	if err != nil {
		return nil, err
	}

	p, ok := ret.Export().(*goja.Promise)
	if !ok {
		return ret, nil
	}

	for p.State() == goja.PromiseStatePending {
		select {
		case job := <-x.jobs:
			if err := job(); err != nil {
				return nil, err
			}
		case <-x.stop:
			return nil, timeoutError()
		}
	}

	if p.State() == goja.PromiseStateRejected {
		return nil, rejection(p.Result())
	}
	return p.Result(), nil
}

// abandon is called by the host when it stops waiting. A runtime still
// executing is interrupted and marked tainted.
func (x *execution) abandon(reason *Error) {
	x.mu.Lock()
	defer x.mu.Unlock()

	if !x.finished {
		x.vm.Interrupt(reason)
		x.tainted = true
	}
	x.halt()
}

// finish marks the runtime as no longer executing this unit and reports
// whether it was interrupted along the way. After finish, abandon never
// interrupts the runtime.
func (x *execution) finish() (tainted bool) {
	x.mu.Lock()
	defer x.mu.Unlock()

	x.finished = true
	x.halt()
	return x.tainted
}

func (x *execution) halt() {
	x.stopOnce.Do(func() { close(x.stop) })
	x.cancel()
}
