package sandbox

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/dop251/goja"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/AgentOS/scriptbox/internal/capability"
	"github.com/GriffinCanCode/AgentOS/scriptbox/internal/compiler"
	"github.com/GriffinCanCode/AgentOS/scriptbox/internal/serialize"
	"github.com/GriffinCanCode/AgentOS/scriptbox/internal/shared/id"
)

// inbound is the one message an isolated context accepts. Input is already
// a serialized tree.
type inbound struct {
	Code  string
	Input any
}

// outbound is the one message an isolated context posts back
type outbound struct {
	OK     bool
	Result any
	Error  string
	Kind   ErrorKind
	Logs   []string
}

// validate checks the shape of a posted message
func (m outbound) validate() error {
	if m.OK && m.Error != "" {
		return fmt.Errorf("message is both ok and failed")
	}
	if !m.OK && m.Error == "" {
		return fmt.Errorf("failed message carries no error")
	}
	if m.Logs == nil {
		return fmt.Errorf("message carries no logs")
	}
	return nil
}

// isolate is a fresh runtime on its own goroutine. The host reaches it only
// through inbox and outbox; it has no registry, no host sink and no shared
// objects.
type isolate struct {
	id       id.ContextID
	vm       *goja.Runtime
	compiler *compiler.Compiler
	maxStack int
	hook     func() // runs during bootstrap, before ready

	ready  chan struct{}
	inbox  chan inbound
	outbox chan outbound
	exited chan struct{}
	kill   chan struct{}

	teardownOnce sync.Once
}

func spawnIsolate(c *compiler.Compiler, maxStack int, hook func()) *isolate {
	iso := &isolate{
		id:       id.NewContextID(),
		vm:       goja.New(),
		compiler: c,
		maxStack: maxStack,
		hook:     hook,
		ready:    make(chan struct{}),
		inbox:    make(chan inbound, 1),
		outbox:   make(chan outbound, 1),
		exited:   make(chan struct{}),
		kill:     make(chan struct{}),
	}
	go iso.serve()
	return iso
}

// serve is the context's bootstrap: prepare the runtime, signal ready, take
// exactly one message, post exactly one reply.
func (c *isolate) serve() {
	defer close(c.exited)
	defer func() {
		// A panicking context simply exits; the host reports the missing reply.
		_ = recover()
	}()

	if err := harden(c.vm, c.maxStack); err != nil {
		return
	}
	capture := NewCapture()
	if err := installConsole(c.vm, func() Sink { return capture }); err != nil {
		return
	}
	if c.hook != nil {
		c.hook()
	}

	select {
	case <-c.kill:
		return
	default:
		close(c.ready)
	}

	var msg inbound
	select {
	case msg = <-c.inbox:
	case <-c.kill:
		return
	}

	c.outbox <- c.handle(msg, capture)
}

func (c *isolate) handle(msg inbound, capture *Capture) outbound {
	fail := func(err error) outbound {
		e := classify(err)
		return outbound{OK: false, Error: e.Message, Kind: e.Kind, Logs: capture.Seal()}
	}

	unit, err := c.compiler.Compile(msg.Code)
	if err != nil {
		return fail(err)
	}

	v, err := c.vm.RunProgram(unit.Program)
	if err != nil {
		return fail(err)
	}
	fn, ok := goja.AssertFunction(v)
	if !ok {
		return fail(protocolError("compiled unit is not callable"))
	}

	x := newExecution(context.Background(), c.vm)
	defer x.finish()
	go func() {
		select {
		case <-c.kill:
			x.halt()
		case <-x.stop:
		}
	}()

	api, err := capability.Build(x, capability.NewRegistry(), capability.Options{Frozen: true})
	if err != nil {
		return fail(err)
	}

	out, err := x.invoke(fn, serialize.ToJS(c.vm, msg.Input), api)
	if err != nil {
		return fail(err)
	}
	return outbound{OK: true, Result: serialize.New(c.vm).WithDone(x.stop).Value(out), Logs: capture.Seal()}
}

// teardown stops the context exactly once: a running snippet is interrupted
// and the goroutine is told to exit.
func (c *isolate) teardown() {
	c.teardownOnce.Do(func() {
		close(c.kill)
		c.vm.Interrupt(timeoutError())
	})
}

// isolatedRun drives one request through a fresh context
type isolatedRun struct {
	cfg    Config
	logger *zap.Logger
}

// execute sends msg to iso and waits for its reply. The ready timer starts
// now; the execution timer starts once the message is sent. The context is
// torn down on every exit path.
func (r isolatedRun) execute(ctx context.Context, iso *isolate, msg inbound, timeout time.Duration) (res Result, loadErr error) {
	defer iso.teardown()

	readyTimer := time.NewTimer(r.cfg.ReadyTimeout)
	defer readyTimer.Stop()

	select {
	case <-iso.ready:
	case <-readyTimer.C:
		e := loadFailure("isolated context not ready after %s", r.cfg.ReadyTimeout)
		return failure(e, nil), e
	case <-iso.exited:
		e := loadFailure("isolated context exited during startup")
		return failure(e, nil), e
	case <-ctx.Done():
		return failure(contextError(ctx), nil), nil
	}
	readyTimer.Stop()

	iso.inbox <- msg

	execTimer := time.NewTimer(timeout)
	defer execTimer.Stop()

	select {
	case reply := <-iso.outbox:
		return r.settle(iso, reply), nil
	case <-execTimer.C:
		return failure(timeoutError(), nil), nil
	case <-iso.exited:
		// The reply may have been posted just before exit.
		select {
		case reply := <-iso.outbox:
			return r.settle(iso, reply), nil
		default:
		}
		return failure(protocolError("isolated context exited without a reply"), nil), nil
	case <-ctx.Done():
		return failure(contextError(ctx), nil), nil
	}
}

func (r isolatedRun) settle(iso *isolate, reply outbound) Result {
	if err := reply.validate(); err != nil {
		r.logger.Warn("Malformed isolated reply", zap.String("context", iso.id.String()), zap.Error(err))
		return failure(protocolError("%v", err), reply.Logs)
	}
	if !reply.OK {
		kind := reply.Kind
		if kind == "" {
			kind = KindRuntime
		}
		return Result{OK: false, Error: reply.Error, Kind: kind, Logs: reply.Logs}
	}
	return Result{OK: true, Result: reply.Result, Logs: reply.Logs}
}
