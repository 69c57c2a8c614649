package sandbox

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/dop251/goja"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/AgentOS/scriptbox/internal/capability"
	"github.com/GriffinCanCode/AgentOS/scriptbox/internal/compiler"
	"github.com/GriffinCanCode/AgentOS/scriptbox/internal/serialize"
	"github.com/GriffinCanCode/AgentOS/scriptbox/internal/shared/id"
)

// host is the shared in-process context: one long-lived runtime whose
// console output goes to a swappable sink. Only the lane holder touches vm.
type host struct {
	cfg    Config
	reg    *capability.Registry
	logger *zap.Logger
	lane   *lane

	vm       *goja.Runtime
	baseline globalSet

	sinkMu   sync.Mutex
	sink     Sink
	fallback Sink

	unitsMu sync.Mutex
	units   map[id.UnitToken]goja.Callable
}

func newHost(cfg Config, reg *capability.Registry, logger *zap.Logger, l *lane) (*host, error) {
	h := &host{
		cfg:      cfg,
		reg:      reg,
		logger:   logger,
		lane:     l,
		fallback: LoggerSink{Logger: logger},
		units:    make(map[id.UnitToken]goja.Callable),
	}
	h.sink = h.fallback

	if err := h.reset(); err != nil {
		return nil, err
	}
	return h, nil
}

// reset replaces the runtime, discarding any state snippets left behind.
// Intrinsics of the new runtime are locked down and its globals snapshotted
// so that each run can be swept back to this state.
func (h *host) reset() error {
	vm := goja.New()
	if err := harden(vm, h.cfg.MaxCallStackSize); err != nil {
		return fmt.Errorf("failed to harden shared runtime: %w", err)
	}
	if err := installConsole(vm, h.currentSink); err != nil {
		return fmt.Errorf("failed to install console: %w", err)
	}
	if err := lockdown(vm); err != nil {
		return err
	}
	h.vm = vm
	h.baseline = snapshotGlobals(vm)
	return nil
}

func (h *host) currentSink() Sink {
	h.sinkMu.Lock()
	defer h.sinkMu.Unlock()
	return h.sink
}

// redirect points console output at s and returns the previous sink
func (h *host) redirect(s Sink) Sink {
	h.sinkMu.Lock()
	defer h.sinkMu.Unlock()
	prev := h.sink
	h.sink = s
	return prev
}

func (h *host) register(token id.UnitToken, fn goja.Callable) {
	h.unitsMu.Lock()
	defer h.unitsMu.Unlock()
	h.units[token] = fn
}

func (h *host) unregister(token id.UnitToken) {
	h.unitsMu.Lock()
	defer h.unitsMu.Unlock()
	delete(h.units, token)
}

// registered returns the number of units currently registered
func (h *host) registered() int {
	h.unitsMu.Lock()
	defer h.unitsMu.Unlock()
	return len(h.units)
}

// execute runs unit in the shared runtime. ctx carries the request deadline,
// which also bounds the wait for the lane.
func (h *host) execute(ctx context.Context, unit *compiler.Unit, req Request) Result {
	if err := h.lane.acquire(ctx); err != nil {
		if errors.Is(err, ErrClosed) {
			return failure(loadFailure("engine is closed"), nil)
		}
		return failure(contextError(ctx), nil)
	}

	capture := NewCapture()
	x := newExecution(ctx, h.vm)
	done := make(chan Result, 1)

	go h.run(x, unit, req, capture, done)

	select {
	case res := <-done:
		return res
	case <-ctx.Done():
		reason := contextError(ctx)
		logs := capture.Seal()
		x.abandon(reason)
		return failure(reason, logs)
	}
}

// run executes on its own goroutine while holding the lane. Every exit path
// restores the sink, releases the unit token and hands the lane on.
func (h *host) run(x *execution, unit *compiler.Unit, req Request, capture *Capture, done chan<- Result) {
	var (
		res     Result
		release sync.Once
	)
	vm := h.vm
	prev := h.redirect(capture)

	defer func() {
		if r := recover(); r != nil {
			h.logger.Error("Panic in shared runtime", zap.Any("panic", r), zap.String("unit", unit.Token.String()))
			res = failure(fmt.Errorf("internal error: %v", r), capture.Seal())
		}

		tainted := x.finish()
		h.redirect(prev)
		release.Do(func() { h.unregister(unit.Token) })
		vm.ClearInterrupt()
		if !tainted {
			if err := h.baseline.sweep(vm); err != nil {
				h.logger.Warn("Replacing shared runtime", zap.Error(err))
				tainted = true
			}
		}
		if tainted {
			if err := h.reset(); err != nil {
				h.logger.Error("Failed to reset shared runtime", zap.Error(err))
			}
		}
		h.lane.release()
		done <- res
	}()

	v, err := vm.RunProgram(unit.Program)
	if err != nil {
		res = failure(err, capture.Seal())
		return
	}
	fn, ok := goja.AssertFunction(v)
	if !ok {
		res = failure(protocolError("compiled unit is not callable"), capture.Seal())
		return
	}
	h.register(unit.Token, fn)

	api, err := capability.Build(x, h.reg, capability.Options{
		Pick:   req.APIPick,
		Frozen: req.APIMode != APIRaw,
	})
	if err != nil {
		res = failure(err, capture.Seal())
		return
	}

	out, err := x.invoke(fn, h.input(vm, req), api)
	if err != nil {
		res = failure(err, capture.Seal())
		return
	}

	res = Result{OK: true, Result: serialize.New(vm).WithDone(x.stop).Value(out), Logs: capture.Seal()}
}

func (h *host) input(vm *goja.Runtime, req Request) goja.Value {
	if req.InputMode == InputRaw {
		return vm.ToValue(req.Input)
	}
	return serialize.ToJS(vm, serialize.Value(req.Input))
}
