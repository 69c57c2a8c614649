package sandbox

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"github.com/GriffinCanCode/AgentOS/scriptbox/internal/capability"
	"github.com/GriffinCanCode/AgentOS/scriptbox/internal/compiler"
	"github.com/GriffinCanCode/AgentOS/scriptbox/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/AgentOS/scriptbox/internal/infrastructure/resilience"
	"github.com/GriffinCanCode/AgentOS/scriptbox/internal/infrastructure/tracing"
	"github.com/GriffinCanCode/AgentOS/scriptbox/internal/serialize"
	"github.com/GriffinCanCode/AgentOS/scriptbox/internal/shared/id"
)

// Engine executes snippets against a capability registry
type Engine struct {
	cfg      Config
	reg      *capability.Registry
	logger   *zap.Logger
	metrics  *monitoring.Metrics
	tracer   *tracing.Tracer
	compiler *compiler.Compiler

	lane *lane
	host *host

	slots         *semaphore.Weighted
	breaker       *resilience.Breaker
	bootstrapHook func()

	closed atomic.Bool
}

// Option configures an Engine
type Option func(*Engine)

// WithLogger sets the engine logger
func WithLogger(logger *zap.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
	}
}

// WithMetrics records executions into metrics
func WithMetrics(metrics *monitoring.Metrics) Option {
	return func(e *Engine) {
		e.metrics = metrics
	}
}

// WithTracer submits a span for every execution
func WithTracer(tracer *tracing.Tracer) Option {
	return func(e *Engine) {
		e.tracer = tracer
	}
}

// New creates an engine. The registry stays owned by the caller; snippets
// only ever see per-request views of it.
func New(cfg Config, reg *capability.Registry, opts ...Option) (*Engine, error) {
	if reg == nil {
		reg = capability.NewRegistry()
	}

	e := &Engine{
		cfg:    cfg.withDefaults(),
		reg:    reg,
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(e)
	}

	e.compiler = compiler.New(e.cfg.StrictMode)
	e.lane = newLane(e.metrics)
	e.slots = semaphore.NewWeighted(int64(e.cfg.MaxIsolated))
	e.breaker = resilience.New("isolate", resilience.Settings{
		Failures: e.cfg.BreakerFailures,
		Cooldown: e.cfg.BreakerCooldown,
		OnStateChange: func(name string, from, to resilience.State) {
			e.logger.Warn("Circuit breaker state change",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()))
		},
	})

	host, err := newHost(e.cfg, reg, e.logger, e.lane)
	if err != nil {
		return nil, fmt.Errorf("failed to create shared runtime: %w", err)
	}
	e.host = host

	return e, nil
}

// Config returns the effective configuration
func (e *Engine) Config() Config {
	return e.cfg
}

// Capabilities lists the registered capability names
func (e *Engine) Capabilities() []string {
	return e.reg.Names()
}

// Execute runs one request. It never returns a Go error: every outcome,
// including invalid requests, is a Result.
func (e *Engine) Execute(ctx context.Context, req Request) Result {
	requestID := id.NewRequestID()

	tier := req.Tier
	if tier == "" {
		tier = e.cfg.DefaultTier
	}
	timer := monitoring.NewTimer(e.metrics, string(tier))
	span, ctx := e.tracer.StartSpan(ctx, "sandbox.execute")

	res := e.dispatch(ctx, tier, req)

	outcome := "ok"
	if !res.OK {
		outcome = string(res.Kind)
	}
	duration := timer.Stop(outcome)

	span.SetTag("tier", string(tier))
	span.SetTag("outcome", outcome)
	span.SetTag("request_id", requestID.String())
	span.Finish()
	e.tracer.Submit(span)

	fields := []zap.Field{
		zap.String("request_id", requestID.String()),
		zap.String("trace_id", string(span.TraceID)),
		zap.String("tier", string(tier)),
		zap.Duration("duration", duration),
		zap.Int("logs", len(res.Logs)),
	}
	if res.OK {
		e.logger.Debug("Execution settled", fields...)
	} else {
		e.logger.Warn("Execution failed", append(fields,
			zap.String("kind", string(res.Kind)),
			zap.String("error", res.Error))...)
	}
	return res
}

func (e *Engine) dispatch(ctx context.Context, tier Tier, req Request) Result {
	if e.closed.Load() {
		return failure(loadFailure("engine is closed"), nil)
	}
	if err := validateRequest(tier, req); err != nil {
		return failure(&Error{Kind: KindValidation, Message: err.Error(), Err: ErrValidation}, nil)
	}
	if ctx.Err() != nil {
		return failure(contextError(ctx), nil)
	}

	// Compile before choosing a tier so invalid code never reaches one.
	unit, err := e.compiler.Compile(req.Code)
	if err != nil {
		e.metrics.IncCompileFailures()
		return failure(err, nil)
	}

	timeout := e.timeout(req.Timeout)

	if tier == TierIsolated {
		return e.executeIsolated(ctx, req, timeout)
	}

	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return e.host.execute(runCtx, unit, req)
}

func (e *Engine) executeIsolated(ctx context.Context, req Request, timeout time.Duration) Result {
	admitCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if err := e.slots.Acquire(admitCtx, 1); err != nil {
		return failure(contextError(admitCtx), nil)
	}
	defer e.slots.Release(1)

	msg := inbound{Code: req.Code, Input: serialize.Value(req.Input)}
	run := isolatedRun{cfg: e.cfg, logger: e.logger}

	var res Result
	err := e.breaker.Do(func() error {
		iso := spawnIsolate(e.compiler, e.cfg.MaxCallStackSize, e.bootstrapHook)
		e.metrics.AddIsolatedContexts(1)
		defer e.metrics.AddIsolatedContexts(-1)

		var loadErr error
		res, loadErr = run.execute(ctx, iso, msg, timeout)
		return loadErr
	})

	if errors.Is(err, resilience.ErrCircuitOpen) || errors.Is(err, resilience.ErrProbeInFlight) {
		return failure(loadFailure("isolated contexts unavailable: %v", err), nil)
	}
	return res
}

// timeout applies the default and the ceiling
func (e *Engine) timeout(d time.Duration) time.Duration {
	if d <= 0 {
		return e.cfg.DefaultTimeout
	}
	if d > e.cfg.MaxTimeout {
		return e.cfg.MaxTimeout
	}
	return d
}

// Close stops accepting requests. Executions already running settle
// normally; waiters for the in-process lane fail.
func (e *Engine) Close() error {
	if !e.closed.CompareAndSwap(false, true) {
		return nil
	}
	e.lane.close()
	return nil
}

func validateRequest(tier Tier, req Request) error {
	if _, err := ParseTier(string(tier)); err != nil {
		return err
	}
	if _, err := ParseInputMode(string(req.InputMode)); err != nil {
		return err
	}
	if _, err := ParseAPIMode(string(req.APIMode)); err != nil {
		return err
	}
	return nil
}
