package sandbox

import (
	"strings"
	"sync"

	"github.com/bytedance/sonic"
	"github.com/dop251/goja"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/AgentOS/scriptbox/internal/serialize"
)

var consoleLevels = []string{"log", "info", "warn", "error", "debug"}

// Sink receives snippet console output
type Sink interface {
	Write(level, message string)
}

// Capture collects console output in emission order until sealed
type Capture struct {
	mu     sync.Mutex
	lines  []string
	sealed bool
	done   chan struct{}
}

// NewCapture creates an empty capture
func NewCapture() *Capture {
	return &Capture{lines: []string{}, done: make(chan struct{})}
}

// Done is closed once the capture is sealed
func (c *Capture) Done() <-chan struct{} {
	return c.done
}

// Write records one line; "log" lines are stored bare, others get a level prefix
func (c *Capture) Write(level, message string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.sealed {
		return
	}
	if level != "log" {
		message = "[" + level + "] " + message
	}
	c.lines = append(c.lines, message)
}

// Lines returns a copy of the captured lines
func (c *Capture) Lines() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string{}, c.lines...)
}

// Seal stops recording and returns the final lines. Output produced after a
// result has been delivered must not change it.
func (c *Capture) Seal() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.sealed {
		c.sealed = true
		close(c.done)
	}
	return append([]string{}, c.lines...)
}

// LoggerSink forwards console output to zap. It is the shared runtime's sink
// whenever no capture is active.
type LoggerSink struct {
	Logger *zap.Logger
}

// Write logs the message at debug with its console level
func (s LoggerSink) Write(level, message string) {
	s.Logger.Debug("Script console", zap.String("level", level), zap.String("message", message))
}

// installConsole binds log() and console.* to whatever sink returns at call
// time.
func installConsole(vm *goja.Runtime, sink func() Sink) error {
	emit := func(level string) func(goja.FunctionCall) goja.Value {
		return func(call goja.FunctionCall) goja.Value {
			s := sink()
			var done <-chan struct{}
			if d, ok := s.(interface{ Done() <-chan struct{} }); ok {
				done = d.Done()
			}
			s.Write(level, formatArgs(vm, call.Arguments, done))
			return goja.Undefined()
		}
	}

	console := vm.NewObject()
	for _, level := range consoleLevels {
		if err := console.Set(level, emit(level)); err != nil {
			return err
		}
	}
	if err := vm.Set("console", console); err != nil {
		return err
	}
	return vm.Set("log", emit("log"))
}

// formatArgs joins arguments with spaces. Strings are used as is; objects
// are rendered as JSON through the serialization boundary, which gives up
// once done is closed.
func formatArgs(vm *goja.Runtime, args []goja.Value, done <-chan struct{}) string {
	parts := make([]string, 0, len(args))
	for _, arg := range args {
		parts = append(parts, formatArg(vm, arg, done))
	}
	return strings.Join(parts, " ")
}

func formatArg(vm *goja.Runtime, arg goja.Value, done <-chan struct{}) string {
	obj, ok := arg.(*goja.Object)
	if !ok {
		return exceptionText(arg)
	}
	if _, isFn := goja.AssertFunction(obj); isFn {
		return "[Function]"
	}
	if obj.ClassName() == "Error" {
		return exceptionText(obj)
	}

	text, err := sonic.ConfigStd.MarshalToString(serialize.New(vm).WithDone(done).Value(obj))
	if err != nil {
		return exceptionText(obj)
	}
	return text
}
