package sandbox

import (
	"context"
	"errors"
	"fmt"

	"github.com/dop251/goja"

	"github.com/GriffinCanCode/AgentOS/scriptbox/internal/compiler"
)

// ErrorKind tags a failed Result. The Error text carries the same
// information; Kind is additive.
type ErrorKind string

const (
	KindValidation  ErrorKind = "validation"
	KindRuntime     ErrorKind = "runtime"
	KindTimeout     ErrorKind = "timeout"
	KindLoadFailure ErrorKind = "load_failure"
	KindProtocol    ErrorKind = "protocol"
	KindCanceled    ErrorKind = "canceled"
)

// Sentinel errors for error classification.
var (
	ErrValidation  = errors.New("validation error")
	ErrRuntime     = errors.New("runtime error")
	ErrTimeout     = errors.New("Timeout")
	ErrLoadFailure = errors.New("load failure")
	ErrProtocol    = errors.New("protocol error")
	ErrCanceled    = errors.New("Canceled")
	ErrClosed      = errors.New("engine is closed")
)

var kindSentinels = map[ErrorKind]error{
	KindValidation:  ErrValidation,
	KindRuntime:     ErrRuntime,
	KindTimeout:     ErrTimeout,
	KindLoadFailure: ErrLoadFailure,
	KindProtocol:    ErrProtocol,
	KindCanceled:    ErrCanceled,
}

// Error is a classified execution failure. Message is exactly the text
// callers see in Result.Error.
type Error struct {
	Kind    ErrorKind
	Message string
	Err     error
}

// Error returns the caller-visible message
func (e *Error) Error() string {
	return e.Message
}

// Unwrap returns the underlying error for use with errors.Is and errors.As.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches the sentinel for this error's kind.
func (e *Error) Is(target error) bool {
	return kindSentinels[e.Kind] == target
}

func timeoutError() *Error {
	return &Error{Kind: KindTimeout, Message: "Timeout"}
}

func canceledError() *Error {
	return &Error{Kind: KindCanceled, Message: "Canceled"}
}

func loadFailure(format string, args ...any) *Error {
	return &Error{Kind: KindLoadFailure, Message: "LoadFailure: " + fmt.Sprintf(format, args...)}
}

func protocolError(format string, args ...any) *Error {
	return &Error{Kind: KindProtocol, Message: "ProtocolError: " + fmt.Sprintf(format, args...)}
}

// contextError maps a finished context to Timeout or Canceled
func contextError(ctx context.Context) *Error {
	if errors.Is(ctx.Err(), context.Canceled) {
		return canceledError()
	}
	return timeoutError()
}

// classify turns any error raised while loading or running a unit into an
// *Error.
func classify(err error) *Error {
	var e *Error
	if errors.As(err, &e) {
		return e
	}

	var verr *compiler.ValidationError
	if errors.As(err, &verr) {
		return &Error{Kind: KindValidation, Message: verr.Error(), Err: err}
	}

	var interrupted *goja.InterruptedError
	if errors.As(err, &interrupted) {
		if inner, ok := interrupted.Value().(*Error); ok {
			return inner
		}
		return timeoutError()
	}

	var exception *goja.Exception
	if errors.As(err, &exception) {
		return &Error{Kind: KindRuntime, Message: exceptionText(exception.Value()), Err: err}
	}

	return &Error{Kind: KindRuntime, Message: err.Error(), Err: err}
}

// rejection builds the error for a rejected snippet promise
func rejection(reason goja.Value) *Error {
	return &Error{Kind: KindRuntime, Message: exceptionText(reason)}
}

// exceptionText is the string form of a thrown value
func exceptionText(v goja.Value) (text string) {
	defer func() {
		if r := recover(); r != nil {
			text = "Uncaught exception"
		}
	}()

	if v == nil || goja.IsUndefined(v) {
		return "undefined"
	}
	return v.String()
}

// failure builds a failed Result from err
func failure(err error, logs []string) Result {
	e := classify(err)
	if logs == nil {
		logs = []string{}
	}
	return Result{OK: false, Error: e.Message, Kind: e.Kind, Logs: logs}
}
