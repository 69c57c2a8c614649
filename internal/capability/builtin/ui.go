package builtin

import (
	"context"

	"github.com/dop251/goja"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/AgentOS/scriptbox/internal/capability"
)

// Notifier is the host's modal and notification surface.
type Notifier interface {
	Notify(ctx context.Context, level, message string) error
	Confirm(ctx context.Context, title, message string) (bool, error)
	Prompt(ctx context.Context, title, placeholder string) (string, error)
}

// UI returns modal helpers. notice is fire-and-forget; confirm and prompt
// return promises that settle when the host answers.
func UI(n Notifier) capability.Binder {
	return func(scope capability.Scope) any {
		return map[string]any{
			"notice": func(message string) error {
				return n.Notify(scope.Context(), "info", message)
			},
			"warn": func(message string) error {
				return n.Notify(scope.Context(), "warn", message)
			},
			"confirm": func(title, message string) goja.Value {
				return scope.Async(func(ctx context.Context) (any, error) {
					return n.Confirm(ctx, title, message)
				})
			},
			"prompt": func(title string, placeholder ...string) goja.Value {
				hint := ""
				if len(placeholder) > 0 {
					hint = placeholder[0]
				}
				return scope.Async(func(ctx context.Context) (any, error) {
					return n.Prompt(ctx, title, hint)
				})
			},
		}
	}
}

// DiscardNotifier drops notices and declines every modal.
type DiscardNotifier struct{}

func (DiscardNotifier) Notify(context.Context, string, string) error { return nil }

func (DiscardNotifier) Confirm(context.Context, string, string) (bool, error) { return false, nil }

func (DiscardNotifier) Prompt(context.Context, string, string) (string, error) { return "", nil }

// LogNotifier surfaces notices through zap for headless hosts.
type LogNotifier struct {
	Logger *zap.Logger
}

// Notify logs the message at the requested level
func (l LogNotifier) Notify(_ context.Context, level, message string) error {
	switch level {
	case "warn":
		l.Logger.Warn("Script notice", zap.String("message", message))
	case "error":
		l.Logger.Error("Script notice", zap.String("message", message))
	default:
		l.Logger.Info("Script notice", zap.String("message", message))
	}
	return nil
}

// Confirm logs the request and declines
func (l LogNotifier) Confirm(_ context.Context, title, message string) (bool, error) {
	l.Logger.Info("Script confirm declined (headless)", zap.String("title", title), zap.String("message", message))
	return false, nil
}

// Prompt logs the request and answers with an empty string
func (l LogNotifier) Prompt(_ context.Context, title, _ string) (string, error) {
	l.Logger.Info("Script prompt unanswered (headless)", zap.String("title", title))
	return "", nil
}
