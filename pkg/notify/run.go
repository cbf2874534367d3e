package notify

import (
	"context"

	"go.uber.org/zap"

	"github.com/telekom/go-mail-me/pkg/config"
)

type loggerKey struct{}

// WithLogger returns a ctx carrying the given logger.
func WithLogger(ctx context.Context, logger *zap.SugaredLogger) context.Context {
	return context.WithValue(ctx, loggerKey{}, logger)
}

// LoggerFromContext returns the scope logger installed by Run/RunValue, or
// the global sugared logger when the ctx carries none.
func LoggerFromContext(ctx context.Context) *zap.SugaredLogger {
	if l, ok := ctx.Value(loggerKey{}).(*zap.SugaredLogger); ok {
		return l
	}
	return zap.S()
}

// Run executes task inside a notification scope: the outcome is mailed
// before the task's error is returned. The task receives a ctx carrying the
// scope logger so its log output can be attached to the notification.
func Run(ctx context.Context, logger *zap.SugaredLogger, opts config.Options, task func(context.Context) error) error {
	return New(logger, opts).Run(ctx, task)
}

// RunValue is Run for tasks that return a value. On success the value is
// included in the notification's summary.
func RunValue[T any](ctx context.Context, logger *zap.SugaredLogger, opts config.Options, task func(context.Context) (T, error)) (T, error) {
	return RunValueOn(ctx, New(logger, opts), task)
}

// Run executes task inside a scope on this notifier. It is a thin adapter
// over the scoped core: Begin, run the task, deferred End.
func (n *Notifier) Run(ctx context.Context, task func(context.Context) error) (err error) {
	scope, berr := n.Begin(ctx)
	if berr != nil {
		return berr
	}
	defer scope.End(ctx, &err)

	err = task(WithLogger(ctx, scope.Logger()))
	return
}

// RunValueOn runs a value-returning task inside a scope on an existing
// notifier, so transport and template overrides apply. Generic methods are
// not a thing, hence the free function.
func RunValueOn[T any](ctx context.Context, n *Notifier, task func(context.Context) (T, error)) (val T, err error) {
	scope, berr := n.Begin(ctx)
	if berr != nil {
		err = berr
		return
	}
	defer scope.End(ctx, &err)

	val, err = task(WithLogger(ctx, scope.Logger()))
	if err == nil {
		scope.SetResult(val)
	}
	return
}
