// Package logger wraps zerolog with request-scoped fields carried on the
// context, so handlers, services and workers log with the same tags.
package logger

import (
	"context"
	"io"
	"os"
	"runtime/debug"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/supserrr/vevurn-sub002/pkg/env"
)

// Options configures New. Level is a level name as accepted by ParseLevel,
// so the zero value logs at info. Output defaults to stdout; LOG_FORMAT=console
// switches to the human-readable writer.
type Options struct {
	ServiceName string
	Level       string
	WarnStack   bool
	Output      io.Writer
}

type Logger struct {
	root      zerolog.Logger
	warnStack bool
}

type scopeKey struct{}

func New(opts Options) *Logger {
	level := ParseLevel(opts.Level)
	out := opts.Output
	if out == nil {
		out = os.Stdout
	}
	if strings.EqualFold(env.Get("LOG_FORMAT", "json"), "console") {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: time.TimeOnly}
	}
	zerolog.TimeFieldFormat = time.RFC3339Nano

	root := zerolog.New(out).Level(level).With().
		Timestamp().
		Str("service", opts.ServiceName).
		Logger()
	return &Logger{root: root, warnStack: opts.WarnStack}
}

// Nop discards everything.
func Nop() *Logger {
	return &Logger{root: zerolog.Nop()}
}

// ParseLevel maps a configured level name onto zerolog, falling back to info.
func ParseLevel(value string) zerolog.Level {
	lvl, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(value)))
	if err != nil || lvl == zerolog.NoLevel {
		return zerolog.InfoLevel
	}
	return lvl
}

func (l *Logger) scoped(ctx context.Context) zerolog.Logger {
	if ctx != nil {
		if zl, ok := ctx.Value(scopeKey{}).(zerolog.Logger); ok {
			return zl
		}
	}
	return l.root
}

func (l *Logger) with(ctx context.Context, add func(zerolog.Context) zerolog.Context) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, scopeKey{}, add(l.scoped(ctx).With()).Logger())
}

func (l *Logger) WithField(ctx context.Context, key string, value any) context.Context {
	return l.with(ctx, func(c zerolog.Context) zerolog.Context { return c.Interface(key, value) })
}

func (l *Logger) WithFields(ctx context.Context, fields map[string]any) context.Context {
	return l.with(ctx, func(c zerolog.Context) zerolog.Context { return c.Fields(fields) })
}

func (l *Logger) WithRequestID(ctx context.Context, id string) context.Context {
	return l.WithField(ctx, "request_id", id)
}

func (l *Logger) WithUserID(ctx context.Context, id string) context.Context {
	return l.WithField(ctx, "user_id", id)
}

func (l *Logger) WithActorRole(ctx context.Context, role string) context.Context {
	return l.WithField(ctx, "actor_role", role)
}

// WithCashierID tags entries produced while serving a register.
func (l *Logger) WithCashierID(ctx context.Context, id string) context.Context {
	return l.WithField(ctx, "cashier_id", id)
}

func (l *Logger) WithSaleID(ctx context.Context, id string) context.Context {
	return l.WithField(ctx, "sale_id", id)
}

func (l *Logger) Debug(ctx context.Context, msg string) {
	zl := l.scoped(ctx)
	zl.Debug().Msg(msg)
}

func (l *Logger) Info(ctx context.Context, msg string) {
	zl := l.scoped(ctx)
	zl.Info().Msg(msg)
}

// Warn attaches a stack only when the logger was built with WarnStack.
func (l *Logger) Warn(ctx context.Context, msg string) {
	zl := l.scoped(ctx)
	ev := zl.Warn()
	if l.warnStack {
		ev = ev.Str("stack", stack())
	}
	ev.Msg(msg)
}

// Error always carries a stack.
func (l *Logger) Error(ctx context.Context, msg string, err error) {
	zl := l.scoped(ctx)
	zl.Error().Err(err).Str("stack", stack()).Msg(msg)
}

func stack() string {
	return strings.TrimSpace(string(debug.Stack()))
}
