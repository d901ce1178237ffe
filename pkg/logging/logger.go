// Package logging gives every store and adapter call a context-carried
// *logrus.Entry already tagged with the ImmAgent operation it's running
// inside, so a call three layers deep logs with the same "operation"
// field its caller set without repeating a WithField of its own.
package logging

import (
	"context"
	"io"
	"time"

	"github.com/sirupsen/logrus"
)

type loggerKey struct{}

// L is the fallback entry used wherever a context carries no logger —
// at process startup, and in tests that never call WithLogger.
var L = logrus.NewEntry(newLogger())

// G retrieves the logger entry attached to ctx, falling back to L.
func G(ctx context.Context) *logrus.Entry {
	if l, ok := ctx.Value(loggerKey{}).(*logrus.Entry); ok {
		return l
	}
	return L.WithContext(ctx)
}

// WithLogger attaches logger to ctx, replacing any logger already there.
func WithLogger(ctx context.Context, logger *logrus.Entry) context.Context {
	return context.WithValue(ctx, loggerKey{}, logger.WithContext(ctx))
}

// WithOperation tags ctx's logger with the name of the running operation
// (advance, save_bundle, mcp_call, completion). Engine.Advance,
// PGStore.SaveBundle, MCPToolProvider.Execute and AnthropicProvider.Complete
// call this once at their top instead of each downstream log line
// repeating the tag itself.
func WithOperation(ctx context.Context, op string) context.Context {
	return WithLogger(ctx, G(ctx).WithField("operation", op))
}

func newLogger() *logrus.Logger {
	l := logrus.New()
	l.Formatter = textFormatter()
	return l
}

func textFormatter() logrus.Formatter {
	return &logrus.TextFormatter{TimestampFormat: time.RFC3339Nano, FullTimestamp: true}
}

func jsonFormatter() logrus.Formatter {
	return &logrus.JSONFormatter{
		FieldMap: logrus.FieldMap{
			logrus.FieldKeyTime:  "timestamp",
			logrus.FieldKeyLevel: "logLevel",
			logrus.FieldKeyMsg:   "message",
		},
		TimestampFormat: time.RFC3339Nano,
	}
}

// Configure applies level, format ("text" or "json"), and output
// destination to the fallback logger L in one call — the knobs a process
// entrypoint reads once at startup, not spread across three setters.
func Configure(level, format string, out io.Writer) error {
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		return err
	}
	L.Logger.SetLevel(lvl)

	if format == "json" {
		L.Logger.Formatter = jsonFormatter()
	} else {
		L.Logger.Formatter = textFormatter()
	}

	if out != nil {
		L.Logger.SetOutput(out)
	}
	return nil
}
