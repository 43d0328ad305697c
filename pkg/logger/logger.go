// Package logger provides the process-wide structured logger built on log/slog.
//
// WithCtx returns a logger tagged with the operation id carried in ctx, so
// every line written while handling one register/update/delete call can be
// correlated:
//
//	log := logger.WithCtx(ctx)
//	log.Info("customer updated", "customer_id", c.ID, "version", c.Version)
package logger

import (
	"context"
	"log/slog"
	"os"
	"sync"

	"github.com/shashiranjanraj/shop/config"
	"github.com/shashiranjanraj/shop/pkg/reqid"
)

var (
	L *slog.Logger

	mu        sync.Mutex
	mongoSink *MongoHandler
)

func init() {
	L = slog.New(baseHandler(config.AppEnv()))
	slog.SetDefault(L)
}

func baseHandler(env string) slog.Handler {
	switch env {
	case "production", "prod":
		return slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo})
	case "testing", "test":
		return slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn})
	default:
		return slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug})
	}
}

// EnableMongo fans every record out to a MongoDB collection in addition to
// stdout. Call Close on shutdown to flush the sink.
func EnableMongo(uri, database string) error {
	h, err := NewMongoHandler(uri, database, "logs")
	if err != nil {
		return err
	}

	mu.Lock()
	defer mu.Unlock()
	mongoSink = h
	L = slog.New(NewMultiHandler(baseHandler(config.AppEnv()), h))
	slog.SetDefault(L)
	return nil
}

// Close flushes and disconnects the MongoDB sink, if any.
func Close() {
	mu.Lock()
	h := mongoSink
	if h != nil {
		mongoSink = nil
		L = slog.New(baseHandler(config.AppEnv()))
		slog.SetDefault(L)
	}
	mu.Unlock()
	if h != nil {
		h.Close()
	}
}

type ctxKey struct{}

// WithCtx returns a logger for ctx: an injected logger if present, otherwise
// the base logger tagged with the operation id.
func WithCtx(ctx context.Context) *slog.Logger {
	if ctx == nil {
		return L
	}
	if log, ok := ctx.Value(ctxKey{}).(*slog.Logger); ok && log != nil {
		return log
	}
	if id := reqid.FromCtx(ctx); id != "" {
		return L.With(reqid.LogKey, id)
	}
	return L
}

// InjectLogger stores log into ctx for WithCtx to pick up.
func InjectLogger(ctx context.Context, log *slog.Logger) context.Context {
	return context.WithValue(ctx, ctxKey{}, log)
}

// Debug logs at DEBUG level.
func Debug(msg string, args ...any) { L.Debug(msg, args...) }

// Info logs at INFO level.
func Info(msg string, args ...any) { L.Info(msg, args...) }

// Warn logs at WARN level.
func Warn(msg string, args ...any) { L.Warn(msg, args...) }

// Error logs at ERROR level.
func Error(msg string, args ...any) { L.Error(msg, args...) }
