// Package reqid generates operation ids and carries them through context.
//
// Each customer operation (register, update, delete, attach) runs under one
// id; logger.WithCtx tags every line with it, and the background attachment
// write inherits the id of the call that scheduled it.
package reqid

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"net/http"
)

type ctxKey struct{}

// Header is the HTTP header used to propagate the id on the ops endpoints.
const Header = "X-Request-ID"

// LogKey is the attribute name under which the id is logged.
const LogKey = "op_id"

// New generates a random 16-byte (32 hex char) id.
func New() string {
	b := make([]byte, 16)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}

// WithValue stores id in ctx and returns the new context.
func WithValue(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, ctxKey{}, id)
}

// FromCtx extracts the id from ctx, or "" if none is present.
func FromCtx(ctx context.Context) string {
	if id, ok := ctx.Value(ctxKey{}).(string); ok {
		return id
	}
	return ""
}

// Ensure returns ctx unchanged when it already carries an id, otherwise a
// child context with a fresh one.
func Ensure(ctx context.Context) context.Context {
	if FromCtx(ctx) != "" {
		return ctx
	}
	return WithValue(ctx, New())
}

// Detach returns a background context that keeps only the id of ctx. Work
// scheduled after a call returns uses it so cancellation of the caller does
// not abort the work while logs stay correlated.
func Detach(ctx context.Context) context.Context {
	if id := FromCtx(ctx); id != "" {
		return WithValue(context.Background(), id)
	}
	return context.Background()
}

// Middleware reuses an upstream X-Request-ID or generates one, echoes it in
// the response and stores it in the request context.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(Header)
		if id == "" {
			id = New()
		}
		w.Header().Set(Header, id)
		next.ServeHTTP(w, r.WithContext(WithValue(r.Context(), id)))
	})
}
