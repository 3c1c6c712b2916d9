package middlewares

import (
	"context"

	"github.com/dropDatabas3/horizonauth/internal/session"
)

type ctxKey string

const (
	ctxRequestIDKey ctxKey = "request_id"
	ctxSessionKey   ctxKey = "session"
)

func setRequestID(ctx context.Context, rid string) context.Context {
	return context.WithValue(ctx, ctxRequestIDKey, rid)
}

// GetRequestID obtiene el request ID del contexto.
func GetRequestID(ctx context.Context) string {
	if v, ok := ctx.Value(ctxRequestIDKey).(string); ok {
		return v
	}
	return ""
}

// WithSession inyecta la sesión validada.
func WithSession(ctx context.Context, d *session.Data) context.Context {
	return context.WithValue(ctx, ctxSessionKey, d)
}

// GetSession retorna la sesión o nil si RequireSession no se aplicó.
func GetSession(ctx context.Context) *session.Data {
	d, _ := ctx.Value(ctxSessionKey).(*session.Data)
	return d
}
