package common

import (
	"context"
	"net/http"
	"strings"
)

type ctxKey string

const clientNameKey ctxKey = "client/display-name"

// ClientHeader carries the client display name resolved by the upstream gateway.
const ClientHeader = "X-Client-Name"

// WithClientName stores the resolved client display name on the provided context.
func WithClientName(ctx context.Context, name string) context.Context {
	return context.WithValue(ctx, clientNameKey, name)
}

// ClientName extracts the client display name from the context if present.
func ClientName(ctx context.Context) (string, bool) {
	v := ctx.Value(clientNameKey)
	if v == nil {
		return "", false
	}
	name, ok := v.(string)
	if !ok || strings.TrimSpace(name) == "" {
		return "", false
	}
	return name, true
}

// ClientIdentity copies the gateway-provided client header into the request context.
func ClientIdentity(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if name := strings.TrimSpace(r.Header.Get(ClientHeader)); name != "" {
			r = r.WithContext(WithClientName(r.Context(), name))
		}
		next.ServeHTTP(w, r)
	})
}
