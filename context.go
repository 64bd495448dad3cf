package goSession

import "context"

type clientIPContextKey struct{}

// WithClientIP attaches the caller's IP address to ctx. The engine copies it
// into audit events.
func WithClientIP(ctx context.Context, ip string) context.Context {
	return context.WithValue(ctx, clientIPContextKey{}, ip)
}

func clientIPFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}

	ip, _ := ctx.Value(clientIPContextKey{}).(string)
	return ip
}

// ClientIPFromContext returns the address set by WithClientIP.
func ClientIPFromContext(ctx context.Context) (string, bool) {
	ip := clientIPFromContext(ctx)
	return ip, ip != ""
}
