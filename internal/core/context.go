package core

import "context"

type clientInfoKey struct{}

// ClientInfo identifies where an import came from. It is recorded in the
// audit log.
type ClientInfo struct {
	IPAddress string
	UserAgent string
}

// WithClientInfo returns a copy of ctx carrying info.
func WithClientInfo(ctx context.Context, info ClientInfo) context.Context {
	return context.WithValue(ctx, clientInfoKey{}, info)
}

// ClientInfoFromContext returns the ClientInfo stored in ctx, or the zero
// value.
func ClientInfoFromContext(ctx context.Context) ClientInfo {
	info, _ := ctx.Value(clientInfoKey{}).(ClientInfo)
	return info
}
