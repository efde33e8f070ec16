package domain

import "context"

// ContextKey is a type for context keys to avoid magic strings
type ContextKey string

const (
	// ContextKeyRequestID is the key for the request ID in the context
	ContextKeyRequestID ContextKey = "request_id"
	// ContextKeyClientIP is the key for the caller address in the context
	ContextKeyClientIP ContextKey = "client_ip"
	// ContextKeySubject is the key for the authenticated operator in the context
	ContextKeySubject ContextKey = "sub"
	// ContextKeyRoles is the key for the operator roles in the context
	ContextKeyRoles ContextKey = "roles"
)

// WithRequestID adds the request ID to the context
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, ContextKeyRequestID, requestID)
}

// WithClientIP adds the caller address to the context
func WithClientIP(ctx context.Context, ip string) context.Context {
	return context.WithValue(ctx, ContextKeyClientIP, ip)
}

// WithSubject adds the operator subject to the context
func WithSubject(ctx context.Context, subject string) context.Context {
	return context.WithValue(ctx, ContextKeySubject, subject)
}

// WithRoles adds the operator roles to the context
func WithRoles(ctx context.Context, roles []string) context.Context {
	return context.WithValue(ctx, ContextKeyRoles, roles)
}

// GetRequestID retrieves the request ID from the context
func GetRequestID(ctx context.Context) (string, bool) {
	requestID, ok := ctx.Value(ContextKeyRequestID).(string)
	return requestID, ok && requestID != ""
}

// GetClientIP retrieves the caller address from the context
func GetClientIP(ctx context.Context) (string, bool) {
	ip, ok := ctx.Value(ContextKeyClientIP).(string)
	return ip, ok && ip != ""
}

// GetSubject retrieves the operator subject from the context
func GetSubject(ctx context.Context) (string, bool) {
	subject, ok := ctx.Value(ContextKeySubject).(string)
	return subject, ok
}

// GetRoles retrieves the operator roles from the context
func GetRoles(ctx context.Context) ([]string, bool) {
	roles, ok := ctx.Value(ContextKeyRoles).([]string)
	return roles, ok
}
