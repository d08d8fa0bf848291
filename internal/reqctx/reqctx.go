// Package reqctx carries request-scoped correlation values through
// context.Context so logging and audit writes can pick them up without
// threading extra parameters.
package reqctx

import (
	"context"
	"strings"
)

type contextKey string

const (
	requestIDKey    contextKey = "request_id"
	tenantIDKey     contextKey = "tenant_id"
	ipAddressKey    contextKey = "ip_address"
	userAgentKey    contextKey = "user_agent"
	strippedModeKey contextKey = "stripped_mode"
)

func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDKey, strings.TrimSpace(requestID))
}

func RequestIDFromContext(ctx context.Context) string {
	return stringFromContext(ctx, requestIDKey)
}

func WithTenantID(ctx context.Context, tenantID string) context.Context {
	return context.WithValue(ctx, tenantIDKey, strings.TrimSpace(tenantID))
}

func TenantIDFromContext(ctx context.Context) string {
	return stringFromContext(ctx, tenantIDKey)
}

func WithIPAddress(ctx context.Context, ip string) context.Context {
	return context.WithValue(ctx, ipAddressKey, strings.TrimSpace(ip))
}

func IPAddressFromContext(ctx context.Context) string {
	return stringFromContext(ctx, ipAddressKey)
}

func WithUserAgent(ctx context.Context, userAgent string) context.Context {
	return context.WithValue(ctx, userAgentKey, strings.TrimSpace(userAgent))
}

func UserAgentFromContext(ctx context.Context) string {
	return stringFromContext(ctx, userAgentKey)
}

func WithStrippedMode(ctx context.Context, stripped bool) context.Context {
	return context.WithValue(ctx, strippedModeKey, stripped)
}

func StrippedModeFromContext(ctx context.Context) bool {
	if ctx == nil {
		return false
	}
	value, _ := ctx.Value(strippedModeKey).(bool)
	return value
}

func stringFromContext(ctx context.Context, key contextKey) string {
	if ctx == nil {
		return ""
	}
	value, _ := ctx.Value(key).(string)
	return value
}
