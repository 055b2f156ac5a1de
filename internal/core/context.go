package core

import "context"

type contextKey string

const ctxKeyRequestMetadata contextKey = "request_metadata"

// RequestMetadata identifies the client behind an operation in the audit log.
type RequestMetadata struct {
	IPAddress string
	UserAgent string
}

// ContextWithRequestMetadata attaches client metadata for audit logging.
func ContextWithRequestMetadata(ctx context.Context, md RequestMetadata) context.Context {
	return context.WithValue(ctx, ctxKeyRequestMetadata, md)
}

// RequestMetadataFrom extracts client metadata from ctx. The zero value is
// returned when none was attached.
func RequestMetadataFrom(ctx context.Context) RequestMetadata {
	md, _ := ctx.Value(ctxKeyRequestMetadata).(RequestMetadata)
	return md
}
