package slogx

import (
	"context"
)

// SecurityEventKey tags log records that security tooling should alert on.
const SecurityEventKey = "security_event"

// Security logs a security event at WARN through the context logger. These
// are kept apart from ordinary auth failures so they can be routed
// separately.
func Security(ctx context.Context, event string, args ...any) {
	l := FromContext(ctx)
	attrs := append([]any{SecurityEventKey, event}, args...)
	l.WarnContext(ctx, event, attrs...)
}
