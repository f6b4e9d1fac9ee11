package observability

import (
	"context"
	"fmt"

	"go.uber.org/zap"
)

// FlushTelemetry drains exported spans and log buffers before process exit.
// Call during graceful shutdown after in-flight requests have drained.
func FlushTelemetry(ctx context.Context, logger *zap.Logger, shutdownTracing func(context.Context) error) error {
	var firstErr error
	if shutdownTracing != nil {
		if err := shutdownTracing(ctx); err != nil {
			firstErr = fmt.Errorf("flush traces: %w", err)
		}
	}
	if logger != nil {
		// Sync on stderr returns EINVAL/ENOTTY on some platforms; only report it if nothing else failed.
		if err := logger.Sync(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("flush logs: %w", err)
		}
	}
	return firstErr
}
