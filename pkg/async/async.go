package async

import (
	"context"
	"runtime/debug"
	"time"

	"github.com/sankofa/delivery-geo/pkg/logger"
	"go.uber.org/zap"
)

// Go runs a function in a goroutine with correlation-ID propagation and
// panic recovery. This is the recommended way to start fire-and-forget work.
func Go(ctx context.Context, taskName string, fn func(ctx context.Context)) {
	correlationID := logger.CorrelationIDFromContext(ctx)
	start := time.Now()

	go func() {
		taskCtx := context.Background()
		if correlationID != "" {
			taskCtx = logger.ContextWithCorrelationID(taskCtx, correlationID)
		}

		defer func() {
			if r := recover(); r != nil {
				logger.ErrorContext(taskCtx, "async task panicked",
					zap.String("task", taskName),
					zap.Any("panic", r),
					zap.String("stack", string(debug.Stack())),
				)
			}
		}()

		fn(taskCtx)

		logger.DebugContext(taskCtx, "async task completed",
			zap.String("task", taskName),
			zap.Duration("duration", time.Since(start)),
		)
	}()
}
