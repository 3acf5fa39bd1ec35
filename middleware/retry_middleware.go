package middleware

import (
	"context"
	"time"

	"go.uber.org/zap"

	"mini-xmlrpc/message"
)

// RetryMiddleware re-sends a call that failed with a transport fault,
// doubling the delay after each attempt. Other faults return immediately.
func RetryMiddleware(maxRetries int, baseDelay time.Duration, logger *zap.Logger) Middleware {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(next HandlerFunc) HandlerFunc {
		return func(ctx context.Context, req *message.Message) *message.Message {
			resp := next(ctx, req)
			for i := 0; i < maxRetries; i++ {
				if !retryable(resp) {
					return resp
				}
				logger.Debug("retrying xmlrpc call",
					zap.String("method", req.MethodName),
					zap.Int("attempt", i+1),
					zap.String("fault_string", resp.Fault.Message))

				timer := time.NewTimer(baseDelay * time.Duration(1<<i)) // Exponential backoff
				select {
				case <-ctx.Done():
					timer.Stop()
					return resp
				case <-timer.C:
				}
				resp = next(ctx, req)
			}
			return resp // Return last response after retries
		}
	}
}

func retryable(resp *message.Message) bool {
	return resp != nil && resp.Fault != nil && resp.Fault.Code == message.ErrCodeTransport
}
