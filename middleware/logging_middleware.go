package middleware

import (
	"context"
	"time"

	"go.uber.org/zap"

	"mini-xmlrpc/message"
)

func LoggingMiddleware(logger *zap.Logger) Middleware {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(next HandlerFunc) HandlerFunc {
		return func(ctx context.Context, req *message.Message) *message.Message {
			start := time.Now()
			resp := next(ctx, req)
			fields := []zap.Field{
				zap.String("method", req.MethodName),
				zap.Int("params", len(req.Params)),
				zap.Duration("duration", time.Since(start)),
			}
			if resp != nil && resp.Fault != nil {
				logger.Warn("xmlrpc call failed", append(fields,
					zap.Int("fault_code", resp.Fault.Code),
					zap.String("fault_string", resp.Fault.Message))...)
				return resp
			}
			logger.Info("xmlrpc call", fields...)
			return resp
		}
	}
}
