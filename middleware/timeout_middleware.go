package middleware

import (
	"context"
	"time"

	"mini-xmlrpc/message"
)

const ErrMsgTimeout = "system error. request timed out"

func TimeOutMiddleware(timeout time.Duration) Middleware {
	return func(next HandlerFunc) HandlerFunc {
		return func(ctx context.Context, req *message.Message) *message.Message {
			ctx, cancel := context.WithTimeout(ctx, timeout)
			defer cancel()

			done := make(chan *message.Message, 1)
			go func() {
				done <- next(ctx, req)
			}()

			select {
			case resp := <-done:
				return resp
			case <-ctx.Done():
				return message.NewFaultResponse(message.NewFault(message.ErrCodeSystem, ErrMsgTimeout))
			}
		}
	}
}
