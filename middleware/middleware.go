// Package middleware wraps call dispatch in an onion of handlers.
//
// The same HandlerFunc shape serves both ends: on the server it wraps method
// dispatch, on the client it wraps the encode → transport → decode round trip.
// A handler always answers with a Message; failures travel as fault Messages.
package middleware

import (
	"context"

	"mini-xmlrpc/message"
)

type HandlerFunc func(ctx context.Context, req *message.Message) *message.Message

type Middleware func(next HandlerFunc) HandlerFunc

// Chain 将多个中间件组合成一个中间件
func Chain(middlewares ...Middleware) Middleware {
	return func(next HandlerFunc) HandlerFunc {
		for i := len(middlewares) - 1; i >= 0; i-- {
			next = middlewares[i](next)
		}
		return next
	}
}
