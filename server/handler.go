package server

import (
	"context"

	"mini-xmlrpc/value"
)

// Handler is the target of one registered method.
//
// args is the native form of the call's params (see value.Value.Native): the
// single param itself when the call carries exactly one, otherwise a []any
// holding all of them. The result is wrapped with value.FromNative; returning
// a *message.Fault (or an error wrapping one) sends that fault verbatim.
type Handler interface {
	Invoke(ctx context.Context, args any) (any, error)
}

type HandlerFunc func(ctx context.Context, args any) (any, error)

func (f HandlerFunc) Invoke(ctx context.Context, args any) (any, error) {
	return f(ctx, args)
}

// valueHandler is implemented by built-ins that need the decoded params
// untouched rather than their native form.
type valueHandler interface {
	invokeValues(ctx context.Context, params []value.Value) (any, error)
}
