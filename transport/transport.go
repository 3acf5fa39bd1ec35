// Package transport moves encoded XML-RPC documents between a client and a
// server endpoint.
//
// A Transport sends one request document and hands back the response body:
//
//	Client ──Send(request)──→ Transport ──HTTP POST──→ Server
//	       ←─(ok, body)─────            ←─200 text/xml─
//
// ok is false for any non-2xx status; err is set only when no response was
// received at all.
package transport

import (
	"context"
	"io"
)

type Transport interface {
	// Send posts request and returns the response body. When ok is false or
	// err is non-nil, body is nil. The caller closes body.
	Send(ctx context.Context, request []byte) (ok bool, body io.ReadCloser, err error)
}

// Func adapts an ordinary function to Transport.
type Func func(ctx context.Context, request []byte) (bool, io.ReadCloser, error)

func (f Func) Send(ctx context.Context, request []byte) (bool, io.ReadCloser, error) {
	return f(ctx, request)
}

// CleanlyCloseBody drains and closes a response body so the underlying
// connection can be reused.
func CleanlyCloseBody(body io.ReadCloser) error {
	if body == nil {
		return nil
	}
	_, _ = io.Copy(io.Discard, body)
	return body.Close()
}
