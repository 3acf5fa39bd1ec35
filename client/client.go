// Package client calls XML-RPC methods on a remote server.
//
// Each call runs through the middleware onion around one round trip:
//
//	Call → Middleware Chain → encode methodCall → Transport.Send → decode methodResponse
//
// Every failure comes back as a fault: the server's own fault, -32300 when the
// request could not be delivered or the status was not 2xx, -32700 when the
// reply could not be parsed.
package client

import (
	"context"

	"go.uber.org/zap"

	"mini-xmlrpc/codec"
	"mini-xmlrpc/message"
	"mini-xmlrpc/middleware"
	"mini-xmlrpc/transport"
	"mini-xmlrpc/value"
)

const (
	errMsgOpenSocket = "transport error - could not open socket: %v"
	errMsgStatus     = "transport error - HTTP status code was not 200"
)

type Client struct {
	opts      options
	transport transport.Transport
	codec     *codec.XMLCodec
	handler   middleware.HandlerFunc
}

func New(t transport.Transport, opts ...Option) *Client {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	c := &Client{
		opts:      o,
		transport: t,
		codec:     &codec.XMLCodec{ChunkSize: o.chunkSize},
	}
	mws := o.middlewares
	if o.maxRetries > 0 {
		mws = append(mws, middleware.RetryMiddleware(o.maxRetries, o.retryDelay, o.logger))
	}
	c.handler = middleware.Chain(mws...)(c.roundTrip)
	return c
}

// Dial builds a client posting to cfg.HTTP.URL.
func Dial(cfg Config) (*Client, error) {
	t, err := transport.NewHTTPTransport(cfg.HTTP)
	if err != nil {
		return nil, err
	}
	opts := []Option{WithRetry(cfg.MaxRetries, cfg.RetryDelay)}
	if cfg.ChunkSize > 0 {
		opts = append(opts, WithChunkSize(cfg.ChunkSize))
	}
	if cfg.Logger != nil {
		opts = append(opts, WithLogger(cfg.Logger))
	}
	return New(t, opts...), nil
}

// Call invokes method with args converted by value.FromNative. A fault reply
// is returned as a *message.Fault error.
func (c *Client) Call(ctx context.Context, method string, args ...any) (value.Value, error) {
	resp := c.Do(ctx, message.NewCall(method, args...))
	if resp.Fault != nil {
		return value.Value{}, resp.Fault
	}
	return resp.Result(), nil
}

// Query is Call returning a Result that can be inspected without errors.As.
func (c *Client) Query(ctx context.Context, method string, args ...any) *Result {
	return newResult(c.Do(ctx, message.NewCall(method, args...)))
}

// Do sends a prepared call message and returns the response or fault message.
func (c *Client) Do(ctx context.Context, req *message.Message) *message.Message {
	resp := c.handler(ctx, req)
	if resp == nil {
		return message.NewFaultResponse(message.NewFault(message.ErrCodeInternal, "client error. no response"))
	}
	return resp
}

// roundTrip is the innermost handler wrapped by the middleware chain.
func (c *Client) roundTrip(ctx context.Context, req *message.Message) *message.Message {
	payload, err := c.codec.Encode(req)
	if err != nil {
		return message.NewFaultResponse(message.NewFault(message.ErrCodeInvalidRequest, "client error. %v", err))
	}

	ok, body, err := c.transport.Send(ctx, payload)
	// a misbehaving transport may hand back a body alongside a failure
	defer transport.CleanlyCloseBody(body)
	if err != nil {
		c.opts.logger.Debug("transport failed", zap.String("method", req.MethodName), zap.Error(err))
		return message.NewFaultResponse(message.NewFault(message.ErrCodeTransport, errMsgOpenSocket, err))
	}
	if !ok {
		return message.NewFaultResponse(message.NewFault(message.ErrCodeTransport, errMsgStatus))
	}
	if body == nil {
		return message.NewFaultResponse(message.NewFault(message.ErrCodeParse, message.ErrMsgParse))
	}

	resp, err := c.codec.Decode(body)
	if err != nil || resp.Kind == message.KindCall {
		c.opts.logger.Debug("unparsable response", zap.String("method", req.MethodName), zap.Error(err))
		return message.NewFaultResponse(message.NewFault(message.ErrCodeParse, message.ErrMsgParse))
	}
	return resp
}
