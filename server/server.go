// Package server implements the XML-RPC dispatcher: a method table, the call
// path every request goes through, the system.* built-ins, and an HTTP
// endpoint with optional registry publication.
//
// Request processing pipeline:
//
//	POST body → Codec.Decode → Middleware Chain → businessHandler → Codec.Encode → response body
//	                                                   │
//	                       system.multicall re-enters the chain once per entry
package server

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"runtime/debug"
	"sync"

	"go.uber.org/zap"

	"mini-xmlrpc/codec"
	"mini-xmlrpc/message"
	"mini-xmlrpc/middleware"
	"mini-xmlrpc/registry"
)

// Validator checks a call's native arguments before its handler runs.
// A non-nil error is returned to the caller as a fault.
type Validator interface {
	Validate(method string, args []any) error
}

// Server is the XML-RPC dispatcher. The method table may be changed at any
// time; requests in flight see a consistent snapshot per lookup.
type Server struct {
	opts  options
	codec *codec.XMLCodec

	mu           sync.RWMutex
	methods      map[string]Handler      // "math.add" → handler
	order        []string                // registration order
	capabilities []capability            // system.getCapabilities rows
	middlewares  []middleware.Middleware // applied in the order added
	handler      middleware.HandlerFunc  // middleware(middleware(...(businessHandler)))
	validator    Validator

	httpServer *http.Server
	registry   registry.Registry // nil if not using discovery
	endpoint   string            // URL published to the registry
}

// NewServer creates a server exposing the system.getCapabilities,
// system.listMethods and system.multicall built-ins.
func NewServer(opts ...Option) *Server {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	svr := &Server{
		opts:    o,
		codec:   &codec.XMLCodec{ChunkSize: o.chunkSize},
		methods: make(map[string]Handler),
	}
	svr.handler = svr.businessHandler
	svr.registerSystemMethods()
	return svr
}

// Register binds name to h. Registering an existing name replaces its
// handler and keeps its position.
func (svr *Server) Register(name string, h Handler) error {
	if name == "" {
		return errors.New("server: empty method name")
	}
	if h == nil {
		return fmt.Errorf("server: nil handler for %s", name)
	}
	svr.mu.Lock()
	defer svr.mu.Unlock()
	if _, ok := svr.methods[name]; !ok {
		svr.order = append(svr.order, name)
	}
	svr.methods[name] = h
	return nil
}

func (svr *Server) RegisterFunc(name string, f func(ctx context.Context, args any) (any, error)) error {
	return svr.Register(name, HandlerFunc(f))
}

// HasMethod reports whether name is registered.
func (svr *Server) HasMethod(name string) bool {
	svr.mu.RLock()
	defer svr.mu.RUnlock()
	_, ok := svr.methods[name]
	return ok
}

// Methods returns the registered names in registration order.
func (svr *Server) Methods() []string {
	svr.mu.RLock()
	defer svr.mu.RUnlock()
	return append([]string(nil), svr.order...)
}

// Use registers a middleware. Middlewares are applied in the order they are added.
//
//	Chain(A, B, C)(handler) → A(B(C(handler)))
//	Execution order: A.before → B.before → C.before → handler → C.after → B.after → A.after
func (svr *Server) Use(mw middleware.Middleware) {
	svr.mu.Lock()
	defer svr.mu.Unlock()
	svr.middlewares = append(svr.middlewares, mw)
	svr.handler = middleware.Chain(svr.middlewares...)(svr.businessHandler)
}

// SetValidator installs a pre-invocation argument check, replacing any
// previous one. Pass nil to remove it.
func (svr *Server) SetValidator(v Validator) {
	svr.mu.Lock()
	defer svr.mu.Unlock()
	svr.validator = v
}

func (svr *Server) chain() middleware.HandlerFunc {
	svr.mu.RLock()
	defer svr.mu.RUnlock()
	return svr.handler
}

func (svr *Server) lookup(name string) (Handler, Validator, bool) {
	svr.mu.RLock()
	defer svr.mu.RUnlock()
	h, ok := svr.methods[name]
	return h, svr.validator, ok
}

// Handle answers one request document with one response document. It never
// fails: every error becomes a fault response.
func (svr *Server) Handle(ctx context.Context, request []byte) []byte {
	return svr.HandleReader(ctx, bytes.NewReader(request))
}

// HandleReader is Handle over a stream; the body is decoded incrementally.
func (svr *Server) HandleReader(ctx context.Context, r io.Reader) []byte {
	msg, err := svr.codec.Decode(r)
	if err != nil {
		svr.opts.logger.Debug("rejecting malformed request", zap.Error(err))
		return codec.EncodeFault(message.NewFault(message.ErrCodeParse, message.ErrMsgParse))
	}
	if msg.Kind != message.KindCall {
		return codec.EncodeFault(message.NewFault(message.ErrCodeInvalidRequest, message.ErrMsgInvalidRequest))
	}
	return svr.encode(svr.Call(ctx, msg))
}

// Call runs msg through the middleware chain and the dispatcher.
func (svr *Server) Call(ctx context.Context, msg *message.Message) *message.Message {
	resp := svr.chain()(ctx, msg)
	if resp == nil {
		return message.NewFaultResponse(message.NewFault(message.ErrCodeInternal, "server error. no response"))
	}
	return resp
}

func (svr *Server) encode(resp *message.Message) []byte {
	if resp.Fault != nil {
		return codec.EncodeFault(resp.Fault)
	}
	return codec.EncodeResponse(resp.Result())
}

// businessHandler is the innermost handler wrapped by the middleware chain.
//
// Flow: look up method → validate → unwrap single argument → invoke → wrap
// result (or fault) in a Message.
func (svr *Server) businessHandler(ctx context.Context, req *message.Message) *message.Message {
	h, validator, ok := svr.lookup(req.MethodName)
	if !ok {
		return message.NewFaultResponse(message.MethodNotFound(req.MethodName))
	}

	result, err := svr.invoke(ctx, req, h, validator)
	if err != nil {
		if f, ok := message.AsFault(err); ok {
			return message.NewFaultResponse(f)
		}
		return message.NewFaultResponse(message.NewFault(message.ErrCodeApplication, "application error. %s", err.Error()))
	}
	return message.NewResponse(result)
}

func (svr *Server) invoke(ctx context.Context, req *message.Message, h Handler, validator Validator) (result any, err error) {
	defer func() {
		if r := recover(); r != nil {
			svr.opts.logger.Error("handler panicked",
				zap.String("method", req.MethodName),
				zap.Any("panic", r),
				zap.ByteString("stack", debug.Stack()))
			err = message.NewFault(message.ErrCodeInternal, "server error. internal error calling %s: %v", req.MethodName, r)
		}
	}()

	args := req.Args()
	if validator != nil {
		if err := validator.Validate(req.MethodName, args); err != nil {
			return nil, err
		}
	}
	if vh, ok := h.(valueHandler); ok {
		return vh.invokeValues(ctx, req.Params)
	}
	if len(args) == 1 {
		return h.Invoke(ctx, args[0])
	}
	return h.Invoke(ctx, args)
}
