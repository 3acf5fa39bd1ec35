package server

import (
	"context"

	"mini-xmlrpc/message"
	"mini-xmlrpc/value"
)

const (
	MethodGetCapabilities = "system.getCapabilities"
	MethodListMethods     = "system.listMethods"
	MethodMulticall       = "system.multicall"
)

type capability struct {
	name    string
	specURL string
	version int
}

func (svr *Server) registerSystemMethods() {
	svr.capabilities = []capability{
		{"xmlrpc", "http://www.xmlrpc.com/spec", 1},
		{"faults_interop", "http://xmlrpc-epi.sourceforge.net/specs/rfc.fault_codes.php", 20010516},
		{"system.multicall", "http://www.xmlrpc.com/discuss/msgReader$1208", 1},
	}
	svr.Register(MethodGetCapabilities, HandlerFunc(svr.getCapabilities))
	svr.Register(MethodListMethods, HandlerFunc(svr.listMethods))
	svr.Register(MethodMulticall, &multicall{svr: svr})
}

// SetCapability adds a row to system.getCapabilities, or replaces the row
// with the same name.
func (svr *Server) SetCapability(name, specURL string, specVersion int) {
	svr.mu.Lock()
	defer svr.mu.Unlock()
	for i := range svr.capabilities {
		if svr.capabilities[i].name == name {
			svr.capabilities[i] = capability{name, specURL, specVersion}
			return
		}
	}
	svr.capabilities = append(svr.capabilities, capability{name, specURL, specVersion})
}

func (svr *Server) getCapabilities(ctx context.Context, args any) (any, error) {
	svr.mu.RLock()
	defer svr.mu.RUnlock()
	caps := value.NewStruct()
	for _, c := range svr.capabilities {
		caps.Set(c.name, value.NewStruct().
			Set("specUrl", c.specURL).
			Set("specVersion", c.version))
	}
	return caps, nil
}

// listMethods reports the newest registrations first, so user methods
// precede the built-ins registered by NewServer.
func (svr *Server) listMethods(ctx context.Context, args any) (any, error) {
	names := svr.Methods()
	out := make([]string, len(names))
	for i, name := range names {
		out[len(names)-1-i] = name
	}
	return out, nil
}

// multicall runs a batch of calls. Each entry is answered independently:
// a one-element array holding the result, or a faultCode/faultString struct.
type multicall struct {
	svr *Server
}

func (m *multicall) Invoke(ctx context.Context, args any) (any, error) {
	return m.invokeValues(ctx, []value.Value{value.FromNative(args)})
}

func (m *multicall) invokeValues(ctx context.Context, params []value.Value) (any, error) {
	if len(params) != 1 || params[0].Kind() != value.KindArray {
		return nil, message.NewFault(message.ErrCodeInvalidParams, "server error. system.multicall expects an array of calls")
	}
	calls := params[0].Items()
	results := make([]value.Value, len(calls))
	for i, call := range calls {
		resp := m.call(ctx, call)
		if resp.Fault != nil {
			results[i] = resp.Fault.Value()
		} else {
			results[i] = value.NewArray(resp.Result())
		}
	}
	return value.NewArray(results...), nil
}

func (m *multicall) call(ctx context.Context, entry value.Value) *message.Message {
	invalid := func(format string) *message.Message {
		return message.NewFaultResponse(message.NewFault(message.ErrCodeInvalidRequest, format))
	}
	if entry.Kind() != value.KindStruct {
		return invalid("server error. multicall entry must be a struct")
	}
	name, ok := entry.Member("methodName")
	if !ok || name.Kind() != value.KindString || name.Text() == "" {
		return invalid("server error. multicall entry needs a methodName string")
	}
	if name.Text() == MethodMulticall {
		return invalid(message.ErrMsgRecursive)
	}

	var params []value.Value
	if p, ok := entry.Member("params"); ok {
		if p.Kind() != value.KindArray {
			return invalid("server error. multicall params must be an array")
		}
		params = p.Items()
	}
	return m.svr.Call(ctx, &message.Message{
		Kind:       message.KindCall,
		MethodName: name.Text(),
		Params:     params,
	})
}
