// Package introspection adds typed method signatures and help text to a
// server.Server.
//
// Calls to a method with a signature are checked before the handler runs:
// the argument count must match, and each argument must be compatible with
// its declared type:
//
//	int, i4                  integral value
//	string, base64           string or base64 data
//	boolean                  true or false
//	double, float            floating-point value
//	date, dateTime.iso8601   value.DateTime
//
// Other declared types (array, struct, ...) are not checked. Methods without
// a signature are never checked.
package introspection

import (
	"context"
	"reflect"
	"sync"

	"mini-xmlrpc/message"
	"mini-xmlrpc/server"
	"mini-xmlrpc/value"
)

const (
	MethodSignature = "system.methodSignature"
	MethodHelp      = "system.methodHelp"
)

// Server is a server.Server with a signature table.
type Server struct {
	*server.Server

	mu         sync.RWMutex
	signatures map[string][]string // return type followed by param types
	help       map[string]string
}

// NewServer builds a server.Server and wraps it.
func NewServer(opts ...server.Option) *Server {
	return Wrap(server.NewServer(opts...))
}

// Wrap installs introspection on svr: the introspection capability, the
// system.methodSignature and system.methodHelp built-ins, signatures for the
// other system methods, and the argument check.
func Wrap(svr *server.Server) *Server {
	s := &Server{
		Server:     svr,
		signatures: make(map[string][]string),
		help:       make(map[string]string),
	}
	svr.SetCapability("introspection", "http://xmlrpc.usefulinc.com/doc/reserved.html", 1)
	svr.SetValidator(s)

	s.AddMethod(MethodSignature, server.HandlerFunc(s.methodSignature), []string{"array", "string"},
		"Returns an array describing the return type and required parameters of a method")
	s.Describe(server.MethodGetCapabilities, []string{"struct"},
		"Returns a struct describing the XML-RPC specifications supported by this server")
	s.Describe(server.MethodListMethods, []string{"array"},
		"Returns an array of available methods on this server")
	s.AddMethod(MethodHelp, server.HandlerFunc(s.methodHelp), []string{"string", "string"},
		"Returns a documentation string for the specified method")
	s.Describe(server.MethodMulticall, []string{"array", "array"},
		"Runs an array of calls and returns an array of their results")
	return s
}

// AddMethod registers h with its signature (return type first) and help text.
func (s *Server) AddMethod(name string, h server.Handler, signature []string, help string) error {
	if err := s.Register(name, h); err != nil {
		return err
	}
	s.Describe(name, signature, help)
	return nil
}

func (s *Server) AddFunc(name string, f func(ctx context.Context, args any) (any, error), signature []string, help string) error {
	return s.AddMethod(name, server.HandlerFunc(f), signature, help)
}

// Describe sets the signature and help of an already registered method.
// A nil signature removes type checking for it.
func (s *Server) Describe(name string, signature []string, help string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if signature == nil {
		delete(s.signatures, name)
	} else {
		s.signatures[name] = append([]string(nil), signature...)
	}
	s.help[name] = help
}

func (s *Server) Signature(name string) ([]string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sig, ok := s.signatures[name]
	return append([]string(nil), sig...), ok
}

func (s *Server) Help(name string) string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.help[name]
}

// Validate implements server.Validator.
func (s *Server) Validate(method string, args []any) error {
	sig, ok := s.Signature(method)
	if !ok || len(sig) == 0 {
		return nil
	}
	params := sig[1:]
	if len(args) != len(params) {
		return message.NewFault(message.ErrCodeInvalidParams, message.ErrMsgWrongParamCount)
	}
	for i, typ := range params {
		if !compatible(typ, args[i]) {
			return message.NewFault(message.ErrCodeInvalidParams, message.ErrMsgInvalidParams)
		}
	}
	return nil
}

func compatible(typ string, arg any) bool {
	switch typ {
	case "int", "i4":
		if arg == nil {
			return false
		}
		switch reflect.TypeOf(arg).Kind() {
		case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
			reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
			return true
		}
		return false
	case "string", "base64":
		switch arg.(type) {
		case string, value.Base64:
			return true
		}
		return false
	case "boolean":
		_, ok := arg.(bool)
		return ok
	case "double", "float":
		switch arg.(type) {
		case float64, float32:
			return true
		}
		return false
	case "date", "dateTime.iso8601":
		_, ok := arg.(value.DateTime)
		return ok
	}
	return true
}

func notSpecified(method any) *message.Fault {
	return message.NewFault(message.ErrCodeMethodNotFound, "server error. requested method \"%v\" not specified.", method)
}

func (s *Server) methodSignature(ctx context.Context, args any) (any, error) {
	name, ok := args.(string)
	if !ok || !s.HasMethod(name) {
		return nil, notSpecified(args)
	}
	sig, _ := s.Signature(name)
	if sig == nil {
		sig = []string{}
	}
	return sig, nil
}

func (s *Server) methodHelp(ctx context.Context, args any) (any, error) {
	name, ok := args.(string)
	if !ok || !s.HasMethod(name) {
		return nil, notSpecified(args)
	}
	return s.Help(name), nil
}
