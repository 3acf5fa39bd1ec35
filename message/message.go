// Package message defines the decoded form of an XML-RPC document.
//
// A Message is the "envelope" the codec produces from the wire and consumes
// when writing it back:
//
//   - methodCall:                 Kind=KindCall, MethodName and Params are set.
//   - methodResponse with params: Kind=KindResponse, Params holds the single result.
//   - methodResponse with fault:  Kind=KindFault, Fault is set.
package message

import "mini-xmlrpc/value"

type Kind uint8

const (
	KindCall Kind = iota + 1
	KindResponse
	KindFault
)

func (k Kind) String() string {
	switch k {
	case KindCall:
		return "methodCall"
	case KindResponse:
		return "methodResponse"
	case KindFault:
		return "fault"
	}
	return "unknown"
}

// Message is immutable once the decoder hands it out.
type Message struct {
	Kind       Kind
	MethodName string        // KindCall only
	Params     []value.Value // call params, or the single response value
	Fault      *Fault        // KindFault only
}

// NewCall wraps native arguments through value.FromNative.
func NewCall(method string, args ...any) *Message {
	params := make([]value.Value, len(args))
	for i, a := range args {
		params[i] = value.FromNative(a)
	}
	return &Message{Kind: KindCall, MethodName: method, Params: params}
}

func NewResponse(result any) *Message {
	return &Message{Kind: KindResponse, Params: []value.Value{value.FromNative(result)}}
}

func NewFaultResponse(f *Fault) *Message {
	return &Message{Kind: KindFault, Fault: f}
}

// Args returns the params converted to native Go data.
func (m *Message) Args() []any {
	args := make([]any, len(m.Params))
	for i, p := range m.Params {
		args[i] = p.Native()
	}
	return args
}

// Result is the response value, or the zero Value when there is none.
func (m *Message) Result() value.Value {
	if len(m.Params) == 0 {
		return value.Value{}
	}
	return m.Params[0]
}

func (m *Message) IsFault() bool { return m.Kind == KindFault }
