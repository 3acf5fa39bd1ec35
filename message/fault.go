package message

import (
	"errors"
	"fmt"
	"math"

	"mini-xmlrpc/value"
)

// Reserved fault codes (faults_interop, 20010516).
// Handlers should pick codes outside the -32xxx band.
const (
	ErrCodeParse          = -32700
	ErrCodeInvalidRequest = -32600
	ErrCodeMethodNotFound = -32601
	ErrCodeInvalidParams  = -32602
	ErrCodeInternal       = -32603
	ErrCodeApplication    = -32500
	ErrCodeSystem         = -32400
	ErrCodeTransport      = -32300
)

const (
	ErrMsgParse           = "parse error. not well formed"
	ErrMsgInvalidRequest  = "server error. invalid xml-rpc. not conforming to spec. Request must be a methodCall"
	ErrMsgRecursive       = "Recursive calls to system.multicall are forbidden"
	ErrMsgWrongParamCount = "server error. wrong number of method parameters"
	ErrMsgInvalidParams   = "server error. invalid method parameters"
)

// Fault is an XML-RPC fault. It is also an error so handlers can return it.
type Fault struct {
	Code    int
	Message string
}

func NewFault(code int, format string, args ...any) *Fault {
	if len(args) > 0 {
		format = fmt.Sprintf(format, args...)
	}
	return &Fault{Code: code, Message: format}
}

func (f *Fault) Error() string {
	return fmt.Sprintf("xmlrpc fault %d: %s", f.Code, f.Message)
}

// Value is the two-member struct carried inside <fault>. Codes outside the
// int32 range are clamped to it.
func (f *Fault) Value() value.Value {
	return value.NewStructValue(
		value.Member{Name: "faultCode", Value: value.NewInt(wireCode(f.Code))},
		value.Member{Name: "faultString", Value: value.NewString(f.Message)},
	)
}

func wireCode(code int) int32 {
	switch {
	case code > math.MaxInt32:
		return math.MaxInt32
	case code < math.MinInt32:
		return math.MinInt32
	}
	return int32(code)
}

// AsFault extracts a *Fault anywhere in err's chain.
func AsFault(err error) (*Fault, bool) {
	var f *Fault
	if errors.As(err, &f) {
		return f, true
	}
	return nil, false
}

func MethodNotFound(name string) *Fault {
	return NewFault(ErrCodeMethodNotFound, "server error. requested method %s does not exist.", name)
}
