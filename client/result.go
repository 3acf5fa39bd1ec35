package client

import (
	"mini-xmlrpc/message"
	"mini-xmlrpc/value"
)

// Result is the outcome of one call: a value or a fault.
type Result struct {
	fault *message.Fault
	value value.Value
}

func newResult(resp *message.Message) *Result {
	if resp.Fault != nil {
		return &Result{fault: resp.Fault}
	}
	return &Result{value: resp.Result()}
}

func (r *Result) IsError() bool { return r.fault != nil }

// ErrorCode is the fault code, 0 on success.
func (r *Result) ErrorCode() int {
	if r.fault == nil {
		return 0
	}
	return r.fault.Code
}

func (r *Result) ErrorMessage() string {
	if r.fault == nil {
		return ""
	}
	return r.fault.Message
}

// Value is the returned value, the zero Value for a fault.
func (r *Result) Value() value.Value { return r.value }

// Err returns the fault as an error, or nil.
func (r *Result) Err() error {
	if r.fault == nil {
		return nil
	}
	return r.fault
}
