package client

import (
	"context"
	"fmt"

	"mini-xmlrpc/message"
	"mini-xmlrpc/value"
)

const methodMulticall = "system.multicall"

// Multicall batches calls into one system.multicall request.
type Multicall struct {
	c     *Client
	calls []value.Value
}

func (c *Client) Multicall() *Multicall {
	return &Multicall{c: c}
}

// AddCall queues method with args; it returns the batch for chaining.
func (m *Multicall) AddCall(method string, args ...any) *Multicall {
	params := make([]value.Value, len(args))
	for i, a := range args {
		params[i] = value.FromNative(a)
	}
	m.calls = append(m.calls, value.NewStructValue(
		value.Member{Name: "methodName", Value: value.NewString(method)},
		value.Member{Name: "params", Value: value.NewArray(params...)},
	))
	return m
}

func (m *Multicall) Len() int { return len(m.calls) }

// Call sends the batch. The error is set only when the batch as a whole
// failed; per-call faults are reported in the matching Result.
func (m *Multicall) Call(ctx context.Context) ([]*Result, error) {
	resp := m.c.Do(ctx, &message.Message{
		Kind:       message.KindCall,
		MethodName: methodMulticall,
		Params:     []value.Value{value.NewArray(m.calls...)},
	})
	if resp.Fault != nil {
		return nil, resp.Fault
	}
	out := resp.Result()
	if out.Kind() != value.KindArray || out.Len() != len(m.calls) {
		return nil, fmt.Errorf("client: multicall returned %d results for %d calls", out.Len(), len(m.calls))
	}

	results := make([]*Result, len(m.calls))
	for i, item := range out.Items() {
		results[i] = entryResult(item)
	}
	return results, nil
}

// entryResult reads one multicall answer: a one-element array on success,
// a faultCode/faultString struct on failure.
func entryResult(item value.Value) *Result {
	switch item.Kind() {
	case value.KindArray:
		if item.Len() == 1 {
			return &Result{value: item.Items()[0]}
		}
	case value.KindStruct:
		code, okCode := item.Member("faultCode")
		msg, okMsg := item.Member("faultString")
		if okCode && okMsg && code.Kind() == value.KindInt {
			return &Result{fault: &message.Fault{Code: int(code.Int()), Message: msg.Text()}}
		}
	}
	return &Result{fault: message.NewFault(message.ErrCodeParse, message.ErrMsgParse)}
}
