package client

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"mini-xmlrpc/loadbalance"
	"mini-xmlrpc/message"
	"mini-xmlrpc/middleware"
	"mini-xmlrpc/registry"
	"mini-xmlrpc/server"
	"mini-xmlrpc/transport"
	"mini-xmlrpc/value"
)

func add(ctx context.Context, args any) (any, error) {
	list, ok := args.([]any)
	if !ok || len(list) != 2 {
		return nil, message.NewFault(4, "add expects two integers")
	}
	a, okA := list[0].(int)
	b, okB := list[1].(int)
	if !okA || !okB {
		return nil, message.NewFault(4, "add expects two integers")
	}
	return a + b, nil
}

func startServer(t *testing.T) *httptest.Server {
	t.Helper()
	svr := server.NewServer()
	svr.RegisterFunc("math.add", add)
	svr.RegisterFunc("text.repeat", func(ctx context.Context, args any) (any, error) {
		list := args.([]any)
		return strings.Repeat(list[0].(string), list[1].(int)), nil
	})
	srv := httptest.NewServer(svr)
	t.Cleanup(srv.Close)
	return srv
}

func dial(t *testing.T, url string) *Client {
	t.Helper()
	c, err := Dial(DefaultConfig(url))
	if err != nil {
		t.Fatal(err)
	}
	return c
}

func TestClientCall(t *testing.T) {
	c := dial(t, startServer(t).URL)

	// Call math.add(1, 2) = 3
	v, err := c.Call(context.Background(), "math.add", 1, 2)
	if err != nil {
		t.Fatal(err)
	}
	if v.Int() != 3 {
		t.Fatalf("expect 3, got %v", v.Native())
	}

	// Call again: add(10, 20) = 30
	v, err = c.Call(context.Background(), "math.add", 10, 20)
	if err != nil {
		t.Fatal(err)
	}
	if v.Int() != 30 {
		t.Fatalf("expect 30, got %v", v.Native())
	}
}

func TestClientFault(t *testing.T) {
	c := dial(t, startServer(t).URL)

	_, err := c.Call(context.Background(), "no.such")
	var f *message.Fault
	if !errors.As(err, &f) || f.Code != message.ErrCodeMethodNotFound {
		t.Fatalf("expect -32601 fault, got %v", err)
	}

	_, err = c.Call(context.Background(), "math.add", "x")
	if !errors.As(err, &f) || f.Code != 4 || f.Message != "add expects two integers" {
		t.Fatalf("expect handler fault 4, got %v", err)
	}
}

func TestClientQuery(t *testing.T) {
	c := dial(t, startServer(t).URL)

	r := c.Query(context.Background(), "math.add", 2, 3)
	if r.IsError() || r.Value().Int() != 5 || r.ErrorCode() != 0 || r.Err() != nil {
		t.Fatalf("expect 5, got error=%v code=%d", r.IsError(), r.ErrorCode())
	}

	r = c.Query(context.Background(), "no.such")
	if !r.IsError() || r.ErrorCode() != message.ErrCodeMethodNotFound {
		t.Fatalf("expect -32601, got %d", r.ErrorCode())
	}
	if !strings.Contains(r.ErrorMessage(), "no.such") {
		t.Fatalf("expect method name in message, got %q", r.ErrorMessage())
	}
}

func TestClientGzip(t *testing.T) {
	cfg := DefaultConfig(startServer(t).URL)
	cfg.HTTP.Gzip = true
	c, err := Dial(cfg)
	if err != nil {
		t.Fatal(err)
	}
	// 响应超过 1024 字节，服务端会压缩
	v, err := c.Call(context.Background(), "text.repeat", "ab", 2000)
	if err != nil {
		t.Fatal(err)
	}
	if len(v.Text()) != 4000 {
		t.Fatalf("expect 4000 chars, got %d", len(v.Text()))
	}
}

func TestMulticall(t *testing.T) {
	c := dial(t, startServer(t).URL)

	results, err := c.Multicall().
		AddCall("math.add", 1, 2).
		AddCall("no.such").
		AddCall("math.add", 40, 2).
		Call(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 3 {
		t.Fatalf("expect 3 results, got %d", len(results))
	}
	if results[0].IsError() || results[0].Value().Int() != 3 {
		t.Fatalf("expect 3, got %+v", results[0])
	}
	if !results[1].IsError() || results[1].ErrorCode() != message.ErrCodeMethodNotFound {
		t.Fatalf("expect -32601, got %+v", results[1])
	}
	if results[2].Value().Int() != 42 {
		t.Fatalf("expect 42, got %v", results[2].Value().Native())
	}
}

func TestEntryResult(t *testing.T) {
	r := entryResult(value.NewArray(value.NewString("ok")))
	if r.IsError() || r.Value().Text() != "ok" {
		t.Fatalf("expect ok, got %+v", r)
	}
	r = entryResult(message.NewFault(7, "boom").Value())
	if r.ErrorCode() != 7 || r.ErrorMessage() != "boom" {
		t.Fatalf("expect fault 7, got %+v", r)
	}
	r = entryResult(value.NewInt(1))
	if r.ErrorCode() != message.ErrCodeParse {
		t.Fatalf("expect -32700 for malformed entry, got %d", r.ErrorCode())
	}
}

func TestTransportFaults(t *testing.T) {
	down := httptest.NewServer(http.NotFoundHandler())
	url := down.URL
	down.Close()

	r := dial(t, url).Query(context.Background(), "math.add", 1, 2)
	if r.ErrorCode() != message.ErrCodeTransport || !strings.HasPrefix(r.ErrorMessage(), "transport error - could not open socket: ") {
		t.Fatalf("expect socket fault, got %d %q", r.ErrorCode(), r.ErrorMessage())
	}

	status := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gone", http.StatusServiceUnavailable)
	}))
	defer status.Close()
	r = dial(t, status.URL).Query(context.Background(), "math.add", 1, 2)
	if r.ErrorCode() != message.ErrCodeTransport || r.ErrorMessage() != errMsgStatus {
		t.Fatalf("expect status fault, got %d %q", r.ErrorCode(), r.ErrorMessage())
	}

	garbage := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, "<html>not xml-rpc</html>")
	}))
	defer garbage.Close()
	r = dial(t, garbage.URL).Query(context.Background(), "math.add", 1, 2)
	if r.ErrorCode() != message.ErrCodeParse || r.ErrorMessage() != message.ErrMsgParse {
		t.Fatalf("expect parse fault, got %d %q", r.ErrorCode(), r.ErrorMessage())
	}
}

type trackedBody struct {
	io.Reader
	closed bool
}

func (b *trackedBody) Close() error {
	b.closed = true
	return nil
}

// 传输层即使违约返回了 body，也要被关闭
func TestBodyClosedOnTransportFailure(t *testing.T) {
	cases := []struct {
		name string
		ok   bool
		err  error
		code int
	}{
		{"status", false, nil, message.ErrCodeTransport},
		{"send error", false, errors.New("reset"), message.ErrCodeTransport},
		{"garbage", true, nil, message.ErrCodeParse},
	}
	for _, tc := range cases {
		body := &trackedBody{Reader: strings.NewReader("<html/>")}
		c := New(transport.Func(func(ctx context.Context, req []byte) (bool, io.ReadCloser, error) {
			return tc.ok, body, tc.err
		}))
		r := c.Query(context.Background(), "math.add", 1, 2)
		if r.ErrorCode() != tc.code {
			t.Fatalf("%s: expect %d, got %d", tc.name, tc.code, r.ErrorCode())
		}
		if !body.closed {
			t.Fatalf("%s: body not closed", tc.name)
		}
	}

	c := New(transport.Func(func(ctx context.Context, req []byte) (bool, io.ReadCloser, error) {
		return true, nil, nil
	}))
	if r := c.Query(context.Background(), "math.add", 1, 2); r.ErrorCode() != message.ErrCodeParse {
		t.Fatalf("expect -32700 for a missing body, got %d", r.ErrorCode())
	}
}

func TestRetry(t *testing.T) {
	target := startServer(t)
	inner := dial(t, target.URL).transport

	attempts := 0
	flaky := transport.Func(func(ctx context.Context, req []byte) (bool, io.ReadCloser, error) {
		attempts++
		if attempts < 3 {
			return false, nil, errors.New("connection refused")
		}
		return inner.Send(ctx, req)
	})

	c := New(flaky, WithRetry(3, time.Millisecond))
	v, err := c.Call(context.Background(), "math.add", 2, 2)
	if err != nil {
		t.Fatal(err)
	}
	if v.Int() != 4 || attempts != 3 {
		t.Fatalf("expect 4 after 3 attempts, got %v after %d", v.Native(), attempts)
	}

	// 非传输错误不重试
	attempts = 10
	if _, err := c.Call(context.Background(), "no.such"); err == nil {
		t.Fatal("expect fault")
	}
	if attempts != 11 {
		t.Fatalf("expect a single attempt, got %d", attempts-10)
	}
}

func TestClientMiddleware(t *testing.T) {
	var seen []string
	record := func(next middleware.HandlerFunc) middleware.HandlerFunc {
		return func(ctx context.Context, req *message.Message) *message.Message {
			seen = append(seen, req.MethodName)
			return next(ctx, req)
		}
	}
	tr, _ := transport.NewHTTPTransport(transport.DefaultHTTPConfig(startServer(t).URL))
	c := New(tr, WithMiddleware(record))
	c.Call(context.Background(), "math.add", 1, 1)
	c.Multicall().AddCall("math.add", 1, 1).Call(context.Background())
	if len(seen) != 2 || seen[0] != "math.add" || seen[1] != "system.multicall" {
		t.Fatalf("unexpected calls %v", seen)
	}
}

func TestDiscovery(t *testing.T) {
	a, b := startServer(t), startServer(t)
	reg := registry.NewMemoryRegistry()
	reg.Register("math", registry.ServiceInstance{Addr: a.URL, Weight: 1}, 10)
	reg.Register("math", registry.ServiceInstance{Addr: b.URL, Weight: 3}, 10)

	c := New(transport.NewDiscoveryTransport("math", reg, &loadbalance.WeightedRandomBalancer{}))
	for i := 0; i < 10; i++ {
		v, err := c.Call(context.Background(), "math.add", i, i)
		if err != nil {
			t.Fatal(err)
		}
		if int(v.Int()) != 2*i {
			t.Fatalf("expect %d, got %d", 2*i, v.Int())
		}
	}

	empty := New(transport.NewDiscoveryTransport("none", reg, &loadbalance.RoundRobinBalancer{}))
	r := empty.Query(context.Background(), "math.add", 1, 1)
	if r.ErrorCode() != message.ErrCodeTransport {
		t.Fatalf("expect -32300 without instances, got %d", r.ErrorCode())
	}
}
