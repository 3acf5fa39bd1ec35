package client

import (
	"context"
	"net"
	"testing"
	"time"

	"mini-xmlrpc/loadbalance"
	"mini-xmlrpc/middleware"
	"mini-xmlrpc/registry"
	"mini-xmlrpc/server"
	"mini-xmlrpc/transport"
)

// ---- 测试用的服务 ----

type Arith struct{}

func (a *Arith) Add(ctx context.Context, args any) (any, error) {
	return add(ctx, args)
}

func (a *Arith) Multiply(ctx context.Context, args any) (any, error) {
	list := args.([]any)
	return list[0].(int) * list[1].(int), nil
}

const etcdAddr = "127.0.0.1:2379"

func newEtcd(t *testing.T) *registry.EtcdRegistry {
	t.Helper()
	conn, err := net.DialTimeout("tcp", etcdAddr, 300*time.Millisecond)
	if err != nil {
		t.Skipf("etcd not reachable at %s: %v", etcdAddr, err)
	}
	conn.Close()
	reg, err := registry.NewEtcdRegistry([]string{etcdAddr}, registry.WithPrefix("/mini-xmlrpc-it"))
	if err != nil {
		t.Fatalf("failed to connect etcd: %v", err)
	}
	t.Cleanup(func() { reg.Close() })
	return reg
}

// serve starts an Arith server published to reg under "Arith".
func serve(t *testing.T, reg registry.Registry) *server.Server {
	t.Helper()
	svr := server.NewServer(server.WithName("Arith"))
	svr.Use(middleware.LoggingMiddleware(nil))
	if _, err := svr.RegisterObject("Arith", &Arith{}); err != nil {
		t.Fatal(err)
	}
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	go svr.ServeListener(ln, "", reg)
	t.Cleanup(func() { svr.Shutdown(3 * time.Second) })
	return svr
}

func waitInstances(t *testing.T, reg registry.Registry, n int) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		insts, err := reg.Discover("Arith")
		if err == nil && len(insts) >= n {
			return
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatalf("expect %d instances registered", n)
}

// 完整端到端测试
// 链路: Client → Registry(etcd) → LB → HTTP → Codec → Middleware → Server → handler
func TestFullIntegrationWithEtcd(t *testing.T) {
	reg := newEtcd(t)
	serve(t, reg)
	waitInstances(t, reg, 1)

	cli := New(transport.NewDiscoveryTransport("Arith", reg, &loadbalance.RoundRobinBalancer{}))

	v, err := cli.Call(context.Background(), "Arith.add", 3, 5)
	if err != nil {
		t.Fatalf("Call add failed: %v", err)
	}
	if v.Int() != 8 {
		t.Fatalf("add: expect 8, got %d", v.Int())
	}

	v, err = cli.Call(context.Background(), "Arith.multiply", 4, 6)
	if err != nil {
		t.Fatalf("Call multiply failed: %v", err)
	}
	if v.Int() != 24 {
		t.Fatalf("multiply: expect 24, got %d", v.Int())
	}
}

// 多实例 + 负载均衡 + etcd
func TestMultiServerWithEtcd(t *testing.T) {
	reg := newEtcd(t)
	serve(t, reg)
	serve(t, reg)
	waitInstances(t, reg, 2)

	cli := New(transport.NewDiscoveryTransport("Arith", reg, &loadbalance.RoundRobinBalancer{}))
	for i := 1; i <= 10; i++ {
		v, err := cli.Call(context.Background(), "Arith.add", i, i*10)
		if err != nil {
			t.Fatalf("request %d failed: %v", i, err)
		}
		if expected := i + i*10; int(v.Int()) != expected {
			t.Fatalf("request %d: expect %d, got %d", i, expected, v.Int())
		}
	}
}

// 下线的实例不再被选中
func TestShutdownDeregisters(t *testing.T) {
	reg := registry.NewMemoryRegistry()
	svr := serve(t, reg)
	waitInstances(t, reg, 1)

	if err := svr.Shutdown(time.Second); err != nil {
		t.Fatal(err)
	}
	insts, _ := reg.Discover("Arith")
	if len(insts) != 0 {
		t.Fatalf("expect no instances after shutdown, got %v", insts)
	}

	cli := New(transport.NewDiscoveryTransport("Arith", reg, &loadbalance.RoundRobinBalancer{}))
	if r := cli.Query(context.Background(), "Arith.add", 1, 1); !r.IsError() {
		t.Fatal("expect transport fault after shutdown")
	}
}
