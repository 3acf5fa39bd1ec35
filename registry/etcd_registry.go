// Package registry publishes and discovers XML-RPC endpoints.
//
// The etcd implementation is a "distributed phonebook" for services:
//
//	Key:   {prefix}/{ServiceName}/{Addr}
//	Value: JSON-encoded ServiceInstance
//
// Registration uses TTL-based leases: if the server crashes, the lease expires
// and the entry is removed automatically.
package registry

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	clientv3 "go.etcd.io/etcd/client/v3"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

const DefaultPrefix = "/mini-xmlrpc"

type EtcdOption func(*etcdOptions)

type etcdOptions struct {
	logger         *zap.Logger
	prefix         string
	dialTimeout    time.Duration
	requestTimeout time.Duration
}

func WithLogger(l *zap.Logger) EtcdOption { return func(o *etcdOptions) { o.logger = l } }

// WithPrefix changes the key namespace shared by all services.
func WithPrefix(p string) EtcdOption { return func(o *etcdOptions) { o.prefix = p } }

func WithDialTimeout(d time.Duration) EtcdOption { return func(o *etcdOptions) { o.dialTimeout = d } }

func WithRequestTimeout(d time.Duration) EtcdOption {
	return func(o *etcdOptions) { o.requestTimeout = d }
}

// EtcdRegistry implements Registry on etcd v3.
type EtcdRegistry struct {
	client *clientv3.Client // thread-safe, shared across goroutines
	opts   etcdOptions

	mu     sync.Mutex
	leases map[string]clientv3.LeaseID // key → lease, revoked on Deregister/Close

	ctx    context.Context // cancelled by Close; stops keepalives and watches
	cancel context.CancelFunc
}

func NewEtcdRegistry(endpoints []string, opts ...EtcdOption) (*EtcdRegistry, error) {
	o := etcdOptions{
		logger:         zap.NewNop(),
		prefix:         DefaultPrefix,
		dialTimeout:    5 * time.Second,
		requestTimeout: 3 * time.Second,
	}
	for _, opt := range opts {
		opt(&o)
	}
	c, err := clientv3.New(clientv3.Config{
		Endpoints:   endpoints,
		DialTimeout: o.dialTimeout,
		Logger:      o.logger.Named("etcd"),
	})
	if err != nil {
		return nil, err
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &EtcdRegistry{
		client: c,
		opts:   o,
		leases: make(map[string]clientv3.LeaseID),
		ctx:    ctx,
		cancel: cancel,
	}, nil
}

func (r *EtcdRegistry) key(serviceName, addr string) string {
	return r.opts.prefix + "/" + serviceName + "/" + addr
}

func (r *EtcdRegistry) servicePrefix(serviceName string) string {
	return r.opts.prefix + "/" + serviceName + "/"
}

func (r *EtcdRegistry) requestContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(r.ctx, r.opts.requestTimeout)
}

// Register adds a service instance to etcd with a TTL lease.
//
// Flow:
//  1. Create a lease with the given TTL (e.g., 10 seconds)
//  2. Put the key-value pair with the lease attached
//  3. Start KeepAlive to renew the lease until Deregister or Close
func (r *EtcdRegistry) Register(serviceName string, instance ServiceInstance, ttl int64) error {
	ctx, cancel := r.requestContext()
	defer cancel()

	lease, err := r.client.Grant(ctx, ttl)
	if err != nil {
		return err
	}

	val, err := json.Marshal(instance)
	if err != nil {
		return err
	}

	key := r.key(serviceName, instance.Addr)
	if _, err = r.client.Put(ctx, key, string(val), clientv3.WithLease(lease.ID)); err != nil {
		return err
	}

	// KeepAlive outlives this call, so it runs on the registry context.
	ch, err := r.client.KeepAlive(r.ctx, lease.ID)
	if err != nil {
		return err
	}

	r.mu.Lock()
	r.leases[key] = lease.ID
	r.mu.Unlock()

	go func() {
		for range ch {
		}
		r.opts.logger.Debug("lease keepalive stopped", zap.String("key", key))
	}()
	r.opts.logger.Info("registered endpoint",
		zap.String("service", serviceName),
		zap.String("addr", instance.Addr),
		zap.Int64("ttl", ttl))
	return nil
}

// Deregister removes a service instance and revokes its lease.
func (r *EtcdRegistry) Deregister(serviceName string, addr string) error {
	ctx, cancel := r.requestContext()
	defer cancel()

	key := r.key(serviceName, addr)
	_, err := r.client.Delete(ctx, key)

	r.mu.Lock()
	id, ok := r.leases[key]
	delete(r.leases, key)
	r.mu.Unlock()
	if ok {
		_, revokeErr := r.client.Revoke(ctx, id)
		err = multierr.Append(err, revokeErr)
	}
	return err
}

// Watch re-reads the instance list whenever anything under the service
// prefix changes and emits it on the returned channel.
func (r *EtcdRegistry) Watch(serviceName string) <-chan []ServiceInstance {
	ch := make(chan []ServiceInstance, 1)

	go func() {
		defer close(ch)
		watchChan := r.client.Watch(r.ctx, r.servicePrefix(serviceName), clientv3.WithPrefix())
		for range watchChan {
			// re-fetching is simpler than applying individual events
			instances, err := r.Discover(serviceName)
			if err != nil {
				r.opts.logger.Warn("discover after watch event failed",
					zap.String("service", serviceName), zap.Error(err))
				continue
			}
			select {
			case ch <- instances:
			case <-r.ctx.Done():
				return
			}
		}
	}()

	return ch
}

// Discover returns all currently registered instances for a service.
func (r *EtcdRegistry) Discover(serviceName string) ([]ServiceInstance, error) {
	ctx, cancel := r.requestContext()
	defer cancel()

	resp, err := r.client.Get(ctx, r.servicePrefix(serviceName), clientv3.WithPrefix())
	if err != nil {
		return nil, err
	}

	instances := make([]ServiceInstance, 0, len(resp.Kvs))
	for _, kv := range resp.Kvs {
		var instance ServiceInstance
		if err := json.Unmarshal(kv.Value, &instance); err != nil {
			r.opts.logger.Warn("skipping malformed instance", zap.ByteString("key", kv.Key), zap.Error(err))
			continue
		}
		instances = append(instances, instance)
	}
	return instances, nil
}

// Close revokes every lease this registry granted and closes the client.
func (r *EtcdRegistry) Close() error {
	r.mu.Lock()
	leases := r.leases
	r.leases = make(map[string]clientv3.LeaseID)
	r.mu.Unlock()

	var err error
	ctx, cancel := context.WithTimeout(context.Background(), r.opts.requestTimeout)
	defer cancel()
	for _, id := range leases {
		_, revokeErr := r.client.Revoke(ctx, id)
		err = multierr.Append(err, revokeErr)
	}
	r.cancel()
	return multierr.Append(err, r.client.Close())
}
