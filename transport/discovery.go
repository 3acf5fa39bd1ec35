package transport

import (
	"context"
	"io"

	"go.uber.org/zap"

	"mini-xmlrpc/loadbalance"
	"mini-xmlrpc/registry"
)

// DiscoveryTransport resolves a service name through a registry on every
// Send and posts to the instance the balancer picks.
//
//	Send → registry.Discover(service) → balancer.Pick → HTTPTransport.SendTo(instance.Addr)
type DiscoveryTransport struct {
	service  string
	registry registry.Registry
	balancer loadbalance.Balancer
	http     *HTTPTransport
	logger   *zap.Logger
}

type DiscoveryOption func(*DiscoveryTransport)

func WithDiscoveryLogger(l *zap.Logger) DiscoveryOption {
	return func(d *DiscoveryTransport) { d.logger = l }
}

// WithHTTPTransport replaces the default HTTP transport (e.g. to add TLS).
// Its URL is ignored.
func WithHTTPTransport(t *HTTPTransport) DiscoveryOption {
	return func(d *DiscoveryTransport) { d.http = t }
}

func NewDiscoveryTransport(service string, reg registry.Registry, bal loadbalance.Balancer, opts ...DiscoveryOption) *DiscoveryTransport {
	d := &DiscoveryTransport{
		service:  service,
		registry: reg,
		balancer: bal,
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(d)
	}
	if d.http == nil {
		// no TLS files, cannot fail
		d.http, _ = NewHTTPTransport(DefaultHTTPConfig(""))
	}
	return d
}

func (d *DiscoveryTransport) Send(ctx context.Context, request []byte) (bool, io.ReadCloser, error) {
	instances, err := d.registry.Discover(d.service)
	if err != nil {
		return false, nil, err
	}
	inst, err := d.balancer.Pick(instances)
	if err != nil {
		return false, nil, err
	}
	d.logger.Debug("picked endpoint",
		zap.String("service", d.service),
		zap.String("endpoint", inst.Addr),
		zap.String("balancer", d.balancer.Name()))
	return d.http.SendTo(ctx, inst.Addr, request)
}
