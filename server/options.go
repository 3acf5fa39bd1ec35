package server

import (
	"go.uber.org/zap"

	"mini-xmlrpc/codec"
)

type Option func(*options)

type options struct {
	logger    *zap.Logger
	name      string // service name published to the registry
	path      string // HTTP path the endpoint is served on
	chunkSize int
	weight    int
	ttl       int64
}

func defaultOptions() options {
	return options{
		logger:    zap.NewNop(),
		name:      "xmlrpc",
		path:      "/RPC2",
		chunkSize: codec.DefaultChunkSize,
		weight:    1,
		ttl:       10,
	}
}

func WithLogger(l *zap.Logger) Option { return func(o *options) { o.logger = l } }

// WithName sets the service name the server registers under.
func WithName(name string) Option { return func(o *options) { o.name = name } }

func WithPath(path string) Option { return func(o *options) { o.path = path } }

// WithChunkSize bounds the request decoder's read buffer.
func WithChunkSize(n int) Option { return func(o *options) { o.chunkSize = n } }

func WithWeight(w int) Option { return func(o *options) { o.weight = w } }

// WithTTL sets the registry lease TTL in seconds.
func WithTTL(ttl int64) Option { return func(o *options) { o.ttl = ttl } }
