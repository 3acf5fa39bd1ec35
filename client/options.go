package client

import (
	"time"

	"go.uber.org/zap"

	"mini-xmlrpc/codec"
	"mini-xmlrpc/middleware"
	"mini-xmlrpc/transport"
)

type Option func(*options)

type options struct {
	logger      *zap.Logger
	chunkSize   int
	maxRetries  int
	retryDelay  time.Duration
	middlewares []middleware.Middleware
}

func defaultOptions() options {
	return options{
		logger:    zap.NewNop(),
		chunkSize: codec.DefaultChunkSize,
	}
}

func WithLogger(l *zap.Logger) Option { return func(o *options) { o.logger = l } }

// WithChunkSize bounds the response decoder's read buffer.
func WithChunkSize(n int) Option { return func(o *options) { o.chunkSize = n } }

// WithRetry retries calls that fail with a transport fault, waiting
// baseDelay, 2*baseDelay, ... between attempts.
func WithRetry(maxRetries int, baseDelay time.Duration) Option {
	return func(o *options) {
		o.maxRetries = maxRetries
		o.retryDelay = baseDelay
	}
}

// WithMiddleware wraps every round trip. The first middleware given is the outermost.
func WithMiddleware(mws ...middleware.Middleware) Option {
	return func(o *options) { o.middlewares = append(o.middlewares, mws...) }
}

// Config collects everything Dial needs to build an HTTP client.
type Config struct {
	HTTP       transport.HTTPConfig
	MaxRetries int
	RetryDelay time.Duration
	ChunkSize  int
	Logger     *zap.Logger
}

func DefaultConfig(url string) Config {
	return Config{
		HTTP:       transport.DefaultHTTPConfig(url),
		MaxRetries: 0,
		RetryDelay: 100 * time.Millisecond,
		ChunkSize:  codec.DefaultChunkSize,
	}
}
