package server

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/klauspost/compress/gzip"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"mini-xmlrpc/codec"
	"mini-xmlrpc/message"
	"mini-xmlrpc/registry"
)

const (
	errMsgPostOnly = "XML-RPC server accepts POST requests only."
	gzipMinSize    = 1024
)

// ServeHTTP answers XML-RPC POSTs. Gzip request bodies are accepted, and
// responses are gzipped for clients that ask for it.
func (svr *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		http.Error(w, errMsgPostOnly, http.StatusMethodNotAllowed)
		return
	}

	// Pick up a caller's trace context so spans started by middleware join it.
	ctx := otel.GetTextMapPropagator().Extract(r.Context(), propagation.HeaderCarrier(r.Header))

	var body io.Reader = r.Body
	if strings.EqualFold(r.Header.Get("Content-Encoding"), "gzip") {
		zr, err := gzip.NewReader(r.Body)
		if err != nil {
			svr.writeXML(w, r, codec.EncodeFault(message.NewFault(message.ErrCodeParse, message.ErrMsgParse)))
			return
		}
		defer zr.Close()
		body = zr
	}

	svr.writeXML(w, r, svr.HandleReader(ctx, body))
}

func (svr *Server) writeXML(w http.ResponseWriter, r *http.Request, payload []byte) {
	h := w.Header()
	h.Set("Content-Type", "text/xml")
	if len(payload) >= gzipMinSize && strings.Contains(r.Header.Get("Accept-Encoding"), "gzip") {
		var buf bytes.Buffer
		zw := gzip.NewWriter(&buf)
		if _, err := zw.Write(payload); err == nil && zw.Close() == nil {
			payload = buf.Bytes()
			h.Set("Content-Encoding", "gzip")
		}
	}
	h.Set("Content-Length", strconv.Itoa(len(payload)))
	if _, err := w.Write(payload); err != nil {
		svr.opts.logger.Debug("failed to write response", zap.Error(err))
	}
}

// Serve listens on address and serves until Shutdown.
//
// Parameters:
//   - advertiseAddr: the host:port published to the registry (e.g., "127.0.0.1:8080").
//     This differs from the listen address because ":8080" is not routable from other hosts.
//   - reg: the registry implementation. Pass nil to skip service discovery.
func (svr *Server) Serve(network, address string, advertiseAddr string, reg registry.Registry) error {
	listener, err := net.Listen(network, address)
	if err != nil {
		return err
	}
	return svr.ServeListener(listener, advertiseAddr, reg)
}

// ServeListener is Serve on an existing listener. An empty advertiseAddr
// publishes the listener's own address.
func (svr *Server) ServeListener(listener net.Listener, advertiseAddr string, reg registry.Registry) error {
	mux := http.NewServeMux()
	mux.Handle(svr.opts.path, svr)
	hs := &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
		ErrorLog:          zap.NewStdLog(svr.opts.logger.Named("http")),
	}

	if advertiseAddr == "" {
		advertiseAddr = listener.Addr().String()
	}
	endpoint := "http://" + advertiseAddr + svr.opts.path

	svr.mu.Lock()
	svr.httpServer = hs
	svr.endpoint = endpoint
	svr.registry = reg
	svr.mu.Unlock()

	if reg != nil {
		err := reg.Register(svr.opts.name, registry.ServiceInstance{
			Addr:   endpoint,
			Weight: svr.opts.weight,
		}, svr.opts.ttl)
		if err != nil {
			svr.opts.logger.Warn("registry registration failed",
				zap.String("service", svr.opts.name), zap.String("endpoint", endpoint), zap.Error(err))
		}
	}

	svr.opts.logger.Info("serving xml-rpc",
		zap.String("listen", listener.Addr().String()),
		zap.String("endpoint", endpoint))
	err := hs.Serve(listener)
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Endpoint is the URL the server publishes, empty before Serve.
func (svr *Server) Endpoint() string {
	svr.mu.RLock()
	defer svr.mu.RUnlock()
	return svr.endpoint
}

// Shutdown performs graceful shutdown:
//  1. Deregister from the registry (clients stop routing to this server)
//  2. Stop accepting connections and wait for in-flight requests (with timeout)
func (svr *Server) Shutdown(timeout time.Duration) error {
	svr.mu.RLock()
	hs, reg, endpoint := svr.httpServer, svr.registry, svr.endpoint
	svr.mu.RUnlock()

	var err error
	if reg != nil {
		err = multierr.Append(err, reg.Deregister(svr.opts.name, endpoint))
	}
	if hs == nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if shutdownErr := hs.Shutdown(ctx); shutdownErr != nil {
		if errors.Is(shutdownErr, context.DeadlineExceeded) {
			shutdownErr = fmt.Errorf("timeout waiting for ongoing requests to finish: %w", shutdownErr)
		}
		err = multierr.Append(err, shutdownErr)
	}
	return err
}
