package transport

import (
	"bytes"
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/klauspost/compress/gzip"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	"go.uber.org/multierr"
)

const DefaultUserAgent = "mini-xmlrpc"

type HTTPConfig struct {
	URL       string        // endpoint, e.g. "http://127.0.0.1:8080/RPC2"
	Timeout   time.Duration // whole exchange; 0 means none
	UserAgent string
	Gzip      bool // compress request bodies

	// Client certificate and trust roots for https endpoints.
	CertFile           string
	KeyFile            string
	CAFile             string
	InsecureSkipVerify bool
}

func DefaultHTTPConfig(url string) HTTPConfig {
	return HTTPConfig{
		URL:       url,
		Timeout:   30 * time.Second,
		UserAgent: DefaultUserAgent,
	}
}

// HTTPTransport posts documents with Content-Type text/xml. Responses sent
// with Content-Encoding gzip are decompressed transparently.
type HTTPTransport struct {
	cfg    HTTPConfig
	client *http.Client
}

func NewHTTPTransport(cfg HTTPConfig) (*HTTPTransport, error) {
	if cfg.UserAgent == "" {
		cfg.UserAgent = DefaultUserAgent
	}
	tr := http.DefaultTransport.(*http.Transport).Clone()
	if cfg.CertFile != "" || cfg.CAFile != "" || cfg.InsecureSkipVerify {
		tlsCfg, err := LoadTLSConfig(cfg.CertFile, cfg.KeyFile, cfg.CAFile)
		if err != nil {
			return nil, err
		}
		tlsCfg.InsecureSkipVerify = cfg.InsecureSkipVerify
		tr.TLSClientConfig = tlsCfg
	}
	return &HTTPTransport{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout, Transport: tr},
	}, nil
}

func (t *HTTPTransport) Send(ctx context.Context, request []byte) (bool, io.ReadCloser, error) {
	return t.SendTo(ctx, t.cfg.URL, request)
}

// SendTo is Send against an explicit endpoint URL.
func (t *HTTPTransport) SendTo(ctx context.Context, url string, request []byte) (bool, io.ReadCloser, error) {
	if url == "" {
		return false, nil, errors.New("transport: no endpoint url")
	}
	payload := request
	if t.cfg.Gzip {
		var buf bytes.Buffer
		zw := gzip.NewWriter(&buf)
		if _, err := zw.Write(request); err != nil {
			return false, nil, err
		}
		if err := zw.Close(); err != nil {
			return false, nil, err
		}
		payload = buf.Bytes()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return false, nil, err
	}
	h := req.Header
	h.Set("Content-Type", "text/xml")
	h.Set("User-Agent", t.cfg.UserAgent)
	h.Set("Accept-Encoding", "gzip")
	if t.cfg.Gzip {
		h.Set("Content-Encoding", "gzip")
	}
	req.ContentLength = int64(len(payload))
	h.Set("Content-Length", strconv.Itoa(len(payload)))
	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(h))

	resp, err := t.client.Do(req)
	if err != nil {
		return false, nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		CleanlyCloseBody(resp.Body)
		return false, nil, nil
	}
	if !strings.EqualFold(resp.Header.Get("Content-Encoding"), "gzip") {
		return true, resp.Body, nil
	}
	zr, err := gzip.NewReader(resp.Body)
	if err != nil {
		CleanlyCloseBody(resp.Body)
		return false, nil, fmt.Errorf("transport: bad gzip response: %w", err)
	}
	return true, &gzipBody{zr: zr, raw: resp.Body}, nil
}

type gzipBody struct {
	zr  *gzip.Reader
	raw io.ReadCloser
}

func (b *gzipBody) Read(p []byte) (int, error) { return b.zr.Read(p) }

func (b *gzipBody) Close() error {
	return multierr.Append(b.zr.Close(), CleanlyCloseBody(b.raw))
}

// LoadTLSConfig builds a client TLS config. certFile and keyFile select a
// client certificate; caFile replaces the system roots. Empty names are
// skipped.
func LoadTLSConfig(certFile, keyFile, caFile string) (*tls.Config, error) {
	cfg := &tls.Config{MinVersion: tls.VersionTLS12}
	if certFile != "" || keyFile != "" {
		cert, err := tls.LoadX509KeyPair(certFile, keyFile)
		if err != nil {
			return nil, fmt.Errorf("transport: load client certificate: %w", err)
		}
		cfg.Certificates = []tls.Certificate{cert}
	}
	if caFile != "" {
		pem, err := os.ReadFile(caFile)
		if err != nil {
			return nil, fmt.Errorf("transport: read ca file: %w", err)
		}
		pool := x509.NewCertPool()
		if !pool.AppendCertsFromPEM(pem) {
			return nil, fmt.Errorf("transport: no certificates in %s", caFile)
		}
		cfg.RootCAs = pool
	}
	return cfg, nil
}
