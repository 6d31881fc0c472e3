// Package httpclient is the runner's concrete HTTP transport: an otherwise
// opaque external contract, implemented for real against net/http plus an
// HTTP/2 and compression stack so VU bodies have something genuine to
// drive and the runner has real bytes/latency to record.
package httpclient

import (
	"bytes"
	"compress/gzip"
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/andybalholm/brotli"
	"github.com/klauspost/compress/zstd"
	"golang.org/x/net/http2"
)

// Request is a single outgoing HTTP call.
type Request struct {
	Method  string
	URL     string
	Headers http.Header
	Body    []byte
	Timeout time.Duration
}

// Response is what came back, plus the deterministic byte accounting the
// runner's requests_total/bytes_* metrics are built from.
type Response struct {
	Status        int
	Headers       http.Header
	Body          []byte
	BytesSent     int64
	BytesReceived int64
	Elapsed       time.Duration
}

// TLSConfig controls client identity and server verification, matching the
// runner's external gRPC/HTTP TLS contract (CA, client cert, SNI override,
// insecure skip-verify).
type TLSConfig struct {
	CACert             []byte
	ClientCert         []byte
	ClientKey          []byte
	ServerName         string
	InsecureSkipVerify bool
}

// Client issues requests over a shared, connection-pooling transport.
type Client struct {
	http *http.Client
}

// New builds a Client. A nil tlsCfg uses the platform's default trust
// store.
func New(tlsCfg *TLSConfig) (*Client, error) {
	base := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
	}
	if tlsCfg != nil {
		tc, err := buildTLSConfig(tlsCfg)
		if err != nil {
			return nil, err
		}
		base.TLSClientConfig = tc
	}
	if err := http2.ConfigureTransport(base); err != nil {
		return nil, newError(ErrRequest, err)
	}
	return &Client{http: &http.Client{Transport: base}}, nil
}

func buildTLSConfig(cfg *TLSConfig) (*tls.Config, error) {
	tc := &tls.Config{
		ServerName:         cfg.ServerName,
		InsecureSkipVerify: cfg.InsecureSkipVerify,
	}
	if len(cfg.CACert) > 0 {
		pool, err := newCertPool(cfg.CACert)
		if err != nil {
			return nil, newError(ErrRequestBuild, err)
		}
		tc.RootCAs = pool
	}
	if len(cfg.ClientCert) > 0 && len(cfg.ClientKey) > 0 {
		cert, err := tls.X509KeyPair(cfg.ClientCert, cfg.ClientKey)
		if err != nil {
			return nil, newError(ErrRequestBuild, err)
		}
		tc.Certificates = []tls.Certificate{cert}
	}
	return tc, nil
}

// Do issues req and blocks until the response body is fully read (or the
// request times out/fails), returning deterministic byte accounting
// alongside the response. Transport failures are returned as a classified
// *Error and never as a panic or an iteration-level failure; callers
// decide whether to surface them as a failed check.
func (c *Client) Do(ctx context.Context, req Request) (Response, error) {
	start := time.Now()

	parsed, err := url.Parse(req.URL)
	if err != nil {
		return Response{}, newError(ErrInvalidURL, err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return Response{}, newError(ErrUnsupportedScheme, fmt.Errorf("unsupported scheme %q", parsed.Scheme))
	}

	method := req.Method
	if method == "" {
		method = http.MethodGet
	}

	reqCtx := ctx
	var cancel context.CancelFunc
	if req.Timeout > 0 {
		reqCtx, cancel = context.WithTimeout(ctx, req.Timeout)
		defer cancel()
	}

	httpReq, err := http.NewRequestWithContext(reqCtx, method, req.URL, bytes.NewReader(req.Body))
	if err != nil {
		return Response{}, newError(ErrRequestBuild, err)
	}
	for k, vs := range req.Headers {
		for _, v := range vs {
			httpReq.Header.Add(k, v)
		}
	}
	if httpReq.Header.Get("Accept-Encoding") == "" {
		httpReq.Header.Set("Accept-Encoding", "gzip, br, zstd")
	}

	bytesSent := estimateRequestBytes(method, parsed, httpReq.Header, int64(len(req.Body)))

	resp, err := c.http.Do(httpReq)
	if err != nil {
		if reqCtx.Err() != nil {
			return Response{}, newError(ErrTimeout, err)
		}
		return Response{}, newError(ErrRequest, err)
	}
	defer resp.Body.Close()

	bodyReader, err := decompressingReader(resp)
	if err != nil {
		return Response{}, newError(ErrBodyRead, err)
	}
	body, err := io.ReadAll(bodyReader)
	if err != nil {
		return Response{}, newError(ErrBodyRead, err)
	}

	bytesReceived := estimateResponseHeadBytes(resp.Proto, resp.StatusCode, http.StatusText(resp.StatusCode), resp.Header)
	bytesReceived += int64(len(body))

	return Response{
		Status:        resp.StatusCode,
		Headers:       resp.Header,
		Body:          body,
		BytesSent:     bytesSent,
		BytesReceived: bytesReceived,
		Elapsed:       time.Since(start),
	}, nil
}

func decompressingReader(resp *http.Response) (io.Reader, error) {
	switch strings.ToLower(resp.Header.Get("Content-Encoding")) {
	case "gzip":
		return gzip.NewReader(resp.Body)
	case "br":
		return brotli.NewReader(resp.Body), nil
	case "zstd":
		dec, err := zstd.NewReader(resp.Body)
		if err != nil {
			return nil, err
		}
		return dec.IOReadCloser(), nil
	default:
		return resp.Body, nil
	}
}
