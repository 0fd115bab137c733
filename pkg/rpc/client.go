// Package rpc is a synchronous request/response client that exchanges opaque
// byte payloads with a server over HTTP POST.
//
// A Client either talks to a fixed host, port and path (New) or delegates to
// any injected Transport (NewWithTransport), which is how tests replace the
// network.
package rpc

import (
	"context"
	"time"
)

// DefaultConnectTimeout bounds connection establishment for clients built by New.
const DefaultConnectTimeout = time.Second

// Transport performs one request/response exchange.
type Transport interface {
	RoundTrip(ctx context.Context, req []byte) ([]byte, error)
}

// TransportFunc adapts a plain function to the Transport interface.
type TransportFunc func(ctx context.Context, req []byte) ([]byte, error)

func (f TransportFunc) RoundTrip(ctx context.Context, req []byte) ([]byte, error) {
	return f(ctx, req)
}

// Client sends requests through a single transport fixed at construction.
// It holds no mutable state and is safe for concurrent use.
type Client struct {
	transport Transport
	log       Logger
}

// New returns a client bound to http://host:port/path. Nothing is dialed
// until Send is called; every Send opens and closes its own connection.
func New(host string, port uint16, path string, opts ...Option) *Client {
	o := newOptions(opts)
	transport := newHTTPTransportFor(host, port, path, o)
	return &Client{transport: transport, log: o.log}
}

// NewWithTransport returns a client that delegates every call to t.
func NewWithTransport(t Transport, opts ...Option) *Client {
	o := newOptions(opts)
	return &Client{transport: t, log: o.log}
}

// Send performs one call and blocks until the transport returns.
// There is no retry; failures are returned to the caller as is.
func (c *Client) Send(ctx context.Context, req []byte) ([]byte, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	start := time.Now()
	resp, err := c.transport.RoundTrip(ctx, req)
	if err != nil {
		c.log.DebugObj("rpc call failed", "rpc_call", map[string]any{
			"request_bytes": len(req),
			"elapsed_ms":    time.Since(start).Milliseconds(),
			"kind":          KindOf(err).String(),
			"error":         err.Error(),
		})
		return nil, err
	}

	c.log.DebugObj("rpc call completed", "rpc_call", map[string]any{
		"request_bytes":  len(req),
		"response_bytes": len(resp),
		"elapsed_ms":     time.Since(start).Milliseconds(),
	})
	return resp, nil
}
