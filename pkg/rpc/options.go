package rpc

import (
	"time"

	"github.com/samvad-hq/samvad-rpc-client/pkg/httpclient"
)

// Option configures a Client.
type Option func(*options)

type options struct {
	log            Logger
	connectTimeout time.Duration
	httpClient     httpclient.Client
}

func newOptions(opts []Option) *options {
	o := &options{connectTimeout: DefaultConnectTimeout}
	for _, opt := range opts {
		if opt != nil {
			opt(o)
		}
	}
	o.log = ensureLogger(o.log)
	return o
}

// WithLogger enables debug-level call logging. Clients are silent by default.
func WithLogger(log Logger) Option {
	return func(o *options) { o.log = log }
}

// WithConnectTimeout overrides the 1 second connect timeout used by New.
func WithConnectTimeout(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.connectTimeout = d
		}
	}
}

// WithHTTPClient replaces the HTTP layer used by New, keeping its status mapping.
func WithHTTPClient(c httpclient.Client) Option {
	return func(o *options) { o.httpClient = c }
}
