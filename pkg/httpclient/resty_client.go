package httpclient

import (
	"context"
	"net"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
)

// Options tunes the underlying resty client.
type Options struct {
	// ConnectTimeout bounds TCP connection establishment. Zero means no limit.
	ConnectTimeout time.Duration
	// Timeout bounds the whole exchange. Zero means no limit.
	Timeout time.Duration
	// KeepAlive allows connection reuse between requests. When false every
	// request dials a fresh connection that is closed once the response is read.
	KeepAlive bool
	// Logger receives resty's internal warnings and errors. Nil keeps resty's default.
	Logger resty.Logger
}

// RestyClient adapts resty.Client to the httpclient.Client interface.
type RestyClient struct {
	client *resty.Client
	opts   Options
}

// NewRestyClient creates a new RestyClient with the given options.
func NewRestyClient(opts Options) *RestyClient {
	return &RestyClient{client: newRestyBaseClient(opts), opts: opts}
}

// Options returns the settings the client was built with.
func (r *RestyClient) Options() Options { return r.opts }

// newRestyBaseClient creates a new resty.Client with its own transport.
func newRestyBaseClient(opts Options) *resty.Client {
	dialer := &net.Dialer{Timeout: opts.ConnectTimeout}
	transport := &http.Transport{
		Proxy:             http.ProxyFromEnvironment,
		DialContext:       dialer.DialContext,
		DisableKeepAlives: !opts.KeepAlive,
	}

	c := resty.New()
	c.SetTransport(transport)
	c.SetTimeout(opts.Timeout)
	// 3xx answers are returned to the caller, never followed.
	c.SetRedirectPolicy(resty.RedirectPolicyFunc(func(*http.Request, []*http.Request) error {
		return http.ErrUseLastResponse
	}))
	if opts.Logger != nil {
		c.SetLogger(opts.Logger)
	}
	return c
}

// Post performs an HTTP POST of the raw body with the given content type.
func (r *RestyClient) Post(ctx context.Context, url, contentType string, body []byte) (Response, error) {
	if body == nil {
		body = []byte{}
	}
	resp, err := r.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", contentType).
		SetBody(body).
		Post(url)
	if err != nil {
		return nil, err
	}
	return &restyResponseAdapter{resp: resp}, nil
}

// restyResponseAdapter adapts resty.Response to the httpclient.Response interface.
type restyResponseAdapter struct {
	resp *resty.Response
}

func (r *restyResponseAdapter) Body() []byte    { return r.resp.Body() }
func (r *restyResponseAdapter) StatusCode() int { return r.resp.StatusCode() }
