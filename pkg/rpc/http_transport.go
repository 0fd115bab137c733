package rpc

import (
	"context"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/samvad-hq/samvad-rpc-client/pkg/httpclient"
)

// ContentType is the media type of request and response bodies.
const ContentType = "application/octet-stream"

// HTTPTransport posts the request bytes to a fixed URL and maps the status
// code of the answer onto a payload or an *Error.
type HTTPTransport struct {
	client httpclient.Client
	url    string
}

// NewHTTPTransport builds a transport posting to endpoint through client.
func NewHTTPTransport(client httpclient.Client, endpoint string) *HTTPTransport {
	return &HTTPTransport{client: client, url: endpoint}
}

func newHTTPTransportFor(host string, port uint16, path string, o *options) *HTTPTransport {
	client := o.httpClient
	if client == nil {
		client = httpclient.NewRestyClient(httpclient.Options{
			ConnectTimeout: o.connectTimeout,
		})
	}
	return NewHTTPTransport(client, EndpointURL(host, port, path))
}

// EndpointURL renders the http URL for host, port and path. A missing
// leading slash on path is added.
func EndpointURL(host string, port uint16, path string) string {
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	u := url.URL{
		Scheme: "http",
		Host:   net.JoinHostPort(host, strconv.Itoa(int(port))),
		Path:   path,
	}
	return u.String()
}

// URL returns the endpoint the transport posts to.
func (t *HTTPTransport) URL() string { return t.url }

func (t *HTTPTransport) RoundTrip(ctx context.Context, req []byte) ([]byte, error) {
	resp, err := t.client.Post(ctx, t.url, ContentType, req)
	if err != nil {
		return nil, noResponseError(err)
	}
	if resp == nil {
		return nil, noResponseError(nil)
	}

	body := resp.Body()
	switch resp.StatusCode() {
	case http.StatusOK:
		return append([]byte{}, body...), nil
	case http.StatusBadRequest:
		return nil, applicationError(body)
	default:
		return nil, unexpectedStatusError(resp.StatusCode(), body)
	}
}
