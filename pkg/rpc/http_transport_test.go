package rpc

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/samvad-hq/samvad-rpc-client/pkg/httpclient"
)

// stubHTTPResponse implements httpclient.Response.
type stubHTTPResponse struct {
	body       []byte
	statusCode int
}

func (s stubHTTPResponse) Body() []byte    { return s.body }
func (s stubHTTPResponse) StatusCode() int { return s.statusCode }

// stubHTTPClient returns a single response or error and records the request.
type stubHTTPClient struct {
	resp        httpclient.Response
	err         error
	url         string
	contentType string
	body        []byte
}

func (s *stubHTTPClient) Post(_ context.Context, url, contentType string, body []byte) (httpclient.Response, error) {
	s.url = url
	s.contentType = contentType
	s.body = body
	if s.err != nil {
		return nil, s.err
	}
	return s.resp, nil
}

func TestHTTPTransportStatusOKReturnsBody(t *testing.T) {
	stub := &stubHTTPClient{resp: stubHTTPResponse{statusCode: 200, body: []byte("pong")}}
	client := New("example.com", 5050, "numbers", WithHTTPClient(stub))

	for _, req := range [][]byte{nil, []byte("ping"), {0x01, 0x02}} {
		got, err := client.Send(context.Background(), req)
		if err != nil {
			t.Fatalf("Send(%q): %v", req, err)
		}
		if string(got) != "pong" {
			t.Fatalf("Send(%q) = %q, want pong", req, got)
		}
		if !bytes.Equal(stub.body, req) {
			t.Fatalf("posted body %q, want %q", stub.body, req)
		}
	}
	if stub.url != "http://example.com:5050/numbers" {
		t.Fatalf("posted to %q", stub.url)
	}
	if stub.contentType != ContentType {
		t.Fatalf("content type %q", stub.contentType)
	}
}

func TestHTTPTransportResponseIsOwnedByCaller(t *testing.T) {
	body := []byte("pong")
	stub := &stubHTTPClient{resp: stubHTTPResponse{statusCode: 200, body: body}}
	transport := NewHTTPTransport(stub, "http://example.com/")

	got, err := transport.RoundTrip(context.Background(), []byte("ping"))
	if err != nil {
		t.Fatalf("RoundTrip: %v", err)
	}
	body[0] = 'X'
	if string(got) != "pong" {
		t.Fatalf("response aliases transport buffer: %q", got)
	}
}

func TestHTTPTransportBadRequestIsApplicationError(t *testing.T) {
	stub := &stubHTTPClient{resp: stubHTTPResponse{statusCode: 400, body: []byte("bad")}}
	client := NewWithTransport(NewHTTPTransport(stub, "http://example.com/"))

	_, err := client.Send(context.Background(), []byte("x"))
	if err == nil {
		t.Fatalf("expected error")
	}
	if err.Error() != "RPC error: bad" {
		t.Fatalf("message = %q", err.Error())
	}
	if !errors.Is(err, ErrApplication) {
		t.Fatalf("expected application kind, got %v", KindOf(err))
	}
	if msg, ok := IsApplicationError(err); !ok || msg != "bad" {
		t.Fatalf("IsApplicationError = %q, %v", msg, ok)
	}
}

func TestHTTPTransportUnexpectedStatus(t *testing.T) {
	for _, code := range []int{201, 302, 404, 500, 503} {
		stub := &stubHTTPClient{resp: stubHTTPResponse{statusCode: code, body: []byte("<html></html>")}}
		client := NewWithTransport(NewHTTPTransport(stub, "http://example.com/"))

		_, err := client.Send(context.Background(), []byte("x"))
		if err == nil {
			t.Fatalf("status %d: expected error", code)
		}
		if !strings.Contains(err.Error(), "code: "+strconv.Itoa(code)) {
			t.Fatalf("status %d: message %q lacks code", code, err.Error())
		}
		var rpcErr *Error
		if !errors.As(err, &rpcErr) || rpcErr.Kind != KindUnexpectedStatus || rpcErr.StatusCode != code {
			t.Fatalf("status %d: unexpected error value %#v", code, err)
		}
		if string(rpcErr.Body) != "<html></html>" {
			t.Fatalf("status %d: body snippet %q", code, rpcErr.Body)
		}
	}
}

func TestHTTPTransportNoResponse(t *testing.T) {
	cause := errors.New("dial tcp: i/o timeout")
	stub := &stubHTTPClient{err: cause}
	client := NewWithTransport(NewHTTPTransport(stub, "http://example.com/"))

	_, err := client.Send(context.Background(), []byte("x"))
	if err == nil {
		t.Fatalf("expected error")
	}
	if err.Error() != "RPC response was not received" {
		t.Fatalf("message = %q", err.Error())
	}
	if !errors.Is(err, ErrNoResponse) {
		t.Fatalf("expected no-response kind")
	}
	if !errors.Is(err, cause) {
		t.Fatalf("expected cause to be wrapped")
	}
}

func TestHTTPTransportNilResponseIsNoResponse(t *testing.T) {
	client := NewWithTransport(NewHTTPTransport(&stubHTTPClient{}, "http://example.com/"))
	if _, err := client.Send(context.Background(), nil); !errors.Is(err, ErrNoResponse) {
		t.Fatalf("expected no-response error, got %v", err)
	}
}

func TestEndpointURL(t *testing.T) {
	cases := []struct {
		host string
		port uint16
		path string
		want string
	}{
		{"vmedv.com", 5050, "numbers", "http://vmedv.com:5050/numbers"},
		{"localhost", 80, "/rpc", "http://localhost:80/rpc"},
		{"::1", 8080, "", "http://[::1]:8080/"},
	}
	for _, tc := range cases {
		if got := EndpointURL(tc.host, tc.port, tc.path); got != tc.want {
			t.Errorf("EndpointURL(%q, %d, %q) = %q, want %q", tc.host, tc.port, tc.path, got, tc.want)
		}
	}
}

func TestNewTalksToRealServer(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/square" {
			http.Error(w, "no such method", http.StatusNotFound)
			return
		}
		body, _ := io.ReadAll(r.Body)
		switch string(body) {
		case "21":
			_, _ = w.Write([]byte("441"))
		default:
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte("square overflow"))
		}
	}))
	defer srv.Close()

	addr := srv.Listener.Addr().(*net.TCPAddr)
	client := New("127.0.0.1", uint16(addr.Port), "square")

	got, err := client.Send(context.Background(), []byte("21"))
	if err != nil || string(got) != "441" {
		t.Fatalf("Send(21) = %q, %v", got, err)
	}

	_, err = client.Send(context.Background(), []byte("123456789"))
	if err == nil || err.Error() != "RPC error: square overflow" {
		t.Fatalf("Send(overflow) error = %v", err)
	}

	other := New("127.0.0.1", uint16(addr.Port), "cube")
	if _, err := other.Send(context.Background(), []byte("2")); !errors.Is(err, ErrUnexpectedStatus) {
		t.Fatalf("expected unexpected status for unknown path, got %v", err)
	}
}

func TestNewReportsNoResponseWhenServerIsDown(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	addr := srv.Listener.Addr().(*net.TCPAddr)
	srv.Close()

	client := New("127.0.0.1", uint16(addr.Port), "/")
	_, err := client.Send(context.Background(), []byte("x"))
	if !errors.Is(err, ErrNoResponse) {
		t.Fatalf("expected no-response error, got %v", err)
	}
}

func TestNewReportsRedirectsAsUnexpectedStatus(t *testing.T) {
	for _, code := range []int{http.StatusFound, http.StatusTemporaryRedirect} {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path == "/elsewhere" {
				_, _ = w.Write([]byte("pong"))
				return
			}
			http.Redirect(w, r, "/elsewhere", code)
		}))

		addr := srv.Listener.Addr().(*net.TCPAddr)
		resp, err := New("127.0.0.1", uint16(addr.Port), "/rpc").Send(context.Background(), []byte("ping"))
		srv.Close()

		if !errors.Is(err, ErrUnexpectedStatus) {
			t.Fatalf("status %d: resp=%q err=%v, want unexpected status", code, resp, err)
		}
		if !strings.Contains(err.Error(), "(code: "+strconv.Itoa(code)+")") {
			t.Fatalf("status %d: message %q", code, err.Error())
		}
	}
}

func TestNewUsesOneSecondConnectTimeoutByDefault(t *testing.T) {
	if DefaultConnectTimeout != time.Second {
		t.Fatalf("DefaultConnectTimeout = %v", DefaultConnectTimeout)
	}

	cases := []struct {
		opts []Option
		want time.Duration
	}{
		{nil, time.Second},
		{[]Option{WithConnectTimeout(250 * time.Millisecond)}, 250 * time.Millisecond},
		{[]Option{WithConnectTimeout(0)}, time.Second},
	}
	for _, tc := range cases {
		tr := newHTTPTransportFor("example.com", 80, "/", newOptions(tc.opts))
		rc, ok := tr.client.(*httpclient.RestyClient)
		if !ok {
			t.Fatalf("default http client is %T", tr.client)
		}
		if got := rc.Options().ConnectTimeout; got != tc.want {
			t.Fatalf("ConnectTimeout = %v, want %v", got, tc.want)
		}
		if rc.Options().KeepAlive {
			t.Fatalf("keep-alive must be off so each call uses its own connection")
		}
	}
}

func TestNewSendsThroughInjectedHTTPClient(t *testing.T) {
	stub := &stubHTTPClient{resp: stubHTTPResponse{statusCode: 200, body: []byte("ok")}}
	client := New("::1", 9000, "rpc", WithHTTPClient(stub), WithConnectTimeout(time.Minute))

	if _, err := client.Send(context.Background(), []byte{0x01}); err != nil {
		t.Fatalf("Send: %v", err)
	}
	if stub.url != "http://[::1]:9000/rpc" {
		t.Fatalf("posted to %q", stub.url)
	}
	if stub.contentType != "application/octet-stream" {
		t.Fatalf("content type %q", stub.contentType)
	}
}
