package app

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/samvad-hq/samvad-rpc-client/internal/config"
	"github.com/samvad-hq/samvad-rpc-client/internal/endpoints"
	"github.com/samvad-hq/samvad-rpc-client/internal/journal"
	"github.com/samvad-hq/samvad-rpc-client/internal/logger"
	"github.com/samvad-hq/samvad-rpc-client/pkg/httpclient"
	"github.com/samvad-hq/samvad-rpc-client/pkg/rpc"
	"golang.org/x/time/rate"
)

const (
	// ErrorPrefix starts every failure line written by the session.
	ErrorPrefix = "Error: "

	prompt            = "> "
	quitCommand       = `\quit`
	historyCommand    = `\history`
	defaultHistoryLen = 10
	maxLineBytes      = 16 << 20
)

// Session is the interactive client runtime. It owns the rpc client, the
// call journal and the pacing limiter for one target endpoint.
type Session struct {
	cfg     *config.Config
	client  *rpc.Client
	target  string
	journal journal.Store
	limiter *rate.Limiter
	log     logger.Logger
}

// Option overrides a dependency of the session, mostly for tests.
type Option func(*sessionDeps)

type sessionDeps struct {
	transport rpc.Transport
	journal   journal.Store
}

// WithTransport makes the session send through t instead of HTTP.
func WithTransport(t rpc.Transport) Option {
	return func(d *sessionDeps) { d.transport = t }
}

// WithJournal replaces the configured journal backend.
func WithJournal(s journal.Store) Option {
	return func(d *sessionDeps) { d.journal = s }
}

// NewSession builds a session runtime from config.
func NewSession(cfg *config.Config, log logger.Logger, opts ...Option) (*Session, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config must not be nil")
	}
	if log == nil {
		log = &logger.NopLogger{}
	}

	deps := &sessionDeps{}
	for _, opt := range opts {
		opt(deps)
	}

	host, port, path, target, err := resolveTarget(cfg)
	if err != nil {
		return nil, err
	}

	var client *rpc.Client
	if deps.transport != nil {
		client = rpc.NewWithTransport(deps.transport, rpc.WithLogger(log))
	} else {
		httpOpts := httpclient.Options{ConnectTimeout: cfg.ConnectTimeout}
		if logger.S != nil {
			httpOpts.Logger = logger.S
		}
		client = rpc.New(host, port, path,
			rpc.WithConnectTimeout(cfg.ConnectTimeout),
			rpc.WithHTTPClient(httpclient.NewRestyClient(httpOpts)),
			rpc.WithLogger(log),
		)
	}

	store := deps.journal
	if store == nil {
		store, err = journal.NewStore(cfg.JournalType, cfg.JournalPath, journal.Options{
			TTL:             cfg.JournalTTL,
			CleanupInterval: cfg.JournalCleanupInterval,
		})
		if err != nil {
			return nil, fmt.Errorf("init journal: %w", err)
		}
	}

	log.DebugObj("session initialized", "session_config", map[string]any{
		"target":               target,
		"connect_timeout_ms":   cfg.ConnectTimeout.Milliseconds(),
		"journal_type":         cfg.JournalType,
		"max_calls_per_second": cfg.MaxCallsPerSecond,
	})

	return &Session{
		cfg:     cfg,
		client:  client,
		target:  target,
		journal: store,
		limiter: newLimiter(cfg.MaxCallsPerSecond),
		log:     log,
	}, nil
}

// resolveTarget picks the named endpoint when one is selected, else the host/port/path from config.
func resolveTarget(cfg *config.Config) (string, uint16, string, string, error) {
	if cfg.Endpoint == "" {
		return cfg.RPCHost, cfg.Port(), cfg.RPCPath, rpc.EndpointURL(cfg.RPCHost, cfg.Port(), cfg.RPCPath), nil
	}

	reg, err := endpoints.LoadRegistry(cfg.EndpointsFile)
	if err != nil {
		return "", 0, "", "", fmt.Errorf("load endpoints registry: %w", err)
	}
	ep, ok := reg.ByName(cfg.Endpoint)
	if !ok {
		return "", 0, "", "", fmt.Errorf("endpoint %q not found in %s", cfg.Endpoint, cfg.EndpointsFile)
	}
	if !ep.EnabledValue() {
		return "", 0, "", "", fmt.Errorf("endpoint %q is disabled", cfg.Endpoint)
	}
	return ep.Host, uint16(ep.Port), ep.Path, ep.URL(), nil
}

func newLimiter(perSecond float64) *rate.Limiter {
	if perSecond <= 0 {
		return rate.NewLimiter(rate.Inf, 0)
	}
	return rate.NewLimiter(rate.Limit(perSecond), 1)
}

// Target returns the URL calls are sent to.
func (s *Session) Target() string { return s.target }

// Close releases the journal.
func (s *Session) Close() error {
	if s == nil || s.journal == nil {
		return nil
	}
	return s.journal.Close()
}

// Run reads payload lines from in until EOF, \quit or cancellation and
// writes one result line per call to out.
func (s *Session) Run(ctx context.Context, in io.Reader, out io.Writer) error {
	if s == nil || s.client == nil {
		return fmt.Errorf("session is not initialized")
	}

	done := make(chan struct{})
	defer close(done)

	lines, readErr := readLines(in, done)
	for {
		if !s.cfg.NoTTY {
			if _, err := io.WriteString(out, prompt); err != nil {
				return fmt.Errorf("write prompt: %w", err)
			}
		}

		var line string
		select {
		case <-ctx.Done():
			s.log.DebugObj("session exiting", "reason", ctx.Err().Error())
			return nil
		case l, ok := <-lines:
			if !ok {
				if err := <-readErr; err != nil {
					return fmt.Errorf("read input: %w", err)
				}
				return nil
			}
			line = l
		}

		line = strings.TrimRight(line, "\r")
		trimmed := strings.TrimSpace(line)
		switch {
		case trimmed == "":
			continue
		case trimmed == quitCommand:
			return nil
		case trimmed == historyCommand || strings.HasPrefix(trimmed, historyCommand+" "):
			if err := s.printHistory(out, strings.TrimSpace(strings.TrimPrefix(trimmed, historyCommand))); err != nil {
				return err
			}
			continue
		}

		resp, err := s.call(ctx, []byte(line))
		if errors.Is(err, context.Canceled) && ctx.Err() != nil {
			return nil
		}
		if err != nil {
			_, err = fmt.Fprintf(out, "%s%s\n", ErrorPrefix, err.Error())
		} else {
			_, err = fmt.Fprintf(out, "%s\n", resp)
		}
		if err != nil {
			return fmt.Errorf("write result: %w", err)
		}
	}
}

// SendOnce performs a single call and writes the raw response bytes to out.
func (s *Session) SendOnce(ctx context.Context, payload []byte, out io.Writer) error {
	if s == nil || s.client == nil {
		return fmt.Errorf("session is not initialized")
	}
	resp, err := s.call(ctx, payload)
	if err != nil {
		return err
	}
	if _, err := out.Write(resp); err != nil {
		return fmt.Errorf("write response: %w", err)
	}
	return nil
}

func (s *Session) call(ctx context.Context, payload []byte) ([]byte, error) {
	if err := s.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	start := time.Now()
	resp, err := s.client.Send(ctx, payload)

	entry := journal.Entry{
		At:       start.UTC(),
		Endpoint: s.target,
		Request:  payload,
		Response: resp,
	}
	if err != nil {
		entry.Error = err.Error()
		entry.Kind = rpc.KindOf(err).String()
		s.logFailure(err)
	}
	if jerr := s.journal.Record(entry); jerr != nil {
		s.log.WarnObj("journal record failed", "journal_error", jerr.Error())
	}

	return resp, err
}

func (s *Session) logFailure(err error) {
	var rpcErr *rpc.Error
	if !errors.As(err, &rpcErr) {
		s.log.DebugObj("rpc call failed", "rpc_error", map[string]any{
			"target": s.target,
			"error":  err.Error(),
		})
		return
	}

	fields := map[string]any{
		"target": s.target,
		"kind":   rpcErr.Kind.String(),
	}
	switch rpcErr.Kind {
	case rpc.KindNoResponse:
		if rpcErr.Err != nil {
			fields["cause"] = rpcErr.Err.Error()
		}
		s.log.DebugObj("rpc response was not received", "rpc_error", fields)
	case rpc.KindUnexpectedStatus:
		fields["status"] = rpcErr.StatusCode
		fields["body"] = summarizeBody(rpcErr.Body)
		s.log.DebugObj("unexpected server answer", "rpc_error", fields)
	default:
		s.log.DebugObj("server reported an error", "rpc_error", fields)
	}
}

func (s *Session) printHistory(out io.Writer, arg string) error {
	n := defaultHistoryLen
	if arg != "" {
		parsed, err := strconv.Atoi(arg)
		if err != nil || parsed <= 0 {
			_, werr := fmt.Fprintf(out, "%shistory length must be a positive integer, got %q\n", ErrorPrefix, arg)
			return werr
		}
		n = parsed
	}

	entries, err := s.journal.Recent(n)
	if err != nil {
		_, werr := fmt.Fprintf(out, "%s%s\n", ErrorPrefix, err.Error())
		return werr
	}
	if len(entries) == 0 {
		_, werr := io.WriteString(out, "no calls recorded\n")
		return werr
	}
	for _, e := range entries {
		result := strconv.Quote(string(e.Response))
		if e.Error != "" {
			result = ErrorPrefix + e.Error
		}
		if _, err := fmt.Fprintf(out, "%s %s %q -> %s\n",
			e.At.Format(time.RFC3339), e.Endpoint, e.Request, result); err != nil {
			return fmt.Errorf("write history: %w", err)
		}
	}
	return nil
}

// readLines scans in on a separate goroutine so that Run can observe
// cancellation while the reader blocks. The goroutine stops handing out
// lines once done is closed; a read already blocked in in still waits
// for that reader to return.
func readLines(in io.Reader, done <-chan struct{}) (<-chan string, <-chan error) {
	lines := make(chan string)
	errc := make(chan error, 1)

	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(in)
		scanner.Buffer(make([]byte, 64*1024), maxLineBytes)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-done:
				return
			}
		}
		errc <- scanner.Err()
	}()

	return lines, errc
}
