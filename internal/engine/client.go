/*
PURPOSE:
  Core engine for issuing HTTP requests and capturing them as HAR entries.
  Handles timing breakdown, body capture and retries.

REQUIREMENTS:
  User-specified:
  - Capture method, URL, headers, cookies, query string, bodies and status.
  - Timing breakdown (blocked / dns / connect / ssl / send / wait / receive).

  Implementation-discovered:
  - Phases that did not happen (reused connection: no dns/connect/ssl) must be
    left absent, not written as 0; HAR readers treat 0 as "measured, instant".
  - httptrace hooks can fire from transport goroutines, so the clock is locked.

ARCHITECTURE INTEGRATION:
  - Called by: internal/engine/runner.go
  - Uses: internal/config, internal/model, internal/output

ERROR HANDLING:
  - Retries network errors up to MaxRetries with RetryDelay between attempts.
  - Non-2xx responses are not errors: they are traffic and get recorded.

IMPLEMENTATION RULES:
  - Use net/http and net/http/httptrace.
  - Enforce timeouts via config.RequestTimeout.
  - Every returned Entry has passed model.NewEntry.

USAGE:
  e := engine.New(cfg)
  entry, err := e.Capture(ctx, req, body)

RELATED FILES:
  - internal/engine/convert.go
  - internal/config/config.go

MAINTENANCE:
  - Update phaseClock when httptrace grows new hooks worth recording.
*/

package engine

import (
	"bytes"
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/http/httptrace"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/daryltucker/harstream/internal/config"
	"github.com/daryltucker/harstream/internal/model"
	"github.com/daryltucker/harstream/internal/output"
)

// Engine issues requests and turns them into HAR entries.
type Engine struct {
	Config *config.Config
	Client *http.Client
}

// New creates a new Engine.
func New(cfg *config.Config) *Engine {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	// Bodies are recorded as the server sent them; the Content-Encoding header
	// tells readers how to decode.
	transport.DisableCompression = true

	return &Engine{
		Config: cfg,
		Client: &http.Client{
			Transport: transport,
			Timeout:   cfg.RequestTimeout,
			CheckRedirect: func(*http.Request, []*http.Request) error {
				// Each hop is its own entry; redirectURL records the target.
				return http.ErrUseLastResponse
			},
		},
	}
}

// phaseClock collects httptrace timestamps for one attempt.
type phaseClock struct {
	mu sync.Mutex

	start        time.Time
	dnsStart     time.Time
	dnsDone      time.Time
	connectStart time.Time
	connectDone  time.Time
	tlsStart     time.Time
	tlsDone      time.Time
	gotConn      time.Time
	wroteRequest time.Time
	firstByte    time.Time
	end          time.Time

	remoteAddr string
	localAddr  string
}

func (c *phaseClock) mark(dst *time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if dst.IsZero() {
		*dst = time.Now()
	}
}

func (c *phaseClock) trace() *httptrace.ClientTrace {
	return &httptrace.ClientTrace{
		DNSStart: func(httptrace.DNSStartInfo) { c.mark(&c.dnsStart) },
		DNSDone:  func(httptrace.DNSDoneInfo) { c.mark(&c.dnsDone) },
		ConnectStart: func(string, string) {
			c.mark(&c.connectStart)
		},
		ConnectDone: func(_, _ string, err error) {
			if err == nil {
				c.mark(&c.connectDone)
			}
		},
		TLSHandshakeStart: func() { c.mark(&c.tlsStart) },
		TLSHandshakeDone: func(_ tls.ConnectionState, err error) {
			if err == nil {
				c.mark(&c.tlsDone)
			}
		},
		GotConn: func(info httptrace.GotConnInfo) {
			c.mark(&c.gotConn)
			c.mu.Lock()
			c.remoteAddr = info.Conn.RemoteAddr().String()
			c.localAddr = info.Conn.LocalAddr().String()
			c.mu.Unlock()
		},
		WroteRequest:         func(httptrace.WroteRequestInfo) { c.mark(&c.wroteRequest) },
		GotFirstResponseByte: func() { c.mark(&c.firstByte) },
	}
}

func (c *phaseClock) addrs() (remote, local string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.remoteAddr, c.localAddr
}

func span(from, to time.Time) (time.Duration, bool) {
	if from.IsZero() || to.IsZero() {
		return 0, false
	}
	return to.Sub(from), true
}

func optSpan(from, to time.Time) model.Opt[model.Number] {
	if d, ok := span(from, to); ok {
		return model.Some(ms(d))
	}
	return model.Opt[model.Number]{}
}

// timings turns the collected timestamps into a HAR breakdown.
func (c *phaseClock) timings() model.Timings {
	c.mu.Lock()
	defer c.mu.Unlock()

	t := model.Timings{
		DNS: optSpan(c.dnsStart, c.dnsDone),
		SSL: optSpan(c.tlsStart, c.tlsDone),
	}

	// HAR counts the TLS handshake inside connect.
	connectEnd := c.connectDone
	if c.tlsDone.After(connectEnd) {
		connectEnd = c.tlsDone
	}
	t.Connect = optSpan(c.connectStart, connectEnd)

	firstActivity := c.gotConn
	for _, ts := range []time.Time{c.tlsStart, c.connectStart, c.dnsStart} {
		if !ts.IsZero() {
			firstActivity = ts
		}
	}
	t.Blocked = optSpan(c.start, firstActivity)

	send, _ := span(c.gotConn, c.wroteRequest)
	wait, _ := span(c.wroteRequest, c.firstByte)
	receive, _ := span(c.firstByte, c.end)
	t.Send = ms(send)
	t.Wait = ms(wait)
	t.Receive = ms(receive)
	return t
}

// Capture sends req (with body, which may be nil) and returns the exchange as
// a validated entry. Network errors are retried per config.
func (e *Engine) Capture(ctx context.Context, req *http.Request, body []byte) (model.Entry, error) {
	attempts := e.Config.MaxRetries
	if attempts < 1 {
		attempts = 1
	}

	var lastErr error
	for i := 0; i < attempts; i++ {
		if i > 0 {
			output.Logger.Info("Retrying request...", "url", req.URL.String(), "attempt", i+1)
			select {
			case <-ctx.Done():
				return model.Entry{}, ctx.Err()
			case <-time.After(e.Config.RetryDelay):
			}
		}

		entry, err := e.captureOnce(ctx, req, body)
		if err == nil {
			return entry, nil
		}
		if ctx.Err() != nil {
			return model.Entry{}, ctx.Err()
		}
		output.Logger.Warn("Request failed", "url", req.URL.String(), "attempt", i+1, "error", err)
		lastErr = err
	}
	return model.Entry{}, lastErr
}

func (e *Engine) captureOnce(ctx context.Context, req *http.Request, body []byte) (model.Entry, error) {
	clock := &phaseClock{}
	attempt := req.Clone(httptrace.WithClientTrace(ctx, clock.trace()))
	if body != nil {
		attempt.Body = io.NopCloser(bytes.NewReader(body))
		attempt.ContentLength = int64(len(body))
	}

	clock.start = time.Now()
	resp, err := e.Client.Do(attempt)
	if err != nil {
		if strings.Contains(err.Error(), "awaiting headers") {
			return model.Entry{}, fmt.Errorf("header timeout: %w", err)
		}
		return model.Entry{}, fmt.Errorf("network/connection error: %w", err)
	}
	defer resp.Body.Close()

	captured, err := readBody(resp.Body, e.Config.CaptureBodyLimit)
	if err != nil {
		return model.Entry{}, fmt.Errorf("failed to read response body: %w", err)
	}
	clock.mark(&clock.end)

	entry := model.Entry{
		StartedDateTime: model.NewTimestamp(clock.start),
		Time:            ms(clock.end.Sub(clock.start)),
		Request:         buildRequest(attempt, body),
		Response: buildResponse(
			resp.StatusCode,
			strings.TrimPrefix(resp.Status, strconv.Itoa(resp.StatusCode)+" "),
			resp.Proto,
			resp.Header,
			captured,
		),
		Timings: clock.timings(),
	}
	remote, local := clock.addrs()
	if host, _, err := net.SplitHostPort(remote); err == nil {
		entry.ServerIPAddress = model.Some(host)
	}
	if _, port, err := net.SplitHostPort(local); err == nil {
		entry.Connection = model.Some(port)
	}

	return model.NewEntry(entry)
}

// readBody reads at most limit bytes (limit <= 0 means no limit) and counts
// the rest without keeping it.
func readBody(r io.Reader, limit int64) (contentBody, error) {
	if limit <= 0 {
		data, err := io.ReadAll(r)
		if err != nil {
			return contentBody{}, err
		}
		return contentBody{data: data, size: int64(len(data))}, nil
	}

	var buf bytes.Buffer
	kept, err := io.Copy(&buf, io.LimitReader(r, limit))
	if err != nil {
		return contentBody{}, err
	}
	rest, err := io.Copy(io.Discard, r)
	if err != nil {
		return contentBody{}, err
	}
	return contentBody{data: buf.Bytes(), size: kept + rest, truncated: rest > 0}, nil
}
