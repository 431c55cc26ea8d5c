/*
PURPOSE:
  High-level runners behind the CLI commands.
  Run fetches the configured URLs concurrently; Record serves a recording proxy.
  Both stream every captured exchange into the configured sinks.

REQUIREMENTS:
  User-specified:
  - Fetch all configured URLs into one HAR document.
  - Record live traffic through a reverse proxy until interrupted.

  Implementation-discovered:
  - Every worker submits into the same writer; ordering in the document is
    completion order, not configuration order.
  - The sink must be closed only after every producer has returned, or late
    entries hit ErrWriterClosed.

ARCHITECTURE INTEGRATION:
  - Called by: internal/cli
  - Uses: internal/engine (Engine, Recorder), internal/output

ERROR HANDLING:
  - Logs per-URL failures but continues (resilience).
  - Setup errors (sinks, bad upstream, listen failure) are returned.
  - A failed Close is returned: the document is incomplete.

IMPLEMENTATION RULES:
  - One page per run, identified by a random UUID; every entry points at it.
  - Workers stop picking up URLs once ctx is cancelled.

USAGE:
  engine.Run(ctx, cfg)
  engine.Record(ctx, cfg)

RELATED FILES:
  - internal/engine/client.go
  - internal/engine/recorder.go
  - internal/engine/sinks.go

MAINTENANCE:
  - Update when new outputs are added to OpenSinks.
*/

package engine

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/daryltucker/harstream/internal/config"
	"github.com/daryltucker/harstream/internal/model"
	"github.com/daryltucker/harstream/internal/output"
)

// shutdownTimeout bounds how long Record waits for in-flight requests.
const shutdownTimeout = 10 * time.Second

// NewPage returns a page for one run, started now.
func NewPage(title string) model.Page {
	return model.Page{
		StartedDateTime: model.NewTimestamp(time.Now()),
		ID:              uuid.New().String(),
		Title:           title,
	}
}

// Run fetches every configured URL and writes the exchanges to the
// configured outputs.
func Run(ctx context.Context, cfg *config.Config) error {
	if err := cfg.ValidateFetch(); err != nil {
		return err
	}

	page := NewPage("harstream fetch")
	sink, err := OpenSinks(cfg, page)
	if err != nil {
		return err
	}

	captured, failed := Fetch(ctx, New(cfg), cfg, page.ID, sink)

	if err := sink.Close(); err != nil {
		return fmt.Errorf("failed to finish output %s: %w", cfg.OutputPath(), err)
	}
	output.Logger.Info("Fetch complete", "captured", captured, "failed", failed, "output", cfg.OutputPath())
	if ctx.Err() != nil {
		return ctx.Err()
	}
	return nil
}

// Fetch captures cfg.URLs with cfg.Concurrency workers and writes each entry
// to sink. It does not close sink. It returns how many URLs were captured and
// how many failed.
func Fetch(ctx context.Context, e *Engine, cfg *config.Config, pageRef string, sink output.EntrySink) (captured, failed int) {
	urls := make(chan string)
	var ok, bad atomic.Int64

	workers := cfg.Concurrency
	if workers < 1 {
		workers = 1
	}

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for target := range urls {
				if err := fetchOne(ctx, e, cfg, pageRef, target, sink); err != nil {
					output.Logger.Error("Failed to capture", "url", target, "error", err)
					bad.Add(1)
					continue
				}
				ok.Add(1)
			}
		}()
	}

feed:
	for _, target := range cfg.URLs {
		select {
		case <-ctx.Done():
			break feed
		case urls <- target:
		}
	}
	close(urls)
	wg.Wait()

	return int(ok.Load()), int(bad.Load())
}

func fetchOne(ctx context.Context, e *Engine, cfg *config.Config, pageRef, target string, sink output.EntrySink) error {
	var body []byte
	if cfg.Body != "" {
		body = []byte(cfg.Body)
	}

	req, err := http.NewRequestWithContext(ctx, strings.ToUpper(cfg.Method), target, nil)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	for k, v := range cfg.Headers {
		req.Header.Set(k, v)
	}

	output.Logger.Info("Fetching", "method", req.Method, "url", target)
	entry, err := e.Capture(ctx, req, body)
	if err != nil {
		return err
	}
	if pageRef != "" {
		entry.PageRef = model.Some(pageRef)
	}
	if err := sink.WriteEntry(entry); err != nil {
		return fmt.Errorf("failed to write entry: %w", err)
	}

	output.Logger.Debug("Captured",
		"url", target,
		"status", entry.Response.Status,
		"time_ms", entry.Time.String(),
	)
	return nil
}

// Record serves a recording reverse proxy to cfg.Upstream on cfg.Listen until
// ctx is cancelled, then drains in-flight requests and finishes the document.
func Record(ctx context.Context, cfg *config.Config) error {
	if err := cfg.ValidateRecord(); err != nil {
		return err
	}
	upstream, err := url.Parse(cfg.Upstream)
	if err != nil || upstream.Scheme == "" || upstream.Host == "" {
		return fmt.Errorf("%w: upstream %q is not an absolute URL", config.ErrInvalidConfig, cfg.Upstream)
	}

	ln, err := net.Listen("tcp", cfg.Listen)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", cfg.Listen, err)
	}

	page := NewPage("harstream record " + upstream.String())
	sink, err := OpenSinks(cfg, page)
	if err != nil {
		ln.Close()
		return err
	}

	rec := NewRecorder(sink, page.ID, cfg.CaptureBodyLimit)
	srv := &http.Server{
		Handler:           NewRecordingProxy(upstream, rec),
		ReadHeaderTimeout: cfg.RequestTimeout,
	}

	output.Logger.Info("Recording", "listen", ln.Addr().String(), "upstream", upstream.String(), "output", cfg.OutputPath())

	serveErr := make(chan error, 1)
	go func() { serveErr <- srv.Serve(ln) }()

	var runErr error
	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			output.Logger.Warn("Shutdown did not drain in time", "error", err)
		}
		<-serveErr
	case err := <-serveErr:
		if !errors.Is(err, http.ErrServerClosed) {
			runErr = fmt.Errorf("proxy server failed: %w", err)
		}
	}

	if err := sink.Close(); err != nil {
		return errors.Join(runErr, fmt.Errorf("failed to finish output %s: %w", cfg.OutputPath(), err))
	}
	output.Logger.Info("Recording stopped", "output", cfg.OutputPath())
	return runErr
}
