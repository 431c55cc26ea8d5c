/*
PURPOSE:
  Streams a HAR 1.2 document to a sink one entry at a time.
  Accepts entries from any number of goroutines without holding the archive in memory.

REQUIREMENTS:
  User-specified:
  - Output must be a single well-formed HAR document once Close returns.
  - WriteEntry must be safe for concurrent use and never block on I/O.

  Implementation-discovered:
  - The separator decision and the enqueue must happen in one critical section,
    otherwise two racing producers can drop or double a comma.
  - Close must join the consumer before touching the sink, otherwise the
    postscript can interleave with a late entry.

ARCHITECTURE INTEGRATION:
  - Called by: internal/engine (Run, Recorder), internal/cli
  - Consumes: internal/model.Entry

ERROR HANDLING:
  - Validation errors are returned synchronously from WriteEntry.
  - WriteEntry after Close returns ErrWriterClosed; a second Close returns ErrAlreadyClosed.
  - A sink write error is fatal: it is sticky, later calls return it wrapped in ErrSinkFailed.

IMPLEMENTATION RULES:
  - Only the consumer goroutine writes to the sink between preamble and postscript.
  - No I/O while holding mu.

USAGE:
  w, err := output.NewHARWriter(f, output.WithComment("nightly"))
  w.WriteEntry(entry)
  w.Close()

RELATED FILES:
  - internal/model/codec.go

MAINTENANCE:
  - Keep the preamble key order in sync with model.HarLog.
*/

package output

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/daryltucker/harstream/internal/model"
)

// Version is the harstream release, used as the default creator version.
const Version = "0.3.0"

const (
	defaultCreatorName    = "harstream"
	defaultCreatorComment = "https://github.com/daryltucker/harstream"
	defaultPollInterval   = time.Second
	entrySeparator        = ", "
	harPostscript         = "]}}"
)

var (
	ErrWriterClosed  = errors.New("writer: write after close")
	ErrAlreadyClosed = errors.New("writer: already closed")
	ErrSinkFailed    = errors.New("writer: sink failed")
)

// HAROption configures a HARWriter.
type HAROption func(*HARWriter)

// WithCreator overrides the default creator block.
func WithCreator(c model.Creator) HAROption {
	return func(w *HARWriter) { w.creator = c }
}

// WithBrowser overrides the default (empty) browser block.
func WithBrowser(b model.Browser) HAROption {
	return func(w *HARWriter) { w.browser = b }
}

// WithComment sets log.comment. Without it the comment is written as null.
func WithComment(comment string) HAROption {
	return func(w *HARWriter) { w.comment = model.Some(comment) }
}

// WithPages writes a log.pages array into the preamble.
func WithPages(pages ...model.Page) HAROption {
	return func(w *HARWriter) { w.pages = append(w.pages, pages...) }
}

// WithLogger sets the logger. Defaults to output.Logger.
func WithLogger(l *slog.Logger) HAROption {
	return func(w *HARWriter) { w.logger = l }
}

// WithPollInterval bounds how long the consumer waits for work before
// re-checking for shutdown.
func WithPollInterval(d time.Duration) HAROption {
	return func(w *HARWriter) {
		if d > 0 {
			w.pollInterval = d
		}
	}
}

// HARWriter writes a HAR document incrementally. Entries are serialized on the
// calling goroutine and appended to the sink by a single consumer goroutine.
type HARWriter struct {
	sink   io.Writer
	buf    *bufio.Writer
	logger *slog.Logger

	creator      model.Creator
	browser      model.Browser
	comment      model.Opt[string]
	pages        []model.Page
	pollInterval time.Duration

	mu      sync.Mutex
	pending [][]byte
	first   bool
	closed  bool
	err     error
	written int

	wake chan struct{}
	stop chan struct{}
	done chan struct{}
}

// NewHARWriter writes the document preamble to sink and starts the consumer.
// The writer owns sink until Close, which closes it if it is an io.Closer.
func NewHARWriter(sink io.Writer, opts ...HAROption) (*HARWriter, error) {
	w := &HARWriter{
		sink:   sink,
		buf:    bufio.NewWriter(sink),
		logger: Logger,
		creator: model.Creator{
			Name:    defaultCreatorName,
			Version: Version,
			Comment: model.Some(defaultCreatorComment),
		},
		browser:      model.Browser{Name: "", Version: ""},
		pollInterval: defaultPollInterval,
		first:        true,
		wake:         make(chan struct{}, 1),
		stop:         make(chan struct{}),
		done:         make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}

	if err := w.writePreamble(); err != nil {
		return nil, fmt.Errorf("write har preamble: %w", err)
	}

	go w.run()
	return w, nil
}

// WriteEntry validates and serializes e, then queues it for the consumer.
// It is safe for concurrent use and does no I/O.
func (w *HARWriter) WriteEntry(e model.Entry) error {
	if err := e.Validate(); err != nil {
		return fmt.Errorf("invalid entry: %w", err)
	}
	data, err := model.MarshalEntry(e)
	if err != nil {
		return err
	}

	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return ErrWriterClosed
	}
	if w.err != nil {
		err := w.err
		w.mu.Unlock()
		return err
	}
	if !w.first {
		data = append([]byte(entrySeparator), data...)
	}
	w.first = false
	w.pending = append(w.pending, data)
	w.mu.Unlock()

	select {
	case w.wake <- struct{}{}:
	default:
	}
	return nil
}

// Close waits until every accepted entry has been written, finishes the
// document and releases the sink.
func (w *HARWriter) Close() error {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return ErrAlreadyClosed
	}
	w.closed = true
	w.mu.Unlock()

	close(w.stop)
	<-w.done

	w.mu.Lock()
	failure := w.err
	written := w.written
	w.mu.Unlock()

	if failure != nil {
		w.release()
		return failure
	}

	if _, err := w.buf.WriteString(harPostscript); err != nil {
		w.release()
		return fmt.Errorf("%w: write postscript: %w", ErrSinkFailed, err)
	}
	if err := w.buf.Flush(); err != nil {
		w.release()
		return fmt.Errorf("%w: flush postscript: %w", ErrSinkFailed, err)
	}
	if err := w.release(); err != nil {
		return fmt.Errorf("%w: close sink: %w", ErrSinkFailed, err)
	}

	w.logger.Info("HAR document closed", "entries", written)
	return nil
}

// Written reports how many entries have been flushed to the sink.
func (w *HARWriter) Written() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.written
}

func (w *HARWriter) release() error {
	if c, ok := w.sink.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

func (w *HARWriter) writePreamble() error {
	creator, err := model.Marshal(w.creator)
	if err != nil {
		return err
	}
	browser, err := model.Marshal(w.browser)
	if err != nil {
		return err
	}
	comment, err := model.Marshal(w.comment)
	if err != nil {
		return err
	}

	var b bytes.Buffer
	b.WriteString(`{"log":{"version":"` + model.Version + `","creator":`)
	b.Write(creator)
	b.WriteString(`,"browser":`)
	b.Write(browser)
	b.WriteString(`,"comment":`)
	b.Write(comment)
	if len(w.pages) > 0 {
		pages, err := model.Marshal(model.List[model.Page](w.pages))
		if err != nil {
			return err
		}
		b.WriteString(`,"pages":`)
		b.Write(pages)
	}
	b.WriteString(`,"entries":[`)

	if _, err := w.buf.Write(b.Bytes()); err != nil {
		return err
	}
	if err := w.buf.Flush(); err != nil {
		return err
	}

	w.logger.Debug("HAR preamble written", "creator", w.creator.Name, "pages", len(w.pages))
	return nil
}

// run is the consumer. It is the only goroutine touching the sink until it
// exits, which happens after stop is closed and the queue is empty, or on the
// first sink error.
func (w *HARWriter) run() {
	defer close(w.done)

	timer := time.NewTimer(w.pollInterval)
	defer timer.Stop()

	for {
		stopping := false
		select {
		case <-w.wake:
		case <-w.stop:
			stopping = true
		case <-timer.C:
		}
		timer.Reset(w.pollInterval)

		if err := w.drain(); err != nil {
			w.fail(err)
			return
		}
		// closed is set before stop, so the drain above emptied the queue for good.
		if stopping {
			return
		}
	}
}

// drain writes every queued item in FIFO order and flushes.
func (w *HARWriter) drain() error {
	w.mu.Lock()
	batch := w.pending
	w.pending = nil
	w.mu.Unlock()

	if len(batch) == 0 {
		return nil
	}

	for _, item := range batch {
		if _, err := w.buf.Write(item); err != nil {
			return err
		}
	}
	if err := w.buf.Flush(); err != nil {
		return err
	}

	w.mu.Lock()
	w.written += len(batch)
	w.mu.Unlock()

	w.logger.Debug("HAR entries flushed", "count", len(batch))
	return nil
}

func (w *HARWriter) fail(err error) {
	w.mu.Lock()
	w.err = fmt.Errorf("%w: %w", ErrSinkFailed, err)
	w.pending = nil
	w.mu.Unlock()

	w.logger.Error("HAR sink write failed; document is incomplete", "error", err)
}
