/*
PURPOSE:
  Writes a one-row-per-entry traffic summary to a CSV file.
  Ensures data integrity by flushing writes immediately.

REQUIREMENTS:
  User-specified:
  - Quick spreadsheet view of a capture next to the full HAR.

  Implementation-discovered:
  - Numbers are written with model.Number.String() so 200 stays 200.

ARCHITECTURE INTEGRATION:
  - Called by: internal/engine
  - Consumes: internal/model.Entry

ERROR HANDLING:
  - Returns error on header or row write failure.
  - ErrWriterClosed / ErrAlreadyClosed after Close, same as the other writers.

IMPLEMENTATION RULES:
  - Use encoding/csv.
  - Flush() after every write (critical for crash resilience).
  - Mutex: entries arrive from many goroutines.

USAGE:
  w, err := output.NewCSVWriter(f)
  w.WriteEntry(entry)
  w.Close()

MAINTENANCE:
  - Update csvHeader and summaryRow together.
*/

package output

import (
	"encoding/csv"
	"errors"
	"io"
	"strconv"
	"sync"

	"github.com/daryltucker/harstream/internal/model"
)

var csvHeader = []string{
	"started", "method", "url", "http_version",
	"status", "status_text", "mime_type", "content_size",
	"time_ms", "wait_ms", "pageref",
}

// CSVWriter handles writing entry summaries to a CSV sink.
type CSVWriter struct {
	sink   io.Writer
	writer *csv.Writer
	mu     sync.Mutex
	closed bool
}

// NewCSVWriter creates a new CSVWriter and writes the header row.
func NewCSVWriter(sink io.Writer) (*CSVWriter, error) {
	w := csv.NewWriter(sink)

	if err := w.Write(csvHeader); err != nil {
		return nil, err
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, err
	}

	return &CSVWriter{
		sink:   sink,
		writer: w,
	}, nil
}

// WriteEntry writes a single summary row.
// It is thread-safe.
func (cw *CSVWriter) WriteEntry(e model.Entry) error {
	cw.mu.Lock()
	defer cw.mu.Unlock()

	if cw.closed {
		return ErrWriterClosed
	}
	if err := cw.writer.Write(summaryRow(e)); err != nil {
		return err
	}
	cw.writer.Flush()
	return cw.writer.Error()
}

// Close flushes and closes the underlying sink if it is closable. The sink is
// closed even when the final flush fails; both errors are reported.
func (cw *CSVWriter) Close() error {
	cw.mu.Lock()
	defer cw.mu.Unlock()

	if cw.closed {
		return ErrAlreadyClosed
	}
	cw.closed = true

	cw.writer.Flush()
	err := cw.writer.Error()
	if c, ok := cw.sink.(io.Closer); ok {
		err = errors.Join(err, c.Close())
	}
	return err
}

func summaryRow(e model.Entry) []string {
	return []string{
		e.StartedDateTime.String(),
		e.Request.Method,
		e.Request.URL,
		e.Request.HTTPVersion,
		strconv.Itoa(e.Response.Status),
		e.Response.StatusText,
		e.Response.Content.MimeType,
		strconv.FormatInt(e.Response.Content.Size, 10),
		e.Time.String(),
		e.Timings.Wait.String(),
		e.PageRef.OrElse(""),
	}
}
