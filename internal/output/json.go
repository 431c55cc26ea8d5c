/*
PURPOSE:
  Writes HAR entries to a JSON Lines file (NDJSON), one entry object per line.
  Alternative to the HAR document for tools that want to tail or grep traffic.

REQUIREMENTS:
  Implementation-discovered:
  - JSON Lines is append-friendly: a crash leaves every complete line usable,
    unlike a HAR document which is only valid after Close.

ARCHITECTURE INTEGRATION:
  - Called by: internal/engine
  - Consumes: internal/model.Entry

ERROR HANDLING:
  - Returns error on file creation or write failure.
  - Invalid entries are rejected before anything is written.

IMPLEMENTATION RULES:
  - Entries are encoded with model.MarshalEntry so both outputs agree byte-for-byte.
  - Thread-safe.

USAGE:
  w := output.NewJSONLWriter(f)
  w.WriteEntry(entry)
  w.Close()

RELATED FILES:
  - internal/model/codec.go
*/

package output

import (
	"fmt"
	"io"
	"sync"

	"github.com/daryltucker/harstream/internal/model"
)

// JSONLWriter handles writing entries to a JSON Lines sink.
type JSONLWriter struct {
	sink   io.Writer
	mu     sync.Mutex
	closed bool
}

// NewJSONLWriter creates a new JSONLWriter. It takes ownership of sink.
func NewJSONLWriter(sink io.Writer) *JSONLWriter {
	return &JSONLWriter{sink: sink}
}

// WriteEntry writes a single entry as a JSON line.
// It is thread-safe.
func (jw *JSONLWriter) WriteEntry(e model.Entry) error {
	if err := e.Validate(); err != nil {
		return fmt.Errorf("invalid entry: %w", err)
	}
	data, err := model.MarshalEntry(e)
	if err != nil {
		return err
	}

	jw.mu.Lock()
	defer jw.mu.Unlock()

	if jw.closed {
		return ErrWriterClosed
	}
	_, err = jw.sink.Write(append(data, '\n'))
	return err
}

// Close closes the underlying sink if it is closable.
func (jw *JSONLWriter) Close() error {
	jw.mu.Lock()
	defer jw.mu.Unlock()

	if jw.closed {
		return ErrAlreadyClosed
	}
	jw.closed = true
	if c, ok := jw.sink.(io.Closer); ok {
		return c.Close()
	}
	return nil
}
