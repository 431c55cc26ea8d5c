package output

import (
	"errors"

	"github.com/daryltucker/harstream/internal/model"
)

// EntrySink is anything that accepts validated entries: HARWriter,
// JSONLWriter, CSVWriter, or a MultiSink of them.
type EntrySink interface {
	WriteEntry(e model.Entry) error
	Close() error
}

// MultiSink fans every entry out to all of its sinks, in order. The first sink
// is the primary output: its error is the result of WriteEntry. The others are
// side outputs whose failures are logged but do not fail the entry.
type MultiSink []EntrySink

func (m MultiSink) WriteEntry(e model.Entry) error {
	if len(m) == 0 {
		return nil
	}
	err := m[0].WriteEntry(e)
	for i, s := range m[1:] {
		if serr := s.WriteEntry(e); serr != nil {
			Logger.Warn("side output rejected entry", "sink", i+1, "url", e.Request.URL, "error", serr)
		}
	}
	return err
}

// Close closes every sink, even if an earlier one fails.
func (m MultiSink) Close() error {
	var errs []error
	for _, s := range m {
		if err := s.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
