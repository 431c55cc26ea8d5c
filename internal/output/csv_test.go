package output

import (
	"encoding/csv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/daryltucker/harstream/internal/model"
)

func TestCSVWriter(t *testing.T) {
	sink := &syncBuffer{}
	w, err := NewCSVWriter(sink)
	require.NoError(t, err)

	e := entryFor("https://example.com/search?q=a,b")
	e.PageRef = model.Some("page_1")
	e.Time = model.Float(10.25)
	require.NoError(t, w.WriteEntry(e))
	require.NoError(t, w.Close())
	assert.True(t, sink.closed)

	rows, err := csv.NewReader(strings.NewReader(sink.String())).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, csvHeader, rows[0])
	assert.Equal(t, []string{
		"2024-05-01T12:00:00Z", "GET", "https://example.com/search?q=a,b", "HTTP/1.1",
		"200", "OK", "text/plain", "0",
		"10.25", "8", "page_1",
	}, rows[1])
}

func TestCSVWriterMisuse(t *testing.T) {
	sink := &syncBuffer{}
	w, err := NewCSVWriter(sink)
	require.NoError(t, err)
	require.NoError(t, w.Close())

	assert.ErrorIs(t, w.WriteEntry(entryFor("https://example.com/late")), ErrWriterClosed)
	assert.ErrorIs(t, w.Close(), ErrAlreadyClosed)

	rows, err := csv.NewReader(strings.NewReader(sink.String())).ReadAll()
	require.NoError(t, err)
	assert.Len(t, rows, 1)
}

func TestCSVWriterCloseReportsFlushError(t *testing.T) {
	sink := &failingSink{okWrites: 1}
	w, err := NewCSVWriter(sink)
	require.NoError(t, err)

	assert.ErrorIs(t, w.WriteEntry(entryFor("https://example.com/a")), errDiskFull)

	err = w.Close()
	assert.ErrorIs(t, err, errDiskFull)
	assert.True(t, sink.closed)
}
