package output

import (
	"bufio"
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/daryltucker/harstream/internal/model"
)

func TestJSONLWriter(t *testing.T) {
	sink := &syncBuffer{}
	w := NewJSONLWriter(sink)

	require.NoError(t, w.WriteEntry(entryFor("https://example.com/a")))
	require.NoError(t, w.WriteEntry(entryFor("https://example.com/b")))

	err := w.WriteEntry(model.Entry{})
	var ve *model.ValidationError
	assert.True(t, errors.As(err, &ve))

	require.NoError(t, w.Close())
	assert.True(t, sink.closed)
	assert.ErrorIs(t, w.WriteEntry(entryFor("https://example.com/c")), ErrWriterClosed)
	assert.ErrorIs(t, w.Close(), ErrAlreadyClosed)

	var urls []string
	scanner := bufio.NewScanner(strings.NewReader(sink.String()))
	for scanner.Scan() {
		e, err := model.DecodeEntry(scanner.Bytes())
		require.NoError(t, err)
		urls = append(urls, e.Request.URL)
	}
	assert.Equal(t, []string{"https://example.com/a", "https://example.com/b"}, urls)
}

func TestMultiSink(t *testing.T) {
	a, b := &syncBuffer{}, &syncBuffer{}
	m := MultiSink{NewJSONLWriter(a), NewJSONLWriter(b)}

	require.NoError(t, m.WriteEntry(entryFor("https://example.com/")))
	require.NoError(t, m.Close())

	assert.Equal(t, a.String(), b.String())
	assert.True(t, a.closed)
	assert.True(t, b.closed)

	err := m.Close()
	assert.ErrorIs(t, err, ErrAlreadyClosed)
}

func TestMultiSinkSideOutputFailureIsLogged(t *testing.T) {
	var logs bytes.Buffer
	prev := Logger
	SetLogger(NewLogger(&logs, "info", "text"))
	t.Cleanup(func() { SetLogger(prev) })

	primary := &syncBuffer{}
	summary, err := NewCSVWriter(&failingSink{okWrites: 1})
	require.NoError(t, err)
	m := MultiSink{NewJSONLWriter(primary), summary}

	require.NoError(t, m.WriteEntry(entryFor("https://example.com/kept")))
	assert.Contains(t, primary.String(), "https://example.com/kept")
	assert.Contains(t, logs.String(), "side output rejected entry")
	assert.Contains(t, logs.String(), "disk full")
}

func TestMultiSinkPrimaryFailureIsReturned(t *testing.T) {
	side := &syncBuffer{}
	primary := NewJSONLWriter(&failingSink{})
	m := MultiSink{primary, NewJSONLWriter(side)}

	assert.ErrorIs(t, m.WriteEntry(entryFor("https://example.com/lost")), errDiskFull)
	assert.Contains(t, side.String(), "https://example.com/lost", "side outputs still receive the entry")
	assert.NoError(t, MultiSink{}.WriteEntry(entryFor("https://example.com/")))
}
