package engine

import (
	"bufio"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/daryltucker/harstream/internal/config"
	"github.com/daryltucker/harstream/internal/model"
	"github.com/daryltucker/harstream/internal/output"
)

func targetServer(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/missing" {
			http.NotFound(w, r)
			return
		}
		fmt.Fprintf(w, "path=%s", r.URL.Path)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestRunWritesHARAndSummary(t *testing.T) {
	srv := targetServer(t)

	cfg := testConfig()
	cfg.OutputDir = t.TempDir()
	cfg.OutputFile = "nested/run.har"
	cfg.SummaryCSV = "run.csv"
	cfg.Comment = "test run"
	cfg.Concurrency = 3
	cfg.URLs = []string{srv.URL + "/a", srv.URL + "/b", srv.URL + "/missing", srv.URL + "/c"}

	require.NoError(t, Run(context.Background(), cfg))

	f, err := os.Open(cfg.OutputPath())
	require.NoError(t, err)
	defer f.Close()
	har, err := model.Decode(f)
	require.NoError(t, err)

	assert.Equal(t, "test run", har.Log.Comment.OrElse(""))
	pages, ok := har.Log.Pages.Get()
	require.True(t, ok)
	require.Len(t, pages, 1)
	require.Len(t, har.Log.Entries, len(cfg.URLs))

	urls := map[string]int{}
	for _, e := range har.Log.Entries {
		assert.Equal(t, pages[0].ID, e.PageRef.OrElse(""))
		urls[e.Request.URL] = e.Response.Status
	}
	assert.Equal(t, http.StatusNotFound, urls[srv.URL+"/missing"])
	assert.Equal(t, http.StatusOK, urls[srv.URL+"/a"])

	summary, err := os.Open(filepath.Join(cfg.OutputDir, "run.csv"))
	require.NoError(t, err)
	defer summary.Close()
	rows, err := csv.NewReader(summary).ReadAll()
	require.NoError(t, err)
	assert.Len(t, rows, len(cfg.URLs)+1)
}

func TestRunJSONL(t *testing.T) {
	srv := targetServer(t)

	cfg := testConfig()
	cfg.OutputDir = t.TempDir()
	cfg.OutputFile = "run.jsonl"
	cfg.Format = config.FormatJSONL
	cfg.Method = "put"
	cfg.Headers = map[string]string{"Content-Type": "application/json"}
	cfg.Body = `{"ok":true}`
	cfg.URLs = []string{srv.URL + "/x", srv.URL + "/y"}

	require.NoError(t, Run(context.Background(), cfg))

	f, err := os.Open(cfg.OutputPath())
	require.NoError(t, err)
	defer f.Close()

	lines := 0
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		e, err := model.DecodeEntry(scanner.Bytes())
		require.NoError(t, err)
		assert.Equal(t, "PUT", e.Request.Method)
		pd, ok := e.Request.PostData.Get()
		require.True(t, ok)
		assert.Equal(t, `{"ok":true}`, pd.Text)
		lines++
	}
	assert.Equal(t, 2, lines)
}

func TestRunSkipsFailedURLs(t *testing.T) {
	srv := targetServer(t)
	dead := httptest.NewServer(http.NotFoundHandler())
	dead.Close()

	cfg := testConfig()
	cfg.MaxRetries = 1
	cfg.OutputDir = t.TempDir()
	cfg.URLs = []string{dead.URL, srv.URL + "/ok"}

	sink := &memorySink{}
	captured, failed := Fetch(context.Background(), New(cfg), cfg, "", sink)
	assert.Equal(t, 1, captured)
	assert.Equal(t, 1, failed)
	require.Len(t, sink.all(), 1)
	assert.False(t, sink.all()[0].PageRef.IsSet())
}

func TestRunRejectsInvalidConfig(t *testing.T) {
	cfg := testConfig()
	assert.ErrorIs(t, Run(context.Background(), cfg), config.ErrInvalidConfig)

	cfg.Upstream = "not a url"
	assert.ErrorIs(t, Record(context.Background(), cfg), config.ErrInvalidConfig)
}

func freeAddr(t *testing.T) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	require.NoError(t, ln.Close())
	return addr
}

func TestRecordUntilCancelled(t *testing.T) {
	srv := targetServer(t)

	cfg := testConfig()
	cfg.OutputDir = t.TempDir()
	cfg.OutputFile = "session.har"
	cfg.Upstream = srv.URL
	cfg.Listen = freeAddr(t)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- Record(ctx, cfg) }()

	var resp *http.Response
	require.Eventually(t, func() bool {
		r, err := http.Get("http://" + cfg.Listen + "/hello")
		if err != nil {
			return false
		}
		resp = r
		return true
	}, 2*time.Second, 10*time.Millisecond)
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	assert.Equal(t, "path=/hello", string(body))

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Record did not return after cancel")
	}

	data, err := os.ReadFile(cfg.OutputPath())
	require.NoError(t, err)
	har, err := model.Unmarshal(data)
	require.NoError(t, err)
	require.Len(t, har.Log.Entries, 1)
	assert.Equal(t, "http://"+cfg.Listen+"/hello", har.Log.Entries[0].Request.URL)
}

// rejectingSink refuses every entry.
type rejectingSink struct{}

func (rejectingSink) WriteEntry(model.Entry) error { return errors.New("summary unavailable") }
func (rejectingSink) Close() error                 { return nil }

func TestFetchCountsOnlyPrimaryFailures(t *testing.T) {
	srv := targetServer(t)
	cfg := testConfig()
	cfg.Concurrency = 2
	cfg.URLs = []string{srv.URL + "/a", srv.URL + "/b", srv.URL + "/c"}

	primary := &memorySink{}
	captured, failed := Fetch(context.Background(), New(cfg), cfg, "", output.MultiSink{primary, rejectingSink{}})
	assert.Equal(t, 3, captured)
	assert.Zero(t, failed)
	assert.Len(t, primary.all(), 3)

	captured, failed = Fetch(context.Background(), New(cfg), cfg, "", output.MultiSink{rejectingSink{}, &memorySink{}})
	assert.Zero(t, captured)
	assert.Equal(t, 3, failed)
}
