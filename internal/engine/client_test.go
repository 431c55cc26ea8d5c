package engine

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/daryltucker/harstream/internal/config"
	"github.com/daryltucker/harstream/internal/model"
)

func testConfig() *config.Config {
	cfg := config.DefaultConfig()
	cfg.RetryDelay = time.Millisecond
	cfg.RequestTimeout = 5 * time.Second
	cfg.PollInterval = 5 * time.Millisecond
	return cfg
}

func TestCaptureGET(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.SetCookie(w, &http.Cookie{Name: "session", Value: "s1"})
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusTeapot)
		io.WriteString(w, "short and stout")
	}))
	defer srv.Close()

	req, err := http.NewRequest(http.MethodGet, srv.URL+"/pot?size=2&size=3", nil)
	require.NoError(t, err)
	req.Header.Set("X-Trace", "t1")
	req.AddCookie(&http.Cookie{Name: "pref", Value: "dark"})

	entry, err := New(testConfig()).Capture(context.Background(), req, nil)
	require.NoError(t, err)
	require.NoError(t, entry.Validate())

	assert.Equal(t, "GET", entry.Request.Method)
	assert.Equal(t, srv.URL+"/pot?size=2&size=3", entry.Request.URL)
	assert.Equal(t, model.Records{{Name: "size", Value: "2"}, {Name: "size", Value: "3"}}, entry.Request.QueryString)
	assert.Contains(t, entry.Request.Headers, model.Record{Name: "X-Trace", Value: "t1"})
	assert.Equal(t, model.Records{{Name: "pref", Value: "dark"}}, entry.Request.Cookies)
	assert.False(t, entry.Request.PostData.IsSet())

	resp := entry.Response
	assert.Equal(t, http.StatusTeapot, resp.Status)
	assert.Equal(t, "I'm a teapot", resp.StatusText)
	assert.Equal(t, "HTTP/1.1", resp.HTTPVersion)
	assert.Equal(t, "short and stout", resp.Content.Text)
	assert.Equal(t, int64(len("short and stout")), resp.Content.Size)
	assert.Equal(t, model.Records{{Name: "session", Value: "s1"}}, resp.Cookies)

	assert.Equal(t, "127.0.0.1", entry.ServerIPAddress.OrElse(""))
	assert.True(t, entry.Connection.IsSet())
	assert.True(t, entry.Time.IsFloat())

	// A fresh connection has a connect phase but no TLS and no DNS lookup.
	assert.True(t, entry.Timings.Connect.IsSet())
	assert.False(t, entry.Timings.SSL.IsSet())
	assert.False(t, entry.Timings.DNS.IsSet())
}

func TestCaptureReusedConnectionOmitsConnect(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, "ok")
	}))
	defer srv.Close()

	e := New(testConfig())
	for i := 0; i < 2; i++ {
		req, err := http.NewRequest(http.MethodGet, srv.URL, nil)
		require.NoError(t, err)
		entry, err := e.Capture(context.Background(), req, nil)
		require.NoError(t, err)
		if i == 1 {
			assert.False(t, entry.Timings.Connect.IsSet())
			assert.True(t, entry.Timings.Send.IsSet())
		}
	}
}

func TestCapturePOSTForm(t *testing.T) {
	var got string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		data, _ := io.ReadAll(r.Body)
		got = string(data)
		w.Header().Set("Location", "/done")
		w.WriteHeader(http.StatusSeeOther)
	}))
	defer srv.Close()

	body := []byte("user=ann&tag=a&tag=b")
	req, err := http.NewRequest(http.MethodPost, srv.URL+"/login", nil)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	entry, err := New(testConfig()).Capture(context.Background(), req, body)
	require.NoError(t, err)
	assert.Equal(t, string(body), got)

	pd, ok := entry.Request.PostData.Get()
	require.True(t, ok)
	assert.Equal(t, string(body), pd.Text)
	params, ok := pd.Params.Get()
	require.True(t, ok)
	assert.Equal(t, model.List[model.PostDataParam]{
		{Name: "tag", Value: model.Some("a")},
		{Name: "tag", Value: model.Some("b")},
		{Name: "user", Value: model.Some("ann")},
	}, params)
	assert.Equal(t, int64(len(body)), entry.Request.BodySize)

	// Redirects are recorded, not followed.
	assert.Equal(t, http.StatusSeeOther, entry.Response.Status)
	assert.Equal(t, "/done", entry.Response.RedirectURL)
}

func TestCaptureBinaryAndTruncatedBodies(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/bin" {
			w.Write([]byte{0xff, 0xfe, 0x00, 0x01})
			return
		}
		io.WriteString(w, strings.Repeat("x", 100))
	}))
	defer srv.Close()

	cfg := testConfig()
	cfg.CaptureBodyLimit = 10
	e := New(cfg)

	req, _ := http.NewRequest(http.MethodGet, srv.URL+"/bin", nil)
	entry, err := e.Capture(context.Background(), req, nil)
	require.NoError(t, err)
	assert.Equal(t, "base64", entry.Response.Content.Encoding.OrElse(""))
	assert.Equal(t, "//4AAQ==", entry.Response.Content.Text)

	req, _ = http.NewRequest(http.MethodGet, srv.URL+"/text", nil)
	entry, err = e.Capture(context.Background(), req, nil)
	require.NoError(t, err)
	assert.Equal(t, strings.Repeat("x", 10), entry.Response.Content.Text)
	assert.Equal(t, int64(100), entry.Response.Content.Size)
	assert.Equal(t, "truncated to 10 bytes", entry.Response.Content.Comment.OrElse(""))
}

func TestCaptureRetriesNetworkErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	cfg := testConfig()
	cfg.MaxRetries = 2
	req, _ := http.NewRequest(http.MethodGet, url, nil)
	_, err := New(cfg).Capture(context.Background(), req, nil)
	assert.ErrorContains(t, err, "network/connection error")
}

func TestCaptureRetrySucceeds(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			// Drop the connection without a response.
			conn, _, err := w.(http.Hijacker).Hijack()
			if err == nil {
				conn.Close()
			}
			return
		}
		io.WriteString(w, "second time")
	}))
	defer srv.Close()

	cfg := testConfig()
	cfg.MaxRetries = 3
	req, _ := http.NewRequest(http.MethodGet, srv.URL, nil)
	entry, err := New(cfg).Capture(context.Background(), req, nil)
	require.NoError(t, err)
	assert.Equal(t, "second time", entry.Response.Content.Text)
	assert.Equal(t, int32(2), calls.Load())
}

func TestCaptureCancelled(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	req, _ := http.NewRequest(http.MethodGet, srv.URL, nil)
	_, err := New(testConfig()).Capture(ctx, req, nil)
	assert.ErrorIs(t, err, context.Canceled)
}
