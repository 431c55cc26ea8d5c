package engine

import (
	"bytes"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/http/httputil"
	"net/url"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/daryltucker/harstream/internal/model"
	"github.com/daryltucker/harstream/internal/output"
)

// Recorder is HTTP middleware that records every exchange it serves as a HAR
// entry. Recording never changes what the client receives.
type Recorder struct {
	sink      output.EntrySink
	pageRef   string
	bodyLimit int64
	logger    *slog.Logger
}

// NewRecorder records into sink. Entries get pageRef when it is non-empty.
// Bodies are captured up to bodyLimit bytes (<= 0: unlimited).
func NewRecorder(sink output.EntrySink, pageRef string, bodyLimit int64) *Recorder {
	return &Recorder{
		sink:      sink,
		pageRef:   pageRef,
		bodyLimit: bodyLimit,
		logger:    output.Logger.With("component", "recorder"),
	}
}

// Middleware wraps next. Request and response bodies stream through
// unchanged; only the first bodyLimit bytes of each are kept for the entry.
func (rec *Recorder) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		started := time.Now()

		reqTap := &bodyTap{limit: rec.bodyLimit}
		if r.Body != nil && r.Body != http.NoBody {
			r.Body = struct {
				io.Reader
				io.Closer
			}{io.TeeReader(r.Body, reqTap), r.Body}
		}

		respTap := &bodyTap{limit: rec.bodyLimit}
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		ww.Tee(respTap)

		next.ServeHTTP(ww, r)
		finished := time.Now()

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		reqBody := reqTap.body()
		respBody := respTap.body()
		handled := respTap.firstWrite()
		if handled.IsZero() {
			handled = finished
		}

		entry := model.Entry{
			StartedDateTime: model.NewTimestamp(started),
			Time:            ms(finished.Sub(started)),
			Request:         buildRequest(r, reqBody.data),
			Response:        buildResponse(status, "", r.Proto, ww.Header(), respBody),
			Timings: model.Timings{
				Send:    model.Int(0),
				Wait:    ms(handled.Sub(started)),
				Receive: ms(finished.Sub(handled)),
			},
		}
		entry.Request.BodySize = reqBody.size
		if rec.pageRef != "" {
			entry.PageRef = model.Some(rec.pageRef)
		}
		if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
			entry.Comment = model.Some("client " + host)
		}
		if id := middleware.GetReqID(r.Context()); id != "" {
			entry.Connection = model.Some(id)
		}

		if err := rec.sink.WriteEntry(entry); err != nil {
			rec.logger.Error("failed to record entry", "url", r.URL.String(), "error", err)
		}
	})
}

// bodyTap keeps the first limit bytes written to it (all of them when
// limit <= 0) and counts the rest. Writes never fail. The transport may
// still be reading a request body after the handler returns, hence the lock.
type bodyTap struct {
	mu    sync.Mutex
	limit int64
	buf   bytes.Buffer
	size  int64
	first time.Time
}

func (t *bodyTap) Write(p []byte) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.first.IsZero() {
		t.first = time.Now()
	}
	t.size += int64(len(p))
	keep := int64(len(p))
	if t.limit > 0 {
		keep = min(keep, t.limit-int64(t.buf.Len()))
	}
	t.buf.Write(p[:keep])
	return len(p), nil
}

func (t *bodyTap) body() contentBody {
	t.mu.Lock()
	defer t.mu.Unlock()
	data := bytes.Clone(t.buf.Bytes())
	return contentBody{data: data, size: t.size, truncated: t.size > int64(len(data))}
}

func (t *bodyTap) firstWrite() time.Time {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.first
}

// NewRecordingProxy returns a router that records every request and forwards
// it to upstream.
func NewRecordingProxy(upstream *url.URL, rec *Recorder) http.Handler {
	proxy := httputil.NewSingleHostReverseProxy(upstream)
	proxy.ErrorHandler = func(w http.ResponseWriter, r *http.Request, err error) {
		rec.logger.Warn("upstream request failed", "url", r.URL.String(), "error", err)
		w.WriteHeader(http.StatusBadGateway)
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(rec.Middleware)
	r.Handle("/*", proxy)
	return r
}
