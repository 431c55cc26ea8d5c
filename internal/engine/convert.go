package engine

import (
	"encoding/base64"
	"math"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/daryltucker/harstream/internal/model"
)

// ms converts a duration into a millisecond Number with microsecond precision.
func ms(d time.Duration) model.Number {
	if d < 0 {
		d = 0
	}
	return model.Float(math.Round(float64(d.Microseconds())) / 1000)
}

// headerRecords flattens h into records sorted by name, keeping the order of
// repeated values.
func headerRecords(h http.Header) model.Records {
	names := make([]string, 0, len(h))
	for name := range h {
		names = append(names, name)
	}
	sort.Strings(names)

	out := make(model.Records, 0, len(h))
	for _, name := range names {
		for _, v := range h[name] {
			out = append(out, model.Record{Name: name, Value: v})
		}
	}
	return out
}

func queryRecords(u *url.URL) model.Records {
	if u == nil {
		return model.Records{}
	}
	return valuesRecords(u.Query())
}

func valuesRecords(values url.Values) model.Records {
	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make(model.Records, 0, len(values))
	for _, k := range keys {
		for _, v := range values[k] {
			out = append(out, model.Record{Name: k, Value: v})
		}
	}
	return out
}

func cookieRecords(cookies []*http.Cookie) model.Records {
	out := make(model.Records, 0, len(cookies))
	for _, c := range cookies {
		out = append(out, model.Record{Name: c.Name, Value: c.Value})
	}
	return out
}

// buildRequest describes r as a HAR request. body is the captured request
// body, which r.Body no longer holds.
func buildRequest(r *http.Request, body []byte) model.Request {
	out := model.Request{
		Method:      r.Method,
		URL:         requestURL(r),
		HTTPVersion: protoOrDefault(r.Proto),
		Cookies:     cookieRecords(r.Cookies()),
		Headers:     headerRecords(r.Header),
		QueryString: queryRecords(r.URL),
		HeadersSize: -1,
		BodySize:    int64(len(body)),
	}

	if len(body) > 0 {
		mimeType := r.Header.Get("Content-Type")
		pd := model.PostData{MimeType: mimeType, Text: string(body)}
		if strings.HasPrefix(mimeType, "application/x-www-form-urlencoded") {
			if values, err := url.ParseQuery(string(body)); err == nil {
				params := make(model.List[model.PostDataParam], 0, len(values))
				for _, rec := range valuesRecords(values) {
					params = append(params, model.PostDataParam{Name: rec.Name, Value: model.Some(rec.Value)})
				}
				pd.Params = model.Some(params)
			}
		}
		out.PostData = model.Some(pd)
	}
	return out
}

// requestURL returns an absolute URL for both client requests and requests
// received by a server (where r.URL is only a path).
func requestURL(r *http.Request) string {
	if r.URL == nil {
		return ""
	}
	if r.URL.IsAbs() {
		return r.URL.String()
	}
	u := *r.URL
	u.Host = r.Host
	u.Scheme = "http"
	if r.TLS != nil {
		u.Scheme = "https"
	}
	return u.String()
}

// contentBody is a captured response body and whether it hit the limit.
type contentBody struct {
	data      []byte
	size      int64
	truncated bool
}

// buildResponse describes a response. statusText falls back to the standard
// text for status when empty.
func buildResponse(status int, statusText, proto string, header http.Header, body contentBody) model.Response {
	if statusText == "" {
		statusText = http.StatusText(status)
	}

	content := model.ResponseContent{
		Size:     body.size,
		MimeType: header.Get("Content-Type"),
	}
	if utf8.Valid(body.data) {
		content.Text = string(body.data)
	} else {
		content.Text = base64.StdEncoding.EncodeToString(body.data)
		content.Encoding = model.Some("base64")
	}
	if body.truncated {
		content.Comment = model.Some("truncated to " + strconv.Itoa(len(body.data)) + " bytes")
	}

	return model.Response{
		Status:      status,
		StatusText:  statusText,
		HTTPVersion: protoOrDefault(proto),
		Cookies:     cookieRecords((&http.Response{Header: header}).Cookies()),
		Headers:     headerRecords(header),
		Content:     content,
		RedirectURL: header.Get("Location"),
		HeadersSize: -1,
		BodySize:    body.size,
	}
}

func protoOrDefault(proto string) string {
	if proto == "" {
		return "HTTP/1.1"
	}
	return proto
}
