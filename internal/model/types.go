/*
PURPOSE:
  Defines the HAR 1.2 data model used throughout harstream.
  Each record is a value type that validates its own fields.

REQUIREMENTS:
  User-specified:
  - Mirror the public HAR 1.2 schema (Request, Response, Timings, Cache, Entry, Log).
  - startedDateTime must carry an explicit timezone.

  Implementation-discovered:
  - Optional fields need three states (absent / null / value) so decoded archives
    re-encode with the same shape. See Opt.
  - Record lists must encode as [] rather than null. See List.

ARCHITECTURE INTEGRATION:
  - Used by: internal/output (HARWriter, JSONL, CSV), internal/engine, internal/cli
  - Serialized by: codec.go

ERROR HANDLING:
  - Validate() returns *ValidationError naming the field path and the rule.
  - UnmarshalJSON rejects missing / null required keys with ErrRequired.

IMPLEMENTATION RULES:
  - Optional fields are Opt[T] with the `omitzero` tag. Never pointers.
  - No method mutates its receiver except UnmarshalJSON.

USAGE:
  entry, err := model.NewEntry(model.Entry{...})

RELATED FILES:
  - internal/model/codec.go
  - internal/model/number.go
  - internal/model/timestamp.go

MAINTENANCE:
  - When adding a field, add it to the struct, its UnmarshalJSON field table
    and (if it has rules) Validate().
*/

package model

// Version is the HAR format version this package reads and writes.
const Version = "1.2"

// Record is a name/value pair used for headers, cookies and query strings.
type Record struct {
	Name    string      `json:"name"`
	Value   string      `json:"value"`
	Comment Opt[string] `json:"comment,omitzero"`
}

// Records is a list of name/value pairs.
type Records = List[Record]

func (r Record) Validate() error { return nil }

func (r *Record) UnmarshalJSON(data []byte) error {
	var out Record
	if err := decodeFields(data,
		req("name", &out.Name),
		req("value", &out.Value),
		opt("comment", &out.Comment),
	); err != nil {
		return err
	}
	*r = out
	return nil
}

// Timings is the per-entry timing breakdown in milliseconds. An absent
// optional timing means "not measured", which is not the same as zero.
type Timings struct {
	Blocked Opt[Number] `json:"blocked,omitzero"`
	DNS     Opt[Number] `json:"dns,omitzero"`
	Connect Opt[Number] `json:"connect,omitzero"`
	Send    Number      `json:"send"`
	Wait    Number      `json:"wait"`
	Receive Number      `json:"receive"`
	SSL     Opt[Number] `json:"ssl,omitzero"`
	Comment Opt[string] `json:"comment,omitzero"`
}

func (t Timings) Validate() error {
	if err := requireNumber("send", t.Send); err != nil {
		return err
	}
	if err := requireNumber("wait", t.Wait); err != nil {
		return err
	}
	return requireNumber("receive", t.Receive)
}

func (t *Timings) UnmarshalJSON(data []byte) error {
	var out Timings
	if err := decodeFields(data,
		opt("blocked", &out.Blocked),
		opt("dns", &out.DNS),
		opt("connect", &out.Connect),
		req("send", &out.Send),
		req("wait", &out.Wait),
		req("receive", &out.Receive),
		opt("ssl", &out.SSL),
		opt("comment", &out.Comment),
	); err != nil {
		return err
	}
	*t = out
	return nil
}

// PostDataParam is one decomposed parameter of a posted body.
type PostDataParam struct {
	Name        string      `json:"name"`
	Value       Opt[string] `json:"value,omitzero"`
	FileName    Opt[string] `json:"fileName,omitzero"`
	ContentType Opt[string] `json:"contentType,omitzero"`
	Comment     Opt[string] `json:"comment,omitzero"`
}

func (p PostDataParam) Validate() error { return nil }

func (p *PostDataParam) UnmarshalJSON(data []byte) error {
	var out PostDataParam
	if err := decodeFields(data,
		req("name", &out.Name),
		opt("value", &out.Value),
		opt("fileName", &out.FileName),
		opt("contentType", &out.ContentType),
		opt("comment", &out.Comment),
	); err != nil {
		return err
	}
	*p = out
	return nil
}

// PostData describes a request body.
type PostData struct {
	MimeType string                   `json:"mimeType"`
	Text     string                   `json:"text"`
	Params   Opt[List[PostDataParam]] `json:"params,omitzero"`
	Comment  Opt[string]              `json:"comment,omitzero"`
}

func (p PostData) Validate() error {
	if params, ok := p.Params.Get(); ok {
		return validateList("params", params)
	}
	return nil
}

func (p *PostData) UnmarshalJSON(data []byte) error {
	var out PostData
	if err := decodeFields(data,
		req("mimeType", &out.MimeType),
		req("text", &out.Text),
		opt("params", &out.Params),
		opt("comment", &out.Comment),
	); err != nil {
		return err
	}
	*p = out
	return nil
}

// Request describes the request half of an exchange. HeadersSize and BodySize
// are declared by the caller and never recomputed; -1 means unknown.
type Request struct {
	Method      string        `json:"method"`
	URL         string        `json:"url"`
	HTTPVersion string        `json:"httpVersion"`
	Cookies     Records       `json:"cookies"`
	Headers     Records       `json:"headers"`
	QueryString Records       `json:"queryString"`
	PostData    Opt[PostData] `json:"postData,omitzero"`
	HeadersSize int64         `json:"headersSize"`
	BodySize    int64         `json:"bodySize"`
	Comment     Opt[string]   `json:"comment,omitzero"`
}

func (r Request) Validate() error {
	if err := requireNonEmpty("method", r.Method); err != nil {
		return err
	}
	if err := requireNonEmpty("url", r.URL); err != nil {
		return err
	}
	for _, list := range []struct {
		name  string
		items Records
	}{
		{"cookies", r.Cookies},
		{"headers", r.Headers},
		{"queryString", r.QueryString},
	} {
		if err := validateList(list.name, list.items); err != nil {
			return err
		}
	}
	if pd, ok := r.PostData.Get(); ok {
		return within("postData", pd.Validate())
	}
	return nil
}

func (r *Request) UnmarshalJSON(data []byte) error {
	var out Request
	if err := decodeFields(data,
		req("method", &out.Method),
		req("url", &out.URL),
		req("httpVersion", &out.HTTPVersion),
		req("cookies", &out.Cookies),
		req("headers", &out.Headers),
		req("queryString", &out.QueryString),
		opt("postData", &out.PostData),
		req("headersSize", &out.HeadersSize),
		req("bodySize", &out.BodySize),
		opt("comment", &out.Comment),
	); err != nil {
		return err
	}
	if err := out.Validate(); err != nil {
		return err
	}
	*r = out
	return nil
}

// ResponseContent describes a response body.
type ResponseContent struct {
	Size        int64       `json:"size"`
	Compression Opt[int64]  `json:"compression,omitzero"`
	MimeType    string      `json:"mimeType"`
	Text        string      `json:"text"`
	Encoding    Opt[string] `json:"encoding,omitzero"`
	Comment     Opt[string] `json:"comment,omitzero"`
}

func (c ResponseContent) Validate() error { return nil }

func (c *ResponseContent) UnmarshalJSON(data []byte) error {
	var out ResponseContent
	if err := decodeFields(data,
		req("size", &out.Size),
		opt("compression", &out.Compression),
		req("mimeType", &out.MimeType),
		req("text", &out.Text),
		opt("encoding", &out.Encoding),
		opt("comment", &out.Comment),
	); err != nil {
		return err
	}
	*c = out
	return nil
}

// Response describes the response half of an exchange. Status is any integer;
// it is not checked against the HTTP status range.
type Response struct {
	Status      int             `json:"status"`
	StatusText  string          `json:"statusText"`
	HTTPVersion string          `json:"httpVersion"`
	Cookies     Records         `json:"cookies"`
	Headers     Records         `json:"headers"`
	Content     ResponseContent `json:"content"`
	RedirectURL string          `json:"redirectURL"`
	HeadersSize int64           `json:"headersSize"`
	BodySize    int64           `json:"bodySize"`
	Comment     Opt[string]     `json:"comment,omitzero"`
}

func (r Response) Validate() error {
	if err := validateList("cookies", r.Cookies); err != nil {
		return err
	}
	if err := validateList("headers", r.Headers); err != nil {
		return err
	}
	return within("content", r.Content.Validate())
}

func (r *Response) UnmarshalJSON(data []byte) error {
	var out Response
	if err := decodeFields(data,
		req("status", &out.Status),
		req("statusText", &out.StatusText),
		req("httpVersion", &out.HTTPVersion),
		req("cookies", &out.Cookies),
		req("headers", &out.Headers),
		req("content", &out.Content),
		req("redirectURL", &out.RedirectURL),
		req("headersSize", &out.HeadersSize),
		req("bodySize", &out.BodySize),
		opt("comment", &out.Comment),
	); err != nil {
		return err
	}
	*r = out
	return nil
}

// CacheEntry is a snapshot of a cache entry before or after the request.
type CacheEntry struct {
	Expires    Opt[string] `json:"expires,omitzero"`
	LastAccess string      `json:"lastAccess"`
	ETag       string      `json:"eTag"`
	HitCount   int         `json:"hitCount"`
	Comment    Opt[string] `json:"comment,omitzero"`
}

func (c CacheEntry) Validate() error { return nil }

func (c *CacheEntry) UnmarshalJSON(data []byte) error {
	var out CacheEntry
	if err := decodeFields(data,
		opt("expires", &out.Expires),
		req("lastAccess", &out.LastAccess),
		req("eTag", &out.ETag),
		req("hitCount", &out.HitCount),
		opt("comment", &out.Comment),
	); err != nil {
		return err
	}
	*c = out
	return nil
}

// Cache holds the optional cache state around a request.
type Cache struct {
	BeforeRequest Opt[CacheEntry] `json:"beforeRequest,omitzero"`
	AfterRequest  Opt[CacheEntry] `json:"afterRequest,omitzero"`
	Comment       Opt[string]     `json:"comment,omitzero"`
}

func (c Cache) Validate() error { return nil }

func (c *Cache) UnmarshalJSON(data []byte) error {
	var out Cache
	if err := decodeFields(data,
		opt("beforeRequest", &out.BeforeRequest),
		opt("afterRequest", &out.AfterRequest),
		opt("comment", &out.Comment),
	); err != nil {
		return err
	}
	*c = out
	return nil
}

// Entry is one request/response exchange, the unit the writer streams.
type Entry struct {
	PageRef         Opt[string] `json:"pageref,omitzero"`
	StartedDateTime Timestamp   `json:"startedDateTime"`
	Time            Number      `json:"time"`
	Request         Request     `json:"request"`
	Response        Response    `json:"response"`
	Cache           Cache       `json:"cache"`
	Timings         Timings     `json:"timings"`
	ServerIPAddress Opt[string] `json:"serverIPAddress,omitzero"`
	Connection      Opt[string] `json:"connection,omitzero"`
	Comment         Opt[string] `json:"comment,omitzero"`
}

// NewEntry validates e and returns it. It is the constructor producers should
// use before handing entries to a writer.
func NewEntry(e Entry) (Entry, error) {
	if err := e.Validate(); err != nil {
		return Entry{}, err
	}
	return e, nil
}

func (e Entry) Validate() error {
	if e.StartedDateTime.IsZero() {
		return invalid("startedDateTime", ErrRequired)
	}
	if err := requireNumber("time", e.Time); err != nil {
		return err
	}
	if err := within("request", e.Request.Validate()); err != nil {
		return err
	}
	if err := within("response", e.Response.Validate()); err != nil {
		return err
	}
	return within("timings", e.Timings.Validate())
}

func (e *Entry) UnmarshalJSON(data []byte) error {
	var out Entry
	if err := decodeFields(data,
		opt("pageref", &out.PageRef),
		req("startedDateTime", &out.StartedDateTime),
		req("time", &out.Time),
		req("request", &out.Request),
		req("response", &out.Response),
		req("cache", &out.Cache),
		req("timings", &out.Timings),
		opt("serverIPAddress", &out.ServerIPAddress),
		opt("connection", &out.Connection),
		opt("comment", &out.Comment),
	); err != nil {
		return err
	}
	if err := out.Validate(); err != nil {
		return err
	}
	*e = out
	return nil
}

// Creator identifies the tool that produced the archive.
type Creator struct {
	Name    string      `json:"name"`
	Version string      `json:"version"`
	Comment Opt[string] `json:"comment,omitzero"`
}

func (c Creator) Validate() error {
	return requireNonEmpty("name", c.Name)
}

func (c *Creator) UnmarshalJSON(data []byte) error {
	var out Creator
	if err := decodeFields(data,
		req("name", &out.Name),
		req("version", &out.Version),
		opt("comment", &out.Comment),
	); err != nil {
		return err
	}
	*c = out
	return nil
}

// Browser identifies the user agent the traffic came from.
type Browser struct {
	Name    string      `json:"name"`
	Version string      `json:"version"`
	Comment Opt[string] `json:"comment,omitzero"`
}

func (b *Browser) UnmarshalJSON(data []byte) error {
	var out Browser
	if err := decodeFields(data,
		req("name", &out.Name),
		req("version", &out.Version),
		opt("comment", &out.Comment),
	); err != nil {
		return err
	}
	*b = out
	return nil
}

// PageTimings holds page load milestones in milliseconds since page start.
type PageTimings struct {
	OnContentLoad Opt[Number] `json:"onContentLoad,omitzero"`
	OnLoad        Opt[Number] `json:"onLoad,omitzero"`
	Comment       Opt[string] `json:"comment,omitzero"`
}

func (p *PageTimings) UnmarshalJSON(data []byte) error {
	var out PageTimings
	if err := decodeFields(data,
		opt("onContentLoad", &out.OnContentLoad),
		opt("onLoad", &out.OnLoad),
		opt("comment", &out.Comment),
	); err != nil {
		return err
	}
	*p = out
	return nil
}

// Page groups entries; entries point at it through pageref.
type Page struct {
	StartedDateTime Timestamp   `json:"startedDateTime"`
	ID              string      `json:"id"`
	Title           string      `json:"title"`
	PageTimings     PageTimings `json:"pageTimings"`
	Comment         Opt[string] `json:"comment,omitzero"`
}

func (p Page) Validate() error {
	if p.StartedDateTime.IsZero() {
		return invalid("startedDateTime", ErrRequired)
	}
	return requireNonEmpty("id", p.ID)
}

func (p *Page) UnmarshalJSON(data []byte) error {
	var out Page
	if err := decodeFields(data,
		req("startedDateTime", &out.StartedDateTime),
		req("id", &out.ID),
		req("title", &out.Title),
		req("pageTimings", &out.PageTimings),
		opt("comment", &out.Comment),
	); err != nil {
		return err
	}
	if err := out.Validate(); err != nil {
		return err
	}
	*p = out
	return nil
}

// HarLog is the in-memory form of a whole archive. The streaming writer never
// builds one; it is used when reading archives back.
type HarLog struct {
	Version string          `json:"version"`
	Creator Creator         `json:"creator"`
	Browser Opt[Browser]    `json:"browser,omitzero"`
	Pages   Opt[List[Page]] `json:"pages,omitzero"`
	Entries List[Entry]     `json:"entries"`
	Comment Opt[string]     `json:"comment,omitzero"`
}

func (l HarLog) Validate() error {
	if err := requireNonEmpty("version", l.Version); err != nil {
		return err
	}
	if err := within("creator", l.Creator.Validate()); err != nil {
		return err
	}
	if pages, ok := l.Pages.Get(); ok {
		if err := validateList("pages", pages); err != nil {
			return err
		}
	}
	return validateList("entries", l.Entries)
}

func (l *HarLog) UnmarshalJSON(data []byte) error {
	var out HarLog
	if err := decodeFields(data,
		req("version", &out.Version),
		req("creator", &out.Creator),
		opt("browser", &out.Browser),
		opt("pages", &out.Pages),
		req("entries", &out.Entries),
		opt("comment", &out.Comment),
	); err != nil {
		return err
	}
	if err := within("creator", out.Creator.Validate()); err != nil {
		return err
	}
	*l = out
	return nil
}

// Har is the document root.
type Har struct {
	Log HarLog `json:"log"`
}

func (h Har) Validate() error {
	return within("log", h.Log.Validate())
}

func (h *Har) UnmarshalJSON(data []byte) error {
	var out Har
	if err := decodeFields(data, req("log", &out.Log)); err != nil {
		return err
	}
	*h = out
	return nil
}
