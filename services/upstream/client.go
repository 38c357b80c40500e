// Package upstream holds the HTTP plumbing shared by the clients of the AI services.
package upstream

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/virtualtutor/core"
	metricsvc "github.com/trezcool/virtualtutor/services/metrics"
)

// maxErrorBody bounds how much of a failed response body ends up in an error message.
const maxErrorBody = 4096

// Client calls one upstream service.
type Client struct {
	Service string
	BaseURL string
	HTTP    *http.Client
}

func New(service, baseURL string) *Client {
	return &Client{
		Service: service,
		BaseURL: strings.TrimRight(baseURL, "/"),
		HTTP:    &http.Client{},
	}
}

// URL returns the absolute URL of path, with query if not empty.
func (c *Client) URL(path string, query url.Values) string {
	u := c.BaseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	return u
}

// Request describes a single upstream call.
type Request struct {
	Method      string
	Path        string
	Query       url.Values
	Body        io.Reader
	ContentType string
	Header      http.Header
	Timeout     time.Duration
	Operation   string // metrics label
	Stream      bool   // Timeout bounds the headers then every gap between body reads
}

// Do sends req and returns the response if its status is 2xx; the caller closes its body
// then calls the returned cancel func. Any other status, or a transport failure, is a *core.UpstreamError.
func (c *Client) Do(ctx context.Context, req Request) (*http.Response, context.CancelFunc, error) {
	cancel := context.CancelFunc(func() {})
	var idle *IdleTimer
	switch {
	case req.Timeout > 0 && req.Stream:
		idle = NewIdleTimer(ctx, req.Timeout)
		ctx, cancel = idle.Context(), idle.Stop
	case req.Timeout > 0:
		ctx, cancel = context.WithTimeout(ctx, req.Timeout)
	}
	method := req.Method
	if method == "" {
		method = http.MethodGet
	}

	hreq, err := http.NewRequestWithContext(ctx, method, c.URL(req.Path, req.Query), req.Body)
	if err != nil {
		cancel()
		return nil, nil, errors.Wrap(err, "building upstream request")
	}
	for k, vs := range req.Header {
		for _, v := range vs {
			hreq.Header.Add(k, v)
		}
	}
	if req.ContentType != "" {
		hreq.Header.Set("Content-Type", req.ContentType)
	}

	start := time.Now()
	resp, err := c.HTTP.Do(hreq)
	if err != nil {
		cancel()
		if idle != nil && idle.Expired() {
			err = ErrIdleTimeout
		}
		err = core.NewUpstreamTransportError(c.Service, err)
		metricsvc.ObserveUpstream(c.Service, req.Operation, start, err)
		return nil, nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		resp.Body.Close()
		cancel()
		err = core.NewUpstreamStatusError(c.Service, resp.StatusCode, strings.TrimSpace(string(body)))
		metricsvc.ObserveUpstream(c.Service, req.Operation, start, err)
		return nil, nil, err
	}
	metricsvc.ObserveUpstream(c.Service, req.Operation, start, nil)
	if idle != nil {
		idle.Kick()
		resp.Body = &idleBody{ReadCloser: resp.Body, service: c.Service, timer: idle}
	}
	return resp, cancel, nil
}

// Bytes sends req and reads the whole response body.
func (c *Client) Bytes(ctx context.Context, req Request) ([]byte, error) {
	resp, cancel, err := c.Do(ctx, req)
	if err != nil {
		return nil, err
	}
	defer cancel()
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, core.NewUpstreamTransportError(c.Service, err)
	}
	return body, nil
}

// JSON sends req and decodes the response body into out.
func (c *Client) JSON(ctx context.Context, req Request, out interface{}) error {
	body, err := c.Bytes(ctx, req)
	if err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	if err = json.Unmarshal(body, out); err != nil {
		return &core.UpstreamError{Service: c.Service, Code: http.StatusOK, Msg: "invalid response: " + err.Error(), Err: err}
	}
	return nil
}

// JSONBody encodes v as a request body.
func JSONBody(v interface{}) (io.Reader, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, errors.Wrap(err, "encoding request body")
	}
	return bytes.NewReader(b), nil
}

// FormBody url-encodes fields as a request body.
func FormBody(fields url.Values) io.Reader {
	return strings.NewReader(fields.Encode())
}

const FormContentType = "application/x-www-form-urlencoded"

// Part is a file part of a multipart body.
type Part struct {
	Field       string
	Filename    string
	ContentType string
	Content     io.Reader
}

// MultipartBody streams fields and parts as a multipart/form-data body, without buffering the files.
// It returns the body and its content type.
func MultipartBody(fields url.Values, parts ...Part) (io.Reader, string) {
	pr, pw := io.Pipe()
	mw := multipart.NewWriter(pw)

	go func() {
		err := writeMultipart(mw, fields, parts)
		if err == nil {
			err = mw.Close()
		}
		pw.CloseWithError(err)
	}()
	return pr, mw.FormDataContentType()
}

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

func writeMultipart(mw *multipart.Writer, fields url.Values, parts []Part) error {
	for k, vs := range fields {
		for _, v := range vs {
			if err := mw.WriteField(k, v); err != nil {
				return err
			}
		}
	}
	for _, p := range parts {
		if p.Content == nil {
			continue
		}
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="%s"; filename="%s"`, quoteEscaper.Replace(p.Field), quoteEscaper.Replace(p.Filename)))
		ct := p.ContentType
		if ct == "" {
			ct = "application/octet-stream"
		}
		h.Set("Content-Type", ct)
		w, err := mw.CreatePart(h)
		if err != nil {
			return err
		}
		if _, err = io.Copy(w, p.Content); err != nil {
			return err
		}
	}
	return nil
}

// Ping reports whether a GET of path answers 2xx within timeout.
func (c *Client) Ping(ctx context.Context, path string, timeout time.Duration) error {
	_, err := c.Bytes(ctx, Request{Path: path, Timeout: timeout, Operation: "health"})
	return err
}
