// Package engine is the backend's client of the avatar engine gateway.
package engine

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"strconv"

	"github.com/trezcool/virtualtutor/core"
	"github.com/trezcool/virtualtutor/core/avatar"
	"github.com/trezcool/virtualtutor/services/upstream"
)

// ServiceName identifies the gateway in upstream errors.
const ServiceName = "Avatar Service"

type Client struct {
	c    *upstream.Client
	conf core.EngineConfig
}

var _ avatar.Engine = (*Client)(nil)

func NewClient(conf *core.Config) *Client {
	return &Client{c: upstream.New(ServiceName, conf.Engine.BaseURL), conf: conf.Engine}
}

func (cl *Client) CreateAvatar(ctx context.Context, na avatar.NewAvatar) (avatar.CreateResult, error) {
	fields := url.Values{
		"name":          {na.Name},
		"avatar_model":  {na.AvatarModel},
		"tts_model":     {na.TTSModel},
		"timbre":        {na.Timbre},
		"avatar_blur":   {strconv.FormatBool(na.AvatarBlur)},
		"support_clone": {strconv.FormatBool(na.SupportClone)},
		"description":   {na.Description},
	}
	parts := []upstream.Part{{Field: "prompt_face", Filename: na.Face.Filename, ContentType: na.Face.ContentType, Content: na.Face.Content}}
	if na.Voice != nil {
		parts = append(parts, upstream.Part{Field: "prompt_voice", Filename: na.Voice.Filename, ContentType: na.Voice.ContentType, Content: na.Voice.Content})
	}
	body, contentType := upstream.MultipartBody(fields, parts...)

	var res avatar.CreateResult
	err := cl.c.JSON(ctx, upstream.Request{
		Method:      http.MethodPost,
		Path:        "/api/avatar/create",
		Body:        body,
		ContentType: contentType,
		Timeout:     cl.conf.CreateTimeout,
		Operation:   "create_avatar",
	}, &res)
	return res, err
}

func (cl *Client) StartAvatar(ctx context.Context, name, refFile string) error {
	fields := url.Values{"avatar_name": {name}}
	if refFile != "" {
		fields.Set("ref_file", refFile)
	}
	return cl.c.JSON(ctx, upstream.Request{
		Method:      http.MethodPost,
		Path:        "/api/avatar/start",
		Body:        upstream.FormBody(fields),
		ContentType: upstream.FormContentType,
		Timeout:     cl.conf.CreateTimeout,
		Operation:   "start_avatar",
	}, nil)
}

func (cl *Client) DeleteAvatar(ctx context.Context, name string) error {
	return cl.c.JSON(ctx, upstream.Request{
		Method:      http.MethodDelete,
		Path:        "/api/avatar/delete",
		Query:       url.Values{"avatar_name": {name}},
		Body:        upstream.FormBody(url.Values{"avatar_name": {name}}),
		ContentType: upstream.FormContentType,
		Timeout:     cl.conf.OperationTimeout,
		Operation:   "delete_avatar",
	}, nil)
}

// Chat forwards a JSON chat completion request as is and returns the JSON answer.
func (cl *Client) Chat(ctx context.Context, body io.Reader) ([]byte, error) {
	return cl.c.Bytes(ctx, upstream.Request{
		Method:      http.MethodPost,
		Path:        "/api/chat/completion",
		Body:        body,
		ContentType: "application/json",
		Timeout:     cl.conf.ChatTimeout,
		Operation:   "chat",
	})
}

// stream closes the response then releases its context.
type stream struct {
	io.ReadCloser
	cancel context.CancelFunc
}

func (s stream) Close() error {
	err := s.ReadCloser.Close()
	s.cancel()
	return err
}

// Stream opens the SSE stream of a chat request; the caller must close it.
func (cl *Client) Stream(ctx context.Context, body io.Reader) (io.ReadCloser, error) {
	resp, cancel, err := cl.c.Do(ctx, upstream.Request{
		Method:      http.MethodPost,
		Path:        "/api/chat/stream",
		Body:        body,
		ContentType: "application/json",
		Header:      http.Header{"Accept": {"text/event-stream"}},
		Timeout:     cl.conf.StreamTimeout,
		Stream:      true,
		Operation:   "chat_stream",
	})
	if err != nil {
		return nil, err
	}
	return stream{ReadCloser: resp.Body, cancel: cancel}, nil
}

func (cl *Client) Preview(ctx context.Context, name string) ([]byte, error) {
	return cl.c.Bytes(ctx, upstream.Request{
		Path:      "/api/avatar/preview/" + url.PathEscape(name),
		Timeout:   cl.conf.PreviewTimeout,
		Operation: "preview_avatar",
	})
}

func (cl *Client) Health(ctx context.Context) error {
	return cl.c.Ping(ctx, "/health", cl.conf.HealthTimeout)
}
