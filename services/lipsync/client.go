// Package lipsync is the client of the lip-sync (avatar rendering) service.
package lipsync

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/trezcool/virtualtutor/core"
	"github.com/trezcool/virtualtutor/core/avatar"
	"github.com/trezcool/virtualtutor/services/upstream"
)

const (
	serviceName   = "lipsync"
	healthTimeout = 5 * time.Second
)

type Client struct {
	c    *upstream.Client
	conf core.GatewayConfig
}

var _ avatar.Engine = (*Client)(nil)

func NewClient(conf *core.Config) *Client {
	return &Client{c: upstream.New(serviceName, conf.Gateway.LipsyncURL), conf: conf.Gateway}
}

// BaseURL is where the avatars' WebRTC endpoints are served.
func (cl *Client) BaseURL() string { return cl.c.BaseURL }

type avatarsResponse struct {
	Status  string   `json:"status"`
	Avatars []string `json:"avatars"`
}

// ListAvatars returns the names of the avatars registered on the service.
func (cl *Client) ListAvatars(ctx context.Context) ([]string, error) {
	var res avatarsResponse
	err := cl.c.JSON(ctx, upstream.Request{
		Path:      "/avatar/get_avatars",
		Timeout:   cl.conf.OperationTimeout,
		Operation: "list_avatars",
	}, &res)
	if err != nil {
		return nil, err
	}
	if res.Status != "success" || res.Avatars == nil {
		return []string{}, nil
	}
	return res.Avatars, nil
}

type addResponse struct {
	ImagePath string `json:"image_path"`
}

// CreateAvatar uploads the prompt files of na to the service.
func (cl *Client) CreateAvatar(ctx context.Context, na avatar.NewAvatar) (avatar.CreateResult, error) {
	avatarModel, ttsModel := na.AvatarModel, na.TTSModel
	if avatarModel == "" {
		avatarModel = cl.conf.DefaultAvatarModel
	}
	if ttsModel == "" {
		ttsModel = cl.conf.DefaultTTSModel
	}
	fields := url.Values{
		"name":          {na.Name},
		"avatar_blur":   {strconv.FormatBool(na.AvatarBlur)},
		"support_clone": {strconv.FormatBool(na.SupportClone)},
		"timbre":        {na.Timbre},
		"tts_model":     {ttsModel},
		"avatar_model":  {avatarModel},
		"description":   {na.Description},
	}
	parts := []upstream.Part{{Field: "prompt_face", Filename: na.Face.Filename, ContentType: orDefault(na.Face.ContentType, "video/mp4"), Content: na.Face.Content}}
	if na.Voice != nil && na.Voice.Filename != "" {
		parts = append(parts, upstream.Part{Field: "prompt_voice", Filename: na.Voice.Filename, ContentType: orDefault(na.Voice.ContentType, "audio/wav"), Content: na.Voice.Content})
	}
	body, contentType := upstream.MultipartBody(fields, parts...)

	var res addResponse
	err := cl.c.JSON(ctx, upstream.Request{
		Method:      http.MethodPost,
		Path:        "/avatar/add",
		Body:        body,
		ContentType: contentType,
		Timeout:     cl.conf.CreateTimeout,
		Operation:   "create_avatar",
	}, &res)
	if err != nil {
		return avatar.CreateResult{}, err
	}
	return avatar.CreateResult{
		Status:    "success",
		Message:   fmt.Sprintf("Avatar '%s' created successfully", na.Name),
		Name:      na.Name,
		ImagePath: res.ImagePath,
	}, nil
}

// StartAvatar launches the WebRTC service of an avatar; refFile defaults to the configured reference audio.
func (cl *Client) StartAvatar(ctx context.Context, name, refFile string) error {
	if refFile == "" {
		refFile = cl.conf.DefaultRefFile
	}
	return cl.c.JSON(ctx, upstream.Request{
		Method:      http.MethodPost,
		Path:        "/avatar/start",
		Body:        upstream.FormBody(url.Values{"avatar_name": {name}, "ref_file": {refFile}}),
		ContentType: upstream.FormContentType,
		Timeout:     cl.conf.StartTimeout,
		Operation:   "start_avatar",
	}, nil)
}

// Preview returns the preview image of an avatar.
func (cl *Client) Preview(ctx context.Context, name string) ([]byte, error) {
	return cl.c.Bytes(ctx, upstream.Request{
		Method:      http.MethodPost,
		Path:        "/avatar/preview",
		Body:        upstream.FormBody(url.Values{"avatar_name": {name}}),
		ContentType: upstream.FormContentType,
		Timeout:     cl.conf.OperationTimeout,
		Operation:   "preview_avatar",
	})
}

func (cl *Client) DeleteAvatar(ctx context.Context, name string) error {
	return cl.c.JSON(ctx, upstream.Request{
		Method:      http.MethodPost,
		Path:        "/avatar/delete",
		Body:        upstream.FormBody(url.Values{"name": {name}}),
		ContentType: upstream.FormContentType,
		Timeout:     cl.conf.OperationTimeout,
		Operation:   "delete_avatar",
	}, nil)
}

func (cl *Client) Health(ctx context.Context) error {
	return cl.c.Ping(ctx, "/avatar/get_avatars", healthTimeout)
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
