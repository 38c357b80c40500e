// Package tts is the client of the text-to-speech service.
package tts

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/trezcool/virtualtutor/core"
	"github.com/trezcool/virtualtutor/core/speech"
	"github.com/trezcool/virtualtutor/services/upstream"
)

const (
	serviceName    = "tts"
	catalogTimeout = 10 * time.Second
	healthTimeout  = 5 * time.Second
)

type Client struct {
	c    *upstream.Client
	conf core.TTSConfig
}

var _ speech.Synthesizer = (*Client)(nil)

func NewClient(conf *core.Config) *Client {
	return &Client{c: upstream.New(serviceName, conf.Gateway.TTSURL), conf: conf.TTS}
}

func referencePart(ref speech.Reference) upstream.Part {
	filename := ref.Filename
	if filename == "" {
		filename = "audio.wav"
	}
	ct := ref.ContentType
	if ct == "" {
		ct = "audio/wav"
	}
	return upstream.Part{Field: "reference_audio", Filename: filename, ContentType: ct, Content: ref.Content}
}

func formatFloat(f float64) string { return strconv.FormatFloat(f, 'f', -1, 64) }

// Synthesize posts req as JSON, or as a multipart form when it carries a reference audio.
func (cl *Client) Synthesize(ctx context.Context, req speech.Request) ([]byte, error) {
	ureq := upstream.Request{
		Method:    http.MethodPost,
		Path:      "/tts/synthesize",
		Timeout:   cl.conf.Timeout,
		Operation: "synthesize",
	}
	if req.Reference != nil {
		fields := url.Values{
			"text":   {req.Text},
			"engine": {req.Engine},
			"voice":  {req.Voice},
			"rate":   {formatFloat(req.Rate)},
			"volume": {formatFloat(req.Volume)},
		}
		ureq.Body, ureq.ContentType = upstream.MultipartBody(fields, referencePart(*req.Reference))
	} else {
		body, err := upstream.JSONBody(req)
		if err != nil {
			return nil, err
		}
		ureq.Body, ureq.ContentType = body, "application/json"
	}
	return cl.c.Bytes(ctx, ureq)
}

func (cl *Client) Clone(ctx context.Context, req speech.CloneRequest) ([]byte, error) {
	body, contentType := upstream.MultipartBody(
		url.Values{"text": {req.Text}, "voice_name": {req.VoiceName}},
		referencePart(req.Reference),
	)
	return cl.c.Bytes(ctx, upstream.Request{
		Method:      http.MethodPost,
		Path:        "/tts/clone",
		Body:        body,
		ContentType: contentType,
		Timeout:     cl.conf.CloneTimeout,
		Operation:   "clone",
	})
}

func (cl *Client) Voices(ctx context.Context, engine string) ([]speech.Voice, error) {
	var query url.Values
	if engine != "" {
		query = url.Values{"engine": {engine}}
	}
	var res struct {
		Voices []speech.Voice `json:"voices"`
	}
	err := cl.c.JSON(ctx, upstream.Request{Path: "/tts/voices", Query: query, Timeout: catalogTimeout, Operation: "voices"}, &res)
	if err != nil {
		return nil, err
	}
	if res.Voices == nil {
		res.Voices = []speech.Voice{}
	}
	return res.Voices, nil
}

func (cl *Client) Engines(ctx context.Context) ([]speech.EngineInfo, error) {
	var res struct {
		Engines []speech.EngineInfo `json:"engines"`
	}
	err := cl.c.JSON(ctx, upstream.Request{Path: "/tts/engines", Timeout: healthTimeout, Operation: "engines"}, &res)
	return res.Engines, err
}

func (cl *Client) Models(ctx context.Context) ([]speech.Model, error) {
	var res struct {
		Models []speech.Model `json:"models"`
	}
	err := cl.c.JSON(ctx, upstream.Request{Path: "/tts/models", Timeout: catalogTimeout, Operation: "models"}, &res)
	return res.Models, err
}

func (cl *Client) Health(ctx context.Context) error {
	return cl.c.Ping(ctx, "/health", healthTimeout)
}
