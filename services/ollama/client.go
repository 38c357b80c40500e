// Package ollama is the chat.LLM backed by an Ollama server.
package ollama

import (
	"context"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ollama/ollama/api"
	"github.com/pkg/errors"

	"github.com/trezcool/virtualtutor/core"
	"github.com/trezcool/virtualtutor/core/chat"
	metricsvc "github.com/trezcool/virtualtutor/services/metrics"
	"github.com/trezcool/virtualtutor/services/upstream"
)

const serviceName = "ollama"

var errStreamCut = errors.New("stream ended before done")

type Client struct {
	api  *api.Client
	conf core.LLMConfig
}

var _ chat.LLM = (*Client)(nil)

func NewClient(conf *core.Config) (*Client, error) {
	base, err := url.Parse(strings.TrimRight(conf.LLM.OllamaURL, "/"))
	if err != nil {
		return nil, errors.Wrap(err, "parsing ollama URL")
	}
	return &Client{api: api.NewClient(base, &http.Client{}), conf: conf.LLM}, nil
}

func chatRequest(model string, msgs []chat.Message, opts chat.Options, stream bool) *api.ChatRequest {
	messages := make([]api.Message, len(msgs))
	for i, m := range msgs {
		messages[i] = api.Message{Role: m.Role, Content: m.Content}
	}
	options := map[string]interface{}{"temperature": opts.Temperature}
	if opts.MaxTokens > 0 {
		options["num_predict"] = opts.MaxTokens
	}
	return &api.ChatRequest{Model: model, Messages: messages, Stream: &stream, Options: options}
}

// upstreamError maps a failure of the ollama client to a *core.UpstreamError, leaving errors of fn untouched.
func upstreamError(err, fnErr error, idle *upstream.IdleTimer) error {
	var sErr api.StatusError
	switch {
	case err == nil:
		return nil
	case fnErr != nil && errors.Is(err, fnErr):
		return err
	case errors.As(err, &sErr):
		msg := sErr.ErrorMessage
		if msg == "" {
			msg = http.StatusText(sErr.StatusCode)
		}
		return core.NewUpstreamStatusError(serviceName, sErr.StatusCode, msg)
	case idle != nil && idle.Expired():
		return core.NewUpstreamTransportError(serviceName, upstream.ErrIdleTimeout)
	}
	var urlErr *url.Error
	if err == errStreamCut || errors.As(err, &urlErr) || core.IsTimeout(err) || errors.Is(err, context.Canceled) {
		return core.NewUpstreamTransportError(serviceName, err)
	}
	// an error line within a 2xx answer, or an undecodable one
	return &core.UpstreamError{Service: serviceName, Code: http.StatusOK, Msg: err.Error(), Err: err}
}

func (cl *Client) Chat(ctx context.Context, model string, msgs []chat.Message, opts chat.Options) (string, error) {
	if cl.conf.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cl.conf.Timeout)
		defer cancel()
	}

	var out strings.Builder
	start := time.Now()
	err := cl.api.Chat(ctx, chatRequest(model, msgs, opts, false), func(res api.ChatResponse) error {
		out.WriteString(res.Message.Content)
		return nil
	})
	err = upstreamError(err, nil, nil)
	metricsvc.ObserveUpstream(serviceName, "chat", start, err)
	if err != nil {
		return "", err
	}
	return out.String(), nil
}

// ChatStream calls fn with every non empty chunk of the answer. The timeout applies to every
// wait for the next chunk, so a long answer is never cut while it keeps coming.
func (cl *Client) ChatStream(ctx context.Context, model string, msgs []chat.Message, opts chat.Options, fn func(chunk string) error) error {
	var idle *upstream.IdleTimer
	if cl.conf.Timeout > 0 {
		idle = upstream.NewIdleTimer(ctx, cl.conf.Timeout)
		defer idle.Stop()
		ctx = idle.Context()
	}

	var fnErr error
	var done bool
	start := time.Now()
	err := cl.api.Chat(ctx, chatRequest(model, msgs, opts, true), func(res api.ChatResponse) error {
		if idle != nil {
			idle.Kick()
		}
		if done || res.Message.Content == "" {
			done = done || res.Done
			return nil
		}
		done = res.Done
		fnErr = fn(res.Message.Content)
		return fnErr
	})
	if err == nil && !done {
		// the client stops silently when the body breaks off
		err = errStreamCut
	}
	err = upstreamError(err, fnErr, idle)
	metricsvc.ObserveUpstream(serviceName, "chat_stream", start, err)
	return err
}

// Models lists the names of the models pulled on the server.
func (cl *Client) Models(ctx context.Context) ([]string, error) {
	if cl.conf.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cl.conf.Timeout)
		defer cancel()
	}

	start := time.Now()
	res, err := cl.api.List(ctx)
	err = upstreamError(err, nil, nil)
	metricsvc.ObserveUpstream(serviceName, "models", start, err)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(res.Models))
	for _, m := range res.Models {
		names = append(names, m.Name)
	}
	return names, nil
}
