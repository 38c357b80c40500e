package chat_test

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/virtualtutor/core"
	. "github.com/trezcool/virtualtutor/core/chat"
	logsvc "github.com/trezcool/virtualtutor/services/logger"
)

type fakeLLM struct {
	classification string
	classifyErr    error
	answer         string
	err            error
	chunks         []string
	models         []string
	calls          [][]Message
}

func (llm *fakeLLM) Chat(_ context.Context, _ string, msgs []Message, _ Options) (string, error) {
	if msgs[0].Role == RoleSystem && strings.HasPrefix(msgs[0].Content, "You are a content classifier") {
		return llm.classification, llm.classifyErr
	}
	llm.calls = append(llm.calls, msgs)
	return llm.answer, llm.err
}

func (llm *fakeLLM) ChatStream(_ context.Context, _ string, msgs []Message, _ Options, fn func(string) error) error {
	llm.calls = append(llm.calls, msgs)
	for _, c := range llm.chunks {
		if err := fn(c); err != nil {
			return err
		}
	}
	return llm.err
}

func (llm *fakeLLM) Models(context.Context) ([]string, error) {
	return llm.models, llm.err
}

type fakeRetriever struct {
	docs []string
	err  error
}

func (r fakeRetriever) Retrieve(context.Context, string, string, int) ([]string, error) {
	return r.docs, r.err
}

func newService(llm LLM, retriever Retriever, configure ...func(conf *core.LLMConfig)) *Service {
	conf := &core.Config{LLM: core.LLMConfig{
		DefaultModel:    "qwen2.5:7b",
		FallbackModel:   "llama3",
		MaxHistoryTurns: 5,
		RAGTopK:         3,
	}}
	for _, fn := range configure {
		fn(&conf.LLM)
	}
	return NewService(llm, retriever, conf, logsvc.NewNop())
}

func TestTrimHistory(t *testing.T) {
	msgs := func(roles ...string) []Message {
		out := make([]Message, 0, len(roles))
		for i, r := range roles {
			out = append(out, Message{Role: r, Content: fmt.Sprint(i)})
		}
		return out
	}
	long := msgs("user", "assistant", "user", "assistant", "user", "assistant", "user")

	tests := []struct {
		name     string
		history  []Message
		maxTurns int
		want     []Message
	}{
		{name: "empty", history: nil, maxTurns: 5, want: []Message{}},
		{name: "short", history: long[:3], maxTurns: 5, want: long[:3]},
		{name: "trimmed", history: long, maxTurns: 2, want: long[3:]},
		{name: "no limit", history: long, maxTurns: 0, want: long},
		{
			name:     "unknown roles dropped",
			history:  msgs("user", "tool", "system", "function"),
			maxTurns: 5,
			want:     []Message{{Role: "user", Content: "0"}, {Role: "system", Content: "2"}},
		},
		{
			name:     "missing role is user",
			history:  msgs("", "assistant"),
			maxTurns: 5,
			want:     []Message{{Role: "user", Content: "0"}, {Role: "assistant", Content: "1"}},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, TrimHistory(tt.history, tt.maxTurns))
		})
	}
}

func TestRAGPrompt(t *testing.T) {
	docs := []string{"a", "b", "c", "d", "e", "f"}
	prompt := RAGPrompt("why?", docs)

	assert.Contains(t, prompt, "Context:\nDocument 1:\na\n\nDocument 2:\nb")
	assert.Contains(t, prompt, "Document 5:\ne")
	assert.NotContains(t, prompt, "Document 6")
	assert.Contains(t, prompt, "User Question: why?")
}

func TestCategory_BlockedResponse(t *testing.T) {
	assert.True(t, CategoryNormal.Allowed())
	assert.False(t, CategoryHomework.Allowed())
	assert.False(t, Category("spam").Allowed())

	assert.Contains(t, CategoryHomework.BlockedResponse(), "can't provide direct answers")
	assert.Contains(t, CategoryHarmful.BlockedResponse(), "can't help with that request")
	assert.Contains(t, Category("spam").BlockedResponse(), "try rephrasing")
}

func TestService_Classify(t *testing.T) {
	enabled := func(conf *core.LLMConfig) { conf.GuardrailEnabled = true }
	ctx := context.Background()

	tests := []struct {
		name  string
		llm   *fakeLLM
		guard bool
		want  Category
	}{
		{name: "disabled", llm: &fakeLLM{classification: "harmful"}, want: CategoryNormal},
		{name: "normal", llm: &fakeLLM{classification: " Normal. "}, guard: true, want: CategoryNormal},
		{name: "homework", llm: &fakeLLM{classification: `"homework_request"`}, guard: true, want: CategoryHomework},
		{name: "harmful", llm: &fakeLLM{classification: "HARMFUL\n"}, guard: true, want: CategoryHarmful},
		{name: "failure lets through", llm: &fakeLLM{classifyErr: errors.New("boom")}, guard: true, want: CategoryNormal},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var svc *Service
			if tt.guard {
				svc = newService(tt.llm, nil, enabled)
			} else {
				svc = newService(tt.llm, nil)
			}
			assert.Equal(t, tt.want, svc.Classify(ctx, "a message"))
		})
	}
}

func TestService_Complete(t *testing.T) {
	ctx := context.Background()

	t.Run("answered", func(t *testing.T) {
		llm := &fakeLLM{answer: "42"}
		res, err := newService(llm, nil).Complete(ctx, Request{
			Message:             "meaning?",
			SystemPrompt:        "Be brief.",
			ConversationHistory: []Message{{Role: RoleAssistant, Content: "hi"}},
		})
		require.NoError(t, err)
		assert.Equal(t, Response{Response: "42", Model: "qwen2.5:7b"}, res)
		assert.Equal(t, [][]Message{{
			{Role: RoleSystem, Content: "Be brief."},
			{Role: RoleAssistant, Content: "hi"},
			{Role: RoleUser, Content: "meaning?"},
		}}, llm.calls)
	})

	t.Run("blocked", func(t *testing.T) {
		llm := &fakeLLM{classification: "harmful"}
		svc := newService(llm, nil, func(conf *core.LLMConfig) { conf.GuardrailEnabled = true })
		res, err := svc.Complete(ctx, Request{Message: "bad", Model: "m2"})
		require.NoError(t, err)
		assert.Equal(t, Response{Response: CategoryHarmful.BlockedResponse(), Model: "m2"}, res)
		assert.Empty(t, llm.calls)
	})

	t.Run("failure", func(t *testing.T) {
		uErr := &core.UpstreamError{Service: "ollama", Code: 500, Msg: "oops"}
		_, err := newService(&fakeLLM{err: uErr}, nil).Complete(ctx, Request{Message: "hi"})
		assert.Equal(t, uErr, errors.Cause(err))
	})
}

func TestService_Stream(t *testing.T) {
	ctx := context.Background()
	collect := func(svc *Service) ([]string, error) {
		var got []string
		err := svc.Stream(ctx, Request{Message: "homework please"}, func(c string) error {
			got = append(got, c)
			return nil
		})
		return got, err
	}

	got, err := collect(newService(&fakeLLM{chunks: []string{"a", "b"}}, nil))
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, got)

	llm := &fakeLLM{classification: "homework_request", chunks: []string{"a"}}
	got, err = collect(newService(llm, nil, func(conf *core.LLMConfig) { conf.GuardrailEnabled = true }))
	require.NoError(t, err)
	assert.Equal(t, []string{CategoryHomework.BlockedResponse()}, got)
	assert.Empty(t, llm.calls)

	_, err = collect(newService(&fakeLLM{chunks: []string{"a"}, err: errors.New("cut")}, nil))
	assert.EqualError(t, errors.Cause(err), "cut")
}

func TestService_CompleteRAG(t *testing.T) {
	ctx := context.Background()
	ragOn := func(conf *core.LLMConfig) { conf.RAGEnabled = true }
	req := RAGRequest{Message: "what are neural nets?", UserID: "u1"}

	t.Run("disabled", func(t *testing.T) {
		_, err := newService(&fakeLLM{}, fakeRetriever{}).CompleteRAG(ctx, req)
		assert.Equal(t, ErrRAGDisabled, err)

		_, err = newService(&fakeLLM{}, nil, ragOn).CompleteRAG(ctx, req)
		assert.Equal(t, ErrRAGDisabled, err)
	})

	t.Run("with context", func(t *testing.T) {
		llm := &fakeLLM{answer: "they learn"}
		res, err := newService(llm, fakeRetriever{docs: []string{"doc"}}, ragOn).CompleteRAG(ctx, req)
		require.NoError(t, err)
		assert.Equal(t, "they learn", res.Response)
		require.Len(t, llm.calls, 1)
		assert.Equal(t, RAGPrompt(req.Message, []string{"doc"}), llm.calls[0][0].Content)
	})

	t.Run("retriever failure falls back", func(t *testing.T) {
		llm := &fakeLLM{answer: "plain"}
		res, err := newService(llm, fakeRetriever{err: errors.New("down")}, ragOn).CompleteRAG(ctx, req)
		require.NoError(t, err)
		assert.Equal(t, "plain", res.Response)
		assert.Equal(t, req.Message, llm.calls[0][0].Content)
	})

	t.Run("not guarded", func(t *testing.T) {
		llm := &fakeLLM{classification: "homework_request", answer: "here is how"}
		guarded := func(conf *core.LLMConfig) { conf.GuardrailEnabled = true }
		res, err := newService(llm, fakeRetriever{docs: []string{"doc"}}, ragOn, guarded).CompleteRAG(ctx, RAGRequest{Message: "solve my homework", UserID: "u1"})
		require.NoError(t, err)
		assert.Equal(t, "here is how", res.Response)
		require.Len(t, llm.calls, 1)
	})
}

func TestService_Models(t *testing.T) {
	ctx := context.Background()

	models, def := newService(&fakeLLM{models: []string{"a", "b"}}, nil).Models(ctx)
	assert.Equal(t, []string{"a", "b"}, models)
	assert.Equal(t, "qwen2.5:7b", def)

	models, _ = newService(&fakeLLM{err: errors.New("down")}, nil).Models(ctx)
	assert.Equal(t, []string{"qwen2.5:7b", "llama3"}, models)

	models, _ = newService(&fakeLLM{models: []string{}}, nil).Models(ctx)
	assert.Equal(t, []string{"qwen2.5:7b", "llama3"}, models)

	assert.Error(t, newService(&fakeLLM{err: errors.New("down")}, nil).Healthy(ctx))
}
