package chat

import (
	"context"
	"fmt"
	"strings"

	"github.com/pkg/errors"

	"github.com/trezcool/virtualtutor/core"
)

const maxRAGDocuments = 5

var ErrRAGDisabled = errors.New("RAG service is not enabled")

type (
	// LLM is a chat model backend.
	LLM interface {
		Chat(ctx context.Context, model string, msgs []Message, opts Options) (string, error)
		// ChatStream calls fn with every generated chunk, in order.
		ChatStream(ctx context.Context, model string, msgs []Message, opts Options, fn func(chunk string) error) error
		Models(ctx context.Context) ([]string, error)
	}

	// Retriever returns the contents of the documents relevant to query.
	Retriever interface {
		Retrieve(ctx context.Context, userID, query string, topK int) ([]string, error)
	}

	Service struct {
		llm       LLM
		retriever Retriever
		conf      core.LLMConfig
		logger    core.Logger
	}
)

func NewService(llm LLM, retriever Retriever, conf *core.Config, logger core.Logger) *Service {
	return &Service{llm: llm, retriever: retriever, conf: conf.LLM, logger: logger}
}

func (svc *Service) model(requested string) string {
	if requested != "" {
		return requested
	}
	return svc.conf.DefaultModel
}

func (svc *Service) options() Options {
	return Options{Temperature: svc.conf.Temperature, MaxTokens: svc.conf.MaxTokens}
}

// TrimHistory keeps the last maxTurns (user + assistant pairs) of history, dropping unknown roles.
// A message without a role is a user message.
func TrimHistory(history []Message, maxTurns int) []Message {
	if maxTurns > 0 && len(history) > maxTurns*2 {
		history = history[len(history)-maxTurns*2:]
	}
	out := make([]Message, 0, len(history))
	for _, m := range history {
		switch m.Role {
		case "":
			m.Role = RoleUser
			out = append(out, m)
		case RoleUser, RoleAssistant, RoleSystem:
			out = append(out, m)
		}
	}
	return out
}

func (svc *Service) buildMessages(message, systemPrompt string, history []Message) []Message {
	msgs := make([]Message, 0, len(history)+2)
	if systemPrompt != "" {
		msgs = append(msgs, Message{Role: RoleSystem, Content: systemPrompt})
	}
	msgs = append(msgs, TrimHistory(history, svc.conf.MaxHistoryTurns)...)
	return append(msgs, Message{Role: RoleUser, Content: message})
}

// Complete answers req, unless the guardrail blocks its message.
func (svc *Service) Complete(ctx context.Context, req Request) (Response, error) {
	model := svc.model(req.Model)
	if category := svc.Classify(ctx, req.Message); !category.Allowed() {
		return Response{Response: category.BlockedResponse(), Model: model}, nil
	}

	out, err := svc.llm.Chat(ctx, model, svc.buildMessages(req.Message, req.SystemPrompt, req.ConversationHistory), svc.options())
	if err != nil {
		return Response{}, errors.Wrap(err, "chat completion")
	}
	return Response{Response: out, Model: model}, nil
}

// Stream answers req chunk by chunk. A blocked message yields its canned answer as a single chunk.
func (svc *Service) Stream(ctx context.Context, req Request, fn func(chunk string) error) error {
	if category := svc.Classify(ctx, req.Message); !category.Allowed() {
		return fn(category.BlockedResponse())
	}
	msgs := svc.buildMessages(req.Message, req.SystemPrompt, req.ConversationHistory)
	return errors.Wrap(svc.llm.ChatStream(ctx, svc.model(req.Model), msgs, svc.options(), fn), "chat stream")
}

// RAGPrompt wraps message with the retrieved documents.
func RAGPrompt(message string, docs []string) string {
	if len(docs) > maxRAGDocuments {
		docs = docs[:maxRAGDocuments]
	}
	parts := make([]string, 0, len(docs))
	for i, doc := range docs {
		parts = append(parts, fmt.Sprintf("Document %d:\n%s", i+1, doc))
	}
	return fmt.Sprintf(`You are a helpful AI assistant. Use the following context to answer the user's question.

Context:
%s

User Question: %s

Provide a clear and helpful answer based on the context above. If the context doesn't contain relevant information, say so and provide a general response.`, strings.Join(parts, "\n\n"), message)
}

// CompleteRAG answers req with the user's retrieved documents as context, without the guardrail.
// A failing retriever degrades to a plain completion.
func (svc *Service) CompleteRAG(ctx context.Context, req RAGRequest) (Response, error) {
	if !svc.conf.RAGEnabled || svc.retriever == nil {
		return Response{}, ErrRAGDisabled
	}
	model := svc.model(req.Model)

	prompt := req.Message
	docs, err := svc.retriever.Retrieve(ctx, req.UserID, req.Message, svc.conf.RAGTopK)
	if err != nil {
		svc.logger.Warn("RAG retrieval failed, falling back to normal chat", err)
	} else {
		prompt = RAGPrompt(req.Message, docs)
	}

	out, err := svc.llm.Chat(ctx, model, svc.buildMessages(prompt, "", req.ConversationHistory), svc.options())
	if err != nil {
		return Response{}, errors.Wrap(err, "rag chat completion")
	}
	return Response{Response: out, Model: model}, nil
}

// Models returns the models available on the LLM backend and the default one.
// The configured models are returned when the backend cannot be listed.
func (svc *Service) Models(ctx context.Context) ([]string, string) {
	models, err := svc.llm.Models(ctx)
	if err != nil || len(models) == 0 {
		if err != nil {
			svc.logger.Warn("listing models failed", err)
		}
		models = []string{svc.conf.DefaultModel, svc.conf.FallbackModel}
	}
	return models, svc.conf.DefaultModel
}

// Healthy reports whether the LLM backend answers.
func (svc *Service) Healthy(ctx context.Context) error {
	_, err := svc.llm.Models(ctx)
	return err
}
