package chat

import (
	"github.com/go-playground/validator/v10"

	"github.com/trezcool/virtualtutor/core"
)

// LLM roles
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleSystem    = "system"
)

type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Request is a chat completion request.
type Request struct {
	Message             string    `json:"message" validate:"required,notblank"`
	ConversationHistory []Message `json:"conversation_history"`
	SystemPrompt        string    `json:"system_prompt"`
	Model               string    `json:"model"`
	Stream              bool      `json:"stream"`
}

func (r *Request) Validate(validate *validator.Validate) error {
	r.Model = core.CleanString(r.Model)
	return validate.Struct(r)
}

// RAGRequest is a chat completion request augmented with the user's documents.
type RAGRequest struct {
	Message             string    `json:"message" validate:"required,notblank"`
	UserID              string    `json:"user_id" validate:"required,notblank"`
	ConversationHistory []Message `json:"conversation_history"`
	Model               string    `json:"model"`
}

func (r *RAGRequest) Validate(validate *validator.Validate) error {
	r.UserID = core.CleanString(r.UserID)
	r.Model = core.CleanString(r.Model)
	return validate.Struct(r)
}

type Response struct {
	Response string `json:"response"`
	Model    string `json:"model"`
}

// Options tunes a single LLM call.
type Options struct {
	Temperature float64
	MaxTokens   int
}
