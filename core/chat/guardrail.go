package chat

import (
	"context"
	"strings"
)

// Category is the guardrail classification of a user message.
type Category string

const (
	CategoryNormal   Category = "normal"
	CategoryHomework Category = "homework_request"
	CategoryHarmful  Category = "harmful"
)

const classifierPrompt = `You are a content classifier. Classify the input into one of:

1. "normal" - appropriate academic questions, general queries
2. "homework_request" - requests for direct assignment answers or solutions
3. "harmful" - inappropriate, explicit, or harmful content

Respond with ONLY ONE WORD: normal, homework_request, or harmful.`

func (c Category) Allowed() bool { return c == CategoryNormal }

// BlockedResponse is the canned answer sent instead of the LLM's for a blocked message.
func (c Category) BlockedResponse() string {
	switch c {
	case CategoryHomework:
		return "I'm here to help you understand the material, but I can't provide direct answers to assignments. What concept would you like me to explain?"
	case CategoryHarmful:
		return "I'm sorry, I can't help with that request. Please ensure your questions are appropriate."
	default:
		return "Sorry, your question couldn't be processed. Please try rephrasing it."
	}
}

// Classify asks the LLM to categorize message. Any classification failure lets the message through.
func (svc *Service) Classify(ctx context.Context, message string) Category {
	if !svc.conf.GuardrailEnabled {
		return CategoryNormal
	}
	msgs := []Message{
		{Role: RoleSystem, Content: classifierPrompt},
		{Role: RoleUser, Content: message},
	}
	out, err := svc.llm.Chat(ctx, svc.conf.DefaultModel, msgs, Options{Temperature: 0})
	if err != nil {
		svc.logger.Error("guardrail classification failed", err)
		return CategoryNormal
	}
	category := Category(strings.Trim(strings.ToLower(strings.TrimSpace(out)), `."'`))
	svc.logger.Debug("content classification", map[string]interface{}{"category": string(category)})
	return category
}
