package service

import (
	"context"
	"strings"

	"git.ruekov.eu/ruakij/promptrelay/cmd/api/models"
	"git.ruekov.eu/ruakij/promptrelay/lib/llmprovider"
)

const enhancerTemplate = "I want you to improve the user prompt that is wrapped in `<original_prompt>` tags.\n" +
	"\n" +
	"IMPORTANT: Only respond with the improved prompt and nothing else!\n" +
	"\n" +
	"<original_prompt>\n" +
	"{{message}}\n" +
	"</original_prompt>\n" +
	"\n" +
	"Context:\n" +
	"{{context}}"

// EnhancerService wraps a raw prompt into the improvement instruction and sends it through the chat pipeline
type EnhancerService struct {
	chat       *ChatService
	contexts   ContextRenderer
	contextKey string
}

func NewEnhancerService(chat *ChatService, contexts ContextRenderer, contextKey string) *EnhancerService {
	return &EnhancerService{
		chat:       chat,
		contexts:   contexts,
		contextKey: contextKey,
	}
}

// Prompt builds the instruction for message including the enhancer context
func (s *EnhancerService) Prompt(ctx context.Context, message string) (string, error) {
	rendered, err := s.contexts.Render(ctx, s.contextKey)
	if err != nil {
		return "", err
	}
	return strings.NewReplacer(
		"{{message}}", message,
		"{{context}}", rendered,
	).Replace(enhancerTemplate), nil
}

func (s *EnhancerService) StreamText(ctx context.Context, message string) (*llmprovider.StreamResult, error) {
	prompt, err := s.Prompt(ctx, message)
	if err != nil {
		return nil, err
	}
	return s.chat.StreamText(ctx, []models.Message{{Role: "user", Content: prompt}}, llmprovider.Options{})
}
