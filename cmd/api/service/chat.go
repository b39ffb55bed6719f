package service

import (
	"context"

	"git.ruekov.eu/ruakij/promptrelay/cmd/api/models"
	"git.ruekov.eu/ruakij/promptrelay/lib/llmprovider"
	"git.ruekov.eu/ruakij/promptrelay/lib/modelselector"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const contextMarker = "\n\nContext:\n"

// ContextRenderer returns the printable context stored under key
type ContextRenderer interface {
	Render(ctx context.Context, key string) (string, error)
}

// Caller starts a streaming completion on the named provider
type Caller interface {
	StreamText(ctx context.Context, provider string, request *llmprovider.Request) (*llmprovider.StreamResult, error)
}

type ChatServiceOptions struct {
	// Context entry appended to every user message
	ContextKey   string
	SystemPrompt string
	MaxTokens    int
}

type ChatService struct {
	contexts ContextRenderer
	models   *modelselector.Registry
	caller   Caller
	options  ChatServiceOptions
	log      *zap.Logger
}

func NewChatService(contexts ContextRenderer, registry *modelselector.Registry, caller Caller, options ChatServiceOptions, log *zap.Logger) *ChatService {
	return &ChatService{
		contexts: contexts,
		models:   registry,
		caller:   caller,
		options:  options,
		log:      log,
	}
}

// Enriched is the message list as it is sent to the provider
type Enriched struct {
	Messages []models.Message
	Model    string
	Provider string
}

// Enrich strips model directives from user messages and appends the rendered context to each of them.
// The effective model is the last registered directive in message order.
func (s *ChatService) Enrich(ctx context.Context, messages []models.Message) (*Enriched, error) {
	enriched := make([]models.Message, len(messages))
	copy(enriched, messages)

	selection := s.models.NewSelection()
	group, groupCtx := errgroup.WithContext(ctx)
	for i := range enriched {
		if enriched[i].Role != "user" {
			continue
		}
		stripped := selection.Apply(enriched[i].Content)

		message := &enriched[i]
		group.Go(func() error {
			rendered, err := s.contexts.Render(groupCtx, s.options.ContextKey)
			if err != nil {
				return err
			}
			message.Content = stripped + contextMarker + rendered
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return nil, err
	}

	return &Enriched{
		Messages: enriched,
		Model:    selection.Model(),
		Provider: selection.Provider(),
	}, nil
}

// StreamText enriches messages and starts the completion. Fields set in overrides replace the defaults.
func (s *ChatService) StreamText(ctx context.Context, messages []models.Message, overrides llmprovider.Options) (*llmprovider.StreamResult, error) {
	enriched, err := s.Enrich(ctx, messages)
	if err != nil {
		return nil, err
	}

	request := &llmprovider.Request{
		Model:    enriched.Model,
		Messages: make([]llmprovider.Message, 0, len(enriched.Messages)),
		Options:  s.defaults().Merge(overrides),
	}
	for _, message := range enriched.Messages {
		request.Messages = append(request.Messages, llmprovider.Message{
			Role:    message.Role,
			Content: message.Content,
		})
	}

	s.log.Debug("Starting completion",
		zap.String("model", enriched.Model),
		zap.String("provider", enriched.Provider),
		zap.Int("messages", len(request.Messages)),
	)
	return s.caller.StreamText(ctx, enriched.Provider, request)
}

func (s *ChatService) defaults() llmprovider.Options {
	var options llmprovider.Options
	if s.options.SystemPrompt != "" {
		system := s.options.SystemPrompt
		options.System = &system
	}
	if s.options.MaxTokens > 0 {
		maxTokens := s.options.MaxTokens
		options.MaxTokens = &maxTokens
	}
	return options
}
