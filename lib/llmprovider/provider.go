// Package llmprovider issues streaming completions against model providers and exposes
// the result as a datastream-framed byte stream.
package llmprovider

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"sync"
)

var ErrUnknownProvider = errors.New("unknown provider")

type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Options are generation parameters. Nil fields are left to the provider.
type Options struct {
	System           *string  `json:"system,omitempty"`
	MaxTokens        *int     `json:"maxTokens,omitempty"`
	Temperature      *float64 `json:"temperature,omitempty"`
	TopP             *float64 `json:"topP,omitempty"`
	FrequencyPenalty *float64 `json:"frequencyPenalty,omitempty"`
	PresencePenalty  *float64 `json:"presencePenalty,omitempty"`
	StopSequences    []string `json:"stopSequences,omitempty"`
	Seed             *int     `json:"seed,omitempty"`
}

// Merge returns o with every field set in overrides replacing the original value
func (o Options) Merge(overrides Options) Options {
	merged := o
	if overrides.System != nil {
		merged.System = overrides.System
	}
	if overrides.MaxTokens != nil {
		merged.MaxTokens = overrides.MaxTokens
	}
	if overrides.Temperature != nil {
		merged.Temperature = overrides.Temperature
	}
	if overrides.TopP != nil {
		merged.TopP = overrides.TopP
	}
	if overrides.FrequencyPenalty != nil {
		merged.FrequencyPenalty = overrides.FrequencyPenalty
	}
	if overrides.PresencePenalty != nil {
		merged.PresencePenalty = overrides.PresencePenalty
	}
	if overrides.StopSequences != nil {
		merged.StopSequences = overrides.StopSequences
	}
	if overrides.Seed != nil {
		merged.Seed = overrides.Seed
	}
	return merged
}

type Request struct {
	Model    string
	Messages []Message
	Options
}

// StreamResult is a started completion. Stream carries datastream frame lines and must be closed.
type StreamResult struct {
	MessageID string
	Model     string
	Provider  string
	Stream    io.ReadCloser
}

type Provider interface {
	StreamText(ctx context.Context, request *Request) (*StreamResult, error)
}

// Router dispatches requests to providers by name
type Router struct {
	mutex     sync.RWMutex
	providers map[string]Provider
}

func NewRouter() *Router {
	return &Router{
		providers: make(map[string]Provider),
	}
}

func (r *Router) Register(name string, provider Provider) {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	r.providers[name] = provider
}

func (r *Router) Names() []string {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	names := make([]string, 0, len(r.providers))
	for name := range r.providers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (r *Router) StreamText(ctx context.Context, provider string, request *Request) (*StreamResult, error) {
	r.mutex.RLock()
	p, ok := r.providers[provider]
	r.mutex.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownProvider, provider)
	}

	result, err := p.StreamText(ctx, request)
	if err != nil {
		return nil, err
	}
	result.Provider = provider
	return result, nil
}
