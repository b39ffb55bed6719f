// Package modelselector resolves which model serves a request.
//
// A user message may start with a directive naming a model:
//
//	[Model: gpt-4o]
//
//	Write a haiku about caches
//
// The directive is always stripped before the message reaches a provider. It only changes
// the effective model when the named model is present in the Registry.
package modelselector

import (
	"errors"
	"fmt"
)

type Model struct {
	Name     string `toml:"name" yaml:"name" json:"name"`
	Label    string `toml:"label" yaml:"label" json:"label,omitempty"`
	Provider string `toml:"provider" yaml:"provider" json:"provider"`
}

// Registry is the fixed set of models known to the process. It is read-only after construction.
type Registry struct {
	models          []Model
	byName          map[string]Model
	defaultModel    string
	defaultProvider string
}

var ErrEmptyName = errors.New("model name is empty")

func NewRegistry(models []Model, defaultModel, defaultProvider string) (*Registry, error) {
	if defaultModel == "" || defaultProvider == "" {
		return nil, errors.New("default model and default provider are required")
	}

	registry := &Registry{
		models:          make([]Model, 0, len(models)),
		byName:          make(map[string]Model, len(models)),
		defaultModel:    defaultModel,
		defaultProvider: defaultProvider,
	}
	for _, model := range models {
		if model.Name == "" {
			return nil, ErrEmptyName
		}
		if _, exists := registry.byName[model.Name]; exists {
			return nil, fmt.Errorf("model %q registered twice", model.Name)
		}
		if model.Provider == "" {
			model.Provider = defaultProvider
		}
		registry.models = append(registry.models, model)
		registry.byName[model.Name] = model
	}

	return registry, nil
}

func (r *Registry) Has(name string) bool {
	_, ok := r.byName[name]
	return ok
}

// ProviderOf returns the provider serving name, or the default provider for unknown models
func (r *Registry) ProviderOf(name string) string {
	if model, ok := r.byName[name]; ok {
		return model.Provider
	}
	return r.defaultProvider
}

// Models returns a copy of the registered models in registration order
func (r *Registry) Models() []Model {
	models := make([]Model, len(r.models))
	copy(models, r.models)
	return models
}

func (r *Registry) DefaultModel() string {
	return r.defaultModel
}

func (r *Registry) DefaultProvider() string {
	return r.defaultProvider
}
