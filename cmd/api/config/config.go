// Package config loads the model registry, provider endpoints and generation defaults.
//
// The file format is picked by extension: .toml, .yaml or .yml. Fields left out of the
// file keep their built-in defaults.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"git.ruekov.eu/ruakij/promptrelay/lib/modelselector"
	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// MaxTokens is the completion ceiling used when the file sets none
const MaxTokens = 8192

const defaultSystemPrompt = "You are a helpful assistant. Answer using the context attached to the user's messages when it is relevant."

type ProviderConfig struct {
	Name      string `toml:"name" yaml:"name"`
	BaseURL   string `toml:"base_url" yaml:"base_url"`
	APIKeyEnv string `toml:"api_key_env" yaml:"api_key_env"`
}

// APIKey reads the provider key from the environment
func (p ProviderConfig) APIKey() string {
	if p.APIKeyEnv == "" {
		return ""
	}
	return os.Getenv(p.APIKeyEnv)
}

type Registry struct {
	DefaultModel    string                `toml:"default_model" yaml:"default_model"`
	DefaultProvider string                `toml:"default_provider" yaml:"default_provider"`
	SystemPrompt    string                `toml:"system_prompt" yaml:"system_prompt"`
	MaxTokens       int                   `toml:"max_tokens" yaml:"max_tokens"`
	Models          []modelselector.Model `toml:"models" yaml:"models"`
	Providers       []ProviderConfig      `toml:"providers" yaml:"providers"`
}

func Default() *Registry {
	return &Registry{
		DefaultModel:    "claude-3-5-sonnet-20240620",
		DefaultProvider: "anthropic",
		SystemPrompt:    defaultSystemPrompt,
		MaxTokens:       MaxTokens,
		Models: []modelselector.Model{
			{Name: "claude-3-5-sonnet-20240620", Label: "Claude 3.5 Sonnet", Provider: "anthropic"},
			{Name: "gpt-4o", Label: "GPT-4o", Provider: "openai"},
			{Name: "gpt-4o-mini", Label: "GPT-4o Mini", Provider: "openai"},
			{Name: "gpt-4", Label: "GPT-4", Provider: "openai"},
			{Name: "llama-3.1-70b-versatile", Label: "Llama 3.1 70B (Groq)", Provider: "groq"},
			{Name: "deepseek-coder", Label: "DeepSeek Coder", Provider: "deepseek"},
			{Name: "llama3.1", Label: "Llama 3.1 (local)", Provider: "ollama"},
		},
		Providers: []ProviderConfig{
			{Name: "anthropic", BaseURL: "https://api.anthropic.com/v1", APIKeyEnv: "ANTHROPIC_API_KEY"},
			{Name: "openai", BaseURL: "https://api.openai.com/v1", APIKeyEnv: "OPENAI_API_KEY"},
			{Name: "groq", BaseURL: "https://api.groq.com/openai/v1", APIKeyEnv: "GROQ_API_KEY"},
			{Name: "deepseek", BaseURL: "https://api.deepseek.com/v1", APIKeyEnv: "DEEPSEEK_API_KEY"},
			{Name: "ollama", BaseURL: "http://127.0.0.1:11434/v1"},
		},
	}
}

// Load reads path on top of the defaults. An empty path returns the defaults.
func Load(path string) (*Registry, error) {
	registry := Default()
	if path == "" {
		return registry, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading registry file: %w", err)
	}

	var loaded Registry
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		err = toml.Unmarshal(data, &loaded)
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &loaded)
	default:
		return nil, fmt.Errorf("unsupported registry file extension %q", filepath.Ext(path))
	}
	if err != nil {
		return nil, fmt.Errorf("parsing registry file %s: %w", path, err)
	}

	registry.merge(&loaded)
	return registry, registry.validate()
}

func (r *Registry) merge(loaded *Registry) {
	if loaded.DefaultModel != "" {
		r.DefaultModel = loaded.DefaultModel
	}
	if loaded.DefaultProvider != "" {
		r.DefaultProvider = loaded.DefaultProvider
	}
	if loaded.SystemPrompt != "" {
		r.SystemPrompt = loaded.SystemPrompt
	}
	if loaded.MaxTokens > 0 {
		r.MaxTokens = loaded.MaxTokens
	}
	if len(loaded.Models) > 0 {
		r.Models = loaded.Models
	}
	if len(loaded.Providers) > 0 {
		r.Providers = loaded.Providers
	}
}

func (r *Registry) validate() error {
	known := make(map[string]bool, len(r.Providers))
	for _, provider := range r.Providers {
		if provider.Name == "" || provider.BaseURL == "" {
			return fmt.Errorf("provider entries need a name and a base_url")
		}
		known[provider.Name] = true
	}
	if !known[r.DefaultProvider] {
		return fmt.Errorf("default provider %q has no endpoint configured", r.DefaultProvider)
	}
	for _, model := range r.Models {
		if model.Provider != "" && !known[model.Provider] {
			return fmt.Errorf("model %q uses unconfigured provider %q", model.Name, model.Provider)
		}
	}
	return nil
}

// Provider returns the endpoint configuration for name
func (r *Registry) Provider(name string) (ProviderConfig, bool) {
	for _, provider := range r.Providers {
		if provider.Name == name {
			return provider, true
		}
	}
	return ProviderConfig{}, false
}

func (r *Registry) ModelRegistry() (*modelselector.Registry, error) {
	return modelselector.NewRegistry(r.Models, r.DefaultModel, r.DefaultProvider)
}
