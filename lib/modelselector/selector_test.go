package modelselector

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testRegistry(t *testing.T) *Registry {
	t.Helper()
	registry, err := NewRegistry([]Model{
		{Name: "gpt-4", Provider: "openai"},
		{Name: "llama3", Provider: "ollama"},
		{Name: "claude-3-5-sonnet"},
	}, "claude-3-5-sonnet", "anthropic")
	require.NoError(t, err)
	return registry
}

func TestExtract(t *testing.T) {
	tests := []struct {
		name     string
		content  string
		model    string
		stripped string
		matched  bool
	}{
		{"directive", "[Model: gpt-4]\n\nHello", "gpt-4", "Hello", true},
		{"unknown model still stripped", "[Model: nope]\n\nHello", "nope", "Hello", true},
		{"no directive", "Hello", "", "Hello", false},
		{"directive not at start", "Hi [Model: gpt-4]\n\nHello", "", "Hi [Model: gpt-4]\n\nHello", false},
		{"single newline", "[Model: gpt-4]\nHello", "", "[Model: gpt-4]\nHello", false},
		{"bracket inside name", "[Model: a] b]\n\nx", "a] b", "x", true},
		{"stripped once", "[Model: gpt-4]\n\n[Model: llama3]\n\nHi", "gpt-4", "[Model: llama3]\n\nHi", true},
		{"empty body", "[Model: gpt-4]\n\n", "gpt-4", "", true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			model, stripped, matched := Extract(tc.content)
			assert.Equal(t, tc.model, model)
			assert.Equal(t, tc.stripped, stripped)
			assert.Equal(t, tc.matched, matched)
		})
	}
}

func TestExtractIsIdempotent(t *testing.T) {
	_, once, matched := Extract("[Model: gpt-4]\n\nHello\n\nworld")
	require.True(t, matched)

	_, twice, matched := Extract(once)
	assert.False(t, matched)
	assert.Equal(t, once, twice)
}

func TestSelectionLastRegisteredWins(t *testing.T) {
	registry := testRegistry(t)
	selection := registry.NewSelection()

	assert.Equal(t, "Hi", selection.Apply("[Model: gpt-4]\n\nHi"))
	assert.Equal(t, "gpt-4", selection.Model())

	assert.Equal(t, "again", selection.Apply("[Model: llama3]\n\nagain"))
	assert.Equal(t, "llama3", selection.Model())
	assert.Equal(t, "ollama", selection.Provider())

	// Unregistered directive strips but keeps the previous model
	assert.Equal(t, "x", selection.Apply("[Model: unknown]\n\nx"))
	assert.Equal(t, "llama3", selection.Model())

	// No directive leaves the state untouched
	assert.Equal(t, "plain", selection.Apply("plain"))
	assert.Equal(t, "llama3", selection.Model())
}

func TestResolveDefaults(t *testing.T) {
	registry := testRegistry(t)

	model, provider := registry.Resolve("Hello", "[Model: unknown]\n\nHi")
	assert.Equal(t, "claude-3-5-sonnet", model)
	assert.Equal(t, "anthropic", provider)

	model, provider = registry.Resolve("[Model: gpt-4]\n\nHello")
	assert.Equal(t, "gpt-4", model)
	assert.Equal(t, "openai", provider)
}

func TestRegistry(t *testing.T) {
	registry := testRegistry(t)

	assert.True(t, registry.Has("gpt-4"))
	assert.False(t, registry.Has("gpt-5"))
	assert.Equal(t, "openai", registry.ProviderOf("gpt-4"))
	// Model registered without provider inherits the default
	assert.Equal(t, "anthropic", registry.ProviderOf("claude-3-5-sonnet"))
	assert.Equal(t, "anthropic", registry.ProviderOf("gpt-5"))

	models := registry.Models()
	require.Len(t, models, 3)
	models[0].Name = "mutated"
	assert.True(t, registry.Has("gpt-4"))
	assert.Equal(t, "gpt-4", registry.Models()[0].Name)
}

func TestNewRegistryValidation(t *testing.T) {
	_, err := NewRegistry(nil, "", "openai")
	assert.Error(t, err)

	_, err = NewRegistry([]Model{{Name: ""}}, "m", "p")
	assert.ErrorIs(t, err, ErrEmptyName)

	_, err = NewRegistry([]Model{{Name: "a"}, {Name: "a"}}, "m", "p")
	assert.Error(t, err)
}
