package modelselector

import "regexp"

var directiveRegexp = regexp.MustCompile(`^\[Model: (.*?)\]\n\n`)

// Extract splits a leading model directive off content.
// The prefix is removed exactly once; content without a directive is returned unchanged.
func Extract(content string) (model string, stripped string, matched bool) {
	match := directiveRegexp.FindStringSubmatchIndex(content)
	if match == nil {
		return "", content, false
	}
	return content[match[2]:match[3]], content[match[1]:], true
}

// Selection tracks the effective model while messages are folded in their original order
type Selection struct {
	registry *Registry
	model    string
}

func (r *Registry) NewSelection() *Selection {
	return &Selection{registry: r}
}

// Apply strips the directive from content and, if it names a registered model,
// makes that model the effective one. Later calls win.
func (s *Selection) Apply(content string) string {
	model, stripped, matched := Extract(content)
	if matched && s.registry.Has(model) {
		s.model = model
	}
	return stripped
}

// Model returns the effective model, falling back to the registry default
func (s *Selection) Model() string {
	if s.model == "" {
		return s.registry.DefaultModel()
	}
	return s.model
}

func (s *Selection) Provider() string {
	return s.registry.ProviderOf(s.Model())
}

// Resolve folds contents in order and returns the effective model and provider
func (r *Registry) Resolve(contents ...string) (model, provider string) {
	selection := r.NewSelection()
	for _, content := range contents {
		selection.Apply(content)
	}
	return selection.Model(), selection.Provider()
}
