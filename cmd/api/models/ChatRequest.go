package models

import (
	"encoding/json"

	"git.ruekov.eu/ruakij/promptrelay/lib/llmprovider"
)

type ToolInvocation struct {
	ToolCallID string          `json:"toolCallId"`
	ToolName   string          `json:"toolName"`
	Args       json.RawMessage `json:"args,omitempty"`
	Result     json.RawMessage `json:"result,omitempty"`
}

type Message struct {
	Role            string           `json:"role" binding:"required,oneof=user assistant"`
	Content         string           `json:"content"`
	ToolInvocations []ToolInvocation `json:"toolInvocations,omitempty"`
	Model           string           `json:"model,omitempty"`
}

type ChatRequest struct {
	Messages []Message           `json:"messages" binding:"required,min=1,dive"`
	Options  llmprovider.Options `json:"options"`
}

type EnhancerRequest struct {
	Message string `json:"message"`
}
