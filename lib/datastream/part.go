// Package datastream encodes and decodes the line-framed stream protocol spoken between
// the provider layer and clients. Every frame line has the form
//
//	<code>:<json value>\n
//
// where code identifies the part type. Text deltas use code 0 with a JSON string value.
package datastream

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

type Type string

const (
	Text                   Type = "text"
	Data                   Type = "data"
	Error                  Type = "error"
	MessageAnnotations     Type = "message_annotations"
	ToolCall               Type = "tool_call"
	ToolResult             Type = "tool_result"
	ToolCallStreamingStart Type = "tool_call_streaming_start"
	ToolCallDelta          Type = "tool_call_delta"
	FinishMessage          Type = "finish_message"
	FinishStep             Type = "finish_step"
	StartStep              Type = "start_step"
	Reasoning              Type = "reasoning"
)

var codes = map[string]Type{
	"0": Text,
	"2": Data,
	"3": Error,
	"8": MessageAnnotations,
	"9": ToolCall,
	"a": ToolResult,
	"b": ToolCallStreamingStart,
	"c": ToolCallDelta,
	"d": FinishMessage,
	"e": FinishStep,
	"f": StartStep,
	"g": Reasoning,
}

var typeCodes = func() map[Type]string {
	reversed := make(map[Type]string, len(codes))
	for code, partType := range codes {
		reversed[partType] = code
	}
	return reversed
}()

var ErrStreamPart = errors.New("invalid stream part")

type Part struct {
	Type  Type
	Value json.RawMessage
}

// Parse decodes a single frame line without its trailing newline
func Parse(line string) (Part, error) {
	code, value, found := strings.Cut(line, ":")
	if !found {
		return Part{}, fmt.Errorf("%w: missing separator in %q", ErrStreamPart, truncate(line))
	}

	partType, ok := codes[code]
	if !ok {
		return Part{}, fmt.Errorf("%w: unknown code %q", ErrStreamPart, code)
	}

	if !json.Valid([]byte(value)) {
		return Part{}, fmt.Errorf("%w: %s value is not valid JSON", ErrStreamPart, partType)
	}

	part := Part{Type: partType, Value: json.RawMessage(value)}
	if partType == Text || partType == Error || partType == Reasoning {
		if _, err := part.StringValue(); err != nil {
			return Part{}, err
		}
	}
	return part, nil
}

// String returns the value of parts that carry a plain string
func (p Part) StringValue() (string, error) {
	var s string
	if err := json.Unmarshal(p.Value, &s); err != nil {
		return "", fmt.Errorf("%w: %s value is not a string", ErrStreamPart, p.Type)
	}
	return s, nil
}

// Format encodes value as a frame line of the given type, including the trailing newline
func Format(partType Type, value any) ([]byte, error) {
	code, ok := typeCodes[partType]
	if !ok {
		return nil, fmt.Errorf("%w: unknown type %q", ErrStreamPart, partType)
	}
	encoded, err := json.Marshal(value)
	if err != nil {
		return nil, err
	}

	line := make([]byte, 0, len(code)+len(encoded)+2)
	line = append(line, code...)
	line = append(line, ':')
	line = append(line, encoded...)
	line = append(line, '\n')
	return line, nil
}

func truncate(line string) string {
	const limit = 64
	if len(line) > limit {
		return line[:limit] + "..."
	}
	return line
}
