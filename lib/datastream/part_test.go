package datastream

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	tests := []struct {
		line     string
		partType Type
		value    string
	}{
		{`0:"Hello"`, Text, `"Hello"`},
		{`0:"line\nbreak"`, Text, `"line\nbreak"`},
		{`3:"boom"`, Error, `"boom"`},
		{`e:{"finishReason":"stop","usage":{"promptTokens":1,"completionTokens":2},"isContinued":false}`, FinishStep, `{"finishReason":"stop","usage":{"promptTokens":1,"completionTokens":2},"isContinued":false}`},
		{`f:{"messageId":"abc"}`, StartStep, `{"messageId":"abc"}`},
		{`2:[{"a":1}]`, Data, `[{"a":1}]`},
		// Only the first colon separates code and value
		{`0:"a:b"`, Text, `"a:b"`},
	}

	for _, tc := range tests {
		t.Run(tc.line, func(t *testing.T) {
			part, err := Parse(tc.line)
			require.NoError(t, err)
			assert.Equal(t, tc.partType, part.Type)
			assert.JSONEq(t, tc.value, string(part.Value))
		})
	}
}

func TestParseInvalid(t *testing.T) {
	for _, line := range []string{
		"no separator",
		`z:"unknown code"`,
		`0:not json`,
		`0:{"text":"not a string"}`,
		`3:42`,
		":",
	} {
		t.Run(line, func(t *testing.T) {
			_, err := Parse(line)
			assert.ErrorIs(t, err, ErrStreamPart)
		})
	}
}

func TestStringValue(t *testing.T) {
	part, err := Parse(`0:"café"`)
	require.NoError(t, err)

	text, err := part.StringValue()
	require.NoError(t, err)
	assert.Equal(t, "café", text)
}

func TestFormatRoundTrip(t *testing.T) {
	line, err := Format(Text, "multi\nline \"quoted\"")
	require.NoError(t, err)
	require.True(t, bytes.HasSuffix(line, []byte("\n")))
	// Newlines inside values are escaped so a frame is always one line
	assert.Equal(t, 1, bytes.Count(line, []byte("\n")))

	part, err := Parse(strings.TrimSuffix(string(line), "\n"))
	require.NoError(t, err)
	text, err := part.StringValue()
	require.NoError(t, err)
	assert.Equal(t, "multi\nline \"quoted\"", text)

	_, err = Format(Type("bogus"), "x")
	assert.ErrorIs(t, err, ErrStreamPart)
}

func TestWriter(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf)

	require.NoError(t, w.StartStep("msg-1"))
	require.NoError(t, w.Text("Hel"))
	require.NoError(t, w.Text("lo"))
	require.NoError(t, w.Finish("stop", Usage{PromptTokens: 3, CompletionTokens: 2}))

	lines := strings.Split(strings.TrimSuffix(buf.String(), "\n"), "\n")
	require.Len(t, lines, 5)
	assert.Equal(t, `f:{"messageId":"msg-1"}`, lines[0])
	assert.Equal(t, `0:"Hel"`, lines[1])
	assert.Equal(t, `0:"lo"`, lines[2])
	assert.Equal(t, `e:{"finishReason":"stop","usage":{"promptTokens":3,"completionTokens":2},"isContinued":false}`, lines[3])
	assert.Equal(t, `d:{"finishReason":"stop","usage":{"promptTokens":3,"completionTokens":2}}`, lines[4])
}
