package llmprovider

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"git.ruekov.eu/ruakij/promptrelay/lib/datastream"
	"git.ruekov.eu/ruakij/promptrelay/lib/httpmisc"
	"go.uber.org/zap"
	"storj.io/common/uuid"
)

// Sent to clients in place of the real error, which is only logged
const genericStreamError = "An error occurred."

// ProviderError is returned when the provider rejects a request before streaming starts
type ProviderError struct {
	Provider   string
	StatusCode int
	Body       string
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("provider %s returned status %d: %s", e.Provider, e.StatusCode, e.Body)
}

// OpenAICompatible talks to any endpoint implementing the OpenAI chat completions API
type OpenAICompatible struct {
	name    string
	baseURL string
	session *httpmisc.HttpClientSession
	log     *zap.Logger
}

func NewOpenAICompatible(name, baseURL, apiKey string, log *zap.Logger) *OpenAICompatible {
	headers := map[string]string{
		"Accept": "text/event-stream",
	}
	if apiKey != "" {
		headers["Authorization"] = "Bearer " + apiKey
	}
	return &OpenAICompatible{
		name:    name,
		baseURL: strings.TrimRight(baseURL, "/"),
		session: httpmisc.NewHttpClientSession(headers, 0),
		log:     log.With(zap.String("provider", name)),
	}
}

type chatCompletionRequest struct {
	Model            string         `json:"model"`
	Messages         []Message      `json:"messages"`
	Stream           bool           `json:"stream"`
	StreamOptions    *streamOptions `json:"stream_options,omitempty"`
	MaxTokens        *int           `json:"max_tokens,omitempty"`
	Temperature      *float64       `json:"temperature,omitempty"`
	TopP             *float64       `json:"top_p,omitempty"`
	FrequencyPenalty *float64       `json:"frequency_penalty,omitempty"`
	PresencePenalty  *float64       `json:"presence_penalty,omitempty"`
	Stop             []string       `json:"stop,omitempty"`
	Seed             *int           `json:"seed,omitempty"`
}

type streamOptions struct {
	IncludeUsage bool `json:"include_usage"`
}

type chatCompletionChunk struct {
	Choices []struct {
		Delta struct {
			Content string `json:"content"`
		} `json:"delta"`
		FinishReason *string `json:"finish_reason"`
	} `json:"choices"`
	Usage *struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
	} `json:"usage"`
}

func (p *OpenAICompatible) buildRequest(request *Request) chatCompletionRequest {
	messages := make([]Message, 0, len(request.Messages)+1)
	if request.System != nil && *request.System != "" {
		messages = append(messages, Message{Role: "system", Content: *request.System})
	}
	messages = append(messages, request.Messages...)

	return chatCompletionRequest{
		Model:            request.Model,
		Messages:         messages,
		Stream:           true,
		StreamOptions:    &streamOptions{IncludeUsage: true},
		MaxTokens:        request.MaxTokens,
		Temperature:      request.Temperature,
		TopP:             request.TopP,
		FrequencyPenalty: request.FrequencyPenalty,
		PresencePenalty:  request.PresencePenalty,
		Stop:             request.StopSequences,
		Seed:             request.Seed,
	}
}

func (p *OpenAICompatible) StreamText(ctx context.Context, request *Request) (*StreamResult, error) {
	messageID, err := uuid.New()
	if err != nil {
		return nil, err
	}

	resp, err := p.session.PostJSON(ctx, p.baseURL+"/chat/completions", p.buildRequest(request))
	if err != nil {
		return nil, fmt.Errorf("calling %s: %w", p.name, err)
	}
	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, &ProviderError{Provider: p.name, StatusCode: resp.StatusCode, Body: string(body)}
	}

	reader, writer := io.Pipe()
	go p.translate(resp.Body, writer, messageID.String())

	return &StreamResult{
		MessageID: messageID.String(),
		Model:     request.Model,
		Provider:  p.name,
		Stream:    reader,
	}, nil
}

// translate turns the SSE body into datastream frames. It stops as soon as the reader side is closed.
func (p *OpenAICompatible) translate(body io.ReadCloser, pipe *io.PipeWriter, messageID string) {
	defer body.Close()

	err := p.copyFrames(bufio.NewReader(body), datastream.NewWriter(pipe), messageID)
	switch {
	case err == nil:
	case errors.Is(err, io.ErrClosedPipe), errors.Is(err, context.Canceled):
		p.log.Debug("Stream abandoned by consumer", zap.String("messageId", messageID))
	default:
		p.log.Error("Stream failed", zap.String("messageId", messageID), zap.Error(err))
		if writeErr := datastream.NewWriter(pipe).Error(genericStreamError); writeErr != nil {
			p.log.Debug("Writing error frame failed", zap.String("messageId", messageID), zap.Error(writeErr))
			pipe.CloseWithError(err)
			return
		}
	}
	pipe.Close()
}

func (p *OpenAICompatible) copyFrames(reader *bufio.Reader, frames *datastream.Writer, messageID string) error {
	if err := frames.StartStep(messageID); err != nil {
		return err
	}

	finishReason := "unknown"
	var usage datastream.Usage

	for {
		data, err := readEvent(reader)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return err
		}
		if bytes.Equal(data, []byte("[DONE]")) {
			break
		}

		var chunk chatCompletionChunk
		if err := json.Unmarshal(data, &chunk); err != nil {
			return fmt.Errorf("decoding chunk: %w", err)
		}

		for _, choice := range chunk.Choices {
			if choice.Delta.Content != "" {
				if err := frames.Text(choice.Delta.Content); err != nil {
					return err
				}
			}
			if choice.FinishReason != nil && *choice.FinishReason != "" {
				finishReason = *choice.FinishReason
			}
		}
		if chunk.Usage != nil {
			usage = datastream.Usage{
				PromptTokens:     chunk.Usage.PromptTokens,
				CompletionTokens: chunk.Usage.CompletionTokens,
			}
		}
	}

	return frames.Finish(finishReason, usage)
}

// readEvent returns the data of the next server-sent event, joining multi-line data fields
func readEvent(reader *bufio.Reader) ([]byte, error) {
	var dataLines [][]byte

	for {
		line, err := reader.ReadBytes('\n')
		if len(line) > 0 {
			line = bytes.TrimRight(line, "\r\n")
			if len(line) == 0 {
				if len(dataLines) > 0 {
					return bytes.Join(dataLines, []byte("\n")), nil
				}
			} else if bytes.HasPrefix(line, []byte("data:")) {
				dataLines = append(dataLines, bytes.TrimSpace(line[5:]))
			}
			// Other fields (event:, id:, retry:, comments) carry nothing we use
		}

		if err != nil {
			if errors.Is(err, io.EOF) && len(dataLines) > 0 {
				return bytes.Join(dataLines, []byte("\n")), nil
			}
			return nil, err
		}
	}
}
