package datastream

import "io"

type Usage struct {
	PromptTokens     int `json:"promptTokens"`
	CompletionTokens int `json:"completionTokens"`
}

type startStep struct {
	MessageID string `json:"messageId"`
}

type finishStep struct {
	FinishReason string `json:"finishReason"`
	Usage        Usage  `json:"usage"`
	IsContinued  bool   `json:"isContinued"`
}

type finishMessage struct {
	FinishReason string `json:"finishReason"`
	Usage        Usage  `json:"usage"`
}

// Writer emits frame lines to an underlying stream
type Writer struct {
	w io.Writer
}

func NewWriter(w io.Writer) *Writer {
	return &Writer{w: w}
}

func (w *Writer) write(partType Type, value any) error {
	line, err := Format(partType, value)
	if err != nil {
		return err
	}
	_, err = w.w.Write(line)
	return err
}

func (w *Writer) StartStep(messageID string) error {
	return w.write(StartStep, startStep{MessageID: messageID})
}

func (w *Writer) Text(delta string) error {
	return w.write(Text, delta)
}

func (w *Writer) Error(message string) error {
	return w.write(Error, message)
}

// Finish writes the closing finish_step and finish_message parts
func (w *Writer) Finish(reason string, usage Usage) error {
	if err := w.write(FinishStep, finishStep{FinishReason: reason, Usage: usage}); err != nil {
		return err
	}
	return w.write(FinishMessage, finishMessage{FinishReason: reason, Usage: usage})
}
