package relay

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"git.ruekov.eu/ruakij/promptrelay/lib/datastream"
)

// ErrProviderStream is returned when the provider reports an error inside the stream
var ErrProviderStream = errors.New("provider stream error")

// DefaultMaxLineSize bounds an unterminated frame line held by a Decoder
const DefaultMaxLineSize = 1 << 20

// Decoder turns framed chunks into plain text. A line split across chunks is kept until its newline arrives.
type Decoder struct {
	// Zero means DefaultMaxLineSize
	MaxLineSize int

	pending []byte
}

// Decode returns the concatenated text parts of every line completed by chunk.
// A fragment growing past MaxLineSize without a newline is an error.
func (d *Decoder) Decode(chunk []byte) (string, error) {
	d.pending = append(d.pending, chunk...)

	var text string
	if end := bytes.LastIndexByte(d.pending, '\n'); end >= 0 {
		var err error
		text, err = decodeLines(d.pending[:end])
		rest := len(d.pending) - end - 1
		copy(d.pending, d.pending[end+1:])
		d.pending = d.pending[:rest]
		if err != nil {
			return text, err
		}
	}

	if limit := d.maxLineSize(); len(d.pending) > limit {
		d.pending = nil
		return text, fmt.Errorf("%w: frame line exceeds %d bytes", datastream.ErrStreamPart, limit)
	}
	return text, nil
}

func (d *Decoder) maxLineSize() int {
	if d.MaxLineSize > 0 {
		return d.MaxLineSize
	}
	return DefaultMaxLineSize
}

// Flush decodes the trailing fragment left without a newline
func (d *Decoder) Flush() (string, error) {
	text, err := decodeLines(d.pending)
	d.pending = d.pending[:0]
	return text, err
}

func decodeLines(data []byte) (string, error) {
	var text strings.Builder
	for _, line := range bytes.Split(data, []byte("\n")) {
		line = bytes.TrimSuffix(line, []byte("\r"))
		if len(line) == 0 {
			continue
		}

		part, err := datastream.Parse(string(line))
		if err != nil {
			return text.String(), err
		}

		switch part.Type {
		case datastream.Text:
			value, _ := part.StringValue()
			text.WriteString(value)
		case datastream.Error:
			message, _ := part.StringValue()
			return text.String(), fmt.Errorf("%w: %s", ErrProviderStream, message)
		}
		// Everything else is framing the client does not need
	}
	return text.String(), nil
}

type decodedStream struct {
	*io.PipeReader
	source io.Closer
}

// Close stops the decoding goroutine and releases the provider stream
func (s *decodedStream) Close() error {
	s.PipeReader.Close()
	return s.source.Close()
}

type onceCloser struct {
	io.ReadCloser
	once sync.Once
	err  error
}

func (c *onceCloser) Close() error {
	c.once.Do(func() {
		c.err = c.ReadCloser.Close()
	})
	return c.err
}

// DecodeStream returns the plain text carried by the framed stream src.
// Errors reported by the provider end the returned stream with that error.
func DecodeStream(src io.ReadCloser) io.ReadCloser {
	source := &onceCloser{ReadCloser: src}
	reader, writer := io.Pipe()

	go func() {
		defer source.Close()
		writer.CloseWithError(decode(source, writer))
	}()

	return &decodedStream{PipeReader: reader, source: source}
}

func decode(src io.Reader, dst io.Writer) error {
	var decoder Decoder
	buf := make([]byte, bufferSize)

	for {
		n, err := src.Read(buf)
		if n > 0 {
			text, decodeErr := decoder.Decode(buf[:n])
			if writeErr := writeText(dst, text); writeErr != nil {
				return writeErr
			}
			if decodeErr != nil {
				return decodeErr
			}
		}
		if errors.Is(err, io.EOF) {
			text, decodeErr := decoder.Flush()
			if writeErr := writeText(dst, text); writeErr != nil {
				return writeErr
			}
			return decodeErr
		}
		if err != nil {
			return err
		}
	}
}

func writeText(dst io.Writer, text string) error {
	if text == "" {
		return nil
	}
	_, err := io.WriteString(dst, text)
	return err
}
