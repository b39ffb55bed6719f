// Package promptenhancer is the client side of the enhancer endpoint: it streams an improved
// prompt into an input field and rolls back to the original text when the stream fails.
package promptenhancer

import (
	"context"
	"errors"
	"io"
	"strings"

	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

const readSize = 4096

// Consume reads the plain text stream r and calls onUpdate with the text received so far after every chunk.
// Runes split across chunks are held back until complete.
func Consume(ctx context.Context, r io.Reader, onUpdate func(text string)) (string, error) {
	decoded := transform.NewReader(r, unicode.UTF8.NewDecoder())

	var text strings.Builder
	buf := make([]byte, readSize)
	for {
		if err := ctx.Err(); err != nil {
			return text.String(), err
		}

		n, err := decoded.Read(buf)
		if n > 0 {
			text.Write(buf[:n])
			if onUpdate != nil {
				onUpdate(text.String())
			}
		}
		if errors.Is(err, io.EOF) {
			return text.String(), nil
		}
		if err != nil {
			return text.String(), err
		}
	}
}
