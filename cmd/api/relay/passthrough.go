// Package relay moves provider streams to HTTP clients, either untouched or decoded to plain text.
package relay

import (
	"errors"
	"io"
	"net/http"

	"git.ruekov.eu/ruakij/promptrelay/lib/llmprovider"
)

const bufferSize = 32 * 1024

// SetHeaders attaches the provider call metadata to a pass-through response
func SetHeaders(header http.Header, result *llmprovider.StreamResult) {
	header.Set("Content-Type", "text/plain; charset=utf-8")
	header.Set("X-Vercel-AI-Data-Stream", "v1")
	header.Set("X-Model", result.Model)
	header.Set("X-Provider", result.Provider)
	header.Set("X-Message-Id", result.MessageID)
}

// PassThrough writes the framed provider stream to w as it arrives and closes the stream afterwards
func PassThrough(w http.ResponseWriter, result *llmprovider.StreamResult) error {
	defer result.Stream.Close()

	SetHeaders(w.Header(), result)
	w.WriteHeader(http.StatusOK)

	return Copy(w, result.Stream)
}

// Copy streams src to w, flushing after every chunk when w supports it
func Copy(w io.Writer, src io.Reader) error {
	flusher, _ := w.(http.Flusher)
	buf := make([]byte, bufferSize)

	for {
		n, err := src.Read(buf)
		if n > 0 {
			if _, writeErr := w.Write(buf[:n]); writeErr != nil {
				return writeErr
			}
			if flusher != nil {
				flusher.Flush()
			}
		}
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}
	}
}
