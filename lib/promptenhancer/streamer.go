package promptenhancer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"git.ruekov.eu/ruakij/promptrelay/lib/httpmisc"
	"github.com/gorilla/websocket"
)

// Streamer opens the enhanced text stream for message
type Streamer interface {
	Stream(ctx context.Context, message string) (io.ReadCloser, error)
}

type enhancerRequest struct {
	Message string `json:"message"`
}

// HTTPStreamer posts to the enhancer endpoint and streams the response body
type HTTPStreamer struct {
	session *httpmisc.HttpClientSession
	url     string
}

// NewHTTPStreamer targets baseURL + /api/enhancer. timeout bounds the whole exchange, zero disables it.
func NewHTTPStreamer(baseURL string, timeout time.Duration) *HTTPStreamer {
	return &HTTPStreamer{
		session: httpmisc.NewHttpClientSession(nil, timeout),
		url:     strings.TrimSuffix(baseURL, "/") + "/api/enhancer",
	}
}

func (s *HTTPStreamer) Stream(ctx context.Context, message string) (io.ReadCloser, error) {
	resp, err := s.session.PostJSON(ctx, s.url, enhancerRequest{Message: message})
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("enhancer responded with %s", resp.Status)
	}
	return resp.Body, nil
}

// WSStreamer uses the WebSocket variant of the enhancer endpoint
type WSStreamer struct {
	session *httpmisc.HttpClientSession
	url     string
}

// NewWSStreamer targets baseURL + /api/enhancer/ws. An http(s) scheme is switched to ws(s).
func NewWSStreamer(baseURL string, handshakeTimeout time.Duration) *WSStreamer {
	url := strings.TrimSuffix(baseURL, "/") + "/api/enhancer/ws"
	switch {
	case strings.HasPrefix(url, "http://"):
		url = "ws://" + strings.TrimPrefix(url, "http://")
	case strings.HasPrefix(url, "https://"):
		url = "wss://" + strings.TrimPrefix(url, "https://")
	}

	return &WSStreamer{
		session: httpmisc.NewHttpClientSession(nil, handshakeTimeout),
		url:     url,
	}
}

func (s *WSStreamer) Stream(ctx context.Context, message string) (io.ReadCloser, error) {
	conn, err := s.session.WSConnect(ctx, s.url, nil)
	if err != nil {
		return nil, err
	}
	if err := conn.WriteJSON(enhancerRequest{Message: message}); err != nil {
		conn.Close()
		return nil, err
	}

	reader, writer := io.Pipe()
	go func() {
		defer conn.Close()
		for {
			_, data, err := conn.ReadMessage()
			if websocket.IsCloseError(err, websocket.CloseNormalClosure) {
				writer.Close()
				return
			}
			if err != nil {
				writer.CloseWithError(err)
				return
			}
			if _, err := writer.Write(data); err != nil {
				return
			}
		}
	}()

	return &socketStream{PipeReader: reader, conn: conn}, nil
}

type socketStream struct {
	*io.PipeReader
	conn *websocket.Conn
}

func (s *socketStream) Close() error {
	s.PipeReader.Close()
	if err := s.conn.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
		return err
	}
	return nil
}
