package httpmisc

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

// HttpClientSession embeds http.Client and applies default headers to every request
type HttpClientSession struct {
	http.Client
	DefaultHeaders map[string]string
	DefaultTimeout time.Duration
}

// Creates a new session with the given default values.
// A zero timeout means no overall timeout, which is what long-running streams need.
func NewHttpClientSession(headers map[string]string, timeout time.Duration) *HttpClientSession {
	if headers == nil {
		headers = map[string]string{}
	}
	return &HttpClientSession{
		Client: http.Client{
			Timeout: timeout,
		},
		DefaultHeaders: headers,
		DefaultTimeout: timeout,
	}
}

// NewRequest creates a new request in the context of an HttpClientSession with default Settings
func (c *HttpClientSession) NewRequest(ctx context.Context, method, url string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return nil, err
	}

	for key, value := range c.DefaultHeaders {
		req.Header.Set(key, value)
	}

	return req, nil
}

// PostJSON encodes payload and posts it. Callers own the response body.
func (c *HttpClientSession) PostJSON(ctx context.Context, url string, payload any) (*http.Response, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encoding request: %w", err)
	}

	req, err := c.NewRequest(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	return c.Client.Do(req)
}

func (c *HttpClientSession) WSConnect(ctx context.Context, url string, header http.Header) (conn *websocket.Conn, err error) {
	if header == nil {
		header = http.Header{}
	}

	for key, value := range c.DefaultHeaders {
		header.Set(key, value)
	}

	dialer := *websocket.DefaultDialer
	if c.DefaultTimeout > 0 {
		dialer.HandshakeTimeout = c.DefaultTimeout
	}

	conn, resp, err := dialer.DialContext(ctx, url, header)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	return
}
