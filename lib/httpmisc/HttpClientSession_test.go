package httpmisc

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPostJSONAppliesDefaults(t *testing.T) {
	requests := make(chan *http.Request, 1)
	bodies := make(chan map[string]any, 1)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		json.NewDecoder(r.Body).Decode(&body)
		requests <- r
		bodies <- body
		w.WriteHeader(http.StatusAccepted)
	}))
	defer server.Close()

	session := NewHttpClientSession(map[string]string{"Authorization": "Bearer k"}, 0)
	resp, err := session.PostJSON(context.Background(), server.URL, map[string]string{"message": "hi"})
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusAccepted, resp.StatusCode)
	req := <-requests
	assert.Equal(t, "Bearer k", req.Header.Get("Authorization"))
	assert.Equal(t, "application/json", req.Header.Get("Content-Type"))
	assert.Equal(t, "hi", (<-bodies)["message"])
}

func TestNewRequestHonoursContext(t *testing.T) {
	session := NewHttpClientSession(nil, 0)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	req, err := session.NewRequest(ctx, http.MethodGet, "http://127.0.0.1:1", nil)
	require.NoError(t, err)

	_, err = session.Client.Do(req)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestWSConnect(t *testing.T) {
	upgrader := websocket.Upgrader{}
	headers := make(chan string, 1)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		headers <- r.Header.Get("X-Test")
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		conn.WriteMessage(websocket.TextMessage, []byte("hello"))
	}))
	defer server.Close()

	session := NewHttpClientSession(map[string]string{"X-Test": "yes"}, 0)
	conn, err := session.WSConnect(context.Background(), "ws"+strings.TrimPrefix(server.URL, "http"), nil)
	require.NoError(t, err)
	defer conn.Close()

	_, data, err := conn.ReadMessage()
	require.NoError(t, err)
	assert.Equal(t, "hello", string(data))
	assert.Equal(t, "yes", <-headers)
}
