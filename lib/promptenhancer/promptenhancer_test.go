package promptenhancer

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"unicode/utf8"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

// chunkReader returns one chunk per Read and err after the last one
type chunkReader struct {
	chunks [][]byte
	err    error
}

func (r *chunkReader) Read(p []byte) (int, error) {
	if len(r.chunks) == 0 {
		if r.err != nil {
			return 0, r.err
		}
		return 0, io.EOF
	}
	n := copy(p, r.chunks[0])
	r.chunks[0] = r.chunks[0][n:]
	if len(r.chunks[0]) == 0 {
		r.chunks = r.chunks[1:]
	}
	return n, nil
}

func (r *chunkReader) Close() error { return nil }

// recorder collects setInput calls
type recorder struct {
	mutex  sync.Mutex
	values []string
}

func (r *recorder) set(value string) {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	r.values = append(r.values, value)
}

func (r *recorder) all() []string {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	return append([]string(nil), r.values...)
}

type stubStreamer struct {
	stream   io.ReadCloser
	err      error
	messages []string
}

func (s *stubStreamer) Stream(ctx context.Context, message string) (io.ReadCloser, error) {
	s.messages = append(s.messages, message)
	return s.stream, s.err
}

func TestConsumeCarriesSplitRunes(t *testing.T) {
	text := "Grüße 😀!"
	data := []byte(text)
	// Cut inside "ü" and inside the emoji
	reader := &chunkReader{chunks: [][]byte{data[:3], data[3:9], data[9:11], data[11:]}}

	var updates []string
	result, err := Consume(context.Background(), reader, func(text string) {
		updates = append(updates, text)
	})
	require.NoError(t, err)
	assert.Equal(t, text, result)

	require.NotEmpty(t, updates)
	for _, update := range updates {
		assert.True(t, utf8.ValidString(update), update)
		assert.NotContains(t, update, "�")
		assert.True(t, strings.HasPrefix(text, update), update)
	}
	assert.Equal(t, text, updates[len(updates)-1])
}

func TestConsumeReturnsPartialTextOnError(t *testing.T) {
	failure := errors.New("connection reset")
	reader := &chunkReader{chunks: [][]byte{[]byte("part"), []byte("ial")}, err: failure}

	text, err := Consume(context.Background(), reader, nil)
	assert.ErrorIs(t, err, failure)
	assert.Equal(t, "partial", text)
}

func TestConsumeStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Consume(ctx, strings.NewReader("never read"), nil)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestEnhanceOverHTTP(t *testing.T) {
	received := make(chan string, 1)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/enhancer", r.URL.Path)
		var request enhancerRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&request))
		received <- request.Message

		for _, chunk := range []string{"Build ", "a todo ", "app"} {
			io.WriteString(w, chunk)
			w.(http.Flusher).Flush()
		}
	}))
	defer server.Close()

	enhancer := NewEnhancer(NewHTTPStreamer(server.URL+"/", 0), WithLogger(zaptest.NewLogger(t)))
	inputs := &recorder{}

	require.NoError(t, enhancer.Enhance(context.Background(), "todo", inputs.set))
	assert.False(t, enhancer.EnhancingPrompt())
	assert.True(t, enhancer.PromptEnhanced())

	enhancer.Wait()
	values := inputs.all()
	require.GreaterOrEqual(t, len(values), 3)
	assert.Equal(t, "", values[0])
	assert.Equal(t, "Build a todo app", values[len(values)-2])
	assert.Equal(t, "Build a todo app", values[len(values)-1])
	assert.Equal(t, "todo", <-received)
}

func TestEnhanceRollsBackOnStreamError(t *testing.T) {
	streamer := &stubStreamer{stream: &chunkReader{
		chunks: [][]byte{[]byte("partial")},
		err:    errors.New("stream broke"),
	}}
	enhancer := NewEnhancer(streamer, WithLogger(zaptest.NewLogger(t)))
	inputs := &recorder{}

	err := enhancer.Enhance(context.Background(), "original", inputs.set)
	assert.EqualError(t, err, "stream broke")
	assert.False(t, enhancer.EnhancingPrompt())
	assert.True(t, enhancer.PromptEnhanced())

	enhancer.Wait()
	assert.Equal(t, []string{"", "partial", "original", "original"}, inputs.all())
}

func TestEnhanceRejectedRequest(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	enhancer := NewEnhancer(NewHTTPStreamer(server.URL, 0))
	inputs := &recorder{}

	err := enhancer.Enhance(context.Background(), "original", inputs.set)
	assert.ErrorContains(t, err, "500")

	enhancer.Wait()
	assert.Equal(t, []string{"original", "original"}, inputs.all())
	assert.True(t, enhancer.PromptEnhanced())

	enhancer.Reset()
	assert.False(t, enhancer.PromptEnhanced())
	assert.False(t, enhancer.EnhancingPrompt())
}

type staticContext map[string]string

func (c staticContext) Render(ctx context.Context, key string) (string, error) {
	if value, ok := c[key]; ok {
		return value, nil
	}
	return "null", nil
}

func TestEnhanceAppendsContext(t *testing.T) {
	streamer := &stubStreamer{stream: &chunkReader{chunks: [][]byte{[]byte("better")}}}
	enhancer := NewEnhancer(streamer, WithContext(staticContext{"client": `{"theme": "dark"}`}, "client"))

	require.NoError(t, enhancer.Enhance(context.Background(), "idea", func(string) {}))
	enhancer.Wait()

	require.Len(t, streamer.messages, 1)
	assert.Equal(t, "idea\n\nContext:\n{\"theme\": \"dark\"}", streamer.messages[0])
}

func TestEnhanceOverWebSocket(t *testing.T) {
	upgrader := websocket.Upgrader{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/enhancer/ws", r.URL.Path)
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		var request enhancerRequest
		if err := conn.ReadJSON(&request); err != nil {
			return
		}
		for _, chunk := range []string{"Improved: ", request.Message} {
			conn.WriteMessage(websocket.TextMessage, []byte(chunk))
		}
		conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	}))
	defer server.Close()

	enhancer := NewEnhancer(NewWSStreamer(server.URL, 0))
	inputs := &recorder{}

	require.NoError(t, enhancer.Enhance(context.Background(), "todo", inputs.set))
	enhancer.Wait()

	values := inputs.all()
	assert.Equal(t, "Improved: todo", values[len(values)-1])
}
