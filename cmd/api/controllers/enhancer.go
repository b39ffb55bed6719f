package controllers

import (
	"context"
	"errors"
	"io"
	"net/http"

	"git.ruekov.eu/ruakij/promptrelay/cmd/api/models"
	"git.ruekov.eu/ruakij/promptrelay/cmd/api/relay"
	"git.ruekov.eu/ruakij/promptrelay/lib/llmprovider"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const streamErrorText = "An error occurred."

type EnhancerStreamer interface {
	StreamText(ctx context.Context, message string) (*llmprovider.StreamResult, error)
}

type EnhancerController struct {
	enhancer EnhancerStreamer
	upgrader websocket.Upgrader
	log      *zap.Logger
}

func NewEnhancerController(enhancer EnhancerStreamer, log *zap.Logger) *EnhancerController {
	return &EnhancerController{
		enhancer: enhancer,
		upgrader: websocket.Upgrader{
			// Same policy as the CORS middleware
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		log: log,
	}
}

func (co EnhancerController) RegisterRoutes(router *gin.RouterGroup) *gin.RouterGroup {
	router = router.Group("/enhancer")

	router.POST("", co.postEnhancer)
	router.GET("/ws", co.getEnhancerSocket)

	return router
}

// start returns the decoded text stream for message
func (co EnhancerController) start(ctx context.Context, message string) (io.ReadCloser, error) {
	result, err := co.enhancer.StreamText(ctx, message)
	if err != nil {
		return nil, err
	}
	return relay.DecodeStream(result.Stream), nil
}

func (co EnhancerController) postEnhancer(c *gin.Context) {
	var request models.EnhancerRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	stream, err := co.start(c.Request.Context(), request.Message)
	if err != nil {
		co.log.Error("Starting enhancement failed", zap.Error(err))
		c.AbortWithStatus(http.StatusInternalServerError)
		return
	}
	defer stream.Close()

	c.Header("Content-Type", "text/plain; charset=utf-8")
	c.Status(http.StatusOK)
	c.Writer.WriteHeaderNow()

	if err := relay.Copy(c.Writer, stream); err != nil {
		co.log.Warn("Enhancer stream terminated", zap.Error(err))
	}
}

func (co EnhancerController) getEnhancerSocket(c *gin.Context) {
	conn, err := co.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// Upgrade already answered the request
		co.log.Debug("WebSocket upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	var request models.EnhancerRequest
	if err := conn.ReadJSON(&request); err != nil {
		co.closeSocket(conn, websocket.CloseUnsupportedData, "expected {\"message\": string}")
		return
	}

	// The request context is not cancelled for hijacked connections
	ctx, cancel := context.WithCancel(c.Request.Context())
	defer cancel()
	go func() {
		for {
			if _, _, err := conn.NextReader(); err != nil {
				cancel()
				return
			}
		}
	}()

	stream, err := co.start(ctx, request.Message)
	if err != nil {
		co.log.Error("Starting enhancement failed", zap.Error(err))
		co.closeSocket(conn, websocket.CloseInternalServerErr, streamErrorText)
		return
	}
	defer stream.Close()

	buf := make([]byte, 32*1024)
	for {
		n, err := stream.Read(buf)
		if n > 0 {
			if writeErr := conn.WriteMessage(websocket.TextMessage, buf[:n]); writeErr != nil {
				co.log.Debug("WebSocket client gone", zap.Error(writeErr))
				return
			}
		}
		if errors.Is(err, io.EOF) {
			co.closeSocket(conn, websocket.CloseNormalClosure, "")
			return
		}
		if err != nil {
			co.log.Warn("Enhancer stream terminated", zap.Error(err))
			co.closeSocket(conn, websocket.CloseInternalServerErr, streamErrorText)
			return
		}
	}
}

func (co EnhancerController) closeSocket(conn *websocket.Conn, code int, text string) {
	message := websocket.FormatCloseMessage(code, text)
	if err := conn.WriteMessage(websocket.CloseMessage, message); err != nil {
		co.log.Debug("Sending close frame failed", zap.Error(err))
	}
}
