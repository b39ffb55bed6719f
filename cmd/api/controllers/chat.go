package controllers

import (
	"context"
	"net/http"

	"git.ruekov.eu/ruakij/promptrelay/cmd/api/models"
	"git.ruekov.eu/ruakij/promptrelay/cmd/api/relay"
	"git.ruekov.eu/ruakij/promptrelay/lib/llmprovider"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type ChatStreamer interface {
	StreamText(ctx context.Context, messages []models.Message, overrides llmprovider.Options) (*llmprovider.StreamResult, error)
}

type ChatController struct {
	chat ChatStreamer
	log  *zap.Logger
}

func NewChatController(chat ChatStreamer, log *zap.Logger) *ChatController {
	return &ChatController{
		chat: chat,
		log:  log,
	}
}

func (co ChatController) RegisterRoutes(router *gin.RouterGroup) *gin.RouterGroup {
	router.POST("/chat", co.postChat)

	return router
}

func (co ChatController) postChat(c *gin.Context) {
	var request models.ChatRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	result, err := co.chat.StreamText(c.Request.Context(), request.Messages, request.Options)
	if err != nil {
		co.log.Error("Starting chat completion failed", zap.Error(err))
		c.AbortWithStatus(http.StatusInternalServerError)
		return
	}

	co.log.Debug("Relaying chat stream",
		zap.String("messageId", result.MessageID),
		zap.String("model", result.Model),
		zap.String("provider", result.Provider),
	)
	if err := relay.PassThrough(c.Writer, result); err != nil {
		co.log.Warn("Chat stream interrupted", zap.String("messageId", result.MessageID), zap.Error(err))
	}
}
