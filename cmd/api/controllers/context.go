package controllers

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"git.ruekov.eu/ruakij/promptrelay/cmd/api/service"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type ContextLookup interface {
	Get(ctx context.Context, key string) (json.RawMessage, bool, error)
	Stats() service.ContextStats
}

type ContextController struct {
	contexts ContextLookup
	log      *zap.Logger
}

func NewContextController(contexts ContextLookup, log *zap.Logger) *ContextController {
	return &ContextController{
		contexts: contexts,
		log:      log,
	}
}

func (co ContextController) RegisterRoutes(router *gin.RouterGroup) *gin.RouterGroup {
	router = router.Group("/context")

	router.GET("/stats", co.getStats)
	router.GET("/entries/*key", co.getEntry)

	return router
}

type ContextKey struct {
	Key string `uri:"key" binding:"required"`
}

func (co ContextController) getEntry(c *gin.Context) {
	var uri ContextKey
	if err := c.ShouldBindUri(&uri); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	key := strings.TrimPrefix(uri.Key, "/")
	if key == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "context key is empty"})
		return
	}

	payload, found, err := co.contexts.Get(c.Request.Context(), key)
	if err != nil {
		co.log.Error("Context lookup failed", zap.String("key", key), zap.Error(err))
		c.AbortWithStatus(http.StatusInternalServerError)
		return
	}
	if !found {
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "no context for key"})
		return
	}

	c.Data(http.StatusOK, "application/json; charset=utf-8", payload)
}

func (co ContextController) getStats(c *gin.Context) {
	c.JSON(http.StatusOK, co.contexts.Stats())
}
