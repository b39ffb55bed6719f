package controllers

import (
	"net/http"

	"git.ruekov.eu/ruakij/promptrelay/lib/modelselector"
	"github.com/gin-gonic/gin"
)

type ModelList struct {
	DefaultModel    string                `json:"defaultModel"`
	DefaultProvider string                `json:"defaultProvider"`
	Models          []modelselector.Model `json:"models"`
}

type ModelController struct {
	registry *modelselector.Registry
}

func NewModelController(registry *modelselector.Registry) *ModelController {
	return &ModelController{
		registry: registry,
	}
}

func (co ModelController) RegisterRoutes(router *gin.RouterGroup) *gin.RouterGroup {
	router = router.Group("/models")

	router.GET("", co.getModels)

	return router
}

func (co ModelController) getModels(c *gin.Context) {
	c.JSON(http.StatusOK, ModelList{
		DefaultModel:    co.registry.DefaultModel(),
		DefaultProvider: co.registry.DefaultProvider(),
		Models:          co.registry.Models(),
	})
}
