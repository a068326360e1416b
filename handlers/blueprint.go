package handlers

import (
	"net/http"

	"github.com/ezkiller2517/arkzkh-app/internal/ai"
	"github.com/ezkiller2517/arkzkh-app/internal/blueprint"
	"github.com/ezkiller2517/arkzkh-app/internal/models"
	"github.com/gin-gonic/gin"
)

type BlueprintHandler struct {
	blueprints *blueprint.Service
}

func NewBlueprintHandler(b *blueprint.Service) *BlueprintHandler {
	return &BlueprintHandler{blueprints: b}
}

func (h *BlueprintHandler) Register(org *gin.RouterGroup) {
	org.GET("/blueprint", h.Get)
	org.PUT("/blueprint", h.Update)
	org.POST("/blueprint/extract", h.Extract)
}

func (h *BlueprintHandler) Get(c *gin.Context) {
	b, err := h.blueprints.Get(c.Request.Context(), principal(c), c.Param("orgId"))
	h.respond(c, b, err)
}

func (h *BlueprintHandler) Update(c *gin.Context) {
	var patch models.BlueprintPatch
	if !bindJSON(c, &patch) {
		return
	}
	b, err := h.blueprints.Update(c.Request.Context(), principal(c), c.Param("orgId"), patch)
	h.respond(c, b, err)
}

// Extract derives blueprint fields from a strategy document and merges them.
func (h *BlueprintHandler) Extract(c *gin.Context) {
	var req struct {
		Document ai.Document `json:"document"`
	}
	if !bindJSON(c, &req) {
		return
	}
	b, err := h.blueprints.Extract(c.Request.Context(), principal(c), c.Param("orgId"), req.Document)
	h.respond(c, b, err)
}

func (h *BlueprintHandler) respond(c *gin.Context, b *models.Blueprint, err error) {
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, b)
}
