package handlers

import (
	"net/http"

	"github.com/ezkiller2517/arkzkh-app/internal/models"
	"github.com/ezkiller2517/arkzkh-app/internal/users"
	"github.com/gin-gonic/gin"
)

type UserHandler struct {
	users *users.Service
}

func NewUserHandler(u *users.Service) *UserHandler {
	return &UserHandler{users: u}
}

// Register mounts the caller-scoped routes on the /api group.
func (h *UserHandler) Register(api *gin.RouterGroup) {
	api.POST("/setup", h.Setup)
	api.GET("/users/me", h.Me)
	api.PUT("/users/me/role", h.SetOwnRole)
}

// RegisterOrg mounts the admin routes on an /orgs/:orgId group.
func (h *UserHandler) RegisterOrg(org *gin.RouterGroup) {
	org.PUT("/users/:userId/role", h.SetRole)
}

func (h *UserHandler) Setup(c *gin.Context) {
	var req users.SetupRequest
	if !bindJSON(c, &req) {
		return
	}
	u, org, err := h.users.Setup(c.Request.Context(), principal(c), req)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"user": u, "organization": org})
}

func (h *UserHandler) Me(c *gin.Context) {
	u, err := h.users.Me(c.Request.Context(), principal(c))
	h.respond(c, u, err)
}

type roleRequest struct {
	Role models.Role `json:"role"`
}

func (h *UserHandler) SetOwnRole(c *gin.Context) {
	var req roleRequest
	if !bindJSON(c, &req) {
		return
	}
	u, err := h.users.SetOwnRole(c.Request.Context(), principal(c), req.Role)
	h.respond(c, u, err)
}

func (h *UserHandler) SetRole(c *gin.Context) {
	var req roleRequest
	if !bindJSON(c, &req) {
		return
	}
	u, err := h.users.SetRole(c.Request.Context(), principal(c), c.Param("orgId"), c.Param("userId"), req.Role)
	h.respond(c, u, err)
}

func (h *UserHandler) respond(c *gin.Context, u *models.User, err error) {
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, u)
}
