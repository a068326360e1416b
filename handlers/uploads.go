package handlers

import (
	"net/http"

	"github.com/ezkiller2517/arkzkh-app/internal/draft/service"
	"github.com/ezkiller2517/arkzkh-app/internal/upload"
	"github.com/gin-gonic/gin"
)

// UploadHandler issues write authorizations and registers finished transfers.
type UploadHandler struct {
	issuer    *upload.Issuer
	registrar *upload.Registrar
	drafts    *service.Service
}

func NewUploadHandler(i *upload.Issuer, r *upload.Registrar, d *service.Service) *UploadHandler {
	return &UploadHandler{issuer: i, registrar: r, drafts: d}
}

func (h *UploadHandler) Register(org *gin.RouterGroup, limit gin.HandlerFunc) {
	org.POST("/uploads/signed-url", limit, h.SignedURL)
	org.POST("/drafts/:id/attachments", h.AddAttachment)
	org.DELETE("/drafts/:id/attachments", h.RemoveAttachment)
	org.GET("/drafts/:id/attachments/download", h.Download)
}

func (h *UploadHandler) SignedURL(c *gin.Context) {
	var req upload.Request
	if !bindJSON(c, &req) {
		return
	}
	req.OrgID = c.Param("orgId")
	signed, err := h.issuer.Issue(c.Request.Context(), principal(c), req)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, signed)
}

func (h *UploadHandler) AddAttachment(c *gin.Context) {
	var reg upload.Registration
	if !bindJSON(c, &reg) {
		return
	}
	d, err := h.registrar.Register(c.Request.Context(), principal(c), c.Param("orgId"), c.Param("id"), reg)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, d)
}

func (h *UploadHandler) RemoveAttachment(c *gin.Context) {
	d, err := h.drafts.RemoveAttachment(c.Request.Context(), principal(c), c.Param("orgId"), c.Param("id"), c.Query("url"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, d)
}

// Download redirects to a short-lived read URL for one attachment.
func (h *UploadHandler) Download(c *gin.Context) {
	u, err := h.registrar.ReadURL(c.Request.Context(), principal(c), c.Param("orgId"), c.Param("id"), c.Query("objectPath"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.Redirect(http.StatusFound, u)
}
