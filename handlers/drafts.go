package handlers

import (
	"net/http"

	"github.com/ezkiller2517/arkzkh-app/internal/alignment"
	"github.com/ezkiller2517/arkzkh-app/internal/apperr"
	"github.com/ezkiller2517/arkzkh-app/internal/draft"
	"github.com/ezkiller2517/arkzkh-app/internal/draft/service"
	"github.com/gin-gonic/gin"
)

// DraftHandler serves the draft workflow and scoring routes.
type DraftHandler struct {
	drafts  *service.Service
	scoring *alignment.Service
}

func NewDraftHandler(d *service.Service, s *alignment.Service) *DraftHandler {
	return &DraftHandler{drafts: d, scoring: s}
}

// Register mounts the routes on an /orgs/:orgId group. limit guards the routes
// that call the external scorer.
func (h *DraftHandler) Register(org *gin.RouterGroup, limit gin.HandlerFunc) {
	org.GET("/drafts", h.List)
	org.GET("/drafts/stats", h.Stats)
	org.GET("/drafts/:id", h.Get)
	org.PUT("/drafts/:id", h.Save)
	org.POST("/drafts/:id/submit", h.Submit)
	org.POST("/drafts/:id/approve", h.Approve)
	org.POST("/drafts/:id/reject", h.Reject)
	if h.scoring != nil {
		org.POST("/drafts/:id/score", limit, h.Score)
		org.POST("/drafts/:id/suggestions", limit, h.Suggestions)
		org.POST("/score", limit, h.ScoreContent)
	}
}

func (h *DraftHandler) List(c *gin.Context) {
	var status draft.Status
	if q := c.Query("status"); q != "" {
		s, ok := draft.ParseStatus(q)
		if !ok {
			writeError(c, apperr.New(apperr.InvalidArgument, "unknown status %q", q))
			return
		}
		status = s
	}
	list, err := h.drafts.List(c.Request.Context(), principal(c), c.Param("orgId"), status)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"drafts": list})
}

func (h *DraftHandler) Stats(c *gin.Context) {
	st, err := h.drafts.Stats(c.Request.Context(), principal(c), c.Param("orgId"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, st)
}

func (h *DraftHandler) Get(c *gin.Context) {
	d, err := h.drafts.Get(c.Request.Context(), principal(c), c.Param("orgId"), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, d)
}

// Save merges the body into the draft, creating it on first save. With
// ?async=true the write is acknowledged with 202 and failures are published
// on the events bus.
func (h *DraftHandler) Save(c *gin.Context) {
	var patch draft.Patch
	if !bindJSON(c, &patch) {
		return
	}
	patch.ID = c.Param("id")
	ctx, p, org := c.Request.Context(), principal(c), c.Param("orgId")
	if async(c) {
		if err := h.drafts.SaveAsync(ctx, p, org, patch); err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusAccepted, gin.H{"id": patch.ID, "status": "accepted"})
		return
	}
	d, err := h.drafts.Save(ctx, p, org, patch)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, d)
}

func (h *DraftHandler) Submit(c *gin.Context) {
	d, err := h.drafts.Submit(c.Request.Context(), principal(c), c.Param("orgId"), c.Param("id"))
	h.respond(c, d, err)
}

func (h *DraftHandler) Approve(c *gin.Context) {
	d, err := h.drafts.Approve(c.Request.Context(), principal(c), c.Param("orgId"), c.Param("id"))
	h.respond(c, d, err)
}

func (h *DraftHandler) Reject(c *gin.Context) {
	var req struct {
		Feedback string `json:"feedback"`
	}
	if !bindJSON(c, &req) {
		return
	}
	d, err := h.drafts.Reject(c.Request.Context(), principal(c), c.Param("orgId"), c.Param("id"), req.Feedback)
	h.respond(c, d, err)
}

// Score runs the scorer against the stored draft and persists the result.
func (h *DraftHandler) Score(c *gin.Context) {
	ctx, p, org, id := c.Request.Context(), principal(c), c.Param("orgId"), c.Param("id")
	if async(c) {
		if err := h.scoring.ScoreDraftAsync(ctx, p, org, id); err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusAccepted, gin.H{"id": id, "status": "scoring"})
		return
	}
	d, err := h.scoring.ScoreDraft(ctx, p, org, id)
	h.respond(c, d, err)
}

func (h *DraftHandler) Suggestions(c *gin.Context) {
	s, err := h.scoring.Suggest(c.Request.Context(), principal(c), c.Param("orgId"), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, s)
}

// ScoreContent scores arbitrary text without touching any draft.
func (h *DraftHandler) ScoreContent(c *gin.Context) {
	var req struct {
		Content string `json:"content"`
	}
	if !bindJSON(c, &req) {
		return
	}
	r, err := h.scoring.ScoreContent(c.Request.Context(), principal(c), c.Param("orgId"), req.Content)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, r)
}

func (h *DraftHandler) respond(c *gin.Context, d *draft.Draft, err error) {
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, d)
}
