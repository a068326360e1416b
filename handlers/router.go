package handlers

import (
	"net/http"

	"github.com/ezkiller2517/arkzkh-app/internal/storage"
	"github.com/ezkiller2517/arkzkh-app/pkg/middleware"
	"github.com/gin-gonic/gin"
)

// Deps are the services the HTTP surface is assembled from. Optional fields
// may be nil.
type Deps struct {
	Verifier middleware.Verifier
	Revoked  middleware.RevocationChecker
	Users    UserLookup

	Auth      *AuthHandler
	UsersAPI  *UserHandler
	Drafts    *DraftHandler
	Uploads   *UploadHandler
	Blueprint *BlueprintHandler

	// ScoreLimit and UploadLimit guard the scorer and signed-URL routes.
	ScoreLimit  gin.HandlerFunc
	UploadLimit gin.HandlerFunc
	// ObjectStore is mounted under storage.MemoryPathPrefix for the in-memory backend.
	ObjectStore http.Handler
}

func passThrough(c *gin.Context) { c.Next() }

// NewRouter builds the gin engine with every API route registered.
func NewRouter(d Deps) *gin.Engine {
	r := gin.New()
	r.Use(gin.Logger(), gin.Recovery(), cors)

	if d.ScoreLimit == nil {
		d.ScoreLimit = passThrough
	}
	if d.UploadLimit == nil {
		d.UploadLimit = passThrough
	}

	RegisterSwagger(r)
	if d.Auth != nil {
		d.Auth.Register(r.Group("/"))
	}
	if d.ObjectStore != nil {
		h := gin.WrapH(d.ObjectStore)
		r.PUT(storage.MemoryPathPrefix+"*object", h)
		r.GET(storage.MemoryPathPrefix+"*object", h)
	}

	api := r.Group("/api", middleware.AuthMiddleware(d.Verifier, d.Revoked), PrincipalMiddleware(d.Users))
	if d.UsersAPI != nil {
		d.UsersAPI.Register(api)
	}
	org := api.Group("/orgs/:orgId")
	if d.UsersAPI != nil {
		d.UsersAPI.RegisterOrg(org)
	}
	if d.Drafts != nil {
		d.Drafts.Register(org, d.ScoreLimit)
	}
	if d.Uploads != nil {
		d.Uploads.Register(org, d.UploadLimit)
	}
	if d.Blueprint != nil {
		d.Blueprint.Register(org)
	}
	return r
}

// cors sets permissive headers for browser clients and answers preflights.
func cors(c *gin.Context) {
	h := c.Writer.Header()
	h.Set("Access-Control-Allow-Origin", "*")
	h.Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
	h.Set("Access-Control-Allow-Headers", "Origin, Content-Type, Accept, Authorization")
	h.Set("Access-Control-Expose-Headers", "Content-Length, Location")
	if c.Request.Method == http.MethodOptions {
		c.AbortWithStatus(http.StatusNoContent)
		return
	}
	c.Next()
}
