package handlers

import (
	"context"

	"github.com/ezkiller2517/arkzkh-app/internal/apperr"
	"github.com/ezkiller2517/arkzkh-app/internal/auth"
	"github.com/ezkiller2517/arkzkh-app/internal/models"
	"github.com/ezkiller2517/arkzkh-app/pkg/logger"
	"github.com/ezkiller2517/arkzkh-app/pkg/middleware"
	"github.com/gin-gonic/gin"
)

// UserLookup resolves a verified subject to its stored profile; (nil, nil)
// means the subject has not completed setup.
type UserLookup interface {
	Lookup(ctx context.Context, id string) (*models.User, error)
}

// PrincipalMiddleware builds the auth.Principal for the request from the
// verified claims and the stored profile. It must run after AuthMiddleware.
func PrincipalMiddleware(users UserLookup) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims := middleware.Claims(c)
		sub, _ := claims["sub"].(string)
		if sub == "" {
			writeError(c, apperr.New(apperr.Unauthenticated, "sign in required"))
			return
		}
		p := auth.Principal{UserID: sub, DisplayName: claimName(claims)}
		u, err := users.Lookup(c.Request.Context(), sub)
		if err != nil {
			logger.Errorf("principal lookup for %s failed: %v", sub, err)
			writeError(c, apperr.Wrap(apperr.Internal, err, "load profile"))
			return
		}
		if u != nil {
			p = auth.FromUser(u)
		}
		c.Request = c.Request.WithContext(auth.ContextWithPrincipal(c.Request.Context(), p))
		c.Next()
	}
}

func claimName(claims map[string]interface{}) string {
	for _, k := range []string{"name", "preferred_username", "email"} {
		if v, ok := claims[k].(string); ok && v != "" {
			return v
		}
	}
	return ""
}
