package handlers

import (
	"github.com/ezkiller2517/arkzkh-app/internal/apperr"
	"github.com/ezkiller2517/arkzkh-app/internal/auth"
	"github.com/gin-gonic/gin"
)

// writeError renders err as {"error", "code"}. Internal details never leave
// the process.
func writeError(c *gin.Context, err error) {
	code := apperr.CodeOf(err)
	c.AbortWithStatusJSON(apperr.HTTPStatus(code), gin.H{"error": apperr.PublicMessage(err), "code": code})
}

func bindJSON(c *gin.Context, v interface{}) bool {
	if err := c.ShouldBindJSON(v); err != nil {
		writeError(c, apperr.New(apperr.InvalidArgument, "invalid request body"))
		return false
	}
	return true
}

func principal(c *gin.Context) auth.Principal {
	p, _ := auth.PrincipalFromContext(c.Request.Context())
	return p
}

func async(c *gin.Context) bool {
	return c.Query("async") == "true"
}
