package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/ezkiller2517/arkzkh-app/pkg/logger"
	"github.com/gin-gonic/gin"
)

// Token is minimal interface for a verified token that can expose claims
type Token interface {
	Claims(v interface{}) error
}

// Verifier is the minimal interface the middleware depends on
type Verifier interface {
	Verify(ctx context.Context, raw string) (Token, error)
}

// RevocationChecker reports access tokens revoked at logout.
type RevocationChecker interface {
	IsRevoked(ctx context.Context, token string) (bool, error)
}

// ChainVerifier accepts a token when any of its verifiers does. Nil entries
// are skipped, so optional verifiers can be listed unconditionally.
type ChainVerifier []Verifier

func (cv ChainVerifier) Verify(ctx context.Context, raw string) (Token, error) {
	var errs []error
	for _, v := range cv {
		if v == nil {
			continue
		}
		tok, err := v.Verify(ctx, raw)
		if err == nil {
			return tok, nil
		}
		errs = append(errs, err)
	}
	if len(errs) == 0 {
		return nil, errors.New("no token verifier configured")
	}
	return nil, errors.Join(errs...)
}

const (
	ClaimsKey   = "claims"
	RawTokenKey = "rawToken"
)

func unauthorized(c *gin.Context, msg string) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": msg, "code": "UNAUTHENTICATED"})
}

// BearerToken extracts the token from an "Authorization: Bearer <token>" header.
func BearerToken(header string) (string, bool) {
	scheme, token, ok := strings.Cut(strings.TrimSpace(header), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

// AuthMiddleware returns a Gin middleware that verifies Bearer tokens using the
// provided verifier and rejects tokens found in revoked. revoked may be nil.
func AuthMiddleware(ver Verifier, revoked RevocationChecker) gin.HandlerFunc {
	return func(c *gin.Context) {
		auth := c.GetHeader("Authorization")
		if auth == "" {
			unauthorized(c, "missing Authorization header")
			return
		}
		token, ok := BearerToken(auth)
		if !ok {
			unauthorized(c, "invalid Authorization header")
			return
		}

		if revoked != nil {
			isRevoked, err := revoked.IsRevoked(c.Request.Context(), token)
			if err != nil {
				logger.Warnf("token revocation check failed: %v", err)
			}
			if isRevoked {
				unauthorized(c, "token revoked")
				return
			}
		}

		verified, err := ver.Verify(c.Request.Context(), token)
		if err != nil {
			logger.Debugf("token rejected: %v", err)
			unauthorized(c, "invalid token")
			return
		}

		var claims map[string]interface{}
		if err := verified.Claims(&claims); err != nil {
			unauthorized(c, "failed to parse claims")
			return
		}
		if sub, _ := claims["sub"].(string); sub == "" {
			unauthorized(c, "token has no subject")
			return
		}

		c.Set(ClaimsKey, claims)
		c.Set(RawTokenKey, token)
		c.Next()
	}
}

// Claims returns the verified claims set by AuthMiddleware.
func Claims(c *gin.Context) map[string]interface{} {
	if v, ok := c.Get(ClaimsKey); ok {
		if cm, ok := v.(map[string]interface{}); ok {
			return cm
		}
	}
	return nil
}
