package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ezkiller2517/arkzkh-app/internal/apperr"
	"github.com/ezkiller2517/arkzkh-app/internal/clock"
	"github.com/ezkiller2517/arkzkh-app/internal/config"
	"github.com/ezkiller2517/arkzkh-app/internal/oidc"
	"github.com/ezkiller2517/arkzkh-app/internal/sessions"
	"github.com/ezkiller2517/arkzkh-app/internal/tokens"
	"github.com/ezkiller2517/arkzkh-app/pkg/logger"
	"github.com/ezkiller2517/arkzkh-app/pkg/middleware"
	"github.com/gin-gonic/gin"
)

// LoginRequest used for the Keycloak grant exchange
type LoginRequest struct {
	Mode        string `json:"mode" binding:"required"` // "password" | "auth_code"
	Username    string `json:"username"`
	Password    string `json:"password"`
	Code        string `json:"code"`
	RedirectURI string `json:"redirectUri"`
}

// TokenResponse is returned by every endpoint that issues a token pair.
type TokenResponse struct {
	AccessToken  string       `json:"accessToken"`
	RefreshToken string       `json:"refreshToken"`
	TokenType    string       `json:"tokenType"`
	ExpiresIn    int          `json:"expiresIn"`
	User         TokenSubject `json:"user"`
}

type TokenSubject struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email,omitempty"`
}

// AuthHandler exchanges verified identity provider tokens for local
// access/refresh pairs.
type AuthHandler struct {
	cfg       *config.Config
	idTokens  middleware.Verifier
	access    *tokens.Verifier
	sessions  *sessions.Service
	blacklist sessions.Blacklist
	clock     clock.Clock
	client    *http.Client
}

// NewAuthHandler wires the handler. idTokens verifies provider ID tokens and
// may be nil when no provider is configured; blacklist may be nil.
func NewAuthHandler(cfg *config.Config, idTokens middleware.Verifier, s *sessions.Service, bl sessions.Blacklist, c clock.Clock) *AuthHandler {
	if c == nil {
		c = clock.Real{}
	}
	return &AuthHandler{
		cfg:       cfg,
		idTokens:  idTokens,
		access:    tokens.NewVerifier(cfg.JWT, c),
		sessions:  s,
		blacklist: bl,
		clock:     c,
		client:    &http.Client{Timeout: 10 * time.Second},
	}
}

// Register routes under /auth
func (h *AuthHandler) Register(rg *gin.RouterGroup) {
	a := rg.Group("/auth")
	a.POST("/login", h.Login)
	a.POST("/token", h.Token)
	a.POST("/refresh", h.Refresh)
	a.POST("/logout", h.Logout)
}

// Login runs a password or authorization-code grant against Keycloak and
// exchanges the returned ID token.
func (h *AuthHandler) Login(c *gin.Context) {
	var req LoginRequest
	if !bindJSON(c, &req) {
		return
	}
	form := url.Values{}
	switch req.Mode {
	case "password":
		form.Set("grant_type", "password")
		form.Set("username", req.Username)
		form.Set("password", req.Password)
		form.Set("scope", "openid")
	case "auth_code":
		if req.Code == "" || req.RedirectURI == "" {
			writeError(c, apperr.New(apperr.InvalidArgument, "code and redirectUri are required for auth_code mode"))
			return
		}
		form.Set("grant_type", "authorization_code")
		form.Set("code", req.Code)
		form.Set("redirect_uri", req.RedirectURI)
	default:
		writeError(c, apperr.New(apperr.InvalidArgument, "unsupported mode"))
		return
	}
	issuer := h.cfg.Keycloak.Issuer()
	if issuer == "" {
		writeError(c, apperr.New(apperr.Internal, "identity provider not configured"))
		return
	}
	idToken, err := h.requestIDToken(c.Request.Context(), issuer, form)
	if err != nil {
		logger.Warnf("keycloak %s grant failed: %v", req.Mode, err)
		writeError(c, apperr.New(apperr.Unauthenticated, "authentication failed"))
		return
	}
	h.exchange(c, idToken)
}

// Token exchanges a provider ID token obtained by the client.
func (h *AuthHandler) Token(c *gin.Context) {
	var req struct {
		IDToken string `json:"idToken"`
	}
	if !bindJSON(c, &req) {
		return
	}
	if req.IDToken == "" {
		writeError(c, apperr.New(apperr.InvalidArgument, "idToken is required"))
		return
	}
	h.exchange(c, req.IDToken)
}

func (h *AuthHandler) exchange(c *gin.Context, raw string) {
	if h.idTokens == nil {
		writeError(c, apperr.New(apperr.Internal, "identity provider not configured"))
		return
	}
	tok, err := h.idTokens.Verify(c.Request.Context(), raw)
	if err != nil {
		logger.Debugf("id token rejected: %v", err)
		writeError(c, apperr.New(apperr.Unauthenticated, "invalid id token"))
		return
	}
	id, err := oidc.IdentityOf(tok)
	if err != nil {
		writeError(c, apperr.New(apperr.Unauthenticated, "invalid id token"))
		return
	}
	refresh, err := h.sessions.CreateSession(c.Request.Context(), sessions.Identity{UserID: id.Subject, DisplayName: id.DisplayName(), Email: id.Email})
	if err != nil {
		logger.Errorf("failed to create session: %v", err)
		writeError(c, apperr.Wrap(apperr.Internal, err, "create session"))
		return
	}
	h.respondPair(c, tokens.Subject{ID: id.Subject, Name: id.DisplayName(), Email: id.Email}, refresh)
}

// Refresh redeems a refresh token for a new pair. The old token stops working.
func (h *AuthHandler) Refresh(c *gin.Context) {
	var req struct {
		RefreshToken string `json:"refreshToken"`
	}
	if !bindJSON(c, &req) {
		return
	}
	sess, next, err := h.sessions.Rotate(c.Request.Context(), req.RefreshToken)
	if err != nil {
		logger.Errorf("refresh rotation failed: %v", err)
		writeError(c, apperr.Wrap(apperr.Internal, err, "refresh"))
		return
	}
	if sess == nil {
		writeError(c, apperr.New(apperr.Unauthenticated, "invalid refresh token"))
		return
	}
	h.respondPair(c, tokens.Subject{ID: sess.UserID, Name: sess.DisplayName, Email: sess.Email}, next)
}

// Logout deletes the refresh session and blacklists the presented access
// token for the rest of its lifetime. With "all" set, every refresh session
// of the bearer is removed.
func (h *AuthHandler) Logout(c *gin.Context) {
	var req struct {
		RefreshToken string `json:"refreshToken"`
		All          bool   `json:"all"`
	}
	if !bindJSON(c, &req) {
		return
	}
	ctx := c.Request.Context()
	var sub string
	if raw, ok := middleware.BearerToken(c.GetHeader("Authorization")); ok {
		if tok, err := h.access.Verify(ctx, raw); err == nil {
			var claims map[string]interface{}
			if err := tok.Claims(&claims); err == nil {
				sub, _ = claims["sub"].(string)
				if ttl := tokens.RemainingTTL(claims, h.clock.Now()); ttl > 0 && h.blacklist != nil {
					if err := h.blacklist.Revoke(ctx, raw, ttl); err != nil {
						logger.Errorf("failed to blacklist access token: %v", err)
						writeError(c, apperr.Wrap(apperr.Internal, err, "blacklist"))
						return
					}
				}
			}
		}
	}
	if req.All {
		if sub == "" {
			writeError(c, apperr.New(apperr.Unauthenticated, "a valid access token is required to sign out everywhere"))
			return
		}
		n, err := h.sessions.RevokeAll(ctx, sub)
		if err != nil {
			logger.Errorf("failed to remove sessions of %s: %v", sub, err)
			writeError(c, apperr.Wrap(apperr.Internal, err, "logout"))
			return
		}
		logger.Infof("signed out %s from %d sessions", sub, n)
		c.JSON(http.StatusOK, gin.H{"message": "logged out", "sessions": n})
		return
	}
	if req.RefreshToken != "" {
		if err := h.sessions.DeleteRefresh(ctx, req.RefreshToken); err != nil {
			logger.Errorf("failed to remove session: %v", err)
			writeError(c, apperr.Wrap(apperr.Internal, err, "logout"))
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{"message": "logged out"})
}

func (h *AuthHandler) respondPair(c *gin.Context, s tokens.Subject, refresh string) {
	ttl := h.cfg.JWT.AccessTokenTTL
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}
	access, err := tokens.GenerateAccessToken(h.cfg.JWT, s, h.clock.Now(), ttl)
	if err != nil {
		logger.Errorf("failed to create access token: %v", err)
		writeError(c, apperr.Wrap(apperr.Internal, err, "create access token"))
		return
	}
	c.JSON(http.StatusOK, TokenResponse{
		AccessToken:  access,
		RefreshToken: refresh,
		TokenType:    "Bearer",
		ExpiresIn:    int(ttl.Seconds()),
		User:         TokenSubject{ID: s.ID, Name: s.Name, Email: s.Email},
	})
}

// requestIDToken posts a grant to the realm token endpoint with
// client_secret_post authentication and returns the id_token.
func (h *AuthHandler) requestIDToken(ctx context.Context, issuer string, form url.Values) (string, error) {
	form.Set("client_id", h.cfg.Keycloak.ClientID)
	if h.cfg.Keycloak.ClientSecret != "" {
		form.Set("client_secret", h.cfg.Keycloak.ClientSecret)
	}
	tokenURL := issuer + "/protocol/openid-connect/token"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, tokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	resp, err := h.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", fmt.Errorf("token endpoint returned %d: %s", resp.StatusCode, strings.TrimSpace(string(b)))
	}
	var tr struct {
		IDToken string `json:"id_token"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&tr); err != nil {
		return "", err
	}
	if tr.IDToken == "" {
		return "", fmt.Errorf("token endpoint returned no id_token")
	}
	return tr.IDToken, nil
}
