package server

import (
	"bytes"
	"context"
	"crypto/rand"
	"crypto/rsa"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	mr "github.com/alicebob/miniredis/v2"
	"github.com/ezkiller2517/arkzkh-app/handlers"
	"github.com/ezkiller2517/arkzkh-app/internal/config"
	"github.com/ezkiller2517/arkzkh-app/internal/ids"
	"github.com/ezkiller2517/arkzkh-app/internal/oidc"
	"github.com/ezkiller2517/arkzkh-app/pkg/events"
	"github.com/golang-jwt/jwt/v5"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

const issuer = "https://sso.example.test/realms/arkz"

func testConfig(m *mr.Miniredis) *config.Config {
	cfg := &config.Config{}
	cfg.Server.EventsChannel = "arkz:events"
	cfg.JWT = config.JWTConfig{Secret: "server-test-secret-32-bytes-xxxxxxx", Issuer: "arkz", AccessTokenTTL: 15 * time.Minute, RefreshTokenTTL: time.Hour}
	cfg.Storage = config.StorageConfig{Type: "memory", Bucket: "arkz-uploads", SigningSecret: "s"}
	cfg.Upload = config.UploadConfig{URLExpiry: 10 * time.Minute, ReadURLTTL: 15 * time.Minute}
	if m != nil {
		cfg.Redis.Host, cfg.Redis.Port = m.Host(), m.Port()
	}
	return cfg
}

type harness struct {
	t   *testing.T
	app *App
	key *rsa.PrivateKey
}

func newHarness(t *testing.T, m *mr.Miniredis) *harness {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	app, err := New(context.Background(), testConfig(m), Options{IDTokens: oidc.NewStaticVerifier(issuer, "arkz-web", &key.PublicKey)})
	require.NoError(t, err)
	t.Cleanup(func() { app.Close(context.Background()) })
	return &harness{t: t, app: app, key: key}
}

func (h *harness) idToken(sub, name string) string {
	raw, err := jwt.NewWithClaims(jwt.SigningMethodRS256, jwt.MapClaims{
		"iss": issuer, "aud": "arkz-web", "sub": sub, "name": name,
		"exp": time.Now().Add(time.Hour).Unix(),
	}).SignedString(h.key)
	require.NoError(h.t, err)
	return raw
}

func (h *harness) do(method, path, token string, payload interface{}) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if payload != nil {
		require.NoError(h.t, json.NewEncoder(&buf).Encode(payload))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	h.app.Router.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}

func TestHealthAndReady(t *testing.T) {
	m, err := mr.Run()
	require.NoError(t, err)
	h := newHarness(t, m)

	w := h.do(http.MethodGet, "/health", "", nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = h.do(http.MethodGet, "/ready", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	got := decode[struct {
		Status string                 `json:"status"`
		Deps   map[string]interface{} `json:"deps"`
	}](t, w)
	require.Equal(t, "ready", got.Status)
	require.Equal(t, true, got.Deps["redis"])

	m.Close()
	w = h.do(http.MethodGet, "/ready", "", nil)
	require.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestSignInSetupAndSessionLifecycle(t *testing.T) {
	h := newHarness(t, mr.RunT(t))

	w := h.do(http.MethodPost, "/auth/token", "", body{"idToken": h.idToken("kc-1", "Ana")})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	pair := decode[handlers.TokenResponse](t, w)
	require.Equal(t, "Ana", pair.User.Name)

	w = h.do(http.MethodGet, "/api/users/me", pair.AccessToken, nil)
	require.Equal(t, http.StatusNotFound, w.Code)

	w = h.do(http.MethodPost, "/api/setup", pair.AccessToken, body{"organizationName": "Acme", "role": "Admin"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	setup := decode[struct {
		Organization struct {
			ID string `json:"id"`
		} `json:"organization"`
	}](t, w)

	w = h.do(http.MethodGet, "/api/users/me", pair.AccessToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, w.Body.String(), `"role":"Admin"`)

	draftPath := "/api/orgs/" + setup.Organization.ID + "/drafts/" + ids.NewDraftID()
	w = h.do(http.MethodPut, draftPath, pair.AccessToken, body{"title": "Hello"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	require.Contains(t, w.Body.String(), `"author":"Ana"`)

	w = h.do(http.MethodPost, "/auth/refresh", "", body{"refreshToken": pair.RefreshToken})
	require.Equal(t, http.StatusOK, w.Code)
	next := decode[handlers.TokenResponse](t, w)
	require.NotEqual(t, pair.RefreshToken, next.RefreshToken)

	w = h.do(http.MethodPost, "/auth/refresh", "", body{"refreshToken": pair.RefreshToken})
	require.Equal(t, http.StatusUnauthorized, w.Code, "refresh tokens are single use")

	w = h.do(http.MethodPost, "/auth/logout", next.AccessToken, body{"refreshToken": next.RefreshToken})
	require.Equal(t, http.StatusOK, w.Code)
	w = h.do(http.MethodGet, "/api/users/me", next.AccessToken, nil)
	require.Equal(t, http.StatusUnauthorized, w.Code, "access token is revoked at logout")
}

func TestRejectsForeignIDToken(t *testing.T) {
	h := newHarness(t, nil)
	other, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	forged, err := jwt.NewWithClaims(jwt.SigningMethodRS256, jwt.MapClaims{
		"iss": issuer, "aud": "arkz-web", "sub": "kc-x", "exp": time.Now().Add(time.Hour).Unix(),
	}).SignedString(other)
	require.NoError(t, err)

	w := h.do(http.MethodPost, "/auth/token", "", body{"idToken": forged})
	require.Equal(t, http.StatusUnauthorized, w.Code)
	require.Contains(t, w.Body.String(), "UNAUTHENTICATED")

	w = h.do(http.MethodGet, "/api/users/me", forged, nil)
	require.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestWatchForwardsFailuresToRedis(t *testing.T) {
	m := mr.RunT(t)
	h := newHarness(t, m)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	rc := redis.NewClient(&redis.Options{Addr: m.Addr()})
	sub := rc.Subscribe(ctx, "arkz:events")
	defer sub.Close()
	_, err := sub.Receive(ctx)
	require.NoError(t, err)

	h.app.Watch(ctx)
	h.app.Bus.Publish(events.Event{Op: "save", DraftID: "d-1", Code: "INTERNAL", Message: "internal error"})

	select {
	case msg := <-sub.Channel():
		var e events.Event
		require.NoError(t, json.Unmarshal([]byte(msg.Payload), &e))
		require.Equal(t, "save", e.Op)
		require.Equal(t, "d-1", e.DraftID)
	case <-time.After(2 * time.Second):
		t.Fatal("event was not forwarded")
	}
}

type body map[string]interface{}
