package tokens

import (
	"context"
	"encoding/base64"
	"strings"
	"testing"
	"time"

	"github.com/ezkiller2517/arkzkh-app/internal/clock"
	"github.com/ezkiller2517/arkzkh-app/internal/config"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
)

var seg = base64.RawURLEncoding

var subject = Subject{ID: "user-123", Name: "Test User", Email: "test@example.com"}

func jwtConfig(secret string) config.JWTConfig {
	return config.JWTConfig{Secret: secret, Issuer: "arkz"}
}

func TestGenerateAccessToken_ValidAndClaims(t *testing.T) {
	clk := clock.Fixed()
	cfg := jwtConfig("test-secret-32-bytes-should-be-long-enough")
	tokenStr, err := GenerateAccessToken(cfg, subject, clk.Now(), 2*time.Minute)
	require.NoError(t, err)

	tok, err := NewVerifier(cfg, clk).Verify(context.Background(), tokenStr)
	require.NoError(t, err)
	var claims map[string]interface{}
	require.NoError(t, tok.Claims(&claims))
	require.Equal(t, "user-123", claims["sub"])
	require.Equal(t, "Test User", claims["name"])
	require.Equal(t, "arkz", claims["iss"])
	require.Equal(t, 2*time.Minute, RemainingTTL(claims, clk.Now()))
}

func TestGenerateAccessToken_RequiresSecret(t *testing.T) {
	_, err := GenerateAccessToken(config.JWTConfig{}, subject, time.Now(), time.Minute)
	require.Error(t, err)
}

func TestVerify_Expiry(t *testing.T) {
	clk := clock.Fixed()
	cfg := jwtConfig("another-secret-32-bytes-longgggg")
	tokenStr, err := GenerateAccessToken(cfg, subject, clk.Now(), time.Second)
	require.NoError(t, err)

	clk.Advance(2 * time.Second)
	_, err = NewVerifier(cfg, clk).Verify(context.Background(), tokenStr)
	require.Error(t, err)
}

func TestVerify_WrongSecretOrIssuerFails(t *testing.T) {
	clk := clock.Fixed()
	tokenStr, err := GenerateAccessToken(jwtConfig("secret-one-32-bytes-xxxxxxxxxxxxxxxx"), subject, clk.Now(), 2*time.Minute)
	require.NoError(t, err)

	_, err = NewVerifier(jwtConfig("different-secret-xxxxxxxxxxxxxxxx"), clk).Verify(context.Background(), tokenStr)
	require.Error(t, err)

	other := config.JWTConfig{Secret: "secret-one-32-bytes-xxxxxxxxxxxxxxxx", Issuer: "someone-else"}
	_, err = NewVerifier(other, clk).Verify(context.Background(), tokenStr)
	require.Error(t, err)
}

func TestVerify_Malformed(t *testing.T) {
	_, err := NewVerifier(jwtConfig("x"), nil).Verify(context.Background(), "not.a.jwt")
	require.Error(t, err)
}

// Rejected when alg=none (unsigned token)
func TestVerify_AlgNoneRejected(t *testing.T) {
	headerEnc := seg.EncodeToString([]byte(`{"alg":"none"}`))
	payloadEnc := seg.EncodeToString([]byte(`{"sub":"u-none","exp":9999999999}`))
	_, err := NewVerifier(jwtConfig("x"), nil).Verify(context.Background(), headerEnc+"."+payloadEnc+".")
	require.Error(t, err)
}

func TestVerify_RequiresExpiry(t *testing.T) {
	cfg := config.JWTConfig{Secret: "no-exp-secret-32-bytes-xxxxxxxxxxx"}
	raw, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"sub": "u"}).SignedString([]byte(cfg.Secret))
	require.NoError(t, err)
	_, err = NewVerifier(cfg, nil).Verify(context.Background(), raw)
	require.Error(t, err)
}

// Tampering with payload must fail signature verification
func TestVerify_TamperedPayload(t *testing.T) {
	clk := clock.Fixed()
	cfg := jwtConfig("tamper-test-secret-32-bytes-xxxxxxx")
	tokenStr, err := GenerateAccessToken(cfg, Subject{ID: "user-t"}, clk.Now(), 5*time.Minute)
	require.NoError(t, err)

	parts := strings.Split(tokenStr, ".")
	require.Len(t, parts, 3)
	payload, err := seg.DecodeString(parts[1])
	require.NoError(t, err)
	parts[1] = seg.EncodeToString([]byte(strings.Replace(string(payload), "user-t", "attacker", 1)))

	_, err = NewVerifier(cfg, clk).Verify(context.Background(), strings.Join(parts, "."))
	require.Error(t, err)
}
