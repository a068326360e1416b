package tokens

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/ezkiller2517/arkzkh-app/internal/clock"
	"github.com/ezkiller2517/arkzkh-app/internal/config"
	"github.com/ezkiller2517/arkzkh-app/pkg/middleware"
	"github.com/golang-jwt/jwt/v5"
)

// Subject is the identity embedded in a local access token.
type Subject struct {
	ID    string
	Name  string
	Email string
}

// GenerateAccessToken creates a signed HS256 access token for the subject
func GenerateAccessToken(cfg config.JWTConfig, s Subject, now time.Time, ttl time.Duration) (string, error) {
	if cfg.Secret == "" {
		return "", errors.New("jwt secret not configured")
	}
	claims := jwt.MapClaims{
		"sub":   s.ID,
		"name":  s.Name,
		"email": s.Email,
		"iat":   now.Unix(),
		"exp":   now.Add(ttl).Unix(),
	}
	if cfg.Issuer != "" {
		claims["iss"] = cfg.Issuer
	}
	jt := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return jt.SignedString([]byte(cfg.Secret))
}

type mapToken jwt.MapClaims

func (t mapToken) Claims(v interface{}) error {
	if out, ok := v.(*map[string]interface{}); ok {
		*out = map[string]interface{}(t)
		return nil
	}
	b, err := json.Marshal(map[string]interface{}(t))
	if err != nil {
		return fmt.Errorf("encode claims: %w", err)
	}
	return json.Unmarshal(b, v)
}

// Verifier checks local access tokens and satisfies middleware.Verifier.
type Verifier struct {
	cfg   config.JWTConfig
	clock clock.Clock
}

func NewVerifier(cfg config.JWTConfig, c clock.Clock) *Verifier {
	if c == nil {
		c = clock.Real{}
	}
	return &Verifier{cfg: cfg, clock: c}
}

func (v *Verifier) Verify(_ context.Context, raw string) (middleware.Token, error) {
	if v.cfg.Secret == "" {
		return nil, errors.New("jwt secret not configured")
	}
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(v.clock.Now),
	}
	if v.cfg.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(v.cfg.Issuer))
	}
	claims := jwt.MapClaims{}
	_, err := jwt.ParseWithClaims(raw, claims, func(*jwt.Token) (interface{}, error) {
		return []byte(v.cfg.Secret), nil
	}, opts...)
	if err != nil {
		return nil, err
	}
	if exp, err := claims.GetExpirationTime(); err != nil || exp == nil {
		return nil, errors.New("token has no expiry")
	}
	return mapToken(claims), nil
}

// RemainingTTL returns how long a verified token stays valid, for blacklisting
// at logout. Zero means already expired or unknown.
func RemainingTTL(claims map[string]interface{}, now time.Time) time.Duration {
	exp, err := jwt.MapClaims(claims).GetExpirationTime()
	if err != nil || exp == nil {
		return 0
	}
	if d := exp.Sub(now); d > 0 {
		return d
	}
	return 0
}
