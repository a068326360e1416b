package oidc

import (
	"context"
	"crypto"
	"errors"
	"fmt"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/ezkiller2517/arkzkh-app/pkg/middleware"
)

// Verifier checks ID tokens issued by the configured OIDC provider (Keycloak)
type Verifier struct {
	verifier *oidc.IDTokenVerifier
}

// NewVerifier discovers the provider at issuer and verifies tokens for clientID
func NewVerifier(ctx context.Context, issuer, clientID string) (*Verifier, error) {
	provider, err := oidc.NewProvider(ctx, issuer)
	if err != nil {
		return nil, fmt.Errorf("failed to discover OIDC provider: %w", err)
	}
	return &Verifier{verifier: provider.Verifier(&oidc.Config{ClientID: clientID})}, nil
}

// NewStaticVerifier verifies tokens against fixed public keys without discovery.
func NewStaticVerifier(issuer, clientID string, keys ...crypto.PublicKey) *Verifier {
	ks := &oidc.StaticKeySet{PublicKeys: keys}
	return &Verifier{verifier: oidc.NewVerifier(issuer, ks, &oidc.Config{ClientID: clientID})}
}

// Verify verifies the raw ID token and returns it as a middleware.Token
func (v *Verifier) Verify(ctx context.Context, raw string) (middleware.Token, error) {
	idToken, err := v.verifier.Verify(ctx, raw)
	if err != nil {
		return nil, err
	}
	return idToken, nil
}

// Identity is the profile carried by an ID token.
type Identity struct {
	Subject           string `json:"sub"`
	Name              string `json:"name"`
	PreferredUsername string `json:"preferred_username"`
	Email             string `json:"email"`
}

// DisplayName falls back from name to preferred_username to email.
func (i Identity) DisplayName() string {
	switch {
	case i.Name != "":
		return i.Name
	case i.PreferredUsername != "":
		return i.PreferredUsername
	}
	return i.Email
}

// IdentityOf decodes the identity claims of a verified token.
func IdentityOf(tok middleware.Token) (Identity, error) {
	var id Identity
	if err := tok.Claims(&id); err != nil {
		return Identity{}, err
	}
	if id.Subject == "" {
		return Identity{}, errors.New("token has no subject")
	}
	return id, nil
}
