package providers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/coreos/go-oidc/v3/oidc"
	"golang.org/x/oauth2"

	"github.com/actionable-app/actionable/pkg/crypto"
	apperrors "github.com/actionable-app/actionable/pkg/errors"

	"github.com/actionable-app/actionable/internal/cache"
)

const (
	googleIssuer = "https://accounts.google.com"

	oauthStatePrefix = "oauth:state:"
	oauthStateTTL    = 10 * time.Minute
)

// GoogleConfig holds the OAuth client settings for Google sign-in.
type GoogleConfig struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string
	Scopes       []string
}

// AuthorizationRequest is handed back to the client to start the OAuth flow.
type AuthorizationRequest struct {
	URL   string `json:"url"`
	State string `json:"state"`
}

// Identity captures the verified claims extracted from a Google ID token.
type Identity struct {
	Subject string
	Email   string
	Name    string
	Picture string
}

type oauthState struct {
	Nonce        string `json:"nonce"`
	CodeVerifier string `json:"code_verifier"`
}

// GoogleProvider implements Google sign-in over OpenID Connect with PKCE.
type GoogleProvider struct {
	oauth    oauth2.Config
	verifier *oidc.IDTokenVerifier
	states   cache.Store
}

// NewGoogleProvider performs OIDC discovery against Google and prepares the flow.
func NewGoogleProvider(ctx context.Context, cfg GoogleConfig, states cache.Store) (*GoogleProvider, error) {
	if cfg.ClientID == "" {
		return nil, errors.New("google provider: client id is required")
	}
	if states == nil {
		return nil, errors.New("google provider: state store is required")
	}

	provider, err := oidc.NewProvider(ctx, googleIssuer)
	if err != nil {
		return nil, fmt.Errorf("google provider: discovery: %w", err)
	}

	scopes := cfg.Scopes
	if len(scopes) == 0 {
		scopes = []string{oidc.ScopeOpenID, "email", "profile"}
	}

	return &GoogleProvider{
		oauth: oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURL,
			Endpoint:     provider.Endpoint(),
			Scopes:       scopes,
		},
		verifier: provider.Verifier(&oidc.Config{ClientID: cfg.ClientID}),
		states:   states,
	}, nil
}

// Begin creates a state entry and returns the Google authorization URL.
func (p *GoogleProvider) Begin(ctx context.Context) (*AuthorizationRequest, error) {
	state, err := crypto.GenerateToken(24)
	if err != nil {
		return nil, fmt.Errorf("google provider: generate state: %w", err)
	}
	nonce, err := crypto.GenerateToken(24)
	if err != nil {
		return nil, fmt.Errorf("google provider: generate nonce: %w", err)
	}
	verifier := oauth2.GenerateVerifier()

	payload, err := json.Marshal(oauthState{Nonce: nonce, CodeVerifier: verifier})
	if err != nil {
		return nil, fmt.Errorf("google provider: encode state: %w", err)
	}
	if err := p.states.Set(ctx, oauthStatePrefix+state, payload, oauthStateTTL); err != nil {
		return nil, fmt.Errorf("google provider: store state: %w", err)
	}

	url := p.oauth.AuthCodeURL(state,
		oauth2.S256ChallengeOption(verifier),
		oidc.Nonce(nonce),
	)

	return &AuthorizationRequest{URL: url, State: state}, nil
}

// Exchange redeems the authorization code and returns the verified identity.
// The state entry is consumed on first use.
func (p *GoogleProvider) Exchange(ctx context.Context, state, code string) (*Identity, error) {
	if state == "" || code == "" {
		return nil, apperrors.NewBadRequest("Missing state or code")
	}

	payload, found, err := p.states.Get(ctx, oauthStatePrefix+state)
	if err != nil {
		return nil, fmt.Errorf("google provider: load state: %w", err)
	}
	if !found {
		return nil, apperrors.NewBadRequest("Unknown or expired OAuth state")
	}
	if err := p.states.Delete(ctx, oauthStatePrefix+state); err != nil {
		return nil, fmt.Errorf("google provider: consume state: %w", err)
	}

	var stored oauthState
	if err := json.Unmarshal(payload, &stored); err != nil {
		return nil, fmt.Errorf("google provider: decode state: %w", err)
	}

	token, err := p.oauth.Exchange(ctx, code, oauth2.VerifierOption(stored.CodeVerifier))
	if err != nil {
		return nil, apperrors.ErrUnauthorized.WithInternal(err)
	}

	rawIDToken, ok := token.Extra("id_token").(string)
	if !ok || rawIDToken == "" {
		return nil, errors.New("google provider: token response missing id_token")
	}

	idToken, err := p.verifier.Verify(ctx, rawIDToken)
	if err != nil {
		return nil, apperrors.ErrUnauthorized.WithInternal(err)
	}
	if idToken.Nonce != stored.Nonce {
		return nil, apperrors.ErrUnauthorized.WithInternal(errors.New("nonce mismatch"))
	}

	var claims struct {
		Email   string `json:"email"`
		Name    string `json:"name"`
		Picture string `json:"picture"`
	}
	if err := idToken.Claims(&claims); err != nil {
		return nil, fmt.Errorf("google provider: decode claims: %w", err)
	}

	return &Identity{
		Subject: idToken.Subject,
		Email:   claims.Email,
		Name:    claims.Name,
		Picture: claims.Picture,
	}, nil
}
