package oauth

import (
	"context"
	"errors"
	"strings"

	"github.com/dropDatabas3/vanilla/internal/observability/logger"
	"github.com/dropDatabas3/vanilla/internal/security/token"
	"github.com/dropDatabas3/vanilla/internal/store/core"
	"github.com/dropDatabas3/vanilla/internal/validation"
)

// TokenRequest son los params del endpoint /oauth/token.
type TokenRequest struct {
	GrantType    string
	ClientKey    string
	ClientSecret string
	Code         string
	RedirectURI  string
	RefreshToken string
	Scope        string
}

// TokenResponse es el body de una emisión exitosa.
type TokenResponse struct {
	AccessToken  string `json:"access_token"`
	TokenType    string `json:"token_type"`
	RefreshToken string `json:"refresh_token,omitempty"`
	Scope        string `json:"scope,omitempty"`
}

// Exchange atiende el endpoint de token para ambos grant types. Los fallos
// de protocolo vuelven como *ProtocolError.
func (s *Service) Exchange(ctx context.Context, req TokenRequest) (*TokenResponse, error) {
	client, err := s.repo.GetClientByAPIKey(ctx, req.ClientKey)
	if errors.Is(err, core.ErrNotFound) {
		return nil, protocolErr(ErrCodeInvalidClient, "unknown client")
	}
	if err != nil {
		return nil, err
	}
	if client.Secret != req.ClientSecret {
		return nil, protocolErr(ErrCodeInvalidClient, "client secret mismatch")
	}

	switch req.GrantType {
	case "authorization_code":
		return s.exchangeCode(ctx, client, req)
	case "refresh_token":
		return s.refresh(ctx, client, req)
	default:
		return nil, protocolErr(ErrCodeUnsupportedGrantType, "grant_type not supported")
	}
}

func (s *Service) exchangeCode(ctx context.Context, client *core.Client, req TokenRequest) (*TokenResponse, error) {
	if req.Code == "" {
		return nil, protocolErr(ErrCodeInvalidGrant, "code is required")
	}
	auth, err := s.repo.GetAuthorizationByClientCode(ctx, client.ID, req.Code)
	if errors.Is(err, core.ErrNotFound) {
		return nil, protocolErr(ErrCodeInvalidGrant, "unknown authorization code")
	}
	if err != nil {
		return nil, err
	}
	if !ValidRedirectURI(client, req.RedirectURI) {
		return nil, protocolErr(ErrCodeInvalidGrant, "redirect_uri mismatch")
	}
	if auth.CodeExpired(s.now()) {
		return nil, protocolErr(ErrCodeInvalidGrant, "authorization code expired")
	}

	t := &core.Token{
		UserID:            auth.UserID,
		ClientID:          auth.ClientID,
		AuthorizationCode: auth.Code,
		AccessToken:       token.Secret(),
		RefreshToken:      token.Secret(),
		Scopes:            auth.Scopes,
	}
	// El intercambio consume el code: una segunda submission concurrente
	// pierde la condición del UPDATE y cae acá como expirado.
	if err := s.repo.ExchangeToken(ctx, auth, t); err != nil {
		if errors.Is(err, core.ErrExpired) {
			return nil, protocolErr(ErrCodeInvalidGrant, "authorization code expired")
		}
		return nil, err
	}
	logger.From(ctx).Info("token exchanged",
		logger.ClientID(client.ID), logger.UserID(auth.UserID))
	return tokenResponse(t), nil
}

func (s *Service) refresh(ctx context.Context, client *core.Client, req TokenRequest) (*TokenResponse, error) {
	if req.RefreshToken == "" {
		return nil, protocolErr(ErrCodeInvalidRequest, "refresh_token is required")
	}
	t, err := s.repo.GetTokenByRefresh(ctx, client.ID, req.RefreshToken)
	if errors.Is(err, core.ErrNotFound) {
		return nil, protocolErr(ErrCodeInvalidRequest, "unknown refresh token")
	}
	if err != nil {
		return nil, err
	}
	if requested := validation.ParseScopes(req.Scope); len(requested) > 0 {
		if !validation.MatchScope(t.Scopes, requested...) {
			return nil, protocolErr(ErrCodeInvalidScope, "requested scope exceeds grant")
		}
	}
	t.AccessToken = token.Secret()
	t.RefreshToken = token.Secret()
	if err := s.repo.ReplaceTokenValues(ctx, t); err != nil {
		return nil, err
	}
	logger.From(ctx).Info("token refreshed",
		logger.ClientID(client.ID), logger.UserID(t.UserID))
	return tokenResponse(t), nil
}

func tokenResponse(t *core.Token) *TokenResponse {
	return &TokenResponse{
		AccessToken:  t.AccessToken,
		TokenType:    "bearer",
		RefreshToken: t.RefreshToken,
		Scope:        strings.Join(t.Scopes, ","),
	}
}
