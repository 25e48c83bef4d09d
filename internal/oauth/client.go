package oauth

import (
	"context"

	"github.com/dropDatabas3/vanilla/internal/security/token"
	"github.com/dropDatabas3/vanilla/internal/store/core"
)

// EnsureCredentials genera api key y secret si faltan. Nunca regenera.
func EnsureCredentials(c *core.Client) {
	if c.APIKey == "" {
		c.APIKey = token.Secret()
	}
	if c.Secret == "" {
		c.Secret = token.Secret()
	}
}

// RegisterClient persiste un client nuevo con credenciales garantizadas.
func (s *Service) RegisterClient(ctx context.Context, c *core.Client) error {
	EnsureCredentials(c)
	return s.repo.CreateClient(ctx, c)
}

func (s *Service) UpdateClient(ctx context.Context, c *core.Client) error {
	EnsureCredentials(c)
	return s.repo.UpdateClient(ctx, c)
}

func (s *Service) ClientByAPIKey(ctx context.Context, apiKey string) (*core.Client, error) {
	return s.repo.GetClientByAPIKey(ctx, apiKey)
}
