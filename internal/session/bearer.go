package session

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/dropDatabas3/vanilla/internal/store/core"
)

// BearerToken extrae el access token del header Authorization, con los
// query params oauth_token y access_token como fallbacks legacy.
func BearerToken(r *http.Request) string {
	h := r.Header.Get("Authorization")
	if tok, ok := strings.CutPrefix(h, "Bearer "); ok {
		return strings.TrimSpace(tok)
	}
	if tok, ok := strings.CutPrefix(h, "OAuth "); ok {
		return strings.TrimSpace(tok)
	}
	if tok := r.URL.Query().Get("oauth_token"); tok != "" {
		return tok
	}
	return r.URL.Query().Get("access_token")
}

// UserFromBearer resuelve el usuario dueño del access token. Tokens
// desconocidos, invalidados o vencidos devuelven core.ErrNotFound.
func UserFromBearer(ctx context.Context, repo core.Repository, accessToken string) (*core.User, *core.Token, error) {
	if accessToken == "" {
		return nil, nil, core.ErrNotFound
	}
	t, err := repo.GetTokenByAccess(ctx, accessToken)
	if err != nil {
		return nil, nil, err
	}
	if t.InvalidatedAt != nil || t.Expired(time.Now()) {
		return nil, nil, core.ErrNotFound
	}
	u, err := repo.GetAliveUser(ctx, t.UserID)
	if errors.Is(err, core.ErrNotFound) {
		return nil, nil, core.ErrNotFound
	}
	if err != nil {
		return nil, nil, err
	}
	return u, t, nil
}
