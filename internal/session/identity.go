package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"
)

// Identity es la identidad ya autenticada que resuelve el servicio externo
// de sesiones: el "current user" administrativo, distinto del transitional.
type Identity struct {
	ID    string `json:"id"`
	God   bool   `json:"god"`
	Realm string `json:"realm"`
}

// ErrUnauthenticated indica que las credenciales no resuelven a nadie.
var ErrUnauthenticated = errors.New("session: unauthenticated")

// ErrForbidden indica privilegios insuficientes para la operación.
var ErrForbidden = errors.New("session: forbidden")

// IdentityResolver consulta al servicio externo.
type IdentityResolver interface {
	Resolve(ctx context.Context, credentials string) (*Identity, error)
}

// HTTPIdentityResolver implementa IdentityResolver contra el endpoint HTTP
// del servicio de sesiones.
type HTTPIdentityResolver struct {
	baseURL string
	client  *http.Client
}

func NewHTTPIdentityResolver(baseURL string, timeout time.Duration) *HTTPIdentityResolver {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &HTTPIdentityResolver{
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
	}
}

func (r *HTTPIdentityResolver) Resolve(ctx context.Context, credentials string) (*Identity, error) {
	if credentials == "" {
		return nil, ErrUnauthenticated
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.baseURL+"/session", nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+credentials)
	req.Header.Set("Accept", "application/json")

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, ErrUnauthenticated
	case resp.StatusCode != http.StatusOK:
		return nil, fmt.Errorf("session: identity resolver returned %d", resp.StatusCode)
	}
	var id Identity
	if err := json.NewDecoder(resp.Body).Decode(&id); err != nil {
		return nil, err
	}
	return &id, nil
}

// RequireGod es el guard de las operaciones administrativas: la identidad
// debe existir y tener el flag god.
func RequireGod(id *Identity) error {
	if id == nil {
		return ErrUnauthenticated
	}
	if !id.God {
		return ErrForbidden
	}
	return nil
}

// SameUser reporta si la identidad corresponde al usuario dado. La
// comparación es por id, no por identidad de punteros.
func SameUser(id *Identity, userID string) bool {
	return id != nil && id.ID != "" && id.ID == userID
}

// RequireSelfOrGod permite operar sobre un usuario a su dueño o a un god.
func RequireSelfOrGod(id *Identity, userID string) error {
	if id == nil {
		return ErrUnauthenticated
	}
	if id.God || SameUser(id, userID) {
		return nil
	}
	return ErrForbidden
}
