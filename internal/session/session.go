// Package session maneja la sesión de navegador del flujo de identidad: la
// cookie de sesión, el transitional user y la resolución de bearer tokens.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/dropDatabas3/vanilla/internal/cache"
	"github.com/dropDatabas3/vanilla/internal/store/core"
)

// DefaultTTL es la vida del estado transitional en el cache.
const DefaultTTL = 2 * time.Hour

// Config de la capa de sesión.
type Config struct {
	CookieName string
	TTL        time.Duration
	Secure     bool
}

func (c Config) withDefaults() Config {
	if c.CookieName == "" {
		c.CookieName = "vanilla_session"
	}
	if c.TTL <= 0 {
		c.TTL = DefaultTTL
	}
	return c
}

// Manager lee y escribe la sesión sobre cookies + cache compartido.
type Manager struct {
	cache cache.Client
	cfg   Config
}

func NewManager(c cache.Client, cfg Config) *Manager {
	return &Manager{cache: c, cfg: cfg.withDefaults()}
}

// Key devuelve la session key del request, creándola (y seteando la cookie)
// si no existe todavía.
func (m *Manager) Key(w http.ResponseWriter, r *http.Request) string {
	if ck, err := r.Cookie(m.cfg.CookieName); err == nil && ck.Value != "" {
		return ck.Value
	}
	key := uuid.NewString()
	http.SetCookie(w, &http.Cookie{
		Name:     m.cfg.CookieName,
		Value:    key,
		Path:     "/",
		HttpOnly: true,
		Secure:   m.cfg.Secure,
		SameSite: http.SameSiteLaxMode,
	})
	return key
}

// PeekKey devuelve la session key si hay cookie, sin crear una nueva.
func (m *Manager) PeekKey(r *http.Request) string {
	if ck, err := r.Cookie(m.cfg.CookieName); err == nil {
		return ck.Value
	}
	return ""
}

// transitionalState es lo que persiste en el cache: el candidato y la
// session key con la que se grabó.
type transitionalState struct {
	UserID     string `json:"user_id"`
	SessionKey string `json:"session_key"`
}

func transitionalCacheKey(sessionKey string) string {
	return "transitional:" + sessionKey
}

// SetTransitional persiste el transitional user para la sesión. Un user nil
// limpia el estado.
func (m *Manager) SetTransitional(ctx context.Context, sessionKey string, u *core.User) error {
	if u == nil {
		return m.ClearTransitional(ctx, sessionKey)
	}
	raw, err := json.Marshal(transitionalState{UserID: u.ID, SessionKey: sessionKey})
	if err != nil {
		return err
	}
	return m.cache.Set(ctx, transitionalCacheKey(sessionKey), string(raw), m.cfg.TTL)
}

// ClearTransitional borra el candidato de la sesión.
func (m *Manager) ClearTransitional(ctx context.Context, sessionKey string) error {
	err := m.cache.Delete(ctx, transitionalCacheKey(sessionKey))
	if errors.Is(err, cache.ErrNotFound) {
		return nil
	}
	return err
}

// Transitional devuelve el user id candidato de la sesión, o "" si no hay.
// Si la session key guardada no coincide con la actual el estado se descarta
// como si no existiera.
func (m *Manager) Transitional(ctx context.Context, sessionKey string) (string, error) {
	if sessionKey == "" {
		return "", nil
	}
	raw, err := m.cache.Get(ctx, transitionalCacheKey(sessionKey))
	if errors.Is(err, cache.ErrNotFound) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	var st transitionalState
	if err := json.Unmarshal([]byte(raw), &st); err != nil {
		return "", nil
	}
	if st.SessionKey != sessionKey {
		// Sesión vieja: el candidato no viaja entre sesiones.
		_ = m.cache.Delete(ctx, transitionalCacheKey(sessionKey))
		return "", nil
	}
	return st.UserID, nil
}

// TransitionalUser resuelve el candidato contra el repositorio. Devuelve
// nil sin error cuando no hay candidato o el usuario ya no está vivo.
func (m *Manager) TransitionalUser(ctx context.Context, repo core.Repository, sessionKey string) (*core.User, error) {
	id, err := m.Transitional(ctx, sessionKey)
	if err != nil || id == "" {
		return nil, err
	}
	u, err := repo.GetAliveUser(ctx, id)
	if errors.Is(err, core.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return u, nil
}
