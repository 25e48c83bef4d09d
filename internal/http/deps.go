package http

import (
	"context"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/dropDatabas3/vanilla/internal/config"
	"github.com/dropDatabas3/vanilla/internal/messaging"
	"github.com/dropDatabas3/vanilla/internal/metrics"
	"github.com/dropDatabas3/vanilla/internal/nonce"
	"github.com/dropDatabas3/vanilla/internal/oauth"
	"github.com/dropDatabas3/vanilla/internal/rate"
	"github.com/dropDatabas3/vanilla/internal/session"
	"github.com/dropDatabas3/vanilla/internal/store/core"
	"github.com/dropDatabas3/vanilla/internal/template"
	"github.com/dropDatabas3/vanilla/internal/tenant"
	"github.com/dropDatabas3/vanilla/internal/user"
)

// Handlers agrupa las dependencias de todos los controllers.
type Handlers struct {
	Cfg      *config.Config
	Repo     core.Repository
	Tenants  *tenant.Service
	Users    *user.Service
	Nonces   *nonce.Engine
	OAuth    *oauth.Service
	Sessions *session.Manager
	Identity session.IdentityResolver
	Gateway  messaging.Gateway
	Renderer *template.Renderer
	Metrics  *metrics.Metrics
	// Limiter frena fuerza bruta en login/recovery. Nil = sin límite.
	Limiter rate.Limiter
}

type ctxKey int

const (
	ctxStore ctxKey = iota
	ctxIdentity
)

// storeFrom devuelve el store resuelto por el middleware de tenant.
func storeFrom(ctx context.Context) *core.Store {
	st, _ := ctx.Value(ctxStore).(*core.Store)
	return st
}

// identityFrom devuelve la identidad administrativa si el resolver la
// reconoció, nil si el request es anónimo.
func identityFrom(ctx context.Context) *session.Identity {
	id, _ := ctx.Value(ctxIdentity).(*session.Identity)
	return id
}

// WithStore resuelve el tenant del path. Tenant desconocido es 404.
func (h *Handlers) WithStore(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		name := chi.URLParam(r, "store")
		st, err := h.Tenants.ByName(r.Context(), name)
		if errors.Is(err, core.ErrNotFound) {
			WriteError(w, http.StatusNotFound, "store_not_found", "unknown store")
			return
		}
		if err != nil {
			WriteError(w, http.StatusInternalServerError, "internal_error", err.Error())
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), ctxStore, st)))
	})
}

// WithIdentity intenta resolver la identidad administrativa del caller vía
// el resolver externo. La falta de identidad no corta el request; los guards
// deciden por endpoint.
func (h *Handlers) WithIdentity(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		creds := r.Header.Get("X-Session-Token")
		if creds == "" || h.Identity == nil {
			next.ServeHTTP(w, r)
			return
		}
		id, err := h.Identity.Resolve(r.Context(), creds)
		if err != nil {
			// Credenciales malas cuentan como anónimo; el guard del
			// endpoint devuelve el 403.
			next.ServeHTTP(w, r)
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), ctxIdentity, id)))
	})
}

// transitionalUser resuelve el candidato del request: bearer token primero,
// después la sesión de navegador. Un bearer inválido corta con 403.
func (h *Handlers) transitionalUser(w http.ResponseWriter, r *http.Request) (*core.User, bool) {
	if tok := session.BearerToken(r); tok != "" {
		u, _, err := session.UserFromBearer(r.Context(), h.Repo, tok)
		if errors.Is(err, core.ErrNotFound) {
			w.Header().Set("WWW-Authenticate", `Bearer realm="vanilla", error="invalid_token"`)
			WriteError(w, http.StatusForbidden, "invalid_token", "access token not valid")
			return nil, false
		}
		if err != nil {
			WriteError(w, http.StatusInternalServerError, "internal_error", err.Error())
			return nil, false
		}
		return u, true
	}
	key := h.Sessions.PeekKey(r)
	u, err := h.Sessions.TransitionalUser(r.Context(), h.Repo, key)
	if err != nil {
		WriteError(w, http.StatusInternalServerError, "internal_error", err.Error())
		return nil, false
	}
	return u, true
}

// requireGod corta con 403 si el caller no es god.
func (h *Handlers) requireGod(w http.ResponseWriter, r *http.Request) bool {
	if err := session.RequireGod(identityFrom(r.Context())); err != nil {
		WriteError(w, http.StatusForbidden, "forbidden", "god privileges required")
		return false
	}
	return true
}
