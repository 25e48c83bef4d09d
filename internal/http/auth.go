package http

import (
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/dropDatabas3/vanilla/internal/observability/logger"
	"github.com/dropDatabas3/vanilla/internal/session"
	"github.com/dropDatabas3/vanilla/internal/store/core"
	"github.com/dropDatabas3/vanilla/internal/template"
	"github.com/dropDatabas3/vanilla/internal/tenant"
)

// LoginForm: GET /{store}/auth
// Renderiza el form de login del tenant. El param url es el return target
// post-login.
func (h *Handlers) LoginForm(w http.ResponseWriter, r *http.Request) {
	st := storeFrom(r.Context())
	returnURL := r.URL.Query().Get("url")
	if returnURL == "" {
		returnURL = st.DefaultURL
	}
	body, err := h.Renderer.Render(r.Context(), st, "login", template.FormatHTML, nil, map[string]any{
		"url":        returnURL,
		"submit_url": h.Cfg.Server.BaseURL + "/" + st.Name + "/auth",
	})
	if err != nil {
		WriteError(w, http.StatusInternalServerError, "template_error", err.Error())
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write([]byte(body))
}

// Login: POST /{store}/auth
// Autentica identification+password, marca al usuario como transitional y
// redirige al return target.
func (h *Handlers) Login(w http.ResponseWriter, r *http.Request) {
	st := storeFrom(r.Context())
	identification := r.FormValue("identification")
	password := r.FormValue("password")
	returnURL := r.FormValue("url")
	if returnURL == "" {
		returnURL = st.DefaultURL
	}

	u, err := h.Tenants.Authenticate(r.Context(), st, identification, password)
	if err != nil {
		var ierr *tenant.IdentificationError
		if errors.As(err, &ierr) {
			if h.Metrics != nil {
				h.Metrics.Logins.WithLabelValues(st.Name, "failure").Inc()
			}
			WriteError(w, http.StatusForbidden, ierr.Symbol, "authentication failed")
			return
		}
		WriteError(w, http.StatusInternalServerError, "internal_error", err.Error())
		return
	}

	key := h.Sessions.Key(w, r)
	if err := h.Sessions.SetTransitional(r.Context(), key, u); err != nil {
		WriteError(w, http.StatusInternalServerError, "internal_error", err.Error())
		return
	}
	u.LoggedIn = true
	if err := h.Repo.UpdateUser(r.Context(), u); err != nil {
		WriteError(w, http.StatusInternalServerError, "internal_error", err.Error())
		return
	}
	if h.Metrics != nil {
		h.Metrics.Logins.WithLabelValues(st.Name, "success").Inc()
	}
	logger.From(r.Context()).Info("login", logger.Store(st.Name), logger.UserID(u.ID))
	http.Redirect(w, r, returnURL, http.StatusFound)
}

// LoginCheck: GET /{store}/login/{id}
// Reporta si el usuario sigue logueado. Lo usa el portal para re-validar
// sesiones largas.
func (h *Handlers) LoginCheck(w http.ResponseWriter, r *http.Request) {
	st := storeFrom(r.Context())
	u, err := h.Repo.GetAliveUser(r.Context(), chi.URLParam(r, "id"))
	if errors.Is(err, core.ErrNotFound) || (err == nil && u.StoreID != st.ID) {
		WriteError(w, http.StatusNotFound, "user_not_found", "unknown user")
		return
	}
	if err != nil {
		WriteError(w, http.StatusInternalServerError, "internal_error", err.Error())
		return
	}
	WriteJSON(w, http.StatusOK, map[string]any{"id": u.ID, "logged_in": u.LoggedIn})
}

// Logout: POST /{store}/logout
// Descarta el transitional user de la sesión actual.
func (h *Handlers) Logout(w http.ResponseWriter, r *http.Request) {
	key := h.Sessions.PeekKey(r)
	if key != "" {
		if err := h.Sessions.ClearTransitional(r.Context(), key); err != nil {
			WriteError(w, http.StatusInternalServerError, "internal_error", err.Error())
			return
		}
	}
	w.WriteHeader(http.StatusNoContent)
}

// LogoutUser: POST /{store}/logout/{id}
// Cierra la sesión de un usuario concreto: su dueño o un god.
func (h *Handlers) LogoutUser(w http.ResponseWriter, r *http.Request) {
	st := storeFrom(r.Context())
	u, err := h.Repo.GetAliveUser(r.Context(), chi.URLParam(r, "id"))
	if errors.Is(err, core.ErrNotFound) || (err == nil && u.StoreID != st.ID) {
		WriteError(w, http.StatusNotFound, "user_not_found", "unknown user")
		return
	}
	if err != nil {
		WriteError(w, http.StatusInternalServerError, "internal_error", err.Error())
		return
	}

	id := identityFrom(r.Context())
	allowed := session.RequireSelfOrGod(id, u.ID) == nil
	if !allowed {
		// Sin identidad administrativa, el transitional de la sesión puede
		// cerrarse a sí mismo.
		current, ok := h.transitionalUser(w, r)
		if !ok {
			return
		}
		allowed = current != nil && current.ID == u.ID
	}
	if !allowed {
		WriteError(w, http.StatusForbidden, "forbidden", "cannot log out another user")
		return
	}

	u.LoggedIn = false
	if err := h.Repo.UpdateUser(r.Context(), u); err != nil {
		WriteError(w, http.StatusInternalServerError, "internal_error", err.Error())
		return
	}
	if key := h.Sessions.PeekKey(r); key != "" {
		_ = h.Sessions.ClearTransitional(r.Context(), key)
	}
	logger.From(r.Context()).Info("logout", logger.Store(st.Name), logger.UserID(u.ID))
	w.WriteHeader(http.StatusNoContent)
}

// OmniauthHash: GET /users/omniauth_hash
// Blob JSON del transitional user para el portal, firmado con el secret
// del store.
func (h *Handlers) OmniauthHash(w http.ResponseWriter, r *http.Request) {
	u, ok := h.transitionalUser(w, r)
	if !ok {
		return
	}
	if u == nil {
		WriteError(w, http.StatusForbidden, "forbidden", "no authenticated user")
		return
	}
	st, err := h.Repo.GetStore(r.Context(), u.StoreID)
	if err != nil {
		WriteError(w, http.StatusInternalServerError, "internal_error", err.Error())
		return
	}
	WriteJSON(w, http.StatusOK, map[string]any{
		"provider": "vanilla",
		"uid":      u.ID,
		"info": map[string]any{
			"name":   u.Name,
			"email":  u.EmailAddress,
			"mobile": u.MobileNumber,
		},
		"credentials": map[string]any{
			"signature": tenant.SignWithSecret(st, u.ID+":"+time.Now().UTC().Format("2006-01-02")),
		},
	})
}
