package http

import (
	"errors"
	"net/http"
	"sort"
	"strings"

	"github.com/dropDatabas3/vanilla/internal/observability/logger"
	"github.com/dropDatabas3/vanilla/internal/store/core"
	"github.com/dropDatabas3/vanilla/internal/template"
	"github.com/dropDatabas3/vanilla/internal/user"
	"github.com/dropDatabas3/vanilla/internal/validation"
)

// Signup: POST /{store}/users (sin identidad god)
// Alta de usuario final: pre-check de móvil duplicado, validación, creación
// y despacho del código de verificación.
func (h *Handlers) Signup(w http.ResponseWriter, r *http.Request) {
	st := storeFrom(r.Context())
	returnURL := r.FormValue("url")
	if returnURL == "" {
		returnURL = st.DefaultURL
	}

	u := &core.User{StoreID: st.ID}
	user.SetName(u, r.FormValue("name"))
	user.SetMobile(u, r.FormValue("mobile_number"))
	user.SetEmail(u, r.FormValue("email_address"))
	password := r.FormValue("password")

	// Pre-check: un móvil ya en uso por otro usuario activo del store. Si
	// la password coincide es la misma persona volviendo a registrarse:
	// corto-circuito a login.
	if u.MobileNumber != "" {
		existing, err := h.Repo.ActiveUserByMobile(r.Context(), st.ID, u.MobileNumber)
		if err != nil && !errors.Is(err, core.ErrNotFound) {
			WriteError(w, http.StatusInternalServerError, "internal_error", err.Error())
			return
		}
		if existing != nil {
			if user.PasswordMatch(existing, password) {
				key := h.Sessions.Key(w, r)
				if err := h.Sessions.SetTransitional(r.Context(), key, existing); err != nil {
					WriteError(w, http.StatusInternalServerError, "internal_error", err.Error())
					return
				}
				logger.From(r.Context()).Info("duplicate signup resolved as login",
					logger.Store(st.Name), logger.UserID(existing.ID))
				http.Redirect(w, r, returnURL, http.StatusFound)
				return
			}
			h.renderDuplicateSignup(w, r, st, u, existing)
			return
		}
	}

	ch := user.Changes{Password: &password}
	if confirmation := r.FormValue("password_confirmation"); confirmation != "" {
		ch.Confirmation = &confirmation
	}
	errs, err := h.Users.Save(r.Context(), st, u, ch)
	if err != nil {
		WriteError(w, http.StatusInternalServerError, "internal_error", err.Error())
		return
	}
	if len(errs) > 0 {
		WriteValidationErrors(w, errs)
		return
	}
	if h.Metrics != nil {
		h.Metrics.Signups.WithLabelValues(st.Name).Inc()
	}

	endpoint := core.EndpointEmail
	if u.MobileNumber != "" {
		endpoint = core.EndpointMobile
	}
	n, ok := h.sendVerification(w, r, st, u, endpoint, core.ContextSignup, returnURL)
	if !ok {
		return
	}
	WriteJSON(w, http.StatusCreated, map[string]any{
		"id":         u.ID,
		"nonce_id":   n.ID,
		"verify_url": h.Cfg.Server.BaseURL + "/" + st.Name + "/verify/" + n.ID,
	})
}

// renderDuplicateSignup responde 409 con el template del tenant y la lista
// ordenada de campos que matchearon con la cuenta existente.
func (h *Handlers) renderDuplicateSignup(w http.ResponseWriter, r *http.Request, st *core.Store, candidate, existing *core.User) {
	var matched []string
	if candidate.MobileNumber != "" && candidate.MobileNumber == existing.MobileNumber {
		matched = append(matched, "mobile_number")
	}
	if candidate.EmailAddress != "" && candidate.EmailAddress == existing.EmailAddress {
		matched = append(matched, "email_address")
	}
	if candidate.Name != "" && validation.NameMatch(candidate.Name, existing.Name) {
		matched = append(matched, "name")
	}
	sort.Strings(matched)

	body, err := h.Renderer.Render(r.Context(), st, "duplicate_signup", template.FormatHTML, nil, map[string]any{
		"matched_fields": strings.Join(matched, ","),
		"login_url":      h.Cfg.Server.BaseURL + "/" + st.Name + "/auth",
	})
	if err != nil {
		WriteError(w, http.StatusInternalServerError, "template_error", err.Error())
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusConflict)
	_, _ = w.Write([]byte(body))
}

// SignupComplete: GET /{store}/signup/complete
// Si el transitional user tiene email sin verificar, dispara el nonce de
// email. Sin nada pendiente devuelve 204.
func (h *Handlers) SignupComplete(w http.ResponseWriter, r *http.Request) {
	st := storeFrom(r.Context())
	u, ok := h.transitionalUser(w, r)
	if !ok {
		return
	}
	if u == nil || u.StoreID != st.ID {
		WriteError(w, http.StatusForbidden, "forbidden", "no authenticated user")
		return
	}
	if u.EmailAddress == "" || u.EmailVerified {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	n, ok := h.sendVerification(w, r, st, u, core.EndpointEmail, core.ContextSignup, r.URL.Query().Get("url"))
	if !ok {
		return
	}
	WriteJSON(w, http.StatusOK, map[string]any{"nonce_id": n.ID})
}
