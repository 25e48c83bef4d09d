package http

import (
	"errors"
	"net/http"

	"github.com/dropDatabas3/vanilla/internal/observability/logger"
	"github.com/dropDatabas3/vanilla/internal/store/core"
	"github.com/dropDatabas3/vanilla/internal/template"
	"github.com/dropDatabas3/vanilla/internal/tenant"
	"github.com/dropDatabas3/vanilla/internal/user"
	"github.com/dropDatabas3/vanilla/internal/validation"
)

// recoveryMethods: el recovery identifica solo por endpoints alcanzables,
// nunca por nombre.
var recoveryMethods = []core.LoginMethod{core.LoginByEmail, core.LoginByMobile}

// RecoveryStart: POST /{store}/recovery
// Identifica al usuario por email o móvil y despacha un código de recovery
// al endpoint que matcheó.
func (h *Handlers) RecoveryStart(w http.ResponseWriter, r *http.Request) {
	st := storeFrom(r.Context())
	identification := r.FormValue("identification")

	u, err := h.Tenants.IdentifyWith(r.Context(), st, identification, recoveryMethods)
	if err != nil {
		var ierr *tenant.IdentificationError
		// Un endpoint sin verificar igual sirve para recovery: el código
		// viaja al mismo endpoint que estamos recuperando.
		if errors.As(err, &ierr) && ierr.User != nil {
			u = ierr.User
		} else if errors.As(err, &ierr) {
			WriteError(w, http.StatusNotFound, "user_not_found", "no account matches that identification")
			return
		} else {
			WriteError(w, http.StatusInternalServerError, "internal_error", err.Error())
			return
		}
	}

	endpoint := core.EndpointEmail
	if u.MobileNumber != "" && validation.NormalizeMobile(identification) == u.MobileNumber {
		endpoint = core.EndpointMobile
	}
	returnURL := r.FormValue("url")
	if returnURL == "" {
		returnURL = h.Cfg.Server.BaseURL + "/" + st.Name + "/recovery/password"
	}
	n, ok := h.sendVerification(w, r, st, u, endpoint, core.ContextRecovery, returnURL)
	if !ok {
		return
	}
	logger.From(r.Context()).Info("recovery started",
		logger.Store(st.Name), logger.UserID(u.ID), logger.Endpoint(string(endpoint)))
	WriteJSON(w, http.StatusOK, map[string]any{
		"nonce_id":   n.ID,
		"verify_url": h.Cfg.Server.BaseURL + "/" + st.Name + "/verify/" + n.ID,
	})
}

// RecoveryPasswordForm: GET /{store}/recovery/password
// Form de cambio de password post-verificación. Requiere transitional user.
func (h *Handlers) RecoveryPasswordForm(w http.ResponseWriter, r *http.Request) {
	st := storeFrom(r.Context())
	u, ok := h.transitionalUser(w, r)
	if !ok {
		return
	}
	if u == nil || u.StoreID != st.ID {
		WriteError(w, http.StatusForbidden, "forbidden", "verification required")
		return
	}
	body, err := h.Renderer.Render(r.Context(), st, "recovery_password", template.FormatHTML, u, map[string]any{
		"submit_url": h.Cfg.Server.BaseURL + "/" + st.Name + "/recovery/password",
	})
	if err != nil {
		WriteError(w, http.StatusInternalServerError, "template_error", err.Error())
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write([]byte(body))
}

// RecoveryPasswordSubmit: POST /{store}/recovery/password
// Setea la password nueva del transitional user. El recovery ya verificó
// posesión del endpoint; no se pide current_password.
func (h *Handlers) RecoveryPasswordSubmit(w http.ResponseWriter, r *http.Request) {
	st := storeFrom(r.Context())
	u, ok := h.transitionalUser(w, r)
	if !ok {
		return
	}
	if u == nil || u.StoreID != st.ID {
		WriteError(w, http.StatusForbidden, "forbidden", "verification required")
		return
	}

	password := r.FormValue("password")
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
	returnURL := r.FormValue("url")
	if returnURL == "" {
		returnURL = st.DefaultURL
	}
	logger.From(r.Context()).Info("recovery password set",
		logger.Store(st.Name), logger.UserID(u.ID))
	http.Redirect(w, r, returnURL, http.StatusFound)
}
