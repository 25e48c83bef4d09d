package http

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/dropDatabas3/vanilla/internal/nonce"
	"github.com/dropDatabas3/vanilla/internal/observability/logger"
	"github.com/dropDatabas3/vanilla/internal/store/core"
	"github.com/dropDatabas3/vanilla/internal/template"
)

// sendVerification crea el nonce del endpoint y despacha el código: SMS con
// código numérico corto, email con link corto alfanumérico. Devuelve el
// nonce ya persistido con su delivery status key.
func (h *Handlers) sendVerification(w http.ResponseWriter, r *http.Request, st *core.Store, u *core.User, endpoint core.NonceEndpoint, context core.NonceContext, returnURL string) (*core.Nonce, bool) {
	if returnURL == "" {
		returnURL = st.DefaultURL
	}
	n := &core.Nonce{
		StoreID:  st.ID,
		UserID:   u.ID,
		URL:      returnURL,
		Endpoint: endpoint,
		Context:  context,
	}
	switch endpoint {
	case core.EndpointMobile:
		n.Key = u.MobileNumber
		n.Value = nonce.NumericValue()
	case core.EndpointEmail:
		n.Key = u.EmailAddress
		n.Value = nonce.AlphanumericValue()
	}
	if err := h.Nonces.Create(r.Context(), n); err != nil {
		WriteError(w, http.StatusInternalServerError, "internal_error", err.Error())
		return nil, false
	}

	verifyURL := h.Cfg.Server.BaseURL + "/" + st.Name + "/verify/" + n.ID
	shortURL := h.Cfg.Server.BaseURL + "/" + st.Name + "/v/" +
		EncodeParams(map[string]string{"nonce_id": n.ID, "code": n.Value})

	var deliveryID string
	switch endpoint {
	case core.EndpointMobile:
		text, err := h.Renderer.Render(r.Context(), st, "verification_sms", template.FormatPlaintext, u, map[string]any{
			"code": n.Value,
			"url":  verifyURL,
		})
		if err != nil {
			WriteError(w, http.StatusInternalServerError, "template_error", err.Error())
			return nil, false
		}
		deliveryID, err = h.Gateway.SendSMS(r.Context(), st, u.MobileNumber, text)
		if err != nil {
			WriteError(w, http.StatusInternalServerError, "gateway_error", err.Error())
			return nil, false
		}
	case core.EndpointEmail:
		html, err := h.Renderer.Render(r.Context(), st, "verification_email", template.FormatHTML, u, map[string]any{
			"url": shortURL,
		})
		if err != nil {
			WriteError(w, http.StatusInternalServerError, "template_error", err.Error())
			return nil, false
		}
		subject, err := h.Renderer.Render(r.Context(), st, "verification_email_subject", template.FormatPlaintext, u, nil)
		if err != nil {
			WriteError(w, http.StatusInternalServerError, "template_error", err.Error())
			return nil, false
		}
		deliveryID, err = h.Gateway.SendEmail(r.Context(), st, "", u.EmailAddress, subject, html, "")
		if err != nil {
			WriteError(w, http.StatusInternalServerError, "gateway_error", err.Error())
			return nil, false
		}
	}

	n.DeliveryStatusKey = deliveryID
	if err := h.Repo.UpdateNonce(r.Context(), n); err != nil {
		WriteError(w, http.StatusInternalServerError, "internal_error", err.Error())
		return nil, false
	}
	if h.Metrics != nil {
		h.Metrics.NoncesSent.WithLabelValues(st.Name, string(endpoint)).Inc()
	}
	logger.From(r.Context()).Info("verification sent",
		logger.Store(st.Name), logger.UserID(u.ID), logger.NonceID(n.ID),
		logger.Endpoint(string(endpoint)))
	return n, true
}

// VerifyForm: GET /{store}/verify/{nonce}
// Sin código muestra el form; con code en el query hace el verify completo.
func (h *Handlers) VerifyForm(w http.ResponseWriter, r *http.Request) {
	h.verify(w, r, chi.URLParam(r, "nonce"), r.URL.Query().Get("code"))
}

// VerifySubmit: POST /{store}/verify/{nonce}
func (h *Handlers) VerifySubmit(w http.ResponseWriter, r *http.Request) {
	h.verify(w, r, chi.URLParam(r, "nonce"), r.FormValue("code"))
}

// VerifyShort: GET /{store}/v/{blob}
// Link corto de email: el blob base64 trae nonce_id y code juntos.
func (h *Handlers) VerifyShort(w http.ResponseWriter, r *http.Request) {
	params, err := DecodeParams(chi.URLParam(r, "blob"))
	if err != nil {
		WriteError(w, http.StatusBadRequest, "invalid_link", "malformed verification link")
		return
	}
	h.verify(w, r, params["nonce_id"], params["code"])
}

func (h *Handlers) verify(w http.ResponseWriter, r *http.Request, nonceID, code string) {
	st := storeFrom(r.Context())
	res, err := h.Nonces.Verify(r.Context(), st, nonceID, code)
	switch {
	case errors.Is(err, nonce.ErrInvalidCode):
		WriteError(w, http.StatusForbidden, "invalid_code", "the code is not valid")
		return
	case errors.Is(err, nonce.ErrExpiredCode):
		WriteError(w, http.StatusForbidden, "expired_code", "the code has expired")
		return
	case err != nil:
		WriteError(w, http.StatusInternalServerError, "internal_error", err.Error())
		return
	}

	if res.Pending {
		body, err := h.Renderer.Render(r.Context(), st, "verification_form", template.FormatHTML, nil, map[string]any{
			"nonce_id":   res.Nonce.ID,
			"submit_url": h.Cfg.Server.BaseURL + "/" + st.Name + "/verify/" + res.Nonce.ID,
		})
		if err != nil {
			WriteError(w, http.StatusInternalServerError, "template_error", err.Error())
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte(body))
		return
	}

	if res.Transitional {
		key := h.Sessions.Key(w, r)
		if err := h.Sessions.SetTransitional(r.Context(), key, res.User); err != nil {
			WriteError(w, http.StatusInternalServerError, "internal_error", err.Error())
			return
		}
	}
	if h.Metrics != nil {
		h.Metrics.NoncesVerified.WithLabelValues(st.Name).Inc()
	}
	http.Redirect(w, r, res.ReturnURL, http.StatusFound)
}

// DeliveryStatus: GET /{store}/deliveries/{id}
// Proxy del estado de entrega del gateway.
func (h *Handlers) DeliveryStatus(w http.ResponseWriter, r *http.Request) {
	st := storeFrom(r.Context())
	status, err := h.Gateway.DeliveryStatus(r.Context(), st, chi.URLParam(r, "id"))
	if err != nil {
		WriteError(w, http.StatusInternalServerError, "gateway_error", err.Error())
		return
	}
	WriteJSON(w, http.StatusOK, map[string]string{"status": status})
}
