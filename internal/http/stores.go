package http

import (
	"errors"
	"net/http"
	"time"

	"github.com/dropDatabas3/vanilla/internal/observability/logger"
	"github.com/dropDatabas3/vanilla/internal/store/core"
	"github.com/dropDatabas3/vanilla/internal/tenant"
	"github.com/dropDatabas3/vanilla/internal/user"
)

type storeDTO struct {
	ID                 string             `json:"id"`
	Name               string             `json:"name"`
	DefaultURL         string             `json:"default_url"`
	TemplateURL        string             `json:"template_url"`
	Scopes             []core.Scope       `json:"scopes,omitempty"`
	UserNameMinLength  int                `json:"user_name_min_length,omitempty"`
	UserNameMaxLength  int                `json:"user_name_max_length,omitempty"`
	UserNamePattern    string             `json:"user_name_pattern,omitempty"`
	DefaultSenderEmail string             `json:"default_sender_email,omitempty"`
	LoginMethods       []core.LoginMethod `json:"login_methods,omitempty"`
	CreatedAt          time.Time          `json:"created_at"`
	UpdatedAt          time.Time          `json:"updated_at"`
}

// El secret y la gateway session nunca salen por la API.
func toStoreDTO(st *core.Store) storeDTO {
	return storeDTO{
		ID:                 st.ID,
		Name:               st.Name,
		DefaultURL:         st.DefaultURL,
		TemplateURL:        st.TemplateURL,
		Scopes:             st.Scopes,
		UserNameMinLength:  st.UserNameMinLength,
		UserNameMaxLength:  st.UserNameMaxLength,
		UserNamePattern:    st.UserNamePattern,
		DefaultSenderEmail: st.DefaultSenderEmail,
		LoginMethods:       st.LoginMethods,
		CreatedAt:          st.CreatedAt,
		UpdatedAt:          st.UpdatedAt,
	}
}

type storePayload struct {
	Name               *string             `json:"name"`
	DefaultURL         *string             `json:"default_url"`
	TemplateURL        *string             `json:"template_url"`
	Scopes             *[]core.Scope       `json:"scopes"`
	UserNameMinLength  *int                `json:"user_name_min_length"`
	UserNameMaxLength  *int                `json:"user_name_max_length"`
	UserNamePattern    *string             `json:"user_name_pattern"`
	DefaultSenderEmail *string             `json:"default_sender_email"`
	LoginMethods       *[]core.LoginMethod `json:"login_methods"`
	GatewaySession     *string             `json:"gateway_session"`
}

func applyStorePayload(st *core.Store, in *storePayload) {
	if in.Name != nil {
		st.Name = *in.Name
	}
	if in.DefaultURL != nil {
		st.DefaultURL = *in.DefaultURL
	}
	if in.TemplateURL != nil {
		st.TemplateURL = *in.TemplateURL
	}
	if in.Scopes != nil {
		st.Scopes = *in.Scopes
	}
	if in.UserNameMinLength != nil {
		st.UserNameMinLength = *in.UserNameMinLength
	}
	if in.UserNameMaxLength != nil {
		st.UserNameMaxLength = *in.UserNameMaxLength
	}
	if in.UserNamePattern != nil {
		st.UserNamePattern = *in.UserNamePattern
	}
	if in.DefaultSenderEmail != nil {
		st.DefaultSenderEmail = *in.DefaultSenderEmail
	}
	if in.LoginMethods != nil {
		st.LoginMethods = *in.LoginMethods
	}
	if in.GatewaySession != nil {
		st.GatewaySession = *in.GatewaySession
	}
}

func storeFieldErrors(errs []tenant.ValidationError) []user.FieldError {
	out := make([]user.FieldError, 0, len(errs))
	for _, e := range errs {
		out = append(out, user.FieldError{Field: e.Field, Symbol: e.Symbol})
	}
	return out
}

// ListStores: GET /stores (god)
func (h *Handlers) ListStores(w http.ResponseWriter, r *http.Request) {
	if !h.requireGod(w, r) {
		return
	}
	stores, err := h.Tenants.List(r.Context())
	if err != nil {
		WriteError(w, http.StatusInternalServerError, "internal_error", err.Error())
		return
	}
	out := make([]storeDTO, 0, len(stores))
	for _, st := range stores {
		out = append(out, toStoreDTO(st))
	}
	WriteJSON(w, http.StatusOK, map[string]any{"stores": out})
}

// GetStore: GET /{store} (god)
func (h *Handlers) GetStore(w http.ResponseWriter, r *http.Request) {
	if !h.requireGod(w, r) {
		return
	}
	WriteJSON(w, http.StatusOK, toStoreDTO(storeFrom(r.Context())))
}

// CreateStore: POST /stores (god)
func (h *Handlers) CreateStore(w http.ResponseWriter, r *http.Request) {
	if !h.requireGod(w, r) {
		return
	}
	var in storePayload
	if !ReadJSON(w, r, &in) {
		return
	}
	st := &core.Store{}
	applyStorePayload(st, &in)
	tenant.EnsureSecret(st)
	if errs := tenant.ValidateStore(st); len(errs) > 0 {
		WriteValidationErrors(w, storeFieldErrors(errs))
		return
	}
	if err := h.Tenants.Create(r.Context(), st); err != nil {
		if errors.Is(err, core.ErrConflict) {
			WriteError(w, http.StatusConflict, "name_in_use", "a store with that name already exists")
			return
		}
		WriteError(w, http.StatusInternalServerError, "internal_error", err.Error())
		return
	}
	logger.From(r.Context()).Info("store created", logger.Store(st.Name))
	WriteJSON(w, http.StatusCreated, toStoreDTO(st))
}

// UpdateStore: PUT /{store} (god)
func (h *Handlers) UpdateStore(w http.ResponseWriter, r *http.Request) {
	if !h.requireGod(w, r) {
		return
	}
	st := storeFrom(r.Context())
	var in storePayload
	if !ReadJSON(w, r, &in) {
		return
	}
	// Se trabaja sobre una copia: el valor del contexto puede venir del
	// cache del tenant service.
	updated := *st
	applyStorePayload(&updated, &in)
	if errs := tenant.ValidateStore(&updated); len(errs) > 0 {
		WriteValidationErrors(w, storeFieldErrors(errs))
		return
	}
	if err := h.Tenants.Update(r.Context(), &updated); err != nil {
		if errors.Is(err, core.ErrConflict) {
			WriteError(w, http.StatusConflict, "name_in_use", "a store with that name already exists")
			return
		}
		WriteError(w, http.StatusInternalServerError, "internal_error", err.Error())
		return
	}
	// Si cambió el nombre, el cache quedó con la entrada vieja.
	if updated.Name != st.Name {
		h.Tenants.Invalidate(st.Name)
	}
	logger.From(r.Context()).Info("store updated", logger.Store(updated.Name))
	WriteJSON(w, http.StatusOK, toStoreDTO(&updated))
}
