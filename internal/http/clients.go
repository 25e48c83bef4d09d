package http

import (
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/dropDatabas3/vanilla/internal/oauth"
	"github.com/dropDatabas3/vanilla/internal/observability/logger"
	"github.com/dropDatabas3/vanilla/internal/store/core"
)

type clientDTO struct {
	ID                       string    `json:"id"`
	Title                    string    `json:"title"`
	APIKey                   string    `json:"api_key"`
	Secret                   string    `json:"secret"`
	OAuthRedirectURI         string    `json:"oauth_redirect_uri"`
	SkipsAuthorizationDialog bool      `json:"skips_authorization_dialog"`
	CreatedAt                time.Time `json:"created_at"`
	UpdatedAt                time.Time `json:"updated_at"`
}

func toClientDTO(c *core.Client) clientDTO {
	return clientDTO{
		ID:                       c.ID,
		Title:                    c.Title,
		APIKey:                   c.APIKey,
		Secret:                   c.Secret,
		OAuthRedirectURI:         c.OAuthRedirectURI,
		SkipsAuthorizationDialog: c.SkipsAuthorizationDialog,
		CreatedAt:                c.CreatedAt,
		UpdatedAt:                c.UpdatedAt,
	}
}

type clientPayload struct {
	Title                    *string `json:"title"`
	OAuthRedirectURI         *string `json:"oauth_redirect_uri"`
	SkipsAuthorizationDialog *bool   `json:"skips_authorization_dialog"`
}

func applyClientPayload(c *core.Client, in *clientPayload) {
	if in.Title != nil {
		c.Title = *in.Title
	}
	if in.OAuthRedirectURI != nil {
		c.OAuthRedirectURI = *in.OAuthRedirectURI
	}
	if in.SkipsAuthorizationDialog != nil {
		c.SkipsAuthorizationDialog = *in.SkipsAuthorizationDialog
	}
}

func validateClient(c *core.Client) (symbol string) {
	if c.Title == "" {
		return "title_required"
	}
	if c.OAuthRedirectURI == "" {
		return "redirect_uri_required"
	}
	if !oauth.ValidRedirectURI(c, c.OAuthRedirectURI) {
		return "redirect_uri_invalid"
	}
	return ""
}

// ListClients: GET /{store}/clients (god)
func (h *Handlers) ListClients(w http.ResponseWriter, r *http.Request) {
	if !h.requireGod(w, r) {
		return
	}
	st := storeFrom(r.Context())
	clients, err := h.Repo.ListClients(r.Context(), st.ID)
	if err != nil {
		WriteError(w, http.StatusInternalServerError, "internal_error", err.Error())
		return
	}
	out := make([]clientDTO, 0, len(clients))
	for _, c := range clients {
		out = append(out, toClientDTO(c))
	}
	WriteJSON(w, http.StatusOK, map[string]any{"clients": out})
}

// CreateClient: POST /{store}/clients (god)
// Las credenciales se generan acá y se devuelven una única vez completas.
func (h *Handlers) CreateClient(w http.ResponseWriter, r *http.Request) {
	if !h.requireGod(w, r) {
		return
	}
	st := storeFrom(r.Context())
	var in clientPayload
	if !ReadJSON(w, r, &in) {
		return
	}
	c := &core.Client{StoreID: st.ID}
	applyClientPayload(c, &in)
	if sym := validateClient(c); sym != "" {
		WriteError(w, http.StatusBadRequest, sym, "invalid client attributes")
		return
	}
	if err := h.OAuth.RegisterClient(r.Context(), c); err != nil {
		WriteError(w, http.StatusInternalServerError, "internal_error", err.Error())
		return
	}
	logger.From(r.Context()).Info("client registered",
		logger.Store(st.Name), logger.ClientID(c.ID))
	WriteJSON(w, http.StatusCreated, toClientDTO(c))
}

// UpdateClient: PUT /{store}/clients/{id} (god)
func (h *Handlers) UpdateClient(w http.ResponseWriter, r *http.Request) {
	if !h.requireGod(w, r) {
		return
	}
	st := storeFrom(r.Context())
	c, err := h.Repo.GetClient(r.Context(), chi.URLParam(r, "id"))
	if errors.Is(err, core.ErrNotFound) || (err == nil && c.StoreID != st.ID) {
		WriteError(w, http.StatusNotFound, "client_not_found", "unknown client")
		return
	}
	if err != nil {
		WriteError(w, http.StatusInternalServerError, "internal_error", err.Error())
		return
	}
	var in clientPayload
	if !ReadJSON(w, r, &in) {
		return
	}
	applyClientPayload(c, &in)
	if sym := validateClient(c); sym != "" {
		WriteError(w, http.StatusBadRequest, sym, "invalid client attributes")
		return
	}
	if err := h.OAuth.UpdateClient(r.Context(), c); err != nil {
		WriteError(w, http.StatusInternalServerError, "internal_error", err.Error())
		return
	}
	WriteJSON(w, http.StatusOK, toClientDTO(c))
}
