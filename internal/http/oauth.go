package http

import (
	"errors"
	"net/http"
	"net/url"

	"github.com/dropDatabas3/vanilla/internal/oauth"
	"github.com/dropDatabas3/vanilla/internal/store/core"
	"github.com/dropDatabas3/vanilla/internal/template"
)

// writeProtocolError serializa un fallo de protocolo OAuth como body JSON
// {error, error_description, ...echo}.
func writeProtocolError(w http.ResponseWriter, perr *oauth.ProtocolError) {
	out := map[string]any{"error": perr.Code}
	if perr.Description != "" {
		out["error_description"] = perr.Description
	}
	for k, v := range perr.Echo {
		out[k] = v
	}
	status := http.StatusBadRequest
	if perr.Code == oauth.ErrCodeInvalidClient {
		status = http.StatusUnauthorized
	}
	WriteJSON(w, status, out)
}

func (h *Handlers) oauthError(w http.ResponseWriter, err error) {
	var perr *oauth.ProtocolError
	if errors.As(err, &perr) {
		writeProtocolError(w, perr)
		return
	}
	var rerr *oauth.InvalidRedirectURLError
	if errors.As(err, &rerr) {
		WriteError(w, http.StatusBadRequest, "invalid_request", "Invalid redirect URI")
		return
	}
	WriteError(w, http.StatusInternalServerError, "internal_error", err.Error())
}

// Authorize: GET o POST /oauth/authorize
// Arranca el grant flow. Sin usuario autenticado redirige al login del
// tenant llevando la URL actual como return target.
func (h *Handlers) Authorize(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid_request", "malformed parameters")
		return
	}

	var u *core.User
	if r.FormValue("force_dialog") == "true" {
		if key := h.Sessions.PeekKey(r); key != "" {
			if err := h.Sessions.ClearTransitional(r.Context(), key); err != nil {
				WriteError(w, http.StatusInternalServerError, "internal_error", err.Error())
				return
			}
		}
	} else {
		var ok bool
		if u, ok = h.transitionalUser(w, r); !ok {
			return
		}
	}

	res, err := h.OAuth.Authorize(r.Context(), oauth.AuthorizeRequest{
		ClientKey:    r.FormValue("client_id"),
		ResponseType: r.FormValue("response_type"),
		LegacyType:   r.FormValue("type"),
		RedirectURI:  r.FormValue("redirect_uri"),
		Scope:        r.FormValue("scope"),
		State:        r.FormValue("state"),
		User:         u,
	})
	if err != nil {
		h.oauthError(w, err)
		return
	}

	switch res.Kind {
	case oauth.KindRedirect:
		h.countGrant(res)
		http.Redirect(w, r, res.RedirectURL, http.StatusFound)

	case oauth.KindLogin:
		// El return target es este mismo request, sin el force_dialog ya
		// consumido, para retomar el flow después del login.
		next := currentURL(h.Cfg.Server.BaseURL+r.URL.RequestURI(), "force_dialog")
		login := url.Values{}
		login.Set("url", next)
		http.Redirect(w, r, "/"+res.Store.Name+"/auth?"+login.Encode(), http.StatusFound)

	case oauth.KindDialog:
		h.renderDialog(w, r, res)
	}
}

// renderDialog pide el template del diálogo allow/deny al renderer del
// tenant.
func (h *Handlers) renderDialog(w http.ResponseWriter, r *http.Request, res *oauth.AuthorizeResult) {
	d := res.Dialog
	scopes := make(map[string]string, len(d.Scopes))
	for _, sc := range d.Scopes {
		scopes[sc.Name] = sc.Description
	}
	body, err := h.Renderer.Render(r.Context(), res.Store, "authorize", template.FormatHTML, nil, map[string]any{
		"client_title": d.Client.Title,
		"allow_url":    h.Cfg.Server.BaseURL + d.AllowURL,
		"deny_url":     h.Cfg.Server.BaseURL + d.DenyURL,
		"scopes":       scopes,
	})
	if err != nil {
		WriteError(w, http.StatusInternalServerError, "template_error", err.Error())
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write([]byte(body))
}

// countGrant incrementa el counter de emisión solo cuando el redirect lleva
// un token recién minteado: el grant implícito. Un error redirect también es
// KindRedirect y no cuenta; el code flow mintea en el token endpoint y se
// cuenta ahí con su grant_type.
func (h *Handlers) countGrant(res *oauth.AuthorizeResult) {
	if h.Metrics == nil || !res.Granted || !res.Flow.Implicit() {
		return
	}
	h.Metrics.TokensIssued.WithLabelValues("implicit").Inc()
}

// allowRequest arma el AllowRequest común de allow/deny. Requiere un
// transitional user.
func (h *Handlers) allowRequest(w http.ResponseWriter, r *http.Request) (oauth.AllowRequest, bool) {
	u, ok := h.transitionalUser(w, r)
	if !ok {
		return oauth.AllowRequest{}, false
	}
	if u == nil {
		WriteError(w, http.StatusForbidden, "forbidden", "no authenticated user")
		return oauth.AllowRequest{}, false
	}
	if err := r.ParseForm(); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid_request", "malformed parameters")
		return oauth.AllowRequest{}, false
	}
	return oauth.AllowRequest{
		ClientKey:   r.FormValue("client_id"),
		Scope:       r.FormValue("scope"),
		Implicit:    r.FormValue("implicit") == "true",
		State:       r.FormValue("state"),
		RedirectURI: r.FormValue("redirect_uri"),
		User:        u,
	}, true
}

// Allow: POST /oauth/allow
func (h *Handlers) Allow(w http.ResponseWriter, r *http.Request) {
	req, ok := h.allowRequest(w, r)
	if !ok {
		return
	}
	res, err := h.OAuth.Allow(r.Context(), req)
	if err != nil {
		h.oauthError(w, err)
		return
	}
	h.countGrant(res)
	http.Redirect(w, r, res.RedirectURL, http.StatusFound)
}

// Deny: POST /oauth/deny
func (h *Handlers) Deny(w http.ResponseWriter, r *http.Request) {
	req, ok := h.allowRequest(w, r)
	if !ok {
		return
	}
	res, err := h.OAuth.Deny(r.Context(), req)
	if err != nil {
		h.oauthError(w, err)
		return
	}
	http.Redirect(w, r, res.RedirectURL, http.StatusFound)
}

// Token: GET o POST /oauth/token
// El draft viejo del protocolo permite GET, así que se aceptan ambos.
func (h *Handlers) Token(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid_request", "malformed parameters")
		return
	}
	grantType := r.FormValue("grant_type")
	// Alias del draft: type=web_server equivale a authorization_code.
	if r.FormValue("type") == "web_server" {
		grantType = "authorization_code"
	}
	res, err := h.OAuth.Exchange(r.Context(), oauth.TokenRequest{
		GrantType:    grantType,
		ClientKey:    r.FormValue("client_id"),
		ClientSecret: r.FormValue("client_secret"),
		Code:         r.FormValue("code"),
		RedirectURI:  r.FormValue("redirect_uri"),
		RefreshToken: r.FormValue("refresh_token"),
		Scope:        r.FormValue("scope"),
	})
	if err != nil {
		h.oauthError(w, err)
		return
	}
	if h.Metrics != nil {
		h.Metrics.TokensIssued.WithLabelValues(grantType).Inc()
	}
	WriteJSON(w, http.StatusOK, res)
}
