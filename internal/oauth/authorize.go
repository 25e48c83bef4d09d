// Package oauth implementa el subset draft-era del protocolo: authorization
// code, implicit grant y refresh token, con el registro de clients y la
// validación de redirect URIs.
package oauth

import (
	"context"
	"errors"
	"net/url"
	"strings"
	"time"

	"github.com/dropDatabas3/vanilla/internal/observability/logger"
	"github.com/dropDatabas3/vanilla/internal/security/token"
	"github.com/dropDatabas3/vanilla/internal/store/core"
	"github.com/dropDatabas3/vanilla/internal/tenant"
	"github.com/dropDatabas3/vanilla/internal/validation"
)

// CodeTTL es la ventana para intercambiar un authorization code.
const CodeTTL = 10 * time.Minute

// Service maneja el ciclo authorize/allow/deny/exchange.
type Service struct {
	repo core.Repository
	now  func() time.Time
}

func NewService(repo core.Repository) *Service {
	return &Service{repo: repo, now: time.Now}
}

// NewCode regenera el código de una authorization y reinicia su ventana.
func (s *Service) NewCode(a *core.Authorization) {
	a.Code = token.Code()
	a.CodeExpiresAt = s.now().Add(CodeTTL)
}

// AuthorizeRequest son los params del endpoint /oauth/authorize ya
// extraídos del HTTP request. User es el transitional user de la sesión,
// nil si nadie está autenticado.
type AuthorizeRequest struct {
	ClientKey    string
	ResponseType string
	LegacyType   string
	RedirectURI  string
	Scope        string
	State        string
	User         *core.User
}

// ResultKind distingue los desenlaces de Authorize.
type ResultKind int

const (
	// KindRedirect manda al user agent a RedirectURL (grant o error).
	KindRedirect ResultKind = iota
	// KindLogin requiere autenticación previa en el login del tenant.
	KindLogin
	// KindDialog muestra el diálogo allow/deny.
	KindDialog
)

// Dialog son las variables del diálogo de autorización.
type Dialog struct {
	Store  *core.Store
	Client *core.Client
	// Scopes son los solicitados, con descripción para mostrar.
	Scopes   []core.Scope
	AllowURL string
	DenyURL  string
	Flow     Flow
	State    string
}

// AuthorizeResult es el desenlace del endpoint authorize.
type AuthorizeResult struct {
	Kind        ResultKind
	RedirectURL string
	Dialog      *Dialog
	Store       *core.Store
	Client      *core.Client
	// Granted distingue un grant real de un error redirect (ambos son
	// KindRedirect). Flow solo es significativo cuando Granted es true.
	Granted bool
	Flow    Flow
}

// Authorize corre el arranque del grant flow. Un client desconocido es un
// *ProtocolError (respuesta JSON); los demás errores de protocolo vuelven
// como KindRedirect hacia el client con los params de error.
func (s *Service) Authorize(ctx context.Context, req AuthorizeRequest) (*AuthorizeResult, error) {
	client, err := s.repo.GetClientByAPIKey(ctx, req.ClientKey)
	if errors.Is(err, core.ErrNotFound) {
		return nil, protocolErr(ErrCodeInvalidClient, "unknown client")
	}
	if err != nil {
		return nil, err
	}
	st, err := s.repo.GetStore(ctx, client.StoreID)
	if err != nil {
		return nil, err
	}

	if !ValidRedirectURI(client, req.RedirectURI) {
		return s.errorRedirect(client, "", FlowAuthorizationCode, ErrCodeInvalidRequest,
			"redirect_uri is not valid for this client", req.State, st, client)
	}
	flow, ok := ParseFlow(req.ResponseType, req.LegacyType)
	if !ok {
		return s.errorRedirect(client, req.RedirectURI, FlowAuthorizationCode, ErrCodeUnsupportedResponseType,
			"response_type not supported", req.State, st, client)
	}

	if req.User == nil {
		return &AuthorizeResult{Kind: KindLogin, Store: st, Client: client}, nil
	}

	scopes := tenant.ParseScopes(st, req.Scope)

	existing, err := s.repo.GetAuthorizationByUserClient(ctx, req.User.ID, client.ID)
	if err != nil && !errors.Is(err, core.ErrNotFound) {
		return nil, err
	}
	if existing != nil {
		if validation.MatchScope(existing.Scopes, scopes...) {
			s.NewCode(existing)
			if err := s.repo.UpdateAuthorization(ctx, existing); err != nil {
				return nil, err
			}
			return s.grant(ctx, flow, st, client, existing, req.RedirectURI, req.State)
		}
		// Los scopes cambiaron: el grant viejo no sirve.
		if err := s.repo.DeleteAuthorization(ctx, existing.ID); err != nil {
			return nil, err
		}
	}

	if client.SkipsAuthorizationDialog {
		auth, err := s.createAuthorization(ctx, req.User, client, scopes, req.RedirectURI)
		if err != nil {
			return nil, err
		}
		return s.grant(ctx, flow, st, client, auth, req.RedirectURI, req.State)
	}

	return &AuthorizeResult{
		Kind:   KindDialog,
		Store:  st,
		Client: client,
		Dialog: s.buildDialog(st, client, flow, scopes, req),
	}, nil
}

func (s *Service) buildDialog(st *core.Store, client *core.Client, flow Flow, scopes []string, req AuthorizeRequest) *Dialog {
	described := make([]core.Scope, 0, len(scopes))
	for _, name := range scopes {
		described = append(described, core.Scope{Name: name, Description: tenant.ScopeDescription(st, name)})
	}
	params := url.Values{}
	params.Set("client_id", client.APIKey)
	params.Set("scope", strings.Join(scopes, ","))
	if flow.Implicit() {
		params.Set("implicit", "true")
	}
	if req.State != "" {
		params.Set("state", req.State)
	}
	if req.RedirectURI != "" {
		params.Set("redirect_uri", req.RedirectURI)
	}
	return &Dialog{
		Store:    st,
		Client:   client,
		Scopes:   described,
		AllowURL: "/oauth/allow?" + params.Encode(),
		DenyURL:  "/oauth/deny?" + params.Encode(),
		Flow:     flow,
		State:    req.State,
	}
}

func (s *Service) createAuthorization(ctx context.Context, u *core.User, client *core.Client, scopes []string, candidateURI string) (*core.Authorization, error) {
	if len(scopes) == 0 {
		return nil, core.ErrInvalid
	}
	redirect := candidateURI
	if redirect == "" {
		redirect = client.OAuthRedirectURI
	}
	auth := &core.Authorization{
		UserID:      u.ID,
		ClientID:    client.ID,
		RedirectURL: redirect,
		Scopes:      scopes,
	}
	s.NewCode(auth)
	if err := s.repo.CreateAuthorization(ctx, auth); err != nil {
		return nil, err
	}
	return auth, nil
}

// grant redirige al client con el code (code flow) o emite el access token
// inmediatamente en el fragment (implicit).
func (s *Service) grant(ctx context.Context, flow Flow, st *core.Store, client *core.Client, auth *core.Authorization, candidateURI, state string) (*AuthorizeResult, error) {
	if flow.Implicit() {
		t := &core.Token{
			UserID:            auth.UserID,
			ClientID:          auth.ClientID,
			AuthorizationCode: auth.Code,
			AccessToken:       token.Secret(),
			RefreshToken:      token.Secret(),
			Scopes:            auth.Scopes,
		}
		if err := s.repo.ExchangeToken(ctx, auth, t); err != nil {
			return nil, err
		}
		// El fragment lleva los mismos campos que el token endpoint.
		params := url.Values{}
		params.Set("access_token", t.AccessToken)
		params.Set("token_type", "bearer")
		params.Set("refresh_token", t.RefreshToken)
		params.Set("scope", strings.Join(t.Scopes, ","))
		if state != "" {
			params.Set("state", state)
		}
		target, err := MergeFragment(client, candidateURI, params)
		if err != nil {
			return nil, err
		}
		logger.From(ctx).Info("implicit grant issued",
			logger.Store(st.Name), logger.ClientID(client.ID), logger.UserID(auth.UserID),
			logger.Flow(string(flow)))
		return &AuthorizeResult{Kind: KindRedirect, RedirectURL: target, Store: st, Client: client, Granted: true, Flow: flow}, nil
	}

	params := url.Values{}
	params.Set("code", auth.Code)
	if state != "" {
		params.Set("state", state)
	}
	target, err := MergeRedirectURL(client, candidateURI, params)
	if err != nil {
		return nil, err
	}
	logger.From(ctx).Info("authorization code issued",
		logger.Store(st.Name), logger.ClientID(client.ID), logger.UserID(auth.UserID),
		logger.Flow(string(flow)))
	return &AuthorizeResult{Kind: KindRedirect, RedirectURL: target, Store: st, Client: client, Granted: true, Flow: flow}, nil
}

func (s *Service) errorRedirect(client *core.Client, candidateURI string, flow Flow, code, description, state string, st *core.Store, c *core.Client) (*AuthorizeResult, error) {
	params := url.Values{}
	params.Set("error", code)
	if description != "" {
		params.Set("error_description", description)
	}
	if state != "" {
		params.Set("state", state)
	}
	var target string
	var err error
	if flow.Implicit() {
		target, err = MergeFragment(client, candidateURI, params)
	} else {
		target, err = MergeRedirectURL(client, candidateURI, params)
	}
	if err != nil {
		return nil, err
	}
	return &AuthorizeResult{Kind: KindRedirect, RedirectURL: target, Store: st, Client: c}, nil
}

// AllowRequest son los params del endpoint allow ya autenticado.
type AllowRequest struct {
	ClientKey   string
	Scope       string
	Implicit    bool
	State       string
	RedirectURI string
	User        *core.User
}

// Allow crea una authorization nueva con los scopes enviados y concede
// según el flow.
func (s *Service) Allow(ctx context.Context, req AllowRequest) (*AuthorizeResult, error) {
	client, err := s.repo.GetClientByAPIKey(ctx, req.ClientKey)
	if errors.Is(err, core.ErrNotFound) {
		return nil, protocolErr(ErrCodeInvalidClient, "unknown client")
	}
	if err != nil {
		return nil, err
	}
	st, err := s.repo.GetStore(ctx, client.StoreID)
	if err != nil {
		return nil, err
	}
	scopes := tenant.ParseScopes(st, req.Scope)

	// El grant viejo se reemplaza entero.
	if existing, err := s.repo.GetAuthorizationByUserClient(ctx, req.User.ID, client.ID); err == nil {
		if err := s.repo.DeleteAuthorization(ctx, existing.ID); err != nil {
			return nil, err
		}
	} else if !errors.Is(err, core.ErrNotFound) {
		return nil, err
	}

	auth, err := s.createAuthorization(ctx, req.User, client, scopes, req.RedirectURI)
	if err != nil {
		return nil, err
	}
	flow := FlowAuthorizationCode
	if req.Implicit {
		flow = FlowImplicitGrant
	}
	return s.grant(ctx, flow, st, client, auth, req.RedirectURI, req.State)
}

// Deny redirige al client con access_denied.
func (s *Service) Deny(ctx context.Context, req AllowRequest) (*AuthorizeResult, error) {
	client, err := s.repo.GetClientByAPIKey(ctx, req.ClientKey)
	if errors.Is(err, core.ErrNotFound) {
		return nil, protocolErr(ErrCodeInvalidClient, "unknown client")
	}
	if err != nil {
		return nil, err
	}
	st, err := s.repo.GetStore(ctx, client.StoreID)
	if err != nil {
		return nil, err
	}
	flow := FlowAuthorizationCode
	if req.Implicit {
		flow = FlowImplicitGrant
	}
	return s.errorRedirect(client, req.RedirectURI, flow, ErrCodeAccessDenied,
		"The user denied your request", req.State, st, client)
}
