package oauth

import (
	"context"
	"errors"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/dropDatabas3/vanilla/internal/store/core"
	"github.com/dropDatabas3/vanilla/internal/store/memory"
)

type fixture struct {
	repo   *memory.Store
	svc    *Service
	store  *core.Store
	client *core.Client
	user   *core.User
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	repo := memory.New()
	st := &core.Store{
		Name:        "acme",
		DefaultURL:  "https://acme.example/",
		TemplateURL: "https://templates.example/acme",
		Secret:      "s3cret",
		Scopes: []core.Scope{
			{Name: "basic", Description: "read your profile"},
			{Name: "email", Description: "read your email"},
		},
	}
	if err := repo.CreateStore(ctx, st); err != nil {
		t.Fatal(err)
	}
	u := &core.User{StoreID: st.ID, Name: "rick deckard", Activated: true}
	if err := repo.CreateUser(ctx, u); err != nil {
		t.Fatal(err)
	}
	svc := NewService(repo)
	c := &core.Client{
		StoreID:          st.ID,
		Title:            "Esper",
		OAuthRedirectURI: "https://esper.example/cb",
	}
	if err := svc.RegisterClient(ctx, c); err != nil {
		t.Fatal(err)
	}
	return &fixture{repo: repo, svc: svc, store: st, client: c, user: u}
}

func redirectQuery(t *testing.T, rawurl string) url.Values {
	t.Helper()
	u, err := url.Parse(rawurl)
	if err != nil {
		t.Fatalf("parse %q: %v", rawurl, err)
	}
	return u.Query()
}

func TestRegisterClientGeneratesCredentials(t *testing.T) {
	f := newFixture(t)
	if f.client.APIKey == "" || f.client.Secret == "" {
		t.Fatal("credentials not generated")
	}
	if f.client.APIKey == f.client.Secret {
		t.Fatal("api key and secret must differ")
	}
}

func TestAuthorizeUnknownClient(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.Authorize(context.Background(), AuthorizeRequest{ClientKey: "ghost", ResponseType: "code"})
	var perr *ProtocolError
	if !errors.As(err, &perr) || perr.Code != ErrCodeInvalidClient {
		t.Fatalf("want invalid_client, got %v", err)
	}
}

func TestAuthorizeInvalidRedirectErrorRedirects(t *testing.T) {
	f := newFixture(t)
	res, err := f.svc.Authorize(context.Background(), AuthorizeRequest{
		ClientKey:    f.client.APIKey,
		ResponseType: "code",
		RedirectURI:  "https://evil.example/cb",
		State:        "s1",
		User:         f.user,
	})
	if err != nil {
		t.Fatal(err)
	}
	if res.Kind != KindRedirect {
		t.Fatalf("kind = %v", res.Kind)
	}
	if !strings.HasPrefix(res.RedirectURL, "https://esper.example/cb") {
		t.Fatalf("error redirect must go to the registered uri: %q", res.RedirectURL)
	}
	q := redirectQuery(t, res.RedirectURL)
	if q.Get("error") != ErrCodeInvalidRequest || q.Get("state") != "s1" {
		t.Fatalf("params = %v", q)
	}
}

func TestAuthorizeUnsupportedResponseType(t *testing.T) {
	f := newFixture(t)
	res, err := f.svc.Authorize(context.Background(), AuthorizeRequest{
		ClientKey:    f.client.APIKey,
		ResponseType: "id_token",
		User:         f.user,
	})
	if err != nil {
		t.Fatal(err)
	}
	q := redirectQuery(t, res.RedirectURL)
	if q.Get("error") != ErrCodeUnsupportedResponseType {
		t.Fatalf("params = %v", q)
	}
}

func TestAuthorizeAnonymousGoesToLogin(t *testing.T) {
	f := newFixture(t)
	res, err := f.svc.Authorize(context.Background(), AuthorizeRequest{
		ClientKey:    f.client.APIKey,
		ResponseType: "code",
	})
	if err != nil {
		t.Fatal(err)
	}
	if res.Kind != KindLogin {
		t.Fatalf("kind = %v", res.Kind)
	}
	if res.Store == nil || res.Store.Name != "acme" {
		t.Fatal("login redirect needs the resolved store")
	}
}

func TestAuthorizeShowsDialog(t *testing.T) {
	f := newFixture(t)
	res, err := f.svc.Authorize(context.Background(), AuthorizeRequest{
		ClientKey:    f.client.APIKey,
		ResponseType: "code",
		Scope:        "email",
		State:        "xyz",
		User:         f.user,
	})
	if err != nil {
		t.Fatal(err)
	}
	if res.Kind != KindDialog {
		t.Fatalf("kind = %v", res.Kind)
	}
	d := res.Dialog
	if len(d.Scopes) != 1 || d.Scopes[0].Name != "email" || d.Scopes[0].Description != "read your email" {
		t.Fatalf("dialog scopes = %v", d.Scopes)
	}
	for _, raw := range []string{d.AllowURL, d.DenyURL} {
		u, err := url.Parse(raw)
		if err != nil {
			t.Fatal(err)
		}
		q := u.Query()
		if q.Get("client_id") != f.client.APIKey || q.Get("scope") != "email" || q.Get("state") != "xyz" {
			t.Fatalf("dialog url %q missing params", raw)
		}
	}
}

func TestAuthorizeUnknownScopeFallsBackToDefault(t *testing.T) {
	f := newFixture(t)
	res, err := f.svc.Authorize(context.Background(), AuthorizeRequest{
		ClientKey:    f.client.APIKey,
		ResponseType: "code",
		Scope:        "nonsense",
		User:         f.user,
	})
	if err != nil {
		t.Fatal(err)
	}
	if res.Kind != KindDialog {
		t.Fatalf("kind = %v", res.Kind)
	}
	if len(res.Dialog.Scopes) != 1 || res.Dialog.Scopes[0].Name != "basic" {
		t.Fatalf("scopes = %v", res.Dialog.Scopes)
	}
}

func TestSkipDialogGrantsImmediately(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.client.SkipsAuthorizationDialog = true
	if err := f.svc.UpdateClient(ctx, f.client); err != nil {
		t.Fatal(err)
	}
	res, err := f.svc.Authorize(ctx, AuthorizeRequest{
		ClientKey:    f.client.APIKey,
		ResponseType: "code",
		Scope:        "basic",
		State:        "s",
		User:         f.user,
	})
	if err != nil {
		t.Fatal(err)
	}
	if res.Kind != KindRedirect {
		t.Fatalf("kind = %v", res.Kind)
	}
	q := redirectQuery(t, res.RedirectURL)
	if q.Get("code") == "" || q.Get("state") != "s" {
		t.Fatalf("params = %v", q)
	}
}

func TestExistingMatchingAuthorizationSkipsDialog(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	first, err := f.svc.Allow(ctx, AllowRequest{
		ClientKey: f.client.APIKey, Scope: "basic", User: f.user,
	})
	if err != nil {
		t.Fatal(err)
	}
	firstCode := redirectQuery(t, first.RedirectURL).Get("code")

	res, err := f.svc.Authorize(ctx, AuthorizeRequest{
		ClientKey:    f.client.APIKey,
		ResponseType: "code",
		Scope:        "basic",
		User:         f.user,
	})
	if err != nil {
		t.Fatal(err)
	}
	if res.Kind != KindRedirect {
		t.Fatalf("existing grant should auto-grant, kind = %v", res.Kind)
	}
	newCode := redirectQuery(t, res.RedirectURL).Get("code")
	if newCode == "" || newCode == firstCode {
		t.Fatal("auto-grant must regenerate the code")
	}
}

func TestExistingAuthorizationWithDifferentScopesFallsToDialog(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	if _, err := f.svc.Allow(ctx, AllowRequest{ClientKey: f.client.APIKey, Scope: "basic", User: f.user}); err != nil {
		t.Fatal(err)
	}
	res, err := f.svc.Authorize(ctx, AuthorizeRequest{
		ClientKey:    f.client.APIKey,
		ResponseType: "code",
		Scope:        "basic,email",
		User:         f.user,
	})
	if err != nil {
		t.Fatal(err)
	}
	if res.Kind != KindDialog {
		t.Fatalf("scope widening must re-ask, kind = %v", res.Kind)
	}
	// El grant viejo fue descartado.
	if _, err := f.repo.GetAuthorizationByUserClient(ctx, f.user.ID, f.client.ID); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("stale authorization should be gone, got %v", err)
	}
}

func TestDenyRedirectsWithAccessDenied(t *testing.T) {
	f := newFixture(t)
	res, err := f.svc.Deny(context.Background(), AllowRequest{
		ClientKey: f.client.APIKey, State: "s9", User: f.user,
	})
	if err != nil {
		t.Fatal(err)
	}
	q := redirectQuery(t, res.RedirectURL)
	if q.Get("error") != ErrCodeAccessDenied || q.Get("state") != "s9" {
		t.Fatalf("params = %v", q)
	}
	if q.Get("error_description") == "" {
		t.Fatal("deny should carry a human readable description")
	}
}

func TestDenyImplicitUsesFragment(t *testing.T) {
	f := newFixture(t)
	res, err := f.svc.Deny(context.Background(), AllowRequest{
		ClientKey: f.client.APIKey, Implicit: true, User: f.user,
	})
	if err != nil {
		t.Fatal(err)
	}
	_, frag, ok := strings.Cut(res.RedirectURL, "#")
	if !ok {
		t.Fatalf("implicit deny must use the fragment: %q", res.RedirectURL)
	}
	vals, _ := url.ParseQuery(frag)
	if vals.Get("error") != ErrCodeAccessDenied {
		t.Fatalf("fragment = %q", frag)
	}
}

func TestImplicitAllowPutsTokenInFragment(t *testing.T) {
	f := newFixture(t)
	res, err := f.svc.Allow(context.Background(), AllowRequest{
		ClientKey: f.client.APIKey, Scope: "basic", Implicit: true, State: "st", User: f.user,
	})
	if err != nil {
		t.Fatal(err)
	}
	base, frag, ok := strings.Cut(res.RedirectURL, "#")
	if !ok {
		t.Fatalf("no fragment in %q", res.RedirectURL)
	}
	if strings.Contains(base, "access_token") {
		t.Fatal("token leaked into the query string")
	}
	vals, _ := url.ParseQuery(frag)
	if vals.Get("access_token") == "" || vals.Get("token_type") != "bearer" || vals.Get("state") != "st" {
		t.Fatalf("fragment = %q", frag)
	}
	// El fragment lleva el set completo del token endpoint.
	if vals.Get("refresh_token") == "" {
		t.Fatalf("fragment without refresh_token: %q", frag)
	}
	if vals.Get("scope") != "basic" {
		t.Fatalf("scope = %q", vals.Get("scope"))
	}
	// El token quedó persistido y resoluble.
	if _, err := f.repo.GetTokenByAccess(context.Background(), vals.Get("access_token")); err != nil {
		t.Fatalf("issued token not resolvable: %v", err)
	}
}

func allowAndGetCode(t *testing.T, f *fixture) string {
	t.Helper()
	res, err := f.svc.Allow(context.Background(), AllowRequest{
		ClientKey: f.client.APIKey, Scope: "basic,email", User: f.user,
	})
	if err != nil {
		t.Fatal(err)
	}
	code := redirectQuery(t, res.RedirectURL).Get("code")
	if code == "" {
		t.Fatal("no code issued")
	}
	return code
}

func TestExchangeAuthorizationCode(t *testing.T) {
	f := newFixture(t)
	code := allowAndGetCode(t, f)

	resp, err := f.svc.Exchange(context.Background(), TokenRequest{
		GrantType:    "authorization_code",
		ClientKey:    f.client.APIKey,
		ClientSecret: f.client.Secret,
		Code:         code,
	})
	if err != nil {
		t.Fatal(err)
	}
	if resp.AccessToken == "" || resp.RefreshToken == "" {
		t.Fatalf("resp = %+v", resp)
	}
	if resp.TokenType != "bearer" {
		t.Fatalf("token_type = %q", resp.TokenType)
	}
	if resp.Scope != "basic,email" {
		t.Fatalf("scope = %q", resp.Scope)
	}
}

func TestExchangeIsSingleUse(t *testing.T) {
	f := newFixture(t)
	code := allowAndGetCode(t, f)
	req := TokenRequest{
		GrantType:    "authorization_code",
		ClientKey:    f.client.APIKey,
		ClientSecret: f.client.Secret,
		Code:         code,
	}
	if _, err := f.svc.Exchange(context.Background(), req); err != nil {
		t.Fatal(err)
	}
	_, err := f.svc.Exchange(context.Background(), req)
	var perr *ProtocolError
	if !errors.As(err, &perr) || perr.Code != ErrCodeInvalidGrant {
		t.Fatalf("replayed code must fail with invalid_grant, got %v", err)
	}
}

func TestExchangeValidatesClientSecretFirst(t *testing.T) {
	f := newFixture(t)
	code := allowAndGetCode(t, f)
	_, err := f.svc.Exchange(context.Background(), TokenRequest{
		GrantType:    "authorization_code",
		ClientKey:    f.client.APIKey,
		ClientSecret: "wrong",
		Code:         code,
	})
	var perr *ProtocolError
	if !errors.As(err, &perr) || perr.Code != ErrCodeInvalidClient {
		t.Fatalf("want invalid_client, got %v", err)
	}
}

func TestExchangeExpiredCode(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	code := allowAndGetCode(t, f)

	auth, err := f.repo.GetAuthorizationByClientCode(ctx, f.client.ID, code)
	if err != nil {
		t.Fatal(err)
	}
	auth.CodeExpiresAt = time.Now().Add(-time.Minute)
	if err := f.repo.UpdateAuthorization(ctx, auth); err != nil {
		t.Fatal(err)
	}

	_, err = f.svc.Exchange(ctx, TokenRequest{
		GrantType:    "authorization_code",
		ClientKey:    f.client.APIKey,
		ClientSecret: f.client.Secret,
		Code:         code,
	})
	var perr *ProtocolError
	if !errors.As(err, &perr) || perr.Code != ErrCodeInvalidGrant {
		t.Fatalf("want invalid_grant, got %v", err)
	}
}

func TestExchangeMissingGrantType(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.Exchange(context.Background(), TokenRequest{
		ClientKey:    f.client.APIKey,
		ClientSecret: f.client.Secret,
	})
	var perr *ProtocolError
	if !errors.As(err, &perr) || perr.Code != ErrCodeUnsupportedGrantType {
		t.Fatalf("want unsupported_grant_type, got %v", err)
	}
}

func TestRefreshTokenGrant(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	code := allowAndGetCode(t, f)
	first, err := f.svc.Exchange(ctx, TokenRequest{
		GrantType:    "authorization_code",
		ClientKey:    f.client.APIKey,
		ClientSecret: f.client.Secret,
		Code:         code,
	})
	if err != nil {
		t.Fatal(err)
	}

	second, err := f.svc.Exchange(ctx, TokenRequest{
		GrantType:    "refresh_token",
		ClientKey:    f.client.APIKey,
		ClientSecret: f.client.Secret,
		RefreshToken: first.RefreshToken,
	})
	if err != nil {
		t.Fatal(err)
	}
	if second.AccessToken == first.AccessToken || second.RefreshToken == first.RefreshToken {
		t.Fatal("refresh must rotate both values")
	}
	if second.Scope != first.Scope {
		t.Fatalf("refresh changed scope: %q vs %q", second.Scope, first.Scope)
	}

	// El refresh token viejo ya no sirve.
	_, err = f.svc.Exchange(ctx, TokenRequest{
		GrantType:    "refresh_token",
		ClientKey:    f.client.APIKey,
		ClientSecret: f.client.Secret,
		RefreshToken: first.RefreshToken,
	})
	var perr *ProtocolError
	if !errors.As(err, &perr) || perr.Code != ErrCodeInvalidRequest {
		t.Fatalf("stale refresh token: %v", err)
	}
}

func TestRefreshScopeSubsetCheck(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	code := allowAndGetCode(t, f)
	first, err := f.svc.Exchange(ctx, TokenRequest{
		GrantType:    "authorization_code",
		ClientKey:    f.client.APIKey,
		ClientSecret: f.client.Secret,
		Code:         code,
	})
	if err != nil {
		t.Fatal(err)
	}

	second, err := f.svc.Exchange(ctx, TokenRequest{
		GrantType:    "refresh_token",
		ClientKey:    f.client.APIKey,
		ClientSecret: f.client.Secret,
		RefreshToken: first.RefreshToken,
		Scope:        "basic",
	})
	if err != nil {
		t.Fatalf("subset scope must pass: %v", err)
	}

	_, err = f.svc.Exchange(ctx, TokenRequest{
		GrantType:    "refresh_token",
		ClientKey:    f.client.APIKey,
		ClientSecret: f.client.Secret,
		RefreshToken: second.RefreshToken,
		Scope:        "basic,email,admin",
	})
	var perr *ProtocolError
	if !errors.As(err, &perr) || perr.Code != ErrCodeInvalidScope {
		t.Fatalf("scope excess must fail with invalid_scope, got %v", err)
	}
}
