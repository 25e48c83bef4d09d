package session

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/dropDatabas3/vanilla/internal/cache"
	"github.com/dropDatabas3/vanilla/internal/store/core"
	"github.com/dropDatabas3/vanilla/internal/store/memory"
)

func newManager() *Manager {
	return NewManager(cache.NewMemory(""), Config{})
}

func TestKeyCreatesCookieOnce(t *testing.T) {
	m := newManager()
	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	key := m.Key(w, r)
	if key == "" {
		t.Fatal("no key")
	}
	cookies := w.Result().Cookies()
	if len(cookies) != 1 || cookies[0].Value != key {
		t.Fatalf("cookies = %v", cookies)
	}

	// Con cookie presente se reusa la key sin re-setear.
	r2 := httptest.NewRequest(http.MethodGet, "/", nil)
	r2.AddCookie(cookies[0])
	w2 := httptest.NewRecorder()
	if got := m.Key(w2, r2); got != key {
		t.Fatalf("key changed: %q", got)
	}
	if len(w2.Result().Cookies()) != 0 {
		t.Fatal("cookie re-set on existing session")
	}
}

func TestTransitionalRoundTrip(t *testing.T) {
	m := newManager()
	ctx := context.Background()
	u := &core.User{ID: "u-1"}

	if err := m.SetTransitional(ctx, "sess-1", u); err != nil {
		t.Fatal(err)
	}
	got, err := m.Transitional(ctx, "sess-1")
	if err != nil {
		t.Fatal(err)
	}
	if got != "u-1" {
		t.Fatalf("got %q", got)
	}

	// Setear nil limpia.
	if err := m.SetTransitional(ctx, "sess-1", nil); err != nil {
		t.Fatal(err)
	}
	got, err = m.Transitional(ctx, "sess-1")
	if err != nil || got != "" {
		t.Fatalf("after clear: %q, %v", got, err)
	}
}

func TestTransitionalStaleSessionDiscarded(t *testing.T) {
	m := newManager()
	ctx := context.Background()

	// Estado grabado bajo otra session key: colisión artificial en la key
	// de cache para simular una sesión stale.
	raw, _ := json.Marshal(transitionalState{UserID: "u-1", SessionKey: "old"})
	if err := m.cache.Set(ctx, transitionalCacheKey("new"), string(raw), 0); err != nil {
		t.Fatal(err)
	}
	got, err := m.Transitional(ctx, "new")
	if err != nil {
		t.Fatal(err)
	}
	if got != "" {
		t.Fatalf("stale candidate must be discarded, got %q", got)
	}
}

func TestTransitionalUserSkipsDeadUsers(t *testing.T) {
	m := newManager()
	ctx := context.Background()
	repo := memory.New()
	st := &core.Store{Name: "acme", DefaultURL: "https://a/", TemplateURL: "https://t/", Secret: "x"}
	if err := repo.CreateStore(ctx, st); err != nil {
		t.Fatal(err)
	}
	u := &core.User{StoreID: st.ID, Name: "rick deckard", Deleted: true}
	if err := repo.CreateUser(ctx, u); err != nil {
		t.Fatal(err)
	}
	if err := m.SetTransitional(ctx, "s", u); err != nil {
		t.Fatal(err)
	}
	got, err := m.TransitionalUser(ctx, repo, "s")
	if err != nil {
		t.Fatal(err)
	}
	if got != nil {
		t.Fatal("deleted user must not resolve as transitional")
	}
}

func TestBearerTokenExtraction(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.Header.Set("Authorization", "Bearer abc123")
	if got := BearerToken(r); got != "abc123" {
		t.Fatalf("got %q", got)
	}

	r2 := httptest.NewRequest(http.MethodGet, "/?oauth_token=qp", nil)
	if got := BearerToken(r2); got != "qp" {
		t.Fatalf("query fallback: %q", got)
	}

	// Param legacy aún más viejo.
	r3 := httptest.NewRequest(http.MethodGet, "/?access_token=tok123", nil)
	if got := BearerToken(r3); got != "tok123" {
		t.Fatalf("access_token fallback: %q", got)
	}

	r4 := httptest.NewRequest(http.MethodGet, "/?oauth_token=qp&access_token=tok123", nil)
	if got := BearerToken(r4); got != "qp" {
		t.Fatalf("oauth_token must win: %q", got)
	}
}

func TestUserFromBearer(t *testing.T) {
	ctx := context.Background()
	repo := memory.New()
	st := &core.Store{Name: "acme", DefaultURL: "https://a/", TemplateURL: "https://t/", Secret: "x"}
	if err := repo.CreateStore(ctx, st); err != nil {
		t.Fatal(err)
	}
	u := &core.User{StoreID: st.ID, Name: "rick deckard", Activated: true}
	if err := repo.CreateUser(ctx, u); err != nil {
		t.Fatal(err)
	}
	auth := &core.Authorization{UserID: u.ID, ClientID: "c-1", Code: "code-1", CodeExpiresAt: time.Now().Add(time.Minute)}
	if err := repo.CreateAuthorization(ctx, auth); err != nil {
		t.Fatal(err)
	}
	tok := &core.Token{UserID: u.ID, ClientID: "c-1", AuthorizationCode: "code-1", AccessToken: "at", RefreshToken: "rt"}
	if err := repo.ExchangeToken(ctx, auth, tok); err != nil {
		t.Fatal(err)
	}

	got, gotTok, err := UserFromBearer(ctx, repo, "at")
	if err != nil {
		t.Fatal(err)
	}
	if got.ID != u.ID || gotTok.AccessToken != "at" {
		t.Fatal("wrong resolution")
	}

	if _, _, err := UserFromBearer(ctx, repo, "nope"); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("unknown token: %v", err)
	}
	if _, _, err := UserFromBearer(ctx, repo, ""); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("blank token: %v", err)
	}
}

func TestHTTPIdentityResolver(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Header.Get("Authorization") {
		case "Bearer good":
			json.NewEncoder(w).Encode(Identity{ID: "admin-1", God: true, Realm: "ops"})
		default:
			w.WriteHeader(http.StatusUnauthorized)
		}
	}))
	defer srv.Close()

	res := NewHTTPIdentityResolver(srv.URL, time.Second)
	id, err := res.Resolve(context.Background(), "good")
	if err != nil {
		t.Fatal(err)
	}
	if id.ID != "admin-1" || !id.God || id.Realm != "ops" {
		t.Fatalf("id = %+v", id)
	}

	if _, err := res.Resolve(context.Background(), "bad"); !errors.Is(err, ErrUnauthenticated) {
		t.Fatalf("bad creds: %v", err)
	}
	if _, err := res.Resolve(context.Background(), ""); !errors.Is(err, ErrUnauthenticated) {
		t.Fatalf("blank creds: %v", err)
	}
}

func TestRequireGod(t *testing.T) {
	if err := RequireGod(nil); !errors.Is(err, ErrUnauthenticated) {
		t.Fatalf("nil identity: %v", err)
	}
	if err := RequireGod(&Identity{ID: "x"}); !errors.Is(err, ErrForbidden) {
		t.Fatalf("mortal: %v", err)
	}
	if err := RequireGod(&Identity{ID: "x", God: true}); err != nil {
		t.Fatalf("god: %v", err)
	}
}

func TestRequireSelfOrGod(t *testing.T) {
	self := &Identity{ID: "u-1"}
	if err := RequireSelfOrGod(self, "u-1"); err != nil {
		t.Fatalf("self: %v", err)
	}
	if err := RequireSelfOrGod(self, "u-2"); !errors.Is(err, ErrForbidden) {
		t.Fatalf("other: %v", err)
	}
	if err := RequireSelfOrGod(&Identity{ID: "a", God: true}, "u-2"); err != nil {
		t.Fatalf("god: %v", err)
	}
	if SameUser(&Identity{}, "") {
		t.Fatal("blank ids must not count as the same user")
	}
}
