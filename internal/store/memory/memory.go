// Package memory implementa core.Repository con maps en memoria.
// Útil para desarrollo y testing; respeta el mismo contrato de atomicidad
// que el adapter de Postgres usando un mutex global.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dropDatabas3/vanilla/internal/store/core"
)

type Store struct {
	mu sync.Mutex

	stores         map[string]*core.Store
	users          map[string]*core.User
	nonces         map[string]*core.Nonce
	clients        map[string]*core.Client
	authorizations map[string]*core.Authorization
	tokens         map[string]*core.Token
}

func New() *Store {
	return &Store{
		stores:         map[string]*core.Store{},
		users:          map[string]*core.User{},
		nonces:         map[string]*core.Nonce{},
		clients:        map[string]*core.Client{},
		authorizations: map[string]*core.Authorization{},
		tokens:         map[string]*core.Token{},
	}
}

func (s *Store) Ping(ctx context.Context) error { return nil }
func (s *Store) Close()                         {}

func ensureID(id *string) {
	if *id == "" {
		*id = uuid.NewString()
	}
}

// Copias defensivas: el repositorio nunca comparte punteros con el caller.

func copyStore(v *core.Store) *core.Store {
	c := *v
	c.Scopes = append([]core.Scope(nil), v.Scopes...)
	c.LoginMethods = append([]core.LoginMethod(nil), v.LoginMethods...)
	return &c
}

func copyUser(v *core.User) *core.User { c := *v; return &c }

func copyNonce(v *core.Nonce) *core.Nonce { c := *v; return &c }

func copyClient(v *core.Client) *core.Client { c := *v; return &c }

func copyAuthorization(v *core.Authorization) *core.Authorization {
	c := *v
	c.Scopes = append([]string(nil), v.Scopes...)
	return &c
}

func copyToken(v *core.Token) *core.Token {
	c := *v
	c.Scopes = append([]string(nil), v.Scopes...)
	return &c
}

// ---- Stores ----

func (s *Store) CreateStore(ctx context.Context, v *core.Store) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.stores {
		if existing.Name == v.Name {
			return core.ErrConflict
		}
	}
	ensureID(&v.ID)
	now := time.Now()
	v.CreatedAt, v.UpdatedAt = now, now
	s.stores[v.ID] = copyStore(v)
	return nil
}

func (s *Store) UpdateStore(ctx context.Context, v *core.Store) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.stores[v.ID]; !ok {
		return core.ErrNotFound
	}
	v.UpdatedAt = time.Now()
	s.stores[v.ID] = copyStore(v)
	return nil
}

func (s *Store) GetStore(ctx context.Context, id string) (*core.Store, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.stores[id]
	if !ok {
		return nil, core.ErrNotFound
	}
	return copyStore(v), nil
}

func (s *Store) GetStoreByName(ctx context.Context, name string) (*core.Store, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, v := range s.stores {
		if v.Name == name {
			return copyStore(v), nil
		}
	}
	return nil, core.ErrNotFound
}

func (s *Store) ListStores(ctx context.Context) ([]*core.Store, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*core.Store, 0, len(s.stores))
	for _, v := range s.stores {
		out = append(out, copyStore(v))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// ---- Users ----

func (s *Store) CreateUser(ctx context.Context, v *core.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	ensureID(&v.ID)
	now := time.Now()
	v.CreatedAt, v.UpdatedAt = now, now
	s.users[v.ID] = copyUser(v)
	return nil
}

func (s *Store) UpdateUser(ctx context.Context, v *core.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[v.ID]; !ok {
		return core.ErrNotFound
	}
	v.UpdatedAt = time.Now()
	s.users[v.ID] = copyUser(v)
	return nil
}

func (s *Store) GetUser(ctx context.Context, id string) (*core.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if v, ok := s.users[id]; ok {
		return copyUser(v), nil
	}
	return nil, core.ErrNotFound
}

func (s *Store) GetAliveUser(ctx context.Context, id string) (*core.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if v, ok := s.users[id]; ok && !v.Deleted {
		return copyUser(v), nil
	}
	return nil, core.ErrNotFound
}

// active = no borrado y activado, como el scope `active` histórico.
func active(u *core.User) bool { return !u.Deleted && u.Activated }

func (s *Store) findActive(storeID string, pred func(*core.User) bool) *core.User {
	for _, v := range s.users {
		if v.StoreID == storeID && active(v) && pred(v) {
			return v
		}
	}
	return nil
}

func (s *Store) ActiveUserByMobile(ctx context.Context, storeID, mobile string) (*core.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if mobile == "" {
		return nil, core.ErrNotFound
	}
	if v := s.findActive(storeID, func(u *core.User) bool { return u.MobileNumber == mobile }); v != nil {
		return copyUser(v), nil
	}
	return nil, core.ErrNotFound
}

func (s *Store) ActiveUserByEmail(ctx context.Context, storeID, email string) (*core.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if email == "" {
		return nil, core.ErrNotFound
	}
	if v := s.findActive(storeID, func(u *core.User) bool { return u.EmailAddress == email }); v != nil {
		return copyUser(v), nil
	}
	return nil, core.ErrNotFound
}

func (s *Store) ActiveUsersByName(ctx context.Context, storeID, name string, limit int) ([]*core.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if name == "" {
		return nil, nil
	}
	var out []*core.User
	for _, v := range s.users {
		if v.StoreID == storeID && active(v) && strings.EqualFold(v.Name, name) {
			out = append(out, copyUser(v))
			if limit > 0 && len(out) >= limit {
				break
			}
		}
	}
	return out, nil
}

func (s *Store) ActiveUserByVerifiedMobile(ctx context.Context, storeID, mobile string) (*core.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if mobile == "" {
		return nil, core.ErrNotFound
	}
	if v := s.findActive(storeID, func(u *core.User) bool {
		return u.MobileVerified && u.MobileNumber == mobile
	}); v != nil {
		return copyUser(v), nil
	}
	return nil, core.ErrNotFound
}

func (s *Store) ActiveUserByVerifiedEmail(ctx context.Context, storeID, email string) (*core.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if email == "" {
		return nil, core.ErrNotFound
	}
	if v := s.findActive(storeID, func(u *core.User) bool {
		return u.EmailVerified && u.EmailAddress == email
	}); v != nil {
		return copyUser(v), nil
	}
	return nil, core.ErrNotFound
}

func (s *Store) FindUsers(ctx context.Context, storeID string, filter core.UserFilter) ([]*core.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if filter.Empty() {
		return nil, nil
	}
	var out []*core.User
	for _, v := range s.users {
		if v.StoreID != storeID {
			continue
		}
		if filter.Name != "" && v.Name != filter.Name {
			continue
		}
		if filter.MobileNumber != "" && v.MobileNumber != filter.MobileNumber {
			continue
		}
		if filter.EmailAddress != "" && v.EmailAddress != filter.EmailAddress {
			continue
		}
		out = append(out, copyUser(v))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

// ---- Nonces ----

func (s *Store) CreateNonce(ctx context.Context, v *core.Nonce) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	ensureID(&v.ID)
	v.CreatedAt = time.Now()
	s.nonces[v.ID] = copyNonce(v)
	return nil
}

func (s *Store) UpdateNonce(ctx context.Context, v *core.Nonce) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.nonces[v.ID]; !ok {
		return core.ErrNotFound
	}
	s.nonces[v.ID] = copyNonce(v)
	return nil
}

func (s *Store) GetNonce(ctx context.Context, id string) (*core.Nonce, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if v, ok := s.nonces[id]; ok {
		return copyNonce(v), nil
	}
	return nil, core.ErrNotFound
}

func (s *Store) ExpireNonce(ctx context.Context, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.nonces[id]
	if !ok {
		return false, core.ErrNotFound
	}
	now := time.Now()
	if v.ExpiresAt != nil && !v.ExpiresAt.After(now) {
		return false, nil // ya expirado; no-op
	}
	v.ExpiresAt = &now
	return true, nil
}

// ---- Clients ----

func (s *Store) CreateClient(ctx context.Context, v *core.Client) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.clients {
		if existing.APIKey == v.APIKey {
			return core.ErrConflict
		}
	}
	ensureID(&v.ID)
	now := time.Now()
	v.CreatedAt, v.UpdatedAt = now, now
	s.clients[v.ID] = copyClient(v)
	return nil
}

func (s *Store) UpdateClient(ctx context.Context, v *core.Client) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.clients[v.ID]; !ok {
		return core.ErrNotFound
	}
	v.UpdatedAt = time.Now()
	s.clients[v.ID] = copyClient(v)
	return nil
}

func (s *Store) GetClient(ctx context.Context, id string) (*core.Client, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.clients[id]
	if !ok {
		return nil, core.ErrNotFound
	}
	return copyClient(v), nil
}

func (s *Store) GetClientByAPIKey(ctx context.Context, apiKey string) (*core.Client, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, v := range s.clients {
		if v.APIKey == apiKey {
			return copyClient(v), nil
		}
	}
	return nil, core.ErrNotFound
}

func (s *Store) ListClients(ctx context.Context, storeID string) ([]*core.Client, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*core.Client
	for _, v := range s.clients {
		if v.StoreID == storeID {
			out = append(out, copyClient(v))
		}
	}
	return out, nil
}

// ---- Authorizations ----

func (s *Store) CreateAuthorization(ctx context.Context, v *core.Authorization) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	ensureID(&v.ID)
	now := time.Now()
	v.CreatedAt, v.UpdatedAt = now, now
	s.authorizations[v.ID] = copyAuthorization(v)
	return nil
}

func (s *Store) UpdateAuthorization(ctx context.Context, v *core.Authorization) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.authorizations[v.ID]; !ok {
		return core.ErrNotFound
	}
	v.UpdatedAt = time.Now()
	s.authorizations[v.ID] = copyAuthorization(v)
	return nil
}

func (s *Store) GetAuthorizationByUserClient(ctx context.Context, userID, clientID string) (*core.Authorization, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, v := range s.authorizations {
		if v.UserID == userID && v.ClientID == clientID {
			return copyAuthorization(v), nil
		}
	}
	return nil, core.ErrNotFound
}

func (s *Store) GetAuthorizationByClientCode(ctx context.Context, clientID, code string) (*core.Authorization, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if code == "" {
		return nil, core.ErrNotFound
	}
	for _, v := range s.authorizations {
		if v.ClientID == clientID && v.Code == code {
			return copyAuthorization(v), nil
		}
	}
	return nil, core.ErrNotFound
}

func (s *Store) DeleteAuthorization(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.authorizations[id]
	if !ok {
		return core.ErrNotFound
	}
	s.deleteTokensForCode(v.Code)
	delete(s.authorizations, id)
	return nil
}

func (s *Store) deleteTokensForCode(code string) {
	if code == "" {
		return
	}
	for id, t := range s.tokens {
		if t.AuthorizationCode == code {
			delete(s.tokens, id)
		}
	}
}

// ---- Tokens ----

func (s *Store) ExchangeToken(ctx context.Context, auth *core.Authorization, t *core.Token) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	// Un intercambio concurrente pudo haber consumido el código ya; el
	// check corre bajo el mismo lock que el minteo.
	current, ok := s.authorizations[auth.ID]
	now := time.Now()
	if !ok || current.Code != auth.Code || current.CodeExpired(now) {
		return core.ErrExpired
	}
	s.deleteTokensForCode(auth.Code)
	ensureID(&t.ID)
	t.CreatedAt, t.UpdatedAt = now, now
	s.tokens[t.ID] = copyToken(t)
	// Consumir el código: single-use.
	current.CodeExpiresAt = now
	current.UpdatedAt = now
	return nil
}

func (s *Store) ReplaceTokenValues(ctx context.Context, t *core.Token) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored, ok := s.tokens[t.ID]
	if !ok {
		return core.ErrNotFound
	}
	stored.AccessToken = t.AccessToken
	stored.RefreshToken = t.RefreshToken
	stored.UpdatedAt = time.Now()
	return nil
}

func (s *Store) GetTokenByRefresh(ctx context.Context, clientID, refreshToken string) (*core.Token, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if refreshToken == "" {
		return nil, core.ErrNotFound
	}
	for _, v := range s.tokens {
		if v.ClientID == clientID && v.RefreshToken == refreshToken {
			return copyToken(v), nil
		}
	}
	return nil, core.ErrNotFound
}

func (s *Store) GetTokenByAccess(ctx context.Context, accessToken string) (*core.Token, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if accessToken == "" {
		return nil, core.ErrNotFound
	}
	for _, v := range s.tokens {
		if v.AccessToken == accessToken {
			return copyToken(v), nil
		}
	}
	return nil, core.ErrNotFound
}
