package core

import "context"

// Repository es la única frontera de persistencia del servicio. Las
// operaciones de intercambio de códigos y expiración de nonces son atómicas
// por fila (una transacción o check optimista equivalente): dos intercambios
// concurrentes del mismo código no pueden emitir dos tokens vivos.
type Repository interface {
	Ping(ctx context.Context) error
	Close()

	// ---- Stores (tenants) ----
	CreateStore(ctx context.Context, s *Store) error
	UpdateStore(ctx context.Context, s *Store) error
	GetStore(ctx context.Context, id string) (*Store, error)
	GetStoreByName(ctx context.Context, name string) (*Store, error)
	ListStores(ctx context.Context) ([]*Store, error)

	// ---- Users ----
	CreateUser(ctx context.Context, u *User) error
	UpdateUser(ctx context.Context, u *User) error
	GetUser(ctx context.Context, id string) (*User, error)
	// GetAliveUser devuelve el usuario solo si no está borrado.
	GetAliveUser(ctx context.Context, id string) (*User, error)

	// Finders store-scoped sobre usuarios activos (no borrados y activados).
	// Devuelven ErrNotFound si no hay match.
	ActiveUserByMobile(ctx context.Context, storeID, mobile string) (*User, error)
	ActiveUserByEmail(ctx context.Context, storeID, email string) (*User, error)
	// ActiveUsersByName matchea por nombre normalizado case-insensitive,
	// limitado a `limit` filas.
	ActiveUsersByName(ctx context.Context, storeID, name string, limit int) ([]*User, error)
	// Verified-collision finders: active user holding the value as verified.
	ActiveUserByVerifiedMobile(ctx context.Context, storeID, mobile string) (*User, error)
	ActiveUserByVerifiedEmail(ctx context.Context, storeID, email string) (*User, error)
	// FindUsers is the admin search: any combination of exact name, mobile
	// and email filters within a store.
	FindUsers(ctx context.Context, storeID string, filter UserFilter) ([]*User, error)

	// ---- Nonces ----
	CreateNonce(ctx context.Context, n *Nonce) error
	UpdateNonce(ctx context.Context, n *Nonce) error
	GetNonce(ctx context.Context, id string) (*Nonce, error)
	// ExpireNonce fuerza expires_at=now si el nonce no estaba ya expirado.
	// Devuelve true solo para la llamada que efectuó el cambio: es el check
	// optimista que garantiza verificación single-use bajo concurrencia.
	ExpireNonce(ctx context.Context, id string) (bool, error)

	// ---- Clients ----
	CreateClient(ctx context.Context, c *Client) error
	UpdateClient(ctx context.Context, c *Client) error
	GetClient(ctx context.Context, id string) (*Client, error)
	GetClientByAPIKey(ctx context.Context, apiKey string) (*Client, error)
	ListClients(ctx context.Context, storeID string) ([]*Client, error)

	// ---- Authorizations ----
	CreateAuthorization(ctx context.Context, a *Authorization) error
	UpdateAuthorization(ctx context.Context, a *Authorization) error
	GetAuthorizationByUserClient(ctx context.Context, userID, clientID string) (*Authorization, error)
	GetAuthorizationByClientCode(ctx context.Context, clientID, code string) (*Authorization, error)
	// DeleteAuthorization cascades to the tokens issued via its code.
	DeleteAuthorization(ctx context.Context, id string) error

	// ---- Tokens ----
	// ExchangeToken destruye los tokens previos ligados al código de la
	// authorization y persiste el nuevo, en una sola transacción.
	ExchangeToken(ctx context.Context, auth *Authorization, t *Token) error
	// ReplaceTokenValues persiste nuevos access/refresh values in place
	// (refresh grant), preservando scopes y vínculos.
	ReplaceTokenValues(ctx context.Context, t *Token) error
	GetTokenByRefresh(ctx context.Context, clientID, refreshToken string) (*Token, error)
	GetTokenByAccess(ctx context.Context, accessToken string) (*Token, error)
}

// UserFilter son los criterios exactos de búsqueda admin.
type UserFilter struct {
	Name         string
	MobileNumber string
	EmailAddress string
}

// Empty reporta si no hay ningún criterio.
func (f UserFilter) Empty() bool {
	return f.Name == "" && f.MobileNumber == "" && f.EmailAddress == ""
}
