package pg

import (
	"context"
	"errors"
	"strconv"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/dropDatabas3/vanilla/internal/store/core"
)

func itoa(n int) string { return strconv.Itoa(n) }

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

// ---- Nonces ----

const nonceColumns = `id, store_id, user_id, key, value, url, expires_at,
	endpoint, context, delivery_status_key, created_at`

func scanNonce(row pgx.Row) (*core.Nonce, error) {
	var v core.Nonce
	err := row.Scan(&v.ID, &v.StoreID, &v.UserID, &v.Key, &v.Value, &v.URL, &v.ExpiresAt,
		&v.Endpoint, &v.Context, &v.DeliveryStatusKey, &v.CreatedAt)
	if err != nil {
		return nil, mapErr(err)
	}
	return &v, nil
}

func (s *Store) CreateNonce(ctx context.Context, v *core.Nonce) error {
	ensureID(&v.ID)
	const q = `INSERT INTO nonces (id, store_id, user_id, key, value, url,
		expires_at, endpoint, context, delivery_status_key)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10) RETURNING created_at`
	return s.pool.QueryRow(ctx, q, v.ID, v.StoreID, v.UserID, v.Key, v.Value, v.URL,
		v.ExpiresAt, v.Endpoint, v.Context, v.DeliveryStatusKey).Scan(&v.CreatedAt)
}

func (s *Store) UpdateNonce(ctx context.Context, v *core.Nonce) error {
	const q = `UPDATE nonces SET expires_at=$2, delivery_status_key=$3 WHERE id=$1`
	tag, err := s.pool.Exec(ctx, q, v.ID, v.ExpiresAt, v.DeliveryStatusKey)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return core.ErrNotFound
	}
	return nil
}

func (s *Store) GetNonce(ctx context.Context, id string) (*core.Nonce, error) {
	return scanNonce(s.pool.QueryRow(ctx,
		`SELECT `+nonceColumns+` FROM nonces WHERE id=$1`, id))
}

// ExpireNonce hace el flip expires_at=now() en un solo statement condicional:
// solo una de N llamadas concurrentes ve RowsAffected=1.
func (s *Store) ExpireNonce(ctx context.Context, id string) (bool, error) {
	const q = `UPDATE nonces SET expires_at=now()
		WHERE id=$1 AND (expires_at IS NULL OR expires_at > now())`
	tag, err := s.pool.Exec(ctx, q, id)
	if err != nil {
		return false, err
	}
	if tag.RowsAffected() == 1 {
		return true, nil
	}
	// Distinguir "ya expirado" de "no existe".
	var exists bool
	if err := s.pool.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM nonces WHERE id=$1)`, id).Scan(&exists); err != nil {
		return false, err
	}
	if !exists {
		return false, core.ErrNotFound
	}
	return false, nil
}

// ---- Clients ----

const clientColumns = `id, store_id, title, api_key, secret, oauth_redirect_uri,
	skips_authorization_dialog, created_at, updated_at`

func scanClient(row pgx.Row) (*core.Client, error) {
	var v core.Client
	err := row.Scan(&v.ID, &v.StoreID, &v.Title, &v.APIKey, &v.Secret, &v.OAuthRedirectURI,
		&v.SkipsAuthorizationDialog, &v.CreatedAt, &v.UpdatedAt)
	if err != nil {
		return nil, mapErr(err)
	}
	return &v, nil
}

func (s *Store) CreateClient(ctx context.Context, v *core.Client) error {
	ensureID(&v.ID)
	const q = `INSERT INTO clients (id, store_id, title, api_key, secret,
		oauth_redirect_uri, skips_authorization_dialog)
		VALUES ($1,$2,$3,$4,$5,$6,$7) RETURNING created_at, updated_at`
	err := s.pool.QueryRow(ctx, q, v.ID, v.StoreID, v.Title, v.APIKey, v.Secret,
		v.OAuthRedirectURI, v.SkipsAuthorizationDialog).Scan(&v.CreatedAt, &v.UpdatedAt)
	if isUniqueViolation(err) {
		return core.ErrConflict
	}
	return err
}

func (s *Store) UpdateClient(ctx context.Context, v *core.Client) error {
	const q = `UPDATE clients SET title=$2, secret=$3, oauth_redirect_uri=$4,
		skips_authorization_dialog=$5, updated_at=now()
		WHERE id=$1 RETURNING updated_at`
	return mapErr(s.pool.QueryRow(ctx, q, v.ID, v.Title, v.Secret, v.OAuthRedirectURI,
		v.SkipsAuthorizationDialog).Scan(&v.UpdatedAt))
}

func (s *Store) GetClient(ctx context.Context, id string) (*core.Client, error) {
	return scanClient(s.pool.QueryRow(ctx,
		`SELECT `+clientColumns+` FROM clients WHERE id=$1`, id))
}

func (s *Store) GetClientByAPIKey(ctx context.Context, apiKey string) (*core.Client, error) {
	return scanClient(s.pool.QueryRow(ctx,
		`SELECT `+clientColumns+` FROM clients WHERE api_key=$1`, apiKey))
}

func (s *Store) ListClients(ctx context.Context, storeID string) ([]*core.Client, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+clientColumns+` FROM clients WHERE store_id=$1 ORDER BY created_at`, storeID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*core.Client
	for rows.Next() {
		v, err := scanClient(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

// ---- Authorizations ----

const authorizationColumns = `id, user_id, client_id, code, code_expires_at,
	redirect_url, scopes, created_at, updated_at`

func scanAuthorization(row pgx.Row) (*core.Authorization, error) {
	var v core.Authorization
	err := row.Scan(&v.ID, &v.UserID, &v.ClientID, &v.Code, &v.CodeExpiresAt,
		&v.RedirectURL, &v.Scopes, &v.CreatedAt, &v.UpdatedAt)
	if err != nil {
		return nil, mapErr(err)
	}
	return &v, nil
}

func (s *Store) CreateAuthorization(ctx context.Context, v *core.Authorization) error {
	ensureID(&v.ID)
	const q = `INSERT INTO authorizations (id, user_id, client_id, code,
		code_expires_at, redirect_url, scopes)
		VALUES ($1,$2,$3,$4,$5,$6,$7) RETURNING created_at, updated_at`
	return s.pool.QueryRow(ctx, q, v.ID, v.UserID, v.ClientID, v.Code,
		v.CodeExpiresAt, v.RedirectURL, v.Scopes).Scan(&v.CreatedAt, &v.UpdatedAt)
}

func (s *Store) UpdateAuthorization(ctx context.Context, v *core.Authorization) error {
	const q = `UPDATE authorizations SET code=$2, code_expires_at=$3,
		redirect_url=$4, scopes=$5, updated_at=now()
		WHERE id=$1 RETURNING updated_at`
	return mapErr(s.pool.QueryRow(ctx, q, v.ID, v.Code, v.CodeExpiresAt,
		v.RedirectURL, v.Scopes).Scan(&v.UpdatedAt))
}

func (s *Store) GetAuthorizationByUserClient(ctx context.Context, userID, clientID string) (*core.Authorization, error) {
	return scanAuthorization(s.pool.QueryRow(ctx,
		`SELECT `+authorizationColumns+` FROM authorizations
		 WHERE user_id=$1 AND client_id=$2 LIMIT 1`, userID, clientID))
}

func (s *Store) GetAuthorizationByClientCode(ctx context.Context, clientID, code string) (*core.Authorization, error) {
	if code == "" {
		return nil, core.ErrNotFound
	}
	return scanAuthorization(s.pool.QueryRow(ctx,
		`SELECT `+authorizationColumns+` FROM authorizations
		 WHERE client_id=$1 AND code=$2 LIMIT 1`, clientID, code))
}

func (s *Store) DeleteAuthorization(ctx context.Context, id string) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	var code string
	if err := tx.QueryRow(ctx, `SELECT code FROM authorizations WHERE id=$1`, id).Scan(&code); err != nil {
		return mapErr(err)
	}
	if _, err := tx.Exec(ctx, `DELETE FROM tokens WHERE authorization_code=$1`, code); err != nil {
		return err
	}
	if _, err := tx.Exec(ctx, `DELETE FROM authorizations WHERE id=$1`, id); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// ---- Tokens ----

const tokenColumns = `id, user_id, client_id, authorization_code, access_token,
	refresh_token, scopes, expires_at, invalidated_at, created_at, updated_at`

func scanToken(row pgx.Row) (*core.Token, error) {
	var v core.Token
	err := row.Scan(&v.ID, &v.UserID, &v.ClientID, &v.AuthorizationCode, &v.AccessToken,
		&v.RefreshToken, &v.Scopes, &v.ExpiresAt, &v.InvalidatedAt, &v.CreatedAt, &v.UpdatedAt)
	if err != nil {
		return nil, mapErr(err)
	}
	return &v, nil
}

// ExchangeToken corre destroy-then-create y el consumo del código en una
// transacción. El UPDATE condicional sobre code_expires_at es el candado:
// el segundo intercambio concurrente no afecta filas y recibe ErrExpired.
func (s *Store) ExchangeToken(ctx context.Context, auth *core.Authorization, t *core.Token) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx,
		`UPDATE authorizations SET code_expires_at=now(), updated_at=now()
		 WHERE id=$1 AND code=$2 AND code_expires_at > now()`,
		auth.ID, auth.Code)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return core.ErrExpired
	}
	if _, err := tx.Exec(ctx, `DELETE FROM tokens WHERE authorization_code=$1`, auth.Code); err != nil {
		return err
	}
	ensureID(&t.ID)
	const q = `INSERT INTO tokens (id, user_id, client_id, authorization_code,
		access_token, refresh_token, scopes, expires_at, invalidated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9) RETURNING created_at, updated_at`
	if err := tx.QueryRow(ctx, q, t.ID, t.UserID, t.ClientID, t.AuthorizationCode,
		t.AccessToken, t.RefreshToken, t.Scopes, t.ExpiresAt, t.InvalidatedAt).
		Scan(&t.CreatedAt, &t.UpdatedAt); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (s *Store) ReplaceTokenValues(ctx context.Context, t *core.Token) error {
	const q = `UPDATE tokens SET access_token=$2, refresh_token=$3, updated_at=now()
		WHERE id=$1 RETURNING updated_at`
	return mapErr(s.pool.QueryRow(ctx, q, t.ID, t.AccessToken, t.RefreshToken).Scan(&t.UpdatedAt))
}

func (s *Store) GetTokenByRefresh(ctx context.Context, clientID, refreshToken string) (*core.Token, error) {
	if refreshToken == "" {
		return nil, core.ErrNotFound
	}
	return scanToken(s.pool.QueryRow(ctx,
		`SELECT `+tokenColumns+` FROM tokens
		 WHERE client_id=$1 AND refresh_token=$2 LIMIT 1`, clientID, refreshToken))
}

func (s *Store) GetTokenByAccess(ctx context.Context, accessToken string) (*core.Token, error) {
	if accessToken == "" {
		return nil, core.ErrNotFound
	}
	return scanToken(s.pool.QueryRow(ctx,
		`SELECT `+tokenColumns+` FROM tokens WHERE access_token=$1 LIMIT 1`, accessToken))
}
