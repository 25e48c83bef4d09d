// Package pg implementa core.Repository sobre Postgres con pgx.
package pg

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dropDatabas3/vanilla/internal/store/core"
)

type Store struct{ pool *pgxpool.Pool }

type Config struct {
	MaxOpenConns    int
	MinConns        int
	ConnMaxLifetime string
}

func New(ctx context.Context, dsn string, cfg Config) (*Store, error) {
	pcfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, err
	}
	if cfg.MaxOpenConns > 0 {
		pcfg.MaxConns = int32(cfg.MaxOpenConns)
	}
	if cfg.MinConns > 0 {
		pcfg.MinConns = int32(cfg.MinConns)
	}
	if cfg.ConnMaxLifetime != "" {
		if d, err := time.ParseDuration(cfg.ConnMaxLifetime); err == nil {
			pcfg.MaxConnLifetime = d
			pcfg.MaxConnIdleTime = d
		}
	}
	if pcfg.MaxConns == 0 {
		pcfg.MaxConns = 8
	}

	pool, err := pgxpool.NewWithConfig(ctx, pcfg)
	if err != nil {
		return nil, err
	}
	return &Store{pool: pool}, nil
}

// Pool expone el pool interno (metrics/migraciones).
func (s *Store) Pool() *pgxpool.Pool {
	if s == nil {
		return nil
	}
	return s.pool
}

func (s *Store) Ping(ctx context.Context) error { return s.pool.Ping(ctx) }

func (s *Store) Close() {
	if s != nil && s.pool != nil {
		s.pool.Close()
	}
}

func mapErr(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return core.ErrNotFound
	}
	return err
}

func ensureID(id *string) {
	if *id == "" {
		*id = uuid.NewString()
	}
}

// ---- Stores ----

const storeColumns = `id, name, default_url, template_url, scopes, secret,
	user_name_min_length, user_name_max_length, user_name_pattern,
	default_sender_email, login_methods, gateway_session, created_at, updated_at`

func scanStore(row pgx.Row) (*core.Store, error) {
	var v core.Store
	var scopesJSON []byte
	var methods []string
	err := row.Scan(&v.ID, &v.Name, &v.DefaultURL, &v.TemplateURL, &scopesJSON, &v.Secret,
		&v.UserNameMinLength, &v.UserNameMaxLength, &v.UserNamePattern,
		&v.DefaultSenderEmail, &methods, &v.GatewaySession, &v.CreatedAt, &v.UpdatedAt)
	if err != nil {
		return nil, mapErr(err)
	}
	if len(scopesJSON) > 0 {
		if err := json.Unmarshal(scopesJSON, &v.Scopes); err != nil {
			return nil, err
		}
	}
	for _, m := range methods {
		v.LoginMethods = append(v.LoginMethods, core.LoginMethod(m))
	}
	return &v, nil
}

func loginMethodStrings(methods []core.LoginMethod) []string {
	out := make([]string, 0, len(methods))
	for _, m := range methods {
		out = append(out, string(m))
	}
	return out
}

func (s *Store) CreateStore(ctx context.Context, v *core.Store) error {
	ensureID(&v.ID)
	scopesJSON, err := json.Marshal(v.Scopes)
	if err != nil {
		return err
	}
	const q = `INSERT INTO stores (id, name, default_url, template_url, scopes, secret,
		user_name_min_length, user_name_max_length, user_name_pattern,
		default_sender_email, login_methods, gateway_session)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
		RETURNING created_at, updated_at`
	err = s.pool.QueryRow(ctx, q, v.ID, v.Name, v.DefaultURL, v.TemplateURL, scopesJSON, v.Secret,
		v.UserNameMinLength, v.UserNameMaxLength, v.UserNamePattern,
		v.DefaultSenderEmail, loginMethodStrings(v.LoginMethods), v.GatewaySession).
		Scan(&v.CreatedAt, &v.UpdatedAt)
	if isUniqueViolation(err) {
		return core.ErrConflict
	}
	return err
}

func (s *Store) UpdateStore(ctx context.Context, v *core.Store) error {
	scopesJSON, err := json.Marshal(v.Scopes)
	if err != nil {
		return err
	}
	const q = `UPDATE stores SET default_url=$2, template_url=$3, scopes=$4, secret=$5,
		user_name_min_length=$6, user_name_max_length=$7, user_name_pattern=$8,
		default_sender_email=$9, login_methods=$10, gateway_session=$11, updated_at=now()
		WHERE id=$1 RETURNING updated_at`
	return mapErr(s.pool.QueryRow(ctx, q, v.ID, v.DefaultURL, v.TemplateURL, scopesJSON, v.Secret,
		v.UserNameMinLength, v.UserNameMaxLength, v.UserNamePattern,
		v.DefaultSenderEmail, loginMethodStrings(v.LoginMethods), v.GatewaySession).
		Scan(&v.UpdatedAt))
}

func (s *Store) GetStore(ctx context.Context, id string) (*core.Store, error) {
	return scanStore(s.pool.QueryRow(ctx,
		`SELECT `+storeColumns+` FROM stores WHERE id=$1`, id))
}

func (s *Store) GetStoreByName(ctx context.Context, name string) (*core.Store, error) {
	return scanStore(s.pool.QueryRow(ctx,
		`SELECT `+storeColumns+` FROM stores WHERE name=$1`, name))
}

func (s *Store) ListStores(ctx context.Context) ([]*core.Store, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+storeColumns+` FROM stores ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*core.Store
	for rows.Next() {
		v, err := scanStore(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

// ---- Users ----

const userColumns = `id, store_id, name, password_hash, mobile_number, mobile_verified,
	email_address, email_verified, birth_date, gender,
	activated, activated_at, logged_in, deleted, deleted_at, created_at, updated_at`

func scanUser(row pgx.Row) (*core.User, error) {
	var v core.User
	err := row.Scan(&v.ID, &v.StoreID, &v.Name, &v.PasswordHash, &v.MobileNumber, &v.MobileVerified,
		&v.EmailAddress, &v.EmailVerified, &v.BirthDate, &v.Gender,
		&v.Activated, &v.ActivatedAt, &v.LoggedIn, &v.Deleted, &v.DeletedAt, &v.CreatedAt, &v.UpdatedAt)
	if err != nil {
		return nil, mapErr(err)
	}
	return &v, nil
}

func (s *Store) CreateUser(ctx context.Context, v *core.User) error {
	ensureID(&v.ID)
	const q = `INSERT INTO users (id, store_id, name, password_hash,
		mobile_number, mobile_verified, email_address, email_verified,
		birth_date, gender, activated, activated_at, logged_in, deleted, deleted_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15)
		RETURNING created_at, updated_at`
	return s.pool.QueryRow(ctx, q, v.ID, v.StoreID, v.Name, v.PasswordHash,
		v.MobileNumber, v.MobileVerified, v.EmailAddress, v.EmailVerified,
		v.BirthDate, v.Gender, v.Activated, v.ActivatedAt, v.LoggedIn, v.Deleted, v.DeletedAt).
		Scan(&v.CreatedAt, &v.UpdatedAt)
}

func (s *Store) UpdateUser(ctx context.Context, v *core.User) error {
	const q = `UPDATE users SET name=$2, password_hash=$3,
		mobile_number=$4, mobile_verified=$5, email_address=$6, email_verified=$7,
		birth_date=$8, gender=$9, activated=$10, activated_at=$11,
		logged_in=$12, deleted=$13, deleted_at=$14, updated_at=now()
		WHERE id=$1 RETURNING updated_at`
	return mapErr(s.pool.QueryRow(ctx, q, v.ID, v.Name, v.PasswordHash,
		v.MobileNumber, v.MobileVerified, v.EmailAddress, v.EmailVerified,
		v.BirthDate, v.Gender, v.Activated, v.ActivatedAt,
		v.LoggedIn, v.Deleted, v.DeletedAt).Scan(&v.UpdatedAt))
}

func (s *Store) GetUser(ctx context.Context, id string) (*core.User, error) {
	return scanUser(s.pool.QueryRow(ctx,
		`SELECT `+userColumns+` FROM users WHERE id=$1`, id))
}

func (s *Store) GetAliveUser(ctx context.Context, id string) (*core.User, error) {
	return scanUser(s.pool.QueryRow(ctx,
		`SELECT `+userColumns+` FROM users WHERE id=$1 AND NOT deleted`, id))
}

func (s *Store) ActiveUserByMobile(ctx context.Context, storeID, mobile string) (*core.User, error) {
	if mobile == "" {
		return nil, core.ErrNotFound
	}
	return scanUser(s.pool.QueryRow(ctx,
		`SELECT `+userColumns+` FROM users
		 WHERE store_id=$1 AND mobile_number=$2 AND NOT deleted AND activated LIMIT 1`,
		storeID, mobile))
}

func (s *Store) ActiveUserByEmail(ctx context.Context, storeID, email string) (*core.User, error) {
	if email == "" {
		return nil, core.ErrNotFound
	}
	return scanUser(s.pool.QueryRow(ctx,
		`SELECT `+userColumns+` FROM users
		 WHERE store_id=$1 AND email_address=$2 AND NOT deleted AND activated LIMIT 1`,
		storeID, email))
}

func (s *Store) ActiveUsersByName(ctx context.Context, storeID, name string, limit int) ([]*core.User, error) {
	if name == "" {
		return nil, nil
	}
	rows, err := s.pool.Query(ctx,
		`SELECT `+userColumns+` FROM users
		 WHERE store_id=$1 AND lower(name)=lower($2) AND NOT deleted AND activated LIMIT $3`,
		storeID, name, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*core.User
	for rows.Next() {
		v, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

func (s *Store) ActiveUserByVerifiedMobile(ctx context.Context, storeID, mobile string) (*core.User, error) {
	if mobile == "" {
		return nil, core.ErrNotFound
	}
	return scanUser(s.pool.QueryRow(ctx,
		`SELECT `+userColumns+` FROM users
		 WHERE store_id=$1 AND mobile_number=$2 AND mobile_verified
		   AND NOT deleted AND activated LIMIT 1`,
		storeID, mobile))
}

func (s *Store) ActiveUserByVerifiedEmail(ctx context.Context, storeID, email string) (*core.User, error) {
	if email == "" {
		return nil, core.ErrNotFound
	}
	return scanUser(s.pool.QueryRow(ctx,
		`SELECT `+userColumns+` FROM users
		 WHERE store_id=$1 AND email_address=$2 AND email_verified
		   AND NOT deleted AND activated LIMIT 1`,
		storeID, email))
}

func (s *Store) FindUsers(ctx context.Context, storeID string, filter core.UserFilter) ([]*core.User, error) {
	if filter.Empty() {
		return nil, nil
	}
	q := `SELECT ` + userColumns + ` FROM users WHERE store_id=$1`
	args := []any{storeID}
	if filter.Name != "" {
		args = append(args, filter.Name)
		q += ` AND name=$` + itoa(len(args))
	}
	if filter.MobileNumber != "" {
		args = append(args, filter.MobileNumber)
		q += ` AND mobile_number=$` + itoa(len(args))
	}
	if filter.EmailAddress != "" {
		args = append(args, filter.EmailAddress)
		q += ` AND email_address=$` + itoa(len(args))
	}
	q += ` ORDER BY created_at`
	rows, err := s.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*core.User
	for rows.Next() {
		v, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}
