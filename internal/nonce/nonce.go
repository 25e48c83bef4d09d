// Package nonce implementa los códigos de verificación de un solo uso y su
// protocolo de verificación.
package nonce

import (
	"context"
	"errors"
	"time"

	"github.com/dropDatabas3/vanilla/internal/observability/logger"
	"github.com/dropDatabas3/vanilla/internal/security/token"
	"github.com/dropDatabas3/vanilla/internal/store/core"
	"github.com/dropDatabas3/vanilla/internal/user"
)

// DefaultTTL es la vida útil de un nonce recién creado.
const DefaultTTL = 48 * time.Hour

// Errores del protocolo de verificación.
var (
	// ErrInvalidCode cubre tanto el nonce inexistente como el código que
	// no coincide.
	ErrInvalidCode = errors.New("invalid_code")
	ErrExpiredCode = errors.New("expired_code")
)

// NumericLength es el largo del código que se envía por SMS.
const NumericLength = 5

// NumericValue genera el código corto para SMS.
func NumericValue() string { return token.NumericCode(NumericLength) }

// AlphanumericValue genera el código largo para links de email.
func AlphanumericValue() string { return token.Code() }

// Engine crea y verifica nonces contra el repositorio.
type Engine struct {
	repo  core.Repository
	users *user.Service
	now   func() time.Time
}

func NewEngine(repo core.Repository) *Engine {
	return &Engine{repo: repo, users: user.NewService(repo), now: time.Now}
}

// Create persiste un nonce nuevo. Si ExpiresAt no viene seteado se aplica
// el TTL default.
func (e *Engine) Create(ctx context.Context, n *core.Nonce) error {
	if n.ExpiresAt == nil {
		t := e.now().Add(DefaultTTL)
		n.ExpiresAt = &t
	}
	return e.repo.CreateNonce(ctx, n)
}

// Expired reporta si el nonce venció.
func Expired(n *core.Nonce, now time.Time) bool {
	return n.ExpiresAt != nil && !n.ExpiresAt.After(now)
}

// Expire fuerza la expiración. Devuelve true solo si esta llamada efectuó
// el cambio; un nonce ya expirado queda como está.
func (e *Engine) Expire(ctx context.Context, n *core.Nonce) (bool, error) {
	return e.repo.ExpireNonce(ctx, n.ID)
}

// Result es el desenlace de una verificación exitosa o pendiente.
type Result struct {
	// Pending indica que no se envió código: hay que mostrar el form.
	Pending bool
	Nonce   *core.Nonce
	User    *core.User
	// Transitional marca que el usuario debe quedar como transitional user
	// de la sesión (contextos signup y recovery).
	Transitional bool
	// ReturnURL es a dónde sigue el flujo después de verificar.
	ReturnURL string
}

// Verify corre el protocolo de verificación. El orden de los chequeos es
// parte del contrato: inexistente, expirado, sin código (pending), código
// equivocado, y recién entonces se aplican los efectos. La expiración del
// nonce es el punto de serialización: de dos submissions concurrentes solo
// la que logra expirar el nonce aplica los flags.
func (e *Engine) Verify(ctx context.Context, st *core.Store, nonceID, submitted string) (*Result, error) {
	n, err := e.repo.GetNonce(ctx, nonceID)
	if errors.Is(err, core.ErrNotFound) {
		return nil, ErrInvalidCode
	}
	if err != nil {
		return nil, err
	}
	if n.StoreID != st.ID {
		return nil, ErrInvalidCode
	}
	if Expired(n, e.now()) {
		return nil, ErrExpiredCode
	}
	if submitted == "" {
		return &Result{Pending: true, Nonce: n}, nil
	}
	if submitted != n.Value {
		return nil, ErrInvalidCode
	}

	won, err := e.repo.ExpireNonce(ctx, n.ID)
	if err != nil {
		return nil, err
	}
	if !won {
		// Otra submission llegó primero.
		return nil, ErrExpiredCode
	}

	u, err := e.repo.GetAliveUser(ctx, n.UserID)
	if err != nil {
		return nil, err
	}
	switch n.Endpoint {
	case core.EndpointMobile:
		u.MobileVerified = true
	case core.EndpointEmail:
		u.EmailVerified = true
	}
	transitional := n.Context == core.ContextSignup || n.Context == core.ContextRecovery
	if transitional {
		user.Activate(u, e.now())
	}
	if err := e.repo.UpdateUser(ctx, u); err != nil {
		return nil, err
	}
	logger.From(ctx).Info("nonce verified",
		logger.NonceID(n.ID),
		logger.Store(st.Name),
		logger.UserID(u.ID),
		logger.Endpoint(string(n.Endpoint)),
		logger.String("context", string(n.Context)),
	)
	return &Result{Nonce: n, User: u, Transitional: transitional, ReturnURL: n.URL}, nil
}
