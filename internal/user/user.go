// Package user implementa el Credential Store: normalización de atributos,
// validación por campo con símbolos estables, password virtual write-only y
// el ciclo activate/delete.
package user

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dropDatabas3/vanilla/internal/security/password"
	"github.com/dropDatabas3/vanilla/internal/store/core"
	"github.com/dropDatabas3/vanilla/internal/tenant"
	"github.com/dropDatabas3/vanilla/internal/validation"
)

// Símbolos de error por campo. Se exponen tal cual en las respuestas 400.
const (
	SymbolNameMissing       = "name_is_missing"
	SymbolNameTooShort      = "name_is_too_short"
	SymbolNameTooLong       = "name_is_too_long"
	SymbolNameInvalid       = "name_contains_invalid_characters"
	SymbolPasswordMissing   = "password_is_missing"
	SymbolPasswordTooShort  = "password_is_too_short"
	SymbolPasswordMismatch  = "password_confirmation_mismatch"
	SymbolCurrentPwdMissing = "current_password_is_missing"
	SymbolWrongPassword     = "wrong_password"
	SymbolEmailInvalid      = "email_address_is_invalid"
	SymbolEmailInUse        = "email_address_in_use"
	SymbolMobileInvalid     = "mobile_number_is_invalid"
	SymbolMobileInUse       = "mobile_number_in_use"
	SymbolStoreMissing      = "store_is_missing"
)

// FieldError es un error de validación sobre un campo concreto.
type FieldError struct {
	Field  string `json:"field"`
	Symbol string `json:"error"`
}

func (e FieldError) Error() string { return fmt.Sprintf("%s: %s", e.Field, e.Symbol) }

// Changes son los atributos virtuales de un save: la password pendiente y
// sus acompañantes. Punteros nil = atributo no seteado en este request.
type Changes struct {
	Password        *string
	Confirmation    *string
	CurrentPassword *string
	// RequireCurrent fuerza el chequeo de current_password aunque no venga
	// en el request (cambio de password de un usuario existente).
	RequireCurrent bool
}

// PasswordSet reporta si el atributo virtual password fue asignado.
func (c Changes) PasswordSet() bool { return c.Password != nil }

// Service opera sobre usuarios de un store.
type Service struct {
	repo core.Repository
}

func NewService(repo core.Repository) *Service {
	return &Service{repo: repo}
}

// SetName normaliza y asigna el nombre.
func SetName(u *core.User, value string) {
	u.Name = validation.NormalizeName(value)
}

// SetEmail asigna el email normalizado. Si el valor difiere del actual se
// resetea el flag verified.
func SetEmail(u *core.User, value string) {
	normalized := validation.NormalizeEmail(value)
	if normalized == u.EmailAddress {
		return
	}
	u.EmailAddress = normalized
	u.EmailVerified = false
}

// SetMobile asigna el móvil normalizado, reseteando verified si cambia.
func SetMobile(u *core.User, value string) {
	normalized := validation.NormalizeMobile(value)
	if normalized == u.MobileNumber {
		return
	}
	u.MobileNumber = normalized
	u.MobileVerified = false
}

// Validate corre las reglas por campo en orden fijo y devuelve a lo sumo un
// error por campo, en el orden name, password, current_password, email,
// mobile, store.
func (s *Service) Validate(ctx context.Context, st *core.Store, u *core.User, ch Changes) ([]FieldError, error) {
	var errs []FieldError

	if e := validateName(st, u); e != nil {
		errs = append(errs, *e)
	}
	if ch.PasswordSet() {
		if e := validatePassword(ch); e != nil {
			errs = append(errs, *e)
		}
		if e := validateCurrentPassword(u, ch); e != nil {
			errs = append(errs, *e)
		}
	}
	if e, err := s.validateEmail(ctx, st, u); err != nil {
		return nil, err
	} else if e != nil {
		errs = append(errs, *e)
	}
	if e, err := s.validateMobile(ctx, st, u); err != nil {
		return nil, err
	} else if e != nil {
		errs = append(errs, *e)
	}
	if u.StoreID == "" {
		errs = append(errs, FieldError{"store", SymbolStoreMissing})
	}
	return errs, nil
}

func validateName(st *core.Store, u *core.User) *FieldError {
	if u.Name == "" {
		return &FieldError{"name", SymbolNameMissing}
	}
	runes := len([]rune(u.Name))
	if runes < tenant.MinNameLength(st) {
		return &FieldError{"name", SymbolNameTooShort}
	}
	if runes > tenant.MaxNameLength(st) {
		return &FieldError{"name", SymbolNameTooLong}
	}
	if !tenant.NamePattern(st).MatchString(u.Name) {
		return &FieldError{"name", SymbolNameInvalid}
	}
	return nil
}

func validatePassword(ch Changes) *FieldError {
	plain := validation.NormalizePassword(*ch.Password)
	if plain == "" {
		return &FieldError{"password", SymbolPasswordMissing}
	}
	if len(plain) < password.MinLength {
		return &FieldError{"password", SymbolPasswordTooShort}
	}
	if ch.Confirmation != nil && validation.NormalizePassword(*ch.Confirmation) != plain {
		return &FieldError{"password", SymbolPasswordMismatch}
	}
	return nil
}

func validateCurrentPassword(u *core.User, ch Changes) *FieldError {
	// Solo aplica a registros existentes con un hash previo.
	if u.ID == "" || u.PasswordHash == "" {
		return nil
	}
	if ch.CurrentPassword == nil {
		if ch.RequireCurrent {
			return &FieldError{"current_password", SymbolCurrentPwdMissing}
		}
		return nil
	}
	if !password.Match(u.PasswordHash, *ch.CurrentPassword) {
		return &FieldError{"current_password", SymbolWrongPassword}
	}
	return nil
}

func (s *Service) validateEmail(ctx context.Context, st *core.Store, u *core.User) (*FieldError, error) {
	if u.EmailAddress == "" {
		return nil, nil
	}
	if !validation.EmailValid(u.EmailAddress) {
		return &FieldError{"email_address", SymbolEmailInvalid}, nil
	}
	if !u.Active() {
		return nil, nil
	}
	other, err := s.repo.ActiveUserByVerifiedEmail(ctx, st.ID, u.EmailAddress)
	if errors.Is(err, core.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if other.ID != u.ID {
		return &FieldError{"email_address", SymbolEmailInUse}, nil
	}
	return nil, nil
}

func (s *Service) validateMobile(ctx context.Context, st *core.Store, u *core.User) (*FieldError, error) {
	if u.MobileNumber == "" {
		return nil, nil
	}
	if !validation.MobileValid(u.MobileNumber) {
		return &FieldError{"mobile_number", SymbolMobileInvalid}, nil
	}
	if !u.Active() {
		return nil, nil
	}
	other, err := s.repo.ActiveUserByVerifiedMobile(ctx, st.ID, u.MobileNumber)
	if errors.Is(err, core.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if other.ID != u.ID {
		return &FieldError{"mobile_number", SymbolMobileInUse}, nil
	}
	return nil, nil
}

// Save valida y persiste. Si la password virtual fue asignada el hash se
// re-deriva antes de escribir; la plaintext no sobrevive al llamado.
func (s *Service) Save(ctx context.Context, st *core.Store, u *core.User, ch Changes) ([]FieldError, error) {
	errs, err := s.Validate(ctx, st, u, ch)
	if err != nil {
		return nil, err
	}
	if len(errs) > 0 {
		return errs, nil
	}
	if ch.PasswordSet() {
		hash, err := password.Set(*ch.Password).Hash()
		if err != nil {
			return nil, err
		}
		u.PasswordHash = hash
	}
	if u.ID == "" {
		err = s.repo.CreateUser(ctx, u)
	} else {
		err = s.repo.UpdateUser(ctx, u)
	}
	return nil, err
}

// PasswordMatch chequea la candidate contra el hash guardado.
func PasswordMatch(u *core.User, candidate string) bool {
	return password.Match(u.PasswordHash, candidate)
}

// Activate marca el usuario activado una sola vez; re-llamarlo no toca
// activated_at.
func Activate(u *core.User, now time.Time) {
	if u.Activated {
		return
	}
	u.Activated = true
	t := now
	u.ActivatedAt = &t
}

// Delete es el soft delete: limpia endpoints y verified flags. Idempotente.
func Delete(u *core.User, now time.Time) {
	if u.Deleted {
		return
	}
	u.Deleted = true
	t := now
	u.DeletedAt = &t
	u.MobileNumber = ""
	u.MobileVerified = false
	u.EmailAddress = ""
	u.EmailVerified = false
}
