// Package tenant implementa el dominio del Store: resolución por nombre con
// cache, overrides por entorno, scopes declarados y autenticación de usuarios
// según los login methods configurados.
package tenant

import (
	"context"
	"fmt"
	"regexp"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"golang.org/x/sync/singleflight"

	"github.com/dropDatabas3/vanilla/internal/config"
	"github.com/dropDatabas3/vanilla/internal/security/token"
	"github.com/dropDatabas3/vanilla/internal/store/core"
	"github.com/dropDatabas3/vanilla/internal/validation"
)

// Defaults históricos para el nombre de usuario.
const (
	DefaultUserNameMinLength = 5
	DefaultUserNameMaxLength = 25
)

// DefaultUserNamePattern acepta letras (unicode), dígitos y un puñado de
// signos de puntuación comunes en nombres.
var DefaultUserNamePattern = regexp.MustCompile("^[\\pL0-9_., '`´-]+$")

var storeNameRe = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

// Service resuelve y administra stores.
type Service struct {
	repo      core.Repository
	overrides *config.StoreOverrides

	cache *gocache.Cache
	sf    singleflight.Group
}

func NewService(repo core.Repository, overrides *config.StoreOverrides) *Service {
	return &Service{
		repo:      repo,
		overrides: overrides,
		cache:     gocache.New(30*time.Second, time.Minute),
	}
}

// ByName resuelve un store por nombre. Los lookups se cachean brevemente y
// se colapsan con singleflight; los overrides de entorno se aplican en cada
// resolución, nunca se persisten.
func (s *Service) ByName(ctx context.Context, name string) (*core.Store, error) {
	if v, ok := s.cache.Get(name); ok {
		st := v.(core.Store)
		return &st, nil
	}
	v, err, _ := s.sf.Do(name, func() (any, error) {
		st, err := s.repo.GetStoreByName(ctx, name)
		if err != nil {
			return nil, err
		}
		s.applyOverrides(st)
		s.cache.Set(name, *st, gocache.DefaultExpiration)
		return st, nil
	})
	if err != nil {
		return nil, err
	}
	st := *(v.(*core.Store))
	return &st, nil
}

// Invalidate descarta la entrada cacheada de un store (tras updates).
func (s *Service) Invalidate(name string) { s.cache.Delete(name) }

func (s *Service) applyOverrides(st *core.Store) {
	if s.overrides == nil {
		return
	}
	if v, ok := s.overrides.Lookup(st.Name, "template_url"); ok {
		st.TemplateURL = v
	}
	if v, ok := s.overrides.Lookup(st.Name, "default_url"); ok {
		st.DefaultURL = v
	}
	if v, ok := s.overrides.Lookup(st.Name, "default_sender_email"); ok {
		st.DefaultSenderEmail = v
	}
	if v, ok := s.overrides.Lookup(st.Name, "gateway_session"); ok {
		st.GatewaySession = v
	}
}

// Create valida y persiste un store nuevo, generando el secret si falta.
func (s *Service) Create(ctx context.Context, st *core.Store) error {
	EnsureSecret(st)
	if errs := ValidateStore(st); len(errs) > 0 {
		return errs[0]
	}
	return s.repo.CreateStore(ctx, st)
}

// Update persiste cambios e invalida el cache.
func (s *Service) Update(ctx context.Context, st *core.Store) error {
	EnsureSecret(st)
	if errs := ValidateStore(st); len(errs) > 0 {
		return errs[0]
	}
	if err := s.repo.UpdateStore(ctx, st); err != nil {
		return err
	}
	s.Invalidate(st.Name)
	return nil
}

func (s *Service) List(ctx context.Context) ([]*core.Store, error) {
	return s.repo.ListStores(ctx)
}

// EnsureSecret genera el secret del store una sola vez; nunca queda en blanco.
func EnsureSecret(st *core.Store) {
	if st.Secret == "" {
		st.Secret = token.Secret()
	}
}

// ValidationError es un error de campo con símbolo estable legible por
// máquina (ej. "name_required").
type ValidationError struct {
	Field  string
	Symbol string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Symbol)
}

// ValidateStore chequea los invariantes del registro store.
func ValidateStore(st *core.Store) []ValidationError {
	var errs []ValidationError
	if st.Name == "" {
		errs = append(errs, ValidationError{"name", "name_required"})
	} else if !storeNameRe.MatchString(st.Name) {
		errs = append(errs, ValidationError{"name", "name_contains_invalid_characters"})
	}
	if st.TemplateURL == "" {
		errs = append(errs, ValidationError{"template_url", "template_url_required"})
	}
	if st.DefaultURL == "" {
		errs = append(errs, ValidationError{"default_url", "default_url_required"})
	}
	if st.Secret == "" {
		errs = append(errs, ValidationError{"secret", "secret_required"})
	}
	if st.UserNamePattern != "" {
		if _, err := regexp.Compile(st.UserNamePattern); err != nil {
			errs = append(errs, ValidationError{"user_name_pattern", "user_name_pattern_invalid"})
		}
	}
	return errs
}

// MinNameLength devuelve el mínimo configurado o el default.
func MinNameLength(st *core.Store) int {
	if st.UserNameMinLength > 0 {
		return st.UserNameMinLength
	}
	return DefaultUserNameMinLength
}

// MaxNameLength devuelve el máximo configurado o el default.
func MaxNameLength(st *core.Store) int {
	if st.UserNameMaxLength > 0 {
		return st.UserNameMaxLength
	}
	return DefaultUserNameMaxLength
}

// NamePattern compila el pattern configurado o devuelve el default.
func NamePattern(st *core.Store) *regexp.Regexp {
	if st.UserNamePattern == "" {
		return DefaultUserNamePattern
	}
	re, err := regexp.Compile(st.UserNamePattern)
	if err != nil {
		return DefaultUserNamePattern
	}
	return re
}

// LoginMethods devuelve los métodos configurados o el default ordenado.
func LoginMethods(st *core.Store) []core.LoginMethod {
	if len(st.LoginMethods) > 0 {
		return st.LoginMethods
	}
	return core.DefaultLoginMethods
}

// ScopeNames devuelve los nombres declarados en orden.
func ScopeNames(st *core.Store) []string {
	out := make([]string, 0, len(st.Scopes))
	for _, sc := range st.Scopes {
		out = append(out, sc.Name)
	}
	return out
}

// ScopeDescription busca la descripción de un scope declarado.
func ScopeDescription(st *core.Store, name string) string {
	for _, sc := range st.Scopes {
		if sc.Name == name {
			return sc.Description
		}
	}
	return ""
}

// DefaultScope es el primer scope declarado del store ("" si no hay).
func DefaultScope(st *core.Store) string {
	if len(st.Scopes) == 0 {
		return ""
	}
	return st.Scopes[0].Name
}

// ParseScopes parsea el spec crudo, lo intersecta con los scopes declarados
// (descartando desconocidos en silencio) y si queda vacío sustituye el
// default scope del store.
func ParseScopes(st *core.Store, raw string) []string {
	parsed := validation.ParseScopes(raw)
	declared := map[string]bool{}
	for _, name := range ScopeNames(st) {
		declared[name] = true
	}
	out := []string{}
	for _, sc := range parsed {
		if declared[sc] {
			out = append(out, sc)
		}
	}
	if len(out) == 0 {
		if def := DefaultScope(st); def != "" {
			out = append(out, def)
		}
	}
	return out
}
