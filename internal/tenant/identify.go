package tenant

import (
	"context"
	"crypto/hmac"
	"crypto/sha1"
	"encoding/hex"
	"errors"

	"github.com/dropDatabas3/vanilla/internal/security/password"
	"github.com/dropDatabas3/vanilla/internal/store/core"
	"github.com/dropDatabas3/vanilla/internal/validation"
)

// Símbolos estables de fallo de identificación.
const (
	SymbolIdentificationNotRecognized = "identification_not_recognized"
	SymbolPasswordMismatch            = "password_mismatch"
	SymbolMobileNotVerified           = "mobile_number_not_verified"
	SymbolEmailNotVerified            = "email_address_not_verified"
)

// IdentificationError distingue los fallos de Identify/Authenticate con un
// símbolo legible por máquina. Los fallos "not verified" cargan el usuario
// encontrado para que el caller pueda re-disparar la verificación.
type IdentificationError struct {
	Symbol string
	User   *core.User
}

func (e *IdentificationError) Error() string { return e.Symbol }

// Identify resuelve la identification contra los login methods del store,
// en el orden configurado. Un match por mobile o email sin verificar corta
// la búsqueda con el error correspondiente; el fallback por nombre solo
// aplica si el método "name" está habilitado y hay exactamente un match.
func (s *Service) Identify(ctx context.Context, st *core.Store, identification string) (*core.User, error) {
	return s.IdentifyWith(ctx, st, identification, LoginMethods(st))
}

// IdentifyWith es Identify con un subset explícito de métodos (recovery usa
// solo email y mobile).
func (s *Service) IdentifyWith(ctx context.Context, st *core.Store, identification string, methods []core.LoginMethod) (*core.User, error) {
	for _, method := range methods {
		switch method {
		case core.LoginByMobile:
			mobile := validation.NormalizeMobile(identification)
			if mobile == "" || !validation.MobileValid(identification) {
				continue
			}
			u, err := s.repo.ActiveUserByMobile(ctx, st.ID, mobile)
			if errors.Is(err, core.ErrNotFound) {
				continue
			}
			if err != nil {
				return nil, err
			}
			if !u.MobileVerified {
				return nil, &IdentificationError{Symbol: SymbolMobileNotVerified, User: u}
			}
			return u, nil

		case core.LoginByEmail:
			email := validation.NormalizeEmail(identification)
			if email == "" || !validation.EmailValid(email) {
				continue
			}
			u, err := s.repo.ActiveUserByEmail(ctx, st.ID, email)
			if errors.Is(err, core.ErrNotFound) {
				continue
			}
			if err != nil {
				return nil, err
			}
			if !u.EmailVerified {
				return nil, &IdentificationError{Symbol: SymbolEmailNotVerified, User: u}
			}
			return u, nil

		case core.LoginByName:
			name := validation.NormalizeName(identification)
			if name == "" {
				continue
			}
			// Limit 2: solo nos importa si el match es único.
			matches, err := s.repo.ActiveUsersByName(ctx, st.ID, name, 2)
			if err != nil {
				return nil, err
			}
			if len(matches) == 1 {
				return matches[0], nil
			}
		}
	}
	return nil, &IdentificationError{Symbol: SymbolIdentificationNotRecognized}
}

// Authenticate identifica y chequea la password en un solo paso.
func (s *Service) Authenticate(ctx context.Context, st *core.Store, identification, candidate string) (*core.User, error) {
	u, err := s.Identify(ctx, st, identification)
	if err != nil {
		return nil, err
	}
	if !password.Match(u.PasswordHash, candidate) {
		return nil, &IdentificationError{Symbol: SymbolPasswordMismatch, User: u}
	}
	return u, nil
}

// SignWithSecret firma un mensaje con el secret del store (HMAC-SHA1 hex).
// Es la firma que los clients verifican en callbacks salientes.
func SignWithSecret(st *core.Store, message string) string {
	mac := hmac.New(sha1.New, []byte(st.Secret))
	mac.Write([]byte(message))
	return hex.EncodeToString(mac.Sum(nil))
}
