// Package password implementa el hashing de contraseñas de usuarios.
//
// El esquema actual es bcrypt. Hashes con el prefijo "legacy:" se verifican
// contra el esquema SHA1 histórico (ver legacy.go) y nunca se generan nuevos.
package password

import (
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/dropDatabas3/vanilla/internal/validation"
)

// MinLength es el largo mínimo aceptado para contraseñas nuevas.
const MinLength = 5

// Pending is a plaintext password staged for hashing. It is the explicit
// replacement for the "assign then hash on save" pattern: build one with
// Set, then call Hash exactly once to obtain the stored form.
type Pending struct {
	plain string
	clear bool
}

// Set stages a plaintext password. The value is normalized (trimmed) first.
// An empty value stages a credential clear: Hash returns "" meaning
// "no password set".
func Set(plain string) Pending {
	plain = validation.NormalizePassword(plain)
	return Pending{plain: plain, clear: plain == ""}
}

// Clears reports whether hashing this credential removes the stored hash.
func (p Pending) Clears() bool { return p.clear }

// Hash deriva el hash bcrypt de la credencial pendiente.
// Devuelve "" si la credencial limpia la contraseña.
func (p Pending) Hash() (string, error) {
	if p.clear {
		return "", nil
	}
	b, err := bcrypt.GenerateFromPassword([]byte(p.plain), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// Match verifica un candidato contra el hash almacenado.
// Normaliza el candidato (trim), detecta el esquema por el prefijo del hash
// y devuelve false si no hay hash almacenado.
func Match(hash, candidate string) bool {
	candidate = validation.NormalizePassword(candidate)
	if hash == "" {
		return false
	}
	if rest, ok := strings.CutPrefix(hash, legacyPrefix); ok {
		return legacyMatch(rest, candidate)
	}
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(candidate)) == nil
}
