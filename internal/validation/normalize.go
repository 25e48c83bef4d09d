// Package validation contiene normalización y validación de identificadores
// de usuario: nombre, email y número de móvil.
//
// La normalización es idempotente: normalizar un valor ya normalizado es un no-op.
// Un valor en blanco normaliza a "" (ausente).
package validation

import (
	"regexp"
	"strings"
)

// Email shape: non-blank local and domain parts, no whitespace.
var emailRe = regexp.MustCompile(`^[^\s]+@[^\s]+$`)

// Mobile shape: optional leading +, then digits, spaces and dashes.
var mobileShapeRe = regexp.MustCompile(`^\+?[0-9\s-]+$`)

var whitespaceRe = regexp.MustCompile(`\s+`)

// NormalizeName trims y colapsa espacios internos. Blank devuelve "".
func NormalizeName(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return ""
	}
	return whitespaceRe.ReplaceAllString(name, " ")
}

// NameMatch compares two names after normalization, case-insensitively.
func NameMatch(a, b string) bool {
	a, b = NormalizeName(a), NormalizeName(b)
	if a == "" || b == "" {
		return a == b
	}
	return strings.EqualFold(a, b)
}

// NormalizeEmail trims y pasa a minúsculas. Blank devuelve "".
func NormalizeEmail(email string) string {
	email = strings.TrimSpace(email)
	if email == "" {
		return ""
	}
	return strings.ToLower(email)
}

// EmailValid reports whether the value, once normalized, has a plausible
// email shape. Blank is not valid.
func EmailValid(email string) bool {
	email = NormalizeEmail(email)
	if email == "" {
		return false
	}
	return emailRe.MatchString(email)
}

// NormalizeMobile normaliza un número de móvil noruego: descarta espacios y
// guiones, quita el prefijo de país (+47 / 0047) y deja solo dígitos.
// Blank devuelve "".
func NormalizeMobile(number string) string {
	number = strings.TrimSpace(number)
	if number == "" {
		return ""
	}
	digits := strings.NewReplacer(" ", "", "-", "").Replace(number)
	switch {
	case strings.HasPrefix(digits, "+47"):
		digits = digits[3:]
	case strings.HasPrefix(digits, "0047"):
		digits = digits[4:]
	case strings.HasPrefix(digits, "+"):
		digits = digits[1:]
	}
	var b strings.Builder
	for _, r := range digits {
		if r >= '0' && r <= '9' {
			b.WriteByte(byte(r))
		}
	}
	return b.String()
}

// MobileValid reports whether the value looks like a valid Norwegian
// number: plausible shape before normalization, and after normalization
// either a full 8-digit national number or a 5-digit short number.
func MobileValid(number string) bool {
	trimmed := strings.TrimSpace(number)
	if trimmed == "" || !mobileShapeRe.MatchString(trimmed) {
		return false
	}
	switch len(NormalizeMobile(number)) {
	case 8, 5:
		return true
	}
	return false
}

// NormalizePassword solo recorta espacios; el contenido interno se respeta.
func NormalizePassword(p string) string {
	return strings.TrimSpace(p)
}
