package validation

import "strings"

// ParseScopes acepta una lista o un string delimitado por comas/espacios y
// devuelve el set ordenado: entradas en blanco fuera, duplicados fuera,
// orden de primera aparición preservado. Nunca devuelve nil.
func ParseScopes(spec ...string) []string {
	out := []string{}
	seen := map[string]bool{}
	for _, chunk := range spec {
		for _, s := range strings.FieldsFunc(chunk, func(r rune) bool {
			return r == ',' || r == ' ' || r == '\t' || r == '\n' || r == '\r'
		}) {
			if s == "" || seen[s] {
				continue
			}
			seen[s] = true
			out = append(out, s)
		}
	}
	return out
}

// MatchScope reporta si todo scope pedido está presente en los permitidos.
// Un set pedido vacío matchea trivialmente.
func MatchScope(allowed []string, requested ...string) bool {
	allowedSet := map[string]bool{}
	for _, s := range ParseScopes(allowed...) {
		allowedSet[s] = true
	}
	for _, s := range ParseScopes(requested...) {
		if !allowedSet[s] {
			return false
		}
	}
	return true
}
