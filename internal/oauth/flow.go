package oauth

// Flow es el grant flow resuelto a partir del response_type del request.
type Flow string

const (
	FlowAuthorizationCode Flow = "authorization_code"
	FlowImplicitGrant     Flow = "implicit_grant"
)

// ParseFlow resuelve el flow desde response_type, aceptando el alias legacy
// type=web_server del draft viejo. El alias pisa cualquier response_type.
func ParseFlow(responseType, legacyType string) (Flow, bool) {
	if legacyType == "web_server" {
		responseType = "code"
	}
	switch responseType {
	case "code":
		return FlowAuthorizationCode, true
	case "token":
		return FlowImplicitGrant, true
	}
	return "", false
}

// Implicit reporta si los params de respuesta van en el fragment.
func (f Flow) Implicit() bool { return f == FlowImplicitGrant }
