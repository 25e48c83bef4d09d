package oauth

// Códigos de error del protocolo OAuth.
const (
	ErrCodeInvalidClient           = "invalid_client"
	ErrCodeInvalidGrant            = "invalid_grant"
	ErrCodeInvalidRequest          = "invalid_request"
	ErrCodeInvalidScope            = "invalid_scope"
	ErrCodeUnsupportedGrantType    = "unsupported_grant_type"
	ErrCodeUnsupportedResponseType = "unsupported_response_type"
	ErrCodeAccessDenied            = "access_denied"
)

// ProtocolError es un error OAuth con su código de protocolo. Según el
// contexto se serializa como body JSON o como params en la redirect URI
// del client.
type ProtocolError struct {
	Code        string
	Description string
	// Echo son params del request que la respuesta repite (ej. state).
	Echo map[string]string
}

func (e *ProtocolError) Error() string {
	if e.Description != "" {
		return e.Code + ": " + e.Description
	}
	return e.Code
}

func protocolErr(code, description string) *ProtocolError {
	return &ProtocolError{Code: code, Description: description}
}
