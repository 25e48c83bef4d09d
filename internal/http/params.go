package http

import (
	"encoding/base64"
	"encoding/json"
	"net/url"
)

// Los verification links cortos (/{store}/v/{blob}) llevan sus params como
// JSON base64-url, para que el SMS/email cargue una sola pieza opaca.

// EncodeParams serializa params en un blob base64 URL-safe.
func EncodeParams(params map[string]string) string {
	raw, _ := json.Marshal(params)
	return base64.RawURLEncoding.EncodeToString(raw)
}

// DecodeParams deshace EncodeParams. Acepta también padding estándar por
// compatibilidad con encoders viejos.
func DecodeParams(blob string) (map[string]string, error) {
	raw, err := base64.RawURLEncoding.DecodeString(blob)
	if err != nil {
		if raw, err = base64.URLEncoding.DecodeString(blob); err != nil {
			return nil, err
		}
	}
	var params map[string]string
	if err := json.Unmarshal(raw, &params); err != nil {
		return nil, err
	}
	return params, nil
}

// currentURL reconstruye la URL del request sin los params internos de
// routing, para usarla como return target post-login.
func currentURL(rawurl string, drop ...string) string {
	u, err := url.Parse(rawurl)
	if err != nil {
		return rawurl
	}
	q := u.Query()
	for _, k := range drop {
		q.Del(k)
	}
	u.RawQuery = q.Encode()
	return u.String()
}
