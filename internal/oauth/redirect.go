package oauth

import (
	"fmt"
	"net/url"

	"github.com/dropDatabas3/vanilla/internal/store/core"
)

// InvalidRedirectURLError señala un redirect_uri candidato que no es
// compatible con el registrado por el client. Carga la URL ofensora.
type InvalidRedirectURLError struct {
	URL string
}

func (e *InvalidRedirectURLError) Error() string {
	return fmt.Sprintf("invalid redirect url: %s", e.URL)
}

func defaultPort(scheme string) string {
	switch scheme {
	case "http":
		return "80"
	case "https":
		return "443"
	}
	return ""
}

func portOf(u *url.URL) string {
	if p := u.Port(); p != "" {
		return p
	}
	return defaultPort(u.Scheme)
}

// ValidRedirectURI decide si el candidato es aceptable frente a la URI
// registrada del client. Un candidato vacío vale (significa "usar la
// default"). Los hosts deben coincidir exacto y los schemes ser http o
// https; schemes distintos solo se aceptan en el par estándar http:80 con
// https:443.
func ValidRedirectURI(c *core.Client, candidate string) bool {
	if candidate == "" {
		return true
	}
	reg, err := url.Parse(c.OAuthRedirectURI)
	if err != nil {
		return false
	}
	cand, err := url.Parse(candidate)
	if err != nil {
		return false
	}
	if cand.Scheme != "http" && cand.Scheme != "https" {
		return false
	}
	if reg.Hostname() != cand.Hostname() {
		return false
	}
	if reg.Scheme == cand.Scheme {
		return portOf(reg) == portOf(cand)
	}
	// Cross-scheme: solo el par well-known en puertos default.
	return portOf(reg) == defaultPort(reg.Scheme) && portOf(cand) == defaultPort(cand.Scheme)
}

// MergeRedirectURL resuelve la URL final de redirección del client: el
// candidato validado o la URI registrada, con extra mergeado sobre el query
// string existente (extra gana en colisiones). Sin params el resultado no
// lleva "?".
func MergeRedirectURL(c *core.Client, candidate string, extra url.Values) (string, error) {
	target := candidate
	if target == "" {
		target = c.OAuthRedirectURI
	} else if !ValidRedirectURI(c, candidate) {
		return "", &InvalidRedirectURLError{URL: candidate}
	}
	u, err := url.Parse(target)
	if err != nil {
		return "", &InvalidRedirectURLError{URL: target}
	}
	q := u.Query()
	for k, vs := range extra {
		q.Del(k)
		for _, v := range vs {
			q.Add(k, v)
		}
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// MergeFragment es la variante implicit: los params van en el fragment en
// vez del query string.
func MergeFragment(c *core.Client, candidate string, params url.Values) (string, error) {
	target := candidate
	if target == "" {
		target = c.OAuthRedirectURI
	} else if !ValidRedirectURI(c, candidate) {
		return "", &InvalidRedirectURLError{URL: candidate}
	}
	u, err := url.Parse(target)
	if err != nil {
		return "", &InvalidRedirectURLError{URL: target}
	}
	u.Fragment = ""
	if enc := params.Encode(); enc != "" {
		return u.String() + "#" + enc, nil
	}
	return u.String(), nil
}
