// Package template es el cliente del renderer externo de templates por
// store. El renderer es dueño del markup; este servicio solo manda el
// contexto y devuelve el body renderizado.
package template

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/dropDatabas3/vanilla/internal/store/core"
)

// Format es el content type pedido al renderer.
type Format string

const (
	FormatHTML      Format = "html"
	FormatPlaintext Format = "plaintext"
	FormatJSON      Format = "json"
)

func (f Format) accept() string {
	switch f {
	case FormatHTML:
		return "text/html"
	case FormatPlaintext:
		return "text/plain"
	case FormatJSON:
		return "application/json"
	}
	return "text/html"
}

// RenderError es un fallo del renderer. Se propaga como 500 al caller, sin
// retry.
type RenderError struct {
	Template string
	Status   int
	Cause    error
}

func (e *RenderError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("template %q: %v", e.Template, e.Cause)
	}
	return fmt.Sprintf("template %q: renderer returned %d", e.Template, e.Status)
}

func (e *RenderError) Unwrap() error { return e.Cause }

// Renderer llama al endpoint de templates del store.
type Renderer struct {
	client *http.Client
}

func NewRenderer(timeout time.Duration) *Renderer {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Renderer{client: &http.Client{Timeout: timeout}}
}

type renderRequest struct {
	Template  string         `json:"template"`
	User      map[string]any `json:"user,omitempty"`
	Variables map[string]any `json:"variables,omitempty"`
}

// UserContext arma el contexto de usuario que viaja al renderer.
func UserContext(u *core.User) map[string]any {
	if u == nil {
		return nil
	}
	return map[string]any{
		"id":             u.ID,
		"name":           u.Name,
		"email_address":  u.EmailAddress,
		"mobile_number":  u.MobileNumber,
		"email_verified": u.EmailVerified,
	}
}

// Render pide un template renderizado al renderer del store.
func (r *Renderer) Render(ctx context.Context, st *core.Store, name string, format Format, u *core.User, vars map[string]any) (string, error) {
	body, err := json.Marshal(renderRequest{Template: name, User: UserContext(u), Variables: vars})
	if err != nil {
		return "", err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, st.TemplateURL, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", format.accept())

	resp, err := r.client.Do(req)
	if err != nil {
		return "", &RenderError{Template: name, Cause: err}
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", &RenderError{Template: name, Status: resp.StatusCode}
	}
	rendered, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", &RenderError{Template: name, Cause: err}
	}
	return string(rendered), nil
}
