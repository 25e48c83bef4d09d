package template

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/dropDatabas3/vanilla/internal/store/core"
)

func TestRenderSendsContextAndAccept(t *testing.T) {
	var got renderRequest
	var accept string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		accept = r.Header.Get("Accept")
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode: %v", err)
		}
		w.Write([]byte("<p>hola</p>"))
	}))
	defer srv.Close()

	st := &core.Store{TemplateURL: srv.URL}
	u := &core.User{ID: "u-1", Name: "rick deckard"}
	body, err := NewRenderer(time.Second).Render(context.Background(), st, "signup_email", FormatHTML, u, map[string]any{"code": "12345"})
	if err != nil {
		t.Fatal(err)
	}
	if body != "<p>hola</p>" {
		t.Fatalf("body = %q", body)
	}
	if accept != "text/html" {
		t.Fatalf("accept = %q", accept)
	}
	if got.Template != "signup_email" || got.User["id"] != "u-1" || got.Variables["code"] != "12345" {
		t.Fatalf("request = %+v", got)
	}
}

func TestRenderNon200IsFatal(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	st := &core.Store{TemplateURL: srv.URL}
	_, err := NewRenderer(time.Second).Render(context.Background(), st, "x", FormatPlaintext, nil, nil)
	var rerr *RenderError
	if !errors.As(err, &rerr) || rerr.Status != http.StatusBadGateway {
		t.Fatalf("want RenderError 502, got %v", err)
	}
}

func TestRenderTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	defer srv.Close()

	st := &core.Store{TemplateURL: srv.URL}
	_, err := NewRenderer(20*time.Millisecond).Render(context.Background(), st, "slow", FormatHTML, nil, nil)
	var rerr *RenderError
	if !errors.As(err, &rerr) {
		t.Fatalf("want RenderError, got %v", err)
	}
}
