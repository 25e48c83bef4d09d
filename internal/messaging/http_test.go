package messaging

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

func TestHTTPGatewaySendSMS(t *testing.T) {
	var gotSession string
	var gotBody map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/sms" {
			t.Errorf("path = %q", r.URL.Path)
		}
		gotSession = r.Header.Get("X-Gateway-Session")
		json.NewDecoder(r.Body).Decode(&gotBody)
		json.NewEncoder(w).Encode(deliveryResponse{DeliveryID: "d-1"})
	}))
	defer srv.Close()

	st := &core.Store{Name: "acme", GatewaySession: "gw-token"}
	id, err := NewHTTPGateway(srv.URL, time.Second).SendSMS(context.Background(), st, "99988777", "your code is 12345")
	if err != nil {
		t.Fatal(err)
	}
	if id != "d-1" {
		t.Fatalf("delivery id = %q", id)
	}
	if gotSession != "gw-token" {
		t.Fatalf("session header = %q", gotSession)
	}
	if gotBody["recipient"] != "99988777" || gotBody["text"] == "" {
		t.Fatalf("body = %v", gotBody)
	}
}

func TestHTTPGatewayEmailDefaultsSender(t *testing.T) {
	var gotBody map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&gotBody)
		json.NewEncoder(w).Encode(deliveryResponse{DeliveryID: "d-2"})
	}))
	defer srv.Close()

	st := &core.Store{Name: "acme", DefaultSenderEmail: "noreply@acme.example"}
	g := NewHTTPGateway(srv.URL, time.Second)
	if _, err := g.SendEmail(context.Background(), st, "", "to@b.example", "Hi", "<p>x</p>", "x"); err != nil {
		t.Fatal(err)
	}
	if gotBody["sender"] != "noreply@acme.example" {
		t.Fatalf("sender = %q", gotBody["sender"])
	}
}

func TestHTTPGatewayFailureIsFatal(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	st := &core.Store{Name: "acme"}
	_, err := NewHTTPGateway(srv.URL, time.Second).SendSMS(context.Background(), st, "99988777", "x")
	var gerr *GatewayError
	if !errors.As(err, &gerr) || gerr.Status != http.StatusServiceUnavailable {
		t.Fatalf("want GatewayError 503, got %v", err)
	}
}

func TestHTTPGatewayDeliveryStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/deliveries/d-9" {
			t.Errorf("path = %q", r.URL.Path)
		}
		json.NewEncoder(w).Encode(deliveryResponse{DeliveryID: "d-9", Status: "delivered"})
	}))
	defer srv.Close()

	st := &core.Store{Name: "acme"}
	status, err := NewHTTPGateway(srv.URL, time.Second).DeliveryStatus(context.Background(), st, "d-9")
	if err != nil {
		t.Fatal(err)
	}
	if status != "delivered" {
		t.Fatalf("status = %q", status)
	}
}

func TestSMTPGatewayRejectsSMS(t *testing.T) {
	g := NewSMTPGateway(SMTPConfig{Host: "localhost", Port: 25})
	_, err := g.SendSMS(context.Background(), &core.Store{Name: "acme"}, "99988777", "x")
	var gerr *GatewayError
	if !errors.As(err, &gerr) {
		t.Fatalf("want GatewayError, got %v", err)
	}
}

func TestNewUnknownDriver(t *testing.T) {
	if _, err := New(Config{Driver: "pigeon"}); err == nil {
		t.Fatal("unknown driver must fail")
	}
}
