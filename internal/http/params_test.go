package http

import (
	"encoding/base64"
	"encoding/json"
	"testing"
)

func TestParamsRoundtrip(t *testing.T) {
	in := map[string]string{"nonce_id": "n-123", "code": "X7K4P9"}
	out, err := DecodeParams(EncodeParams(in))
	if err != nil {
		t.Fatal(err)
	}
	if out["nonce_id"] != in["nonce_id"] || out["code"] != in["code"] {
		t.Fatalf("roundtrip mismatch: %v", out)
	}
}

func TestDecodeParamsAcceptsPaddedBase64(t *testing.T) {
	raw, _ := json.Marshal(map[string]string{"nonce_id": "n-1", "code": "99"})
	blob := base64.URLEncoding.EncodeToString(raw)
	out, err := DecodeParams(blob)
	if err != nil {
		t.Fatal(err)
	}
	if out["nonce_id"] != "n-1" {
		t.Fatalf("got %v", out)
	}
}

func TestDecodeParamsRejectsGarbage(t *testing.T) {
	if _, err := DecodeParams("%%%not-base64%%%"); err == nil {
		t.Fatal("expected error")
	}
	blob := base64.RawURLEncoding.EncodeToString([]byte("not json"))
	if _, err := DecodeParams(blob); err == nil {
		t.Fatal("expected error")
	}
}

func TestCurrentURLDropsParams(t *testing.T) {
	got := currentURL("http://id.example/oauth/authorize?client_id=abc&force_dialog=true&state=s", "force_dialog")
	want := "http://id.example/oauth/authorize?client_id=abc&state=s"
	if got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestCurrentURLKeepsUnparseableInput(t *testing.T) {
	raw := "http://id.example/%zz"
	if got := currentURL(raw, "x"); got != raw {
		t.Fatalf("got %q", got)
	}
}
