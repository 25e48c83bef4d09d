package oauth

import (
	"errors"
	"net/url"
	"strings"
	"testing"

	"github.com/dropDatabas3/vanilla/internal/store/core"
)

func client(uri string) *core.Client {
	return &core.Client{OAuthRedirectURI: uri}
}

func TestValidRedirectURI(t *testing.T) {
	cases := []struct {
		registered string
		candidate  string
		want       bool
	}{
		{"https://app.example/cb", "", true},
		{"https://app.example/cb", "https://app.example/other", true},
		{"https://app.example/cb", "https://other.example/cb", false},
		{"https://app.example/cb", "ftp://app.example/cb", false},
		{"https://app.example/cb", "http://app.example/cb", true},
		{"http://app.example/cb", "https://app.example/cb", true},
		{"https://app.example:8443/cb", "http://app.example/cb", false},
		{"https://app.example/cb", "http://app.example:8080/cb", false},
		{"https://app.example:8443/cb", "https://app.example:8443/x", true},
		{"https://app.example:8443/cb", "https://app.example/x", false},
	}
	for _, c := range cases {
		if got := ValidRedirectURI(client(c.registered), c.candidate); got != c.want {
			t.Errorf("registered %q candidate %q: got %v", c.registered, c.candidate, got)
		}
	}
}

func TestMergeRedirectURLUsesDefaultWhenNoCandidate(t *testing.T) {
	c := client("https://app.example/cb?keep=1")
	got, err := MergeRedirectURL(c, "", url.Values{"code": {"abc"}})
	if err != nil {
		t.Fatal(err)
	}
	u, _ := url.Parse(got)
	q := u.Query()
	if q.Get("keep") != "1" || q.Get("code") != "abc" {
		t.Fatalf("got %q", got)
	}
}

func TestMergeRedirectURLExtraParamsWin(t *testing.T) {
	c := client("https://app.example/cb?state=old")
	got, err := MergeRedirectURL(c, "", url.Values{"state": {"new"}})
	if err != nil {
		t.Fatal(err)
	}
	u, _ := url.Parse(got)
	if vs := u.Query()["state"]; len(vs) != 1 || vs[0] != "new" {
		t.Fatalf("state = %v", vs)
	}
}

func TestMergeRedirectURLNoEmptyQuestionMark(t *testing.T) {
	c := client("https://app.example/cb")
	got, err := MergeRedirectURL(c, "", url.Values{})
	if err != nil {
		t.Fatal(err)
	}
	if strings.Contains(got, "?") {
		t.Fatalf("empty params must not leave a bare ?: %q", got)
	}
}

func TestMergeRedirectURLRejectsInvalidCandidate(t *testing.T) {
	c := client("https://app.example/cb")
	_, err := MergeRedirectURL(c, "https://evil.example/cb", url.Values{"code": {"abc"}})
	var bad *InvalidRedirectURLError
	if !errors.As(err, &bad) {
		t.Fatalf("want InvalidRedirectURLError, got %v", err)
	}
	if bad.URL != "https://evil.example/cb" {
		t.Fatalf("error should carry the offending url, got %q", bad.URL)
	}
}

func TestMergeFragmentPlacesParamsAfterHash(t *testing.T) {
	c := client("https://app.example/cb")
	got, err := MergeFragment(c, "", url.Values{"access_token": {"tok"}, "token_type": {"bearer"}})
	if err != nil {
		t.Fatal(err)
	}
	base, frag, ok := strings.Cut(got, "#")
	if !ok {
		t.Fatalf("no fragment in %q", got)
	}
	if strings.Contains(base, "access_token") {
		t.Fatalf("token leaked into the query string: %q", got)
	}
	vals, err := url.ParseQuery(frag)
	if err != nil {
		t.Fatal(err)
	}
	if vals.Get("access_token") != "tok" || vals.Get("token_type") != "bearer" {
		t.Fatalf("fragment = %q", frag)
	}
}

func TestParseFlow(t *testing.T) {
	cases := []struct {
		responseType string
		legacyType   string
		want         Flow
		ok           bool
	}{
		{"code", "", FlowAuthorizationCode, true},
		{"token", "", FlowImplicitGrant, true},
		{"", "web_server", FlowAuthorizationCode, true},
		// El alias del draft pisa el response_type.
		{"token", "web_server", FlowAuthorizationCode, true},
		{"", "", "", false},
		{"id_token", "", "", false},
	}
	for _, c := range cases {
		got, ok := ParseFlow(c.responseType, c.legacyType)
		if got != c.want || ok != c.ok {
			t.Errorf("ParseFlow(%q, %q) = %q, %v", c.responseType, c.legacyType, got, ok)
		}
	}
}
