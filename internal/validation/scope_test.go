package validation

import (
	"reflect"
	"testing"
)

func TestParseScopes(t *testing.T) {
	cases := []struct {
		in   []string
		want []string
	}{
		{[]string{"basic,extended"}, []string{"basic", "extended"}},
		{[]string{"basic extended"}, []string{"basic", "extended"}},
		{[]string{"basic, basic ,extended"}, []string{"basic", "extended"}},
		{[]string{"basic", "extended"}, []string{"basic", "extended"}},
		{[]string{""}, []string{}},
		{nil, []string{}},
		{[]string{"  , ,"}, []string{}},
	}
	for _, c := range cases {
		if got := ParseScopes(c.in...); !reflect.DeepEqual(got, c.want) {
			t.Fatalf("ParseScopes(%q) = %v, want %v", c.in, got, c.want)
		}
	}
}

func TestParseScopesPreservesFirstOccurrenceOrder(t *testing.T) {
	got := ParseScopes("extended,basic,extended,basic")
	want := []string{"extended", "basic"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %v, want %v", got, want)
	}
}

func TestMatchScope(t *testing.T) {
	if !MatchScope([]string{"basic", "extended"}, "basic") {
		t.Fatal("subset should match")
	}
	if MatchScope([]string{"basic"}, "basic,extended") {
		t.Fatal("superset request must not match")
	}
	if !MatchScope([]string{"basic"}, "") {
		t.Fatal("empty request matches trivially")
	}
	if !MatchScope(nil, "") {
		t.Fatal("empty request matches even with no allowed scopes")
	}
	if !MatchScope([]string{"basic,extended"}, "extended basic") {
		t.Fatal("delimiters should not matter")
	}
}
