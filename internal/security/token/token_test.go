package token

import (
	"strings"
	"testing"
)

func TestGenerateBase36(t *testing.T) {
	s := Generate(256)
	if s == "" {
		t.Fatal("empty token")
	}
	for _, r := range s {
		if !strings.ContainsRune("0123456789abcdefghijklmnopqrstuvwxyz", r) {
			t.Fatalf("unexpected rune %q in token %q", r, s)
		}
	}
}

func TestGenerateDistinct(t *testing.T) {
	seen := map[string]bool{}
	for i := 0; i < 100; i++ {
		s := Secret()
		if seen[s] {
			t.Fatalf("duplicate secret generated: %q", s)
		}
		seen[s] = true
	}
}

func TestNumericCode(t *testing.T) {
	for i := 0; i < 50; i++ {
		code := NumericCode(5)
		if len(code) != 5 {
			t.Fatalf("expected 5 digits, got %q", code)
		}
		seen := map[byte]bool{}
		for j := 0; j < len(code); j++ {
			c := code[j]
			if c < '0' || c > '9' {
				t.Fatalf("non-digit %q in code %q", c, code)
			}
			if seen[c] {
				t.Fatalf("repeated digit in code %q", code)
			}
			seen[c] = true
		}
	}
}

func TestNumericCodeCapped(t *testing.T) {
	if got := NumericCode(15); len(got) != 10 {
		t.Fatalf("expected cap at 10 distinct digits, got %q", got)
	}
}
