package validation

import "testing"

func TestNormalizeName(t *testing.T) {
	cases := map[string]string{
		"  John  Doe ": "John Doe",
		"John\tDoe":    "John Doe",
		"John Doe":     "John Doe",
		"":             "",
		"   ":          "",
		"Solveig Ås":   "Solveig Ås",
	}
	for in, want := range cases {
		if got := NormalizeName(in); got != want {
			t.Fatalf("NormalizeName(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestNameMatch(t *testing.T) {
	if !NameMatch(" john  doe ", "John Doe") {
		t.Fatal("expected names to match")
	}
	if NameMatch("John Doe", "Jane Doe") {
		t.Fatal("expected names not to match")
	}
}

func TestNormalizeEmail(t *testing.T) {
	if got := NormalizeEmail("  Bob@Example.COM "); got != "bob@example.com" {
		t.Fatalf("got %q", got)
	}
	if got := NormalizeEmail("   "); got != "" {
		t.Fatalf("blank should normalize to empty, got %q", got)
	}
}

func TestEmailValid(t *testing.T) {
	valids := []string{"bob@example.com", " bob@example.com ", "a@b"}
	for _, v := range valids {
		if !EmailValid(v) {
			t.Fatalf("expected valid: %q", v)
		}
	}
	invalids := []string{"", "bob", "bob example.com", "bob@ example.com"}
	for _, v := range invalids {
		if EmailValid(v) {
			t.Fatalf("expected invalid: %q", v)
		}
	}
}

func TestNormalizeMobile(t *testing.T) {
	cases := map[string]string{
		"+47 912 34 567": "91234567",
		"0047 91234567":  "91234567",
		"912-34-567":     "91234567",
		"91234567":       "91234567",
		"":               "",
	}
	for in, want := range cases {
		if got := NormalizeMobile(in); got != want {
			t.Fatalf("NormalizeMobile(%q) = %q, want %q", in, got, want)
		}
	}
}

// Re-normalizing a normalized value must be a no-op.
func TestNormalizeIdempotent(t *testing.T) {
	for _, raw := range []string{"+47 912 34 567", "  Bob@Example.COM ", "  John  Doe "} {
		for _, f := range []func(string) string{NormalizeMobile, NormalizeEmail, NormalizeName} {
			once := f(raw)
			if twice := f(once); twice != once {
				t.Fatalf("normalization not idempotent: %q -> %q -> %q", raw, once, twice)
			}
		}
	}
}

func TestMobileValid(t *testing.T) {
	valids := []string{"+47 912 34 567", "91234567", "912 34 567", "12345678", "10002", "+47 10002"}
	for _, v := range valids {
		if !MobileValid(v) {
			t.Fatalf("expected valid: %q", v)
		}
	}
	invalids := []string{"", "9123456", "912345678", "1234", "123456", "not a number", "91234567x"}
	for _, v := range invalids {
		if MobileValid(v) {
			t.Fatalf("expected invalid: %q", v)
		}
	}
}
