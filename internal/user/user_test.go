package user

import (
	"context"
	"testing"
	"time"

	"github.com/dropDatabas3/vanilla/internal/security/password"
	"github.com/dropDatabas3/vanilla/internal/store/core"
	"github.com/dropDatabas3/vanilla/internal/store/memory"
)

func str(s string) *string { return &s }

func newStore(t *testing.T, repo *memory.Store) *core.Store {
	t.Helper()
	st := &core.Store{
		Name:        "acme",
		DefaultURL:  "https://acme.example/",
		TemplateURL: "https://templates.example/acme",
		Secret:      "s3cret",
	}
	if err := repo.CreateStore(context.Background(), st); err != nil {
		t.Fatalf("create store: %v", err)
	}
	return st
}

func firstSymbol(errs []FieldError, field string) string {
	for _, e := range errs {
		if e.Field == field {
			return e.Symbol
		}
	}
	return ""
}

func TestSetEmailResetsVerifiedOnChange(t *testing.T) {
	u := &core.User{EmailAddress: "a@b.example", EmailVerified: true}
	SetEmail(u, " A@B.example ")
	if !u.EmailVerified {
		t.Fatal("same normalized value should not reset verified")
	}
	SetEmail(u, "new@b.example")
	if u.EmailVerified {
		t.Fatal("changed value must reset verified")
	}
	if u.EmailAddress != "new@b.example" {
		t.Fatalf("email = %q", u.EmailAddress)
	}
}

func TestSetMobileResetsVerifiedOnChange(t *testing.T) {
	u := &core.User{MobileNumber: "99988777", MobileVerified: true}
	SetMobile(u, "+47 999 88 777")
	if !u.MobileVerified {
		t.Fatal("same normalized value should not reset verified")
	}
	SetMobile(u, "99988778")
	if u.MobileVerified {
		t.Fatal("changed value must reset verified")
	}
}

func TestValidateName(t *testing.T) {
	repo := memory.New()
	svc := NewService(repo)
	st := newStore(t, repo)
	ctx := context.Background()

	cases := []struct {
		name string
		want string
	}{
		{"", SymbolNameMissing},
		{"abcd", SymbolNameTooShort},
		{"abcdefghijklmnopqrstuvwxyz", SymbolNameTooLong},
		{"rick@deckard", SymbolNameInvalid},
		{"rick deckard", ""},
	}
	for _, c := range cases {
		u := &core.User{StoreID: st.ID, Name: c.name}
		errs, err := svc.Validate(ctx, st, u, Changes{})
		if err != nil {
			t.Fatalf("validate(%q): %v", c.name, err)
		}
		if got := firstSymbol(errs, "name"); got != c.want {
			t.Errorf("name %q: got %q, want %q", c.name, got, c.want)
		}
	}
}

func TestValidatePasswordRules(t *testing.T) {
	repo := memory.New()
	svc := NewService(repo)
	st := newStore(t, repo)
	ctx := context.Background()
	u := &core.User{StoreID: st.ID, Name: "rick deckard"}

	errs, err := svc.Validate(ctx, st, u, Changes{Password: str("  ")})
	if err != nil {
		t.Fatal(err)
	}
	if got := firstSymbol(errs, "password"); got != SymbolPasswordMissing {
		t.Fatalf("blank password: %q", got)
	}

	errs, _ = svc.Validate(ctx, st, u, Changes{Password: str("abcd")})
	if got := firstSymbol(errs, "password"); got != SymbolPasswordTooShort {
		t.Fatalf("short password: %q", got)
	}

	errs, _ = svc.Validate(ctx, st, u, Changes{Password: str("hunter22"), Confirmation: str("hunter23")})
	if got := firstSymbol(errs, "password"); got != SymbolPasswordMismatch {
		t.Fatalf("mismatched confirmation: %q", got)
	}

	errs, _ = svc.Validate(ctx, st, u, Changes{Password: str("hunter22"), Confirmation: str(" hunter22 ")})
	if got := firstSymbol(errs, "password"); got != "" {
		t.Fatalf("trimmed confirmation should match: %q", got)
	}

	// Sin atributo virtual, no corre ninguna regla de password.
	errs, _ = svc.Validate(ctx, st, u, Changes{})
	if got := firstSymbol(errs, "password"); got != "" {
		t.Fatalf("unset password attribute validated: %q", got)
	}
}

func TestValidateCurrentPassword(t *testing.T) {
	repo := memory.New()
	svc := NewService(repo)
	st := newStore(t, repo)
	ctx := context.Background()

	hash, err := password.Set("oldpass").Hash()
	if err != nil {
		t.Fatal(err)
	}
	u := &core.User{ID: "u-1", StoreID: st.ID, Name: "rick deckard", PasswordHash: hash}

	errs, _ := svc.Validate(ctx, st, u, Changes{Password: str("newpass"), RequireCurrent: true})
	if got := firstSymbol(errs, "current_password"); got != SymbolCurrentPwdMissing {
		t.Fatalf("missing current: %q", got)
	}

	errs, _ = svc.Validate(ctx, st, u, Changes{Password: str("newpass"), CurrentPassword: str("nope")})
	if got := firstSymbol(errs, "current_password"); got != SymbolWrongPassword {
		t.Fatalf("wrong current: %q", got)
	}

	errs, _ = svc.Validate(ctx, st, u, Changes{Password: str("newpass"), CurrentPassword: str("oldpass")})
	if got := firstSymbol(errs, "current_password"); got != "" {
		t.Fatalf("correct current rejected: %q", got)
	}
}

func TestValidateEmailCollision(t *testing.T) {
	repo := memory.New()
	svc := NewService(repo)
	st := newStore(t, repo)
	ctx := context.Background()

	holder := &core.User{StoreID: st.ID, Name: "rachael tyrell", EmailAddress: "shared@b.example", EmailVerified: true, Activated: true}
	if err := repo.CreateUser(ctx, holder); err != nil {
		t.Fatal(err)
	}

	u := &core.User{StoreID: st.ID, Name: "rick deckard", EmailAddress: "shared@b.example"}
	errs, err := svc.Validate(ctx, st, u, Changes{})
	if err != nil {
		t.Fatal(err)
	}
	if got := firstSymbol(errs, "email_address"); got != SymbolEmailInUse {
		t.Fatalf("verified collision: %q", got)
	}

	// La misma dirección sin verificar en otro usuario no bloquea.
	holder.EmailVerified = false
	if err := repo.UpdateUser(ctx, holder); err != nil {
		t.Fatal(err)
	}
	errs, _ = svc.Validate(ctx, st, u, Changes{})
	if got := firstSymbol(errs, "email_address"); got != "" {
		t.Fatalf("unverified holder should not block: %q", got)
	}

	u.EmailAddress = "not-an-email"
	errs, _ = svc.Validate(ctx, st, u, Changes{})
	if got := firstSymbol(errs, "email_address"); got != SymbolEmailInvalid {
		t.Fatalf("invalid shape: %q", got)
	}
}

func TestValidateMobileCollision(t *testing.T) {
	repo := memory.New()
	svc := NewService(repo)
	st := newStore(t, repo)
	ctx := context.Background()

	holder := &core.User{StoreID: st.ID, Name: "rachael tyrell", MobileNumber: "99988777", MobileVerified: true, Activated: true}
	if err := repo.CreateUser(ctx, holder); err != nil {
		t.Fatal(err)
	}

	u := &core.User{StoreID: st.ID, Name: "rick deckard", MobileNumber: "99988777"}
	errs, _ := svc.Validate(ctx, st, u, Changes{})
	if got := firstSymbol(errs, "mobile_number"); got != SymbolMobileInUse {
		t.Fatalf("verified collision: %q", got)
	}
}

func TestSaveDerivesHashAndPersists(t *testing.T) {
	repo := memory.New()
	svc := NewService(repo)
	st := newStore(t, repo)
	ctx := context.Background()

	u := &core.User{StoreID: st.ID, Name: "rick deckard"}
	errs, err := svc.Save(ctx, st, u, Changes{Password: str("hunter22")})
	if err != nil {
		t.Fatal(err)
	}
	if len(errs) > 0 {
		t.Fatalf("unexpected validation errors: %v", errs)
	}
	if u.ID == "" {
		t.Fatal("user not persisted")
	}
	if !PasswordMatch(u, "hunter22") {
		t.Fatal("derived hash does not match the plaintext")
	}
	if PasswordMatch(u, "other") {
		t.Fatal("hash matches a wrong candidate")
	}
}

func TestActivateIdempotent(t *testing.T) {
	u := &core.User{}
	first := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	Activate(u, first)
	if !u.Activated || u.ActivatedAt == nil || !u.ActivatedAt.Equal(first) {
		t.Fatalf("activate: %+v", u)
	}
	Activate(u, first.Add(time.Hour))
	if !u.ActivatedAt.Equal(first) {
		t.Fatal("second activate must not move activated_at")
	}
}

func TestDeleteClearsEndpointsIdempotently(t *testing.T) {
	u := &core.User{
		MobileNumber: "99988777", MobileVerified: true,
		EmailAddress: "a@b.example", EmailVerified: true,
	}
	first := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	Delete(u, first)
	if !u.Deleted || u.DeletedAt == nil {
		t.Fatal("not deleted")
	}
	if u.MobileNumber != "" || u.MobileVerified || u.EmailAddress != "" || u.EmailVerified {
		t.Fatalf("endpoints not cleared: %+v", u)
	}
	Delete(u, first.Add(time.Hour))
	if !u.DeletedAt.Equal(first) {
		t.Fatal("second delete must not move deleted_at")
	}
}
