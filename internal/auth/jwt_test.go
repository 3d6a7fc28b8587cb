package auth

import (
	"testing"
	"time"
)

func TestCreateAndVerifyToken(t *testing.T) {
	cfg := TokenConfig{Secret: "secret", Expiry: time.Hour, Issuer: "test"}
	tok, err := CreateToken(Grant{Subject: "operator", LocationID: "loc", ContactID: "con"}, cfg)
	if err != nil {
		t.Fatalf("CreateToken: %v", err)
	}

	claims, err := VerifyToken(tok, cfg)
	if err != nil {
		t.Fatalf("VerifyToken: %v", err)
	}
	if claims.Subject != "operator" || claims.LocationID != "loc" || claims.ContactID != "con" {
		t.Fatalf("unexpected claims %+v", claims)
	}
}

func TestVerifyToken_WrongSecret(t *testing.T) {
	cfg := TokenConfig{Secret: "secret", Expiry: time.Hour, Issuer: "test"}
	tok, err := CreateToken(Grant{Subject: "operator"}, cfg)
	if err != nil {
		t.Fatalf("CreateToken: %v", err)
	}

	_, err = VerifyToken(tok, TokenConfig{Secret: "wrong", Expiry: time.Hour, Issuer: "test"})
	if err == nil {
		t.Fatalf("expected error")
	}
}

func TestCreateToken_Rejects(t *testing.T) {
	cfg := TokenConfig{Secret: "secret", Expiry: time.Hour, Issuer: "test"}
	cases := []struct {
		name  string
		grant Grant
		cfg   TokenConfig
	}{
		{name: "negative expiry", grant: Grant{Subject: "u"}, cfg: TokenConfig{Secret: "secret", Expiry: -time.Second}},
		{name: "missing secret", grant: Grant{Subject: "u"}, cfg: TokenConfig{Expiry: time.Hour}},
		{name: "missing subject", grant: Grant{}, cfg: cfg},
		{name: "past expiry", grant: Grant{Subject: "u", ExpiresAt: time.Now().Add(-time.Minute)}, cfg: cfg},
	}
	for _, tc := range cases {
		if _, err := CreateToken(tc.grant, tc.cfg); err == nil {
			t.Fatalf("%s: expected error", tc.name)
		}
	}
}

func TestCreateToken_ExplicitExpiry(t *testing.T) {
	cfg := TokenConfig{Secret: "secret", Expiry: time.Hour, Issuer: "test"}
	at := time.Now().Add(72 * time.Hour).Truncate(time.Second)
	tok, err := CreateToken(Grant{Subject: "u", ExpiresAt: at}, cfg)
	if err != nil {
		t.Fatalf("CreateToken: %v", err)
	}
	claims, err := VerifyToken(tok, cfg)
	if err != nil {
		t.Fatalf("VerifyToken: %v", err)
	}
	if !claims.ExpiresAt.Time.Equal(at) {
		t.Fatalf("expected expiry %s, got %s", at, claims.ExpiresAt.Time)
	}
}

func TestInspect(t *testing.T) {
	cfg := TokenConfig{Secret: "secret", Expiry: time.Hour, Issuer: "test"}
	tok, err := CreateToken(Grant{Subject: "operator", LocationID: "loc"}, cfg)
	if err != nil {
		t.Fatalf("CreateToken: %v", err)
	}

	info, err := Inspect(tok)
	if err != nil {
		t.Fatalf("Inspect: %v", err)
	}
	if info.Algorithm != "HS256" || info.Subject != "operator" || info.Issuer != "test" || info.LocationID != "loc" {
		t.Fatalf("unexpected info %+v", info)
	}
	if info.ExpiresAt == nil || info.Expired(time.Now()) {
		t.Fatalf("expected unexpired token")
	}
	if !info.Expired(time.Now().Add(2 * time.Hour)) {
		t.Fatalf("expected token expired two hours from now")
	}
}

func TestInspect_NotAJWT(t *testing.T) {
	if _, err := Inspect("opaque-api-key"); err == nil {
		t.Fatalf("expected error")
	}
}
