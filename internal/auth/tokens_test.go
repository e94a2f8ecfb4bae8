package auth

import (
	"testing"
	"time"
)

func TestTokenManager_RoundTrip(t *testing.T) {
	mgr := NewTokenManager("test-secret", 24*time.Hour)

	token, expiresAt, err := mgr.Encode("admin", SubjectTypeServiceAccount, "")
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if token == "" {
		t.Fatal("expected non-empty token")
	}
	if !expiresAt.After(time.Now()) {
		t.Fatal("expected expiry in the future")
	}

	claims, err := mgr.Decode(token)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if claims.Subject != "admin" {
		t.Fatalf("expected subject admin, got %s", claims.Subject)
	}
	if claims.SubType != SubjectTypeServiceAccount {
		t.Fatalf("expected sub_type ServiceAccount, got %s", claims.SubType)
	}
	if claims.Issuer != Issuer {
		t.Fatalf("expected issuer %s, got %s", Issuer, claims.Issuer)
	}
}

func TestTokenManager_RejectsWrongSecret(t *testing.T) {
	mgr := NewTokenManager("secret-a", time.Hour)
	other := NewTokenManager("secret-b", time.Hour)

	token, _, err := mgr.Encode("alice", SubjectTypeSubject, "team-a")
	if err != nil {
		t.Fatalf("encode: %v", err)
	}

	if _, err := other.Decode(token); err == nil {
		t.Fatal("expected decode with wrong secret to fail")
	}
}

func TestTokenManager_RejectsExpiredToken(t *testing.T) {
	mgr := NewTokenManager("test-secret", -time.Minute)

	token, _, err := mgr.Encode("admin", SubjectTypeServiceAccount, "")
	if err != nil {
		t.Fatalf("encode: %v", err)
	}

	if _, err := mgr.Decode(token); err == nil {
		t.Fatal("expected decode of expired token to fail")
	}
}

func TestPassword_HashAndVerify(t *testing.T) {
	hash, err := HashPassword("correct horse battery staple")
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	if !VerifyPassword(hash, "correct horse battery staple") {
		t.Fatal("expected matching password to verify")
	}
	if VerifyPassword(hash, "wrong password") {
		t.Fatal("expected mismatched password to fail verification")
	}
}
