package auth

import (
	"testing"
	"time"
)

func TestIssueAndVerify(t *testing.T) {
	signer := NewSigner("test-secret", "autoinspect", time.Hour)

	token, issued, err := signer.Issue("user-1", "user")
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if issued.TokenID == "" {
		t.Fatalf("expected token id to be assigned")
	}

	claims, err := signer.Verify(token)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if claims.UserID != "user-1" || claims.Role != "user" {
		t.Fatalf("unexpected claims: %+v", claims)
	}
	if claims.TokenID != issued.TokenID {
		t.Fatalf("token id mismatch: %s vs %s", claims.TokenID, issued.TokenID)
	}
}

func TestVerifyRejectsWrongSecret(t *testing.T) {
	signer := NewSigner("secret-a", "autoinspect", time.Hour)
	other := NewSigner("secret-b", "autoinspect", time.Hour)

	token, _, err := signer.Issue("user-1", "user")
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if _, err := other.Verify(token); err == nil {
		t.Fatalf("expected verification to fail with wrong secret")
	}
}

func TestVerifyRejectsExpired(t *testing.T) {
	signer := NewSigner("test-secret", "autoinspect", -time.Minute)

	token, _, err := signer.Issue("user-1", "user")
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if _, err := signer.Verify(token); err == nil {
		t.Fatalf("expected expired token to be rejected")
	}
}

func TestVerifyRejectsGarbage(t *testing.T) {
	signer := NewSigner("test-secret", "autoinspect", time.Hour)
	if _, err := signer.Verify("not.a.token"); err == nil {
		t.Fatalf("expected garbage token to be rejected")
	}
}
