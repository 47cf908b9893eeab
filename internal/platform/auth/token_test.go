package auth

import (
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestIssueAndParse(t *testing.T) {
	issuer := NewTokenIssuer("test-secret-test-secret-test-secret!", time.Hour)
	userID := uuid.New()

	signed, tokenID, err := issuer.Issue(userID, []string{"doctor"}, []string{"patient.view"})
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if tokenID == uuid.Nil {
		t.Fatal("token id is nil")
	}

	claims, err := issuer.Parse(signed)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if claims.Subject != userID.String() {
		t.Errorf("subject = %q, want %q", claims.Subject, userID)
	}
	if claims.TokenID != tokenID.String() {
		t.Errorf("token_id = %q, want %q", claims.TokenID, tokenID)
	}
	if len(claims.Roles) != 1 || claims.Roles[0] != "doctor" {
		t.Errorf("roles = %v", claims.Roles)
	}
	if len(claims.Permissions) != 1 || claims.Permissions[0] != "patient.view" {
		t.Errorf("permissions = %v", claims.Permissions)
	}
}

func TestParseRejectsWrongSecret(t *testing.T) {
	issuer := NewTokenIssuer("secret-one-secret-one-secret-one!!!!", time.Hour)
	other := NewTokenIssuer("secret-two-secret-two-secret-two!!!!", time.Hour)

	signed, _, err := issuer.Issue(uuid.New(), nil, nil)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if _, err := other.Parse(signed); err == nil {
		t.Fatal("token signed with a different secret parsed, want error")
	}
}

func TestParseRejectsExpired(t *testing.T) {
	issuer := NewTokenIssuer("test-secret-test-secret-test-secret!", -time.Minute)

	signed, _, err := issuer.Issue(uuid.New(), nil, nil)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if _, err := issuer.Parse(signed); err == nil {
		t.Fatal("expired token parsed, want error")
	}
}

func TestParseRejectsGarbage(t *testing.T) {
	issuer := NewTokenIssuer("test-secret-test-secret-test-secret!", time.Hour)
	if _, err := issuer.Parse("not.a.token"); err == nil {
		t.Fatal("garbage token parsed, want error")
	}
}
