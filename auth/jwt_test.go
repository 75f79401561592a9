package auth

import (
	"net/http/httptest"
	"testing"
)

func TestGenerateAndExtract(t *testing.T) {
	secret := "test-secret"
	token, err := GenerateToken(secret, "alice", 5)
	if err != nil {
		t.Fatalf("GenerateToken failed: %v", err)
	}

	r := httptest.NewRequest("GET", "/insights/reports", nil)
	r.Header.Set("Authorization", "Bearer "+token)

	caller, err := ExtractCaller(r, secret)
	if err != nil {
		t.Fatalf("ExtractCaller failed: %v", err)
	}
	if caller != "alice" {
		t.Errorf("caller = %q, want alice", caller)
	}
}

func TestExtractCaller_NoHeader(t *testing.T) {
	r := httptest.NewRequest("GET", "/", nil)
	if _, err := ExtractCaller(r, "secret"); err == nil {
		t.Error("expected error without Authorization header")
	}
}

func TestExtractCaller_WrongSecret(t *testing.T) {
	token, err := GenerateToken("secret-a", "bob", 5)
	if err != nil {
		t.Fatalf("GenerateToken failed: %v", err)
	}
	r := httptest.NewRequest("GET", "/", nil)
	r.Header.Set("Authorization", "Bearer "+token)
	if _, err := ExtractCaller(r, "secret-b"); err == nil {
		t.Error("expected error with wrong secret")
	}
}

func TestExtractCaller_Expired(t *testing.T) {
	token, err := GenerateToken("secret", "carol", -1)
	if err != nil {
		t.Fatalf("GenerateToken failed: %v", err)
	}
	r := httptest.NewRequest("GET", "/", nil)
	r.Header.Set("Authorization", "Bearer "+token)
	if _, err := ExtractCaller(r, "secret"); err == nil {
		t.Error("expected error for expired token")
	}
}
