package token

import (
	"testing"
	"time"
)

func TestGenerateParseRoundTrip(t *testing.T) {
	signed, err := Generate("dashboard-admin", "test-secret", time.Hour)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}

	claims, err := Parse(signed, "test-secret")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if claims.Subject != "dashboard-admin" {
		t.Fatalf("unexpected subject %q", claims.Subject)
	}
	if claims.Issuer != "openalex-api-analytics" {
		t.Fatalf("unexpected issuer %q", claims.Issuer)
	}
}

func TestGenerateHonorsTTL(t *testing.T) {
	signed, err := Generate("dashboard-admin", "test-secret", 30*time.Minute)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}

	claims, err := Parse(signed, "test-secret")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	lifetime := claims.ExpiresAt.Sub(claims.IssuedAt.Time)
	if lifetime != 30*time.Minute {
		t.Fatalf("expected 30m lifetime, got %s", lifetime)
	}
}

func TestParseRejectsWrongSecret(t *testing.T) {
	signed, err := Generate("dashboard-admin", "test-secret", time.Hour)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if _, err := Parse(signed, "other-secret"); err == nil {
		t.Fatalf("expected signature validation to fail")
	}
}

func TestParseRejectsExpiredToken(t *testing.T) {
	signed, err := Generate("dashboard-admin", "test-secret", -time.Minute)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if _, err := Parse(signed, "test-secret"); err == nil {
		t.Fatalf("expected expired token to fail validation")
	}
}
