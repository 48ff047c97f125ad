package testhelpers

import (
	"testing"
	"time"

	"github.com/ekaya-inc/finmon/pkg/auth"
	"github.com/ekaya-inc/finmon/pkg/models"
)

// TestJWTSecret signs tokens in tests. Never use it outside tests.
const TestJWTSecret = "finmon-test-secret-0123456789abcdef"

// NewTestTokenIssuer returns an issuer signing with TestJWTSecret.
func NewTestTokenIssuer() auth.TokenIssuer {
	return auth.NewTokenIssuer(TestJWTSecret, "finmon", time.Hour)
}

// BearerToken issues a token for user and returns it with the "Bearer "
// prefix for the Authorization header.
func BearerToken(t *testing.T, issuer auth.TokenIssuer, user *models.User) string {
	t.Helper()

	token, _, err := issuer.Issue(user)
	if err != nil {
		t.Fatalf("Failed to issue test token: %v", err)
	}
	return "Bearer " + token
}
