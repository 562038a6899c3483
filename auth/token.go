package auth

import (
	"hrdesk/domain"
	"hrdesk/errors"

	"github.com/golang-jwt/jwt/v5"
)

// TokenClaims is the subset of the bearer token payload the client reads.
// The client never holds the signing key, so nothing extracted here is
// trusted until the identity endpoint has confirmed the credential.
type TokenClaims struct {
	OrganizationID string `json:"org_id"`
	jwt.RegisteredClaims
}

var parser = jwt.NewParser()

// TenantFromCredential extracts the tenant identifier embedded in the
// bearer token without verifying the signature. It is a routing hint
// only; callers must treat it as unconfirmed until /auth/me succeeds.
func TenantFromCredential(cred domain.Credential) (string, error) {
	claims := &TokenClaims{}
	if _, _, err := parser.ParseUnverified(string(cred), claims); err != nil {
		return "", errors.ErrTokenInvalid
	}
	return claims.OrganizationID, nil
}
