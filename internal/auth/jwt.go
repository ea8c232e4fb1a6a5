// Package auth extracts and verifies the caller's identity from a bearer
// JWT. This is external plumbing: the graph core only ever sees the
// resulting user_id string.
package auth

import (
	"crypto/rsa"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"github.com/vertexdb/vertexdb/internal/apierrors"
)

// Claims is the subset of the bearer token's payload this service relies on.
type Claims struct {
	jwt.RegisteredClaims
}

// Validator verifies RS256-signed tokens against a configured public key
// and issuer.
type Validator struct {
	publicKey *rsa.PublicKey
	issuer    string
}

// NewValidator builds a Validator from a PEM-encoded RSA public key.
func NewValidator(publicKeyPEM []byte, issuer string) (*Validator, error) {
	key, err := jwt.ParseRSAPublicKeyFromPEM(publicKeyPEM)
	if err != nil {
		return nil, err
	}
	return &Validator{publicKey: key, issuer: issuer}, nil
}

// UserID extracts and verifies the bearer token from an authorization
// header value ("Bearer <token>" or a bare token), returning the sub
// claim as the caller's user_id.
func (v *Validator) UserID(authorizationHeader string) (string, error) {
	if authorizationHeader == "" {
		return "", apierrors.Unauthenticated("missing authorization token")
	}
	token := strings.TrimPrefix(authorizationHeader, "Bearer ")

	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		return v.publicKey, nil
	}, jwt.WithValidMethods([]string{"RS256"}), jwt.WithIssuer(v.issuer))
	if err != nil || !parsed.Valid {
		return "", apierrors.Unauthenticated("invalid token")
	}

	sub := claims.Subject
	if sub == "" {
		return "", apierrors.Unauthenticated("token has no sub claim")
	}
	return sub, nil
}
