package auth_test

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vertexdb/vertexdb/internal/apierrors"
	"github.com/vertexdb/vertexdb/internal/auth"
)

type keyPair struct {
	private *rsa.PrivateKey
	pem     []byte
}

func generateKeyPair(t *testing.T) keyPair {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	der, err := x509.MarshalPKIXPublicKey(&key.PublicKey)
	require.NoError(t, err)
	block := &pem.Block{Type: "PUBLIC KEY", Bytes: der}
	return keyPair{private: key, pem: pem.EncodeToMemory(block)}
}

func signToken(t *testing.T, key *rsa.PrivateKey, issuer, subject string, expiresAt time.Time) string {
	t.Helper()
	claims := auth.Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   subject,
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	signed, err := token.SignedString(key)
	require.NoError(t, err)
	return signed
}

func TestValidator_UserID_ValidBearerToken(t *testing.T) {
	kp := generateKeyPair(t)
	v, err := auth.NewValidator(kp.pem, "vertexdb")
	require.NoError(t, err)

	token := signToken(t, kp.private, "vertexdb", "user-42", time.Now().Add(time.Hour))

	userID, err := v.UserID("Bearer " + token)
	require.NoError(t, err)
	assert.Equal(t, "user-42", userID)
}

func TestValidator_UserID_BareTokenWithoutBearerPrefix(t *testing.T) {
	kp := generateKeyPair(t)
	v, err := auth.NewValidator(kp.pem, "vertexdb")
	require.NoError(t, err)

	token := signToken(t, kp.private, "vertexdb", "user-7", time.Now().Add(time.Hour))

	userID, err := v.UserID(token)
	require.NoError(t, err)
	assert.Equal(t, "user-7", userID)
}

func TestValidator_UserID_EmptyHeader(t *testing.T) {
	kp := generateKeyPair(t)
	v, err := auth.NewValidator(kp.pem, "vertexdb")
	require.NoError(t, err)

	_, err = v.UserID("")
	require.Error(t, err)
	ge, ok := apierrors.As(err)
	require.True(t, ok)
	assert.Equal(t, apierrors.CodeUnauthenticated, ge.Code)
}

func TestValidator_UserID_ExpiredToken(t *testing.T) {
	kp := generateKeyPair(t)
	v, err := auth.NewValidator(kp.pem, "vertexdb")
	require.NoError(t, err)

	token := signToken(t, kp.private, "vertexdb", "user-42", time.Now().Add(-time.Hour))

	_, err = v.UserID("Bearer " + token)
	require.Error(t, err)
	ge, ok := apierrors.As(err)
	require.True(t, ok)
	assert.Equal(t, apierrors.CodeUnauthenticated, ge.Code)
}

func TestValidator_UserID_WrongIssuer(t *testing.T) {
	kp := generateKeyPair(t)
	v, err := auth.NewValidator(kp.pem, "vertexdb")
	require.NoError(t, err)

	token := signToken(t, kp.private, "someone-else", "user-42", time.Now().Add(time.Hour))

	_, err = v.UserID("Bearer " + token)
	require.Error(t, err)
}

func TestValidator_UserID_SignedByWrongKey(t *testing.T) {
	kp := generateKeyPair(t)
	other := generateKeyPair(t)
	v, err := auth.NewValidator(kp.pem, "vertexdb")
	require.NoError(t, err)

	token := signToken(t, other.private, "vertexdb", "user-42", time.Now().Add(time.Hour))

	_, err = v.UserID("Bearer " + token)
	require.Error(t, err)
}

func TestValidator_UserID_MissingSubjectClaim(t *testing.T) {
	kp := generateKeyPair(t)
	v, err := auth.NewValidator(kp.pem, "vertexdb")
	require.NoError(t, err)

	token := signToken(t, kp.private, "vertexdb", "", time.Now().Add(time.Hour))

	_, err = v.UserID("Bearer " + token)
	require.Error(t, err)
	ge, ok := apierrors.As(err)
	require.True(t, ok)
	assert.Equal(t, apierrors.CodeUnauthenticated, ge.Code)
}
