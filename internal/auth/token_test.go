// ABOUTME: Unit tests for session-bound JWT generation and verification
// ABOUTME: Tests valid, forged, expired and claim-less tokens

package auth

import (
	"encoding/base64"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testSecret = []byte("test-secret-key-for-jwt-signing-0123456789")

func TestTokenSigner_RoundTrip(t *testing.T) {
	signer := NewTokenSigner(testSecret)

	token, expiresAt, err := signer.Generate("session-abc", 42, time.Hour)
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(time.Hour), expiresAt, 2*time.Second)

	sid, err := signer.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, "session-abc", sid)
}

func TestTokenSigner_Rejects(t *testing.T) {
	signer := NewTokenSigner(testSecret)

	otherSigned, _, err := NewTokenSigner([]byte("different-secret")).Generate("session-abc", 1, time.Hour)
	require.NoError(t, err)

	unsigned, err := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.MapClaims{
		"sid": "session-abc",
		"exp": time.Now().Add(time.Hour).Unix(),
	}).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	hs512, err := jwt.NewWithClaims(jwt.SigningMethodHS512, jwt.MapClaims{
		"sid": "session-abc",
		"exp": time.Now().Add(time.Hour).Unix(),
	}).SignedString(testSecret)
	require.NoError(t, err)

	noExp, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sid": "session-abc",
	}).SignedString(testSecret)
	require.NoError(t, err)

	tests := []struct {
		name  string
		token string
	}{
		{"empty token", ""},
		{"garbage token", "not-a-jwt-token"},
		{"malformed JWT", "header.payload.signature"},
		{"plain base64 json", base64.StdEncoding.EncodeToString([]byte(`{"sid":"session-abc"}`))},
		{"wrong secret", otherSigned},
		{"alg none", unsigned},
		{"other hmac alg", hs512},
		{"no expiry", noExp},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := signer.Verify(tt.token)
			assert.ErrorIs(t, err, ErrInvalidToken)
		})
	}
}

func TestTokenSigner_Expired(t *testing.T) {
	signer := NewTokenSigner(testSecret)
	issued := time.Now()
	signer.now = func() time.Time { return issued }

	token, _, err := signer.Generate("session-abc", 1, time.Minute)
	require.NoError(t, err)

	signer.now = func() time.Time { return issued.Add(2 * time.Minute) }
	_, err = signer.Verify(token)
	assert.ErrorIs(t, err, ErrExpiredToken)
}

func TestTokenSigner_MissingSid(t *testing.T) {
	signer := NewTokenSigner(testSecret)

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": "1",
		"exp": time.Now().Add(time.Hour).Unix(),
	}).SignedString(testSecret)
	require.NoError(t, err)

	_, err = signer.Verify(token)
	assert.ErrorIs(t, err, ErrMissingClaim)
}
