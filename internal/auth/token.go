// ABOUTME: JWT bearer tokens bound to server-side sessions
// ABOUTME: Uses HS256 signing with the configured session secret

package auth

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Token errors
var (
	ErrInvalidToken = errors.New("invalid token")
	ErrExpiredToken = errors.New("token expired")
	ErrMissingClaim = errors.New("missing required claim")
)

// TokenSigner issues and verifies HS256 signed JWTs naming a session in the "sid" claim.
type TokenSigner struct {
	secret []byte
	now    func() time.Time
}

// NewTokenSigner creates a signer with the given secret.
func NewTokenSigner(secret []byte) *TokenSigner {
	return &TokenSigner{secret: secret, now: time.Now}
}

// Generate creates a token for sessionID that expires after expiresIn.
// userID is recorded as the subject for audit only; the gate always resolves
// the user through the session.
func (s *TokenSigner) Generate(sessionID string, userID int64, expiresIn time.Duration) (string, time.Time, error) {
	now := s.now()
	expiresAt := now.Add(expiresIn)
	claims := jwt.MapClaims{
		"sid": sessionID,
		"sub": strconv.FormatInt(userID, 10),
		"iat": now.Unix(),
		"exp": expiresAt.Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("signing token: %w", err)
	}
	return signed, time.Unix(expiresAt.Unix(), 0), nil
}

// Verify validates the token and extracts the session ID from the "sid" claim.
func (s *TokenSigner) Verify(tokenString string) (sessionID string, err error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return "", ErrExpiredToken
		}
		return "", fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	if !token.Valid {
		return "", ErrInvalidToken
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return "", ErrInvalidToken
	}

	sid, ok := claims["sid"].(string)
	if !ok || sid == "" {
		return "", fmt.Errorf("%w: sid", ErrMissingClaim)
	}

	return sid, nil
}
