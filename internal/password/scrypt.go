// ABOUTME: Native credential format: scrypt digest and salt, both hex, joined by a dot
// ABOUTME: Verification always runs the KDF before a constant-time compare

package password

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"strings"

	"golang.org/x/crypto/scrypt"
)

// Params are the scrypt cost parameters and output sizes for native credentials.
type Params struct {
	N       int
	R       int
	P       int
	KeyLen  int
	SaltLen int
}

// DefaultParams match the credentials already stored by the deployed system.
var DefaultParams = Params{N: 16384, R: 8, P: 1, KeyLen: 64, SaltLen: 16}

// separator splits the hex digest from the hex salt.
const separator = "."

// DummyCredential is a well-formed native credential that matches no password.
// Verifying against it costs one full KDF run.
var DummyCredential = strings.Repeat("00", DefaultParams.KeyLen) + separator + strings.Repeat("00", DefaultParams.SaltLen)

func hashNative(p Params, plaintext string) (string, error) {
	salt := make([]byte, p.SaltLen)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("reading salt: %w", err)
	}

	key, err := scrypt.Key([]byte(plaintext), salt, p.N, p.R, p.P, p.KeyLen)
	if err != nil {
		return "", fmt.Errorf("deriving key: %w", err)
	}

	return hex.EncodeToString(key) + separator + hex.EncodeToString(salt), nil
}

type nativeVerifier struct {
	params Params
}

func (v nativeVerifier) verify(plaintext, stored string) (bool, error) {
	digestHex, saltHex, ok := strings.Cut(stored, separator)
	if !ok || digestHex == "" || saltHex == "" {
		return false, fmt.Errorf("%w: expected <digest>.<salt>", ErrMalformed)
	}

	digest, err := hex.DecodeString(digestHex)
	if err != nil {
		return false, fmt.Errorf("%w: digest is not hex", ErrMalformed)
	}
	salt, err := hex.DecodeString(saltHex)
	if err != nil {
		return false, fmt.Errorf("%w: salt is not hex", ErrMalformed)
	}

	// Derive before looking at the digest length so a short digest costs the
	// same as a wrong one.
	key, err := scrypt.Key([]byte(plaintext), salt, v.params.N, v.params.R, v.params.P, v.params.KeyLen)
	if err != nil {
		return false, fmt.Errorf("deriving key: %w", err)
	}

	return subtle.ConstantTimeCompare(key, digest) == 1, nil
}
