// ABOUTME: Legacy bcrypt credentials imported from the previous system
// ABOUTME: Only verified, never produced

package password

import (
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

type legacyVerifier struct{}

func (legacyVerifier) verify(plaintext, stored string) (bool, error) {
	err := bcrypt.CompareHashAndPassword([]byte(stored), []byte(plaintext))
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, bcrypt.ErrMismatchedHashAndPassword):
		return false, nil
	case errors.Is(err, bcrypt.ErrPasswordTooLong):
		return false, nil
	default:
		// Bad prefix, short hash, or out-of-range cost in the stored value.
		return false, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
}
