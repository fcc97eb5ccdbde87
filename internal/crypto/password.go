package crypto

import (
	"crypto/sha256"
	"encoding/base64"

	"golang.org/x/crypto/bcrypt"
)

// MaxPasswordLength bounds accepted password input. Anything longer is
// rejected outright rather than hashed, so oversized bodies cannot tie up
// bcrypt time.
const MaxPasswordLength = 1000

// bcrypt only consumes the first 72 bytes of its input; longer passwords are
// condensed first so no attacker-controlled suffix is silently ignored.
const bcryptInputLimit = 72

// ValidationError reports unusable password input, as opposed to a password
// that simply does not match.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return e.Reason
}

// preparePassword applies the identical byte preparation to both the hash and
// verify paths: passwords beyond the bcrypt limit are condensed through a
// fixed-output digest.
func preparePassword(password string) []byte {
	raw := []byte(password)
	if len(raw) <= bcryptInputLimit {
		return raw
	}
	sum := sha256.Sum256(raw)
	return []byte(base64.RawStdEncoding.EncodeToString(sum[:]))
}

// HashPassword hashes a password with bcrypt. The returned string embeds the
// algorithm parameters and a random salt.
func HashPassword(password string) (string, error) {
	if password == "" {
		return "", &ValidationError{Reason: "password must not be empty"}
	}
	if len(password) > MaxPasswordLength {
		return "", &ValidationError{Reason: "password exceeds maximum length"}
	}
	hash, err := bcrypt.GenerateFromPassword(preparePassword(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// VerifyPassword reports whether the password matches the stored hash. Every
// internal failure (malformed hash, oversized input) comes back as false so a
// broken record is indistinguishable from a wrong password.
func VerifyPassword(password, hash string) bool {
	if password == "" || len(password) > MaxPasswordLength {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(hash), preparePassword(password)) == nil
}
