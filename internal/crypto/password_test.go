package crypto

import (
	"errors"
	"strings"
	"testing"
)

func TestHashAndVerify(t *testing.T) {
	hash, err := HashPassword("secret1")
	if err != nil {
		t.Fatalf("hash error: %v", err)
	}
	if !strings.HasPrefix(hash, "$2") {
		t.Fatalf("expected self-describing bcrypt hash, got %q", hash)
	}
	if !VerifyPassword("secret1", hash) {
		t.Fatalf("expected password to verify")
	}
	if VerifyPassword("secret2", hash) {
		t.Fatalf("expected wrong password to fail")
	}
}

func TestHashRejectsBadInput(t *testing.T) {
	var validationErr *ValidationError

	if _, err := HashPassword(""); !errors.As(err, &validationErr) {
		t.Fatalf("expected validation error for empty password, got %v", err)
	}
	if _, err := HashPassword(strings.Repeat("a", MaxPasswordLength+1)); !errors.As(err, &validationErr) {
		t.Fatalf("expected validation error for oversized password")
	}
	if _, err := HashPassword(strings.Repeat("a", MaxPasswordLength)); err != nil {
		t.Fatalf("expected max-length password to hash, got %v", err)
	}
}

func TestLongPasswordRoundTrip(t *testing.T) {
	// 200 characters is past the bcrypt 72-byte limit; the condensation step
	// must keep hash and verify consistent without truncation.
	long := strings.Repeat("correct-horse-", 14) + "x200"
	if len(long) < 200 {
		t.Fatalf("test password too short: %d", len(long))
	}
	hash, err := HashPassword(long)
	if err != nil {
		t.Fatalf("hash error: %v", err)
	}
	if !VerifyPassword(long, hash) {
		t.Fatalf("expected long password to verify")
	}
	// A password that agrees on the first 72 bytes but differs later must not
	// verify, or truncation would have weakened the effective secret.
	if VerifyPassword(long[:len(long)-1]+"y", hash) {
		t.Fatalf("expected suffix change to fail verification")
	}
}

func TestVerifyMalformedHash(t *testing.T) {
	if VerifyPassword("secret1", "not-a-bcrypt-hash") {
		t.Fatalf("expected malformed hash to fail verification")
	}
	if VerifyPassword("", "") {
		t.Fatalf("expected empty input to fail verification")
	}
}
