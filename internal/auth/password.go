package auth

import (
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// MinPasswordLength is enforced at registration time.
const MinPasswordLength = 8

// HashPassword hashes a plaintext password using bcrypt.
func HashPassword(password string) (string, error) {
	if len(password) < MinPasswordLength {
		return "", fmt.Errorf("%w: password shorter than %d characters", ErrInvalidInput, MinPasswordLength)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// VerifyPassword compares a plaintext password with the stored hash.
func VerifyPassword(hash, password string) error {
	if hash == "" {
		return ErrUnauthorized
	}
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
}
