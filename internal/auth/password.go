package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"fmt"

	"golang.org/x/crypto/pbkdf2"
)

const (
	passwordSaltLength = 128
	passwordKeyLength  = 64
)

func makeSalt() (string, error) {
	raw := make([]byte, passwordSaltLength)
	if _, err := rand.Read(raw); err != nil {
		return "", fmt.Errorf("generate salt: %w", err)
	}
	return base64.StdEncoding.EncodeToString(raw), nil
}

func derivePassword(password, salt string, iterations int) string {
	key := pbkdf2.Key([]byte(password), []byte(salt), iterations, passwordKeyLength, sha256.New)
	return hex.EncodeToString(key)
}

// hashPassword derives a fresh hash+salt pair for storage.
func hashPassword(password string, iterations int) (hash, salt string, err error) {
	salt, err = makeSalt()
	if err != nil {
		return "", "", err
	}
	return derivePassword(password, salt, iterations), salt, nil
}

// verifyPassword compares a candidate password against a stored hash+salt.
func verifyPassword(password, salt, storedHash string, iterations int) bool {
	candidate := derivePassword(password, salt, iterations)
	return subtle.ConstantTimeCompare([]byte(candidate), []byte(storedHash)) == 1
}
