// Package crypto implements server-side password hashing and verification.
package crypto

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"strings"

	"golang.org/x/crypto/argon2"
)

// Argon2id parameters (tuned for server-side hashing).
const (
	argonTime    uint32 = 3         // iterations
	argonMemory  uint32 = 64 * 1024 // 64 MB
	argonThreads uint8  = 1
	argonKeyLen  uint32 = 32

	saltLen = 16
)

// credentialPrefix marks an encoded Argon2id credential in the user document.
const credentialPrefix = "argon2id$"

var b64 = base64.RawStdEncoding

// RandBytes returns n cryptographically secure random bytes.
func RandBytes(n int) ([]byte, error) {
	b := make([]byte, n)
	_, err := rand.Read(b)
	return b, err
}

// HashPassword returns Argon2id hash of password using the provided salt.
func HashPassword(password, salt []byte) []byte {
	return argon2.IDKey(password, salt, argonTime, argonMemory, argonThreads, argonKeyLen)
}

// VerifyPassword verifies password against expected Argon2id hash and salt.
func VerifyPassword(password, salt, expected []byte) bool {
	got := HashPassword(password, salt)
	return subtle.ConstantTimeCompare(got, expected) == 1
}

// EncodeCredential hashes password with a fresh salt and returns the
// storable form "argon2id$<salt>$<hash>".
func EncodeCredential(password string) (string, error) {
	if password == "" {
		return "", errors.New("empty password")
	}
	salt, err := RandBytes(saltLen)
	if err != nil {
		return "", err
	}
	hash := HashPassword([]byte(password), salt)
	return credentialPrefix + b64.EncodeToString(salt) + "$" + b64.EncodeToString(hash), nil
}

// VerifyCredential checks password against a stored credential.
// Values without the argon2id prefix are legacy plaintext entries and are
// compared in constant time.
func VerifyCredential(password, stored string) bool {
	rest, ok := strings.CutPrefix(stored, credentialPrefix)
	if !ok {
		return subtle.ConstantTimeCompare([]byte(password), []byte(stored)) == 1
	}
	saltPart, hashPart, ok := strings.Cut(rest, "$")
	if !ok {
		return false
	}
	salt, err := b64.DecodeString(saltPart)
	if err != nil {
		return false
	}
	hash, err := b64.DecodeString(hashPart)
	if err != nil {
		return false
	}
	return VerifyPassword([]byte(password), salt, hash)
}
