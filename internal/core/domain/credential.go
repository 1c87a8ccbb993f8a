// Package domain defines the core domain models for kvwait.
package domain

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"strings"

	"golang.org/x/crypto/argon2"
)

// Argon2 parameters for password hashing.
const (
	// Argon2Memory is the memory parameter in KB (16 MB).
	Argon2Memory uint32 = 16384

	// Argon2Time is the iteration count.
	Argon2Time uint32 = 2

	// Argon2Parallelism is the parallelism factor.
	Argon2Parallelism uint8 = 2

	// Argon2KeyLen is the output hash length in bytes.
	Argon2KeyLen uint32 = 32

	// Argon2SaltLen is the salt length in bytes.
	Argon2SaltLen = 16
)

const argon2Prefix = "$argon2id$v=19$m=16384,t=2,p=2$"

// Credential is a registered username together with its password hash.
// A credential is created once by registration and never changes.
type Credential struct {
	Username     string
	PasswordHash string
}

// NewCredential hashes password and returns the record to store.
func NewCredential(username, password string) (*Credential, error) {
	hash, err := HashPassword(password)
	if err != nil {
		return nil, ErrCredentialHash.WithCause(err)
	}
	return &Credential{
		Username:     username,
		PasswordHash: hash,
	}, nil
}

// Verify reports whether password is the one this credential was created with.
func (c *Credential) Verify(password string) bool {
	if c == nil {
		return false
	}
	return VerifyPassword(password, c.PasswordHash)
}

// HashPassword computes an Argon2id hash of the password.
// Returns the hash in the format: $argon2id$v=19$m=16384,t=2,p=2$<salt>$<hash>
func HashPassword(password string) (string, error) {
	salt := make([]byte, Argon2SaltLen)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("generate salt: %w", err)
	}

	hash := argon2.IDKey([]byte(password), salt, Argon2Time, Argon2Memory, Argon2Parallelism, Argon2KeyLen)

	return argon2Prefix +
		base64.RawStdEncoding.EncodeToString(salt) + "$" +
		base64.RawStdEncoding.EncodeToString(hash), nil
}

// VerifyPassword checks password against an encoded Argon2id hash
// using a constant-time comparison.
func VerifyPassword(password, encoded string) bool {
	// "", "argon2id", "v=19", "m=16384,t=2,p=2", salt, hash
	parts := strings.Split(encoded, "$")
	if len(parts) != 6 || parts[1] != "argon2id" {
		return false
	}

	salt, err := base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil {
		return false
	}
	expected, err := base64.RawStdEncoding.DecodeString(parts[5])
	if err != nil || len(expected) == 0 {
		return false
	}

	computed := argon2.IDKey([]byte(password), salt, Argon2Time, Argon2Memory, Argon2Parallelism, uint32(len(expected)))
	return subtle.ConstantTimeCompare(computed, expected) == 1
}
