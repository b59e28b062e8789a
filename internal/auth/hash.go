// ABOUTME: Argon2id password hashing, stored as PHC strings with self-describing parameters.
// ABOUTME: Memory-heavy: callers must hold the argon2 semaphore (on api.Server) around both functions.
package auth

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/argon2"
)

// OWASP-recommended argon2id cost parameters.
const (
	argon2Memory      = 19456 // KiB (19 MiB)
	argon2Iterations  = 2
	argon2Parallelism = 1
	argon2SaltLen     = 16
	argon2KeyLen      = 32
)

// phcParams are the derivation parameters recovered from a stored hash.
// Hashing always uses the current constants; verification replays whatever
// the stored string says, so old hashes keep verifying after a cost bump.
type phcParams struct {
	memory      uint32
	iterations  uint32
	parallelism uint8
}

// HashPassword derives an argon2id hash and encodes it in PHC format
// ($argon2id$v=19$m=..,t=..,p=..$salt$key).
func HashPassword(password string) (string, error) {
	salt := make([]byte, argon2SaltLen)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("generate salt: %w", err)
	}
	key := argon2.IDKey([]byte(password), salt, argon2Iterations, argon2Memory, argon2Parallelism, argon2KeyLen)
	return fmt.Sprintf("$argon2id$v=19$m=%d,t=%d,p=%d$%s$%s",
		argon2Memory, argon2Iterations, argon2Parallelism,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(key),
	), nil
}

// decodePHC splits a PHC argon2id string into parameters, salt, and key.
func decodePHC(hash string) (phcParams, []byte, []byte, error) {
	var p phcParams
	parts := strings.Split(hash, "$")
	if len(parts) != 6 || parts[1] != "argon2id" {
		return p, nil, nil, errors.New("invalid hash format")
	}
	var m, t, par uint32
	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &m, &t, &par); err != nil {
		return p, nil, nil, fmt.Errorf("parse params: %w", err)
	}
	salt, err := base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil {
		return p, nil, nil, fmt.Errorf("decode salt: %w", err)
	}
	key, err := base64.RawStdEncoding.DecodeString(parts[5])
	if err != nil {
		return p, nil, nil, fmt.Errorf("decode key: %w", err)
	}
	p.memory, p.iterations = m, t
	p.parallelism = uint8(par) //nolint:gosec // G115: parallelism in our own hashes is 1
	return p, salt, key, nil
}

// VerifyPassword reports whether password matches the stored PHC hash.
// A wrong password is (false, nil); errors are reserved for malformed hashes.
func VerifyPassword(password, hash string) (bool, error) {
	p, salt, expected, err := decodePHC(hash)
	if err != nil {
		return false, err
	}
	derived := argon2.IDKey([]byte(password), salt, p.iterations, p.memory, p.parallelism, uint32(len(expected))) //nolint:gosec // G115: key length bounded by decoded hash
	return subtle.ConstantTimeCompare(expected, derived) == 1, nil
}
