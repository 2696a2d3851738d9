package crypto

import (
	"crypto/sha512"
	"crypto/subtle"
	"io"

	"golang.org/x/crypto/hkdf"
	"golang.org/x/crypto/scrypt"

	"github.com/finbridge/finbridge/internal/util"
)

// scrypt cost parameters. Fixed interop constants: derived keys must be
// reproducible across deployments sharing the same stored ciphertext.
const (
	scryptN = 1 << 14
	scryptR = 8
	scryptP = 1

	// SecretHashSize is the stored hash length for client secrets.
	SecretHashSize = 64
	// SecretSaltSize is the per-connector salt length for client secret
	// hashing.
	SecretSaltSize = 16
)

// DeriveKey derives a 32-byte key from a password and salt using the
// memory-hard scrypt KDF. The function is pure: identical inputs always
// yield identical keys.
func DeriveKey(password, salt []byte) []byte {
	key, err := scrypt.Key(password, salt, scryptN, scryptR, scryptP, KeySize)
	if err != nil {
		// Unreachable with the fixed cost parameters above.
		panic(err)
	}
	return key
}

// LookupHash computes the one-way HKDF-SHA512 hash of key under salt. The
// handoff store uses it to turn a caller-held token into a server-side
// lookup key without storing anything that reveals the token.
func LookupHash(key, salt []byte) []byte {
	h := hkdf.New(sha512.New, key, salt, nil)
	out := make([]byte, KeySize)
	if _, err := io.ReadFull(h, out); err != nil {
		panic(err)
	}
	return out
}

// NewRandomKey generates a fresh 32-byte symmetric key.
func NewRandomKey() ([]byte, error) {
	return util.RandomBytes(KeySize)
}

// HashSecret computes the verification hash stored for a client secret.
// The plaintext secret is never persisted.
func HashSecret(secret string, salt []byte) []byte {
	hash, err := scrypt.Key([]byte(secret), salt, scryptN, scryptR, scryptP, SecretHashSize)
	if err != nil {
		panic(err)
	}
	return hash
}

// VerifySecret reports whether secret hashes to the stored value, in
// constant time.
func VerifySecret(secret string, salt, hash []byte) bool {
	computed := HashSecret(secret, salt)
	return subtle.ConstantTimeCompare(computed, hash) == 1
}
