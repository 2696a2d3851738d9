// Package crypto implements the symmetric cipher and the key-derivation
// hierarchy protecting stored connector configuration and in-flight task
// payloads.
//
// The cipher contract is deliberately lenient: encrypting an empty value and
// decrypting missing or corrupt data both yield the zero value instead of an
// error, so callers treat "no value" and "unreadable value" identically.
package crypto

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"encoding/base64"

	"github.com/finbridge/finbridge/internal/util"
)

const (
	// KeySize is the symmetric key length (AES-256).
	KeySize = 32
	// IVSize is the per-encryption random IV length, prepended to the
	// ciphertext. Both constants are wire-compatible fixtures; changing
	// them breaks decryption of previously stored values.
	IVSize = 16
)

// Cipher wraps a 32-byte symmetric key. The zero value is unusable; obtain
// instances through New, Derive or the store constructors.
type Cipher struct {
	key []byte
}

// New returns a Cipher for the given raw key. Keys of the wrong length
// produce a Cipher whose operations yield zero values.
func New(key []byte) *Cipher {
	return &Cipher{key: util.CopyBytes(key)}
}

// Derive returns a sub-cipher whose key is derived from password using the
// current key as salt. The derivation is deterministic: the same password
// against the same parent cipher always yields the same sub-cipher.
func (c *Cipher) Derive(password string) *Cipher {
	return New(DeriveKey([]byte(password), c.key))
}

// Encrypt returns iv||ciphertext for the given value, or nil when the value
// is empty.
func (c *Cipher) Encrypt(value string) []byte {
	if value == "" {
		return nil
	}
	block, err := aes.NewCipher(c.key)
	if err != nil {
		return nil
	}
	iv, err := util.RandomBytes(IVSize)
	if err != nil {
		return nil
	}
	padded := pad([]byte(value))
	out := make([]byte, IVSize+len(padded))
	copy(out, iv)
	cipher.NewCBCEncrypter(block, iv).CryptBlocks(out[IVSize:], padded)
	return out
}

// EncryptBase64 returns the base64 form of Encrypt, or "" for empty input.
func (c *Cipher) EncryptBase64(value string) string {
	data := c.Encrypt(value)
	if data == nil {
		return ""
	}
	return base64.StdEncoding.EncodeToString(data)
}

// Decrypt reverses Encrypt. Nil, truncated, or corrupt input yields "".
func (c *Cipher) Decrypt(data []byte) string {
	if len(data) < IVSize+aes.BlockSize || (len(data)-IVSize)%aes.BlockSize != 0 {
		return ""
	}
	block, err := aes.NewCipher(c.key)
	if err != nil {
		return ""
	}
	iv, ct := data[:IVSize], data[IVSize:]
	padded := make([]byte, len(ct))
	cipher.NewCBCDecrypter(block, iv).CryptBlocks(padded, ct)
	plain, ok := unpad(padded)
	if !ok {
		return ""
	}
	return string(plain)
}

// DecryptBase64 reverses EncryptBase64. Malformed base64 yields "".
func (c *Cipher) DecryptBase64(data string) string {
	if data == "" {
		return ""
	}
	raw, err := base64.StdEncoding.DecodeString(data)
	if err != nil {
		return ""
	}
	return c.Decrypt(raw)
}

func pad(b []byte) []byte {
	n := aes.BlockSize - len(b)%aes.BlockSize
	return append(b, bytes.Repeat([]byte{byte(n)}, n)...)
}

func unpad(b []byte) ([]byte, bool) {
	if len(b) == 0 {
		return nil, false
	}
	n := int(b[len(b)-1])
	if n == 0 || n > aes.BlockSize || n > len(b) {
		return nil, false
	}
	for _, p := range b[len(b)-n:] {
		if int(p) != n {
			return nil, false
		}
	}
	return b[:len(b)-n], true
}
