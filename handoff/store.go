// Package handoff implements the ephemeral secure store used to pass a task
// descriptor from an anonymous creation request to a later interactive
// session, and to hand back a one-time result.
//
// Entries are addressed by prefix + hex(one-way(token)) and encrypted under
// the token itself, so possession of the token is necessary and sufficient
// to both locate and decrypt an entry. The server never stores anything
// that by itself reveals the plaintext, and cannot decrypt entries whose
// tokens it has forgotten.
package handoff

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/awnumar/memguard"

	"github.com/finbridge/finbridge/crypto"
	"github.com/finbridge/finbridge/internal/util"
)

const (
	// TTL bounds how long an unconsumed entry survives.
	TTL = 10 * time.Minute

	tokenSize = 32
)

// Store is the one-shot encrypted handoff store.
type Store struct {
	kv   KV
	root *memguard.Enclave
	ttl  time.Duration
}

// NewStore wraps kv with encryption rooted in rootSecret. The secret is
// sealed in a memguard enclave and only opened while deriving lookup keys.
func NewStore(kv KV, rootSecret []byte) *Store {
	return &Store{
		kv:   kv,
		root: memguard.NewEnclave(util.CopyBytes(rootSecret)),
		ttl:  TTL,
	}
}

// Put serializes v, encrypts it under a fresh random key and stores it with
// the fixed TTL. The returned token is the hex form of the random key; it is
// the only handle to the entry.
func (s *Store) Put(ctx context.Context, prefix string, v any) (string, error) {
	key, err := crypto.NewRandomKey()
	if err != nil {
		return "", err
	}
	cipher, kvKey, err := s.cipherAndKey(prefix, key)
	if err != nil {
		return "", err
	}

	payload, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("marshaling handoff payload: %w", err)
	}
	if err := s.kv.SetEx(ctx, kvKey, cipher.EncryptBase64(string(payload)), s.ttl); err != nil {
		return "", err
	}
	return util.HexEncode(key), nil
}

// TakeOnce fetches and deletes the entry for token, decrypts it and
// unmarshals into out. It returns false when the token is malformed, the
// entry never existed, expired, belongs to a different prefix, or was
// already consumed. Concurrent calls on one token race; at most one wins.
func (s *Store) TakeOnce(ctx context.Context, prefix, token string, out any) (bool, error) {
	key, err := util.HexDecode(token)
	if err != nil || len(key) != tokenSize {
		return false, nil
	}
	cipher, kvKey, err := s.cipherAndKey(prefix, key)
	if err != nil {
		return false, err
	}

	value, ok, err := s.kv.GetDel(ctx, kvKey)
	if err != nil || !ok {
		return false, err
	}
	payload := cipher.DecryptBase64(value)
	if payload == "" {
		return false, nil
	}
	if err := json.Unmarshal([]byte(payload), out); err != nil {
		return false, fmt.Errorf("unmarshaling handoff payload: %w", err)
	}
	return true, nil
}

func (s *Store) cipherAndKey(prefix string, key []byte) (*crypto.Cipher, string, error) {
	root, err := s.root.Open()
	if err != nil {
		return nil, "", fmt.Errorf("opening root secret: %w", err)
	}
	defer root.Destroy()

	hash := crypto.LookupHash(key, root.Bytes())
	return crypto.New(key), prefix + util.HexEncode(hash), nil
}
