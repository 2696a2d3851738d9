package connector

import (
	"strings"
	"time"

	"go.etcd.io/bbolt"

	"github.com/finbridge/finbridge/crypto"
	"github.com/finbridge/finbridge/internal/util"
)

// Connection is an opened connector: record fields plus the connector-level
// cipher derived from the presented client secret. It is the only way to
// read or write the connector's encrypted configuration.
type Connection struct {
	store        *Store
	clientID     string
	clientSecret string // plaintext only on the Connection returned by Create
	rec          record
	cipher       *crypto.Cipher
}

func (c *Connection) ClientID() string { return c.clientID }

// ClientSecret returns the plaintext secret on freshly created connections
// and "" otherwise; the secret is never recoverable from storage.
func (c *Connection) ClientSecret() string { return c.clientSecret }

func (c *Connection) Type() string { return c.rec.Type }
func (c *Connection) Name() string { return c.rec.Name }
func (c *Connection) User() string { return c.rec.User }

// Config returns the decrypted configuration value for name, or "" when the
// value is absent or unreadable. Names are case-insensitive.
func (c *Connection) Config(name string) (string, error) {
	var data []byte
	err := c.store.db.View(func(tx *bbolt.Tx) error {
		b := c.bucket(tx)
		if b == nil {
			return ErrNotFound
		}
		if v := b.Get(configKey(name)); v != nil {
			data = util.CopyBytes(v)
		}
		return nil
	})
	if err != nil {
		return "", err
	}
	return c.cipher.Decrypt(data), nil
}

// SetConfig encrypts and stores a configuration value under name,
// overwriting any previous value.
func (c *Connection) SetConfig(name, value string) error {
	encrypted := c.cipher.Encrypt(value)
	return c.store.db.Update(func(tx *bbolt.Tx) error {
		b := c.bucket(tx)
		if b == nil {
			return ErrNotFound
		}
		if encrypted == nil {
			return b.Delete(configKey(name))
		}
		return b.Put(configKey(name), encrypted)
	})
}

// SetConfigs stores all entries of the map; a nil map is a no-op.
func (c *Connection) SetConfigs(values map[string]string) error {
	for name, value := range values {
		if err := c.SetConfig(name, value); err != nil {
			return err
		}
	}
	return nil
}

// CipherForUser derives the deterministic per-end-user sub-cipher: the
// normalized user identifier acts as password against the connector key.
// Nothing extra is persisted for it; the same (user, connector key) pair
// always reproduces the same sub-cipher.
func (c *Connection) CipherForUser(user string) *crypto.Cipher {
	return c.cipher.Derive(util.Normalize(user))
}

// TouchUsed records that a run started against this connector.
func (c *Connection) TouchUsed() error {
	return c.touch(func(rec *record, now time.Time) { rec.LastUsedAt = &now })
}

// TouchSucceeded records that a run completed successfully.
func (c *Connection) TouchSucceeded() error {
	return c.touch(func(rec *record, now time.Time) { rec.LastSucceededAt = &now })
}

func (c *Connection) touch(update func(*record, time.Time)) error {
	return c.store.db.Update(func(tx *bbolt.Tx) error {
		b := c.bucket(tx)
		if b == nil {
			return ErrNotFound
		}
		rec, err := readRecord(b)
		if err != nil {
			return err
		}
		now := c.store.now().UTC()
		update(rec, now)
		rec.UpdatedAt = now
		c.rec = *rec
		return putRecord(b, rec)
	})
}

func (c *Connection) bucket(tx *bbolt.Tx) *bbolt.Bucket {
	root := tx.Bucket([]byte(bucketConnectors))
	if root == nil {
		return nil
	}
	return root.Bucket([]byte(c.clientID))
}

func configKey(name string) []byte {
	return []byte(configKeyPrefix + strings.ToLower(name))
}
