// Package connector persists connector records: a configured credential set
// bound to one provider type, optionally owned by an end-user scope. Each
// connector's named configuration values are encrypted under a key derived
// from its client secret, so the stored database alone cannot reveal them.
package connector

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/awnumar/memguard"
	"go.etcd.io/bbolt"

	"github.com/finbridge/finbridge/crypto"
	"github.com/finbridge/finbridge/internal/util"
)

var (
	// ErrNotFound indicates the referenced connector does not exist, is
	// outside the caller's user scope, or the presented secret is wrong.
	// The three cases are deliberately indistinguishable.
	ErrNotFound = errors.New("connector not found")
)

const (
	clientIDSize     = 16
	clientSecretSize = 16

	bucketConnectors = "connectors"
	keyMeta          = "meta"
	configKeyPrefix  = "config:"
)

type record struct {
	Type            string     `json:"type"`
	Name            string     `json:"name,omitempty"`
	User            string     `json:"user,omitempty"`
	SecretSalt      []byte     `json:"secret_salt"`
	SecretHash      []byte     `json:"secret_hash"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
	LastUsedAt      *time.Time `json:"last_used_at,omitempty"`
	LastSucceededAt *time.Time `json:"last_succeeded_at,omitempty"`
}

// Info is the listing shape for a connector; it never carries secrets.
type Info struct {
	ClientID string `json:"clientId"`
	Type     string `json:"type"`
	Name     string `json:"name,omitempty"`
}

// Store persists connectors in a bbolt database. The process root secret is
// the salt for deriving each connector's encryption key from its client
// secret; it is sealed in a memguard enclave between derivations.
type Store struct {
	db   *bbolt.DB
	root *memguard.Enclave
	now  func() time.Time
}

// NewStore wraps an open bbolt database.
func NewStore(db *bbolt.DB, rootSecret []byte) *Store {
	return &Store{
		db:   db,
		root: memguard.NewEnclave(util.CopyBytes(rootSecret)),
		now:  time.Now,
	}
}

// NewStoreFromFile opens (creating if needed) a bbolt database at path.
func NewStoreFromFile(path string, rootSecret []byte) (*Store, error) {
	db, err := bbolt.Open(path, 0o600, nil)
	if err != nil {
		return nil, fmt.Errorf("opening connector db: %w", err)
	}
	return NewStore(db, rootSecret), nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Create stores a new connector of the given type in the given user scope
// and returns a Connection that still carries the generated plaintext
// client secret. The secret is shown exactly once; only its salted hash is
// persisted.
func (s *Store) Create(user, typ, name string) (*Connection, error) {
	clientID, err := util.RandomHex(clientIDSize)
	if err != nil {
		return nil, err
	}
	clientSecret, err := util.RandomHex(clientSecretSize)
	if err != nil {
		return nil, err
	}
	salt, err := util.RandomBytes(crypto.SecretSaltSize)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	rec := record{
		Type:       typ,
		Name:       name,
		User:       user,
		SecretSalt: salt,
		SecretHash: crypto.HashSecret(clientSecret, salt),
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	err = s.db.Update(func(tx *bbolt.Tx) error {
		root, err := tx.CreateBucketIfNotExists([]byte(bucketConnectors))
		if err != nil {
			return err
		}
		b, err := root.CreateBucket([]byte(clientID))
		if err != nil {
			return fmt.Errorf("creating connector bucket: %w", err)
		}
		return putRecord(b, &rec)
	})
	if err != nil {
		return nil, err
	}

	cipher, err := s.connectorCipher(clientSecret)
	if err != nil {
		return nil, err
	}
	return &Connection{
		store:        s,
		clientID:     clientID,
		clientSecret: clientSecret,
		rec:          rec,
		cipher:       cipher,
	}, nil
}

// CheckCredentials reports whether clientID/clientSecret identify an
// existing connector, without opening it.
func (s *Store) CheckCredentials(clientID, clientSecret string) (bool, error) {
	rec, err := s.getRecord(clientID)
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return crypto.VerifySecret(clientSecret, rec.SecretSalt, rec.SecretHash), nil
}

// Find opens the connector identified by clientID/clientSecret. A non-empty
// user restricts the lookup to that user's scope. Wrong secret, wrong scope
// and missing connector all return ErrNotFound.
func (s *Store) Find(user, clientID, clientSecret string) (*Connection, error) {
	rec, err := s.getRecord(clientID)
	if err != nil {
		return nil, err
	}
	if user != "" && rec.User != user {
		return nil, ErrNotFound
	}
	if !crypto.VerifySecret(clientSecret, rec.SecretSalt, rec.SecretHash) {
		return nil, ErrNotFound
	}

	cipher, err := s.connectorCipher(clientSecret)
	if err != nil {
		return nil, err
	}
	return &Connection{store: s, clientID: clientID, rec: *rec, cipher: cipher}, nil
}

// List returns the connectors visible in the given user scope; an empty
// user lists all.
func (s *Store) List(user string) ([]Info, error) {
	var infos []Info
	err := s.db.View(func(tx *bbolt.Tx) error {
		root := tx.Bucket([]byte(bucketConnectors))
		if root == nil {
			return nil
		}
		return root.ForEachBucket(func(clientID []byte) error {
			b := root.Bucket(clientID)
			rec, err := readRecord(b)
			if err != nil {
				return err
			}
			if user != "" && rec.User != user {
				return nil
			}
			infos = append(infos, Info{
				ClientID: string(clientID),
				Type:     rec.Type,
				Name:     rec.Name,
			})
			return nil
		})
	})
	return infos, err
}

// Destroy removes the connector and all its configuration. It does not
// require the client secret: destruction is an administrative operation
// scoped by user.
func (s *Store) Destroy(user, clientID string) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		root := tx.Bucket([]byte(bucketConnectors))
		if root == nil {
			return ErrNotFound
		}
		b := root.Bucket([]byte(clientID))
		if b == nil {
			return ErrNotFound
		}
		rec, err := readRecord(b)
		if err != nil {
			return err
		}
		if user != "" && rec.User != user {
			return ErrNotFound
		}
		return root.DeleteBucket([]byte(clientID))
	})
}

func (s *Store) getRecord(clientID string) (*record, error) {
	var rec *record
	err := s.db.View(func(tx *bbolt.Tx) error {
		root := tx.Bucket([]byte(bucketConnectors))
		if root == nil {
			return ErrNotFound
		}
		b := root.Bucket([]byte(clientID))
		if b == nil {
			return ErrNotFound
		}
		r, err := readRecord(b)
		if err != nil {
			return err
		}
		rec = r
		return nil
	})
	if err != nil {
		return nil, err
	}
	return rec, nil
}

// connectorCipher derives the connector-level cipher: the client secret is
// the password, the process root secret the salt. Knowledge of both is
// necessary and sufficient to decrypt the connector's configuration.
func (s *Store) connectorCipher(clientSecret string) (*crypto.Cipher, error) {
	root, err := s.root.Open()
	if err != nil {
		return nil, fmt.Errorf("opening root secret: %w", err)
	}
	defer root.Destroy()
	return crypto.New(crypto.DeriveKey([]byte(clientSecret), root.Bytes())), nil
}

func putRecord(b *bbolt.Bucket, rec *record) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshaling connector record: %w", err)
	}
	return b.Put([]byte(keyMeta), data)
}

func readRecord(b *bbolt.Bucket) (*record, error) {
	data := b.Get([]byte(keyMeta))
	if data == nil {
		return nil, ErrNotFound
	}
	var rec record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("unmarshaling connector record: %w", err)
	}
	return &rec, nil
}
