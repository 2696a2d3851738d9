package task

import (
	"github.com/finbridge/finbridge/crypto"
)

// UserConfigStore persists the serialized per-user workflow configuration
// (cached credentials, refresh tokens, consent ids) between runs.
type UserConfigStore interface {
	Get() (string, error)
	Set(value string) error
}

// configUserConfig is the connector configuration entry the default store
// writes to; it shares the connector's encrypted config namespace.
const configUserConfig = "UserConfig"

// ConnectionStore keeps the user configuration in the connector's own
// encrypted configuration. It is the default when the caller supplies no
// user identifier.
type ConnectionStore struct {
	conn Connection
}

// NewConnectionStore builds the connector-backed store.
func NewConnectionStore(conn Connection) *ConnectionStore {
	return &ConnectionStore{conn: conn}
}

func (s *ConnectionStore) Get() (string, error) {
	return s.conn.Config(configUserConfig)
}

func (s *ConnectionStore) Set(value string) error {
	return s.conn.SetConfig(configUserConfig, value)
}

// ClientValues is the subset of the interactive driver used to round-trip
// opaque values held on the client side.
type ClientValues interface {
	ClientValue(key string) (string, error)
	SetClientValue(key, value string) error
}

// ClientStore keeps the user configuration with the client instead of the
// service: values are encrypted under the per-user sub-cipher and stored
// wherever the client chooses. The service only ever sees ciphertext it
// cannot attribute to stored state.
type ClientStore struct {
	values ClientValues
	name   string
	cipher *crypto.Cipher
}

// NewClientStore builds a client-held store. name keys the value on the
// client ("UCSB:<user>" by convention).
func NewClientStore(values ClientValues, name string, cipher *crypto.Cipher) *ClientStore {
	return &ClientStore{values: values, name: name, cipher: cipher}
}

func (s *ClientStore) Get() (string, error) {
	data, err := s.values.ClientValue(s.name)
	if err != nil {
		return "", err
	}
	return s.cipher.DecryptBase64(data), nil
}

func (s *ClientStore) Set(value string) error {
	return s.values.SetClientValue(s.name, s.cipher.EncryptBase64(value))
}

// ClientStoreName is the client-side key for user as agreed with clients.
func ClientStoreName(user string) string {
	return "UCSB:" + user
}
