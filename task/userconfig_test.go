package task

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/finbridge/finbridge/crypto"
)

type fakeClientValues struct {
	values map[string]string
}

func (f *fakeClientValues) ClientValue(key string) (string, error) {
	return f.values[key], nil
}

func (f *fakeClientValues) SetClientValue(key, value string) error {
	f.values[key] = value
	return nil
}

func TestConnectionStore(t *testing.T) {
	conn := &fakeConnection{configs: map[string]string{}}
	store := NewConnectionStore(conn)

	require.NoError(t, store.Set(`[["username","jane"]]`))
	value, err := store.Get()
	require.NoError(t, err)
	assert.Equal(t, `[["username","jane"]]`, value)
	assert.Equal(t, `[["username","jane"]]`, conn.configs["userconfig"])
}

func TestClientStore(t *testing.T) {
	key := crypto.DeriveKey([]byte("user"), []byte("salt-material"))
	cipher := crypto.New(key)
	values := &fakeClientValues{values: map[string]string{}}
	store := NewClientStore(values, ClientStoreName("jane"), cipher)

	t.Run("round trips via the client", func(t *testing.T) {
		require.NoError(t, store.Set(`[["pin","1234"]]`))
		value, err := store.Get()
		require.NoError(t, err)
		assert.Equal(t, `[["pin","1234"]]`, value)
	})

	t.Run("client only sees ciphertext", func(t *testing.T) {
		stored := values.values["UCSB:jane"]
		require.NotEmpty(t, stored)
		assert.NotContains(t, stored, "1234")
	})

	t.Run("missing value reads empty", func(t *testing.T) {
		empty := NewClientStore(values, ClientStoreName("nobody"), cipher)
		value, err := empty.Get()
		require.NoError(t, err)
		assert.Empty(t, value)
	})
}
