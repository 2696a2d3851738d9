package connector

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testStore(t *testing.T) *Store {
	t.Helper()
	s, err := NewStoreFromFile(filepath.Join(t.TempDir(), "connectors.db"), []byte("test root secret"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestCreateAndFind(t *testing.T) {
	s := testStore(t)

	created, err := s.Create("user-1", "com.example.test", "My Bank")
	require.NoError(t, err)
	assert.Len(t, created.ClientID(), 32)
	assert.Len(t, created.ClientSecret(), 32)

	found, err := s.Find("", created.ClientID(), created.ClientSecret())
	require.NoError(t, err)
	assert.Equal(t, "com.example.test", found.Type())
	assert.Equal(t, "My Bank", found.Name())
	assert.Equal(t, "user-1", found.User())
	assert.Empty(t, found.ClientSecret(), "secret only available at creation")
}

func TestFindWrongSecret(t *testing.T) {
	s := testStore(t)

	created, err := s.Create("", "com.example.test", "")
	require.NoError(t, err)

	_, err = s.Find("", created.ClientID(), "definitely wrong")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = s.Find("", "no-such-id", created.ClientSecret())
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestFindUserScope(t *testing.T) {
	s := testStore(t)

	created, err := s.Create("alice", "com.example.test", "")
	require.NoError(t, err)

	_, err = s.Find("bob", created.ClientID(), created.ClientSecret())
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = s.Find("alice", created.ClientID(), created.ClientSecret())
	assert.NoError(t, err)

	// Empty scope matches any owner.
	_, err = s.Find("", created.ClientID(), created.ClientSecret())
	assert.NoError(t, err)
}

func TestCheckCredentials(t *testing.T) {
	s := testStore(t)

	created, err := s.Create("", "com.example.test", "")
	require.NoError(t, err)

	ok, err := s.CheckCredentials(created.ClientID(), created.ClientSecret())
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = s.CheckCredentials(created.ClientID(), "wrong")
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = s.CheckCredentials("missing", created.ClientSecret())
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestConfigRoundTrip(t *testing.T) {
	s := testStore(t)

	created, err := s.Create("", "com.example.test", "")
	require.NoError(t, err)

	require.NoError(t, created.SetConfig("IBAN", "AT1234"))

	// Reads are case-insensitive and work through a re-opened connection.
	conn, err := s.Find("", created.ClientID(), created.ClientSecret())
	require.NoError(t, err)

	v, err := conn.Config("iban")
	require.NoError(t, err)
	assert.Equal(t, "AT1234", v)

	// Overwrite is immediately visible.
	require.NoError(t, conn.SetConfig("iban", "AT5678"))
	v, err = conn.Config("IBAN")
	require.NoError(t, err)
	assert.Equal(t, "AT5678", v)

	// Missing values read as empty, not as errors.
	v, err = conn.Config("nope")
	require.NoError(t, err)
	assert.Empty(t, v)
}

func TestConfigEncryptedAtRest(t *testing.T) {
	s := testStore(t)

	created, err := s.Create("", "com.example.test", "")
	require.NoError(t, err)
	require.NoError(t, created.SetConfig("pin", "9999"))

	// A connection opened with the wrong root secret cannot read values
	// even when it knows the client secret.
	other := NewStore(s.db, []byte("different root"))
	conn, err := other.Find("", created.ClientID(), created.ClientSecret())
	require.NoError(t, err)

	v, err := conn.Config("pin")
	require.NoError(t, err)
	assert.Empty(t, v, "wrong root secret must not decrypt")
}

func TestSetConfigs(t *testing.T) {
	s := testStore(t)

	created, err := s.Create("", "com.example.test", "")
	require.NoError(t, err)
	require.NoError(t, created.SetConfigs(map[string]string{
		"IBAN":     "AT1",
		"Headless": "true",
	}))
	require.NoError(t, created.SetConfigs(nil))

	v, err := created.Config("headless")
	require.NoError(t, err)
	assert.Equal(t, "true", v)
}

func TestCipherForUserDeterministic(t *testing.T) {
	s := testStore(t)

	created, err := s.Create("", "com.example.test", "")
	require.NoError(t, err)

	c1 := created.CipherForUser("maria")
	c2 := created.CipherForUser("maria")
	assert.Equal(t, "v", c2.Decrypt(c1.Encrypt("v")))

	other := created.CipherForUser("josef")
	assert.Empty(t, other.Decrypt(c1.Encrypt("v")))
}

func TestListAndDestroy(t *testing.T) {
	s := testStore(t)

	a, err := s.Create("alice", "com.example.test", "A")
	require.NoError(t, err)
	_, err = s.Create("bob", "com.example.test", "B")
	require.NoError(t, err)

	all, err := s.List("")
	require.NoError(t, err)
	assert.Len(t, all, 2)

	alices, err := s.List("alice")
	require.NoError(t, err)
	require.Len(t, alices, 1)
	assert.Equal(t, a.ClientID(), alices[0].ClientID)
	assert.Equal(t, "A", alices[0].Name)

	assert.ErrorIs(t, s.Destroy("bob", a.ClientID()), ErrNotFound)
	require.NoError(t, s.Destroy("alice", a.ClientID()))
	assert.ErrorIs(t, s.Destroy("alice", a.ClientID()), ErrNotFound)

	all, err = s.List("")
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestTouchTimestamps(t *testing.T) {
	s := testStore(t)

	created, err := s.Create("", "com.example.test", "")
	require.NoError(t, err)

	require.NoError(t, created.TouchUsed())
	require.NoError(t, created.TouchSucceeded())

	rec, err := s.getRecord(created.ClientID())
	require.NoError(t, err)
	require.NotNil(t, rec.LastUsedAt)
	require.NotNil(t, rec.LastSucceededAt)
	assert.False(t, rec.UpdatedAt.Before(rec.CreatedAt))
}
