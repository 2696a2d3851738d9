package handoff

import (
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type payload struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

func testStore(t *testing.T) *Store {
	t.Helper()
	return NewStore(NewMemoryKV(), []byte("test root secret"))
}

func TestStorePutTakeOnce(t *testing.T) {
	ctx := t.Context()
	s := testStore(t)

	token, err := s.Put(ctx, "task", payload{Name: "maria", Count: 3})
	require.NoError(t, err)
	assert.Len(t, token, 64, "token is hex of 32 random bytes")

	var got payload
	ok, err := s.TakeOnce(ctx, "task", token, &got)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, payload{Name: "maria", Count: 3}, got)

	// Consumption is at-most-once.
	ok, err = s.TakeOnce(ctx, "task", token, &got)
	require.NoError(t, err)
	assert.False(t, ok, "second take must miss")
}

func TestStoreWrongPrefix(t *testing.T) {
	ctx := t.Context()
	s := testStore(t)

	token, err := s.Put(ctx, "task", payload{Name: "a"})
	require.NoError(t, err)

	var got payload
	ok, err := s.TakeOnce(ctx, "result", token, &got)
	require.NoError(t, err)
	assert.False(t, ok)

	// The entry is still there under the right prefix.
	ok, err = s.TakeOnce(ctx, "task", token, &got)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestStoreMalformedToken(t *testing.T) {
	ctx := t.Context()
	s := testStore(t)

	var got payload
	for _, token := range []string{
		"",
		"abc",
		"zzzz",
		strings.Repeat("ab", 16), // too short
		strings.Repeat("ab", 33), // too long
	} {
		ok, err := s.TakeOnce(ctx, "task", token, &got)
		require.NoError(t, err, "token %q", token)
		assert.False(t, ok, "token %q", token)
	}
}

func TestStoreConcurrentTake(t *testing.T) {
	ctx := t.Context()
	s := testStore(t)

	token, err := s.Put(ctx, "task", payload{Name: "once"})
	require.NoError(t, err)

	const n = 16
	var wg sync.WaitGroup
	wins := make(chan struct{}, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			var got payload
			ok, err := s.TakeOnce(ctx, "task", token, &got)
			assert.NoError(t, err)
			if ok {
				wins <- struct{}{}
			}
		}()
	}
	wg.Wait()
	close(wins)

	count := 0
	for range wins {
		count++
	}
	assert.Equal(t, 1, count, "exactly one concurrent taker may win")
}

func TestStoreServerCannotDecode(t *testing.T) {
	ctx := t.Context()
	kv := NewMemoryKV()
	s := NewStore(kv, []byte("root"))

	token, err := s.Put(ctx, "task", payload{Name: "secret name"})
	require.NoError(t, err)

	// Neither the token nor the plaintext appear in what the server holds.
	kv.mu.Lock()
	for k, e := range kv.data {
		assert.NotContains(t, k, token)
		assert.NotContains(t, e.value, "secret name")
	}
	kv.mu.Unlock()
}

func TestMemoryKVExpiry(t *testing.T) {
	ctx := t.Context()
	kv := NewMemoryKV()

	now := time.Now()
	kv.now = func() time.Time { return now }

	require.NoError(t, kv.SetEx(ctx, "k", "v", time.Minute))

	now = now.Add(2 * time.Minute)
	_, ok, err := kv.GetDel(ctx, "k")
	require.NoError(t, err)
	assert.False(t, ok, "expired entry must not be returned")
}

func TestMemoryKVSweep(t *testing.T) {
	ctx := t.Context()
	kv := NewMemoryKV()
	defer kv.Close()

	now := time.Now()
	kv.now = func() time.Time { return now }

	require.NoError(t, kv.SetEx(ctx, "stale", "v", time.Minute))
	require.NoError(t, kv.SetEx(ctx, "fresh", "v", time.Hour))

	now = now.Add(2 * time.Minute)
	kv.sweepExpired()

	kv.mu.Lock()
	_, stale := kv.data["stale"]
	_, fresh := kv.data["fresh"]
	kv.mu.Unlock()
	assert.False(t, stale)
	assert.True(t, fresh)
}

func TestMemoryKVGetDel(t *testing.T) {
	ctx := t.Context()
	kv := NewMemoryKV()

	require.NoError(t, kv.SetEx(ctx, "k", "v", time.Minute))

	v, ok, err := kv.GetDel(ctx, "k")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "v", v)

	_, ok, err = kv.GetDel(ctx, "k")
	require.NoError(t, err)
	assert.False(t, ok)
}
