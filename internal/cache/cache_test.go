package cache

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKey(t *testing.T) {
	a := Key("gpt-4o-mini", "prompt")
	assert.Equal(t, a, Key("gpt-4o-mini", "prompt"))
	assert.NotEqual(t, a, Key("gpt-4o", "prompt"))
	assert.NotEqual(t, Key("ab", "c"), Key("a", "bc"))
	assert.Contains(t, a, keyPrefix)
}

func TestMemoryCache(t *testing.T) {
	c := NewMemoryCache(time.Minute, time.Minute)

	_, ok := c.Get("k")
	assert.False(t, ok)

	require.NoError(t, c.Set("k", []byte("v"), 0))
	got, ok := c.Get("k")
	require.True(t, ok)
	assert.Equal(t, "v", string(got))
	assert.Equal(t, 1, c.Len())

	require.NoError(t, c.Delete("k"))
	_, ok = c.Get("k")
	assert.False(t, ok)

	require.NoError(t, c.Set("a", []byte("1"), 0))
	require.NoError(t, c.Clear())
	assert.Equal(t, 0, c.Len())
}

func TestDiskCache_RoundTripAndExpiry(t *testing.T) {
	dir := t.TempDir()
	c := NewDiskCache(dir, time.Hour)

	key := Key("x")
	require.NoError(t, c.Set(key, []byte(`{"ok":true}`), 0))

	got, ok := c.Get(key)
	require.True(t, ok)
	assert.JSONEq(t, `{"ok":true}`, string(got))

	// Move the clock past the TTL
	c.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
	_, ok = c.Get(key)
	assert.False(t, ok)

	_, err := os.Stat(c.path(key))
	assert.True(t, os.IsNotExist(err), "expired entry should be removed")
}

func TestDiskCache_CorruptEntry(t *testing.T) {
	dir := t.TempDir()
	c := NewDiskCache(dir, time.Hour)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "bad.cache"), []byte("{not json"), 0o644))
	_, ok := c.Get("bad")
	assert.False(t, ok)
}

func TestDiskCache_DeleteMissing(t *testing.T) {
	c := NewDiskCache(t.TempDir(), time.Hour)
	assert.NoError(t, c.Delete("missing"))
}

func TestLayeredCache_PromotesDiskHits(t *testing.T) {
	mem := NewMemoryCache(time.Minute, time.Minute)
	disk := NewDiskCache(t.TempDir(), time.Hour)
	c := NewLayered(mem, disk)

	require.NoError(t, disk.Set("k", []byte("v"), 0))
	_, ok := mem.Get("k")
	require.False(t, ok)

	got, ok := c.Get("k")
	require.True(t, ok)
	assert.Equal(t, "v", string(got))

	_, ok = mem.Get("k")
	assert.True(t, ok, "disk hit should be promoted to memory")

	require.NoError(t, c.Clear())
	_, ok = c.Get("k")
	assert.False(t, ok)
}

func TestNop(t *testing.T) {
	var c Cache = Nop{}
	require.NoError(t, c.Set("k", []byte("v"), 0))
	_, ok := c.Get("k")
	assert.False(t, ok)
}
