package store

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFirstSeenIsStable(t *testing.T) {
	s := NewMemory()
	t0 := time.UnixMilli(1_700_000_000_000)

	first := FirstSeen(s, "gist/abc/1", t0)
	again := FirstSeen(s, "gist/abc/1", t0.Add(time.Hour))

	assert.Equal(t, t0.UnixMilli(), first)
	assert.Equal(t, first, again)
}

func TestSQLiteRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "timestamps.db")

	db, err := OpenSQLite(path)
	require.NoError(t, err)

	cubari := db.Scope("cubari")
	other := db.Scope("other")

	_, ok := cubari.Get("gist/abc/1")
	assert.False(t, ok)

	require.NoError(t, cubari.Put("gist/abc/1", 42))
	require.NoError(t, cubari.Put("gist/abc/1", 43))

	ts, ok := cubari.Get("gist/abc/1")
	assert.True(t, ok)
	assert.Equal(t, int64(43), ts)

	_, ok = other.Get("gist/abc/1")
	assert.False(t, ok)

	require.NoError(t, db.Close())

	reopened, err := OpenSQLite(path)
	require.NoError(t, err)
	defer reopened.Close()

	ts, ok = reopened.Scope("cubari").Get("gist/abc/1")
	assert.True(t, ok)
	assert.Equal(t, int64(43), ts)
}
