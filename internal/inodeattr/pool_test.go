package inodeattr

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/auriora/onemount-vfscache/internal/vfscache"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUT_IA_01_01_Touch_ThenGet_ReturnsStoredAttr(t *testing.T) {
	pool, err := Open(filepath.Join(t.TempDir(), "attrs.db"))
	require.NoError(t, err)
	defer pool.Close()

	now := time.Now()
	attr := vfscache.InodeAttr{Size: 42, ModTime: now, IsDir: false}
	pool.Touch("item-1", attr, now)

	rec, ok := pool.Get("item-1")
	require.True(t, ok)
	assert.Equal(t, attr.Size, rec.Attr.Size)
	assert.WithinDuration(t, now, rec.FetchedAt, time.Second)
}

func TestUT_IA_01_02_Get_UnknownItem_ReturnsFalse(t *testing.T) {
	pool, err := Open(filepath.Join(t.TempDir(), "attrs.db"))
	require.NoError(t, err)
	defer pool.Close()

	_, ok := pool.Get("does-not-exist")
	assert.False(t, ok)
}

func TestUT_IA_01_03_Get_SurvivesMemoryEviction_ViaDisk(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "attrs.db")
	pool, err := Open(dbPath)
	require.NoError(t, err)

	now := time.Now()
	pool.Touch("item-2", vfscache.InodeAttr{Size: 7}, now)
	require.NoError(t, pool.Close())

	reopened, err := Open(dbPath)
	require.NoError(t, err)
	defer reopened.Close()

	rec, ok := reopened.Get("item-2")
	require.True(t, ok)
	assert.Equal(t, uint64(7), rec.Attr.Size)
}
