package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/adambraimbridge/origami-build-service-v3/observability"
)

func newTiered(t *testing.T) (*MultiTierCache, *MemoryCache, *DiskCache) {
	t.Helper()
	memory := NewMemoryCache(100, 1<<20)
	disk, err := NewDiskCache(t.TempDir())
	require.NoError(t, err)
	return NewMultiTierCache(memory, disk), memory, disk
}

func TestMultiTierCache_MemoryHit(t *testing.T) {
	mtc, memory, disk := newTiered(t)
	memory.Set(memoryKey(testOrigin, "k"), []byte("memory"), time.Minute)

	got, ok, err := mtc.Get(context.Background(), testOrigin, "k")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "memory", string(got))
	assert.NoFileExists(t, disk.Path(testOrigin, "k"))
}

func TestMultiTierCache_DiskHitPromotes(t *testing.T) {
	mtc, memory, disk := newTiered(t)
	require.NoError(t, disk.Set(testOrigin, "k", []byte("disk")))

	before, err := observability.GetCounterValue(observability.CacheHitsTotal, "disk")
	require.NoError(t, err)

	got, ok, err := mtc.Get(context.Background(), testOrigin, "k")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "disk", string(got))

	after, err := observability.GetCounterValue(observability.CacheHitsTotal, "disk")
	require.NoError(t, err)
	assert.Equal(t, before+1, after)

	promoted, ok := memory.Get(memoryKey(testOrigin, "k"))
	require.True(t, ok)
	assert.Equal(t, "disk", string(promoted))
}

func TestMultiTierCache_SetWritesBothTiers(t *testing.T) {
	mtc, memory, disk := newTiered(t)
	require.NoError(t, mtc.Set(context.Background(), testOrigin, "k", []byte("v")))

	_, ok := memory.Get(memoryKey(testOrigin, "k"))
	assert.True(t, ok)
	_, ok, err := disk.Get(testOrigin, "k", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestMultiTierCache_NoCacheSkipsReads(t *testing.T) {
	mtc, _, _ := newTiered(t)
	require.NoError(t, mtc.Set(context.Background(), testOrigin, "k", []byte("v")))

	ctx := WithPolicy(context.Background(), &Policy{NoCache: true})
	_, ok, err := mtc.Get(ctx, testOrigin, "k")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, mtc.Set(ctx, testOrigin, "k", []byte("fresh")))
	got, ok, err := mtc.Get(context.Background(), testOrigin, "k")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "fresh", string(got))
}

func TestMultiTierCache_NoStoreSkipsWrites(t *testing.T) {
	mtc, _, _ := newTiered(t)
	ctx := WithPolicy(context.Background(), &Policy{NoStore: true})

	require.NoError(t, mtc.Set(ctx, testOrigin, "k", []byte("v")))
	_, ok, err := mtc.Get(context.Background(), testOrigin, "k")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestMultiTierCache_Clear(t *testing.T) {
	mtc, _, _ := newTiered(t)
	require.NoError(t, mtc.Set(context.Background(), testOrigin, "k", []byte("v")))
	require.NoError(t, mtc.Clear())

	_, ok, err := mtc.Get(context.Background(), testOrigin, "k")
	require.NoError(t, err)
	assert.False(t, ok)
}
