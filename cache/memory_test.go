package cache

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryCache_GetSet(t *testing.T) {
	mc := NewMemoryCache(10, 1024)

	_, ok := mc.Get("o-colors")
	assert.False(t, ok)

	mc.Set("o-colors", []byte(`{"versions":[]}`), time.Minute)
	got, ok := mc.Get("o-colors")
	require.True(t, ok)
	assert.Equal(t, `{"versions":[]}`, string(got))
}

func TestMemoryCache_ReturnsCopy(t *testing.T) {
	mc := NewMemoryCache(10, 1024)
	mc.Set("k", []byte("abc"), time.Minute)

	got, _ := mc.Get("k")
	got[0] = 'x'

	again, _ := mc.Get("k")
	assert.Equal(t, "abc", string(again))
}

func TestMemoryCache_Expiry(t *testing.T) {
	mc := NewMemoryCache(10, 1024)
	mc.Set("k", []byte("v"), 10*time.Millisecond)

	time.Sleep(20 * time.Millisecond)
	_, ok := mc.Get("k")
	assert.False(t, ok)
	assert.Equal(t, 0, mc.Stats().Entries)
}

func TestMemoryCache_EvictsLeastRecentlyUsed(t *testing.T) {
	mc := NewMemoryCache(2, 1024)
	mc.Set("a", []byte("1"), time.Minute)
	mc.Set("b", []byte("2"), time.Minute)

	_, _ = mc.Get("a")
	mc.Set("c", []byte("3"), time.Minute)

	_, ok := mc.Get("b")
	assert.False(t, ok, "b was least recently used")
	_, ok = mc.Get("a")
	assert.True(t, ok)
	_, ok = mc.Get("c")
	assert.True(t, ok)
}

func TestMemoryCache_EvictsBySize(t *testing.T) {
	mc := NewMemoryCache(100, 10)
	mc.Set("a", []byte("12345"), time.Minute)
	mc.Set("b", []byte("12345"), time.Minute)
	mc.Set("c", []byte("12345"), time.Minute)

	stats := mc.Stats()
	assert.Equal(t, 2, stats.Entries)
	assert.Equal(t, int64(10), stats.SizeBytes)
	_, ok := mc.Get("a")
	assert.False(t, ok)
}

func TestMemoryCache_ReplaceUpdatesSize(t *testing.T) {
	mc := NewMemoryCache(10, 1024)
	mc.Set("k", []byte("12345"), time.Minute)
	mc.Set("k", []byte("12"), time.Minute)

	assert.Equal(t, Stats{Entries: 1, SizeBytes: 2}, mc.Stats())
}

func TestMemoryCache_DeleteAndClear(t *testing.T) {
	mc := NewMemoryCache(10, 1024)
	mc.Set("a", []byte("1"), time.Minute)
	mc.Set("b", []byte("2"), time.Minute)

	mc.Delete("a")
	_, ok := mc.Get("a")
	assert.False(t, ok)

	mc.Clear()
	assert.Equal(t, Stats{}, mc.Stats())
}

func TestMemoryCache_Concurrent(t *testing.T) {
	mc := NewMemoryCache(50, 1<<20)

	var wg sync.WaitGroup
	for i := range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := range 100 {
				key := fmt.Sprintf("k%d", (i*100+j)%70)
				mc.Set(key, []byte(key), time.Minute)
				_, _ = mc.Get(key)
			}
		}()
	}
	wg.Wait()

	assert.LessOrEqual(t, mc.Stats().Entries, 50)
}
