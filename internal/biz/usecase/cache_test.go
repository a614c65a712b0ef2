package usecase

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DevRickLin/chatguard/internal/biz/domain"
)

func rec(id string) domain.MessageRecord {
	return domain.MessageRecord{ID: id, Chat: "c1", Content: "content " + id}
}

func TestMessageCache_FIFOEviction(t *testing.T) {
	cache := NewMessageCache(DefaultCacheCapacity)

	for i := 1; i <= 1001; i++ {
		cache.Put(rec(fmt.Sprintf("m%d", i)))
	}

	assert.Equal(t, 1000, cache.Len())
	_, ok := cache.Get("m1")
	assert.False(t, ok, "oldest entry should be evicted")

	got, ok := cache.Get("m1001")
	require.True(t, ok)
	assert.Equal(t, "content m1001", got.Content)

	_, ok = cache.Get("m2")
	assert.True(t, ok)
}

func TestMessageCache_OverwriteKeepsSlot(t *testing.T) {
	cache := NewMessageCache(3)

	cache.Put(rec("a"))
	cache.Put(rec("b"))
	cache.Put(rec("c"))

	updated := rec("a")
	updated.Content = "edited"
	assert.False(t, cache.Put(updated))
	assert.Equal(t, 3, cache.Len())

	got, _ := cache.Get("a")
	assert.Equal(t, "edited", got.Content)

	// "a" still holds the oldest slot, so it is evicted first
	assert.True(t, cache.Put(rec("d")))
	_, ok := cache.Get("a")
	assert.False(t, ok)
	_, ok = cache.Get("b")
	assert.True(t, ok)
}

func TestMessageCache_Miss(t *testing.T) {
	cache := NewMessageCache(0)
	assert.Equal(t, DefaultCacheCapacity, cache.Capacity())

	_, ok := cache.Get("missing")
	assert.False(t, ok)
}
