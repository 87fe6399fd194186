package service

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSamplerTakeDistinctAndLeavesPool(t *testing.T) {
	s := NewSampler(rand.New(rand.NewSource(7)))
	pool := []uint{1, 2, 3, 4, 5, 6, 7, 8}

	got, ok := s.Take(pool, 5)
	require.True(t, ok)
	assert.Len(t, got, 5)

	seen := map[uint]bool{}
	for _, id := range got {
		assert.False(t, seen[id], "duplicate id %d", id)
		seen[id] = true
		assert.Contains(t, pool, id)
	}
	assert.Equal(t, []uint{1, 2, 3, 4, 5, 6, 7, 8}, pool)
}

func TestSamplerTakeBounds(t *testing.T) {
	s := NewSampler(nil)

	_, ok := s.Take([]uint{1, 2}, 3)
	assert.False(t, ok)
	_, ok = s.Take([]uint{1, 2}, -1)
	assert.False(t, ok)

	got, ok := s.Take([]uint{1, 2}, 0)
	assert.True(t, ok)
	assert.Empty(t, got)

	all, ok := s.Take([]uint{3, 1, 2}, 3)
	require.True(t, ok)
	assert.ElementsMatch(t, []uint{1, 2, 3}, all)
}

func TestSamplerSeedIsReproducible(t *testing.T) {
	pool := []uint{10, 20, 30, 40, 50, 60}
	a, _ := NewSampler(rand.New(rand.NewSource(42))).Take(pool, 4)
	b, _ := NewSampler(rand.New(rand.NewSource(42))).Take(pool, 4)
	assert.Equal(t, a, b)
}
