package randomization

import (
	"math/rand"
	"testing"

	"blockrand/domain/allocation"
	"blockrand/domain/core"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func tally(block []allocation.Group) map[allocation.Group]int {
	out := make(map[allocation.Group]int)
	for _, g := range block {
		out[g]++
	}
	return out
}

func TestGenerateBlock_BalancedComposition(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	groups := allocation.DefaultGroups()

	for _, size := range []int{2, 4, 6, 8, 20} {
		for i := 0; i < 50; i++ {
			block, err := GenerateBlock(rng, groups, size, "", PriorityNeutral)
			require.NoError(t, err)
			require.Len(t, block, size)

			counts := tally(block)
			assert.Equal(t, size/2, counts[allocation.GroupA])
			assert.Equal(t, size/2, counts[allocation.GroupB])
		}
	}
}

func TestGenerateBlock_OddSizeFavoursEarlierGroups(t *testing.T) {
	rng := rand.New(rand.NewSource(7))

	block, err := GenerateBlock(rng, allocation.DefaultGroups(), 5, "", PriorityNeutral)
	require.NoError(t, err)

	counts := tally(block)
	assert.Equal(t, 3, counts[allocation.GroupA])
	assert.Equal(t, 2, counts[allocation.GroupB])
}

func TestGenerateBlock_NeutralPriorityKeepsComposition(t *testing.T) {
	rng := rand.New(rand.NewSource(11))

	for i := 0; i < 100; i++ {
		block, err := GenerateBlock(rng, allocation.DefaultGroups(), 4, allocation.GroupB, PriorityNeutral)
		require.NoError(t, err)
		counts := tally(block)
		assert.Equal(t, 2, counts[allocation.GroupA])
		assert.Equal(t, 2, counts[allocation.GroupB])
	}
}

func TestGenerateBlock_WeightedPriorityAddsOneSlot(t *testing.T) {
	rng := rand.New(rand.NewSource(11))

	block, err := GenerateBlock(rng, allocation.DefaultGroups(), 4, allocation.GroupB, PriorityWeighted)
	require.NoError(t, err)
	counts := tally(block)
	assert.Equal(t, 1, counts[allocation.GroupA])
	assert.Equal(t, 3, counts[allocation.GroupB])

	block, err = GenerateBlock(rng, allocation.DefaultGroups(), 6, allocation.GroupA, PriorityWeighted)
	require.NoError(t, err)
	counts = tally(block)
	assert.Equal(t, 4, counts[allocation.GroupA])
	assert.Equal(t, 2, counts[allocation.GroupB])
}

func TestGenerateBlock_ReproducibleWithSeed(t *testing.T) {
	a, err := GenerateBlock(rand.New(rand.NewSource(99)), allocation.DefaultGroups(), 8, "", PriorityNeutral)
	require.NoError(t, err)
	b, err := GenerateBlock(rand.New(rand.NewSource(99)), allocation.DefaultGroups(), 8, "", PriorityNeutral)
	require.NoError(t, err)

	assert.Equal(t, a, b)
}

func TestGenerateBlock_ShuffleReachesEveryArrangement(t *testing.T) {
	rng := rand.New(rand.NewSource(3))
	seen := make(map[string]bool)

	for i := 0; i < 500; i++ {
		block, err := GenerateBlock(rng, allocation.DefaultGroups(), 4, "", PriorityNeutral)
		require.NoError(t, err)
		s := ""
		for _, g := range block {
			s += g.String()
		}
		seen[s] = true
	}

	// 4!/(2!2!) distinct orderings of AABB
	assert.Len(t, seen, 6)
}

func TestGenerateBlock_InvalidConfiguration(t *testing.T) {
	rng := rand.New(rand.NewSource(1))

	_, err := GenerateBlock(rng, nil, 4, "", PriorityNeutral)
	assert.ErrorIs(t, err, core.ErrConfiguration)

	_, err = GenerateBlock(rng, allocation.DefaultGroups(), 0, "", PriorityNeutral)
	assert.ErrorIs(t, err, core.ErrConfiguration)

	_, err = GenerateBlock(rng, allocation.DefaultGroups(), 1, "", PriorityNeutral)
	assert.ErrorIs(t, err, core.ErrConfiguration)
}

func TestParsePriorityMode(t *testing.T) {
	m, err := ParsePriorityMode("")
	require.NoError(t, err)
	assert.Equal(t, PriorityNeutral, m)

	m, err = ParsePriorityMode("weighted")
	require.NoError(t, err)
	assert.Equal(t, PriorityWeighted, m)

	_, err = ParsePriorityMode("aggressive")
	assert.ErrorIs(t, err, core.ErrConfiguration)
}
