package randomization

import (
	"fmt"
	"math/rand"
	"sort"

	"blockrand/domain/allocation"
	"blockrand/domain/core"
)

// PriorityMode selects what a priority hint does to a generated block
type PriorityMode string

const (
	// PriorityNeutral moves priority labels to the front and then shuffles,
	// so the delivered block is indistinguishable from an unbiased one.
	PriorityNeutral PriorityMode = "neutral"
	// PriorityWeighted replaces one non-priority slot with the priority
	// group before shuffling, so the block carries one extra priority label.
	PriorityWeighted PriorityMode = "weighted"
)

// ParsePriorityMode parses a mode name; the empty string selects neutral
func ParsePriorityMode(s string) (PriorityMode, error) {
	switch PriorityMode(s) {
	case "", PriorityNeutral:
		return PriorityNeutral, nil
	case PriorityWeighted:
		return PriorityWeighted, nil
	}
	return "", core.NewConfigurationError(fmt.Sprintf("unknown priority mode %q", s))
}

// ValidateBlockSize checks blockSize against the group set
func ValidateBlockSize(groups []allocation.Group, blockSize int) error {
	if len(groups) == 0 {
		return core.NewConfigurationError("group set is empty")
	}
	if blockSize <= 0 {
		return core.NewConfigurationError(fmt.Sprintf("block size must be positive, got %d", blockSize))
	}
	if blockSize < len(groups) {
		return core.NewConfigurationError(fmt.Sprintf("block size %d is smaller than the %d groups", blockSize, len(groups)))
	}
	return nil
}

// GenerateBlock returns one block of blockSize labels.
//
// Composition cycles through groups in order, so when blockSize is not a
// multiple of len(groups) the earliest groups receive the extra slots: with
// groups {A,B} and blockSize 5 every block holds three A and two B.
//
// An empty priority means no hint. See PriorityMode for what a hint does.
func GenerateBlock(rng *rand.Rand, groups []allocation.Group, blockSize int, priority allocation.Group, mode PriorityMode) ([]allocation.Group, error) {
	if err := ValidateBlockSize(groups, blockSize); err != nil {
		return nil, err
	}

	block := blockComposition(groups, blockSize)

	if priority != "" && containsGroup(groups, priority) {
		if mode == PriorityWeighted {
			for i := len(block) - 1; i >= 0; i-- {
				if block[i] != priority {
					block[i] = priority
					break
				}
			}
		}
		sort.SliceStable(block, func(i, j int) bool {
			return block[i] == priority && block[j] != priority
		})
	}

	rng.Shuffle(len(block), func(i, j int) {
		block[i], block[j] = block[j], block[i]
	})
	return block, nil
}

// blockComposition lists the labels of one unshuffled, unbiased block
func blockComposition(groups []allocation.Group, blockSize int) []allocation.Group {
	block := make([]allocation.Group, blockSize)
	for i := range block {
		block[i] = groups[i%len(groups)]
	}
	return block
}

func containsGroup(groups []allocation.Group, g allocation.Group) bool {
	for _, x := range groups {
		if x == g {
			return true
		}
	}
	return false
}
