package randomization

import (
	"math/rand"

	"blockrand/domain/allocation"
)

// QueueState is the lifecycle state of a StrataQueue
type QueueState int

const (
	QueueEmpty QueueState = iota
	QueueLoaded
)

func (s QueueState) String() string {
	if s == QueueLoaded {
		return "LOADED"
	}
	return "EMPTY"
}

// StrataQueue is the FIFO of pending labels for one stratum. It refills
// itself with a fresh block whenever it runs dry, so it is never popped
// empty.
type StrataQueue struct {
	key       allocation.StrataKey
	groups    []allocation.Group
	blockSize int
	mode      PriorityMode
	rng       *rand.Rand
	pending   []allocation.Group
	blocks    int
}

// NewStrataQueue creates an empty queue for key
func NewStrataQueue(key allocation.StrataKey, groups []allocation.Group, blockSize int, mode PriorityMode, rng *rand.Rand) (*StrataQueue, error) {
	if err := ValidateBlockSize(groups, blockSize); err != nil {
		return nil, err
	}
	g := make([]allocation.Group, len(groups))
	copy(g, groups)
	return &StrataQueue{
		key:       key,
		groups:    g,
		blockSize: blockSize,
		mode:      mode,
		rng:       rng,
	}, nil
}

// Key returns the stratum this queue serves
func (q *StrataQueue) Key() allocation.StrataKey { return q.key }

// EnsureNonEmpty generates a block when the queue is empty
func (q *StrataQueue) EnsureNonEmpty(priority allocation.Group) error {
	if len(q.pending) > 0 {
		return nil
	}
	return q.Regenerate(priority)
}

// Regenerate appends a brand-new block to the tail regardless of what is
// still queued
func (q *StrataQueue) Regenerate(priority allocation.Group) error {
	block, err := GenerateBlock(q.rng, q.groups, q.blockSize, priority, q.mode)
	if err != nil {
		return err
	}
	q.pending = append(q.pending, block...)
	q.blocks++
	return nil
}

// Resume restores the block in flight after a restart. drawn holds the
// labels already taken from it, oldest first; the queue receives the rest of
// an unbiased block, shuffled. When nothing is left to complete, a fresh
// block is queued instead.
//
// Labels the current composition cannot account for (after a block size
// change or a weighted block) are ignored, so the remainder always leans
// toward balance.
func (q *StrataQueue) Resume(drawn []allocation.Group) error {
	remaining := make(map[allocation.Group]int, len(q.groups))
	for _, g := range blockComposition(q.groups, q.blockSize) {
		remaining[g]++
	}
	for _, g := range drawn {
		if remaining[g] > 0 {
			remaining[g]--
		}
	}

	var rest []allocation.Group
	for _, g := range q.groups {
		for i := 0; i < remaining[g]; i++ {
			rest = append(rest, g)
		}
	}
	if len(drawn) == 0 || len(rest) == 0 {
		return q.EnsureNonEmpty("")
	}

	q.rng.Shuffle(len(rest), func(i, j int) {
		rest[i], rest[j] = rest[j], rest[i]
	})
	q.pending = append(q.pending, rest...)
	return nil
}

// Assign pops the front label, generating a block first if needed
func (q *StrataQueue) Assign(priority allocation.Group) (allocation.Group, error) {
	if err := q.EnsureNonEmpty(priority); err != nil {
		return "", err
	}
	g := q.pending[0]
	q.pending = q.pending[1:]
	if len(q.pending) == 0 {
		q.pending = nil
	}
	return g, nil
}

// SetBlockSize changes the size of blocks generated from now on. Labels
// already queued are kept.
func (q *StrataQueue) SetBlockSize(n int) error {
	if err := ValidateBlockSize(q.groups, n); err != nil {
		return err
	}
	q.blockSize = n
	return nil
}

// BlockSize returns the size used for the next generated block
func (q *StrataQueue) BlockSize() int { return q.blockSize }

// Len returns the number of queued labels
func (q *StrataQueue) Len() int { return len(q.pending) }

// State reports EMPTY or LOADED
func (q *StrataQueue) State() QueueState {
	if len(q.pending) == 0 {
		return QueueEmpty
	}
	return QueueLoaded
}

// BlocksGenerated counts blocks produced over the queue's lifetime
func (q *StrataQueue) BlocksGenerated() int { return q.blocks }
