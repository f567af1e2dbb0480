package rng

import (
	"context"
	"log"
	"math/rand"
	"time"
)

// SeededRNG implements ports.RNGPort. A zero seed is replaced by the clock
// and logged, so an unseeded session can still be replayed.
type SeededRNG struct {
	now func() time.Time
}

// NewSeededRNG creates the production RNG adapter
func NewSeededRNG() *SeededRNG {
	return &SeededRNG{now: time.Now}
}

// SeededStream creates a random number generator for a named operation
func (r *SeededRNG) SeededStream(ctx context.Context, name string, seed int64) (*rand.Rand, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if seed == 0 {
		seed = r.now().UnixNano()
		log.Printf("[RNG] %s: no seed configured, using %d", name, seed)
	}
	return rand.New(rand.NewSource(seed)), nil
}
