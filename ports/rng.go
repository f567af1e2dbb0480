package ports

import (
	"context"
	"math/rand"
)

// RNGPort hands out named random streams. The engine draws its block
// shuffles from the "allocation" stream; a fixed seed replays the same
// sequence of blocks.
type RNGPort interface {
	SeededStream(ctx context.Context, name string, seed int64) (*rand.Rand, error)
}
