package testkit

import (
	"context"
	"errors"
	"hash/fnv"
	"math/rand"
	"sync"

	"blockrand/domain/allocation"
	"blockrand/ports"
)

// TestKit provides testing utilities and fixtures
type TestKit struct {
	history *InMemoryHistoryRepository // Shared history store
}

// NewTestKit creates a new test kit with an empty in-memory history
func NewTestKit() *TestKit {
	return &TestKit{history: NewInMemoryHistoryRepository()}
}

// HistoryRepository returns the shared in-memory history store
func (t *TestKit) HistoryRepository() *InMemoryHistoryRepository {
	return t.history
}

// RNGAdapter returns an RNG adapter
func (t *TestKit) RNGAdapter() ports.RNGPort {
	return &RNGAdapter{}
}

// RNGAdapter implements the RNGPort interface for testing. Unlike the
// production adapter a zero seed stays zero, so every run is reproducible.
type RNGAdapter struct{}

// SeededStream creates a deterministic random number generator for a named operation
func (r *RNGAdapter) SeededStream(ctx context.Context, name string, seed int64) (*rand.Rand, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if name != "" {
		seed += int64(hashString(name))
	}
	return rand.New(rand.NewSource(seed)), nil
}

func hashString(s string) uint32 {
	h := fnv.New32a()
	h.Write([]byte(s))
	return h.Sum32()
}

// ErrInjected is returned by the in-memory repository when a failure is armed
var ErrInjected = errors.New("injected persistence failure")

// InMemoryHistoryRepository implements HistoryRepository and
// HistoryExporter without touching disk
type InMemoryHistoryRepository struct {
	mu        sync.Mutex
	records   []allocation.AssignmentRecord
	exports   int
	lastBatch int
	failNext  bool
}

// NewInMemoryHistoryRepository creates an empty store seeded with records
func NewInMemoryHistoryRepository(records ...allocation.AssignmentRecord) *InMemoryHistoryRepository {
	return &InMemoryHistoryRepository{records: append([]allocation.AssignmentRecord(nil), records...)}
}

// Load returns a copy of the stored records
func (r *InMemoryHistoryRepository) Load(ctx context.Context) ([]allocation.AssignmentRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]allocation.AssignmentRecord, len(r.records))
	copy(out, r.records)
	return out, nil
}

// Append stores a record, or fails once if FailNextAppend was called
func (r *InMemoryHistoryRepository) Append(ctx context.Context, record allocation.AssignmentRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failNext {
		r.failNext = false
		return ErrInjected
	}
	r.records = append(r.records, record)
	return nil
}

// Export counts snapshot exports
func (r *InMemoryHistoryRepository) Export(ctx context.Context, records []allocation.AssignmentRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.exports++
	r.lastBatch = len(records)
	return nil
}

// FailNextAppend arms a single Append failure
func (r *InMemoryHistoryRepository) FailNextAppend() {
	r.mu.Lock()
	r.failNext = true
	r.mu.Unlock()
}

// Len returns the number of persisted records
func (r *InMemoryHistoryRepository) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.records)
}

// Exports returns how many snapshots were exported and the size of the last one
func (r *InMemoryHistoryRepository) Exports() (count int, lastSize int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.exports, r.lastBatch
}

var (
	_ ports.HistoryRepository = (*InMemoryHistoryRepository)(nil)
	_ ports.HistoryExporter   = (*InMemoryHistoryRepository)(nil)
	_ ports.RNGPort           = (*RNGAdapter)(nil)
)
