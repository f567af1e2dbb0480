package randomization

import (
	"fmt"
	"sync"

	"blockrand/domain/allocation"
	"blockrand/domain/core"
)

// Counts tallies a history by stratum and globally. It is the reference
// semantics every other view of the balance must agree with.
func Counts(history *allocation.History) allocation.BalanceCounts {
	return countRecords(history.Records())
}

func countRecords(records []allocation.AssignmentRecord) allocation.BalanceCounts {
	counts := allocation.NewBalanceCounts()
	for _, r := range records {
		counts.Add(r.Key, r.Group)
	}
	return counts
}

// Tracker owns the session history and keeps its balance counts up to date
// incrementally. Snapshot always equals Counts over the same history.
type Tracker struct {
	mu      sync.RWMutex
	history *allocation.History
	counts  allocation.BalanceCounts
}

// NewTracker takes ownership of history (typically reloaded from storage)
// and computes its counts with a full rescan
func NewTracker(history *allocation.History) *Tracker {
	if history == nil {
		history = allocation.NewHistory()
	}
	return &Tracker{
		history: history,
		counts:  Counts(history),
	}
}

// Record appends a completed assignment and adds it to the counts
func (t *Tracker) Record(r allocation.AssignmentRecord) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.history.Append(r)
	t.counts.Add(r.Key, r.Group)
}

// Snapshot returns a copy of the current counts
func (t *Tracker) Snapshot() allocation.BalanceCounts {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.counts.Clone()
}

// Rescan recomputes the counts from the full history without touching the
// incremental state
func (t *Tracker) Rescan() allocation.BalanceCounts {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return Counts(t.history)
}

// Verify checks the incremental counts against a full rescan
func (t *Tracker) Verify() error {
	t.mu.RLock()
	defer t.mu.RUnlock()
	rescanned := Counts(t.history)
	if !rescanned.Equal(t.counts) {
		return fmt.Errorf("balance counts drifted: incremental total %+v, rescan total %+v", t.counts.Total, rescanned.Total)
	}
	return nil
}

// Records returns the history in chronological order
func (t *Tracker) Records() []allocation.AssignmentRecord {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.history.Records()
}

// Len returns the number of recorded assignments
func (t *Tracker) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.history.Len()
}

// Fingerprint hashes the history in order
func (t *Tracker) Fingerprint() core.HistoryHash {
	records := t.Records()
	rows := make([][]string, len(records))
	for i, r := range records {
		rows[i] = r.CanonicalFields()
	}
	return core.ComputeHistoryHash(rows)
}
