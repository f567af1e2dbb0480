package randomization

import (
	"fmt"
	"testing"

	"blockrand/domain/allocation"
	"blockrand/domain/core"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func record(id string, key allocation.StrataKey, g allocation.Group) allocation.AssignmentRecord {
	return allocation.AssignmentRecord{
		ID:        core.NewRecordID(),
		SubjectID: core.SubjectID(id),
		Key:       key,
		Group:     g,
	}
}

func sampleHistory(n int) *allocation.History {
	keys := DefaultStratifier().Keys()
	h := allocation.NewHistory()
	for i := 0; i < n; i++ {
		g := allocation.GroupA
		if i%3 == 0 {
			g = allocation.GroupB
		}
		h.Append(record(fmt.Sprintf("S%03d", i), keys[i%len(keys)], g))
	}
	return h
}

func TestCounts_TalliesByStratumAndGlobally(t *testing.T) {
	h := allocation.NewHistory(
		record("S1", "Male / <55", allocation.GroupA),
		record("S2", "Male / <55", allocation.GroupA),
		record("S3", "Female / ≥55", allocation.GroupB),
	)

	counts := Counts(h)
	assert.Equal(t, allocation.ArmCounts{A: 2, B: 1}, counts.Total)
	assert.Equal(t, allocation.ArmCounts{A: 2}, counts.Stratum("Male / <55"))
	assert.Equal(t, allocation.ArmCounts{B: 1}, counts.Stratum("Female / ≥55"))
	assert.Equal(t, allocation.ArmCounts{}, counts.Stratum("Female / <55"))
}

func TestCounts_Idempotent(t *testing.T) {
	h := sampleHistory(25)
	assert.True(t, Counts(h).Equal(Counts(h)))
}

func TestTracker_ReloadThenIncrementMatchesRescan(t *testing.T) {
	reloaded := sampleHistory(17)
	tracker := NewTracker(reloaded)

	next := record("S-new", "Female / <55", allocation.GroupB)
	tracker.Record(next)

	rescanned := sampleHistory(17)
	rescanned.Append(next)
	assert.Equal(t, 18, tracker.Len())
	assert.True(t, Counts(rescanned).Equal(tracker.Snapshot()))
	assert.True(t, tracker.Rescan().Equal(tracker.Snapshot()))
	assert.NoError(t, tracker.Verify())
}

func TestTracker_SnapshotIsDetached(t *testing.T) {
	tracker := NewTracker(nil)
	tracker.Record(record("S1", "Male / <55", allocation.GroupA))

	snap := tracker.Snapshot()
	snap.Add("Male / <55", allocation.GroupB)

	assert.Equal(t, allocation.ArmCounts{A: 1}, tracker.Snapshot().Stratum("Male / <55"))
	assert.Equal(t, 1, tracker.Len())
}

func TestTracker_FingerprintFollowsHistory(t *testing.T) {
	records := sampleHistory(5).Records()
	a := NewTracker(allocation.NewHistory(records...))
	b := NewTracker(allocation.NewHistory(records...))
	require.Equal(t, a.Fingerprint(), b.Fingerprint())

	b.Record(record("S-extra", "Male / ≥55", allocation.GroupA))
	assert.NotEqual(t, a.Fingerprint(), b.Fingerprint())
}
