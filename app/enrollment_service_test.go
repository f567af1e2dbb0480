package app

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"testing"

	"blockrand/domain/allocation"
	"blockrand/domain/core"
	"blockrand/internal/errors"
	"blockrand/internal/randomization"
	"blockrand/internal/testkit"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestService(t *testing.T, history *allocation.History) (*EnrollmentService, *testkit.InMemoryHistoryRepository) {
	t.Helper()
	engine, err := randomization.NewEngine(
		randomization.DefaultConfig(),
		nil,
		randomization.NewTracker(history),
		rand.New(rand.NewSource(7)),
	)
	require.NoError(t, err)
	repo := testkit.NewInMemoryHistoryRepository()
	return NewEnrollmentService(engine, repo, repo), repo
}

func TestEnrollmentService_Enroll(t *testing.T) {
	svc, repo := newTestService(t, nil)

	result, err := svc.Enroll(context.Background(), EnrollRequest{
		SubjectID: " S001 ",
		Name:      "Robin Park",
		Gender:    "female",
		Age:       55,
	})
	require.NoError(t, err)

	assert.Equal(t, core.SubjectID("S001"), result.Record.SubjectID)
	assert.Equal(t, allocation.Female, result.Record.Gender)
	assert.Equal(t, allocation.StrataKey("Female / ≥55"), result.Record.Key)
	assert.Contains(t, []allocation.Group{allocation.GroupA, allocation.GroupB}, result.Record.Group)
	assert.Equal(t, randomization.BiasNone, result.Decision.Reason)
	assert.False(t, result.Record.AssignedAt.IsZero())

	assert.Equal(t, 1, repo.Len())
	exports, size := repo.Exports()
	assert.Equal(t, 1, exports)
	assert.Equal(t, 1, size)
	assert.Equal(t, []allocation.AssignmentRecord{result.Record}, svc.History())
}

func TestEnrollmentService_RejectsInvalidInput(t *testing.T) {
	tests := []struct {
		name string
		req  EnrollRequest
	}{
		{"empty subject", EnrollRequest{SubjectID: "  ", Gender: "Male", Age: 30}},
		{"unknown gender", EnrollRequest{SubjectID: "S1", Gender: "Other", Age: 30}},
		{"negative age", EnrollRequest{SubjectID: "S1", Gender: "Male", Age: -1}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, repo := newTestService(t, nil)
			_, err := svc.Enroll(context.Background(), tt.req)
			require.Error(t, err)
			assert.Equal(t, errors.CodeInvalidInput, errors.GetCode(err))
			assert.Empty(t, svc.History())
			assert.Equal(t, 0, repo.Len())
		})
	}
}

func TestEnrollmentService_PersistenceFailureKeepsAssignment(t *testing.T) {
	svc, repo := newTestService(t, nil)
	repo.FailNextAppend()

	result, err := svc.Enroll(context.Background(), EnrollRequest{SubjectID: "S1", Gender: "Male", Age: 20})
	require.Error(t, err)
	assert.Equal(t, errors.CodePersistence, errors.GetCode(err))
	assert.ErrorIs(t, err, testkit.ErrInjected)

	require.NotNil(t, result, "the assignment happened and must be reported")
	assert.Len(t, svc.History(), 1)
	assert.Equal(t, 0, repo.Len())
	assert.Equal(t, 1, svc.Engine().Tracker().Snapshot().Total.Total())
}

func TestEnrollmentService_ConcurrentEnrollments(t *testing.T) {
	svc, repo := newTestService(t, nil)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 80; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			gender := "Male"
			if i%2 == 1 {
				gender = "Female"
			}
			_, err := svc.Enroll(ctx, EnrollRequest{SubjectID: fmt.Sprintf("S%03d", i), Gender: gender, Age: 30 + i%50})
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	assert.Len(t, svc.History(), 80)
	assert.Equal(t, 80, repo.Len())
	require.NoError(t, svc.Engine().Tracker().Verify())

	global := svc.Engine().Tracker().Snapshot().Total
	assert.LessOrEqual(t, global.Diff(), 8)
}

func TestEnrollmentService_SetBlockSize(t *testing.T) {
	svc, _ := newTestService(t, nil)

	require.NoError(t, svc.SetBlockSize(6))
	assert.Equal(t, 6, svc.BlockSize())

	err := svc.SetBlockSize(1)
	require.Error(t, err)
	assert.Equal(t, errors.CodeInvalidInput, errors.GetCode(err))
	assert.Equal(t, 6, svc.BlockSize())
}

func TestEnrollmentService_CancelledContext(t *testing.T) {
	svc, _ := newTestService(t, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := svc.Enroll(ctx, EnrollRequest{SubjectID: "S1", Gender: "Male", Age: 20})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, svc.History())
}

func TestRestoreHistory(t *testing.T) {
	repo := testkit.NewInMemoryHistoryRepository(
		allocation.AssignmentRecord{ID: core.NewRecordID(), SubjectID: "P-1", Gender: allocation.Male, Key: "Male/<55", Group: allocation.GroupA},
		allocation.AssignmentRecord{ID: core.NewRecordID(), SubjectID: "P-2", Gender: allocation.Female, Key: "Female / ≥55", Group: allocation.GroupB},
	)

	history, err := RestoreHistory(context.Background(), repo, randomization.DefaultStratifier())
	require.NoError(t, err)
	records := history.Records()
	require.Len(t, records, 2)
	assert.Equal(t, allocation.StrataKey("Male / <55"), records[0].Key)

	counts := randomization.Counts(history)
	assert.Equal(t, allocation.ArmCounts{A: 1, B: 1}, counts.Total)
}

func TestRestoreHistory_UnknownStratum(t *testing.T) {
	repo := testkit.NewInMemoryHistoryRepository(
		allocation.AssignmentRecord{ID: core.NewRecordID(), SubjectID: "P-1", Key: "Unknown / <55", Group: allocation.GroupA},
	)

	_, err := RestoreHistory(context.Background(), repo, randomization.DefaultStratifier())
	require.Error(t, err)
	assert.ErrorIs(t, err, core.ErrUnknownStrata)
	assert.Equal(t, errors.CodeConfigInvalid, errors.GetCode(err))
}

func TestEnrollmentResumesFromRestoredHistory(t *testing.T) {
	// six A and two B already enrolled: the next allocation must favour B
	var seed []allocation.AssignmentRecord
	for i := 0; i < 8; i++ {
		g := allocation.GroupA
		if i >= 6 {
			g = allocation.GroupB
		}
		seed = append(seed, allocation.AssignmentRecord{
			ID: core.NewRecordID(), SubjectID: core.SubjectID(fmt.Sprintf("P%d", i)),
			Gender: allocation.Female, Age: 70, Key: "Female / ≥55", Group: g,
		})
	}
	history, err := RestoreHistory(context.Background(), testkit.NewInMemoryHistoryRepository(seed...), randomization.DefaultStratifier())
	require.NoError(t, err)

	svc, _ := newTestService(t, history)
	result, err := svc.Enroll(context.Background(), EnrollRequest{SubjectID: "S-new", Gender: "Male", Age: 30})
	require.NoError(t, err)
	assert.Equal(t, randomization.BiasGlobal, result.Decision.Reason)
	assert.Equal(t, allocation.GroupB, result.Decision.Priority)
}

type recordingListener struct {
	results []EnrollmentResult
}

func (l *recordingListener) Enrolled(result EnrollmentResult) {
	l.results = append(l.results, result)
}

func TestEnrollmentService_NotifiesListeners(t *testing.T) {
	svc, repo := newTestService(t, nil)
	listener := &recordingListener{}
	svc.AddListener(listener)

	first, err := svc.Enroll(context.Background(), EnrollRequest{SubjectID: "S1", Gender: "Male", Age: 20})
	require.NoError(t, err)

	repo.FailNextAppend()
	second, err := svc.Enroll(context.Background(), EnrollRequest{SubjectID: "S2", Gender: "Male", Age: 20})
	require.Error(t, err)

	require.Len(t, listener.results, 2, "unpersisted assignments are still announced")
	assert.Equal(t, first.Record, listener.results[0].Record)
	assert.Equal(t, second.Record, listener.results[1].Record)

	_, err = svc.Enroll(context.Background(), EnrollRequest{SubjectID: "S3", Gender: "Nope", Age: 20})
	require.Error(t, err)
	assert.Len(t, listener.results, 2)
}
