package app

import (
	"context"
	"fmt"
	"log"
	"strings"
	"sync"

	"blockrand/domain/allocation"
	"blockrand/domain/core"
	"blockrand/internal/errors"
	"blockrand/internal/randomization"
	"blockrand/ports"

	"golang.org/x/sync/errgroup"
)

// EnrollmentService is the single caller of the allocation engine. It
// serializes enrollments so the read-counts, decide, pop and append steps
// happen atomically, then persists the new record.
type EnrollmentService struct {
	mu        sync.Mutex
	engine    *randomization.Engine
	repo      ports.HistoryRepository
	exporter  ports.HistoryExporter
	listeners []EnrollmentListener
}

// EnrollmentListener is notified after every allocation, persisted or not.
// Implementations must not block.
type EnrollmentListener interface {
	Enrolled(result EnrollmentResult)
}

// EnrollmentResult is the outcome of one enrollment
type EnrollmentResult struct {
	Record   allocation.AssignmentRecord `json:"record"`
	Decision randomization.Decision      `json:"decision"`
}

// EnrollRequest carries raw enrollment input from the API, dashboard or CLI
type EnrollRequest struct {
	SubjectID  string            `json:"subject_id"`
	Name       string            `json:"name"`
	Gender     string            `json:"gender"`
	Age        int               `json:"age"`
	Covariates map[string]string `json:"covariates,omitempty"`
}

// Subject validates the request fields that do not depend on the stratifier
func (r EnrollRequest) Subject() (allocation.Subject, error) {
	id, err := core.ParseSubjectID(r.SubjectID)
	if err != nil {
		return allocation.Subject{}, err
	}
	gender, err := allocation.ParseGender(r.Gender)
	if err != nil {
		return allocation.Subject{}, err
	}
	if r.Age < 0 {
		return allocation.Subject{}, core.NewInvalidInputError("age", "must be non-negative")
	}
	return allocation.Subject{
		ID:         id,
		Name:       strings.TrimSpace(r.Name),
		Gender:     gender,
		Age:        r.Age,
		Covariates: r.Covariates,
	}, nil
}

// NewEnrollmentService creates an enrollment service. exporter may be nil.
func NewEnrollmentService(engine *randomization.Engine, repo ports.HistoryRepository, exporter ports.HistoryExporter) *EnrollmentService {
	return &EnrollmentService{
		engine:   engine,
		repo:     repo,
		exporter: exporter,
	}
}

// AddListener registers l for future enrollments
func (s *EnrollmentService) AddListener(l EnrollmentListener) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners = append(s.listeners, l)
}

// Enroll allocates a subject and appends the record to the history.
//
// A persistence failure is returned as a PERSISTENCE_ERROR together with
// the result: the assignment already happened and stays in the in-memory
// history, so callers must still report the group.
func (s *EnrollmentService) Enroll(ctx context.Context, req EnrollRequest) (*EnrollmentResult, error) {
	subject, err := req.Subject()
	if err != nil {
		return nil, errors.Wrap(err, "invalid enrollment request")
	}
	return s.EnrollSubject(ctx, subject)
}

// EnrollSubject is Enroll for an already validated subject
func (s *EnrollmentService) EnrollSubject(ctx context.Context, subject allocation.Subject) (*EnrollmentResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	group, decision, err := s.engine.AssignNext(subject)
	if err != nil {
		return nil, errors.Wrap(err, "allocation failed")
	}

	record := allocation.NewAssignmentRecord(subject, decision.Key, group)
	tracker := s.engine.Tracker()
	tracker.Record(record)
	result := &EnrollmentResult{Record: record, Decision: decision}

	log.Printf("[Enrollment] %s (%s) -> group %s [bias: %s]", record.SubjectID, record.Key, record.Group, decision.Reason)

	err = s.persist(ctx, record, tracker.Records())
	for _, l := range s.listeners {
		l.Enrolled(*result)
	}
	if err != nil {
		log.Printf("[Enrollment] Warning: failed to persist %s: %v", record.SubjectID, err)
		return result, errors.Persistence(err)
	}
	return result, nil
}

// persist appends to the primary store and refreshes the mirror concurrently
func (s *EnrollmentService) persist(ctx context.Context, record allocation.AssignmentRecord, snapshot []allocation.AssignmentRecord) error {
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if err := s.repo.Append(ctx, record); err != nil {
			return fmt.Errorf("append history: %w", err)
		}
		return nil
	})

	if s.exporter != nil {
		g.Go(func() error {
			if err := s.exporter.Export(ctx, snapshot); err != nil {
				return fmt.Errorf("export history: %w", err)
			}
			return nil
		})
	}

	return g.Wait()
}

// History returns every assignment in chronological order
func (s *EnrollmentService) History() []allocation.AssignmentRecord {
	return s.engine.Tracker().Records()
}

// Export rewrites the mirror from the full in-memory history
func (s *EnrollmentService) Export(ctx context.Context) error {
	if s.exporter == nil {
		return errors.ConfigInvalid("no history exporter configured")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.exporter.Export(ctx, s.engine.Tracker().Records()); err != nil {
		return errors.Persistence(err)
	}
	return nil
}

// SetBlockSize changes the block size for future blocks
func (s *EnrollmentService) SetBlockSize(n int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.engine.SetBlockSize(n); err != nil {
		return errors.WithCode(errors.CodeInvalidInput, err)
	}
	log.Printf("[Enrollment] block size set to %d", n)
	return nil
}

// BlockSize returns the current block size
func (s *EnrollmentService) BlockSize() int {
	return s.engine.BlockSize()
}

// Engine exposes the underlying allocation engine
func (s *EnrollmentService) Engine() *randomization.Engine {
	return s.engine
}

// RestoreHistory loads persisted records and checks every key against the
// stratifier's domain. Keys are normalized to their canonical spelling.
func RestoreHistory(ctx context.Context, repo ports.HistoryRepository, stratifier *randomization.Stratifier) (*allocation.History, error) {
	records, err := repo.Load(ctx)
	if err != nil {
		return nil, errors.WithCode(errors.CodePersistence, fmt.Errorf("load history: %w", err))
	}

	history := allocation.NewHistory()
	for i, r := range records {
		key, err := stratifier.Parse(r.Key.String())
		if err != nil {
			return nil, errors.Wrapf(err, "history record %d (%s)", i+1, r.SubjectID)
		}
		r.Key = key
		history.Append(r)
	}
	log.Printf("[Enrollment] restored %d assignments", history.Len())
	return history, nil
}
