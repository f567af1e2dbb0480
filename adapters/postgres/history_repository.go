package postgres

import (
	"context"
	"fmt"
	"time"

	"blockrand/domain/allocation"
	"blockrand/domain/core"
	"blockrand/internal/errors"
	"blockrand/ports"

	"github.com/jmoiron/sqlx"
)

// assignmentRow mirrors the assignments table
type assignmentRow struct {
	Seq        int64     `db:"seq"`
	ID         string    `db:"id"`
	SubjectID  string    `db:"subject_id"`
	Name       string    `db:"name"`
	Age        int       `db:"age"`
	Gender     string    `db:"gender"`
	Strata     string    `db:"strata"`
	Group      string    `db:"arm"`
	AssignedAt time.Time `db:"assigned_at"`
}

// HistoryRepositoryImpl implements HistoryRepository for PostgreSQL. Rows
// are ordered by a serial column, so insertion order is history order.
type HistoryRepositoryImpl struct {
	db *sqlx.DB
}

// NewHistoryRepository creates a new PostgreSQL history repository
func NewHistoryRepository(db *sqlx.DB) ports.HistoryRepository {
	return &HistoryRepositoryImpl{db: db}
}

// Load returns every assignment in insertion order
func (r *HistoryRepositoryImpl) Load(ctx context.Context) ([]allocation.AssignmentRecord, error) {
	var rows []assignmentRow
	err := r.db.SelectContext(ctx, &rows, `
		SELECT seq, id, subject_id, name, age, gender, strata, arm, assigned_at
		FROM assignments
		ORDER BY seq ASC
	`)
	if err != nil {
		return nil, errors.WithCode(errors.CodeDatabaseError, fmt.Errorf("load assignments: %w", err))
	}

	records := make([]allocation.AssignmentRecord, 0, len(rows))
	for _, row := range rows {
		record, err := row.toRecord()
		if err != nil {
			return nil, fmt.Errorf("assignment seq %d: %w", row.Seq, err)
		}
		records = append(records, record)
	}
	return records, nil
}

// Append inserts one assignment
func (r *HistoryRepositoryImpl) Append(ctx context.Context, record allocation.AssignmentRecord) error {
	_, err := r.db.NamedExecContext(ctx, `
		INSERT INTO assignments (id, subject_id, name, age, gender, strata, arm, assigned_at)
		VALUES (:id, :subject_id, :name, :age, :gender, :strata, :arm, :assigned_at)
	`, fromRecord(record))
	if err != nil {
		return errors.WithCode(errors.CodeDatabaseError, fmt.Errorf("insert assignment %s: %w", record.ID, err))
	}
	return nil
}

func fromRecord(r allocation.AssignmentRecord) assignmentRow {
	return assignmentRow{
		ID:         r.ID.String(),
		SubjectID:  r.SubjectID.String(),
		Name:       r.Name,
		Age:        r.Age,
		Gender:     r.Gender.String(),
		Strata:     r.Key.String(),
		Group:      r.Group.String(),
		AssignedAt: r.AssignedAt.Time(),
	}
}

func (row assignmentRow) toRecord() (allocation.AssignmentRecord, error) {
	id, err := core.ParseRecordID(row.ID)
	if err != nil {
		return allocation.AssignmentRecord{}, err
	}
	subject, err := core.ParseSubjectID(row.SubjectID)
	if err != nil {
		return allocation.AssignmentRecord{}, err
	}
	gender, err := allocation.ParseGender(row.Gender)
	if err != nil {
		return allocation.AssignmentRecord{}, err
	}
	group, err := allocation.ParseGroup(row.Group)
	if err != nil {
		return allocation.AssignmentRecord{}, err
	}
	return allocation.AssignmentRecord{
		ID:         id,
		SubjectID:  subject,
		Name:       row.Name,
		Age:        row.Age,
		Gender:     gender,
		Key:        allocation.StrataKey(row.Strata),
		Group:      group,
		AssignedAt: core.NewTimestamp(row.AssignedAt.UTC()),
	}, nil
}
