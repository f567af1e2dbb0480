package core

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// ID represents a domain identifier
type ID string

// NewID creates a new unique identifier using UUID v7 for time-ordered generation
func NewID() ID {
	id, err := uuid.NewV7()
	if err != nil {
		id = uuid.New()
	}
	return ID(id.String())
}

// String returns the string representation
func (id ID) String() string {
	return string(id)
}

// IsEmpty checks if the ID is empty
func (id ID) IsEmpty() bool {
	return id == ""
}

// Domain-specific ID types
type (
	RecordID  ID
	SubjectID ID
)

func (id RecordID) String() string  { return ID(id).String() }
func (id SubjectID) String() string { return ID(id).String() }

// NewRecordID creates a time-ordered identifier for an assignment record
func NewRecordID() RecordID {
	return RecordID(NewID())
}

// ParseSubjectID parses a string into SubjectID
func ParseSubjectID(s string) (SubjectID, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", fmt.Errorf("%w: subject ID cannot be empty", ErrInvalidInput)
	}
	return SubjectID(s), nil
}

// ParseRecordID parses a string into RecordID
func ParseRecordID(s string) (RecordID, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", fmt.Errorf("%w: record ID cannot be empty", ErrInvalidInput)
	}
	if _, err := uuid.Parse(s); err != nil {
		return "", fmt.Errorf("%w: record ID %q is not a UUID", ErrInvalidInput, s)
	}
	return RecordID(s), nil
}
