package core

import (
	"errors"
	"testing"
)

// TestNewIDUniqueness tests that NewID generates unique identifiers
func TestNewIDUniqueness(t *testing.T) {
	const numIDs = 10000

	ids := make(map[ID]bool, numIDs)
	for i := 0; i < numIDs; i++ {
		id := NewID()
		if id.IsEmpty() {
			t.Errorf("Generated empty ID at iteration %d", i)
		}
		if ids[id] {
			t.Errorf("Generated duplicate ID: %s", id)
		}
		ids[id] = true
	}

	if len(ids) != numIDs {
		t.Errorf("Expected %d unique IDs, got %d", numIDs, len(ids))
	}
}

func TestNewRecordIDParses(t *testing.T) {
	id := NewRecordID()
	parsed, err := ParseRecordID(id.String())
	if err != nil {
		t.Fatalf("Unexpected error parsing generated record ID: %v", err)
	}
	if parsed != id {
		t.Errorf("Expected %s, got %s", id, parsed)
	}
}

// TestParseSubjectID tests subject ID parsing
func TestParseSubjectID(t *testing.T) {
	tests := []struct {
		input    string
		expected SubjectID
		hasError bool
	}{
		{"S-001", SubjectID("S-001"), false},
		{"  S-002 ", SubjectID("S-002"), false},
		{"", "", true},
		{"   ", "", true},
	}

	for _, test := range tests {
		result, err := ParseSubjectID(test.input)
		if test.hasError {
			if err == nil {
				t.Errorf("Expected error for input '%s', but got none", test.input)
			} else if !errors.Is(err, ErrInvalidInput) {
				t.Errorf("Expected ErrInvalidInput for input '%s', got %v", test.input, err)
			}
		}
		if !test.hasError && err != nil {
			t.Errorf("Unexpected error for input '%s': %v", test.input, err)
		}
		if result != test.expected {
			t.Errorf("Expected %s, got %s", test.expected, result)
		}
	}
}

func TestParseRecordIDRejectsGarbage(t *testing.T) {
	if _, err := ParseRecordID("not-a-uuid"); err == nil {
		t.Error("Expected error for non-UUID record ID")
	}
}
