// Package allocation holds the value types shared by the randomization
// engine, its persistence adapters and its front ends.
package allocation

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"blockrand/domain/core"
)

// Group is the treatment arm assigned to a subject
type Group string

const (
	GroupA Group = "A"
	GroupB Group = "B"
)

// DefaultGroups returns the two study arms in block iteration order
func DefaultGroups() []Group {
	return []Group{GroupA, GroupB}
}

// ParseGroup parses an arm label
func ParseGroup(s string) (Group, error) {
	switch Group(strings.ToUpper(strings.TrimSpace(s))) {
	case GroupA:
		return GroupA, nil
	case GroupB:
		return GroupB, nil
	}
	return "", core.NewInvalidInputError("group", fmt.Sprintf("unknown arm %q", s))
}

// Other returns the opposite arm
func (g Group) Other() Group {
	if g == GroupA {
		return GroupB
	}
	return GroupA
}

func (g Group) String() string { return string(g) }

// Gender is the first stratification covariate
type Gender string

const (
	Male   Gender = "Male"
	Female Gender = "Female"
)

// Genders returns the closed gender domain in stratum order
func Genders() []Gender {
	return []Gender{Male, Female}
}

// ParseGender accepts the domain values case-insensitively
func ParseGender(s string) (Gender, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "male":
		return Male, nil
	case "female":
		return Female, nil
	}
	return "", core.NewInvalidInputError("gender", fmt.Sprintf("unknown gender %q", s))
}

func (g Gender) String() string { return string(g) }

// Age band labels. The threshold is fixed; the boundary age belongs to the
// upper band.
const (
	AgeThreshold   = 55
	AgeBandUnder   = "<55"
	AgeBandAtLeast = "≥55"
)

// Subject carries the attributes of one enrollment request
type Subject struct {
	ID     core.SubjectID `json:"subject_id"`
	Name   string         `json:"name,omitempty"`
	Gender Gender         `json:"gender"`
	Age    int            `json:"age"`
	// Covariates holds levels for additional configured dimensions, keyed by dimension name
	Covariates map[string]string `json:"covariates,omitempty"`
}

// StrataKey identifies one stratum: the level of every stratification
// dimension in dimension order, joined by KeySeparator ("Male / <55").
type StrataKey string

const KeySeparator = " / "

// NewStrataKey joins dimension levels into a key
func NewStrataKey(levels ...string) StrataKey {
	return StrataKey(strings.Join(levels, KeySeparator))
}

// Levels splits the key back into its dimension levels
func (k StrataKey) Levels() []string {
	parts := strings.Split(string(k), "/")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	return parts
}

func (k StrataKey) String() string { return string(k) }

// AssignmentRecord is the immutable result of one successful allocation
type AssignmentRecord struct {
	ID        core.RecordID  `json:"id"`
	SubjectID core.SubjectID `json:"subject_id"`
	Name      string         `json:"name,omitempty"`
	// Age is zero for rows imported from the three-column legacy layout
	Age        int            `json:"age"`
	Gender     Gender         `json:"gender"`
	Key        StrataKey      `json:"strata"`
	Group      Group          `json:"group"`
	AssignedAt core.Timestamp `json:"assigned_at"`
}

// NewAssignmentRecord builds the record for a subject that was just allocated
func NewAssignmentRecord(subject Subject, key StrataKey, group Group) AssignmentRecord {
	return AssignmentRecord{
		ID:         core.NewRecordID(),
		SubjectID:  subject.ID,
		Name:       subject.Name,
		Age:        subject.Age,
		Gender:     subject.Gender,
		Key:        key,
		Group:      group,
		AssignedAt: core.Now(),
	}
}

// CanonicalFields returns the record as an ordered list of strings, the
// form used for fingerprinting.
func (r AssignmentRecord) CanonicalFields() []string {
	return []string{
		r.ID.String(),
		r.SubjectID.String(),
		r.Name,
		strconv.Itoa(r.Age),
		r.Gender.String(),
		r.Key.String(),
		r.Group.String(),
		r.AssignedAt.String(),
	}
}

// History is the append-only, chronologically ordered log of assignments.
// It is not safe for concurrent use; the balance tracker serializes access.
type History struct {
	records []AssignmentRecord
}

// NewHistory creates a history seeded with previously persisted records
func NewHistory(records ...AssignmentRecord) *History {
	h := &History{records: make([]AssignmentRecord, 0, len(records))}
	h.records = append(h.records, records...)
	return h
}

// Append adds a record at the end. Records are never modified or removed.
func (h *History) Append(r AssignmentRecord) {
	h.records = append(h.records, r)
}

// Len returns the number of records
func (h *History) Len() int {
	return len(h.records)
}

// Records returns a copy of the records in chronological order
func (h *History) Records() []AssignmentRecord {
	out := make([]AssignmentRecord, len(h.records))
	copy(out, h.records)
	return out
}

// ArmCounts tallies assignments per arm
type ArmCounts struct {
	A int `json:"a"`
	B int `json:"b"`
}

// Add counts one assignment to g
func (c *ArmCounts) Add(g Group) {
	if g == GroupA {
		c.A++
		return
	}
	c.B++
}

// Total returns A+B
func (c ArmCounts) Total() int {
	return c.A + c.B
}

// Diff returns |A-B|
func (c ArmCounts) Diff() int {
	if c.A > c.B {
		return c.A - c.B
	}
	return c.B - c.A
}

// UnderRepresented returns the arm with fewer assignments; ok is false on a tie
func (c ArmCounts) UnderRepresented() (g Group, ok bool) {
	switch {
	case c.A < c.B:
		return GroupA, true
	case c.B < c.A:
		return GroupB, true
	}
	return "", false
}

// BalanceCounts holds per-stratum and global arm counts
type BalanceCounts struct {
	Strata map[StrataKey]ArmCounts `json:"strata"`
	Total  ArmCounts               `json:"total"`
}

// NewBalanceCounts returns empty counts
func NewBalanceCounts() BalanceCounts {
	return BalanceCounts{Strata: make(map[StrataKey]ArmCounts)}
}

// Add counts one assignment of group within key
func (b *BalanceCounts) Add(key StrataKey, group Group) {
	if b.Strata == nil {
		b.Strata = make(map[StrataKey]ArmCounts)
	}
	c := b.Strata[key]
	c.Add(group)
	b.Strata[key] = c
	b.Total.Add(group)
}

// Stratum returns the counts for key, zero when the stratum has no records
func (b BalanceCounts) Stratum(key StrataKey) ArmCounts {
	return b.Strata[key]
}

// Clone returns a deep copy
func (b BalanceCounts) Clone() BalanceCounts {
	out := BalanceCounts{Strata: make(map[StrataKey]ArmCounts, len(b.Strata)), Total: b.Total}
	for k, v := range b.Strata {
		out.Strata[k] = v
	}
	return out
}

// Equal reports whether both carry exactly the same tallies
func (b BalanceCounts) Equal(o BalanceCounts) bool {
	if b.Total != o.Total || len(b.Strata) != len(o.Strata) {
		return false
	}
	for k, v := range b.Strata {
		if ov, ok := o.Strata[k]; !ok || ov != v {
			return false
		}
	}
	return true
}

// Keys returns the strata present in the counts, sorted
func (b BalanceCounts) Keys() []StrataKey {
	keys := make([]StrataKey, 0, len(b.Strata))
	for k := range b.Strata {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}
