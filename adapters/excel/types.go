package excel

// Column headers of the assignment log. The legacy layout carried only
// Subject ID, Strata and Group; the reader accepts both.
const (
	ColRecordID   = "Record ID"
	ColSubjectID  = "Subject ID"
	ColName       = "Name"
	ColAge        = "Age"
	ColGender     = "Gender"
	ColStrata     = "Strata"
	ColGroup      = "Group"
	ColAssignedAt = "Assigned At"
)

// Headers is the column order written by this package
var Headers = []string{ColRecordID, ColSubjectID, ColName, ColAge, ColGender, ColStrata, ColGroup, ColAssignedAt}

// LegacyHeaders is the three-column layout of older logs
var LegacyHeaders = []string{ColSubjectID, ColStrata, ColGroup}

// RawRowData represents a row of raw data as header/value pairs
type RawRowData map[string]string

// SheetData represents a complete tabular file
type SheetData struct {
	Headers []string     // Column headers
	Rows    []RawRowData // Data rows
}
