package excel

// FileConfig holds the locations of the assignment log and its spreadsheet mirror
type FileConfig struct {
	CSVPath   string `json:"csv_path"`
	XLSXPath  string `json:"xlsx_path"`
	SheetName string `json:"sheet_name"`
}

// DefaultFileConfig returns the conventional assignments.csv / assignments.xlsx pair
func DefaultFileConfig() FileConfig {
	return FileConfig{
		CSVPath:   "assignments.csv",
		XLSXPath:  "assignments.xlsx",
		SheetName: "Sheet1",
	}
}
