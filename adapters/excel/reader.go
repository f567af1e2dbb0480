package excel

import (
	"encoding/csv"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"blockrand/domain/allocation"
	"blockrand/domain/core"

	"github.com/google/uuid"
	"github.com/xuri/excelize/v2"
)

// legacyNamespace derives stable record IDs for rows written before records
// carried their own ID
var legacyNamespace = uuid.MustParse("6f1c0b8e-4d7a-4f57-9a43-2f0f5b8d1c21")

// DataReader handles reading the assignment log from CSV or Excel files
type DataReader struct {
	filePath  string
	fileType  string // "xlsx" or "csv"
	sheetName string
}

// NewDataReader creates a reader; the file type follows the extension
func NewDataReader(filePath string) *DataReader {
	ext := strings.ToLower(filepath.Ext(filePath))
	fileType := "xlsx"
	if ext == ".csv" {
		fileType = "csv"
	}
	return &DataReader{filePath: filePath, fileType: fileType}
}

// WithSheet selects the worksheet for Excel files; the first sheet is used otherwise
func (r *DataReader) WithSheet(name string) *DataReader {
	r.sheetName = name
	return r
}

// ReadData reads the file into header-keyed rows
func (r *DataReader) ReadData() (*SheetData, error) {
	if _, err := os.Stat(r.filePath); err != nil {
		return nil, fmt.Errorf("%s file not accessible: %w", strings.ToUpper(r.fileType), err)
	}

	var (
		rows [][]string
		err  error
	)
	start := time.Now()
	switch r.fileType {
	case "csv":
		rows, err = r.readCSVRows()
	case "xlsx":
		rows, err = r.readExcelRows()
	default:
		return nil, fmt.Errorf("unsupported file type: %s", r.fileType)
	}
	if err != nil {
		return nil, err
	}
	log.Printf("[DataReader] %s read in %.2fms (%d rows)", r.filePath, float64(time.Since(start).Nanoseconds())/1e6, len(rows))

	return processRows(rows), nil
}

func (r *DataReader) readExcelRows() ([][]string, error) {
	f, err := excelize.OpenFile(r.filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open Excel file: %w", err)
	}
	defer f.Close()

	sheet := r.sheetName
	if sheet == "" {
		sheets := f.GetSheetList()
		if len(sheets) == 0 {
			return nil, fmt.Errorf("Excel file %s has no sheets", r.filePath)
		}
		sheet = sheets[0]
	}
	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", sheet, err)
	}
	return rows, nil
}

func (r *DataReader) readCSVRows() ([][]string, error) {
	file, err := os.Open(r.filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open CSV file: %w", err)
	}
	defer file.Close()

	reader := csv.NewReader(file)
	reader.FieldsPerRecord = -1
	rows, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to read CSV file: %w", err)
	}
	return rows, nil
}

// processRows converts raw string rows into SheetData, skipping blank lines
func processRows(rows [][]string) *SheetData {
	data := &SheetData{}
	if len(rows) == 0 {
		return data
	}

	data.Headers = make([]string, len(rows[0]))
	for i, header := range rows[0] {
		data.Headers[i] = strings.TrimSpace(strings.TrimPrefix(header, "\ufeff"))
	}

	for _, row := range rows[1:] {
		rowData := make(RawRowData)
		empty := true
		for j, cell := range row {
			if j < len(data.Headers) {
				v := strings.TrimSpace(cell)
				rowData[data.Headers[j]] = v
				if v != "" {
					empty = false
				}
			}
		}
		if !empty {
			data.Rows = append(data.Rows, rowData)
		}
	}
	return data
}

// ReadRecords reads the file and decodes every row into an assignment record
func (r *DataReader) ReadRecords() ([]allocation.AssignmentRecord, error) {
	data, err := r.ReadData()
	if err != nil {
		return nil, err
	}
	return DecodeRecords(data)
}

// DecodeRecords maps rows in either the current or the legacy layout to
// records, preserving row order
func DecodeRecords(data *SheetData) ([]allocation.AssignmentRecord, error) {
	if len(data.Headers) == 0 {
		return nil, nil
	}
	present := make(map[string]bool, len(data.Headers))
	for _, h := range data.Headers {
		present[strings.ToLower(h)] = true
	}
	for _, required := range LegacyHeaders {
		if !present[strings.ToLower(required)] {
			return nil, fmt.Errorf("missing required column %q", required)
		}
	}

	records := make([]allocation.AssignmentRecord, 0, len(data.Rows))
	for i, row := range data.Rows {
		rec, err := decodeRow(normalizeRow(row), i)
		if err != nil {
			// header is line 1
			return nil, fmt.Errorf("line %d: %w", i+2, err)
		}
		records = append(records, rec)
	}
	return records, nil
}

func normalizeRow(row RawRowData) RawRowData {
	out := make(RawRowData, len(row))
	for k, v := range row {
		for _, h := range Headers {
			if strings.EqualFold(k, h) {
				k = h
				break
			}
		}
		out[k] = v
	}
	return out
}

func decodeRow(row RawRowData, index int) (allocation.AssignmentRecord, error) {
	var rec allocation.AssignmentRecord

	subjectID, err := core.ParseSubjectID(row[ColSubjectID])
	if err != nil {
		return rec, err
	}
	group, err := allocation.ParseGroup(row[ColGroup])
	if err != nil {
		return rec, err
	}
	if row[ColStrata] == "" {
		return rec, core.NewInvalidInputError("strata", "empty")
	}
	key := allocation.NewStrataKey(allocation.StrataKey(row[ColStrata]).Levels()...)

	rec.SubjectID = subjectID
	rec.Name = row[ColName]
	rec.Key = key
	rec.Group = group

	if raw := row[ColRecordID]; raw != "" {
		if rec.ID, err = core.ParseRecordID(raw); err != nil {
			return rec, err
		}
	} else {
		rec.ID = legacyRecordID(index, subjectID, key, group)
	}

	if raw := row[ColAge]; raw != "" {
		age, err := strconv.Atoi(raw)
		if err != nil || age < 0 {
			return rec, core.NewInvalidInputError("age", fmt.Sprintf("%q is not a non-negative integer", raw))
		}
		rec.Age = age
	}

	genderRaw := row[ColGender]
	if genderRaw == "" {
		// legacy rows only carry the gender inside the strata key
		genderRaw = key.Levels()[0]
	}
	if rec.Gender, err = allocation.ParseGender(genderRaw); err != nil {
		return rec, err
	}

	if rec.AssignedAt, err = core.ParseTimestamp(row[ColAssignedAt]); err != nil {
		return rec, core.NewInvalidInputError("assigned at", err.Error())
	}
	return rec, nil
}

func legacyRecordID(index int, subject core.SubjectID, key allocation.StrataKey, group allocation.Group) core.RecordID {
	name := fmt.Sprintf("%d|%s|%s|%s", index, subject, key, group)
	return core.RecordID(uuid.NewSHA1(legacyNamespace, []byte(name)).String())
}
