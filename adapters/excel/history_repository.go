package excel

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"sync"

	"blockrand/domain/allocation"
)

// FileHistoryRepository keeps the assignment log as an append-only CSV file
// and mirrors it into a spreadsheet. It implements ports.HistoryRepository
// and ports.HistoryExporter.
type FileHistoryRepository struct {
	mu     sync.Mutex
	config FileConfig
}

// NewFileHistoryRepository creates a repository over the configured files
func NewFileHistoryRepository(config FileConfig) *FileHistoryRepository {
	if config.SheetName == "" {
		config.SheetName = DefaultFileConfig().SheetName
	}
	return &FileHistoryRepository{config: config}
}

// Load reads the CSV log. When only the spreadsheet mirror survives it is
// read instead; when neither exists the history is empty.
func (r *FileHistoryRepository) Load(ctx context.Context) ([]allocation.AssignmentRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	var reader *DataReader
	switch {
	case fileExists(r.config.CSVPath):
		reader = NewDataReader(r.config.CSVPath)
	case fileExists(r.config.XLSXPath):
		log.Printf("[FileHistory] %s missing, recovering history from %s", r.config.CSVPath, r.config.XLSXPath)
		reader = NewDataReader(r.config.XLSXPath).WithSheet(r.config.SheetName)
	default:
		log.Printf("[FileHistory] no existing log at %s, starting empty", r.config.CSVPath)
		return []allocation.AssignmentRecord{}, nil
	}

	records, err := reader.ReadRecords()
	if err != nil {
		return nil, fmt.Errorf("failed to load assignment history: %w", err)
	}
	log.Printf("[FileHistory] loaded %d assignment records", len(records))
	return records, nil
}

// Append adds one record to the CSV log
func (r *FileHistoryRepository) Append(ctx context.Context, record allocation.AssignmentRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.config.CSVPath == "" {
		return errors.New("no CSV log path configured")
	}
	return AppendCSV(r.config.CSVPath, record)
}

// Export rewrites the spreadsheet mirror from the full history. It is a
// no-op when no spreadsheet path is configured.
func (r *FileHistoryRepository) Export(ctx context.Context, records []allocation.AssignmentRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if r.config.XLSXPath == "" {
		return nil
	}
	return WriteXLSX(r.config.XLSXPath, r.config.SheetName, records)
}

func fileExists(path string) bool {
	if path == "" {
		return false
	}
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
