package ports

import (
	"context"

	"blockrand/domain/allocation"
)

// HistoryRepository is the durable, append-only store of assignment records
type HistoryRepository interface {
	// Load returns every persisted record in chronological order. A store
	// that has never been written returns an empty slice.
	Load(ctx context.Context) ([]allocation.AssignmentRecord, error)

	// Append persists one record after the ones already stored
	Append(ctx context.Context, record allocation.AssignmentRecord) error
}

// HistoryExporter writes a full snapshot of the history in a secondary
// format, such as the spreadsheet mirror
type HistoryExporter interface {
	Export(ctx context.Context, records []allocation.AssignmentRecord) error
}
