package models

import "time"

// Export formats and lifecycle states.
const (
	ExportFormatCSV = "csv"
	ExportFormatPDF = "pdf"

	ExportStatusPending   = "PENDING"
	ExportStatusRunning   = "RUNNING"
	ExportStatusCompleted = "COMPLETED"
	ExportStatusFailed    = "FAILED"
)

// ExportJob tracks an asynchronous catalog export request.
type ExportJob struct {
	ID          string     `db:"id" json:"id"`
	RequestedBy string     `db:"requested_by" json:"requested_by"`
	Format      string     `db:"format" json:"format"`
	Status      string     `db:"status" json:"status"`
	FilePath    string     `db:"file_path" json:"-"`
	Error       string     `db:"error" json:"error,omitempty"`
	CreatedAt   time.Time  `db:"created_at" json:"created_at"`
	CompletedAt *time.Time `db:"completed_at" json:"completed_at,omitempty"`
}
