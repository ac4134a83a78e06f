package models

import (
	"time"

	"github.com/lib/pq"
)

// Document is a rich-text literary reference entry.
type Document struct {
	ID          string        `db:"id" json:"id"`
	Title       string        `db:"title" json:"title"`
	Description string        `db:"description" json:"description"`
	Content     string        `db:"content" json:"content"`
	Classes     pq.Int64Array `db:"classes" json:"classes"`
	CategoryID  *string       `db:"category_id" json:"category_id,omitempty"`
	OwnerID     string        `db:"owner_id" json:"owner_id"`
	OwnerName   string        `db:"owner_name" json:"owner_name"`
	CreatedAt   time.Time     `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time     `db:"updated_at" json:"updated_at"`
}

// DocumentFilter captures the listing constraints for documents.
type DocumentFilter struct {
	Search     string
	Classes    []int64
	DateFrom   *time.Time
	DateTo     *time.Time
	Owner      string
	CategoryID string
	Page       int
	Limit      int
	SortBy     string
	SortOrder  string
}

// IsUnconstrained reports whether the filter is the no-op baseline.
func (f DocumentFilter) IsUnconstrained() bool {
	return f.Search == "" &&
		len(f.Classes) == 0 &&
		f.DateFrom == nil &&
		f.DateTo == nil &&
		f.Owner == "" &&
		f.CategoryID == "" &&
		f.SortBy == "" &&
		f.SortOrder == ""
}
