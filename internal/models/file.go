package models

import (
	"time"

	"github.com/lib/pq"
)

// File metadata types recognised by the library.
const (
	FileTypeImage    = "image"
	FileTypeVideo    = "video"
	FileTypeAudio    = "audio"
	FileTypeDocument = "document"
)

// File represents an uploaded media file in the library.
// OwnerName is a snapshot taken at creation time; it is not refreshed
// when the owning user is renamed.
type File struct {
	ID          string        `db:"id" json:"id"`
	Filename    string        `db:"filename" json:"filename"`
	URL         string        `db:"url" json:"url"`
	PublicID    string        `db:"public_id" json:"public_id"`
	DownloadURL string        `db:"download_url" json:"download_url"`
	Name        string        `db:"name" json:"name"`
	Description string        `db:"description" json:"description"`
	Classes     pq.Int64Array `db:"classes" json:"classes"`
	Type        string        `db:"type" json:"type"`
	Size        int64         `db:"size" json:"size"`
	CategoryID  *string       `db:"category_id" json:"category_id,omitempty"`
	OwnerID     string        `db:"owner_id" json:"owner_id"`
	OwnerName   string        `db:"owner_name" json:"owner_name"`
	CreatedAt   time.Time     `db:"created_at" json:"created_at"`
}

// FileFilter captures the listing constraints for files. All populated
// fields are AND-combined; Classes uses overlap semantics unless
// AllClasses requests the containment variant.
type FileFilter struct {
	Search     string
	Types      []string
	Classes    []int64
	AllClasses bool
	DateFrom   *time.Time
	DateTo     *time.Time
	Owner      string
	CategoryID string
	MinSize    *int64
	MaxSize    *int64
	Page       int
	Limit      int
	SortBy     string
	SortOrder  string
}

// IsUnconstrained reports whether the filter carries no predicate beyond
// paging, meaning a cached unfiltered listing may serve the request.
func (f FileFilter) IsUnconstrained() bool {
	return f.Search == "" &&
		len(f.Types) == 0 &&
		len(f.Classes) == 0 &&
		f.DateFrom == nil &&
		f.DateTo == nil &&
		f.Owner == "" &&
		f.CategoryID == "" &&
		f.MinSize == nil &&
		f.MaxSize == nil &&
		f.SortBy == "" &&
		f.SortOrder == ""
}
