package models

import (
	"time"

	"github.com/lib/pq"
)

// MaxLessonFiles caps the number of files attachable to a lesson.
const MaxLessonFiles = 10

// Lesson groups a set of files for a class. Files is a read-time
// projection resolved from FileIDs; it is never persisted.
type Lesson struct {
	ID          string         `db:"id" json:"id"`
	Title       string         `db:"title" json:"title"`
	Description string         `db:"description" json:"description"`
	ClassID     int            `db:"class_id" json:"class_id"`
	FileIDs     pq.StringArray `db:"file_ids" json:"file_ids"`
	OwnerID     string         `db:"owner_id" json:"owner_id"`
	OwnerName   string         `db:"owner_name" json:"owner_name"`
	CreatedAt   time.Time      `db:"created_at" json:"created_at"`

	Files []File `db:"-" json:"files,omitempty"`
}

// LessonFilter captures the listing constraints for lessons.
type LessonFilter struct {
	Search    string
	ClassID   *int
	DateFrom  *time.Time
	DateTo    *time.Time
	Owner     string
	Page      int
	Limit     int
	SortBy    string
	SortOrder string
}
