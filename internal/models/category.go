package models

import "time"

// Category is a user-creatable taxonomy node scoped under a fixed root path.
type Category struct {
	ID          string    `db:"id" json:"id"`
	Name        string    `db:"name" json:"name"`
	Description string    `db:"description" json:"description"`
	RootPath    string    `db:"root_path" json:"root_path"`
	Slug        string    `db:"slug" json:"slug"`
	OwnerID     string    `db:"owner_id" json:"owner_id"`
	OwnerName   string    `db:"owner_name" json:"owner_name"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
}

// CategoryFilter captures listing constraints for categories.
type CategoryFilter struct {
	Search   string
	RootPath string
	Page     int
	Limit    int
}
