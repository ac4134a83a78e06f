package models

const (
	// DefaultPageLimit applies when the caller omits a page size.
	DefaultPageLimit = 20
	// MaxPageLimit caps the page size regardless of what was requested.
	MaxPageLimit = 100
)

// ClampPage normalises a requested page number to >= 1.
func ClampPage(page int) int {
	if page < 1 {
		return 1
	}
	return page
}

// ClampLimit normalises a requested page size into [1, MaxPageLimit].
func ClampLimit(limit int) int {
	if limit < 1 {
		return DefaultPageLimit
	}
	if limit > MaxPageLimit {
		return MaxPageLimit
	}
	return limit
}

// PageInfo contains pagination metadata returned in list responses.
type PageInfo struct {
	Total           int  `json:"total"`
	Page            int  `json:"page"`
	Limit           int  `json:"limit"`
	TotalPages      int  `json:"totalPages"`
	HasNextPage     bool `json:"hasNextPage"`
	HasPreviousPage bool `json:"hasPreviousPage"`
}

// NewPageInfo derives the pagination envelope for a result set.
// totalPages = ceil(total/limit); hasNextPage iff page < totalPages.
func NewPageInfo(total, page, limit int) *PageInfo {
	page = ClampPage(page)
	limit = ClampLimit(limit)
	totalPages := 0
	if total > 0 {
		totalPages = (total + limit - 1) / limit
	}
	return &PageInfo{
		Total:           total,
		Page:            page,
		Limit:           limit,
		TotalPages:      totalPages,
		HasNextPage:     page < totalPages,
		HasPreviousPage: page > 1,
	}
}
