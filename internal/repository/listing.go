package repository

import (
	"fmt"
	"strings"

	"github.com/eduvault/eduvault-api/internal/models"
)

// Shared query-building helpers for list endpoints. Every resource
// listing composes the same way: a WHERE clause built from positional
// args, a whitelisted ORDER BY and clamped LIMIT/OFFSET, with the page
// and count queries sharing one predicate.

// pageBounds clamps paging input and returns (limit, offset).
func pageBounds(page, limit int) (int, int) {
	page = models.ClampPage(page)
	limit = models.ClampLimit(limit)
	return limit, (page - 1) * limit
}

// orderClause resolves a sort request against a column whitelist,
// falling back to created_at DESC.
func orderClause(sortBy, sortOrder string, allowed map[string]string) string {
	column, ok := allowed[sortBy]
	if !ok {
		column = allowed["created_at"]
	}
	order := strings.ToUpper(sortOrder)
	if order != "ASC" && order != "DESC" {
		order = "DESC"
	}
	return fmt.Sprintf("%s %s", column, order)
}

// likePattern lowers and wraps a search term for LIKE matching.
func likePattern(term string) string {
	return "%" + strings.ToLower(term) + "%"
}
