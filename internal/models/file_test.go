package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestFileFilterIsUnconstrained(t *testing.T) {
	assert.True(t, FileFilter{}.IsUnconstrained())
	assert.True(t, FileFilter{Page: 3, Limit: 50}.IsUnconstrained())

	now := time.Now()
	size := int64(1024)
	constrained := []FileFilter{
		{Search: "algebra"},
		{Types: []string{"video"}},
		{Classes: []int64{7}},
		{DateFrom: &now},
		{DateTo: &now},
		{Owner: "smith"},
		{CategoryID: "cat-1"},
		{MinSize: &size},
		{MaxSize: &size},
		{SortBy: "name"},
		{SortOrder: "asc"},
	}
	for i, f := range constrained {
		assert.False(t, f.IsUnconstrained(), "case %d", i)
	}
}
