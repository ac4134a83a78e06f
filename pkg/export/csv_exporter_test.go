package export

import (
	"bytes"
	"encoding/csv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCSVExporterRender(t *testing.T) {
	exporter := NewCSVExporter()

	data := Dataset{
		Headers: []string{"ID", "Name", "Size"},
		Rows: []map[string]string{
			{"ID": "f1", "Name": "Slides, part 1", "Size": "100"},
			{"ID": "f2", "Name": "Notes"},
		},
	}

	out, err := exporter.Render(data)
	require.NoError(t, err)

	records, err := csv.NewReader(bytes.NewReader(out)).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, []string{"ID", "Name", "Size"}, records[0])
	// quoted commas survive the round trip
	assert.Equal(t, "Slides, part 1", records[1][1])
	// missing cells render empty, not shifted
	assert.Equal(t, []string{"f2", "Notes", ""}, records[2])
}

func TestCSVExporterRequiresHeaders(t *testing.T) {
	_, err := NewCSVExporter().Render(Dataset{})
	require.Error(t, err)
}

func TestPDFExporterRender(t *testing.T) {
	exporter := NewPDFExporter()

	data := Dataset{
		Headers: []string{"ID", "Name"},
		Rows:    []map[string]string{{"ID": "f1", "Name": "Slides"}},
	}

	out, err := exporter.Render(data, "Catalog Export")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(out), "%PDF"))
	assert.Greater(t, len(out), 500)
}

func TestPDFExporterRequiresHeaders(t *testing.T) {
	_, err := NewPDFExporter().Render(Dataset{}, "")
	require.Error(t, err)
}
