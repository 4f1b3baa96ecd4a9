package helpers

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type row struct {
	Name    string    `header:"NAME" json:"name"`
	AvgTime float64   `header:"AVG TIME" json:"avg_time"`
	Count   int       `header:"COUNT" json:"count"`
	Seen    time.Time `json:"seen"`
}

var rows = []row{
	{Name: "WooCommerce", AvgTime: 120.456, Count: 3},
	{Name: "Akismet, Inc", AvgTime: 4, Count: 1},
}

func TestNewFormatter(t *testing.T) {
	for _, f := range []OutputFormat{FormatTable, FormatJSON, FormatCSV} {
		got, err := NewFormatter(f)
		require.NoError(t, err)
		assert.NotNil(t, got)
	}
	_, err := NewFormatter("yaml")
	assert.Error(t, err)
}

func TestTableFormatter(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, (&TableFormatter{}).Format(rows, &buf))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, []string{"NAME", "AVG", "TIME", "COUNT"}, strings.Fields(lines[0]))
	assert.Contains(t, lines[1], "120.46")
	assert.NotContains(t, buf.String(), "0001-01-01", "untagged fields are skipped")

	buf.Reset()
	require.NoError(t, (&TableFormatter{}).Format([]row{}, &buf))
	assert.Empty(t, buf.String())

	assert.Error(t, (&TableFormatter{}).Format(rows[0], &buf))
}

func TestCSVFormatter(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, (&CSVFormatter{}).Format([]*row{&rows[0], &rows[1]}, &buf))
	assert.Equal(t, "NAME,AVG TIME,COUNT\nWooCommerce,120.46,3\n\"Akismet, Inc\",4.00,1\n", buf.String())
}

func TestJSONFormatter(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, (&JSONFormatter{}).Format(rows, &buf))

	var got []map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &got))
	require.Len(t, got, 2)
	assert.Equal(t, "WooCommerce", got[0]["name"])
	assert.Contains(t, buf.String(), "\n  ", "output is indented")
}

func TestValidateFormat(t *testing.T) {
	supported := []OutputFormat{FormatTable, FormatJSON}
	assert.NoError(t, ValidateFormat("json", supported))
	err := ValidateFormat("csv", supported)
	assert.ErrorContains(t, err, "must be one of: table, json")

	assert.NoError(t, ValidatePositive("limit", 1))
	assert.ErrorContains(t, ValidatePositive("days", 0), "--days must be at least 1")
}
