package output

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseFormat(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    Format
		wantErr bool
	}{
		{name: "table", input: "table", want: FormatTable},
		{name: "empty defaults to table", input: "", want: FormatTable},
		{name: "json", input: "json", want: FormatJSON},
		{name: "uppercase", input: "JSON", want: FormatJSON},
		{name: "yaml", input: "yaml", want: FormatYAML},
		{name: "yml alias", input: "yml", want: FormatYAML},
		{name: "whitespace trimmed", input: "  table  ", want: FormatTable},
		{name: "unknown", input: "xml", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseFormat(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

type artifactRow struct {
	Unit string `json:"unit" yaml:"unit"`
	Key  string `json:"key" yaml:"key"`
	Size int64  `json:"size" yaml:"size"`
}

func TestPrintJSON(t *testing.T) {
	rows := []artifactRow{
		{Unit: "qlearning", Key: "qtable", Size: 1048576},
		{Unit: "genetic", Key: "population", Size: 51200},
	}

	var buf bytes.Buffer
	require.NoError(t, PrintJSON(&buf, rows))

	out := buf.String()
	assert.Contains(t, out, `"unit": "qlearning"`)
	assert.Contains(t, out, `"key": "population"`)
	assert.Contains(t, out, `"size": 1048576`)
}

func TestPrintYAML(t *testing.T) {
	rows := []artifactRow{
		{Unit: "qlearning", Key: "qtable", Size: 42},
	}

	var buf bytes.Buffer
	require.NoError(t, PrintYAML(&buf, rows))

	out := buf.String()
	assert.Contains(t, out, "- unit: qlearning")
	assert.Contains(t, out, "key: qtable")
	assert.Contains(t, out, "size: 42")
}

func TestTableData(t *testing.T) {
	table := NewTableData("UNIT", "KEY", "SIZE")

	assert.Equal(t, []string{"UNIT", "KEY", "SIZE"}, table.Headers())
	assert.Empty(t, table.Rows())

	table.AddRow("qlearning", "qtable", "1048576")
	table.AddRow("genetic", "population", "51200")

	rows := table.Rows()
	require.Len(t, rows, 2)
	assert.Equal(t, []string{"qlearning", "qtable", "1048576"}, rows[0])
}

func TestPrintTable(t *testing.T) {
	table := NewTableData("Unit", "Key")
	table.AddRow("qlearning", "qtable")
	table.AddRow("genetic", "hyperparams")

	var buf bytes.Buffer
	require.NoError(t, PrintTable(&buf, table))

	out := buf.String()
	assert.Contains(t, out, "UNIT")
	assert.Contains(t, out, "KEY")
	assert.Contains(t, out, "qlearning")
	assert.Contains(t, out, "hyperparams")
}
