package output

import (
	"io"

	"github.com/olekukonko/tablewriter"
)

// TableData accumulates rows for a borderless aligned table.
type TableData struct {
	headers []string
	rows    [][]string
}

// NewTableData creates an empty table with the given column headers.
func NewTableData(headers ...string) *TableData {
	return &TableData{headers: headers}
}

// AddRow appends one row. Rows render in insertion order.
func (t *TableData) AddRow(cells ...string) {
	t.rows = append(t.rows, cells)
}

// Headers returns the column headers.
func (t *TableData) Headers() []string {
	return t.headers
}

// Rows returns the accumulated rows.
func (t *TableData) Rows() [][]string {
	return t.rows
}

// PrintTable renders t without borders or separators, columns left-aligned
// and padded with two spaces, headers uppercased.
func PrintTable(w io.Writer, t *TableData) error {
	table := tablewriter.NewWriter(w)
	table.SetHeader(t.headers)

	table.SetAutoWrapText(false)
	table.SetAutoFormatHeaders(true)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetCenterSeparator("")
	table.SetColumnSeparator("")
	table.SetRowSeparator("")
	table.SetHeaderLine(false)
	table.SetBorder(false)
	table.SetTablePadding("  ")
	table.SetNoWhiteSpace(true)

	for _, row := range t.rows {
		table.Append(row)
	}

	table.Render()
	return nil
}
