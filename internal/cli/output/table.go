package output

import (
	"io"
	"strconv"

	"github.com/olekukonko/tablewriter"
)

// TableRenderer is implemented by results that print as a table. Headers
// are upper-cased on output.
type TableRenderer interface {
	Headers() []string
	Rows() [][]string
}

// PrintTable writes data as borderless, left-aligned columns.
func PrintTable(w io.Writer, data TableRenderer) error {
	t := plainTable(w)
	t.SetHeader(data.Headers())
	t.SetAutoFormatHeaders(true)
	t.SetColumnSeparator("")
	t.AppendBulk(data.Rows())
	t.Render()
	return nil
}

// SimpleTable writes one "key: value" line per pair with aligned values.
func SimpleTable(w io.Writer, pairs [][2]string) error {
	t := plainTable(w)
	t.SetColumnSeparator(":")
	for _, kv := range pairs {
		t.Append(kv[:])
	}
	t.Render()
	return nil
}

// plainTable strips every border and separator line.
func plainTable(w io.Writer) *tablewriter.Table {
	t := tablewriter.NewWriter(w)
	t.SetBorder(false)
	t.SetHeaderLine(false)
	t.SetRowSeparator("")
	t.SetCenterSeparator("")
	t.SetAlignment(tablewriter.ALIGN_LEFT)
	t.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	t.SetAutoWrapText(false)
	t.SetNoWhiteSpace(true)
	t.SetTablePadding("  ")
	return t
}

// Float formats a distance or latency in its shortest exact form.
func Float(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

func Bool(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}

// Dash stands in for empty cells.
func Dash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
