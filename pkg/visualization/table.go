// Package visualization renders cached protocol results as terminal tables
// for quick inspection. It performs no plotting; it is a thin view over the
// flat result tables.
package visualization

import (
	"io"
	"os"
	"strconv"

	"github.com/olekukonko/tablewriter"

	"github.com/actigraph/BioPsyKit/pkg/studydata"
)

// Table is a model for data.
type Table struct {
	headers []string
	data    [][]string
}

// NewTable creates a new model of data representation.
func NewTable(headers []string, data [][]string) *Table {
	return &Table{
		headers,
		data,
	}
}

// NewResultTable converts a flat result table into its view model: index
// level names and column names become headers, values are formatted with
// the given precision.
func NewResultTable(result *studydata.Table, precision int) *Table {
	headers := append(append([]string{}, result.IndexNames()...), result.Columns()...)
	data := make([][]string, 0, result.NumRows())
	for i := 0; i < result.NumRows(); i++ {
		index, values := result.Row(i)
		row := append([]string{}, index...)
		for _, v := range values {
			row = append(row, strconv.FormatFloat(v, 'f', precision, 64))
		}
		data = append(data, row)
	}
	return NewTable(headers, data)
}

// Draw renders the table to standard output.
func (t *Table) Draw() {
	t.Fprint(os.Stdout)
}

// Fprint renders the table to the given writer.
func (t *Table) Fprint(w io.Writer) {
	output := tablewriter.NewWriter(w)
	output.SetHeader(t.headers)
	for _, v := range t.data {
		output.Append(v)
	}
	output.Render()
}
