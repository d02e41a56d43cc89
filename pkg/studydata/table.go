package studydata

import (
	"encoding/csv"
	"io"
	"strconv"
	"strings"

	"github.com/pkg/errors"

	"github.com/actigraph/BioPsyKit/pkg/series"
	"github.com/actigraph/BioPsyKit/pkg/validation"
)

// Table is a flat result table: rows of float64 values addressed by a
// multi-level string index. It is the output type of the per-subject mean
// reduction and of the HRV computation.
type Table struct {
	indexNames []string
	index      [][]string
	columns    []string
	values     [][]float64
}

// NewTable creates an empty table with the given index level names and
// value columns.
func NewTable(indexNames, columns []string) *Table {
	return &Table{
		indexNames: append([]string(nil), indexNames...),
		columns:    append([]string(nil), columns...),
	}
}

// IndexNames returns the index level names, outermost first.
func (t *Table) IndexNames() []string {
	return t.indexNames
}

// Columns returns the value column names.
func (t *Table) Columns() []string {
	return t.columns
}

// NumRows returns the number of data rows.
func (t *Table) NumRows() int {
	return len(t.values)
}

// Row returns the index entries and values of row i.
func (t *Table) Row(i int) (index []string, values []float64) {
	return t.index[i], t.values[i]
}

// AppendRow adds one row. Index and value lengths must match the table
// definition.
func (t *Table) AppendRow(index []string, values []float64) error {
	if len(index) != len(t.indexNames) {
		return validation.NewValidationError(
			"row index %v has %d entries, table declares %d levels %v",
			index, len(index), len(t.indexNames), t.indexNames)
	}
	if len(values) != len(t.columns) {
		return validation.NewValidationError(
			"row has %d values, table declares %d columns %v", len(values), len(t.columns), t.columns)
	}
	t.index = append(t.index, append([]string(nil), index...))
	t.values = append(t.values, append([]float64(nil), values...))
	return nil
}

// Copy returns a deep copy of the table.
func (t *Table) Copy() *Table {
	out := NewTable(t.indexNames, t.columns)
	for i := range t.values {
		out.index = append(out.index, append([]string(nil), t.index[i]...))
		out.values = append(out.values, append([]float64(nil), t.values[i]...))
	}
	return out
}

// DropInnermostLevel removes the innermost index level from every row.
func (t *Table) DropInnermostLevel() (*Table, error) {
	if len(t.indexNames) < 2 {
		return nil, validation.NewConfigurationError(
			"cannot drop innermost level of a table with %d index levels", len(t.indexNames))
	}
	out := NewTable(t.indexNames[:len(t.indexNames)-1], t.columns)
	for i := range t.values {
		row := t.index[i][:len(t.index[i])-1]
		if err := out.AppendRow(row, t.values[i]); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// Concat concatenates keyed sibling tables under a new outermost index
// level. All tables must agree on columns and index levels.
func Concat(levelName string, keys []string, tables map[string]*Table) (*Table, error) {
	if len(keys) == 0 {
		return nil, validation.NewValidationError("nothing to concatenate under level %q", levelName)
	}
	first := tables[keys[0]]
	out := NewTable(append([]string{levelName}, first.indexNames...), first.columns)
	for _, key := range keys {
		table, ok := tables[key]
		if !ok {
			return nil, validation.NewValidationError("no table for key %q", key)
		}
		if strings.Join(table.columns, ",") != strings.Join(first.columns, ",") {
			return nil, validation.NewValidationError(
				"table for key %q has columns %v, expected %v", key, table.columns, first.columns)
		}
		for i := range table.values {
			row := append([]string{key}, table.index[i]...)
			if err := out.AppendRow(row, table.values[i]); err != nil {
				return nil, err
			}
		}
	}
	return out, nil
}

// MeanSEPerPhase reduces a per-subject result table to mean and standard
// error over subjects, grouped by all remaining index levels in order of
// first appearance. The table must have exactly one value column.
func MeanSEPerPhase(t *Table) (*Table, error) {
	if len(t.columns) != 1 {
		return nil, errors.Errorf(
			"ambiguous column selection: table has %d value columns, expected exactly one", len(t.columns))
	}
	subjectLevel := -1
	for i, name := range t.indexNames {
		if name == LevelSubject {
			subjectLevel = i
		}
	}
	if subjectLevel == -1 {
		return nil, validation.NewConfigurationError(
			"table has no %q index level (levels: %v)", LevelSubject, t.indexNames)
	}

	groupNames := make([]string, 0, len(t.indexNames)-1)
	for i, name := range t.indexNames {
		if i != subjectLevel {
			groupNames = append(groupNames, name)
		}
	}

	order := []string{}
	groups := map[string][]float64{}
	groupIndex := map[string][]string{}
	for i := range t.values {
		key := make([]string, 0, len(groupNames))
		for j, entry := range t.index[i] {
			if j != subjectLevel {
				key = append(key, entry)
			}
		}
		joined := strings.Join(key, "\x00")
		if _, ok := groups[joined]; !ok {
			order = append(order, joined)
			groupIndex[joined] = key
		}
		groups[joined] = append(groups[joined], t.values[i][0])
	}

	out := NewTable(groupNames, []string{"mean", "se"})
	for _, joined := range order {
		mean, se, err := series.MeanSE(groups[joined])
		if err != nil {
			return nil, errors.Wrapf(err, "mean/se reduction failed for %v", groupIndex[joined])
		}
		if err := out.AppendRow(groupIndex[joined], []float64{mean, se}); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// WriteCSV writes the table with a header of index level names followed by
// column names.
func (t *Table) WriteCSV(w io.Writer) error {
	writer := csv.NewWriter(w)
	header := append(append([]string(nil), t.indexNames...), t.columns...)
	if err := writer.Write(header); err != nil {
		return errors.Wrap(err, "writing csv header failed")
	}
	for i := range t.values {
		record := append([]string(nil), t.index[i]...)
		for _, v := range t.values[i] {
			record = append(record, strconv.FormatFloat(v, 'f', -1, 64))
		}
		if err := writer.Write(record); err != nil {
			return errors.Wrapf(err, "writing csv row %d failed", i)
		}
	}
	writer.Flush()
	return errors.Wrap(writer.Error(), "flushing csv failed")
}
