// README: CSV table loading and writing for the analysis tool.
package analysis

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
)

type Table struct {
	Header []string
	Rows   [][]string
	index  map[string]int
}

// ReadTable loads a CSV file and checks that every required column exists.
func ReadTable(path string, required ...string) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	records, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("%w: %s is empty", ErrNoRows, path)
	}
	t := &Table{Header: records[0], Rows: records[1:], index: make(map[string]int)}
	for i, name := range t.Header {
		t.index[name] = i
	}
	for _, col := range required {
		if _, ok := t.index[col]; !ok {
			return nil, fmt.Errorf("%w: %s in %s", ErrMissingColumn, col, filepath.Base(path))
		}
	}
	return t, nil
}

// Value returns the cell at row/col, or "" if the row is short.
func (t *Table) Value(row int, col string) string {
	i, ok := t.index[col]
	if !ok || i >= len(t.Rows[row]) {
		return ""
	}
	return t.Rows[row][i]
}

func (t *Table) Float(row int, col string) (float64, bool) {
	v := t.Value(row, col)
	if v == "" {
		return 0, false
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, false
	}
	return f, true
}

func writeCSV(path string, header []string, rows [][]string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	w := csv.NewWriter(f)
	if err := w.Write(header); err != nil {
		_ = f.Close()
		return err
	}
	if err := w.WriteAll(rows); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

func fmtFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
