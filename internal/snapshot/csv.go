package snapshot

import (
	"bufio"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"

	"shopcrawl/internal/model"
	"shopcrawl/internal/state"
)

const idColumn = "id"

// Table is a tabular snapshot: a header and rows aligned to it.
type Table struct {
	Header []string
	Rows   [][]string
}

func (t *Table) column(name string) int {
	for i, h := range t.Header {
		if h == name {
			return i
		}
	}
	return -1
}

// addColumns appends header entries not yet present and pads every row.
func (t *Table) addColumns(cols []string) {
	for _, c := range cols {
		if t.column(c) < 0 {
			t.Header = append(t.Header, c)
		}
	}
	for i, row := range t.Rows {
		for len(row) < len(t.Header) {
			row = append(row, "")
		}
		t.Rows[i] = row
	}
}

// appendRecord projects r onto the table header.
func (t *Table) appendRecord(r model.Record) {
	src := r.Row()
	row := make([]string, len(t.Header))
	for i, h := range t.Header {
		row[i] = src[h]
	}
	t.Rows = append(t.Rows, row)
}

// ReadTable loads a CSV snapshot, skipping a UTF-8 BOM if present.
// exists is false when path does not exist.
func ReadTable(path string) (tbl *Table, exists bool, err error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, false, nil
		}
		return nil, false, &PersistenceError{Path: path, Op: "read", Err: err}
	}
	defer f.Close()

	br := bufio.NewReader(f)
	if first3, _ := br.Peek(3); len(first3) == 3 && first3[0] == 0xEF && first3[1] == 0xBB && first3[2] == 0xBF {
		_, _ = br.Discard(3)
	}
	r := csv.NewReader(br)
	r.FieldsPerRecord = -1

	header, err := r.Read()
	if err != nil {
		return nil, true, &PersistenceError{Path: path, Op: "decode", Err: fmt.Errorf("header: %w", err)}
	}
	tbl = &Table{Header: header}
	if tbl.column(idColumn) < 0 {
		return nil, true, &PersistenceError{Path: path, Op: "decode", Err: errors.New("missing id column")}
	}
	for {
		row, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, true, &PersistenceError{Path: path, Op: "decode", Err: err}
		}
		if len(row) > len(header) {
			line, _ := r.FieldPos(0)
			return nil, true, &PersistenceError{Path: path, Op: "decode", Err: fmt.Errorf("line %d: expected %d fields, saw %d", line, len(header), len(row))}
		}
		tbl.Rows = append(tbl.Rows, row)
	}
	tbl.addColumns(nil)
	return tbl, true, nil
}

// WriteTable replaces path with tbl.
func WriteTable(path string, tbl *Table) error {
	err := writeFileAtomic(path, func(w io.Writer) error {
		cw := csv.NewWriter(w)
		if err := cw.Write(tbl.Header); err != nil {
			return err
		}
		if err := cw.WriteAll(tbl.Rows); err != nil {
			return err
		}
		return cw.Error()
	})
	if err != nil {
		return &PersistenceError{Path: path, Op: "write", Err: err}
	}
	return nil
}

// MergeCSV concatenates the existing rows with the projection of recs,
// keeps the first row per id and rewrites path.
func MergeCSV(recs []model.Record, path string) (FormatResult, error) {
	tbl, _, err := ReadTable(path)
	if err != nil {
		return FormatResult{}, err
	}
	if tbl == nil {
		tbl = &Table{}
	}
	before := len(tbl.Rows)
	tbl.addColumns(model.Columns(model.AnyEnriched(recs)))
	for _, r := range recs {
		tbl.appendRecord(r)
	}
	dedupByID(tbl)

	if err := WriteTable(path, tbl); err != nil {
		return FormatResult{}, err
	}
	return FormatResult{Existing: before, Appended: len(tbl.Rows) - before, Total: len(tbl.Rows)}, nil
}

// WriteRecordsCSV replaces path with the tabular projection of recs.
func WriteRecordsCSV(path string, recs []model.Record) error {
	tbl := &Table{Header: model.Columns(model.AnyEnriched(recs))}
	for _, r := range recs {
		tbl.appendRecord(r)
	}
	dedupByID(tbl)
	return WriteTable(path, tbl)
}

func dedupByID(tbl *Table) {
	idx := tbl.column(idColumn)
	seen := state.NewInMemoryStore()
	kept := tbl.Rows[:0]
	for _, row := range tbl.Rows {
		if ok, _ := seen.Add(row[idx], nil); ok {
			kept = append(kept, row)
		}
	}
	tbl.Rows = kept
}
