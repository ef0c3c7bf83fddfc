package opendata

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"
)

// rawTable is a CSV file held in memory with its header indexed by
// upper-cased column name.
type rawTable struct {
	name    string
	names   []string
	columns map[string]int
	rows    [][]string
}

// has reports whether any of the given column names exists.
func (t *rawTable) has(names ...string) bool {
	for _, n := range names {
		if _, ok := t.columns[n]; ok {
			return true
		}
	}
	return false
}

// value returns the trimmed value of the first of names present in the
// header, "" when none is present or the row is short.
func (t *rawTable) value(row []string, names ...string) string {
	for _, n := range names {
		idx, ok := t.columns[n]
		if !ok {
			continue
		}
		if idx >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[idx])
	}
	return ""
}

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// readTable loads a ;-separated CSV file. The files are published in cp1250;
// files that are already valid UTF-8 are taken as is.
func readTable(name, path string) (*rawTable, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}

	var reader io.Reader
	if utf8.Valid(content) {
		reader = bytes.NewReader(bytes.TrimPrefix(content, utf8BOM))
	} else {
		reader = charmap.Windows1250.NewDecoder().Reader(bytes.NewReader(content))
	}

	return parseTable(name, reader)
}

func parseTable(name string, r io.Reader) (*rawTable, error) {
	csvReader := csv.NewReader(r)
	csvReader.Comma = ';'
	csvReader.LazyQuotes = true
	csvReader.FieldsPerRecord = -1

	header, err := csvReader.Read()
	if err == io.EOF {
		return nil, fmt.Errorf("%s: empty file", name)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: failed to read header: %w", name, err)
	}

	t := &rawTable{name: name, names: make([]string, len(header)), columns: make(map[string]int, len(header))}
	for i, col := range header {
		col = strings.ToUpper(strings.TrimSpace(col))
		t.names[i] = col
		if _, dup := t.columns[col]; !dup {
			t.columns[col] = i
		}
	}

	for {
		record, err := csvReader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%s: %w", name, err)
		}
		t.rows = append(t.rows, record)
	}

	return t, nil
}
