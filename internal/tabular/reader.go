// Package tabular parses delimited and spreadsheet input into
// header-keyed rows and infers a document total by column-name
// heuristics.
package tabular

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"strings"

	"github.com/xuri/excelize/v2"
)

// Row is one data row keyed by the header row.
type Row map[string]string

// ReadCSV parses delimited input. The first record is the header; short
// records are tolerated (missing cells read as empty).
func ReadCSV(r io.Reader) ([]Row, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("read csv header: %w", err)
	}

	var rows []Row
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read csv row: %w", err)
		}
		rows = append(rows, zip(header, rec))
	}
	return rows, nil
}

// ReadXLSX parses the first sheet of a workbook, first row as header.
func ReadXLSX(b []byte) ([]Row, error) {
	f, err := excelize.OpenReader(bytes.NewReader(b))
	if err != nil {
		return nil, fmt.Errorf("open xlsx: %w", err)
	}
	defer func() {
		_ = f.Close()
	}()

	sheet := f.GetSheetName(0)
	if sheet == "" {
		return nil, fmt.Errorf("xlsx has no sheets")
	}
	records, err := f.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("read xlsx rows: %w", err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("xlsx sheet %q is empty", sheet)
	}

	header := records[0]
	rows := make([]Row, 0, len(records)-1)
	for _, rec := range records[1:] {
		rows = append(rows, zip(header, rec))
	}
	return rows, nil
}

func zip(header, rec []string) Row {
	row := make(Row, len(header))
	for i, key := range header {
		key = strings.TrimSpace(key)
		if key == "" {
			continue
		}
		if i < len(rec) {
			row[key] = strings.TrimSpace(rec[i])
		} else {
			row[key] = ""
		}
	}
	return row
}
