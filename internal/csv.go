package internal

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
)

// EncodeCSV writes records as CSV with a header row of columns.
// Missing keys are written as empty cells.
func EncodeCSV(w io.Writer, columns []string, records []map[string]string) error {
	if len(columns) == 0 {
		return errors.New("at least one column is required")
	}

	cw := csv.NewWriter(w)
	if err := cw.Write(columns); err != nil {
		return err
	}

	row := make([]string, len(columns))
	for i, record := range records {
		for j, col := range columns {
			row[j] = record[col]
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("record %d: %w", i, err)
		}
	}

	cw.Flush()
	return cw.Error()
}

// DecodeCSV reads a CSV document whose first row is the header and returns
// one map per data row keyed by column name.
func DecodeCSV(data []byte) ([]map[string]string, error) {
	records := []map[string]string{}
	if len(bytes.TrimSpace(data)) == 0 {
		return records, nil
	}

	cr := csv.NewReader(bytes.NewReader(data))
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if err != nil {
		return nil, err
	}

	for line := 2; ; line++ {
		row, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		if len(row) > len(header) {
			return nil, fmt.Errorf("line %d: %d fields for %d columns", line, len(row), len(header))
		}

		record := make(map[string]string, len(header))
		for i, col := range header {
			if i < len(row) {
				record[col] = row[i]
			} else {
				record[col] = ""
			}
		}
		records = append(records, record)
	}

	return records, nil
}
