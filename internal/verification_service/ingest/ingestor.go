// Package ingest extracts raw phone-number candidates from uploaded files.
// Candidates come out in source row order; filtering and deduplication happen
// later in normalization.
package ingest

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/veritel/golang_services/internal/verification_service/domain"
)

// Parse reads an uploaded file by its declared extension and returns the raw
// candidate values, one per source row. The extension is matched without a
// leading dot and case-insensitively.
func Parse(data []byte, ext string) ([]string, error) {
	switch strings.ToLower(strings.TrimPrefix(ext, ".")) {
	case "csv":
		return parseCSV(data)
	case "xlsx", "xls":
		return parseSpreadsheet(data)
	case "txt":
		return parseTXT(data), nil
	default:
		return nil, fmt.Errorf("%w: %q", domain.ErrUnsupportedFormat, ext)
	}
}

// parseCSV takes the first column of every row. No header row is assumed:
// uploads in the wild carry arbitrary or missing headers, so the first column
// is used regardless of its name.
func parseCSV(data []byte) ([]string, error) {
	reader := csv.NewReader(bytes.NewReader(data))
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	var candidates []string
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("reading csv: %w", err)
		}
		cell := ""
		if len(record) > 0 {
			cell = record[0]
		}
		candidates = append(candidates, ExpandScientific(cell))
	}
	return candidates, nil
}

// parseSpreadsheet reads the first sheet as an array of rows and takes the
// first column of each. The first row is discarded as a header only when its
// first cell is not numeric-parseable.
func parseSpreadsheet(data []byte) ([]string, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("opening spreadsheet: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, nil
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("reading sheet %q: %w", sheets[0], err)
	}

	var candidates []string
	for i, row := range rows {
		cell := ""
		if len(row) > 0 {
			cell = row[0]
		}
		if i == 0 && !IsNumericCell(cell) {
			continue
		}
		candidates = append(candidates, ExpandScientific(cell))
	}
	return candidates, nil
}

// parseTXT splits on CRLF/LF, one candidate per line. The first line is
// discarded as a header only when it is not numeric-parseable.
func parseTXT(data []byte) []string {
	lines := strings.Split(strings.ReplaceAll(string(data), "\r\n", "\n"), "\n")

	var candidates []string
	for i, line := range lines {
		if i == 0 && !IsNumericCell(line) {
			continue
		}
		candidates = append(candidates, ExpandScientific(line))
	}
	return candidates
}

// IsNumericCell reports whether a cell parses as a number, which is how data
// rows are told apart from header rows.
func IsNumericCell(s string) bool {
	_, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	return err == nil
}

// ExpandScientific re-expands values a spreadsheet auto-formatted into
// scientific notation (e.g. "9.19876543211E+11") back to a plain digit
// string. Anything that is not scientific notation passes through untouched.
func ExpandScientific(s string) string {
	trimmed := strings.TrimSpace(s)
	if !strings.ContainsAny(trimmed, "eE") {
		return s
	}
	f, err := strconv.ParseFloat(trimmed, 64)
	if err != nil {
		return s
	}
	return strconv.FormatFloat(f, 'f', -1, 64)
}
