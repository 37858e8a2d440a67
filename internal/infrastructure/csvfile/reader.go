package csvfile

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/simplifiedchinese"
	"golang.org/x/text/transform"

	domain "github.com/nvclab/student-sync/internal/domain/sync"
)

var ErrEmptyFile = errors.New("csv file has no data rows")

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// decode turns raw upload bytes into UTF-8 text. Exports from the upstream
// tool arrive either as UTF-8 (with or without BOM) or as GB18030/GBK.
func decode(raw []byte) (string, error) {
	raw = bytes.TrimPrefix(raw, utf8BOM)
	if utf8.Valid(raw) {
		return string(raw), nil
	}

	decoded, _, err := transform.Bytes(simplifiedchinese.GB18030.NewDecoder(), raw)
	if err != nil {
		return "", fmt.Errorf("undecodable file content: %w", err)
	}
	return string(decoded), nil
}

// ReadRows parses the uploaded CSV into rows keyed by header name. Cells are
// trimmed; empty cells and the textual null tokens spreadsheet exports leave
// behind are dropped, as are rows with no remaining cells.
func ReadRows(raw []byte) ([]domain.CsvRow, []string, error) {
	text, err := decode(raw)
	if err != nil {
		return nil, nil, err
	}

	reader := csv.NewReader(strings.NewReader(text))
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	records, err := reader.ReadAll()
	if err != nil {
		return nil, nil, fmt.Errorf("parse csv: %w", err)
	}
	if len(records) < 2 {
		return nil, nil, ErrEmptyFile
	}

	headers := make([]string, len(records[0]))
	for i, h := range records[0] {
		headers[i] = strings.TrimSpace(h)
	}

	rows := make([]domain.CsvRow, 0, len(records)-1)
	for _, record := range records[1:] {
		row := domain.CsvRow{}
		for i, cell := range record {
			if i >= len(headers) || headers[i] == "" {
				continue
			}
			value := strings.TrimSpace(cell)
			if value == "" || isNullToken(value) {
				continue
			}
			row[headers[i]] = value
		}
		if len(row) > 0 {
			rows = append(rows, row)
		}
	}
	if len(rows) == 0 {
		return nil, nil, ErrEmptyFile
	}

	return rows, headers, nil
}

// HeaderSignature identifies a header layout so remembered mapping choices
// can be suggested again for files with the same shape.
func HeaderSignature(headers []string) string {
	return strings.Join(headers, "|")
}

func isNullToken(value string) bool {
	switch strings.ToLower(value) {
	case "nan", "null", "none":
		return true
	}
	return false
}
