// Package reader parses uploaded spreadsheets into an in-memory
// SourceDocument: a header row plus untyped data rows.
package reader

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/rpattn/sheetimport/internal/domain"

	"github.com/xuri/excelize/v2"
)

var byteOrderMark = []byte{0xEF, 0xBB, 0xBF}

// Read parses raw spreadsheet bytes. The format is picked from the file
// extension (.csv or .xlsx). The first row becomes the header row; every
// following row is data. Ragged rows are padded with nil cells rather
// than rejected.
func Read(fileName string, payload []byte) (domain.SourceDocument, error) {
	ext := strings.ToLower(filepath.Ext(fileName))
	var (
		records [][]string
		err     error
	)
	switch ext {
	case ".csv":
		records, err = readCSV(payload)
	case ".xlsx":
		records, err = readExcel(payload)
	default:
		return domain.SourceDocument{}, fmt.Errorf("%w: unsupported extension %q", domain.ErrMalformedInput, ext)
	}
	if err != nil {
		return domain.SourceDocument{}, err
	}

	return buildDocument(records)
}

func readCSV(payload []byte) ([][]string, error) {
	buffered := bufio.NewReader(bytes.NewReader(payload))
	if prefix, err := buffered.Peek(len(byteOrderMark)); err == nil && bytes.Equal(prefix, byteOrderMark) {
		_, _ = buffered.Discard(len(byteOrderMark))
	}

	csvReader := csv.NewReader(buffered)
	csvReader.TrimLeadingSpace = true
	csvReader.FieldsPerRecord = -1

	records, err := csvReader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("%w: read csv: %v", domain.ErrMalformedInput, err)
	}
	return records, nil
}

func readExcel(payload []byte) ([][]string, error) {
	f, err := excelize.OpenReader(bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("%w: open xlsx: %v", domain.ErrMalformedInput, err)
	}
	defer func() { _ = f.Close() }()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("%w: xlsx has no sheets", domain.ErrMalformedInput)
	}

	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("%w: read xlsx rows: %v", domain.ErrMalformedInput, err)
	}
	return rows, nil
}

func buildDocument(records [][]string) (domain.SourceDocument, error) {
	var headers []string
	var rows [][]any

	for _, record := range records {
		if isEmptyRow(record) {
			continue
		}
		if headers == nil {
			headers = make([]string, len(record))
			for i, cell := range record {
				headers[i] = strings.TrimSpace(cell)
			}
			continue
		}
		rows = append(rows, padCells(record, len(headers)))
	}

	if headers == nil || len(rows) == 0 {
		return domain.SourceDocument{}, domain.ErrEmptyInput
	}

	return domain.SourceDocument{Headers: headers, Rows: rows}, nil
}

// padCells converts one raw record into a fixed-width row. Missing
// trailing cells and blank cells become nil.
func padCells(record []string, width int) []any {
	cells := make([]any, width)
	for i := 0; i < width; i++ {
		if i >= len(record) {
			continue
		}
		value := strings.TrimSpace(record[i])
		if value == "" {
			continue
		}
		cells[i] = value
	}
	return cells
}

func isEmptyRow(record []string) bool {
	for _, cell := range record {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}
