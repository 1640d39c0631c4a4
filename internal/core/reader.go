package core

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"
)

var errMalformedFile = errors.New("invalid file contents")

// zipMagic starts every .xlsx file.
var zipMagic = []byte("PK\x03\x04")

// Table is a parsed file: cleaned header names and rows of cleaned cells,
// every row exactly as wide as the header.
type Table struct {
	Header  []string
	Records [][]string
}

// ReadTable parses a CSV or XLSX upload. The format comes from the file
// extension, or from the content when the extension says nothing.
// Reading more than maxSize bytes fails with ErrFileTooLarge.
func ReadTable(name string, r io.Reader, maxSize int64) (Table, error) {
	br := bufio.NewReader(NewSizeLimitReader(r, maxSize))

	var (
		rows [][]string
		err  error
	)
	switch ext := strings.ToLower(filepath.Ext(name)); ext {
	case ".xlsx", ".xlsm", ".xltx", ".xltm":
		rows, err = readXLSX(br)
	case ".csv", ".txt":
		rows, err = readCSV(br)
	case ".xls", ".ods", ".pdf", ".json", ".parquet":
		return Table{}, fmt.Errorf("%w: %s", ErrUnsupportedFormat, ext)
	default:
		head, _ := br.Peek(len(zipMagic))
		if bytes.Equal(head, zipMagic) {
			rows, err = readXLSX(br)
		} else {
			rows, err = readCSV(br)
		}
	}
	if err != nil {
		return Table{}, err
	}

	return buildTable(rows)
}

func readCSV(r io.Reader) ([][]string, error) {
	cr := csv.NewReader(NewTextReader(r))
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true

	records, err := cr.ReadAll()
	if err != nil {
		if errors.Is(err, ErrFileTooLarge) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", errMalformedFile, err)
	}
	return records, nil
}

func readXLSX(r io.Reader) ([][]string, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		if errors.Is(err, ErrFileTooLarge) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: open workbook: %v", errMalformedFile, err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, ErrEmptyFile
	}

	rows, err := f.Rows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("%w: sheet %q: %v", errMalformedFile, sheets[0], err)
	}
	defer rows.Close()

	var out [][]string
	for rows.Next() {
		cols, err := rows.Columns()
		if err != nil {
			return nil, fmt.Errorf("%w: sheet %q: %v", errMalformedFile, sheets[0], err)
		}
		out = append(out, cols)
	}
	if err := rows.Error(); err != nil {
		return nil, fmt.Errorf("%w: sheet %q: %v", errMalformedFile, sheets[0], err)
	}
	return out, nil
}

// buildTable takes the first non-empty row as the header and normalizes
// every following non-empty row to the header width.
func buildTable(rows [][]string) (Table, error) {
	start := 0
	for start < len(rows) && isEmptyRow(rows[start]) {
		start++
	}
	if start == len(rows) {
		return Table{}, ErrEmptyFile
	}

	header := uniqueHeader(rows[start])
	records := make([][]string, 0, len(rows)-start-1)
	for _, row := range rows[start+1:] {
		if isEmptyRow(row) {
			continue
		}
		rec := make([]string, len(header))
		for i := range rec {
			if i < len(row) {
				rec[i] = CleanCell(row[i])
			}
		}
		records = append(records, rec)
	}
	if len(records) == 0 {
		return Table{}, ErrEmptyFile
	}

	return Table{Header: header, Records: records}, nil
}

// uniqueHeader cleans header names, names blank columns "column_N" and
// suffixes repeats with ".1", ".2" and so on.
func uniqueHeader(row []string) []string {
	header := make([]string, len(row))
	used := make(map[string]bool, len(row))

	for i, h := range row {
		name := CleanCell(h)
		if name == "" {
			name = "column_" + strconv.Itoa(i+1)
		}
		if used[name] {
			for n := 1; ; n++ {
				candidate := name + "." + strconv.Itoa(n)
				if !used[candidate] {
					name = candidate
					break
				}
			}
		}
		used[name] = true
		header[i] = name
	}
	return header
}

func isEmptyRow(row []string) bool {
	for _, v := range row {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}
