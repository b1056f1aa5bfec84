package excel

import (
	"encoding/csv"
	"fmt"
	"io"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/xuri/excelize/v2"
)

// usernamePattern matches a Telegram handle with an optional leading "@"
var usernamePattern = regexp.MustCompile(`^@?\w+$`)

// ImportResult holds the usernames read from a member list
type ImportResult struct {
	Usernames []string
	// Rows that did not hold a valid handle, as "Row N: value"
	Invalid []string
}

// ParseMembers reads a member list from an Excel (.xlsx) or CSV file.
// The first column of the first sheet holds one handle per row; a header row
// whose first cell is "username" is skipped.
func ParseMembers(r io.Reader, filename string) (*ImportResult, error) {
	var rows [][]string
	var err error

	switch strings.ToLower(filepath.Ext(filename)) {
	case ".csv":
		rows, err = readCSV(r)
	case ".xlsx", ".xlsm":
		rows, err = readExcel(r)
	default:
		return nil, fmt.Errorf("unsupported file type %q, expected .xlsx or .csv", filepath.Ext(filename))
	}
	if err != nil {
		return nil, err
	}

	result := &ImportResult{}
	for i, row := range rows {
		if len(row) == 0 {
			continue
		}
		cell := strings.TrimSpace(row[0])
		if cell == "" {
			continue
		}
		if i == 0 && strings.EqualFold(strings.TrimPrefix(cell, "@"), "username") {
			continue
		}
		if !usernamePattern.MatchString(cell) {
			result.Invalid = append(result.Invalid, fmt.Sprintf("Row %d: %s", i+1, cell))
			continue
		}
		result.Usernames = append(result.Usernames, cell)
	}
	return result, nil
}

func readExcel(r io.Reader) ([][]string, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("failed to open Excel file: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("workbook has no sheets")
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("failed to get rows: %w", err)
	}
	return rows, nil
}

func readCSV(r io.Reader) ([][]string, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1 // Allow variable number of fields
	reader.LazyQuotes = true
	reader.TrimLeadingSpace = true

	rows, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to read CSV file: %w", err)
	}
	return rows, nil
}
