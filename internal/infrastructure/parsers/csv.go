package parsers

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// CSVParser parses snapshots from CSV format.
type CSVParser struct{}

// Parse reads CSV from the reader and returns parsed snapshots.
// Expected columns: entry, valid_from, content, contributor, first_appearance
func (p *CSVParser) Parse(r io.Reader) ([]RawSnapshot, error) {
	reader := csv.NewReader(r)

	colIndex, err := p.readHeader(reader)
	if err != nil {
		return nil, err
	}

	return p.readRecords(reader, colIndex)
}

// readHeader reads and validates the CSV header row.
func (p *CSVParser) readHeader(reader *csv.Reader) (map[string]int, error) {
	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("reading CSV header: %w", err)
	}

	colIndex := make(map[string]int)
	for i, col := range header {
		colIndex[strings.TrimSpace(col)] = i
	}

	requiredCols := []string{"entry", "valid_from", "content"}
	for _, col := range requiredCols {
		if _, ok := colIndex[col]; !ok {
			return nil, fmt.Errorf("missing required column: %s", col)
		}
	}

	return colIndex, nil
}

// readRecords reads all data rows and converts them to RawSnapshots.
func (p *CSVParser) readRecords(reader *csv.Reader, colIndex map[string]int) ([]RawSnapshot, error) {
	var snapshots []RawSnapshot
	lineNum := 1 // Header is line 1

	for {
		lineNum++
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", lineNum, err)
		}

		snapshot, err := p.parseRecord(record, colIndex, lineNum)
		if err != nil {
			return nil, err
		}
		snapshots = append(snapshots, snapshot)
	}

	return snapshots, nil
}

// parseRecord converts a CSV record to a RawSnapshot.
func (p *CSVParser) parseRecord(record []string, colIndex map[string]int, lineNum int) (RawSnapshot, error) {
	snapshot := RawSnapshot{
		Entry:       getColumn(record, colIndex, "entry"),
		Content:     getColumn(record, colIndex, "content"),
		Contributor: getColumn(record, colIndex, "contributor"),
		LineNum:     lineNum,
	}

	validFrom, err := parseOptionalInt(getColumn(record, colIndex, "valid_from"))
	if err != nil {
		return RawSnapshot{}, fmt.Errorf("line %d: invalid valid_from value: %w", lineNum, err)
	}
	snapshot.ValidFrom = validFrom

	firstAppearance, err := parseOptionalInt(getColumn(record, colIndex, "first_appearance"))
	if err != nil {
		return RawSnapshot{}, fmt.Errorf("line %d: invalid first_appearance value: %w", lineNum, err)
	}
	snapshot.FirstAppearance = firstAppearance

	return snapshot, nil
}

// parseOptionalInt parses s, returning nil for an empty cell.
func parseOptionalInt(s string) (*int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return nil, err
	}
	return &v, nil
}

// getColumn safely retrieves a column value from a record.
func getColumn(record []string, colIndex map[string]int, col string) string {
	if idx, ok := colIndex[col]; ok && idx < len(record) {
		return record[idx]
	}
	return ""
}
