package parsers

import (
	"encoding/json"
	"fmt"
	"io"
)

// JSONParser parses snapshots from a JSON array.
type JSONParser struct{}

// Parse reads JSON from the reader and returns parsed snapshots.
func (p *JSONParser) Parse(r io.Reader) ([]RawSnapshot, error) {
	var snapshots []RawSnapshot

	decoder := json.NewDecoder(r)
	if err := decoder.Decode(&snapshots); err != nil {
		return nil, fmt.Errorf("parsing JSON: %w", err)
	}

	// Set line numbers (array index + 1, 1-indexed)
	for i := range snapshots {
		snapshots[i].LineNum = i + 1
	}

	return snapshots, nil
}
