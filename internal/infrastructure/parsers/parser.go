// Package parsers provides parsers for importing wiki snapshots from various formats.
package parsers

import (
	"io"
	"path/filepath"
	"strings"
)

// RawSnapshot represents one snapshot row parsed from an external source
// before validation.
type RawSnapshot struct {
	Entry           string `json:"entry"`
	ValidFrom       *int   `json:"valid_from,omitempty"` // Pointer to distinguish 0 from unset
	Content         string `json:"content"`
	Contributor     string `json:"contributor,omitempty"`
	FirstAppearance *int   `json:"first_appearance,omitempty"`
	LineNum         int    `json:"-"` // Line number in source file (set by parser)
}

// Parser defines the interface for parsing snapshots from various formats.
type Parser interface {
	Parse(r io.Reader) ([]RawSnapshot, error)
}

// ForFormat returns the appropriate parser for the given format.
// Supported formats: "json", "csv".
func ForFormat(format string) Parser {
	switch strings.ToLower(format) {
	case "json":
		return &JSONParser{}
	case "csv":
		return &CSVParser{}
	default:
		return nil
	}
}

// ForFile returns the appropriate parser based on file extension.
func ForFile(filename string) Parser {
	ext := strings.ToLower(filepath.Ext(filename))
	switch ext {
	case ".json":
		return &JSONParser{}
	case ".csv":
		return &CSVParser{}
	default:
		return nil
	}
}
