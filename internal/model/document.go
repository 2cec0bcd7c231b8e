package model

import (
	"fmt"
	"os"
	"path/filepath"
)

// Document is a source file selected by the user for upload.
type Document struct {
	Name    string
	Content []byte
}

// LoadDocument reads the file at path into a Document named after its base name.
func LoadDocument(path string) (*Document, error) {
	content, err := os.ReadFile(path) //nolint:gosec // user-selected input file
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return &Document{
		Name:    filepath.Base(path),
		Content: content,
	}, nil
}

// DocumentName returns the document's name, or an empty string for nil.
func DocumentName(d *Document) string {
	if d == nil {
		return ""
	}
	return d.Name
}
