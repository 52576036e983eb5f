package storage

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gumtree-scraper/models"
)

// ExportMeta identifies the run an export belongs to.
type ExportMeta struct {
	RunID     string
	ScrapedAt time.Time
}

type jsonMetadata struct {
	RunID      string    `json:"run_id"`
	ScrapedAt  time.Time `json:"scraped_at"`
	TotalItems int       `json:"total_items"`
}

type jsonDocument struct {
	Metadata jsonMetadata     `json:"metadata"`
	Data     []models.Listing `json:"data"`
}

// JSONWriter writes the run snapshot document.
type JSONWriter struct {
	path string
}

func NewJSONWriter(path string) (*JSONWriter, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("json: create output dir: %w", err)
	}
	return &JSONWriter{path: path}, nil
}

func (j *JSONWriter) Path() string { return j.path }

// Write replaces the file with {"metadata": {...}, "data": [...]}. The file is written
// to a temporary sibling first and renamed into place.
func (j *JSONWriter) Write(listings []models.Listing, meta ExportMeta) error {
	doc := jsonDocument{
		Metadata: jsonMetadata{
			RunID:      meta.RunID,
			ScrapedAt:  meta.ScrapedAt,
			TotalItems: len(listings),
		},
		Data: listings,
	}
	if doc.Data == nil {
		doc.Data = []models.Listing{}
	}

	b, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("json: encode: %w", err)
	}

	tmp := j.path + ".tmp"
	if err := os.WriteFile(tmp, b, 0644); err != nil {
		return fmt.Errorf("json: write %q: %w", tmp, err)
	}
	if err := os.Rename(tmp, j.path); err != nil {
		return fmt.Errorf("json: rename into %q: %w", j.path, err)
	}
	return nil
}
