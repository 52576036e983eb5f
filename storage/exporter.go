package storage

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"gumtree-scraper/config"
	"gumtree-scraper/models"
	"gumtree-scraper/utils"
)

// Exporter owns the local output files of a run.
type Exporter struct {
	json   *JSONWriter
	csv    *CSVWriter
	logger *utils.Logger
}

// NewExporter creates the writers for the configured output paths.
func NewExporter(cfg *config.Config, logger *utils.Logger) (*Exporter, error) {
	jw, err := NewJSONWriter(cfg.OutputJSONPath)
	if err != nil {
		return nil, err
	}
	cw, err := NewCSVWriter(cfg.OutputCSVPath)
	if err != nil {
		return nil, err
	}
	return &Exporter{json: jw, csv: cw, logger: logger}, nil
}

// Clear removes the output files of a previous run. Missing files are not an error.
func (e *Exporter) Clear() error {
	var errs []error
	for _, path := range []string{e.json.Path(), e.csv.Path()} {
		if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			errs = append(errs, fmt.Errorf("export: clear %q: %w", path, err))
			continue
		}
		e.logger.Debug("[export] Cleared %s", path)
	}
	return errors.Join(errs...)
}

// Export writes the JSON snapshot and the CSV file. Both are attempted even if one fails.
func (e *Exporter) Export(listings []models.Listing, meta ExportMeta) error {
	var errs []error
	if err := e.json.Write(listings, meta); err != nil {
		errs = append(errs, err)
	} else {
		e.logger.Info("[export] %d listings saved to %s", len(listings), e.json.Path())
	}
	if err := e.csv.Write(listings); err != nil {
		errs = append(errs, err)
	} else {
		e.logger.Info("[export] %d listings saved to %s", len(listings), e.csv.Path())
	}
	return errors.Join(errs...)
}
