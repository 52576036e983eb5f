package storage

import (
	"context"
	"fmt"
	"strings"
	"time"

	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"

	"gumtree-scraper/config"
	"gumtree-scraper/models"
	"gumtree-scraper/utils"
)

// SheetsStore appends listings to a Google Sheets spreadsheet. The first row holds Columns.
type SheetsStore struct {
	svc       *sheets.Service
	sheetID   string
	dataRange string
	headerRng string
	retry     utils.RetryConfig
	logger    *utils.Logger
}

// NewSheetsStore connects with the configured service-account credentials file unless
// client options are given.
func NewSheetsStore(ctx context.Context, cfg *config.Config, logger *utils.Logger, opts ...option.ClientOption) (*SheetsStore, error) {
	if cfg.GoogleSheetsID == "" {
		return nil, fmt.Errorf("sheets: no spreadsheet id configured")
	}
	if len(opts) == 0 {
		opts = []option.ClientOption{
			option.WithCredentialsFile(cfg.GoogleCredentialsFile),
			option.WithScopes(sheets.SpreadsheetsScope),
		}
	}

	svc, err := sheets.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("sheets: create service: %w", err)
	}

	sheetName, _, _ := strings.Cut(cfg.GoogleSheetsRange, "!")
	if sheetName == "" {
		sheetName = "Sheet1"
	}

	return &SheetsStore{
		svc:       svc,
		sheetID:   cfg.GoogleSheetsID,
		dataRange: cfg.GoogleSheetsRange,
		headerRng: sheetName + "!1:1",
		retry:     utils.RetryConfig{MaxAttempts: cfg.MaxRetries, BaseDelay: cfg.RetryDelay, Logger: logger},
		logger:    logger,
	}, nil
}

// EnsureHeader writes the header row when the first row of the sheet is empty.
func (s *SheetsStore) EnsureHeader(ctx context.Context) error {
	var first *sheets.ValueRange
	err := s.retry.Do(ctx, "sheets read header", func() error {
		var err error
		first, err = s.svc.Spreadsheets.Values.Get(s.sheetID, s.headerRng).Context(ctx).Do()
		return err
	})
	if err != nil {
		return fmt.Errorf("sheets: read header: %w", err)
	}
	if len(first.Values) > 0 && len(first.Values[0]) > 0 {
		return nil
	}

	header := make([]any, len(Columns))
	for i, c := range Columns {
		header[i] = c
	}
	err = s.retry.Do(ctx, "sheets write header", func() error {
		_, err := s.svc.Spreadsheets.Values.
			Update(s.sheetID, s.headerRng, &sheets.ValueRange{Values: [][]any{header}}).
			ValueInputOption("RAW").
			Context(ctx).
			Do()
		return err
	})
	if err != nil {
		return fmt.Errorf("sheets: write header: %w", err)
	}
	s.logger.Info("[sheets] Header row written")
	return nil
}

// ReadAll returns every data row keyed by the header names in the first row.
func (s *SheetsStore) ReadAll(ctx context.Context) ([]Row, error) {
	var resp *sheets.ValueRange
	err := s.retry.Do(ctx, "sheets read rows", func() error {
		var err error
		resp, err = s.svc.Spreadsheets.Values.Get(s.sheetID, s.dataRange).
			ValueRenderOption("UNFORMATTED_VALUE").
			Context(ctx).
			Do()
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("sheets: read rows: %w", err)
	}
	if len(resp.Values) < 2 {
		return nil, nil
	}

	header := make([]string, len(resp.Values[0]))
	for i, h := range resp.Values[0] {
		header[i] = strings.TrimSpace(fmt.Sprint(h))
	}

	rows := make([]Row, 0, len(resp.Values)-1)
	for _, values := range resp.Values[1:] {
		row := make(Row, len(header))
		for i, v := range values {
			if i < len(header) && header[i] != "" {
				row[header[i]] = v
			}
		}
		rows = append(rows, row)
	}
	s.logger.Debug("[sheets] Read %d existing rows", len(rows))
	return rows, nil
}

// Append adds the listings as new rows below the existing data.
func (s *SheetsStore) Append(ctx context.Context, listings []models.Listing) error {
	if len(listings) == 0 {
		return nil
	}

	values := make([][]any, len(listings))
	for i, l := range listings {
		cells := Cells(l)
		row := make([]any, len(cells))
		for j, c := range cells {
			row[j] = c
		}
		values[i] = row
	}

	start := time.Now()
	err := s.retry.Do(ctx, "sheets append", func() error {
		_, err := s.svc.Spreadsheets.Values.
			Append(s.sheetID, s.dataRange, &sheets.ValueRange{Values: values}).
			ValueInputOption("RAW").
			InsertDataOption("INSERT_ROWS").
			Context(ctx).
			Do()
		return err
	})
	if err != nil {
		return fmt.Errorf("sheets: append %d rows: %w", len(values), err)
	}
	s.logger.Info("[sheets] Appended %d rows in %v", len(values), time.Since(start).Round(time.Millisecond))
	return nil
}

func (s *SheetsStore) Close() error { return nil }
