package storage

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-migrate/migrate/v4"
	migratepg "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "github.com/lib/pq"

	"gumtree-scraper/config"
	"gumtree-scraper/models"
	"gumtree-scraper/utils"
)

//go:embed migrations/*.sql
var migrationFS embed.FS

const insertBatchSize = 50

// insertColumns are the listings table columns written by Append, in Columns order.
var insertColumns = Columns

// PostgresStore persists listings to an append-only PostgreSQL table.
type PostgresStore struct {
	db     *sql.DB
	logger *utils.Logger
}

// NewPostgresStore opens a connection and waits for the server to accept it.
func NewPostgresStore(ctx context.Context, cfg *config.Config, logger *utils.Logger) (*PostgresStore, error) {
	db, err := sql.Open("postgres", cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("postgres: open: %w", err)
	}

	retry := utils.RetryConfig{MaxAttempts: 10, BaseDelay: time.Second, Logger: logger}
	if err := retry.Do(ctx, "postgres ping", func() error { return db.PingContext(ctx) }); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("postgres: %w", err)
	}

	return &PostgresStore{db: db, logger: logger}, nil
}

// EnsureHeader applies the embedded schema migrations.
func (p *PostgresStore) EnsureHeader(ctx context.Context) error {
	src, err := iofs.New(migrationFS, "migrations")
	if err != nil {
		return fmt.Errorf("postgres: migration source: %w", err)
	}
	driver, err := migratepg.WithInstance(p.db, &migratepg.Config{})
	if err != nil {
		return fmt.Errorf("postgres: migration driver: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", src, "postgres", driver)
	if err != nil {
		return fmt.Errorf("postgres: migrate: %w", err)
	}
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("postgres: migrate up: %w", err)
	}
	return nil
}

// ReadAll returns every stored listing as a Row keyed by column name.
func (p *PostgresStore) ReadAll(ctx context.Context) ([]Row, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT job_id, title, url, location, category_name,
		       COALESCE(creation_date::text, ''), description, phone,
		       phone_number_exists, phone_reveal_url,
		       COALESCE(last_edited::text, ''), scraped_at, success
		FROM listings
		ORDER BY id
	`)
	if err != nil {
		return nil, fmt.Errorf("postgres: fetch all: %w", err)
	}
	defer rows.Close()

	var out []Row
	for rows.Next() {
		var (
			l               models.Listing
			created, edited string
		)
		if err := rows.Scan(&l.JobID, &l.Title, &l.URL, &l.Location, &l.CategoryName,
			&created, &l.Description, &l.Phone, &l.PhoneNumberExists, &l.PhoneRevealURL,
			&edited, &l.ScrapedAt, &l.Success); err != nil {
			return nil, fmt.Errorf("postgres: scan row: %w", err)
		}
		out = append(out, Row{
			"job_id":              l.JobID,
			"title":               l.Title,
			"url":                 l.URL,
			"location":            l.Location,
			"category_name":       l.CategoryName,
			"creation_date":       created,
			"description":         l.Description,
			"phone":               l.Phone,
			"phone_number_exists": l.PhoneNumberExists,
			"phone_reveal_url":    l.PhoneRevealURL,
			"last_edited":         edited,
			"scraped_at":          l.ScrapedAt,
			"success":             l.Success,
		})
	}
	return out, rows.Err()
}

// Append inserts the listings in batches inside one transaction.
func (p *PostgresStore) Append(ctx context.Context, listings []models.Listing) error {
	if len(listings) == 0 {
		return nil
	}

	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("postgres: begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for i := 0; i < len(listings); i += insertBatchSize {
		end := min(i+insertBatchSize, len(listings))
		query, args := buildInsert(listings[i:end])
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return fmt.Errorf("postgres: insert batch %d-%d: %w", i, end, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("postgres: commit: %w", err)
	}
	p.logger.Info("[postgres] Appended %d listings", len(listings))
	return nil
}

func buildInsert(batch []models.Listing) (string, []any) {
	n := len(insertColumns)
	valueStrings := make([]string, 0, len(batch))
	valueArgs := make([]any, 0, len(batch)*n)

	for idx, l := range batch {
		placeholders := make([]string, n)
		for c := range placeholders {
			placeholders[c] = fmt.Sprintf("$%d", idx*n+c+1)
		}
		valueStrings = append(valueStrings, "("+strings.Join(placeholders, ",")+")")
		valueArgs = append(valueArgs,
			l.JobID, l.Title, l.URL, l.Location, l.CategoryName,
			nullDate(l.CreationDate), l.Description, l.Phone,
			l.PhoneNumberExists, l.PhoneRevealURL,
			nullDate(l.LastEdited), l.ScrapedAt, l.Success)
	}

	query := fmt.Sprintf("INSERT INTO listings (%s) VALUES %s",
		strings.Join(insertColumns, ", "), strings.Join(valueStrings, ","))
	return query, valueArgs
}

func nullDate(d *models.Date) any {
	if d == nil {
		return nil
	}
	return d.String()
}

func (p *PostgresStore) Close() error {
	return p.db.Close()
}
