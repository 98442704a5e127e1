// Package sqlite implements the filing registry on an embedded SQLite
// database using the pure Go modernc.org/sqlite driver.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/flarexio/secsearch/persistence/sqlite/migrations"
	"github.com/flarexio/secsearch/registry"
)

// NewRegistry opens (creating if needed) the database at cfg.Path. An empty
// path or ":memory:" keeps the registry in memory.
func NewRegistry(cfg registry.Config) (registry.Registry, error) {
	maxFilings := cfg.MaxFilings
	if maxFilings <= 0 {
		maxFilings = registry.DefaultMaxFilings
	}

	dsn := cfg.Path
	if dsn == "" || dsn == ":memory:" {
		dsn = ":memory:"
	} else {
		if err := os.MkdirAll(filepath.Dir(dsn), 0o755); err != nil {
			return nil, fmt.Errorf("%w: creating data directory: %w", registry.ErrRegistry, err)
		}

		dsn += "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("%w: opening database: %w", registry.ErrRegistry, err)
	}

	// A single connection serialises writers, so the capacity check and the
	// insert that follows it cannot interleave with another registration.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	r := &sqliteRegistry{
		db:         db,
		maxFilings: maxFilings,
	}

	if err := r.migrate(migrations.FS); err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: running migrations: %w", registry.ErrRegistry, err)
	}

	return r, nil
}

// timeLayout is fixed width so that ingested_at sorts lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

type sqliteRegistry struct {
	db         *sql.DB
	maxFilings int
}

func (r *sqliteRegistry) migrate(fsys fs.FS) error {
	_, err := r.db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)
	`)
	if err != nil {
		return fmt.Errorf("creating schema_migrations table: %w", err)
	}

	var current int
	row := r.db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_migrations")
	if err := row.Scan(&current); err != nil {
		return fmt.Errorf("getting current version: %w", err)
	}

	entries, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return fmt.Errorf("reading migrations directory: %w", err)
	}

	var ups []string
	for _, entry := range entries {
		if strings.HasSuffix(entry.Name(), ".up.sql") {
			ups = append(ups, entry.Name())
		}
	}
	sort.Strings(ups)

	for _, name := range ups {
		var version int
		if _, err := fmt.Sscanf(name, "%d_", &version); err != nil {
			continue
		}

		if version <= current {
			continue
		}

		content, err := fs.ReadFile(fsys, name)
		if err != nil {
			return fmt.Errorf("reading migration %s: %w", name, err)
		}

		if _, err := r.db.Exec(string(content)); err != nil {
			return fmt.Errorf("executing migration %s: %w", name, err)
		}

		if _, err := r.db.Exec("INSERT INTO schema_migrations (version) VALUES (?)", version); err != nil {
			return fmt.Errorf("recording migration %s: %w", name, err)
		}
	}

	return nil
}

func (r *sqliteRegistry) Register(ctx context.Context, record registry.Record) error {
	if record.IngestedAt.IsZero() {
		record.IngestedAt = time.Now()
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: %w", registry.ErrRegistry, err)
	}
	defer tx.Rollback()

	var duplicates int
	err = tx.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM filings
		WHERE filing_key = ? OR (ticker = ? AND form_type = ? AND filing_date = ?)`,
		record.FilingKey, record.Ticker, record.FormType, record.FilingDate,
	).Scan(&duplicates)
	if err != nil {
		return fmt.Errorf("%w: %w", registry.ErrRegistry, err)
	}

	if duplicates > 0 {
		return fmt.Errorf("%w: %s", registry.ErrDuplicateFiling, record.FilingKey)
	}

	var count int
	if err := tx.QueryRowContext(ctx, "SELECT COUNT(*) FROM filings").Scan(&count); err != nil {
		return fmt.Errorf("%w: %w", registry.ErrRegistry, err)
	}

	if count >= r.maxFilings {
		return &registry.CapacityError{Current: count, Max: r.maxFilings}
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO filings (filing_key, ticker, form_type, filing_date, chunk_count, ingested_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		record.FilingKey,
		record.Ticker,
		record.FormType,
		record.FilingDate,
		record.ChunkCount,
		record.IngestedAt.UTC().Format(timeLayout),
	)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return fmt.Errorf("%w: %s", registry.ErrDuplicateFiling, record.FilingKey)
		}

		return fmt.Errorf("%w: %w", registry.ErrRegistry, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: %w", registry.ErrRegistry, err)
	}

	return nil
}

func (r *sqliteRegistry) Remove(ctx context.Context, filingKey string) (bool, error) {
	result, err := r.db.ExecContext(ctx, "DELETE FROM filings WHERE filing_key = ?", filingKey)
	if err != nil {
		return false, fmt.Errorf("%w: %w", registry.ErrRegistry, err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("%w: %w", registry.ErrRegistry, err)
	}

	return n > 0, nil
}

const selectRecord = `
	SELECT filing_key, ticker, form_type, filing_date, chunk_count, ingested_at
	FROM filings`

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(s scanner) (registry.Record, error) {
	var (
		record     registry.Record
		ingestedAt string
	)

	err := s.Scan(
		&record.FilingKey,
		&record.Ticker,
		&record.FormType,
		&record.FilingDate,
		&record.ChunkCount,
		&ingestedAt,
	)
	if err != nil {
		return registry.Record{}, err
	}

	t, err := time.Parse(timeLayout, ingestedAt)
	if err != nil {
		return registry.Record{}, fmt.Errorf("parsing ingested_at: %w", err)
	}

	record.IngestedAt = t
	return record, nil
}

func (r *sqliteRegistry) Get(ctx context.Context, filingKey string) (registry.Record, error) {
	row := r.db.QueryRowContext(ctx, selectRecord+" WHERE filing_key = ?", filingKey)

	record, err := scanRecord(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return registry.Record{}, fmt.Errorf("%w: %s", registry.ErrFilingNotFound, filingKey)
		}

		return registry.Record{}, fmt.Errorf("%w: %w", registry.ErrRegistry, err)
	}

	return record, nil
}

func (r *sqliteRegistry) Exists(ctx context.Context, filingKey string) (bool, error) {
	var n int
	err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM filings WHERE filing_key = ?", filingKey).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("%w: %w", registry.ErrRegistry, err)
	}

	return n > 0, nil
}

func where(filter registry.Filter) (string, []any) {
	filter = filter.Normalize()

	var (
		clauses []string
		args    []any
	)

	if filter.Ticker != "" {
		clauses = append(clauses, "ticker = ?")
		args = append(args, filter.Ticker)
	}

	if filter.FormType != "" {
		clauses = append(clauses, "form_type = ?")
		args = append(args, filter.FormType)
	}

	if len(clauses) == 0 {
		return "", nil
	}

	return " WHERE " + strings.Join(clauses, " AND "), args
}

func (r *sqliteRegistry) List(ctx context.Context, filter registry.Filter) ([]registry.Record, error) {
	clause, args := where(filter)

	rows, err := r.db.QueryContext(ctx, selectRecord+clause+" ORDER BY ingested_at ASC, id ASC", args...)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", registry.ErrRegistry, err)
	}
	defer rows.Close()

	records := make([]registry.Record, 0)
	for rows.Next() {
		record, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", registry.ErrRegistry, err)
		}

		records = append(records, record)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", registry.ErrRegistry, err)
	}

	return records, nil
}

func (r *sqliteRegistry) Count(ctx context.Context, filter registry.Filter) (int, error) {
	clause, args := where(filter)

	var n int
	if err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM filings"+clause, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("%w: %w", registry.ErrRegistry, err)
	}

	return n, nil
}

func (r *sqliteRegistry) MaxFilings() int {
	return r.maxFilings
}

func (r *sqliteRegistry) Close() error {
	return r.db.Close()
}
