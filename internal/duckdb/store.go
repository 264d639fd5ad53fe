package duckdb

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "github.com/duckdb/duckdb-go/v2"

	"github.com/tinytelemetry/callstat/internal/duckdb/migrate"
	"github.com/tinytelemetry/callstat/internal/model"
)

// Store keeps the latest report snapshot in a DuckDB file so it can be
// explored with SQL after the run.
type Store struct {
	db           *sql.DB
	mu           sync.Mutex
	dbPath       string
	QueryTimeout time.Duration
}

// NewStore opens or creates a DuckDB database and applies the schema.
// If dbPath is empty, an in-memory database is used.
// An optional queryTimeout can be passed; it defaults to 30s.
func NewStore(dbPath string, queryTimeout ...time.Duration) (*Store, error) {
	dsn := ""
	if dbPath != "" {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
			return nil, fmt.Errorf("duckdb: create parent dir: %w", err)
		}
		dsn = dbPath
	}

	db, err := sql.Open("duckdb", dsn)
	if err != nil {
		return nil, fmt.Errorf("duckdb: open %s: %w", dbPath, err)
	}

	qt := 30 * time.Second
	if len(queryTimeout) > 0 && queryTimeout[0] > 0 {
		qt = queryTimeout[0]
	}

	ctx, cancel := context.WithTimeout(context.Background(), qt)
	defer cancel()
	if err := migrate.NewRunner(db).Run(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("duckdb: migrate: %w", err)
	}

	return &Store{
		db:           db,
		dbPath:       dbPath,
		QueryTimeout: qt,
	}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// DB returns the underlying *sql.DB for ad-hoc queries.
func (s *Store) DB() *sql.DB {
	return s.db
}

// WriteReport implements model.ReportWriter.
func (s *Store) WriteReport(r *model.Report) error {
	ctx, cancel := context.WithTimeout(context.Background(), s.QueryTimeout)
	defer cancel()
	return s.ReplaceReport(ctx, r)
}

// ReplaceReport swaps the stored snapshot for r in one transaction. Earlier
// runs are removed, so the file always describes exactly one report.
func (s *Store) ReplaceReport(ctx context.Context, r *model.Report) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("duckdb: begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, table := range []string{"hourly_kpis", "source_summaries", "report_runs"} {
		if _, err := tx.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return fmt.Errorf("duckdb: clear %s: %w", table, err)
		}
	}

	if _, err := tx.ExecContext(ctx,
		"INSERT INTO report_runs (run_id, generated_at) VALUES (?, ?)",
		r.RunID, r.GeneratedAt.UTC(),
	); err != nil {
		return fmt.Errorf("duckdb: insert run: %w", err)
	}

	kpiStmt, err := tx.PrepareContext(ctx,
		"INSERT INTO hourly_kpis (run_id, hour, label, position, metric, value) VALUES (?, ?, ?, ?, ?, ?)")
	if err != nil {
		return fmt.Errorf("duckdb: prepare kpi insert: %w", err)
	}
	defer kpiStmt.Close()

	for _, row := range r.Rows {
		for pos, metric := range r.Metrics {
			if _, err := kpiStmt.ExecContext(ctx, r.RunID, row.Hour, row.Label, pos, metric, row.Metrics[metric]); err != nil {
				return fmt.Errorf("duckdb: insert %s %s: %w", row.Label, metric, err)
			}
		}
	}

	srcStmt, err := tx.PrepareContext(ctx,
		`INSERT INTO source_summaries
			(run_id, position, name, lines, events, debug_skipped, unclassifiable, error)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("duckdb: prepare source insert: %w", err)
	}
	defer srcStmt.Close()

	for pos, src := range r.Sources {
		var errText sql.NullString
		if src.Error != "" {
			errText = sql.NullString{String: src.Error, Valid: true}
		}
		if _, err := srcStmt.ExecContext(ctx, r.RunID, pos, src.Name, src.Lines, src.Events,
			src.DebugSkipped, src.Unclassifiable, errText); err != nil {
			return fmt.Errorf("duckdb: insert source %s: %w", src.Name, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("duckdb: commit: %w", err)
	}
	return nil
}

// LoadReport reads the stored snapshot back. It returns (nil, nil) when the
// database holds no report.
func (s *Store) LoadReport(ctx context.Context) (*model.Report, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	r := &model.Report{}
	err := s.db.QueryRowContext(ctx, "SELECT run_id, generated_at FROM report_runs LIMIT 1").
		Scan(&r.RunID, &r.GeneratedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("duckdb: load run: %w", err)
	}

	rows, err := s.db.QueryContext(ctx,
		"SELECT hour, label, position, metric, value FROM hourly_kpis WHERE run_id = ? ORDER BY hour, position",
		r.RunID)
	if err != nil {
		return nil, fmt.Errorf("duckdb: load kpis: %w", err)
	}
	defer rows.Close()

	var metrics []string
	for rows.Next() {
		var (
			hour, pos     int
			label, metric string
			value         float64
		)
		if err := rows.Scan(&hour, &label, &pos, &metric, &value); err != nil {
			return nil, fmt.Errorf("duckdb: scan kpi: %w", err)
		}
		if n := len(r.Rows); n == 0 || r.Rows[n-1].Hour != hour {
			r.Rows = append(r.Rows, model.HourRow{Hour: hour, Label: label, Metrics: map[string]float64{}})
		}
		r.Rows[len(r.Rows)-1].Metrics[metric] = value
		if len(r.Rows) == 1 {
			metrics = append(metrics, metric)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("duckdb: load kpis: %w", err)
	}
	r.Metrics = metrics

	srcRows, err := s.db.QueryContext(ctx,
		`SELECT name, lines, events, debug_skipped, unclassifiable, error
		FROM source_summaries WHERE run_id = ? ORDER BY position`, r.RunID)
	if err != nil {
		return nil, fmt.Errorf("duckdb: load sources: %w", err)
	}
	defer srcRows.Close()

	for srcRows.Next() {
		var src model.SourceSummary
		var errText sql.NullString
		if err := srcRows.Scan(&src.Name, &src.Lines, &src.Events, &src.DebugSkipped, &src.Unclassifiable, &errText); err != nil {
			return nil, fmt.Errorf("duckdb: scan source: %w", err)
		}
		src.Error = errText.String
		r.Sources = append(r.Sources, src)
	}
	if err := srcRows.Err(); err != nil {
		return nil, fmt.Errorf("duckdb: load sources: %w", err)
	}
	return r, nil
}
