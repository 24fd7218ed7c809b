package repository

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "modernc.org/sqlite" // registers the "sqlite" database/sql driver

	"github.com/rumbo/drivermatch/internal/domain/model"
	"github.com/rumbo/drivermatch/internal/domain/result"
	"github.com/rumbo/drivermatch/pkg/logger"
	"github.com/rumbo/drivermatch/pkg/metrics"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

const runColumns = `id, request_id, status, algorithm, drivers, routes, reason, error,
	summary, timings, created_at, started_at, finished_at`

// SQLiteStore keeps runs in a SQLite database file.
type SQLiteStore struct {
	db            *sql.DB
	busyTimeoutMS int
	logger        logger.Logger
}

var _ Store = (*SQLiteStore)(nil)

// OpenSQLite opens (creating if needed) the database at path and applies
// pending migrations. Use ":memory:" for a throwaway database.
func OpenSQLite(ctx context.Context, path string, opts ...Option) (*SQLiteStore, error) {
	s := &SQLiteStore{
		busyTimeoutMS: 5000,
		logger:        logger.Get().Named("store"),
	}
	for _, opt := range opts {
		opt(s)
	}

	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(%d)&_pragma=foreign_keys(1)", path, s.busyTimeoutMS)
	if path != ":memory:" {
		dsn += "&_pragma=journal_mode(WAL)"
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}
	// SQLite allows one writer; a single connection also keeps :memory: databases shared.
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite %s: %w", path, err)
	}
	s.db = db

	if err := s.migrateUp(); err != nil {
		_ = db.Close()
		return nil, err
	}
	s.logger.Info(ctx, "run store opened", logger.String("path", path))
	return s, nil
}

func (s *SQLiteStore) newMigrate() (*migrate.Migrate, error) {
	src, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return nil, fmt.Errorf("load migrations: %w", err)
	}
	driver, err := sqlite.WithInstance(s.db, &sqlite.Config{})
	if err != nil {
		return nil, fmt.Errorf("create sqlite migrate driver: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", src, "sqlite", driver)
	if err != nil {
		return nil, fmt.Errorf("create migrate instance: %w", err)
	}
	m.Log = &migrateLogger{l: s.logger}
	return m, nil
}

// migrateUp applies pending migrations. The migrate instance is not closed
// because that would close the shared *sql.DB.
func (s *SQLiteStore) migrateUp() error {
	m, err := s.newMigrate()
	if err != nil {
		return err
	}
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migration up failed: %w", err)
	}
	return nil
}

// SchemaVersion reports the applied migration version.
func (s *SQLiteStore) SchemaVersion() (uint, bool, error) {
	m, err := s.newMigrate()
	if err != nil {
		return 0, false, err
	}
	version, dirty, err := m.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		return 0, false, nil
	}
	return version, dirty, err
}

type migrateLogger struct {
	l logger.Logger
}

func (m *migrateLogger) Printf(format string, v ...any) {
	m.l.Debug(context.Background(), strings.TrimSpace(fmt.Sprintf(format, v...)))
}

func (m *migrateLogger) Verbose() bool { return false }

func observe(op string, start time.Time) {
	metrics.RecordStoreLatency(op, float64(time.Since(start).Microseconds())/1000)
}

// Create implements Store.
func (s *SQLiteStore) Create(ctx context.Context, run Run) error {
	defer observe("create", time.Now())

	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM runs WHERE id = ?`, run.ID).Scan(&n); err != nil {
		return fmt.Errorf("create run %s: %w", run.ID, err)
	}
	if n > 0 {
		return fmt.Errorf("%w: %s", ErrConflict, run.ID)
	}
	if run.Status == "" {
		run.Status = StatusQueued
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO runs (id, request_id, status, algorithm, drivers, routes, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.RequestID, string(run.Status), run.Algorithm, run.Drivers, run.Routes, run.CreatedAt.UnixMilli())
	if err != nil {
		return fmt.Errorf("create run %s: %w", run.ID, err)
	}
	return nil
}

// MarkRunning implements Store.
func (s *SQLiteStore) MarkRunning(ctx context.Context, id string, at time.Time) error {
	defer observe("mark_running", time.Now())
	res, err := s.db.ExecContext(ctx,
		`UPDATE runs SET status = ?, started_at = ? WHERE id = ?`,
		string(StatusRunning), at.UnixMilli(), id)
	return affected(res, err, id)
}

// Complete implements Store.
func (s *SQLiteStore) Complete(ctx context.Context, id string, out Outcome, at time.Time) error {
	defer observe("complete", time.Now())

	summary, err := json.Marshal(out.Summary)
	if err != nil {
		return fmt.Errorf("encode summary: %w", err)
	}
	timings, err := json.Marshal(out.Timings)
	if err != nil {
		return fmt.Errorf("encode timings: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx,
		`UPDATE runs SET status = ?, summary = ?, timings = ?, report = ?, finished_at = ? WHERE id = ?`,
		string(StatusSucceeded), string(summary), string(timings), out.Report, at.UnixMilli(), id)
	if err := affected(res, err, id); err != nil {
		return err
	}

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO assignments (
		run_id, rank, driver_id, route_id, match_score, driver_score, route_score,
		score_difference, fit, route_difficulty, km_balance, driver_safety,
		driver_efficiency, route_distance_km, route_peligrosity
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare assignments: %w", err)
	}
	defer stmt.Close()

	for rank, a := range out.Assignments {
		if _, err := stmt.ExecContext(ctx,
			id, rank, a.DriverID, a.RouteID, a.Weight, a.DriverScore, a.RouteScore,
			a.ScoreDifference, string(a.Band), string(a.Tier), a.KMBalance, a.DriverSafety,
			a.DriverEfficiency, a.RouteDistanceKM, a.RouteDanger,
		); err != nil {
			return fmt.Errorf("insert assignment %d of run %s: %w", rank, id, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit run %s: %w", id, err)
	}
	return nil
}

// Fail implements Store.
func (s *SQLiteStore) Fail(ctx context.Context, id, reason, message string, at time.Time) error {
	defer observe("fail", time.Now())
	res, err := s.db.ExecContext(ctx,
		`UPDATE runs SET status = ?, reason = ?, error = ?, finished_at = ? WHERE id = ?`,
		string(StatusFailed), reason, message, at.UnixMilli(), id)
	return affected(res, err, id)
}

// Get implements Store.
func (s *SQLiteStore) Get(ctx context.Context, id string) (Run, error) {
	defer observe("get", time.Now())
	row := s.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM runs WHERE id = ?`, id)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Run{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return run, err
}

// GetByRequest implements Store.
func (s *SQLiteStore) GetByRequest(ctx context.Context, requestID string) (Run, error) {
	defer observe("get_by_request", time.Now())
	if requestID == "" {
		return Run{}, ErrNotFound
	}
	row := s.db.QueryRowContext(ctx,
		`SELECT `+runColumns+` FROM runs WHERE request_id = ? ORDER BY created_at DESC LIMIT 1`, requestID)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Run{}, fmt.Errorf("%w: request %s", ErrNotFound, requestID)
	}
	return run, err
}

// Assignments implements Store.
func (s *SQLiteStore) Assignments(ctx context.Context, id string) ([]model.Assignment, error) {
	defer observe("assignments", time.Now())
	if _, err := s.Get(ctx, id); err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, `SELECT driver_id, route_id, match_score, driver_score,
		route_score, score_difference, fit, route_difficulty, km_balance, driver_safety,
		driver_efficiency, route_distance_km, route_peligrosity
		FROM assignments WHERE run_id = ? ORDER BY rank`, id)
	if err != nil {
		return nil, fmt.Errorf("query assignments of %s: %w", id, err)
	}
	defer rows.Close()

	out := []model.Assignment{}
	for rows.Next() {
		var (
			a          model.Assignment
			band, tier string
		)
		if err := rows.Scan(&a.DriverID, &a.RouteID, &a.Weight, &a.DriverScore, &a.RouteScore,
			&a.ScoreDifference, &band, &tier, &a.KMBalance, &a.DriverSafety,
			&a.DriverEfficiency, &a.RouteDistanceKM, &a.RouteDanger); err != nil {
			return nil, fmt.Errorf("scan assignment: %w", err)
		}
		a.Band, a.Tier = model.Band(band), model.Tier(tier)
		out = append(out, a)
	}
	return out, rows.Err()
}

// Report implements Store.
func (s *SQLiteStore) Report(ctx context.Context, id string) (string, error) {
	defer observe("report", time.Now())
	var report sql.NullString
	err := s.db.QueryRowContext(ctx, `SELECT report FROM runs WHERE id = ?`, id).Scan(&report)
	if errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return "", fmt.Errorf("query report of %s: %w", id, err)
	}
	return report.String, nil
}

// Recent implements Store.
func (s *SQLiteStore) Recent(ctx context.Context, limit int) ([]Run, error) {
	defer observe("recent", time.Now())
	if limit <= 0 {
		return nil, ErrInvalidLimit
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+runColumns+` FROM runs ORDER BY created_at DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	out := []Run{}
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, run)
	}
	return out, rows.Err()
}

// Count implements Store.
func (s *SQLiteStore) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM runs`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count runs: %w", err)
	}
	return n, nil
}

// Close implements Store.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(row scanner) (Run, error) {
	var (
		run               Run
		status            string
		summary, timings  sql.NullString
		created           int64
		started, finished sql.NullInt64
	)
	if err := row.Scan(&run.ID, &run.RequestID, &status, &run.Algorithm, &run.Drivers, &run.Routes,
		&run.Reason, &run.Error, &summary, &timings, &created, &started, &finished); err != nil {
		return Run{}, err
	}
	run.Status = Status(status)
	run.CreatedAt = time.UnixMilli(created).UTC()
	if started.Valid {
		t := time.UnixMilli(started.Int64).UTC()
		run.StartedAt = &t
	}
	if finished.Valid {
		t := time.UnixMilli(finished.Int64).UTC()
		run.FinishedAt = &t
	}
	if summary.Valid && summary.String != "" {
		var sum result.Summary
		if err := json.Unmarshal([]byte(summary.String), &sum); err != nil {
			return Run{}, fmt.Errorf("decode summary of %s: %w", run.ID, err)
		}
		run.Summary = &sum
	}
	if timings.Valid && timings.String != "" {
		var tm Timings
		if err := json.Unmarshal([]byte(timings.String), &tm); err != nil {
			return Run{}, fmt.Errorf("decode timings of %s: %w", run.ID, err)
		}
		run.Timings = &tm
	}
	return run, nil
}

func affected(res sql.Result, err error, id string) error {
	if err != nil {
		return fmt.Errorf("update run %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update run %s: %w", id, err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return nil
}
