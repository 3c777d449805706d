package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/raysh454/qssage/internal/logging"
	_ "modernc.org/sqlite" // SQLite driver
)

// MemoryPath opens a private in-memory database.
const MemoryPath = ":memory:"

// Config locates the database file.
type Config struct {
	// Path is the SQLite file; MemoryPath or "" keeps everything in memory.
	Path string `yaml:"path" json:"path"`
}

// SQLiteStore implements ReportStore on SQLite.
type SQLiteStore struct {
	db     *sql.DB
	logger logging.Logger
	now    func() time.Time
}

// NewSQLiteStore opens (and if needed creates) the report database.
func NewSQLiteStore(logger logging.Logger, cfg Config) (*SQLiteStore, error) {
	if logger == nil {
		return nil, errors.New("store: nil logger provided")
	}
	logger = logger.With(logging.F("component", "store"))

	path := strings.TrimSpace(cfg.Path)
	inMemory := path == "" || path == MemoryPath
	if inMemory {
		path = MemoryPath
	} else if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// every pooled connection would otherwise get its own empty memory database
	if inMemory {
		db.SetMaxOpenConns(1)
	}

	if err := applySchema(db, inMemory); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}

	logger.Info("report store opened", logging.F("path", path))
	return &SQLiteStore{db: db, logger: logger, now: time.Now}, nil
}

// DB exposes the underlying handle for health checks.
func (s *SQLiteStore) DB() *sql.DB { return s.db }

func (s *SQLiteStore) Insert(ctx context.Context, r *ReportRecord) (*ReportRecord, error) {
	if r == nil || strings.TrimSpace(r.URL) == "" {
		return nil, ErrInvalidURL
	}
	rec := *r
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.DetectedAt.IsZero() {
		rec.DetectedAt = s.now()
	}
	rec.DetectedAt = rec.DetectedAt.UTC().Truncate(time.Millisecond)
	if rec.Source == "" {
		rec.Source = SourceManual
	}
	rec.Dispatched = false
	rec.DispatchedAt = nil

	reasons, err := json.Marshal(nonNil(rec.Reasons))
	if err != nil {
		return nil, fmt.Errorf("failed to encode reasons: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO reports (id, url, location, latitude, longitude, note, source, risk, score, reasons, detected_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, rec.ID, rec.URL, rec.Location, nullFloat(rec.Latitude), nullFloat(rec.Longitude),
		rec.Note, rec.Source, rec.Risk, rec.Score, string(reasons), toMillis(rec.DetectedAt))
	if err != nil {
		return nil, fmt.Errorf("failed to insert report: %w", err)
	}

	s.logger.Debug("report inserted", logging.F("id", rec.ID), logging.F("source", rec.Source))
	return &rec, nil
}

const selectColumns = `id, url, location, latitude, longitude, note, source, risk, score, reasons, detected_at, dispatched, dispatched_at`

func (s *SQLiteStore) Get(ctx context.Context, id string) (*ReportRecord, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+selectColumns+` FROM reports WHERE id = ?`, id)
	rec, err := s.scanReport(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return rec, err
}

func (s *SQLiteStore) GetByIDs(ctx context.Context, ids []string) ([]*ReportRecord, error) {
	args := uniqueIDs(ids)
	if len(args) == 0 {
		return nil, nil
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+selectColumns+` FROM reports WHERE id IN (`+placeholders(len(args))+`) ORDER BY detected_at DESC, rowid DESC`,
		args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query reports: %w", err)
	}
	return s.collect(rows)
}

func (s *SQLiteStore) List(ctx context.Context, opts ListOptions) ([]*ReportRecord, error) {
	query := `SELECT ` + selectColumns + ` FROM reports`
	var args []any
	if opts.Pending {
		query += ` WHERE dispatched = 0`
	}
	query += ` ORDER BY detected_at DESC, rowid DESC`
	if opts.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, opts.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query reports: %w", err)
	}
	return s.collect(rows)
}

func (s *SQLiteStore) MarkDispatched(ctx context.Context, ids []string, at time.Time) (int64, error) {
	args := uniqueIDs(ids)
	if len(args) == 0 {
		return 0, nil
	}
	args = append([]any{toMillis(at.UTC())}, args...)
	res, err := s.db.ExecContext(ctx,
		`UPDATE reports SET dispatched = 1, dispatched_at = ? WHERE id IN (`+placeholders(len(args)-1)+`)`,
		args...)
	if err != nil {
		return 0, fmt.Errorf("failed to mark reports dispatched: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to read affected rows: %w", err)
	}
	s.logger.Info("reports marked dispatched", logging.F("count", n))
	return n, nil
}

func (s *SQLiteStore) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM reports WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete report: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	s.logger.Info("report deleted", logging.F("id", id))
	return nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func (s *SQLiteStore) scanReport(row rowScanner) (*ReportRecord, error) {
	var (
		rec          ReportRecord
		lat, lng     sql.NullFloat64
		reasons      string
		detectedAt   int64
		dispatched   int
		dispatchedAt sql.NullInt64
	)
	if err := row.Scan(&rec.ID, &rec.URL, &rec.Location, &lat, &lng, &rec.Note, &rec.Source,
		&rec.Risk, &rec.Score, &reasons, &detectedAt, &dispatched, &dispatchedAt); err != nil {
		return nil, err
	}
	if lat.Valid {
		rec.Latitude = &lat.Float64
	}
	if lng.Valid {
		rec.Longitude = &lng.Float64
	}
	if reasons != "" {
		if err := json.Unmarshal([]byte(reasons), &rec.Reasons); err != nil {
			s.logger.Warn("unreadable report reasons", logging.F("id", rec.ID), logging.Err(err))
			rec.Reasons = []string{}
		}
	}
	rec.DetectedAt = fromMillis(detectedAt)
	rec.Dispatched = dispatched != 0
	if dispatchedAt.Valid {
		t := fromMillis(dispatchedAt.Int64)
		rec.DispatchedAt = &t
	}
	return &rec, nil
}

func (s *SQLiteStore) collect(rows *sql.Rows) ([]*ReportRecord, error) {
	defer rows.Close()
	var out []*ReportRecord
	for rows.Next() {
		rec, err := s.scanReport(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan report: %w", err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating reports: %w", err)
	}
	return out, nil
}

func nullFloat(f *float64) any {
	if f == nil {
		return nil
	}
	return *f
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
