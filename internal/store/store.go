package store

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/ironsheep/object-counter/internal/detection"
	"github.com/ironsheep/object-counter/internal/monitoring"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// ErrNotFound is returned when a count record does not exist.
var ErrNotFound = errors.New("count record not found")

const (
	// DefaultListLimit is used when ListCounts is given a non-positive limit.
	DefaultListLimit = 50
	// MaxListLimit caps ListCounts.
	MaxListLimit = 1000
)

// CountRecord is one persisted counting result.
type CountRecord struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"created_at"`
	Source    string    `json:"source"`
	Width     int       `json:"width"`
	Height    int       `json:"height"`
	Count     int       `json:"count"`
	SmartMode bool      `json:"smart_mode"`
	Threshold int       `json:"threshold"`
	Polarity  string    `json:"polarity"`
	MinArea   int       `json:"min_area"`
	MaxArea   int       `json:"max_area"`
	Sizes     []int     `json:"sizes"`
	MeanArea  float64   `json:"mean_area"`
}

// NewCountRecord builds a record from a counting call. ID and CreatedAt are
// assigned by RecordCount.
func NewCountRecord(source string, cfg detection.Config, res *detection.CountResult) *CountRecord {
	return &CountRecord{
		Source:    source,
		Width:     res.Width,
		Height:    res.Height,
		Count:     res.Count,
		SmartMode: cfg.SmartMode,
		Threshold: cfg.Threshold,
		Polarity:  cfg.Polarity.String(),
		MinArea:   cfg.MinArea,
		MaxArea:   cfg.MaxArea,
		Sizes:     detection.Sizes(res.Blobs),
		MeanArea:  detection.SummarizeAreas(res.Blobs).Mean,
	}
}

// Store persists count history in sqlite.
type Store struct {
	db *sql.DB
}

// Open opens (or creates) the sqlite database at path and migrates it to
// the latest schema. Use ":memory:" for a throwaway store.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// A single connection keeps a :memory: database alive across calls.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(`PRAGMA busy_timeout = 5000`); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to set pragmas: %w", err)
	}

	s := &Store{db: db}
	if err := s.MigrateUp(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping checks that the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// RecordCount inserts rec, assigning an ID and CreatedAt if they are empty.
func (s *Store) RecordCount(ctx context.Context, rec *CountRecord) error {
	if rec.ID == "" {
		rec.ID = uuid.New().String()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	if rec.Sizes == nil {
		rec.Sizes = []int{}
	}
	if rec.Polarity == "" {
		rec.Polarity = "dark"
	}

	sizes, err := json.Marshal(rec.Sizes)
	if err != nil {
		return fmt.Errorf("failed to encode sizes: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO counts (
			count_id, created_at, source, width, height, object_count,
			smart_mode, threshold, polarity, min_area, max_area,
			sizes_json, mean_area
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.CreatedAt.UnixNano(), rec.Source, rec.Width, rec.Height, rec.Count,
		rec.SmartMode, rec.Threshold, rec.Polarity, rec.MinArea, rec.MaxArea,
		string(sizes), rec.MeanArea,
	)
	if err != nil {
		return fmt.Errorf("failed to insert count record: %w", err)
	}

	monitoring.Debugf("recorded count %s: %d objects from %q", rec.ID, rec.Count, rec.Source)
	return nil
}

const selectColumns = `
	SELECT count_id, created_at, source, width, height, object_count,
	       smart_mode, threshold, polarity, min_area, max_area,
	       sizes_json, mean_area
	FROM counts`

// ListCounts returns up to limit records, newest first.
func (s *Store) ListCounts(ctx context.Context, limit int) ([]*CountRecord, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}
	if limit > MaxListLimit {
		limit = MaxListLimit
	}

	rows, err := s.db.QueryContext(ctx, selectColumns+`
		ORDER BY created_at DESC, rowid DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query counts: %w", err)
	}
	defer rows.Close()

	recs := []*CountRecord{}
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		recs = append(recs, rec)
	}
	return recs, rows.Err()
}

// GetCount returns one record by ID, or ErrNotFound.
func (s *Store) GetCount(ctx context.Context, id string) (*CountRecord, error) {
	row := s.db.QueryRowContext(ctx, selectColumns+` WHERE count_id = ?`, id)
	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	return rec, nil
}

// DeleteCount removes one record by ID, or returns ErrNotFound.
func (s *Store) DeleteCount(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM counts WHERE count_id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete count record: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check delete result: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(sc scanner) (*CountRecord, error) {
	var (
		rec       CountRecord
		createdAt int64
		sizesJSON string
	)
	err := sc.Scan(
		&rec.ID, &createdAt, &rec.Source, &rec.Width, &rec.Height, &rec.Count,
		&rec.SmartMode, &rec.Threshold, &rec.Polarity, &rec.MinArea, &rec.MaxArea,
		&sizesJSON, &rec.MeanArea,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("scan count record: %w", err)
	}

	rec.CreatedAt = time.Unix(0, createdAt).UTC()
	if err := json.Unmarshal([]byte(sizesJSON), &rec.Sizes); err != nil {
		return nil, fmt.Errorf("decode sizes for %s: %w", rec.ID, err)
	}
	if rec.Sizes == nil {
		rec.Sizes = []int{}
	}
	return &rec, nil
}

// MigrateUp runs all pending migrations up to the latest version.
// Returns nil if no migrations were needed (already at latest version).
func (s *Store) MigrateUp() error {
	m, err := s.newMigrate()
	if err != nil {
		return err
	}
	// m is not closed: closing it would close the shared *sql.DB.

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migration up failed: %w", err)
	}
	return nil
}

// MigrateVersion returns the current migration version and dirty state.
// Returns 0, false, nil if no migrations have been applied yet.
func (s *Store) MigrateVersion() (version uint, dirty bool, err error) {
	m, err := s.newMigrate()
	if err != nil {
		return 0, false, err
	}

	version, dirty, err = m.Version()
	if err != nil && errors.Is(err, migrate.ErrNilVersion) {
		return 0, false, nil
	}
	return version, dirty, err
}

func (s *Store) newMigrate() (*migrate.Migrate, error) {
	src, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return nil, fmt.Errorf("failed to open embedded migrations: %w", err)
	}

	driver, err := sqlite.WithInstance(s.db, &sqlite.Config{})
	if err != nil {
		return nil, fmt.Errorf("failed to create sqlite driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", src, "sqlite", driver)
	if err != nil {
		return nil, fmt.Errorf("failed to create migrate instance: %w", err)
	}
	m.Log = &migrateLogger{}
	return m, nil
}

// migrateLogger implements migrate.Logger
type migrateLogger struct{}

func (l *migrateLogger) Printf(format string, v ...interface{}) {
	monitoring.Logf("[migrate] "+format, v...)
}

func (l *migrateLogger) Verbose() bool {
	return monitoring.DebugEnabled()
}
