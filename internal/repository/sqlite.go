package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/mr1hm/go-rupture-hazard/internal/geo"
	"github.com/mr1hm/go-rupture-hazard/internal/models"
	"github.com/mr1hm/go-rupture-hazard/internal/rupture"
	"github.com/mr1hm/go-rupture-hazard/internal/tectonic"
)

type SQLiteDB struct {
	db *sql.DB
}

func NewSQLiteDB(path string) (*SQLiteDB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("error opening database: %w", err)
	}

	// :memory: databases are per-connection
	if path == ":memory:" {
		db.SetMaxOpenConns(1)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("error while pinging database: %w", err)
	}

	s := &SQLiteDB{
		db: db,
	}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("error while migrating to database: %w", err)
	}

	return s, nil
}

func (s *SQLiteDB) migrate() error {
	schema := `
		CREATE TABLE IF NOT EXISTS events (
			id TEXT PRIMARY KEY,
			source TEXT NOT NULL,
			title TEXT NOT NULL,
			magnitude REAL NOT NULL,
			rake REAL NOT NULL,
			tectonic_region_type TEXT NOT NULL,
			longitude REAL NOT NULL,
			latitude REAL NOT NULL,
			depth REAL NOT NULL,
			surface_kind TEXT NOT NULL,
			surface TEXT NOT NULL,
			occurrence_rate REAL,
			tom_kind TEXT,
			time_span REAL,
			occurred_at INTEGER,
			created_at INTEGER NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_events_occurred_at ON events(occurred_at);
		CREATE INDEX IF NOT EXISTS idx_events_trt ON events(tectonic_region_type);
		CREATE INDEX IF NOT EXISTS idx_events_magnitude ON events(magnitude);
	`

	_, err := s.db.Exec(schema)
	return err
}

func (s *SQLiteDB) Close() error {
	return s.db.Close()
}

// DB exposes the handle for metrics collectors.
func (s *SQLiteDB) DB() *sql.DB {
	return s.db
}

const eventColumns = `id, source, title, magnitude, rake, tectonic_region_type,
	longitude, latitude, depth, surface_kind, surface,
	occurrence_rate, tom_kind, time_span, occurred_at, created_at`

func (s *SQLiteDB) Add(ctx context.Context, e *models.Event) error {
	r := e.Rupture()
	if r == nil {
		return fmt.Errorf("event %s has no rupture", e.ID)
	}

	surfaceKind, surfaceData, err := encodeSurface(r.Surface())
	if err != nil {
		return fmt.Errorf("error encoding surface for %s: %w", e.ID, err)
	}

	var (
		rate     sql.NullFloat64
		tomKind  sql.NullString
		timeSpan sql.NullFloat64
	)
	if e.Probabilistic != nil {
		kind, span, err := encodeModel(e.Probabilistic.TemporalOccurrenceModel())
		if err != nil {
			return fmt.Errorf("error encoding occurrence model for %s: %w", e.ID, err)
		}
		rate = sql.NullFloat64{Float64: e.Probabilistic.OccurrenceRate(), Valid: true}
		tomKind = sql.NullString{String: kind, Valid: true}
		timeSpan = sql.NullFloat64{Float64: span, Valid: true}
	}

	var occurredAt sql.NullInt64
	if !e.OccurredAt.IsZero() {
		occurredAt = sql.NullInt64{Int64: e.OccurredAt.UnixMilli(), Valid: true}
	}

	h := r.Hypocenter()
	_, err = s.db.ExecContext(ctx, `INSERT INTO events (`+eventColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.Source, e.Title, r.Magnitude(), r.Rake(), string(r.TectonicRegionType()),
		h.Longitude, h.Latitude, h.Depth, surfaceKind, string(surfaceData),
		rate, tomKind, timeSpan, occurredAt, e.CreatedAt.UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("error inserting event %s: %w", e.ID, err)
	}
	return nil
}

func (s *SQLiteDB) GetByID(ctx context.Context, id string) (*models.Event, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+eventColumns+` FROM events WHERE id = ?`, id)
	e, err := scanEvent(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return e, nil
}

func (s *SQLiteDB) Exists(ctx context.Context, id string) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx, `SELECT 1 FROM events WHERE id = ?`, id).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("error checking event %s: %w", id, err)
	}
	return true, nil
}

func (s *SQLiteDB) ListEvents(ctx context.Context, opts Filter) ([]models.Event, error) {
	var (
		where []string
		args  []any
	)
	if opts.Since != nil {
		where = append(where, "COALESCE(occurred_at, created_at) >= ?")
		args = append(args, opts.Since.UnixMilli())
	}
	if opts.TectonicRegionType != nil {
		where = append(where, "tectonic_region_type = ?")
		args = append(args, string(*opts.TectonicRegionType))
	}
	if opts.MinMagnitude != nil {
		where = append(where, "magnitude >= ?")
		args = append(args, *opts.MinMagnitude)
	}
	if opts.ProbabilisticOnly {
		where = append(where, "occurrence_rate IS NOT NULL")
	}

	query := `SELECT ` + eventColumns + ` FROM events`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY COALESCE(occurred_at, created_at) DESC, id"
	if opts.Limit > 0 {
		query += " LIMIT ? OFFSET ?"
		args = append(args, opts.Limit, opts.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("error listing events: %w", err)
	}
	defer rows.Close()

	var events []models.Event
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		events = append(events, *e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating events: %w", err)
	}
	return events, nil
}

func (s *SQLiteDB) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM events`).Scan(&n); err != nil {
		return 0, fmt.Errorf("error counting events: %w", err)
	}
	return n, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

// scanEvent rebuilds an event through the rupture constructors, so a row
// that breaks a rupture invariant comes back as an error.
func scanEvent(row rowScanner) (*models.Event, error) {
	var (
		e                    models.Event
		mag, rake            float64
		trt                  string
		lon, lat, depth      float64
		surfaceKind, surface string
		rate                 sql.NullFloat64
		tomKind              sql.NullString
		timeSpan             sql.NullFloat64
		occurredAt           sql.NullInt64
		createdAt            int64
	)
	err := row.Scan(&e.ID, &e.Source, &e.Title, &mag, &rake, &trt,
		&lon, &lat, &depth, &surfaceKind, &surface,
		&rate, &tomKind, &timeSpan, &occurredAt, &createdAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("error scanning event: %w", err)
	}

	s, err := decodeSurface(surfaceKind, []byte(surface))
	if err != nil {
		return nil, fmt.Errorf("error decoding surface for %s: %w", e.ID, err)
	}
	hypo := &geo.Point{Longitude: lon, Latitude: lat, Depth: depth}

	if rate.Valid {
		model, err := decodeModel(tomKind.String, timeSpan.Float64)
		if err != nil {
			return nil, fmt.Errorf("error decoding occurrence model for %s: %w", e.ID, err)
		}
		pr, err := rupture.NewProbabilistic(mag, rake, tectonic.RegionType(trt), hypo, s, rate.Float64, model)
		if err != nil {
			return nil, fmt.Errorf("stored event %s is invalid: %w", e.ID, err)
		}
		e.Probabilistic = pr
	} else {
		r, err := rupture.New(mag, rake, tectonic.RegionType(trt), hypo, s)
		if err != nil {
			return nil, fmt.Errorf("stored event %s is invalid: %w", e.ID, err)
		}
		e.Deterministic = r
	}

	if occurredAt.Valid {
		e.OccurredAt = time.UnixMilli(occurredAt.Int64).UTC()
	}
	e.CreatedAt = time.UnixMilli(createdAt).UTC()
	return &e, nil
}
