// Package sqlite archives published readings in a local SQLite database so
// history survives edits and deletions on the source sheet.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/couchcryptid/hydro-monitor-service/internal/domain"
	_ "github.com/mattn/go-sqlite3"
)

const schema = `
CREATE TABLE IF NOT EXISTS readings (
	id             INTEGER PRIMARY KEY AUTOINCREMENT,
	station        TEXT NOT NULL,
	timestamp      TEXT NOT NULL,
	operator       TEXT NOT NULL,
	day            TEXT NOT NULL,
	river_level_m  REAL,
	rain_mm        REAL,
	silting_status TEXT,
	intake_status  TEXT,
	archived_at    TEXT NOT NULL,
	UNIQUE(station, timestamp, operator)
);
CREATE INDEX IF NOT EXISTS idx_readings_station_day ON readings(station, day);`

const upsertReading = `
INSERT INTO readings(station, timestamp, operator, day, river_level_m, rain_mm, silting_status, intake_status, archived_at)
VALUES(?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(station, timestamp, operator) DO UPDATE SET
	river_level_m=excluded.river_level_m,
	rain_mm=excluded.rain_mm,
	silting_status=excluded.silting_status,
	intake_status=excluded.intake_status,
	archived_at=excluded.archived_at`

// Archive is a pipeline.Publisher backed by SQLite.
type Archive struct {
	db     *sql.DB
	logger *slog.Logger
}

// Open opens (creating if needed) the database file at path.
func Open(ctx context.Context, path string, logger *slog.Logger) (*Archive, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open archive %s: %w", path, err)
	}
	// SQLite serializes writers; one connection avoids SQLITE_BUSY.
	db.SetMaxOpenConns(1)

	a, err := New(ctx, db, logger)
	if err != nil {
		db.Close() //nolint:errcheck // already failing
		return nil, err
	}
	logger.Info("archive opened", "path", path)
	return a, nil
}

// New wraps an open database and ensures the schema exists.
func New(ctx context.Context, db *sql.DB, logger *slog.Logger) (*Archive, error) {
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return nil, fmt.Errorf("create archive schema: %w", err)
	}
	return &Archive{db: db, logger: logger}, nil
}

// Name identifies the sink in logs and metrics.
func (a *Archive) Name() string { return "sqlite" }

// Publish upserts every reading of a station in one transaction. A row is
// identified by station, timestamp and operator; later syncs overwrite the
// measured values.
func (a *Archive) Publish(ctx context.Context, station string, readings []domain.Reading) error {
	if len(readings) == 0 {
		return nil
	}
	tx, err := a.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	stmt, err := tx.PrepareContext(ctx, upsertReading)
	if err != nil {
		return fmt.Errorf("prepare upsert: %w", err)
	}
	defer stmt.Close()

	archivedAt := domain.Now().UTC().Format(time.RFC3339)
	for _, r := range readings {
		if _, err := stmt.ExecContext(ctx,
			station,
			r.Timestamp.Format(time.RFC3339),
			r.Operator,
			r.Date.String(),
			nullFloat(r.RiverLevelM),
			nullFloat(r.RainMM),
			r.SiltingStatus,
			r.IntakeStatus,
			archivedAt,
		); err != nil {
			return fmt.Errorf("upsert %s at %s: %w", station, r.Timestamp.Format(time.RFC3339), err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	a.logger.Debug("readings archived", "station", station, "count", len(readings))
	return nil
}

// Count returns how many readings are archived for station.
func (a *Archive) Count(ctx context.Context, station string) (int, error) {
	var n int
	err := a.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM readings WHERE station = ?`, station).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count %s: %w", station, err)
	}
	return n, nil
}

func (a *Archive) Close() error {
	return a.db.Close()
}

func nullFloat(v *float64) sql.NullFloat64 {
	if v == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *v, Valid: true}
}
