// Package repository provides data access implementations
package repository

import (
	"database/sql"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/hydrowatch/riverdash/internal/entities"
)

// HistoryRepository defines the persistence operations for the level-history
// window backing the dashboard charts.
type HistoryRepository interface {
	SaveRecords(records []entities.Record) error
	GetSeries(stationID string, since time.Time) ([]entities.Record, error)
	GetLastUpdateTime() (time.Time, error)
	Prune(before time.Time) error
	Close() error
}

// SQLiteHistoryRepository implements HistoryRepository using SQLite.
type SQLiteHistoryRepository struct {
	db     *sql.DB
	DBPath string
}

// NewSQLiteHistoryRepository creates and initializes a new SQLite repository.
func NewSQLiteHistoryRepository(dbPath string) (*SQLiteHistoryRepository, error) {
	if dbPath == "" {
		dbDir := "data"
		if err := os.MkdirAll(dbDir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %v", err)
		}
		dbPath = filepath.Join(dbDir, "levelhistory.db")
	}

	log.Printf("Opening database at %s", dbPath)
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %v", err)
	}

	createTableSQL := `
	CREATE TABLE IF NOT EXISTS level_history (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		station_id TEXT NOT NULL,
		level REAL NOT NULL,
		flow_rate REAL NOT NULL DEFAULT 0,
		source TEXT NOT NULL,
		observed_at INTEGER NOT NULL,
		UNIQUE(station_id, observed_at)
	);
	CREATE INDEX IF NOT EXISTS idx_station ON level_history(station_id);
	CREATE INDEX IF NOT EXISTS idx_observed_at ON level_history(observed_at);`

	_, err = db.Exec(createTableSQL)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create tables: %v", err)
	}

	return &SQLiteHistoryRepository{
		db:     db,
		DBPath: dbPath,
	}, nil
}

// Close closes the database connection.
func (r *SQLiteHistoryRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// SaveRecords upserts a batch of canonical records. Re-fetching the same
// observation refreshes its level and source rather than duplicating it.
func (r *SQLiteHistoryRepository) SaveRecords(records []entities.Record) error {
	tx, err := r.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %v", err)
	}

	stmt, err := tx.Prepare(`
		INSERT INTO level_history(station_id, level, flow_rate, source, observed_at)
		VALUES(?, ?, ?, ?, ?)
		ON CONFLICT(station_id, observed_at) DO UPDATE SET
		level=excluded.level,
		flow_rate=excluded.flow_rate,
		source=excluded.source
	`)
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("failed to prepare statement: %v", err)
	}
	defer stmt.Close()

	for _, rec := range records {
		_, err := stmt.Exec(
			rec.StationID,
			rec.Level,
			rec.FlowRate,
			string(rec.Source),
			rec.Timestamp,
		)
		if err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to insert record for %s at %s: %v",
				rec.StationID, rec.ObservedAt.Format(time.RFC3339), err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %v", err)
	}

	log.Printf("Successfully saved %d level records", len(records))
	return nil
}

// GetSeries retrieves one station's records observed at or after the cutoff,
// sorted ascending by observation time.
func (r *SQLiteHistoryRepository) GetSeries(stationID string, since time.Time) ([]entities.Record, error) {
	query := `
		SELECT station_id, level, flow_rate, source, observed_at
		FROM level_history
		WHERE station_id = ? AND observed_at >= ?
		ORDER BY observed_at ASC`

	rows, err := r.db.Query(query, stationID, since.UnixMilli())
	if err != nil {
		return nil, fmt.Errorf("failed to query series for %s: %v", stationID, err)
	}
	defer rows.Close()

	var result []entities.Record
	for rows.Next() {
		var rec entities.Record
		var source string
		if err := rows.Scan(
			&rec.StationID,
			&rec.Level,
			&rec.FlowRate,
			&source,
			&rec.Timestamp,
		); err != nil {
			return nil, fmt.Errorf("failed to scan row: %v", err)
		}
		rec.Source = entities.Source(source)
		rec.ObservedAt = time.UnixMilli(rec.Timestamp).In(entities.KST)
		result = append(result, rec)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error during row iteration: %v", err)
	}

	return result, nil
}

// GetLastUpdateTime returns the most recent observation time in the store.
func (r *SQLiteHistoryRepository) GetLastUpdateTime() (time.Time, error) {
	var millis sql.NullInt64
	err := r.db.QueryRow("SELECT MAX(observed_at) FROM level_history").Scan(&millis)
	if err != nil {
		if err == sql.ErrNoRows {
			return time.Time{}, nil
		}
		return time.Time{}, fmt.Errorf("failed to get last update time: %v", err)
	}
	if !millis.Valid {
		return time.Time{}, nil
	}
	return time.UnixMilli(millis.Int64).In(entities.KST), nil
}

// Prune drops records observed before the cutoff; the dashboard only charts
// a 3-24 hour window, so the table stays small.
func (r *SQLiteHistoryRepository) Prune(before time.Time) error {
	res, err := r.db.Exec("DELETE FROM level_history WHERE observed_at < ?", before.UnixMilli())
	if err != nil {
		return fmt.Errorf("failed to prune history: %v", err)
	}
	if n, err := res.RowsAffected(); err == nil && n > 0 {
		log.Printf("Pruned %d level records older than %s", n, before.Format(time.RFC3339))
	}
	return nil
}
