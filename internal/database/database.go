package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3" // SQLite3 driver

	"github.com/talisker77/media-viewer/internal/logging"
	"github.com/talisker77/media-viewer/internal/metrics"
)

// Default timeout for single database operations
const defaultTimeout = 5 * time.Second

// ErrNotFound is returned when a path is not present in the index.
var ErrNotFound = errors.New("media entry not found")

// Database manages the media index.
type Database struct {
	db     *sql.DB
	dbPath string

	// writeMu serializes all writers. Readers take no lock: WAL mode
	// gives every read a consistent snapshot, so a reader started before
	// a batch commit sees the old index and one started after sees the
	// new one, never a mix.
	writeMu sync.Mutex

	stats   IndexStats
	statsMu sync.RWMutex
}

// New opens (or creates) the index database at dbPath.
// dbPath must be the full path to the database FILE (e.g. "/database/media.db"),
// and the parent directory must already exist and be writable.
// Use startup.LoadConfig() to ensure proper directory validation before calling this.
func New(ctx context.Context, dbPath string) (*Database, error) {
	logging.Info("Database path: %s", dbPath)

	if err := diagnoseDatabasePermissions(dbPath); err != nil {
		logging.Warn("Database permission diagnostics: %v", err)
	}

	// Use WAL mode and other optimizations
	// busy_timeout helps prevent "database is locked" errors
	connStr := fmt.Sprintf("%s?_journal_mode=WAL&_synchronous=NORMAL&_cache_size=10000&_temp_store=MEMORY&_busy_timeout=5000", dbPath)

	db, err := sql.Open("sqlite3", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	if err := db.PingContext(pingCtx); err != nil {
		if closeErr := db.Close(); closeErr != nil {
			logging.Error("failed to close database after ping failure: %v", closeErr)
		}
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// Allow multiple readers while writes stay serialized in Go
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(time.Hour)

	d := &Database{
		db:     db,
		dbPath: dbPath,
	}

	if err := d.initialize(ctx); err != nil {
		if closeErr := db.Close(); closeErr != nil {
			logging.Error("failed to close database after initialization failure: %v", closeErr)
		}
		return nil, fmt.Errorf("failed to initialize database schema: %w", err)
	}

	logging.Info("Database initialized successfully at %s", dbPath)
	return d, nil
}

func (d *Database) initialize(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS media (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		path TEXT NOT NULL UNIQUE,
		name TEXT NOT NULL,
		dir_path TEXT NOT NULL,
		dir_name TEXT NOT NULL,
		type TEXT NOT NULL,
		size INTEGER NOT NULL DEFAULT 0,
		mod_time INTEGER NOT NULL,
		created_time INTEGER NOT NULL,
		taken_time INTEGER,
		has_location INTEGER NOT NULL DEFAULT 0,
		meta_title TEXT,
		meta_description TEXT,
		metadata TEXT,
		updated_at INTEGER NOT NULL DEFAULT (strftime('%s', 'now'))
	);

	CREATE INDEX IF NOT EXISTS idx_media_mod_time ON media(mod_time);
	CREATE INDEX IF NOT EXISTS idx_media_type ON media(type);
	CREATE INDEX IF NOT EXISTS idx_media_dir_path ON media(dir_path);
	CREATE INDEX IF NOT EXISTS idx_media_type_mod_time ON media(type, mod_time);
	CREATE INDEX IF NOT EXISTS idx_media_taken_time ON media(taken_time);
	`

	_, err := d.db.ExecContext(ctx, schema)
	return err
}

// Close closes the database connection.
func (d *Database) Close() error {
	return d.db.Close()
}

// upsertSQL writes one entry, replacing any previous row for the path.
// The metadata blob and its derived filter columns are always rewritten
// together so they cannot drift apart.
const upsertSQL = `
INSERT INTO media (path, name, dir_path, dir_name, type, size, mod_time, created_time,
	taken_time, has_location, meta_title, meta_description, metadata, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, strftime('%s', 'now'))
ON CONFLICT(path) DO UPDATE SET
	name = excluded.name,
	dir_path = excluded.dir_path,
	dir_name = excluded.dir_name,
	type = excluded.type,
	size = excluded.size,
	mod_time = excluded.mod_time,
	created_time = excluded.created_time,
	taken_time = excluded.taken_time,
	has_location = excluded.has_location,
	meta_title = excluded.meta_title,
	meta_description = excluded.meta_description,
	metadata = excluded.metadata,
	updated_at = strftime('%s', 'now')
`

func upsertArgs(entry *MediaEntry) ([]interface{}, error) {
	var metaJSON sql.NullString
	var takenTime sql.NullInt64
	var metaTitle, metaDescription sql.NullString
	hasLocation := 0

	if entry.Metadata != nil {
		raw, err := json.Marshal(entry.Metadata)
		if err != nil {
			return nil, fmt.Errorf("marshaling metadata for %s: %w", entry.Path, err)
		}
		metaJSON = sql.NullString{String: string(raw), Valid: true}

		if taken, ok := entry.Metadata.TakenAt(); ok {
			takenTime = sql.NullInt64{Int64: taken.Unix(), Valid: true}
		}
		if entry.Metadata.HasLocation() {
			hasLocation = 1
		}
		if entry.Metadata.Title != nil {
			metaTitle = sql.NullString{String: *entry.Metadata.Title, Valid: true}
		}
		if entry.Metadata.Description != nil {
			metaDescription = sql.NullString{String: *entry.Metadata.Description, Valid: true}
		}
	}

	return []interface{}{
		entry.Path,
		entry.Name,
		entry.Directory,
		filepath.Base(entry.Directory),
		entry.Type,
		entry.Size,
		entry.Modified.Unix(),
		entry.Created.Unix(),
		takenTime,
		hasLocation,
		metaTitle,
		metaDescription,
		metaJSON,
	}, nil
}

// UpsertBatch writes all entries in a single transaction. Either every
// entry lands or none does; the first failure rolls the whole batch back.
func (d *Database) UpsertBatch(ctx context.Context, entries []*MediaEntry) error {
	if len(entries) == 0 {
		return nil
	}

	d.writeMu.Lock()
	defer d.writeMu.Unlock()

	txStart := time.Now()
	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin batch transaction: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, upsertSQL)
	if err != nil {
		return d.endBatch(tx, txStart, fmt.Errorf("failed to prepare upsert: %w", err))
	}
	defer stmt.Close()

	for _, entry := range entries {
		args, err := upsertArgs(entry)
		if err != nil {
			return d.endBatch(tx, txStart, err)
		}
		if _, err := stmt.ExecContext(ctx, args...); err != nil {
			return d.endBatch(tx, txStart, fmt.Errorf("failed to upsert %s: %w", entry.Path, err))
		}
	}

	metrics.DBRowsAffected.WithLabelValues("upsert_batch").Observe(float64(len(entries)))
	return d.endBatch(tx, txStart, nil)
}

// UpsertOne writes a single entry in its own transaction.
func (d *Database) UpsertOne(ctx context.Context, entry *MediaEntry) error {
	start := time.Now()
	var err error
	defer func() { recordQuery("upsert_one", start, err) }()

	args, err := upsertArgs(entry)
	if err != nil {
		return err
	}

	d.writeMu.Lock()
	defer d.writeMu.Unlock()

	opCtx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var result sql.Result
	result, err = d.db.ExecContext(opCtx, upsertSQL, args...)
	if err != nil {
		return fmt.Errorf("failed to upsert %s: %w", entry.Path, err)
	}
	if rows, raErr := result.RowsAffected(); raErr == nil && rows > 0 {
		metrics.DBRowsAffected.WithLabelValues("upsert_one").Observe(float64(rows))
	}
	return nil
}

// Remove deletes the entry for path. Removing an absent path is a no-op.
func (d *Database) Remove(ctx context.Context, path string) error {
	start := time.Now()
	var err error
	defer func() { recordQuery("remove", start, err) }()

	d.writeMu.Lock()
	defer d.writeMu.Unlock()

	opCtx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var result sql.Result
	result, err = d.db.ExecContext(opCtx, "DELETE FROM media WHERE path = ?", path)
	if err != nil {
		return fmt.Errorf("failed to remove %s: %w", path, err)
	}
	if rows, raErr := result.RowsAffected(); raErr == nil && rows > 0 {
		metrics.DBRowsAffected.WithLabelValues("remove").Observe(float64(rows))
	}
	return nil
}

// DeleteNotSeenSince removes entries whose updated_at predates cutoff.
// The scanner calls this after a full traversal to drop files that no
// longer exist on disk.
func (d *Database) DeleteNotSeenSince(ctx context.Context, cutoff time.Time) (int64, error) {
	start := time.Now()
	var err error
	defer func() { recordQuery("delete_not_seen", start, err) }()

	d.writeMu.Lock()
	defer d.writeMu.Unlock()

	opCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	var result sql.Result
	result, err = d.db.ExecContext(opCtx, "DELETE FROM media WHERE updated_at < ?", cutoff.Unix())
	if err != nil {
		return 0, err
	}

	rowsAffected, err := result.RowsAffected()
	if err == nil && rowsAffected > 0 {
		metrics.DBRowsAffected.WithLabelValues("delete_not_seen").Observe(float64(rowsAffected))
	}
	return rowsAffected, err
}

// GetByPath retrieves a single entry by its exact path.
// Returns ErrNotFound when the path is not indexed.
func (d *Database) GetByPath(ctx context.Context, path string) (*MediaEntry, error) {
	start := time.Now()
	var err error
	defer func() { recordQuery("get_by_path", start, err) }()

	opCtx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	row := d.db.QueryRowContext(opCtx, `
		SELECT path, name, dir_path, type, size, mod_time, created_time, metadata
		FROM media WHERE path = ?
	`, path)

	entry, scanErr := scanEntry(row)
	if scanErr != nil {
		if errors.Is(scanErr, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		err = scanErr
		return nil, fmt.Errorf("failed to load %s: %w", path, scanErr)
	}
	return entry, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanEntry(row rowScanner) (*MediaEntry, error) {
	var entry MediaEntry
	var modTime, createdTime int64
	var metaJSON sql.NullString

	if err := row.Scan(
		&entry.Path, &entry.Name, &entry.Directory, &entry.Type,
		&entry.Size, &modTime, &createdTime, &metaJSON,
	); err != nil {
		return nil, err
	}

	entry.Modified = time.Unix(modTime, 0).UTC()
	entry.Created = time.Unix(createdTime, 0).UTC()

	if metaJSON.Valid && metaJSON.String != "" {
		if err := json.Unmarshal([]byte(metaJSON.String), &entry.Metadata); err != nil {
			// A blob we wrote should always parse; surface it loudly.
			logging.Error("Corrupt metadata blob for %s: %v", entry.Path, err)
			entry.Metadata = nil
		}
	}

	return &entry, nil
}

// UpdateStats replaces the cached index statistics.
func (d *Database) UpdateStats(stats IndexStats) {
	d.statsMu.Lock()
	defer d.statsMu.Unlock()
	d.stats = stats
}

// GetStats returns the cached index statistics.
func (d *Database) GetStats() IndexStats {
	d.statsMu.RLock()
	defer d.statsMu.RUnlock()
	return d.stats
}

// CalculateStats recomputes statistics from the index.
func (d *Database) CalculateStats(ctx context.Context) (IndexStats, error) {
	start := time.Now()
	var err error
	defer func() { recordQuery("calculate_stats", start, err) }()

	opCtx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var stats IndexStats
	err = d.db.QueryRowContext(opCtx, `
		SELECT COUNT(*),
			COALESCE(SUM(CASE WHEN type = ? THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN type = ? THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(has_location), 0),
			COALESCE(SUM(size), 0)
		FROM media
	`, TypeImage, TypeVideo).Scan(
		&stats.TotalFiles, &stats.TotalImages, &stats.TotalVideos,
		&stats.WithLocation, &stats.TotalSize,
	)
	if err != nil {
		return IndexStats{}, fmt.Errorf("failed to calculate stats: %w", err)
	}

	stats.LastIndexed = time.Now().UTC()
	return stats, nil
}

// recordQuery records database query metrics
func recordQuery(operation string, start time.Time, err error) {
	duration := time.Since(start).Seconds()
	status := "success"
	if err != nil {
		status = "error"
	}
	metrics.DBQueryTotal.WithLabelValues(operation, status).Inc()
	metrics.DBQueryDuration.WithLabelValues(operation).Observe(duration)
}

// endBatch commits or rolls back a batch transaction and records its duration.
func (d *Database) endBatch(tx *sql.Tx, txStart time.Time, err error) error {
	duration := time.Since(txStart).Seconds()

	if err != nil {
		metrics.DBTransactionDuration.WithLabelValues("rollback").Observe(duration)
		if rbErr := tx.Rollback(); rbErr != nil {
			return errors.Join(err, fmt.Errorf("rollback also failed: %w", rbErr))
		}
		return err
	}

	metrics.DBTransactionDuration.WithLabelValues("commit").Observe(duration)
	return tx.Commit()
}

// UpdateDBMetrics updates database connection metrics
func (d *Database) UpdateDBMetrics() {
	stats := d.db.Stats()
	metrics.DBConnectionsOpen.Set(float64(stats.OpenConnections))
}

// diagnoseDatabasePermissions checks database directory and file permissions
func diagnoseDatabasePermissions(dbPath string) error {
	dir := filepath.Dir(dbPath)

	dirInfo, err := os.Stat(dir)
	if err != nil {
		return fmt.Errorf("cannot stat database directory: %w", err)
	}

	logging.Debug("Database directory: %s (mode: %v)", dir, dirInfo.Mode())

	testFile := filepath.Join(dir, ".perm-test")
	if err := os.WriteFile(testFile, []byte("test"), 0o600); err != nil {
		return fmt.Errorf("database directory not writable: %w", err)
	}
	_ = os.Remove(testFile)
	logging.Debug("Database directory is writable")

	if dbInfo, err := os.Stat(dbPath); err == nil {
		logging.Debug("Database file exists: %s (mode: %v, size: %d bytes)", dbPath, dbInfo.Mode(), dbInfo.Size())
		if dbInfo.Mode().Perm()&0o200 == 0 {
			logging.Warn("Database file is read-only! Mode: %v", dbInfo.Mode())
		}
	}

	// WAL sidecars must stay writable or every write will fail
	for _, suffix := range []string{"-wal", "-shm"} {
		sidePath := dbPath + suffix
		if sideInfo, err := os.Stat(sidePath); err == nil {
			logging.Debug("Sidecar file exists: %s (mode: %v, size: %d bytes)", sidePath, sideInfo.Mode(), sideInfo.Size())
			if sideInfo.Mode().Perm()&0o200 == 0 {
				logging.Warn("Sidecar file is read-only! Mode: %v - this will cause write failures", sideInfo.Mode())
				if chmodErr := os.Chmod(sidePath, 0o600); chmodErr != nil {
					logging.Error("Failed to fix sidecar file permissions: %v", chmodErr)
				} else {
					logging.Info("Fixed sidecar file permissions")
				}
			}
		}
	}

	return nil
}
