/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */


package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	applog "vocabgrid/internal/log"
	"vocabgrid/internal/version"

	// Pure-Go SQLite driver (CGO-free)
	_ "modernc.org/sqlite"
)

const (
	// IndexDirName holds the per-workspace image cache and history.
	IndexDirName  = ".vgs"
	IndexFileName = "index.sqlite"

	// schemaVersion is the newest entry of migrations.
	schemaVersion = 2

	openTimeout = 5 * time.Second
)

// IndexPath returns the location of the workspace's SQLite index.
func IndexPath(root string) string {
	return filepath.Join(root, IndexDirName, IndexFileName)
}

func indexDSN(path string) string {
	return fmt.Sprintf("file:%s?cache=shared&_pragma=busy_timeout(5000)", filepath.ToSlash(path))
}

// metaDDL is the bookkeeping every index carries regardless of its version.
var metaDDL = []string{
	`CREATE TABLE IF NOT EXISTS meta (
		key   TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);`,
	`CREATE TABLE IF NOT EXISTS version (
		id          INTEGER PRIMARY KEY CHECK(id=1),
		schema      INTEGER NOT NULL,
		app         TEXT,
		created_at  TEXT NOT NULL,
		updated_at  TEXT NOT NULL
	);`,
}

// cacheDDL is the current shape of the image cache and arrangement history.
// Image keys are vocab_{id} and collage_{layout}_{cell}; history streams
// are the board modes.
var cacheDDL = []string{
	`CREATE TABLE IF NOT EXISTS images (
		key          TEXT PRIMARY KEY,
		mime         TEXT    NOT NULL DEFAULT 'image/png',
		blob         BLOB    NOT NULL,
		size         INTEGER NOT NULL DEFAULT 0,
		updated_at   TEXT    NOT NULL,
		last_access  TEXT
	);`,
	`CREATE INDEX IF NOT EXISTS idx_images_access ON images(last_access);`,
	`CREATE TABLE IF NOT EXISTS history (
		id     INTEGER PRIMARY KEY,
		stream TEXT    NOT NULL,
		kind   TEXT    NOT NULL CHECK(kind IN ('undo','redo')),
		ts     TEXT    NOT NULL,
		blob   BLOB    NOT NULL
	);`,
	`CREATE INDEX IF NOT EXISTS idx_history_stream ON history(stream, kind, id);`,
}

// migration upgrades an index from to-1 to to. Each runs in its own
// transaction together with the version bump.
type migration struct {
	to   int
	name string
	up   func(ctx context.Context, tx *sql.Tx) error
}

var migrations = []migration{
	{to: 2, name: "image size and access tracking", up: imagesV2},
}

// InitOrOpenIndex opens .vgs/index.sqlite under root, creating it when
// missing. The database runs in WAL mode with a single connection and is
// migrated to the current schema before it is returned.
func InitOrOpenIndex(root string) (*sql.DB, error) {
	l := applog.WithOperation(applog.WithComponent("storage"), "index_open").With(slog.String("root", root))
	if strings.TrimSpace(root) == "" {
		return nil, errors.New("workspace root is required")
	}
	if err := os.MkdirAll(filepath.Join(root, IndexDirName), 0o755); err != nil {
		return nil, fmt.Errorf("create %s dir: %w", IndexDirName, err)
	}
	path := IndexPath(root)
	db, err := sql.Open("sqlite", indexDSN(path))
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	ctx, cancel := context.WithTimeout(context.Background(), openTimeout)
	defer cancel()
	if err := prepareIndex(ctx, db, l); err != nil {
		_ = db.Close()
		l.Error("index unusable", slog.Any("err", err))
		return nil, err
	}
	l.Debug("index ready", slog.String("path", path))
	return db, nil
}

func prepareIndex(ctx context.Context, db *sql.DB, l *slog.Logger) error {
	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL;"); err != nil {
		return fmt.Errorf("enable WAL: %w", err)
	}
	if _, err := db.ExecContext(ctx, "PRAGMA foreign_keys=ON;"); err != nil {
		l.Warn("foreign keys unavailable", slog.Any("err", err))
	}
	if err := execAll(ctx, db, metaDDL); err != nil {
		return fmt.Errorf("create meta tables: %w", err)
	}
	cur, err := stampVersion(ctx, db)
	if err != nil {
		return err
	}
	// Older tables gain their columns before cacheDDL indexes them.
	if err := migrate(ctx, db, cur, l); err != nil {
		return err
	}
	if err := execAll(ctx, db, cacheDDL); err != nil {
		return fmt.Errorf("create cache tables: %w", err)
	}
	return nil
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func execAll(ctx context.Context, db execer, stmts []string) error {
	for _, q := range stmts {
		if _, err := db.ExecContext(ctx, q); err != nil {
			return err
		}
	}
	return nil
}

// stampVersion records the running app version and returns the stored
// schema. A fresh index starts at schemaVersion.
func stampVersion(ctx context.Context, db *sql.DB) (int, error) {
	now := time.Now().UTC().Format(time.RFC3339)
	if _, err := db.ExecContext(ctx,
		`INSERT INTO version (id, schema, app, created_at, updated_at) VALUES(1, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET app=excluded.app, updated_at=excluded.updated_at`,
		schemaVersion, version.String(), now, now); err != nil {
		return 0, fmt.Errorf("stamp version: %w", err)
	}
	var cur int
	if err := db.QueryRowContext(ctx, `SELECT schema FROM version WHERE id=1`).Scan(&cur); err != nil {
		return 0, fmt.Errorf("read schema version: %w", err)
	}
	return cur, nil
}

func migrate(ctx context.Context, db *sql.DB, cur int, l *slog.Logger) error {
	if cur > schemaVersion {
		l.Warn("index schema is newer than this build", slog.Int("schema", cur), slog.Int("supported", schemaVersion))
		return nil
	}
	for _, m := range migrations {
		if m.to <= cur {
			continue
		}
		tx, err := db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("migration %d: %w", m.to, err)
		}
		if err := m.up(ctx, tx); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("migration %d (%s): %w", m.to, m.name, err)
		}
		if _, err := tx.ExecContext(ctx, `UPDATE version SET schema=?, updated_at=? WHERE id=1`,
			m.to, time.Now().UTC().Format(time.RFC3339)); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("migration %d: %w", m.to, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("migration %d commit: %w", m.to, err)
		}
		l.Info("index migrated", slog.Int("schema", m.to), slog.String("step", m.name))
	}
	return nil
}

// imagesV2 adds size, last_access and mime to a v1 images table and
// backfills sizes. Without an images table there is nothing to upgrade.
func imagesV2(ctx context.Context, tx *sql.Tx) error {
	cols, err := tableColumns(ctx, tx, "images")
	if err != nil || len(cols) == 0 {
		return err
	}
	var steps []string
	if !cols["size"] {
		steps = append(steps,
			`ALTER TABLE images ADD COLUMN size INTEGER NOT NULL DEFAULT 0`,
			`UPDATE images SET size = COALESCE(length(blob), 0)`)
	}
	if !cols["last_access"] {
		steps = append(steps, `ALTER TABLE images ADD COLUMN last_access TEXT`)
	}
	if !cols["mime"] {
		steps = append(steps, `ALTER TABLE images ADD COLUMN mime TEXT NOT NULL DEFAULT 'image/png'`)
	}
	return execAll(ctx, tx, steps)
}

func tableColumns(ctx context.Context, tx *sql.Tx, table string) (map[string]bool, error) {
	rows, err := tx.QueryContext(ctx, `SELECT name FROM pragma_table_info(?)`, table)
	if err != nil {
		return nil, fmt.Errorf("columns of %s: %w", table, err)
	}
	defer rows.Close()
	cols := map[string]bool{}
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		cols[name] = true
	}
	return cols, rows.Err()
}

// DetectAndRebuildIndex replaces an index that cannot be opened, fails
// SQLite's quick check or lacks the images table. The damaged file is
// copied to .vgs/backups first and the new index starts empty, so cached
// images are generated or uploaded again on demand. It reports whether a
// rebuild happened.
func DetectAndRebuildIndex(ctx context.Context, root string) (bool, error) {
	reason := ""
	db, err := InitOrOpenIndex(root)
	if err != nil {
		reason = err.Error()
	} else {
		reason = healthProblem(ctx, db)
		_ = db.Close()
	}
	if reason == "" {
		return false, nil
	}

	path := IndexPath(root)
	applog.WithComponent("storage").Warn("rebuilding index", slog.String("path", path), slog.String("reason", reason))
	if bak, berr := backupIndexFile(path); berr != nil {
		applog.WithComponent("storage").Warn("index backup failed", slog.Any("err", berr))
	} else if bak != "" {
		applog.WithComponent("storage").Info("index backed up", slog.String("path", bak))
	}
	for _, p := range []string{path, path + "-wal", path + "-shm"} {
		_ = os.Remove(p)
	}
	fresh, err := InitOrOpenIndex(root)
	if err != nil {
		return false, fmt.Errorf("rebuild index (%s): %w", reason, err)
	}
	return true, fresh.Close()
}

// healthProblem returns a description of what is wrong with db, or "".
func healthProblem(ctx context.Context, db *sql.DB) string {
	var res string
	if err := db.QueryRowContext(ctx, `PRAGMA quick_check;`).Scan(&res); err != nil {
		return "quick_check: " + err.Error()
	}
	if !strings.EqualFold(strings.TrimSpace(res), "ok") {
		return "quick_check: " + res
	}
	if _, err := db.ExecContext(ctx, `SELECT 1 FROM images LIMIT 1;`); err != nil {
		return "images table: " + err.Error()
	}
	return ""
}

// backupIndexFile copies the index into .vgs/backups with a timestamp
// suffix. A missing index yields "" and no error.
func backupIndexFile(indexPath string) (string, error) {
	src, err := os.Open(indexPath)
	if errors.Is(err, os.ErrNotExist) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	defer src.Close()
	dir := filepath.Join(filepath.Dir(indexPath), BackupsDirName)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	bak := filepath.Join(dir, fmt.Sprintf("%s.%s.bak", filepath.Base(indexPath), time.Now().Format("20060102-150405")))
	dst, err := os.Create(bak)
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(dst, src); err != nil {
		_ = dst.Close()
		return "", err
	}
	return bak, dst.Close()
}
