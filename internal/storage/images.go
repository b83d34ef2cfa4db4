/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * Licensed under the Apache License, Version 2.0.
 */

package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"vocabgrid/internal/domain"
	applog "vocabgrid/internal/log"
)

// DefaultImageCapBytes bounds the persisted image cache when no cap is configured.
const DefaultImageCapBytes int64 = 256 * 1024 * 1024 // 256MB

// ImageStore persists cell images in the workspace index. It satisfies
// imagecache.BlobStore. Rows are tracked by size and last access so the
// table can be trimmed least-recently-used first.
type ImageStore struct {
	db       *sql.DB
	capBytes int64
	log      *slog.Logger
}

// NewImageStore wraps an open index. capBytes <= 0 disables eviction.
func NewImageStore(db *sql.DB, capBytes int64) *ImageStore {
	return &ImageStore{db: db, capBytes: capBytes, log: applog.WithComponent("storage.images")}
}

func stamp() string { return time.Now().UTC().Format(time.RFC3339Nano) }

// All returns every stored image keyed by cache key.
func (s *ImageStore) All(ctx context.Context) (map[string]domain.Image, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT key, mime, blob FROM images`)
	if err != nil {
		return nil, fmt.Errorf("query images: %w", err)
	}
	defer rows.Close()
	out := make(map[string]domain.Image)
	for rows.Next() {
		var key, mime string
		var blob []byte
		if err := rows.Scan(&key, &mime, &blob); err != nil {
			return nil, err
		}
		out[key] = domain.Image{Data: blob, MIMEType: mime}
	}
	return out, rows.Err()
}

// Get returns the image for key and touches its access time. A missing key yields ok=false.
func (s *ImageStore) Get(ctx context.Context, key string) (domain.Image, bool, error) {
	var img domain.Image
	err := s.db.QueryRowContext(ctx, `SELECT mime, blob FROM images WHERE key=?`, key).Scan(&img.MIMEType, &img.Data)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Image{}, false, nil
	}
	if err != nil {
		return domain.Image{}, false, fmt.Errorf("query image: %w", err)
	}
	// touch
	_, _ = s.db.ExecContext(ctx, `UPDATE images SET last_access=? WHERE key=?`, stamp(), key)
	return img, true, nil
}

// Put upserts an image and enforces the size cap via LRU eviction.
// The row just written is never evicted.
func (s *ImageStore) Put(ctx context.Context, key string, img domain.Image) error {
	if strings.TrimSpace(key) == "" {
		return errors.New("image key is required")
	}
	if img.Empty() {
		return s.Delete(ctx, key)
	}
	mime := img.MIMEType
	if mime == "" {
		mime = "image/png"
	}
	now := stamp()
	_, err := s.db.ExecContext(ctx, `INSERT INTO images(key,mime,blob,size,updated_at,last_access)
		VALUES(?,?,?,?,?,?)
		ON CONFLICT(key) DO UPDATE SET mime=excluded.mime, blob=excluded.blob, size=excluded.size, updated_at=excluded.updated_at, last_access=excluded.last_access`,
		key, mime, img.Data, len(img.Data), now, now)
	if err != nil {
		return fmt.Errorf("upsert image: %w", err)
	}
	if s.capBytes > 0 {
		n, err := s.EvictToFit(ctx, s.capBytes, key)
		if err != nil {
			return err
		}
		if n > 0 {
			s.log.Debug("evicted images", slog.Int("count", n), slog.Int64("cap", s.capBytes))
		}
	}
	return nil
}

// Delete removes key. Deleting a missing key is not an error.
func (s *ImageStore) Delete(ctx context.Context, key string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM images WHERE key=?`, key); err != nil {
		return fmt.Errorf("delete image: %w", err)
	}
	return nil
}

// EvictToFit deletes least-recently-used rows until total size <= capBytes.
// Rows whose key is listed in keep are skipped. It returns the number of rows removed.
func (s *ImageStore) EvictToFit(ctx context.Context, capBytes int64, keep ...string) (int, error) {
	total, err := s.TotalBytes(ctx)
	if err != nil {
		return 0, err
	}
	if total <= capBytes {
		return 0, nil
	}
	skip := make(map[string]bool, len(keep))
	for _, k := range keep {
		skip[k] = true
	}
	// Select victims ordered by last_access asc (oldest first), NULLs first
	rows, err := s.db.QueryContext(ctx, `SELECT key, size FROM images ORDER BY
		CASE WHEN last_access IS NULL THEN 0 ELSE 1 END ASC, last_access ASC, key ASC`)
	if err != nil {
		return 0, fmt.Errorf("select victims: %w", err)
	}
	toDelete := make([]any, 0, 16)
	cur := total
	for rows.Next() {
		var key string
		var sz int64
		if err := rows.Scan(&key, &sz); err != nil {
			_ = rows.Close()
			return 0, err
		}
		if skip[key] {
			continue
		}
		toDelete = append(toDelete, key)
		cur -= sz
		if cur <= capBytes {
			break
		}
	}
	if err := rows.Err(); err != nil {
		_ = rows.Close()
		return 0, err
	}
	// Important: close the rows cursor before attempting to write
	if err := rows.Close(); err != nil {
		return 0, err
	}
	if len(toDelete) == 0 {
		return 0, nil
	}
	q := `DELETE FROM images WHERE key IN (` + strings.TrimSuffix(strings.Repeat("?,", len(toDelete)), ",") + `)`
	if _, err := s.db.ExecContext(ctx, q, toDelete...); err != nil {
		return 0, fmt.Errorf("evict delete: %w", err)
	}
	return len(toDelete), nil
}

// TotalBytes returns total bytes tracked by images.size.
func (s *ImageStore) TotalBytes(ctx context.Context) (int64, error) {
	var total int64
	if err := s.db.QueryRowContext(ctx, `SELECT COALESCE(SUM(size),0) FROM images`).Scan(&total); err != nil {
		return 0, fmt.Errorf("sum image size: %w", err)
	}
	return total, nil
}

// Count returns the number of stored images.
func (s *ImageStore) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM images`).Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}
