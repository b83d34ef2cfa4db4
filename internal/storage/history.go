/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"vocabgrid/internal/undo"
)

const (
	historyUndo = "undo"
	historyRedo = "redo"
)

// language=SQL
// dialect=SQLite
const deleteHistorySQL = `DELETE FROM history WHERE stream = ?`

// language=SQL
// dialect=SQLite
const insertHistorySQL = `INSERT INTO history(stream, kind, ts, blob) VALUES (?, ?, ?, ?)`

// language=SQL
// dialect=SQLite
const selectHistorySQL = `SELECT kind, ts, blob FROM history WHERE stream = ? ORDER BY id ASC`

// language=SQL
// dialect=SQLite
const pruneHistorySQL = `DELETE FROM history WHERE stream = ? AND kind = 'undo' AND id NOT IN (
	SELECT id FROM history WHERE stream = ? AND kind = 'undo' ORDER BY id DESC LIMIT ?
)`

// SaveHistory replaces the persisted undo/redo stacks of a stream in one transaction.
// Stacks are ordered oldest first.
func SaveHistory(ctx context.Context, db *sql.DB, stream string, undoStack, redoStack []undo.Snapshot) (err error) {
	if db == nil {
		return errors.New("nil index")
	}
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin history tx: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()
	if _, err = tx.ExecContext(ctx, deleteHistorySQL, stream); err != nil {
		return fmt.Errorf("clear history: %w", err)
	}
	for _, part := range []struct {
		kind  string
		stack []undo.Snapshot
	}{{historyUndo, undoStack}, {historyRedo, redoStack}} {
		for _, s := range part.stack {
			ts := s.TS
			if ts.IsZero() {
				ts = time.Now()
			}
			blob := s.Blob
			if blob == nil {
				blob = []byte{}
			}
			if _, err = tx.ExecContext(ctx, insertHistorySQL, stream, part.kind, ts.UTC().Format(time.RFC3339Nano), blob); err != nil {
				return fmt.Errorf("insert history: %w", err)
			}
		}
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit history: %w", err)
	}
	return nil
}

// LoadHistory returns the persisted stacks of a stream, oldest first.
func LoadHistory(ctx context.Context, db *sql.DB, stream string) (undoStack, redoStack []undo.Snapshot, err error) {
	if db == nil {
		return nil, nil, errors.New("nil index")
	}
	rows, err := db.QueryContext(ctx, selectHistorySQL, stream)
	if err != nil {
		return nil, nil, fmt.Errorf("query history: %w", err)
	}
	defer func() { _ = rows.Close() }()
	for rows.Next() {
		var kind, tsStr string
		var blob []byte
		if err := rows.Scan(&kind, &tsStr, &blob); err != nil {
			return nil, nil, err
		}
		ts, _ := time.Parse(time.RFC3339Nano, tsStr)
		s := undo.Snapshot{Stream: stream, Blob: blob, TS: ts}
		if kind == historyRedo {
			redoStack = append(redoStack, s)
		} else {
			undoStack = append(undoStack, s)
		}
	}
	return undoStack, redoStack, rows.Err()
}

// PruneHistory keeps at most keepLast undo entries for the stream and deletes older ones.
func PruneHistory(ctx context.Context, db *sql.DB, stream string, keepLast int) (int64, error) {
	if db == nil {
		return 0, errors.New("nil index")
	}
	if keepLast <= 0 {
		return 0, nil
	}
	res, err := db.ExecContext(ctx, pruneHistorySQL, stream, stream, keepLast)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
