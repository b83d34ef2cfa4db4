/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package storage

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"math/rand"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	applog "vocabgrid/internal/log"
)

const (
	SettingsFileName = "studio.json"
	BackupsDirName   = "backups"
	ExportsDirName   = "exports"

	// maxSettingsBackups bounds the number of studio.json backups kept.
	maxSettingsBackups = 20
)

// Standard subfolders of a workspace.
var standardSubDirs = []string{
	ExportsDirName,
	BackupsDirName,
}

// ErrNotWorkspace is returned by Open when root has neither a settings file nor a backup.
var ErrNotWorkspace = errors.New("not a workspace")

// Settings is a small JSON key-value document persisted as studio.json.
// Values are kept as raw JSON so callers own their types. It is safe for concurrent use.
type Settings struct {
	mu     sync.Mutex
	values map[string]json.RawMessage
}

func NewSettings() *Settings { return &Settings{values: map[string]json.RawMessage{}} }

// Get decodes the value stored under key into dst. It reports false when the key is absent.
func (s *Settings) Get(key string, dst any) (bool, error) {
	s.mu.Lock()
	raw, ok := s.values[key]
	s.mu.Unlock()
	if !ok {
		return false, nil
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return true, fmt.Errorf("decode setting %q: %w", key, err)
	}
	return true, nil
}

// Set stores v under key. The change reaches disk on the next Save.
func (s *Settings) Set(key string, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode setting %q: %w", key, err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.values == nil {
		s.values = map[string]json.RawMessage{}
	}
	s.values[key] = raw
	return nil
}

// Delete removes key; deleting a missing key is a no-op.
func (s *Settings) Delete(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.values, key)
	return nil
}

// Keys returns the stored keys in sorted order.
func (s *Settings) Keys() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.values))
	for k := range s.values {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func (s *Settings) MarshalJSON() ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return json.Marshal(s.values)
}

func (s *Settings) UnmarshalJSON(b []byte) error {
	var m map[string]json.RawMessage
	if err := json.Unmarshal(b, &m); err != nil {
		return err
	}
	if m == nil {
		m = map[string]json.RawMessage{}
	}
	s.mu.Lock()
	s.values = m
	s.mu.Unlock()
	return nil
}

// Workspace keeps track of a workspace directory: its settings document and
// the lazily opened embedded index.
type Workspace struct {
	Root         string
	SettingsPath string
	Settings     *Settings

	mu sync.Mutex
	db *sql.DB
}

// InitWorkspace creates a new workspace at root (creating it if it doesn't exist),
// scaffolds the standard subfolders, and writes an empty settings file transactionally.
func InitWorkspace(root string) (*Workspace, error) {
	if strings.TrimSpace(root) == "" {
		return nil, errors.New("root path is required")
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create workspace root: %w", err)
	}
	if err := scaffold(root); err != nil {
		return nil, err
	}
	ws := &Workspace{
		Root:         root,
		SettingsPath: filepath.Join(root, SettingsFileName),
		Settings:     NewSettings(),
	}
	if err := ws.Save(); err != nil {
		return nil, err
	}
	return ws, nil
}

func scaffold(root string) error {
	for _, d := range standardSubDirs {
		if err := os.MkdirAll(filepath.Join(root, d), 0o755); err != nil {
			return fmt.Errorf("create subdir %s: %w", d, err)
		}
	}
	return nil
}

// Open loads an existing workspace from the given root directory.
// If the current settings file cannot be read or parsed, it will attempt the last backup.
func Open(root string) (*Workspace, error) {
	spath := filepath.Join(root, SettingsFileName)
	ws := &Workspace{Root: root, SettingsPath: spath, Settings: NewSettings()}
	b, err := os.ReadFile(spath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) && !hasBackups(root) {
			return nil, fmt.Errorf("%w: %s", ErrNotWorkspace, root)
		}
		// try backup
		if berr := openFromLatestBackup(root, ws.Settings); berr != nil {
			return nil, fmt.Errorf("open settings: %w; backup attempt: %v", err, berr)
		}
		return ws, nil
	}
	if uerr := json.Unmarshal(b, ws.Settings); uerr != nil {
		applog.WithComponent("storage").Warn("settings unreadable, trying backup", slog.String("path", spath), slog.Any("err", uerr))
		if berr := openFromLatestBackup(root, ws.Settings); berr != nil {
			return nil, fmt.Errorf("parse settings: %w; backup attempt: %v", uerr, berr)
		}
	}
	return ws, nil
}

// OpenOrInit opens root as a workspace, initializing it when it is not one yet.
func OpenOrInit(root string) (*Workspace, error) {
	ws, err := Open(root)
	if errors.Is(err, ErrNotWorkspace) {
		return InitWorkspace(root)
	}
	return ws, err
}

// Save writes the settings to disk with transactional semantics
// and a timestamped backup of the previous file (if present).
func (ws *Workspace) Save() error {
	if ws == nil {
		return errors.New("nil Workspace")
	}
	if ws.Root == "" || ws.SettingsPath == "" {
		return errors.New("invalid Workspace: missing paths")
	}
	if ws.Settings == nil {
		ws.Settings = NewSettings()
	}
	// Marshal in human-readable form
	data, err := json.MarshalIndent(ws.Settings, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal settings: %w", err)
	}
	data = append(data, '\n')

	// Ensure backups dir exists
	bdir := filepath.Join(ws.Root, BackupsDirName)
	if err := os.MkdirAll(bdir, 0o755); err != nil {
		return fmt.Errorf("ensure backups dir: %w", err)
	}

	// If a current file exists and differs, copy it to a timestamped backup before replacing
	if cur, readErr := os.ReadFile(ws.SettingsPath); readErr == nil && string(cur) != string(data) {
		stamp := time.Now().Format("20060102-150405.000")
		bpath := filepath.Join(bdir, fmt.Sprintf("%s.%s.bak", SettingsFileName, stamp))
		if cerr := copyFile(ws.SettingsPath, bpath); cerr != nil {
			return fmt.Errorf("backup current settings: %w", cerr)
		}
		pruneBackups(bdir, maxSettingsBackups)
	}

	// Transactional write: to temp file in same directory, then rename over target
	dir := filepath.Dir(ws.SettingsPath)
	temp := filepath.Join(dir, fmt.Sprintf(".%s.tmp-%d-%d", SettingsFileName, os.Getpid(), rand.Int()))
	if werr := writeFileSync(temp, data); werr != nil {
		return fmt.Errorf("write temp settings: %w", werr)
	}
	// On Windows, replace by removing destination first if needed
	if _, err := os.Stat(ws.SettingsPath); err == nil {
		_ = os.Remove(ws.SettingsPath)
	}
	if rerr := os.Rename(temp, ws.SettingsPath); rerr != nil {
		// attempt cleanup temp
		_ = os.Remove(temp)
		return fmt.Errorf("replace settings: %w", rerr)
	}
	return nil
}

// Index returns the workspace's index database, opening it on first use.
func (ws *Workspace) Index() (*sql.DB, error) {
	ws.mu.Lock()
	defer ws.mu.Unlock()
	if ws.db != nil {
		return ws.db, nil
	}
	db, err := InitOrOpenIndex(ws.Root)
	if err != nil {
		return nil, err
	}
	ws.db = db
	return db, nil
}

// Images returns an ImageStore over the workspace index.
func (ws *Workspace) Images(capBytes int64) (*ImageStore, error) {
	db, err := ws.Index()
	if err != nil {
		return nil, err
	}
	return NewImageStore(db, capBytes), nil
}

// Close releases the index database if it was opened.
func (ws *Workspace) Close() error {
	ws.mu.Lock()
	defer ws.mu.Unlock()
	if ws.db == nil {
		return nil
	}
	err := ws.db.Close()
	ws.db = nil
	return err
}

// AutosaveCrashSnapshot writes the in-memory settings next to the regular backups
// without touching studio.json. It returns the snapshot path.
func AutosaveCrashSnapshot(ws *Workspace) (string, error) {
	if ws == nil || ws.Root == "" {
		return "", errors.New("invalid Workspace")
	}
	settings := ws.Settings
	if settings == nil {
		settings = NewSettings()
	}
	data, err := json.Marshal(settings)
	if err != nil {
		return "", fmt.Errorf("marshal settings: %w", err)
	}
	bdir := filepath.Join(ws.Root, BackupsDirName)
	if err := os.MkdirAll(bdir, 0o755); err != nil {
		return "", fmt.Errorf("ensure backups dir: %w", err)
	}
	path := filepath.Join(bdir, fmt.Sprintf("%s.crash-%s.json", SettingsFileName, time.Now().Format("20060102-150405")))
	if err := writeFileSync(path, data); err != nil {
		return "", err
	}
	return path, nil
}

// writeFileSync writes data to a file, ensures it is flushed to disk.
func writeFileSync(path string, data []byte) (err error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()
	if _, err := f.Write(data); err != nil {
		return err
	}
	if err := f.Sync(); err != nil {
		return err
	}
	return nil
}

// copyFile copies a file from src to dst (overwrites dst if exists).
func copyFile(src, dst string) (err error) {
	sf, err := os.Open(src)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := sf.Close(); err == nil {
			err = cerr
		}
	}()
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}
	df, err := os.OpenFile(dst, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := df.Close(); err == nil {
			err = cerr
		}
	}()
	if _, err := io.Copy(df, sf); err != nil {
		return err
	}
	return df.Sync()
}

func settingsBackups(bdir string) []string {
	ents, err := os.ReadDir(bdir)
	if err != nil {
		return nil
	}
	var out []string
	for _, e := range ents {
		name := e.Name()
		if strings.HasPrefix(name, SettingsFileName+".") && strings.HasSuffix(name, ".bak") {
			out = append(out, filepath.Join(bdir, name))
		}
	}
	sort.Strings(out) // timestamp in name yields lexicographic order
	return out
}

func hasBackups(root string) bool {
	return len(settingsBackups(filepath.Join(root, BackupsDirName))) > 0
}

// pruneBackups removes the oldest settings backups beyond keep.
func pruneBackups(bdir string, keep int) {
	all := settingsBackups(bdir)
	for len(all) > keep {
		_ = os.Remove(all[0])
		all = all[1:]
	}
}

// openFromLatestBackup loads the newest parseable backup into dst.
func openFromLatestBackup(root string, dst *Settings) error {
	candidates := settingsBackups(filepath.Join(root, BackupsDirName))
	if len(candidates) == 0 {
		return errors.New("no backups found")
	}
	var lastErr error
	for i := len(candidates) - 1; i >= 0; i-- {
		b, err := os.ReadFile(candidates[i])
		if err != nil {
			lastErr = fmt.Errorf("read backup: %w", err)
			continue
		}
		if err := json.Unmarshal(b, dst); err != nil {
			lastErr = fmt.Errorf("parse backup %s: %w", filepath.Base(candidates[i]), err)
			continue
		}
		return nil
	}
	return lastErr
}
