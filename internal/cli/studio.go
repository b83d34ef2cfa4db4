/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/spf13/cobra"

	"vocabgrid/internal/config"
	"vocabgrid/internal/crash"
	"vocabgrid/internal/domain"
	"vocabgrid/internal/grid"
	"vocabgrid/internal/imagecache"
	applog "vocabgrid/internal/log"
	"vocabgrid/internal/storage"
	"vocabgrid/internal/undo"
	"vocabgrid/internal/vector"
)

// historyDepth bounds the persisted undo stack of each mode.
const historyDepth = 100

var streams = []domain.Mode{domain.ModeVocab, domain.ModeCollage}

// studio is an opened workspace with its restored session.
type studio struct {
	ws    *storage.Workspace
	store *storage.ImageStore
	cache *imagecache.Cache
	hist  *undo.Manager
	sess  *grid.Session
	cfg   config.AppConfig
	log   *slog.Logger
}

// openStudio opens the workspace at dir, loads the image cache and the undo
// history from its index, and restores the session from the settings file.
func openStudio(ctx context.Context, dir string, cfg config.AppConfig) (*studio, error) {
	root, err := filepath.Abs(dir)
	if err != nil {
		return nil, err
	}
	ws, err := storage.Open(root)
	if errors.Is(err, storage.ErrNotWorkspace) {
		return nil, fmt.Errorf("%w (run %q first)", err, appName+" init")
	}
	if err != nil {
		return nil, err
	}
	lg := applog.WithComponent("cli").With(slog.String("workspace", root))
	st := &studio{ws: ws, cfg: cfg, log: lg}

	store, err := ws.Images(cfg.Cache.MaxBytes)
	if err != nil {
		lg.Warn("image store unavailable, using memory cache", slog.Any("err", err))
	} else {
		st.store = store
	}
	var blobs imagecache.BlobStore
	if st.store != nil {
		blobs = st.store
	}
	st.cache = imagecache.New(blobs, imagecache.Options{FlushDelay: cfg.Cache.FlushDelay(), Logger: lg})
	if n, err := st.cache.Load(ctx); err != nil {
		lg.Warn("image cache load failed", slog.Any("err", err))
	} else {
		lg.Debug("image cache loaded", slog.Int("entries", n))
	}

	st.hist = undo.NewManager(undo.Config{MaxPerStream: historyDepth})
	if db, err := ws.Index(); err == nil {
		for _, m := range streams {
			u, r, err := storage.LoadHistory(ctx, db, m.String())
			if err != nil {
				lg.Warn("history load failed", slog.String("stream", m.String()), slog.Any("err", err))
				continue
			}
			st.hist.Restore(m.String(), u, r)
		}
	}

	st.sess = grid.New(grid.Options{Cache: st.cache, History: st.hist, Logger: lg})
	var raw json.RawMessage
	if ok, _ := ws.Settings.Get(grid.KeySession, &raw); !ok {
		applyDefaults(st.sess, cfg, lg)
	}
	if err := st.sess.Restore(ws.Settings); err != nil {
		_ = st.close(ctx, false)
		return nil, fmt.Errorf("restore session: %w", err)
	}
	return st, nil
}

// applyDefaults seeds a fresh workspace with the configured character and divider.
func applyDefaults(sess *grid.Session, cfg config.AppConfig, lg *slog.Logger) {
	if cfg.General.Character != "" {
		if err := sess.SetCharacter(cfg.General.Character); err != nil {
			lg.Warn("configured character ignored", slog.Any("err", err))
		}
	}
	d, err := dividerFromConfig(cfg.Render.Divider)
	if err == nil {
		err = sess.SetDivider(d)
	}
	if err != nil {
		lg.Warn("configured divider ignored", slog.Any("err", err))
	}
}

func dividerFromConfig(dc config.DividerConfig) (domain.DividerStyle, error) {
	d := domain.DefaultDivider()
	d.Visible = dc.Show
	if dc.Color != "" {
		c, err := vector.ParseHex(dc.Color)
		if err != nil {
			return d, err
		}
		d.Color = c
	}
	if dc.Style != "" {
		s, err := domain.ParseStrokeStyle(dc.Style)
		if err != nil {
			return d, err
		}
		d.Stroke = s
	}
	if dc.Thickness > 0 {
		d.Thickness = dc.Thickness
	}
	return d, d.Validate()
}

// visibleKeys lists the cache keys shown on either board, which eviction keeps.
func (st *studio) visibleKeys() []string {
	var keys []string
	vb := st.sess.BoardFor(domain.ModeVocab)
	for _, id := range vb.Assignment {
		if id != domain.NoItem {
			keys = append(keys, imagecache.ItemKey(id).String())
		}
	}
	cb := st.sess.BoardFor(domain.ModeCollage)
	for i := range cb.Cells {
		keys = append(keys, imagecache.CellKey(cb.LayoutID, i).String())
	}
	return keys
}

// close persists the session and history when save is set, flushes the
// cache and releases the index. Cache and history failures are only logged.
func (st *studio) close(ctx context.Context, save bool) error {
	var errs []error
	if save {
		if err := st.sess.Persist(st.ws.Settings); err != nil {
			errs = append(errs, err)
		} else if err := st.ws.Save(); err != nil {
			errs = append(errs, err)
		}
		if db, err := st.ws.Index(); err == nil {
			for _, m := range streams {
				u, r := st.hist.Export(m.String())
				if err := storage.SaveHistory(ctx, db, m.String(), u, r); err != nil {
					st.log.Warn("history save failed", slog.String("stream", m.String()), slog.Any("err", err))
				}
			}
		}
	}
	if err := st.cache.Close(ctx); err != nil {
		st.log.Warn("image cache flush failed", slog.Any("err", err))
	}
	if st.store != nil && st.cfg.Cache.MaxBytes > 0 {
		if n, err := st.store.EvictToFit(ctx, st.cfg.Cache.MaxBytes, st.visibleKeys()...); err != nil {
			st.log.Warn("image eviction failed", slog.Any("err", err))
		} else if n > 0 {
			st.log.Info("evicted cached images", slog.Int("count", n))
		}
	}
	if err := st.ws.Close(); err != nil {
		st.log.Warn("index close failed", slog.Any("err", err))
	}
	return errors.Join(errs...)
}

// withStudio wraps a command body with open, crash recovery and close.
// Sessions are persisted after the body runs when save is set, even if the
// body failed, since failed operations leave the session consistent.
func (c *CLI) withStudio(save bool, fn func(cmd *cobra.Command, args []string, st *studio) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		st, err := openStudio(ctx, c.dir, c.cfg)
		if err != nil {
			return err
		}
		defer crash.Recover(st.ws)
		runErr := fn(cmd, args, st)
		closeErr := st.close(ctx, save)
		if runErr != nil {
			return runErr
		}
		return closeErr
	}
}
