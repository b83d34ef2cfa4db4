/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package cli

import (
	"bufio"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"vocabgrid/internal/config"
	"vocabgrid/internal/domain"
	"vocabgrid/internal/grid"
	"vocabgrid/internal/layout"
	"vocabgrid/internal/storage"
	"vocabgrid/internal/version"
)

// versionCommand prints build metadata.
func (c *CLI) versionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Fprintln(cmd.OutOrStdout(), appName, version.String())
			return nil
		},
	}
}

// initCommand scaffolds a workspace.
func (c *CLI) initCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "init [dir]",
		Short: "Create a workspace in dir (default: --dir)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := c.dir
			if len(args) == 1 {
				dir = args[0]
			}
			root, err := filepath.Abs(dir)
			if err != nil {
				return err
			}
			_, err = storage.Open(root)
			existed := err == nil
			ws, err := storage.OpenOrInit(root)
			if err != nil {
				return fmt.Errorf("init workspace: %w", err)
			}
			if _, err := ws.Index(); err != nil {
				c.log.Warn("index unavailable", slog.Any("err", err))
			}
			if err := ws.Close(); err != nil {
				return err
			}
			p := printer{cmd.OutOrStdout()}
			if existed {
				p.info("Workspace already initialized")
			} else {
				p.success("Workspace created")
			}
			p.file(root)
			return nil
		},
	}
}

// authCommand manages the API key in the OS keychain.
func (c *CLI) authCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "auth",
		Short: "Manage the Gemini API key",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "set [key]",
		Short: "Store the API key (read from stdin when omitted)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var key string
			if len(args) == 1 {
				key = args[0]
			} else {
				line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
				if err != nil && line == "" {
					return fmt.Errorf("read key: %w", err)
				}
				key = line
			}
			key = strings.TrimSpace(key)
			if key == "" {
				return errors.New("empty api key")
			}
			if err := config.Save(c.cfg, key); err != nil {
				return fmt.Errorf("save api key: %w", err)
			}
			printer{cmd.OutOrStdout()}.success("API key stored in the system keychain")
			return nil
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "forget",
		Short: "Remove the stored API key",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := config.ForgetAPIKey(); err != nil {
				return fmt.Errorf("forget api key: %w", err)
			}
			printer{cmd.OutOrStdout()}.success("API key removed")
			return nil
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "status",
		Short: "Show the generation backend and whether a key is available",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			p := printer{cmd.OutOrStdout()}
			backend := c.cfg.Generation.Backend
			if env, ok := config.EnvOverrideFor("generation.backend"); ok {
				backend += " (from " + env + ")"
			}
			p.keyValue("backend", backend)
			if path, err := config.ConfigPath(); err == nil {
				p.keyValue("config", path)
			}
			if c.apiKey != "" {
				p.keyValue("api key", "present")
			} else {
				p.keyValue("api key", "missing")
			}
			return nil
		},
	})
	return cmd
}

// layoutsCommand lists the layout registry.
func (c *CLI) layoutsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "layouts",
		Short: "List the available grid layouts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			w := cmd.OutOrStdout()
			for _, l := range layout.All() {
				ratios := make([]string, l.CellCount)
				for i := range ratios {
					ratios[i] = string(l.AspectRatio(i))
				}
				fmt.Fprintf(w, "%2d  %-22s %d cells  %s\n", l.ID, l.Name, l.CellCount, strings.Join(ratios, " "))
			}
			return nil
		},
	}
}

// statusCommand prints the catalog and the active board.
func (c *CLI) statusCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the catalog and the active board",
		Args:  cobra.NoArgs,
		RunE: c.withStudio(false, func(cmd *cobra.Command, args []string, st *studio) error {
			printStatus(printer{cmd.OutOrStdout()}, st)
			return nil
		}),
	}
}

func printStatus(p printer, st *studio) {
	s := st.sess
	b := s.Board()
	cat := s.Catalog()
	d := s.Divider()

	p.title(fmt.Sprintf("%s board", s.Mode()))
	p.keyValue("layout", b.Layout().String())
	p.keyValue("character", s.Character().Name)
	if d.Visible {
		p.keyValue("divider", fmt.Sprintf("%s %s %.0fpx", d.Color.Hex(), d.Stroke, d.Thickness))
	} else {
		p.keyValue("divider", "hidden")
	}
	if prompt, all := s.MagicPrompt(); prompt != "" {
		scope := "active cell"
		if all {
			scope = "all cells"
		}
		p.keyValue("magic", fmt.Sprintf("%q (%s)", prompt, scope))
	}

	for i, cell := range b.Cells {
		label := "-"
		if s.Mode() == domain.ModeVocab {
			if it, ok := cat.Find(cell.Occupant); ok {
				label = fmt.Sprintf("%s (#%d)", it.Word, it.ID)
			}
		}
		line := fmt.Sprintf("[%d] %-28s %-7s", i+1, label, cell.State())
		var flags []string
		if cell.ShowWordInfo {
			flags = append(flags, "word")
		}
		if cell.ShowSentences {
			flags = append(flags, "sentences")
		}
		if len(flags) > 0 {
			line += " +" + strings.Join(flags, "+")
		}
		if i == b.Active {
			line = styleActive.Render(line + " *")
		}
		p.detail("%s", line)
	}

	if cat.Len() > 0 {
		p.title(cat.Theme)
		sel := s.Selected()
		for _, it := range cat.Items {
			mark := " "
			if it.ID == sel {
				mark = ">"
			}
			p.detail("%s #%d %s %s", mark, it.ID, it.Word, it.Phonetic)
		}
	} else if s.Mode() == domain.ModeVocab {
		p.info("No vocabulary yet, run %q", appName+" generate --topic ...")
	}

	if msg := s.PanelError(); msg != "" {
		p.warning("%s", msg)
	}
	var steps []string
	if s.CanUndo() {
		steps = append(steps, "undo")
	}
	if s.CanRedo() {
		steps = append(steps, "redo")
	}
	if len(steps) > 0 {
		p.keyValue("history", strings.Join(steps, ", "))
	}
	stats := st.cache.Stats()
	p.keyValue("cache", fmt.Sprintf("%d images, %s", stats.Entries, humanBytes(stats.Bytes)))
	if boardReady(b) == nil {
		p.info("Board complete, ready to stitch")
	}
}

// boardReady reports ErrIncompleteBoard unless every cell holds an image.
func boardReady(b grid.Board) error {
	if len(b.Cells) == 0 {
		return grid.ErrIncompleteBoard
	}
	for _, c := range b.Cells {
		if !c.HasImage() {
			return grid.ErrIncompleteBoard
		}
	}
	return nil
}

func humanBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}

// cacheCommand inspects and trims the persisted image cache and history.
func (c *CLI) cacheCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Inspect or prune the image cache and undo history",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "stats",
		Short: "Show cache size",
		Args:  cobra.NoArgs,
		RunE: c.withStudio(false, func(cmd *cobra.Command, args []string, st *studio) error {
			p := printer{cmd.OutOrStdout()}
			mem := st.cache.Stats()
			p.keyValue("loaded", fmt.Sprintf("%d images, %s", mem.Entries, humanBytes(mem.Bytes)))
			if st.store == nil {
				p.warning("Persistent image store unavailable")
				return nil
			}
			ctx := cmd.Context()
			n, err := st.store.Count(ctx)
			if err != nil {
				return err
			}
			total, err := st.store.TotalBytes(ctx)
			if err != nil {
				return err
			}
			p.keyValue("stored", fmt.Sprintf("%d images, %s", n, humanBytes(total)))
			if limit := st.cfg.Cache.MaxBytes; limit > 0 {
				p.keyValue("limit", humanBytes(limit))
			}
			return nil
		}),
	})

	var keep int
	var maxBytes int64
	prune := &cobra.Command{
		Use:   "prune",
		Short: "Evict least recently used images and trim undo history",
		Args:  cobra.NoArgs,
		RunE: c.withStudio(false, func(cmd *cobra.Command, args []string, st *studio) error {
			ctx := cmd.Context()
			p := printer{cmd.OutOrStdout()}
			if st.store != nil {
				limit := maxBytes
				if limit <= 0 {
					limit = st.cfg.Cache.MaxBytes
				}
				if limit > 0 {
					n, err := st.store.EvictToFit(ctx, limit, st.visibleKeys()...)
					if err != nil {
						return fmt.Errorf("evict images: %w", err)
					}
					p.success("Evicted %d images", n)
				}
			}
			db, err := st.ws.Index()
			if err != nil {
				return err
			}
			for _, m := range streams {
				n, err := storage.PruneHistory(ctx, db, m.String(), keep)
				if err != nil {
					return fmt.Errorf("prune %s history: %w", m, err)
				}
				p.success("Pruned %d %s history entries", n, m)
			}
			return nil
		}),
	}
	prune.Flags().IntVar(&keep, "keep", 20, "undo entries to keep per mode")
	prune.Flags().Int64Var(&maxBytes, "max-bytes", 0, "image store limit (default from config)")
	cmd.AddCommand(prune)
	return cmd
}
