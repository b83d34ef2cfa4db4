/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package cli

import (
	"errors"
	"fmt"
	"image"
	"log/slog"

	"github.com/spf13/cobra"

	"vocabgrid/internal/domain"
	"vocabgrid/internal/export"
	"vocabgrid/internal/grid"
	"vocabgrid/internal/imagecache"
	"vocabgrid/internal/render"
	"vocabgrid/internal/telemetry"
)

// renderOptions are the stitch settings from the user config.
func (c *CLI) renderOptions(size int) render.Options {
	if size <= 0 {
		size = c.cfg.Render.StitchSize
	}
	return render.Options{Size: size, Faces: c.faces()}
}

// stitchBoard stitches the active board. A board with empty cells yields
// nil without error so exports can go on without it.
func (c *CLI) stitchBoard(st *studio, size int) (*image.RGBA, error) {
	img, err := st.sess.Stitch(c.renderOptions(size))
	if errors.Is(err, grid.ErrIncompleteBoard) {
		st.log.Debug("board incomplete, stitched image skipped")
		return nil, nil
	}
	return img, err
}

// document builds the exportable view of the session: every catalog item
// with its cached illustration and the stitched board when complete.
func (c *CLI) document(st *studio) (export.Document, error) {
	if _, err := c.stitchBoard(st, 0); err != nil {
		return export.Document{}, err
	}
	images := func(id int64) (domain.Image, bool) {
		return st.cache.Get(imagecache.ItemKey(id))
	}
	return export.NewDocument(st.sess.Catalog(), images, st.sess.Stitched()), nil
}

// cards renders every illustrated cell of the vocab board with its overlays.
func (c *CLI) cards(st *studio) ([]export.Card, error) {
	st.sess.SetMode(domain.ModeVocab)
	b := st.sess.Board()
	cat := st.sess.Catalog()
	faces := c.faces()
	var out []export.Card
	for i, cell := range b.Cells {
		img, err := st.sess.RenderCell(i, faces)
		if errors.Is(err, grid.ErrNoImage) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("render cell %d: %w", i+1, err)
		}
		card := export.Card{Index: i, Image: img}
		if it, ok := cat.Find(cell.Occupant); ok {
			card.Item = &it
		}
		out = append(out, card)
	}
	return out, nil
}

func (c *CLI) pdfOptions() export.PDFOptions {
	return export.PDFOptions{Faces: c.faces()}
}

func (c *CLI) stitchCommand() *cobra.Command {
	var (
		out  string
		size int
	)
	cmd := &cobra.Command{
		Use:   "stitch",
		Short: "Composite the active board into one square PNG",
		Args:  cobra.NoArgs,
		RunE: c.withStudio(false, func(cmd *cobra.Command, args []string, st *studio) error {
			img, err := st.sess.Stitch(c.renderOptions(size))
			if errors.Is(err, grid.ErrIncompleteBoard) {
				return fmt.Errorf("%w (see %q)", err, appName+" status")
			}
			if err != nil {
				return err
			}
			p, err := export.ExportPNG(st.ws.Root, img, out)
			if err != nil {
				return err
			}
			b := st.sess.Board()
			telemetry.StitchExported(b.LayoutID, len(b.Cells), "png")
			st.log.Info("board stitched", slog.String("path", p), slog.Int("size", img.Bounds().Dx()))
			pr := printer{cmd.OutOrStdout()}
			pr.success("Stitched %s", b.Layout())
			pr.file(p)
			return nil
		}),
	}
	cmd.Flags().StringVarP(&out, "out", "o", export.CollageFile, "output file (relative paths go under exports/)")
	cmd.Flags().IntVar(&size, "size", 0, "edge length in pixels (default from config)")
	return cmd
}

func (c *CLI) exportCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export the vocabulary set and board",
	}
	cmd.AddCommand(c.exportFileCommand("pdf", "PDF with one entry per word and the stitched board", export.PDFFile,
		func(st *studio, doc export.Document, out string) (string, error) {
			return export.ExportPDF(st.ws.Root, doc, out, c.pdfOptions())
		}))
	cmd.AddCommand(c.exportFileCommand("txt", "plain text study notes", export.NotesFile,
		func(st *studio, doc export.Document, out string) (string, error) {
			return export.ExportText(st.ws.Root, doc, out)
		}))
	cmd.AddCommand(c.exportFileCommand("png", "the stitched board", export.CollageFile,
		func(st *studio, doc export.Document, out string) (string, error) {
			if doc.Stitched.Empty() {
				return "", fmt.Errorf("png: %w", grid.ErrIncompleteBoard)
			}
			return export.ExportImage(st.ws.Root, doc.Stitched, out)
		}))
	cmd.AddCommand(c.exportFileCommand("cards", "a ZIP of rendered vocab cells with a manifest", export.CardsFile,
		func(st *studio, doc export.Document, out string) (string, error) {
			cards, err := c.cards(st)
			if err != nil {
				return "", err
			}
			return export.ExportCards(st.ws.Root, doc.Theme, cards, out)
		}))
	cmd.AddCommand(c.exportBundleCommand())
	return cmd
}

type exportFunc func(st *studio, doc export.Document, out string) (string, error)

func (c *CLI) exportFileCommand(format, what, defaultOut string, run exportFunc) *cobra.Command {
	var out string
	cmd := &cobra.Command{
		Use:   format,
		Short: "Write " + what,
		Args:  cobra.NoArgs,
		RunE: c.withStudio(false, func(cmd *cobra.Command, args []string, st *studio) error {
			doc, err := c.document(st)
			if err != nil {
				return err
			}
			if doc.Empty() {
				return export.ErrEmptyDocument
			}
			p, err := run(st, doc, out)
			if err != nil {
				return err
			}
			if format == "png" {
				b := st.sess.Board()
				telemetry.StitchExported(b.LayoutID, len(b.Cells), format)
			}
			pr := printer{cmd.OutOrStdout()}
			pr.success("Exported %s", format)
			pr.file(p)
			return nil
		}),
	}
	cmd.Flags().StringVarP(&out, "out", "o", defaultOut, "output file (relative paths go under exports/)")
	return cmd
}

func (c *CLI) exportBundleCommand() *cobra.Command {
	var (
		preset  string
		formats []string
		outDir  string
	)
	cmd := &cobra.Command{
		Use:   "bundle",
		Short: "Write several formats at once (presets: web, print)",
		Args:  cobra.NoArgs,
		RunE: c.withStudio(false, func(cmd *cobra.Command, args []string, st *studio) error {
			doc, err := c.document(st)
			if err != nil {
				return err
			}
			var board image.Image
			if !doc.Stitched.Empty() {
				if board, err = render.DecodeImage(doc.Stitched); err != nil {
					return fmt.Errorf("decode stitched board: %w", err)
				}
			}
			cards, err := c.cards(st)
			if err != nil {
				return err
			}
			paths, err := export.Bundle(st.ws.Root, doc, export.BundleOptions{
				Preset:  export.PresetName(preset),
				Formats: formats,
				OutDir:  outDir,
				PDF:     c.pdfOptions(),
				Board:   board,
				Cards:   cards,
			})
			pr := printer{cmd.OutOrStdout()}
			for _, p := range paths {
				pr.file(p)
			}
			if err != nil {
				return err
			}
			pr.success("Exported %d files", len(paths))
			return nil
		}),
	}
	cmd.Flags().StringVar(&preset, "preset", string(export.PresetWeb), "web or print")
	cmd.Flags().StringSliceVar(&formats, "format", nil, "explicit formats: pdf, txt, png, cards")
	cmd.Flags().StringVar(&outDir, "out-dir", "", "output directory (default exports/<preset>)")
	return cmd
}

func (c *CLI) copyCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "copy",
		Short: "Copy the study notes to the clipboard",
		Args:  cobra.NoArgs,
		RunE: c.withStudio(false, func(cmd *cobra.Command, args []string, st *studio) error {
			doc := export.NewDocument(st.sess.Catalog(), nil, nil)
			if len(doc.Entries) == 0 {
				return export.ErrEmptyDocument
			}
			if err := export.CopyText(doc); err != nil {
				return err
			}
			printer{cmd.OutOrStdout()}.success("Copied %d entries to the clipboard", len(doc.Entries))
			return nil
		}),
	}
}
