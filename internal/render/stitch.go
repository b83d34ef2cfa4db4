/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package render

import (
	"errors"
	"fmt"
	"image"
	"log/slog"

	"vocabgrid/internal/domain"
	"vocabgrid/internal/layout"
	applog "vocabgrid/internal/log"
	"vocabgrid/internal/textlayout"
	"vocabgrid/internal/vector"
)

// DefaultStitchSize is the edge length of a stitched board in pixels.
const DefaultStitchSize = 2048

// ErrIncompleteBoard is returned when a board is stitched while a cell has no image.
var ErrIncompleteBoard = errors.New("every cell needs an image before stitching")

// Board is a layout with the content of each of its cells.
type Board struct {
	Layout layout.Layout
	Cells  []CellContent
}

// Complete reports whether the board can be stitched.
func (b Board) Complete() bool {
	if len(b.Cells) == 0 || len(b.Cells) != b.Layout.CellCount {
		return false
	}
	for _, c := range b.Cells {
		if c.Image == nil {
			return false
		}
	}
	return true
}

// Options controls stitching.
type Options struct {
	Size       int // square edge; DefaultStitchSize when zero
	Divider    domain.DividerStyle
	Background vector.Color // white when zero
	Faces      textlayout.Provider
}

func (o Options) size() int {
	if o.Size <= 0 {
		return DefaultStitchSize
	}
	return o.Size
}

// StitchTo composites the board onto s. Nothing is drawn for an incomplete board.
func StitchTo(s Surface, b Board, opts Options) error {
	if !b.Complete() {
		return ErrIncompleteBoard
	}
	if err := opts.Divider.Validate(); err != nil {
		return err
	}
	w, h := s.Size()
	bg := opts.Background
	if bg == (vector.Color{}) {
		bg = vector.White
	}
	s.FillRect(vector.R(0, 0, w, h), bg)
	for i, c := range b.Cells {
		DrawCell(s, c, b.Layout.Region(i, w, h))
	}
	drawDividers(s, b.Layout, w, h, opts.Divider)
	return nil
}

func drawDividers(s Surface, l layout.Layout, w, h float64, d domain.DividerStyle) {
	if !d.Visible {
		return
	}
	st := d.LineStroke()
	for _, seg := range l.Dividers(w, h) {
		s.StrokeLine(seg, st)
	}
}

// Stitch composites the board onto a new square raster.
func Stitch(b Board, opts Options) (*image.RGBA, error) {
	lg := applog.WithOperation(applog.WithComponent("render"), "stitch")
	if !b.Complete() {
		return nil, ErrIncompleteBoard
	}
	n := opts.size()
	s := NewGGSurface(n, n, opts.Faces)
	if err := StitchTo(s, b, opts); err != nil {
		return nil, fmt.Errorf("stitch layout %d: %w", b.Layout.ID, err)
	}
	lg.Debug("board stitched", slog.Int("layout", b.Layout.ID), slog.Int("size", n), slog.Bool("dividers", opts.Divider.Visible))
	return s.Image(), nil
}

// PreviewTo draws the board as the editor shows it: empty cells stay blank,
// and overlay text shrinks with the layout's per-cell scale.
func PreviewTo(s Surface, b Board, opts Options) {
	w, h := s.Size()
	bg := opts.Background
	if bg == (vector.Color{}) {
		bg = vector.White
	}
	s.FillRect(vector.R(0, 0, w, h), bg)
	for i, c := range b.Cells {
		if i >= b.Layout.CellCount {
			break
		}
		r := b.Layout.Region(i, w, h)
		drawCell(s, c, r, OverlayFor(r.W, r.H).Scaled(b.Layout.CellScale(i)))
	}
	drawDividers(s, b.Layout, w, h, opts.Divider)
}

// RenderPreview renders a possibly incomplete board at a small size.
func RenderPreview(b Board, size int, opts Options) *image.RGBA {
	if size <= 0 {
		size = 512
	}
	s := NewGGSurface(size, size, opts.Faces)
	PreviewTo(s, b, opts)
	return s.Image()
}
