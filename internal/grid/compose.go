/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package grid

import (
	"fmt"
	"image"
	"log/slog"

	"vocabgrid/internal/domain"
	"vocabgrid/internal/layout"
	"vocabgrid/internal/render"
	"vocabgrid/internal/textlayout"
)

// view is an immutable copy of what rendering needs.
type view struct {
	mode    domain.Mode
	board   Board
	catalog domain.Catalog
	divider domain.DividerStyle
}

func (s *Session) viewLocked() view {
	return view{mode: s.mode, board: s.board().clone(), catalog: s.catalog, divider: s.divider}
}

// content decodes cell i for the renderer. Undecodable images read as absent.
func (v view) content(i int, lg *slog.Logger) render.CellContent {
	c := v.board.Cells[i]
	out := render.CellContent{ShowWordInfo: c.ShowWordInfo, ShowSentences: c.ShowSentences}
	if v.mode == domain.ModeVocab {
		if it, ok := v.catalog.Find(c.Occupant); ok {
			out.Item = &it
		}
	}
	if c.HasImage() {
		img, err := render.DecodeImage(c.Image)
		if err != nil {
			lg.Warn("cell image does not decode", slog.Int("cell", i), slog.Any("err", err))
		} else {
			out.Image = img
		}
	}
	return out
}

func (v view) renderBoard(lg *slog.Logger) render.Board {
	b := render.Board{Layout: layout.MustLookup(v.board.LayoutID)}
	for i := range v.board.Cells {
		b.Cells = append(b.Cells, v.content(i, lg))
	}
	return b
}

func (v view) complete() bool {
	if len(v.board.Cells) == 0 {
		return false
	}
	for _, c := range v.board.Cells {
		if !c.HasImage() {
			return false
		}
	}
	return true
}

// Stitch composites the active board with the session's divider style and
// keeps the PNG as the stitched preview. Every cell needs an image.
func (s *Session) Stitch(opts render.Options) (*image.RGBA, error) {
	s.mu.Lock()
	v := s.viewLocked()
	s.mu.Unlock()
	if !v.complete() {
		return nil, ErrIncompleteBoard
	}
	opts.Divider = v.divider
	img, err := render.Stitch(v.renderBoard(s.log), opts)
	if err != nil {
		return nil, err
	}
	png, err := render.EncodePNG(img)
	if err != nil {
		return nil, fmt.Errorf("encode stitched board: %w", err)
	}
	s.mu.Lock()
	s.stitched = &png
	s.mu.Unlock()
	return img, nil
}

// RenderCell renders cell i at its image's native resolution, cropped to
// the cell's aspect ratio, with the overlays the cell has switched on.
func (s *Session) RenderCell(i int, faces textlayout.Provider) (*image.RGBA, error) {
	s.mu.Lock()
	v := s.viewLocked()
	s.mu.Unlock()
	if i < 0 || i >= len(v.board.Cells) {
		return nil, fmt.Errorf("%w: %d", ErrCellRange, i)
	}
	c := v.content(i, s.log)
	if c.Image == nil {
		return nil, ErrNoImage
	}
	ratio := layout.MustLookup(v.board.LayoutID).AspectRatio(i).Float()
	return render.RenderCell(c, ratio, faces)
}

// Preview renders the active board as the editor shows it, empty cells included.
func (s *Session) Preview(size int, opts render.Options) *image.RGBA {
	s.mu.Lock()
	v := s.viewLocked()
	s.mu.Unlock()
	opts.Divider = v.divider
	return render.RenderPreview(v.renderBoard(s.log), size, opts)
}
