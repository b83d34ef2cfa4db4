/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package grid

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"golang.org/x/sync/errgroup"

	"vocabgrid/internal/domain"
	"vocabgrid/internal/imagecache"
	"vocabgrid/internal/layout"
	"vocabgrid/internal/render"
)

// job is one generation request captured under the lock.
type job struct {
	mode     domain.Mode
	target   string
	token    uint64
	occupant int64
	index    int
	req      domain.ImageRequest
}

// targetOf names what a completion must be delivered to: the content item
// of a bound vocab cell, otherwise the cell record itself.
func targetOf(m domain.Mode, c Cell) string {
	if m == domain.ModeVocab && c.Occupant != domain.NoItem {
		return imagecache.ItemKey(c.Occupant).String()
	}
	return c.Key
}

// scopeKey is the cache key of cell i of board b.
func scopeKey(m domain.Mode, b *Board, i int) (imagecache.Key, bool) {
	if m == domain.ModeVocab {
		id := b.Cells[i].Occupant
		return imagecache.ItemKey(id), id != domain.NoItem
	}
	return imagecache.CellKey(b.LayoutID, i), true
}

// Create generates a fresh illustration for the item in cell i.
func (s *Session) Create(ctx context.Context, i int) error {
	return s.generate(ctx, i, "", false)
}

// Edit regenerates the image of cell i from its current image and an instruction.
// A blank instruction does nothing.
func (s *Session) Edit(ctx context.Context, i int, instruction string) error {
	if strings.TrimSpace(instruction) == "" {
		return nil
	}
	return s.generate(ctx, i, instruction, true)
}

// ApplyMagic runs the stored magic prompt as an edit, on every cell that
// holds an image when apply-to-all is set, otherwise on the active cell.
func (s *Session) ApplyMagic(ctx context.Context) error {
	s.mu.Lock()
	prompt, all := s.magic, s.applyAll
	if strings.TrimSpace(prompt) == "" {
		s.mu.Unlock()
		return nil
	}
	b := s.board()
	if !all {
		active := b.Active
		if active >= len(b.Cells) || !b.Cells[active].HasImage() {
			s.panelErr = MsgNeedImage
			s.mu.Unlock()
			return ErrNoImage
		}
		s.mu.Unlock()
		return s.Edit(ctx, active, prompt)
	}
	var targets []int
	for i, c := range b.Cells {
		if c.HasImage() {
			targets = append(targets, i)
		}
	}
	s.mu.Unlock()

	s.log.Info("broadcast edit", slog.Int("cells", len(targets)))
	var g errgroup.Group
	for _, i := range targets {
		g.Go(func() error { return s.Edit(ctx, i, prompt) })
	}
	return g.Wait()
}

func (s *Session) generate(ctx context.Context, i int, instruction string, edit bool) error {
	s.mu.Lock()
	j, err := s.prepareLocked(i, instruction, edit)
	gen := s.gen
	s.mu.Unlock()
	if err != nil {
		return err
	}
	lg := s.log.With(slog.Int("cell", i), slog.String("target", j.target), slog.Bool("edit", edit))
	lg.Debug("generation started", slog.String("ratio", j.req.AspectRatio))
	img, gerr := gen.GenerateImage(ctx, j.req)

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.completeLocked(j, img, gerr, lg)
}

func (s *Session) prepareLocked(i int, instruction string, edit bool) (job, error) {
	b := s.board()
	if i < 0 || i >= len(b.Cells) {
		return job{}, fmt.Errorf("%w: %d", ErrCellRange, i)
	}
	if s.gen == nil {
		return job{}, ErrNoGenerator
	}
	c := &b.Cells[i]
	if c.Loading {
		return job{}, ErrCellBusy
	}
	sig := s.character.PromptSignature
	req := domain.ImageRequest{AspectRatio: string(layout.MustLookup(b.LayoutID).AspectRatio(i))}
	if edit {
		if !c.HasImage() {
			s.panelErr = MsgNeedImage
			return job{}, ErrNoImage
		}
		base := *c.Image
		req.Base = &base
		req.Prompt = EditPrompt(sig, instruction)
	} else {
		if s.mode == domain.ModeCollage {
			return job{}, ErrCreateFreeform
		}
		it, ok := s.catalog.Find(c.Occupant)
		if !ok {
			s.panelErr = MsgSelectWord
			return job{}, ErrNoContent
		}
		req.Prompt = CreatePrompt(it.ImagePrompt, sig)
	}
	s.token++
	j := job{mode: s.mode, target: targetOf(s.mode, *c), token: s.token, occupant: c.Occupant, index: i, req: req}
	s.pending[j.target] = j.token
	c.Loading = true
	s.panelErr = ""
	return j, nil
}

// completeLocked applies a finished generation. Completions whose token was
// superseded or cancelled, or whose cell is gone, are dropped.
func (s *Session) completeLocked(j job, img domain.Image, gerr error, lg *slog.Logger) error {
	if tok, ok := s.pending[j.target]; !ok || tok != j.token {
		lg.Debug("stale generation dropped")
		return nil
	}
	delete(s.pending, j.target)
	b := s.boards[j.mode]
	idx := -1
	for i, c := range b.Cells {
		if targetOf(j.mode, c) == j.target && (j.mode == domain.ModeCollage || c.Occupant == j.occupant) {
			idx = i
			break
		}
	}
	if idx < 0 {
		lg.Debug("generation target left the board")
		return nil
	}
	c := &b.Cells[idx]
	c.Loading = false
	if gerr != nil {
		s.panelErr = fmt.Sprintf(msgGenerateFailed, idx+1)
		lg.Warn("generation failed", slog.Any("err", gerr))
		return fmt.Errorf("generate image for cell %d: %w", idx+1, gerr)
	}
	if img.Empty() {
		lg.Warn("generation returned no image")
		return nil
	}
	if img.MIMEType == "" {
		img.MIMEType = "image/png"
	}
	s.writeImageLocked(j.mode, b, idx, img)
	lg.Info("image generated", slog.Int("bytes", len(img.Data)))
	return nil
}

// writeImageLocked stores img in cell i of board b and in the cache under
// the cell's scope key. Vocab cells without an occupant are not cached.
func (s *Session) writeImageLocked(m domain.Mode, b *Board, i int, img domain.Image) {
	b.Cells[i].Image = &img
	if k, ok := scopeKey(m, b, i); ok {
		s.cache.Set(k, img)
	}
}

// cancelLocked abandons any generation in flight for cell i of the active board.
func (s *Session) cancelLocked(b *Board, i int) {
	c := &b.Cells[i]
	if c.Loading {
		delete(s.pending, targetOf(s.mode, *c))
		c.Loading = false
	}
}

// Upload places an encoded image into cell i. Data that does not decode as
// PNG, JPEG, GIF or WebP is logged and ignored; ok reports whether the
// image was taken. An upload supersedes a generation in flight.
func (s *Session) Upload(i int, data []byte) (ok bool, err error) {
	_, format, derr := render.Decode(data)
	s.mu.Lock()
	defer s.mu.Unlock()
	b := s.board()
	if i < 0 || i >= len(b.Cells) {
		return false, fmt.Errorf("%w: %d", ErrCellRange, i)
	}
	if derr != nil {
		s.log.Warn("upload ignored", slog.Int("cell", i), slog.Any("err", derr))
		return false, nil
	}
	s.cancelLocked(b, i)
	s.writeImageLocked(s.mode, b, i, domain.Image{Data: append([]byte(nil), data...), MIMEType: render.MIMEFor(format)})
	return true, nil
}

// Clear removes the image of cell i and its cache entry.
func (s *Session) Clear(i int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	b := s.board()
	if i < 0 || i >= len(b.Cells) {
		return fmt.Errorf("%w: %d", ErrCellRange, i)
	}
	s.cancelLocked(b, i)
	if k, ok := scopeKey(s.mode, b, i); ok {
		s.cache.Delete(k)
	}
	b.Cells[i].Image = nil
	return nil
}

// ClearAll resets the active board. Vocab mode evicts every occupant's
// image and empties the assignment; collage mode evicts the layout's
// position-scoped images and forgets its snapshot.
func (s *Session) ClearAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	b := s.board()
	for i := range b.Cells {
		s.cancelLocked(b, i)
	}
	if s.mode == domain.ModeVocab {
		s.recordLocked()
		for _, c := range b.Cells {
			if c.Occupant != domain.NoItem {
				s.cache.Delete(imagecache.ItemKey(c.Occupant))
			}
		}
		b.Assignment = make([]int64, len(b.Assignment))
		b.Cells = make([]Cell, len(b.Assignment))
		for i := range b.Cells {
			b.Cells[i] = Cell{Key: contentCellKey(domain.NoItem, i)}
		}
	} else {
		for i := range b.Cells {
			s.cache.Delete(imagecache.CellKey(b.LayoutID, i))
			b.Cells[i] = Cell{Key: freeformCellKey(i, b.LayoutID, s.nextSeq()), Occupant: b.Cells[i].Occupant}
		}
		delete(s.snapshots, b.LayoutID)
	}
	s.stitched = nil
	s.panelErr = ""
	s.magic = ""
	s.log.Info("board cleared", slog.String("mode", s.mode.String()), slog.Int("layout", b.LayoutID))
}
