/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package grid is the interaction controller of the grid compositing
// engine. A Session owns the catalog, one board per mode, the per-layout
// collage snapshots and the image cache, and turns user operations and
// generation completions into the next assignment and cell state.
package grid

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"vocabgrid/internal/domain"
	"vocabgrid/internal/imagecache"
	"vocabgrid/internal/layout"
	applog "vocabgrid/internal/log"
	"vocabgrid/internal/undo"
)

// Generator is the generative service the session calls for images and catalogs.
type Generator interface {
	GenerateImage(ctx context.Context, req domain.ImageRequest) (domain.Image, error)
	GenerateVocabulary(ctx context.Context, req domain.VocabRequest) (domain.Catalog, error)
}

// Board is the arrangement of one mode.
type Board struct {
	LayoutID   int     `json:"layout"`
	Assignment []int64 `json:"assignment"`
	Active     int     `json:"active"`
	Cells      []Cell  `json:"cells"`
}

// Layout returns the board's layout.
func (b Board) Layout() layout.Layout { return layout.MustLookup(b.LayoutID) }

func (b Board) clone() Board {
	b.Assignment = append([]int64(nil), b.Assignment...)
	b.Cells = cloneCells(b.Cells)
	return b
}

// Options configures a Session. Zero values select in-memory defaults.
type Options struct {
	Cache     *imagecache.Cache
	Generator Generator
	History   *undo.Manager
	Logger    *slog.Logger
	Now       func() time.Time
}

// Session is safe for concurrent use. Generation calls run without the
// lock held; their completions are matched against per-target tokens.
type Session struct {
	mu sync.Mutex

	catalog  domain.Catalog
	selected int64
	mode     domain.Mode
	boards   map[domain.Mode]*Board
	// collage cells saved per layout id when the collage board leaves a layout
	snapshots map[int][]Cell

	character domain.Character
	divider   domain.DividerStyle
	magic     string
	applyAll  bool
	panelErr  string
	stitched  *domain.Image

	// pending generation tokens by target, see targetOf
	pending map[string]uint64
	token   uint64
	seq     int64

	cache   *imagecache.Cache
	gen     Generator
	history *undo.Manager
	log     *slog.Logger
	now     func() time.Time
}

// New returns a session in vocab mode on the single-cell layout with an empty catalog.
func New(opts Options) *Session {
	s := &Session{
		mode:      domain.ModeVocab,
		boards:    make(map[domain.Mode]*Board, 2),
		snapshots: make(map[int][]Cell),
		character: domain.Characters[0],
		divider:   domain.DefaultDivider(),
		pending:   make(map[string]uint64),
		cache:     opts.Cache,
		gen:       opts.Generator,
		history:   opts.History,
		log:       opts.Logger,
		now:       opts.Now,
	}
	if s.cache == nil {
		s.cache = imagecache.New(nil, imagecache.Options{})
	}
	if s.history == nil {
		s.history = undo.NewManager(undo.Config{MaxPerStream: 100})
	}
	if s.log == nil {
		s.log = applog.WithComponent("grid")
	}
	if s.now == nil {
		s.now = time.Now
	}
	s.seq = s.now().UnixMilli()

	lookup := cacheLookup(s.cache)
	vb := &Board{LayoutID: layout.Default, Assignment: Fill(nil, 1)}
	vb.Cells = reconcileContent(nil, vb.Assignment, lookup, nil)
	cb := &Board{LayoutID: layout.Default, Assignment: Fill(nil, 1)}
	cb.Cells = reconcileFreeform(nil, cb.LayoutID, 1, lookup, s.nextSeq)
	s.boards[domain.ModeVocab] = vb
	s.boards[domain.ModeCollage] = cb
	return s
}

// Cache returns the image cache the session writes to.
func (s *Session) Cache() *imagecache.Cache { return s.cache }

// History returns the arrangement undo manager.
func (s *Session) History() *undo.Manager { return s.history }

// SetGenerator replaces the generation collaborator.
func (s *Session) SetGenerator(g Generator) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.gen = g
}

func (s *Session) nextSeq() int64 {
	s.seq++
	return s.seq
}

func (s *Session) board() *Board { return s.boards[s.mode] }

func (s *Session) lookup() imageLookup { return cacheLookup(s.cache) }

// Mode returns the active mode.
func (s *Session) Mode() domain.Mode {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mode
}

// Board returns a copy of the active mode's board.
func (s *Session) Board() Board {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.board().clone()
}

// BoardFor returns a copy of the board of mode m.
func (s *Session) BoardFor(m domain.Mode) Board {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.boards[m].clone()
}

// Catalog returns the current catalog.
func (s *Session) Catalog() domain.Catalog {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.catalog
}

// Selected returns the item chosen from the catalog list.
func (s *Session) Selected() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.selected
}

// Character returns the mascot used in prompts.
func (s *Session) Character() domain.Character {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.character
}

// Divider returns the divider style used for stitching.
func (s *Session) Divider() domain.DividerStyle {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.divider
}

// PanelError returns the message currently shown to the user, if any.
func (s *Session) PanelError() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.panelErr
}

// DismissError clears the panel message.
func (s *Session) DismissError() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.panelErr = ""
}

// MagicPrompt returns the edit instruction and the apply-to-all flag.
func (s *Session) MagicPrompt() (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.magic, s.applyAll
}

// SetMagicPrompt stores the edit instruction used by ApplyMagic.
func (s *Session) SetMagicPrompt(prompt string, applyAll bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.magic = prompt
	s.applyAll = applyAll
}

// Stitched returns the last stitched board image, nil after any rearrangement.
func (s *Session) Stitched() *domain.Image {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stitched
}

// Pending returns the number of generations in flight.
func (s *Session) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pending)
}

// SetCharacter selects a built-in mascot by id.
func (s *Session) SetCharacter(id string) error {
	c, ok := domain.CharacterByID(id)
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownCharacter, id)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.character = c
	return nil
}

// SetDivider replaces the divider style after validating it.
func (s *Session) SetDivider(d domain.DividerStyle) error {
	if err := d.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.divider = d
	return nil
}

// ReplaceCatalog installs a new catalog: the first item is selected and
// the vocab board returns to the single-cell layout bound to it.
func (s *Session) ReplaceCatalog(c domain.Catalog) error {
	if err := c.Validate(); err != nil {
		return fmt.Errorf("replace catalog: %w", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.catalog = c
	s.selected = domain.NoItem
	if len(c.Items) > 0 {
		s.selected = c.Items[0].ID
	}
	b := s.boards[domain.ModeVocab]
	b.LayoutID = layout.Default
	b.Active = 0
	b.Assignment = Fill(c.IDs(), layout.MustLookup(layout.Default).CellCount)
	s.reconcileLocked(domain.ModeVocab)
	s.history.Clear(domain.ModeVocab.String())
	s.log.Info("catalog replaced", slog.String("theme", c.Theme), slog.Int("items", len(c.Items)))
	return nil
}

// GenerateCatalog asks the generator for a catalog and installs it.
// The session's character is used when the request names none.
func (s *Session) GenerateCatalog(ctx context.Context, req domain.VocabRequest) (domain.Catalog, error) {
	s.mu.Lock()
	gen := s.gen
	if req.Character.ID == "" {
		req.Character = s.character
	}
	s.mu.Unlock()
	if gen == nil {
		return domain.Catalog{}, ErrNoGenerator
	}
	c, err := gen.GenerateVocabulary(ctx, req)
	if err != nil {
		s.mu.Lock()
		s.panelErr = msgVocabFailed
		s.mu.Unlock()
		return domain.Catalog{}, fmt.Errorf("generate vocabulary: %w", err)
	}
	if err := s.ReplaceCatalog(c); err != nil {
		return domain.Catalog{}, err
	}
	return c, nil
}

// SetMode switches the active board. Leaving collage saves the board into
// the snapshot table under its layout.
func (s *Session) SetMode(m domain.Mode) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if m == s.mode {
		return
	}
	if s.mode == domain.ModeCollage {
		s.saveSnapshotLocked()
	}
	s.mode = m
	s.stitched = nil
	s.log.Debug("mode changed", slog.String("mode", m.String()))
}

// ChangeLayout switches the active board to layout id. Content-bound
// boards are re-filled from catalog order; collage boards restore the
// layout's snapshot when it fits.
func (s *Session) ChangeLayout(id int) error {
	l, ok := layout.Lookup(id)
	if !ok {
		return fmt.Errorf("%w: %d", ErrUnknownLayout, id)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.recordLocked()
	s.changeLayoutLocked(l)
	return nil
}

func (s *Session) changeLayoutLocked(l layout.Layout) {
	b := s.board()
	if s.mode == domain.ModeVocab {
		b.LayoutID = l.ID
		b.Active = 0
		b.Assignment = Fill(s.catalog.IDs(), l.CellCount)
		if l.CellCount == 1 && len(s.catalog.Items) > 0 {
			s.selected = s.catalog.Items[0].ID
		}
		s.reconcileLocked(domain.ModeVocab)
		return
	}
	s.saveSnapshotLocked()
	b.LayoutID = l.ID
	b.Active = 0
	b.Assignment = Fill(nil, l.CellCount)
	b.Cells = reconcileFreeform(s.snapshots[l.ID], l.ID, l.CellCount, s.lookup(), s.nextSeq)
	s.stitched = nil
}

// saveSnapshotLocked stores the collage board under its layout. Generations
// still in flight for those cells are abandoned.
func (s *Session) saveSnapshotLocked() {
	b := s.boards[domain.ModeCollage]
	snap := cloneCells(b.Cells)
	for i := range snap {
		if snap[i].Loading {
			delete(s.pending, snap[i].Key)
			snap[i].Loading = false
			b.Cells[i].Loading = false
		}
	}
	s.snapshots[b.LayoutID] = snap
}

// reconcileLocked rebuilds the cells of mode m from its assignment.
func (s *Session) reconcileLocked(m domain.Mode) {
	b := s.boards[m]
	count := layout.MustLookup(b.LayoutID).CellCount
	b.Assignment = Resize(b.Assignment, count)
	b.Active = Clamp(b.Active, count)
	if m == domain.ModeVocab {
		// unbound cells are rebuilt empty
		for _, c := range b.Cells {
			if c.Occupant == domain.NoItem && c.Loading {
				delete(s.pending, targetOf(m, c))
			}
		}
		b.Cells = reconcileContent(b.Cells, b.Assignment, s.lookup(), func(id int64) bool {
			_, ok := s.pending[targetOf(m, Cell{Occupant: id})]
			return ok
		})
	}
	s.stitched = nil
}

// SelectCell binds contentID to cell index, vacating any other cell that
// holds it. NoItem empties the cell.
func (s *Session) SelectCell(index int, contentID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.mode != domain.ModeVocab {
		return ErrWrongMode
	}
	b := s.board()
	if index < 0 || index >= layout.MustLookup(b.LayoutID).CellCount {
		return fmt.Errorf("%w: %d", ErrCellRange, index)
	}
	if contentID != domain.NoItem {
		if _, ok := s.catalog.Find(contentID); !ok {
			return fmt.Errorf("%w: %d", ErrUnknownItem, contentID)
		}
	}
	s.recordLocked()
	b.Assignment = Steal(b.Assignment, index, contentID)
	s.reconcileLocked(domain.ModeVocab)
	return nil
}

// SelectItem is the catalog-list selection: the item becomes selected and
// is bound to the active cell, or to the only cell of a single-cell layout.
func (s *Session) SelectItem(contentID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.mode != domain.ModeVocab {
		return ErrWrongMode
	}
	if _, ok := s.catalog.Find(contentID); !ok {
		return fmt.Errorf("%w: %d", ErrUnknownItem, contentID)
	}
	b := s.board()
	s.recordLocked()
	s.selected = contentID
	if layout.MustLookup(b.LayoutID).CellCount > 1 {
		b.Assignment = Steal(b.Assignment, b.Active, contentID)
	} else {
		b.Assignment = []int64{contentID}
	}
	s.reconcileLocked(domain.ModeVocab)
	return nil
}

// Move reorders the board by moving the entry at from to to. Collage cells
// move with their images and the position-scoped cache follows them.
// The target becomes active. Out of range or equal indexes do nothing.
func (s *Session) Move(from, to int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	b := s.board()
	next, ok := Move(b.Assignment, from, to)
	if !ok {
		return nil
	}
	s.recordLocked()
	b.Assignment = next
	if s.mode == domain.ModeCollage {
		b.Cells, _ = Move(b.Cells, from, to)
		s.rekeyCollageLocked(b)
		s.stitched = nil
	} else {
		s.reconcileLocked(domain.ModeVocab)
	}
	b.Active = Clamp(to, len(b.Cells))
	return nil
}

// rekeyCollageLocked rewrites the position-scoped cache entries of the
// collage board so they match the current cell order.
func (s *Session) rekeyCollageLocked(b *Board) {
	for i, c := range b.Cells {
		k := imagecache.CellKey(b.LayoutID, i)
		if c.HasImage() {
			s.cache.Set(k, *c.Image)
		} else {
			s.cache.Delete(k)
		}
	}
}

// SetActive selects the cell that list-driven selection writes into.
func (s *Session) SetActive(index int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b := s.board()
	b.Active = Clamp(index, len(b.Cells))
}

// UnselectAll empties every cell of the vocab board.
func (s *Session) UnselectAll() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.mode != domain.ModeVocab {
		return ErrWrongMode
	}
	b := s.board()
	s.recordLocked()
	b.Assignment = make([]int64, len(b.Assignment))
	s.reconcileLocked(domain.ModeVocab)
	return nil
}

// ToggleWordInfo flips the word panel of cell i.
func (s *Session) ToggleWordInfo(i int) error {
	return s.toggle(i, func(c *Cell) *bool { return &c.ShowWordInfo })
}

// ToggleSentences flips the sentence panel of cell i.
func (s *Session) ToggleSentences(i int) error {
	return s.toggle(i, func(c *Cell) *bool { return &c.ShowSentences })
}

// ToggleAllWordInfo turns every word panel on, or off when all are already on.
func (s *Session) ToggleAllWordInfo() {
	s.toggleAll(func(c *Cell) *bool { return &c.ShowWordInfo })
}

// ToggleAllSentences turns every sentence panel on, or off when all are already on.
func (s *Session) ToggleAllSentences() {
	s.toggleAll(func(c *Cell) *bool { return &c.ShowSentences })
}

func (s *Session) toggle(i int, field func(*Cell) *bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	b := s.board()
	if i < 0 || i >= len(b.Cells) {
		return fmt.Errorf("%w: %d", ErrCellRange, i)
	}
	f := field(&b.Cells[i])
	*f = !*f
	return nil
}

func (s *Session) toggleAll(field func(*Cell) *bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b := s.board()
	all := len(b.Cells) > 0
	for i := range b.Cells {
		if !*field(&b.Cells[i]) {
			all = false
			break
		}
	}
	for i := range b.Cells {
		*field(&b.Cells[i]) = !all
	}
}
