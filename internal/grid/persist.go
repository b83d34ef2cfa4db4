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
	"log/slog"
	"strconv"

	"vocabgrid/internal/domain"
	"vocabgrid/internal/layout"
)

// KV is a durable key-value store of JSON values.
type KV interface {
	Get(key string, dst any) (bool, error)
	Set(key string, v any) error
}

// Keys under which a session is persisted.
const (
	KeyCatalog = "catalog"
	KeySession = "session"
)

// state is the persisted form of a session. Images are not part of it;
// they live in the image cache and are restored by Hydrate.
type state struct {
	Mode        string              `json:"mode"`
	Selected    int64               `json:"selected"`
	Character   string              `json:"character"`
	Divider     domain.DividerStyle `json:"divider"`
	MagicPrompt string              `json:"magicPrompt,omitempty"`
	ApplyAll    bool                `json:"applyAll,omitempty"`
	Vocab       Board               `json:"vocab"`
	Collage     Board               `json:"collage"`
	Snapshots   map[string][]Cell   `json:"snapshots,omitempty"`
}

// Persist writes the catalog and the session state to kv.
func (s *Session) Persist(kv KV) error {
	s.mu.Lock()
	st := state{
		Mode:        s.mode.String(),
		Selected:    s.selected,
		Character:   s.character.ID,
		Divider:     s.divider,
		MagicPrompt: s.magic,
		ApplyAll:    s.applyAll,
		Vocab:       s.boards[domain.ModeVocab].clone(),
		Collage:     s.boards[domain.ModeCollage].clone(),
	}
	if len(s.snapshots) > 0 {
		st.Snapshots = make(map[string][]Cell, len(s.snapshots))
		for id, cells := range s.snapshots {
			st.Snapshots[strconv.Itoa(id)] = cloneCells(cells)
		}
	}
	catalog := s.catalog
	s.mu.Unlock()

	if err := kv.Set(KeyCatalog, catalog); err != nil {
		return fmt.Errorf("persist catalog: %w", err)
	}
	if err := kv.Set(KeySession, st); err != nil {
		return fmt.Errorf("persist session: %w", err)
	}
	return nil
}

// Restore loads what Persist wrote and then hydrates images from the
// cache. Missing keys leave the defaults in place; boards that no longer
// fit their layout are re-derived.
func (s *Session) Restore(kv KV) error {
	var catalog domain.Catalog
	okCat, err := kv.Get(KeyCatalog, &catalog)
	if err != nil {
		return fmt.Errorf("restore catalog: %w", err)
	}
	var st state
	okState, err := kv.Get(KeySession, &st)
	if err != nil {
		return fmt.Errorf("restore session: %w", err)
	}
	if okCat {
		if err := catalog.Validate(); err != nil {
			return fmt.Errorf("restore catalog: %w", err)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if okCat {
		s.catalog = catalog
	}
	if okState {
		if m, err := domain.ParseMode(st.Mode); err == nil {
			s.mode = m
		}
		s.selected = st.Selected
		if c, ok := domain.CharacterByID(st.Character); ok {
			s.character = c
		}
		if st.Divider.Validate() == nil && st.Divider.Stroke != "" {
			s.divider = st.Divider
		}
		s.magic, s.applyAll = st.MagicPrompt, st.ApplyAll
		s.restoreBoardLocked(domain.ModeVocab, st.Vocab)
		s.restoreBoardLocked(domain.ModeCollage, st.Collage)
		s.snapshots = make(map[int][]Cell, len(st.Snapshots))
		for k, cells := range st.Snapshots {
			id, err := strconv.Atoi(k)
			if err != nil {
				continue
			}
			s.snapshots[id] = cells
		}
	}
	n := s.hydrateLocked()
	s.log.Debug("session restored", slog.String("mode", s.mode.String()), slog.Int("hydrated", n))
	return nil
}

func (s *Session) restoreBoardLocked(m domain.Mode, in Board) {
	l, ok := layout.Lookup(in.LayoutID)
	if !ok {
		return
	}
	b := s.boards[m]
	b.LayoutID = l.ID
	b.Active = Clamp(in.Active, l.CellCount)
	if m == domain.ModeVocab {
		for i, id := range in.Assignment {
			if _, ok := s.catalog.Find(id); !ok {
				in.Assignment[i] = domain.NoItem
			}
		}
		if dups := Duplicates(in.Assignment); len(dups) > 0 {
			s.log.Warn("restored assignment repeats items, keeping first occurrence", slog.Any("ids", dups))
			seen := make(map[int64]bool, len(in.Assignment))
			for i, id := range in.Assignment {
				if id == domain.NoItem {
					continue
				}
				if seen[id] {
					in.Assignment[i] = domain.NoItem
				}
				seen[id] = true
			}
		}
		b.Assignment = Resize(in.Assignment, l.CellCount)
		b.Cells = nil
		if len(in.Cells) == len(b.Assignment) {
			b.Cells = in.Cells
		}
		s.reconcileLocked(m)
		return
	}
	b.Assignment = Fill(nil, l.CellCount)
	if len(in.Cells) == l.CellCount {
		b.Cells = in.Cells
		return
	}
	b.Cells = reconcileFreeform(nil, l.ID, l.CellCount, s.lookup(), s.nextSeq)
}

// Hydrate fills imageless cells of both boards and of the collage
// snapshots from the cache. It returns the number of cells filled.
func (s *Session) Hydrate() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hydrateLocked()
}

func (s *Session) hydrateLocked() int {
	lookup := s.lookup()
	n := 0
	for _, m := range []domain.Mode{domain.ModeVocab, domain.ModeCollage} {
		b := s.boards[m]
		n += hydrate(b.Cells, m, b.LayoutID, lookup)
	}
	for id, cells := range s.snapshots {
		n += hydrate(cells, domain.ModeCollage, id, lookup)
	}
	return n
}
