/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package grid

import (
	"encoding/json"
	"fmt"
	"log/slog"

	"vocabgrid/internal/domain"
	"vocabgrid/internal/layout"
	"vocabgrid/internal/undo"
)

// arrangement is what one undo step restores. Order carries the collage
// cell keys, whose sequence is the collage arrangement.
type arrangement struct {
	Layout     int      `json:"layout"`
	Assignment []int64  `json:"assignment"`
	Active     int      `json:"active"`
	Order      []string `json:"order,omitempty"`
}

func (s *Session) arrangementLocked() []byte {
	b := s.board()
	a := arrangement{Layout: b.LayoutID, Assignment: b.Assignment, Active: b.Active}
	if s.mode == domain.ModeCollage {
		for _, c := range b.Cells {
			a.Order = append(a.Order, c.Key)
		}
	}
	data, _ := json.Marshal(a)
	return data
}

// recordLocked pushes the current arrangement before a change.
func (s *Session) recordLocked() {
	s.history.Push(undo.Snapshot{Stream: s.mode.String(), Blob: s.arrangementLocked(), TS: s.now()})
}

// Undo restores the previous arrangement of the active mode. It reports
// false when there is nothing to undo.
func (s *Session) Undo() (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap, ok := s.history.Undo(s.mode.String(), s.arrangementLocked())
	if !ok {
		return false, nil
	}
	return true, s.applyArrangementLocked(snap.Blob)
}

// Redo reapplies the most recently undone arrangement.
func (s *Session) Redo() (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap, ok := s.history.Redo(s.mode.String(), s.arrangementLocked())
	if !ok {
		return false, nil
	}
	return true, s.applyArrangementLocked(snap.Blob)
}

// CanUndo reports whether Undo would change anything.
func (s *Session) CanUndo() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.history.CanUndo(s.mode.String())
}

// CanRedo reports whether Redo would change anything.
func (s *Session) CanRedo() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.history.CanRedo(s.mode.String())
}

func (s *Session) applyArrangementLocked(blob []byte) error {
	var a arrangement
	if err := json.Unmarshal(blob, &a); err != nil {
		return fmt.Errorf("decode arrangement: %w", err)
	}
	l, ok := layout.Lookup(a.Layout)
	if !ok {
		return fmt.Errorf("%w: %d", ErrUnknownLayout, a.Layout)
	}
	b := s.board()
	if s.mode == domain.ModeVocab {
		b.LayoutID = l.ID
		b.Assignment = Resize(a.Assignment, l.CellCount)
		b.Active = a.Active
		s.reconcileLocked(domain.ModeVocab)
		return nil
	}
	if b.LayoutID != l.ID {
		s.changeLayoutLocked(l)
	}
	b.Active = Clamp(a.Active, len(b.Cells))
	if reordered, ok := reorder(b.Cells, a.Order); ok {
		b.Cells = reordered
		s.rekeyCollageLocked(b)
	}
	s.stitched = nil
	s.log.Debug("arrangement restored", slog.String("mode", s.mode.String()), slog.Int("layout", l.ID))
	return nil
}

// reorder arranges cells in the order of keys. It fails when the key set
// differs from the cells' keys.
func reorder(cells []Cell, keys []string) ([]Cell, bool) {
	if len(keys) != len(cells) {
		return nil, false
	}
	byKey := make(map[string]Cell, len(cells))
	for _, c := range cells {
		byKey[c.Key] = c
	}
	out := make([]Cell, 0, len(keys))
	for _, k := range keys {
		c, ok := byKey[k]
		if !ok {
			return nil, false
		}
		out = append(out, c)
	}
	return out, true
}
