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

	"vocabgrid/internal/domain"
	"vocabgrid/internal/imagecache"
)

// Cell is the render state of one grid position.
type Cell struct {
	Key           string        `json:"key"`
	Occupant      int64         `json:"occupant"`
	Image         *domain.Image `json:"-"`
	Loading       bool          `json:"-"`
	ShowWordInfo  bool          `json:"showWordInfo"`
	ShowSentences bool          `json:"showSentences"`
}

// State names the cell lifecycle stage.
type State string

const (
	StateEmpty   State = "empty"
	StateLoading State = "loading"
	StateReady   State = "ready"
)

// State derives the lifecycle stage from the cell fields.
func (c Cell) State() State {
	switch {
	case c.Loading:
		return StateLoading
	case !c.Image.Empty():
		return StateReady
	}
	return StateEmpty
}

// HasImage reports whether the cell holds image data.
func (c Cell) HasImage() bool { return !c.Image.Empty() }

func contentCellKey(occupant int64, index int) string {
	return fmt.Sprintf("cell-%d-%d", occupant, index)
}

func freeformCellKey(index, layoutID int, seq int64) string {
	return fmt.Sprintf("cell-collage-%d-%d-%d", index, layoutID, seq)
}

// imageLookup reads an image from the cache; nil when absent.
type imageLookup func(imagecache.Key) *domain.Image

func cacheLookup(c *imagecache.Cache) imageLookup {
	return func(k imagecache.Key) *domain.Image {
		if c == nil {
			return nil
		}
		img, ok := c.Get(k)
		if !ok || img.Empty() {
			return nil
		}
		return &img
	}
}

// reconcileContent rebuilds the cells of a content-bound board. A cell
// whose occupant already had a cell keeps that cell's image and overlay
// flags under its new key; any other occupant starts from the cached image
// for its id with overlays off. busy reports occupants with a generation
// still in flight.
func reconcileContent(prev []Cell, assignment []int64, lookup imageLookup, busy func(int64) bool) []Cell {
	byOccupant := make(map[int64]Cell, len(prev))
	for _, c := range prev {
		if c.Occupant == domain.NoItem {
			continue
		}
		if _, ok := byOccupant[c.Occupant]; !ok {
			byOccupant[c.Occupant] = c
		}
	}
	out := make([]Cell, len(assignment))
	for i, id := range assignment {
		if old, ok := byOccupant[id]; ok {
			old.Key = contentCellKey(id, i)
			out[i] = old
			continue
		}
		c := Cell{Key: contentCellKey(id, i), Occupant: id}
		if id != domain.NoItem {
			c.Image = lookup(imagecache.ItemKey(id))
			c.Loading = busy != nil && busy(id)
		}
		out[i] = c
	}
	return out
}

// reconcileFreeform returns the snapshot when it fits count, otherwise fresh
// cells whose images come from the position-scoped cache entries of layoutID.
func reconcileFreeform(snapshot []Cell, layoutID, count int, lookup imageLookup, nextSeq func() int64) []Cell {
	if snapshot != nil && len(snapshot) == count {
		return cloneCells(snapshot)
	}
	out := make([]Cell, count)
	for i := range out {
		out[i] = Cell{
			Key:   freeformCellKey(i, layoutID, nextSeq()),
			Image: lookup(imagecache.CellKey(layoutID, i)),
		}
	}
	return out
}

// hydrate fills imageless cells from the cache. It reports how many cells changed.
func hydrate(cells []Cell, mode domain.Mode, layoutID int, lookup imageLookup) int {
	n := 0
	for i := range cells {
		if cells[i].HasImage() {
			continue
		}
		var k imagecache.Key
		if mode == domain.ModeVocab {
			if cells[i].Occupant == domain.NoItem {
				continue
			}
			k = imagecache.ItemKey(cells[i].Occupant)
		} else {
			k = imagecache.CellKey(layoutID, i)
		}
		if img := lookup(k); img != nil {
			cells[i].Image = img
			n++
		}
	}
	return n
}

func cloneCells(in []Cell) []Cell {
	if in == nil {
		return nil
	}
	out := make([]Cell, len(in))
	copy(out, in)
	return out
}
