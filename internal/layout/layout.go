/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package layout holds the fixed registry of grid layouts. Each layout
// describes its cells and divider lines in unit space; callers scale them
// to a concrete canvas.
package layout

import (
	"fmt"
	"strconv"
	"strings"

	"vocabgrid/internal/vector"
)

// Ratio is a generation/crop aspect ratio such as "1:1".
type Ratio string

const (
	Square Ratio = "1:1"
	Tall   Ratio = "9:16"
	Wide   Ratio = "16:9"
)

// Float returns width/height. Malformed ratios read as square.
func (r Ratio) Float() float64 {
	w, h, ok := strings.Cut(string(r), ":")
	if !ok {
		return 1
	}
	fw, err1 := strconv.ParseFloat(w, 64)
	fh, err2 := strconv.ParseFloat(h, 64)
	if err1 != nil || err2 != nil || fw <= 0 || fh <= 0 {
		return 1
	}
	return fw / fh
}

// Layout is one entry of the registry.
type Layout struct {
	ID        int
	Name      string
	CellCount int

	cells    []vector.Rect
	ratios   map[int]Ratio
	scales   []float64
	dividers []vector.Segment
}

// AspectRatio returns the generation ratio for cell i. Cells without an
// explicit ratio are square.
func (l Layout) AspectRatio(i int) Ratio {
	if r, ok := l.ratios[i]; ok {
		return r
	}
	if r, ok := l.ratios[-1]; ok {
		return r
	}
	return Square
}

// UnitRegion returns the rect cell i occupies on a 1x1 canvas.
func (l Layout) UnitRegion(i int) vector.Rect {
	if i < 0 || i >= len(l.cells) {
		return vector.Rect{}
	}
	return l.cells[i]
}

// Region returns the rect cell i occupies on a w x h canvas.
func (l Layout) Region(i int, w, h float64) vector.Rect {
	return vector.Scale(w, h).ApplyRect(l.UnitRegion(i))
}

// Regions returns all cell rects on a w x h canvas in index order.
func (l Layout) Regions(w, h float64) []vector.Rect {
	out := make([]vector.Rect, l.CellCount)
	for i := range out {
		out[i] = l.Region(i, w, h)
	}
	return out
}

// Dividers returns the divider segments on a w x h canvas. The result is
// a fresh slice in a fixed order.
func (l Layout) Dividers(w, h float64) []vector.Segment {
	m := vector.Scale(w, h)
	out := make([]vector.Segment, len(l.dividers))
	for i, s := range l.dividers {
		out[i] = m.ApplySegment(s)
	}
	return out
}

// CellScale is the relative overlay font scale used for previews of cell i.
// Small cells get proportionally smaller text.
func (l Layout) CellScale(i int) float64 {
	if i < 0 || i >= len(l.scales) {
		return 1
	}
	return l.scales[i]
}

func (l Layout) String() string { return fmt.Sprintf("%d %s (%d cells)", l.ID, l.Name, l.CellCount) }

func uniform(n int, s float64) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = s
	}
	return out
}

func grid(n int) []vector.Rect {
	s := 1 / float64(n)
	out := make([]vector.Rect, 0, n*n)
	for row := 0; row < n; row++ {
		for col := 0; col < n; col++ {
			out = append(out, vector.R(float64(col)*s, float64(row)*s, s, s))
		}
	}
	return out
}

const (
	third     = 1.0 / 3
	twoThirds = 2.0 / 3
)

var registry = []Layout{
	{
		ID: 0, Name: "Single", CellCount: 1,
		cells:  []vector.Rect{vector.R(0, 0, 1, 1)},
		scales: []float64{1},
	},
	{
		ID: 1, Name: "Split H", CellCount: 2,
		cells:    []vector.Rect{vector.R(0, 0, 0.5, 1), vector.R(0.5, 0, 0.5, 1)},
		ratios:   map[int]Ratio{-1: Tall},
		scales:   uniform(2, 0.65),
		dividers: []vector.Segment{vector.Seg(0.5, 0, 0.5, 1)},
	},
	{
		ID: 2, Name: "Split V", CellCount: 2,
		cells:    []vector.Rect{vector.R(0, 0, 1, 0.5), vector.R(0, 0.5, 1, 0.5)},
		ratios:   map[int]Ratio{-1: Wide},
		scales:   uniform(2, 0.8),
		dividers: []vector.Segment{vector.Seg(0, 0.5, 1, 0.5)},
	},
	{
		ID: 3, Name: "Grid 4", CellCount: 4,
		cells:    grid(2),
		scales:   uniform(4, 0.55),
		dividers: []vector.Segment{vector.Seg(0.5, 0, 0.5, 1), vector.Seg(0, 0.5, 1, 0.5)},
	},
	{
		ID: 4, Name: "Left Focus", CellCount: 3,
		cells:    []vector.Rect{vector.R(0, 0, 0.5, 1), vector.R(0.5, 0, 0.5, 0.5), vector.R(0.5, 0.5, 0.5, 0.5)},
		ratios:   map[int]Ratio{0: Tall},
		scales:   []float64{1, 0.55, 0.55},
		dividers: []vector.Segment{vector.Seg(0.5, 0, 0.5, 1), vector.Seg(0.5, 0.5, 1, 0.5)},
	},
	{
		ID: 5, Name: "Right Focus", CellCount: 3,
		cells:    []vector.Rect{vector.R(0, 0, 0.5, 0.5), vector.R(0, 0.5, 0.5, 0.5), vector.R(0.5, 0, 0.5, 1)},
		ratios:   map[int]Ratio{2: Tall},
		scales:   []float64{0.55, 0.55, 1},
		dividers: []vector.Segment{vector.Seg(0.5, 0, 0.5, 1), vector.Seg(0, 0.5, 0.5, 0.5)},
	},
	{
		ID: 6, Name: "Grid 9", CellCount: 9,
		cells:  grid(3),
		scales: uniform(9, 0.38),
		dividers: []vector.Segment{
			vector.Seg(third, 0, third, 1), vector.Seg(twoThirds, 0, twoThirds, 1),
			vector.Seg(0, third, 1, third), vector.Seg(0, twoThirds, 1, twoThirds),
		},
	},
}

// Default is the single-cell layout.
const Default = 0

// All returns the registry in id order.
func All() []Layout {
	out := make([]Layout, len(registry))
	copy(out, registry)
	return out
}

// Lookup returns the layout with the given id.
func Lookup(id int) (Layout, bool) {
	if id < 0 || id >= len(registry) {
		return Layout{}, false
	}
	return registry[id], true
}

// MustLookup is Lookup for ids that come from the registry itself.
func MustLookup(id int) Layout {
	l, ok := Lookup(id)
	if !ok {
		panic(fmt.Sprintf("layout: unknown id %d", id))
	}
	return l
}
