/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package render

import (
	"fmt"
	"image"
	"unicode/utf8"

	"vocabgrid/internal/textlayout"
	"vocabgrid/internal/vector"
)

// Op is one recorded drawing call.
type Op struct {
	Kind   string // fill, round, image, text, line
	Rect   vector.Rect
	Src    vector.Rect
	Seg    vector.Segment
	Stroke vector.Stroke
	Text   string
	X, Y   float64
	Font   textlayout.FontSpec
	Color  vector.Color
	Align  Align
}

func (o Op) String() string {
	switch o.Kind {
	case "text":
		return fmt.Sprintf("text %q @(%.1f,%.1f) %.1fpx", o.Text, o.X, o.Y, o.Font.Size)
	case "line":
		return fmt.Sprintf("line %v-%v w=%.1f", o.Seg.A, o.Seg.B, o.Stroke.Width)
	}
	return fmt.Sprintf("%s %+v", o.Kind, o.Rect)
}

// Recorder is a Surface that records calls instead of drawing.
// Text is measured as half the font size per rune.
type Recorder struct {
	W, H float64
	Ops  []Op
}

func NewRecorder(w, h float64) *Recorder { return &Recorder{W: w, H: h} }

func (r *Recorder) Size() (float64, float64) { return r.W, r.H }

func (r *Recorder) FillRect(rect vector.Rect, c vector.Color) {
	r.Ops = append(r.Ops, Op{Kind: "fill", Rect: rect, Color: c})
}

func (r *Recorder) FillRoundedRect(rect vector.Rect, radius float64, c vector.Color) {
	r.Ops = append(r.Ops, Op{Kind: "round", Rect: rect, Color: c})
}

func (r *Recorder) DrawImage(_ image.Image, src, dst vector.Rect) {
	r.Ops = append(r.Ops, Op{Kind: "image", Rect: dst, Src: src})
}

func (r *Recorder) DrawText(text string, x, y float64, f textlayout.FontSpec, c vector.Color, a Align) {
	r.Ops = append(r.Ops, Op{Kind: "text", Text: text, X: x, Y: y, Font: f, Color: c, Align: a})
}

func (r *Recorder) MeasureText(text string, f textlayout.FontSpec) float64 {
	return float64(utf8.RuneCountInString(text)) * f.Size / 2
}

func (r *Recorder) StrokeLine(seg vector.Segment, st vector.Stroke) {
	r.Ops = append(r.Ops, Op{Kind: "line", Seg: seg, Stroke: st})
}

// Filter returns the ops of one kind in call order.
func (r *Recorder) Filter(kind string) []Op {
	var out []Op
	for _, o := range r.Ops {
		if o.Kind == kind {
			out = append(out, o)
		}
	}
	return out
}
