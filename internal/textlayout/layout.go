/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package textlayout

// Abstractions for text measurement and line breaking.
// All overlay text goes through Wrap so previews, stitched boards and
// exported text bitmaps break lines identically for a given face.

import (
	"strings"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

// FontSpec describes a requested font. Sizes are pixels at 72 DPI.
type FontSpec struct {
	Family string // logical family name; empty means the default family
	Size   float64
	Weight int // 100..900
	Italic bool
}

// Bold reports whether Weight is 600 or heavier.
func (s FontSpec) Bold() bool { return s.Weight >= 600 }

// Metrics provides font metrics in pixels for the resolved face.
type Metrics struct {
	Ascent, Descent, LineGap float64
}

// Line is a single laid out line.
type Line struct {
	Text  string
	Width float64
}

// TextBox is the result of laying out text into a box width.
type TextBox struct {
	Lines   []Line
	Width   float64
	Height  float64
	Metrics Metrics
}

// Provider maps FontSpec to a concrete font.Face.
type Provider interface {
	Resolve(FontSpec) (font.Face, Metrics)
}

// MeasureFunc returns the advance width of s in pixels.
type MeasureFunc func(s string) float64

// FaceMeasure measures with a font.Face using fractional advances.
func FaceMeasure(face font.Face) MeasureFunc {
	return func(s string) float64 { return fixedToFloat(font.MeasureString(face, s)) }
}

func fixedToFloat(v fixed.Int26_6) float64 { return float64(v) / 64 }

func metricsOf(face font.Face) Metrics {
	m := face.Metrics()
	return Metrics{
		Ascent:  fixedToFloat(m.Ascent),
		Descent: fixedToFloat(m.Descent),
		LineGap: fixedToFloat(m.Height - m.Ascent - m.Descent),
	}
}

// BasicProvider uses x/image/basicfont Face7x13 for deterministic tests.
type BasicProvider struct{}

func (BasicProvider) Resolve(spec FontSpec) (font.Face, Metrics) {
	f := basicfont.Face7x13
	return f, metricsOf(f)
}

// Wrap breaks text into lines no wider than maxWidth.
//
// The first pass is greedy on spaces. The second pass hard-splits, rune by
// rune, any line that is still too wide, which is what happens with scripts
// that do not separate words with spaces. Explicit newlines start a new
// paragraph. A line always holds at least one rune, so a single glyph wider
// than maxWidth is the only way a line can exceed it.
func Wrap(measure MeasureFunc, text string, maxWidth float64) []string {
	var out []string
	for _, para := range strings.Split(text, "\n") {
		words := strings.Fields(para)
		if len(words) == 0 {
			continue
		}
		var greedy []string
		cur := words[0]
		for _, w := range words[1:] {
			if measure(cur+" "+w) < maxWidth {
				cur += " " + w
				continue
			}
			greedy = append(greedy, cur)
			cur = w
		}
		greedy = append(greedy, cur)

		for _, line := range greedy {
			if measure(line) <= maxWidth {
				out = append(out, line)
				continue
			}
			out = append(out, splitRunes(measure, line, maxWidth)...)
		}
	}
	return out
}

func splitRunes(measure MeasureFunc, line string, maxWidth float64) []string {
	var out []string
	var b strings.Builder
	for _, r := range line {
		if b.Len() > 0 && measure(b.String()+string(r)) > maxWidth {
			out = append(out, strings.TrimRight(b.String(), " "))
			b.Reset()
			if r == ' ' {
				continue
			}
		}
		b.WriteRune(r)
	}
	if b.Len() > 0 {
		out = append(out, b.String())
	}
	return out
}

// WordWrapLayouter lays out a single-font paragraph into a TextBox.
type WordWrapLayouter struct{ Provider Provider }

func NewWordWrap(provider Provider) *WordWrapLayouter { return &WordWrapLayouter{Provider: provider} }

// Layout wraps text with the face resolved for the FontSpec. Line height is
// lineHeight × font size; zero means ascent+descent+gap.
func (l *WordWrapLayouter) Layout(text string, spec FontSpec, maxWidth, lineHeight float64) (TextBox, error) {
	if l.Provider == nil {
		l.Provider = BasicProvider{}
	}
	face, met := l.Provider.Resolve(spec)
	measure := FaceMeasure(face)
	step := met.Ascent + met.Descent + met.LineGap
	if lineHeight > 0 && spec.Size > 0 {
		step = spec.Size * lineHeight
	}
	box := TextBox{Metrics: met}
	for _, s := range Wrap(measure, text, maxWidth) {
		ln := Line{Text: s, Width: measure(s)}
		box.Lines = append(box.Lines, ln)
		if ln.Width > box.Width {
			box.Width = ln.Width
		}
		box.Height += step
	}
	return box, nil
}

