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
	"image"
	"math"

	"vocabgrid/internal/domain"
	"vocabgrid/internal/textlayout"
	"vocabgrid/internal/vector"
)

// ErrNoImage is returned when a cell without an image is rendered on its own.
var ErrNoImage = errors.New("cell has no image")

// Overlay panel colors.
var (
	wordPanelFill     = vector.White.WithAlpha(0.9)
	sentencePanelFill = vector.Black.WithAlpha(0.75)
	phoneticColor     = vector.Color{R: 0x4b, G: 0x55, B: 0x63, A: 255}
	targetColor       = vector.Color{R: 0xe5, G: 0xe7, B: 0xeb, A: 255}
)

const overlayLineHeight = 1.4

// CellContent is everything DrawCell needs for one cell.
type CellContent struct {
	Image         image.Image
	Item          *domain.ContentItem // nil in freeform mode
	ShowWordInfo  bool
	ShowSentences bool
}

// Overlay holds the text sizes and spacing for the panels of one cell.
type Overlay struct {
	Scale      float64
	Padding    float64
	Word       float64
	Phonetic   float64
	Definition float64
	Sentence   float64
}

// OverlayFor derives overlay metrics from the cell size. Tall cells are
// measured as if they were at most 1.4 times as high as they are wide.
func OverlayFor(w, h float64) Overlay {
	scale := math.Min(w, h*1.4) / 1000
	return Overlay{
		Scale:      scale,
		Padding:    16 * scale,
		Word:       math.Max(24, 56*scale),
		Phonetic:   math.Max(12, 28*scale),
		Definition: math.Max(16, 30*scale),
		Sentence:   math.Max(14, 28*scale),
	}
}

// Scaled shrinks the font sizes by f, leaving spacing alone.
func (o Overlay) Scaled(f float64) Overlay {
	if f <= 0 || f == 1 {
		return o
	}
	o.Word *= f
	o.Phonetic *= f
	o.Definition *= f
	o.Sentence *= f
	return o
}

// CoverCrop returns the centred region of a srcW×srcH image that has the
// target aspect ratio (w/h). Scaling that region to fill a target box never
// distorts the image.
func CoverCrop(srcW, srcH, targetRatio float64) vector.Rect {
	if srcW <= 0 || srcH <= 0 || targetRatio <= 0 {
		return vector.Rect{}
	}
	if srcW/srcH > targetRatio {
		w := srcH * targetRatio
		return vector.R((srcW-w)/2, 0, w, srcH)
	}
	h := srcW / targetRatio
	return vector.R(0, (srcH-h)/2, srcW, h)
}

// DrawCell paints one cell into r: the cover-cropped image, then the word panel
// at the top and the sentence panel at the bottom when enabled.
func DrawCell(s Surface, c CellContent, r vector.Rect) {
	drawCell(s, c, r, OverlayFor(r.W, r.H))
}

func drawCell(s Surface, c CellContent, r vector.Rect, o Overlay) {
	if c.Image != nil {
		b := c.Image.Bounds()
		src := CoverCrop(float64(b.Dx()), float64(b.Dy()), r.W/r.H)
		s.DrawImage(c.Image, src, r)
	}
	if c.Item == nil {
		return
	}
	if c.ShowWordInfo {
		drawWordPanel(s, *c.Item, r, o)
	}
	if c.ShowSentences {
		drawSentencePanel(s, *c.Item, r, o)
	}
}

func measurer(s Surface, f textlayout.FontSpec) textlayout.MeasureFunc {
	return func(t string) float64 { return s.MeasureText(t, f) }
}

func drawWordPanel(s Surface, it domain.ContentItem, r vector.Rect, o Overlay) {
	wordFont := textlayout.FontSpec{Size: o.Word, Weight: 900}
	phonFont := textlayout.FontSpec{Size: o.Phonetic, Weight: 400}
	defFont := textlayout.FontSpec{Size: o.Definition, Weight: 700}

	defLines := textlayout.Wrap(measurer(s, defFont), it.Definition, r.W-2*o.Padding)
	defLH := o.Definition * overlayLineHeight
	content := o.Word*1.1 + 10*o.Scale + float64(len(defLines))*defLH
	s.FillRoundedRect(vector.R(r.X, r.Y, r.W, content+o.Padding*1.5), 0, wordPanelFill)

	cx := r.X + r.W/2
	y := r.Y + o.Padding + o.Word*0.85
	phon := " " + it.Phonetic
	ww := s.MeasureText(it.Word, wordFont)
	start := cx - (ww+s.MeasureText(phon, phonFont))/2
	s.DrawText(it.Word, start, y, wordFont, vector.Black, AlignLeft)
	s.DrawText(phon, start+ww, y, phonFont, phoneticColor, AlignLeft)

	y += 15 * o.Scale
	for _, ln := range defLines {
		y += defLH
		s.DrawText(ln, cx, y-defLH*0.25, defFont, vector.Black, AlignCenter)
	}
}

func drawSentencePanel(s Surface, it domain.ContentItem, r vector.Rect, o Overlay) {
	engFont := textlayout.FontSpec{Size: o.Sentence, Weight: 700}
	tgtFont := textlayout.FontSpec{Size: o.Sentence, Weight: 400}
	maxW := r.W - 2*o.Padding
	eng := textlayout.Wrap(measurer(s, engFont), it.EnglishSentence, maxW)
	tgt := textlayout.Wrap(measurer(s, tgtFont), it.TargetSentence, maxW)
	lh := o.Sentence * overlayLineHeight

	boxH := float64(len(eng))*lh + 8*o.Scale + float64(len(tgt))*lh + o.Padding*1.5
	boxY := r.Y + r.H - boxH
	s.FillRoundedRect(vector.R(r.X, boxY, r.W, boxH), 0, sentencePanelFill)

	cx := r.X + r.W/2
	y := boxY + o.Padding + o.Sentence*0.8
	for _, ln := range eng {
		s.DrawText(ln, cx, y, engFont, vector.White, AlignCenter)
		y += lh
	}
	y += 5 * o.Scale
	for _, ln := range tgt {
		s.DrawText(ln, cx, y, tgtFont, targetColor, AlignCenter)
		y += lh
	}
}

// CellCanvasSize is the native-resolution canvas for a single-cell render:
// the image's own pixels cropped to the ratio.
func CellCanvasSize(img image.Image, ratio float64) (w, h int) {
	b := img.Bounds()
	crop := CoverCrop(float64(b.Dx()), float64(b.Dy()), ratio)
	return int(math.Round(crop.W)), int(math.Round(crop.H))
}

// RenderCell renders one cell at native resolution with its overlays.
// ratio is width/height of the cell's layout slot.
func RenderCell(c CellContent, ratio float64, faces textlayout.Provider) (*image.RGBA, error) {
	if c.Image == nil {
		return nil, ErrNoImage
	}
	w, h := CellCanvasSize(c.Image, ratio)
	if w <= 0 || h <= 0 {
		return nil, ErrNoImage
	}
	s := NewGGSurface(w, h, faces)
	DrawCell(s, c, vector.R(0, 0, float64(w), float64(h)))
	return s.Image(), nil
}
