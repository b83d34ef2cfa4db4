/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package render

import (
	"image"
	"math"

	"github.com/fogleman/gg"
	xdraw "golang.org/x/image/draw"

	"vocabgrid/internal/textlayout"
	"vocabgrid/internal/vector"
)

// GGSurface draws into an RGBA raster with fogleman/gg.
type GGSurface struct {
	dc    *gg.Context
	faces textlayout.Provider
}

// NewGGSurface creates a w×h transparent canvas. faces may be nil for DefaultFaces.
func NewGGSurface(w, h int, faces textlayout.Provider) *GGSurface {
	if faces == nil {
		faces = DefaultFaces()
	}
	return &GGSurface{dc: gg.NewContext(w, h), faces: faces}
}

func (s *GGSurface) Size() (float64, float64) {
	return float64(s.dc.Width()), float64(s.dc.Height())
}

// Image returns the backing raster.
func (s *GGSurface) Image() *image.RGBA {
	if im, ok := s.dc.Image().(*image.RGBA); ok {
		return im
	}
	b := s.dc.Image().Bounds()
	out := image.NewRGBA(b)
	xdraw.Draw(out, b, s.dc.Image(), b.Min, xdraw.Src)
	return out
}

func (s *GGSurface) FillRect(r vector.Rect, c vector.Color) {
	s.dc.SetColor(c.NRGBA())
	s.dc.DrawRectangle(r.X, r.Y, r.W, r.H)
	s.dc.Fill()
}

func (s *GGSurface) FillRoundedRect(r vector.Rect, radius float64, c vector.Color) {
	if radius <= 0 {
		s.FillRect(r, c)
		return
	}
	s.dc.SetColor(c.NRGBA())
	s.dc.DrawRoundedRectangle(r.X, r.Y, r.W, r.H, radius)
	s.dc.Fill()
}

func (s *GGSurface) DrawImage(img image.Image, src, dst vector.Rect) {
	if img == nil || src.Empty() || dst.Empty() {
		return
	}
	origin := img.Bounds().Min
	sr := image.Rect(
		origin.X+int(math.Round(src.X)), origin.Y+int(math.Round(src.Y)),
		origin.X+int(math.Round(src.X+src.W)), origin.Y+int(math.Round(src.Y+src.H)),
	).Intersect(img.Bounds())
	dr := image.Rect(
		int(math.Round(dst.X)), int(math.Round(dst.Y)),
		int(math.Round(dst.X+dst.W)), int(math.Round(dst.Y+dst.H)),
	)
	rgba, ok := s.dc.Image().(*image.RGBA)
	if !ok || sr.Empty() || dr.Empty() {
		return
	}
	xdraw.CatmullRom.Scale(rgba, dr, img, sr, xdraw.Over, nil)
}

func (s *GGSurface) DrawText(text string, x, y float64, f textlayout.FontSpec, c vector.Color, a Align) {
	face, _ := s.faces.Resolve(f)
	s.dc.SetFontFace(face)
	s.dc.SetColor(c.NRGBA())
	if a == AlignCenter {
		w, _ := s.dc.MeasureString(text)
		x -= w / 2
	}
	s.dc.DrawString(text, x, y)
}

func (s *GGSurface) MeasureText(text string, f textlayout.FontSpec) float64 {
	face, _ := s.faces.Resolve(f)
	return textlayout.FaceMeasure(face)(text)
}

func (s *GGSurface) StrokeLine(seg vector.Segment, st vector.Stroke) {
	if st.Width <= 0 {
		return
	}
	s.dc.SetColor(st.Color.NRGBA())
	s.dc.SetLineWidth(st.Width)
	switch st.Cap {
	case vector.CapRound:
		s.dc.SetLineCapRound()
	case vector.CapSquare:
		s.dc.SetLineCapSquare()
	default:
		s.dc.SetLineCapButt()
	}
	s.dc.SetDash(st.Dash...)
	s.dc.DrawLine(seg.A.X, seg.A.Y, seg.B.X, seg.B.Y)
	s.dc.Stroke()
	s.dc.SetDash()
}
