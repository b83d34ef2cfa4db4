/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package export

import (
	"bytes"
	"fmt"
	"image"
	"io"
	"log/slog"
	"math"
	"strings"

	"github.com/fogleman/gg"
	"github.com/jung-kurt/gofpdf"

	applog "vocabgrid/internal/log"
	"vocabgrid/internal/render"
	"vocabgrid/internal/textlayout"
	"vocabgrid/internal/vector"
)

// PDFOptions controls PDF export behavior.
// Units are millimetres on A4 portrait pages.
//
// Text is rasterized with the overlay fonts and placed as images, so IPA
// symbols and CJK definitions print without embedding a font in the PDF.
//
//nolint:revive // keep options grouped and explicit for clarity
type PDFOptions struct {
	Faces  textlayout.Provider // DefaultFaces when nil
	Title  string
	Author string
}

const (
	pdfMargin    = 20.0
	pdfPageBreak = 270.0
	thumbWidth   = 65.0
	thumbReserve = 75.0 // thumbnail plus gutter taken from the text column
	thumbRadius  = 40.0 // pixels of the source image
	collageSize  = 170.0
	collageTop   = 30.0

	// Text bitmaps are laid out in units of 1/5 mm and rasterized at 3 pixels per unit.
	unitsPerMM  = 5.0
	bitmapScale = 3.0
)

var (
	themeColor   = vector.Color{R: 0x1e, G: 0x29, B: 0x3b, A: 255}
	headingColor = vector.Color{R: 0xf9, G: 0x73, B: 0x16, A: 255}
	englishColor = vector.Color{R: 0x1f, G: 0x29, B: 0x37, A: 255}
	targetColor  = vector.Color{R: 0x4b, G: 0x55, B: 0x63, A: 255}
	borderColor  = vector.Color{R: 200, G: 200, B: 200, A: 255}
)

// bitmap is an encoded PNG with its placement size in millimetres.
type bitmap struct {
	png  []byte
	w, h float64
}

// textBitmap renders text wrapped to maxWidth millimetres. size is in layout units.
func textBitmap(faces textlayout.Provider, text string, size float64, c vector.Color, bold bool, maxWidth float64) (bitmap, error) {
	spec := textlayout.FontSpec{Size: size * bitmapScale, Weight: 400}
	if bold {
		spec.Weight = 700
	}
	maxUnits := maxWidth * unitsPerMM
	box, err := textlayout.NewWordWrap(faces).Layout(text, spec, maxUnits*bitmapScale, 1.5)
	if err != nil {
		return bitmap{}, err
	}
	step := spec.Size * 1.5
	if len(box.Lines) == 0 {
		box.Lines = []textlayout.Line{{}}
		box.Height = step
	}
	wpx := int(math.Ceil((maxUnits + 40) * bitmapScale))
	hpx := int(math.Ceil(box.Height + 20*bitmapScale))

	s := render.NewGGSurface(wpx, hpx, faces)
	for i, ln := range box.Lines {
		s.DrawText(ln.Text, 0, float64(i)*step+box.Metrics.Ascent, spec, c, render.AlignLeft)
	}
	enc, err := render.EncodePNG(s.Image())
	if err != nil {
		return bitmap{}, err
	}
	return bitmap{
		png: enc.Data,
		w:   float64(wpx) / bitmapScale / unitsPerMM,
		h:   float64(hpx) / bitmapScale / unitsPerMM,
	}, nil
}

// roundedImage clips img to a rounded rectangle and returns it as PNG with its
// width/height ratio.
func roundedImage(img image.Image, radius float64) ([]byte, float64, error) {
	b := img.Bounds()
	w, h := float64(b.Dx()), float64(b.Dy())
	if w <= 0 || h <= 0 {
		return nil, 0, fmt.Errorf("empty image")
	}
	r := math.Min(radius, math.Min(w/4, h/4))
	dc := gg.NewContext(b.Dx(), b.Dy())
	dc.DrawRoundedRectangle(0, 0, w, h, r)
	dc.Clip()
	dc.DrawImage(img, -b.Min.X, -b.Min.Y)
	enc, err := render.EncodePNG(dc.Image())
	if err != nil {
		return nil, 0, err
	}
	return enc.Data, w / h, nil
}

// pdfDoc wraps gofpdf with image registration by content.
type pdfDoc struct {
	pdf *gofpdf.Fpdf
	n   int
}

func (d *pdfDoc) image(data []byte, x, y, w, h float64) {
	d.n++
	name := fmt.Sprintf("img-%d", d.n)
	opts := gofpdf.ImageOptions{ImageType: "PNG", ReadDpi: false}
	d.pdf.RegisterImageOptionsReader(name, opts, bytes.NewReader(data))
	d.pdf.ImageOptions(name, x, y, w, h, false, opts, 0, "")
}

func (d *pdfDoc) bitmap(b bitmap, x, y float64) { d.image(b.png, x, y, b.w, b.h) }

// WritePDF lays out the vocabulary cards and, when present, the stitched board
// on a page of its own.
func WritePDF(w io.Writer, doc Document, opt PDFOptions) error {
	if doc.Empty() {
		return ErrEmptyDocument
	}
	faces := opt.Faces
	if faces == nil {
		faces = render.DefaultFaces()
	}
	lg := applog.WithComponent("export").With(slog.String("format", "pdf"))

	pdf := gofpdf.New("P", "mm", "A4", "")
	title := opt.Title
	if title == "" {
		title = doc.Theme
	}
	pdf.SetTitle(title, true)
	author := opt.Author
	if author == "" {
		author = "Vocab Grid Studio"
	}
	pdf.SetAuthor(author, true)
	pdf.SetAutoPageBreak(false, 0)
	pdf.AddPage()
	d := &pdfDoc{pdf: pdf}
	pageWidth, _ := pdf.GetPageSize()
	column := pageWidth - pdfMargin*2

	y := pdfMargin
	if strings.TrimSpace(doc.Theme) != "" {
		th, err := textBitmap(faces, doc.Theme, 18, themeColor, true, column)
		if err != nil {
			return fmt.Errorf("render theme: %w", err)
		}
		d.bitmap(th, pdfMargin, y)
		y += th.h + 20
	}

	for i, e := range doc.Entries {
		var thumb []byte
		var ratio float64
		if src, err := render.DecodeImage(e.Image); err != nil {
			lg.Warn("skipping undecodable image", slog.Int64("item", e.Item.ID), slog.Any("err", err))
		} else if src != nil {
			if thumb, ratio, err = roundedImage(src, thumbRadius); err != nil {
				return fmt.Errorf("prepare image %d: %w", i+1, err)
			}
		}
		textWidth := column
		if thumb != nil {
			textWidth -= thumbReserve
		}
		heading, err := textBitmap(faces, Heading(i, e), 14, headingColor, true, textWidth)
		if err != nil {
			return fmt.Errorf("render heading %d: %w", i+1, err)
		}
		eng, err := textBitmap(faces, e.Item.EnglishSentence, 11, englishColor, false, textWidth)
		if err != nil {
			return fmt.Errorf("render sentence %d: %w", i+1, err)
		}
		tgt, err := textBitmap(faces, e.Item.TargetSentence, 11, targetColor, false, textWidth)
		if err != nil {
			return fmt.Errorf("render translation %d: %w", i+1, err)
		}

		textHeight := heading.h + eng.h + tgt.h + 10
		var thumbHeight float64
		if thumb != nil {
			thumbHeight = thumbWidth / ratio
		}
		if y+math.Max(textHeight, thumbHeight) > pdfPageBreak {
			pdf.AddPage()
			y = pdfMargin
		}

		start := y
		d.bitmap(heading, pdfMargin, y)
		y += heading.h + 3
		d.bitmap(eng, pdfMargin, y)
		y += eng.h + 1
		d.bitmap(tgt, pdfMargin, y)
		y += tgt.h + 15
		if thumb != nil {
			d.image(thumb, pageWidth-pdfMargin-thumbWidth, start, thumbWidth, thumbHeight)
		}
		y = math.Max(y, math.Max(start+thumbHeight+10, start+textHeight+5))
	}

	if !doc.Stitched.Empty() {
		src, err := render.DecodeImage(doc.Stitched)
		if err != nil {
			return fmt.Errorf("decode stitched board: %w", err)
		}
		enc, err := render.EncodePNG(src)
		if err != nil {
			return err
		}
		if len(doc.Entries) > 0 {
			pdf.AddPage()
		}
		x := (pageWidth - collageSize) / 2
		pdf.SetDrawColor(int(borderColor.R), int(borderColor.G), int(borderColor.B))
		pdf.SetLineWidth(0.1)
		roundedRect(pdf, x-1, collageTop-1, collageSize+2, collageSize+2, 2, "D")
		d.image(enc.Data, x, collageTop, collageSize, collageSize)
	}

	if err := pdf.Output(w); err != nil {
		return fmt.Errorf("write pdf: %w", err)
	}
	lg.Info("pdf written", slog.Int("items", len(doc.Entries)), slog.Int("pages", pdf.PageNo()), slog.Bool("collage", !doc.Stitched.Empty()))
	return nil
}

// ExportPDF writes the PDF to outPath. Relative paths go under <root>/exports.
func ExportPDF(root string, doc Document, outPath string, opt PDFOptions) (string, error) {
	if doc.Empty() {
		return "", ErrEmptyDocument
	}
	f, p, err := createOut(root, outPath)
	if err != nil {
		return "", err
	}
	if err := WritePDF(f, doc, opt); err != nil {
		_ = f.Close()
		return "", err
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("close pdf: %w", err)
	}
	return p, nil
}

// roundedRect traces a rectangle with quadratic corners of radius r.
func roundedRect(pdf *gofpdf.Fpdf, x, y, w, h, r float64, style string) {
	r = math.Min(r, math.Min(w, h)/2)
	pdf.MoveTo(x+r, y)
	pdf.LineTo(x+w-r, y)
	pdf.CurveTo(x+w, y, x+w, y+r)
	pdf.LineTo(x+w, y+h-r)
	pdf.CurveTo(x+w, y+h, x+w-r, y+h)
	pdf.LineTo(x+r, y+h)
	pdf.CurveTo(x, y+h, x, y+h-r)
	pdf.LineTo(x, y+r)
	pdf.CurveTo(x, y, x+r, y)
	pdf.ClosePath()
	pdf.DrawPath(style)
}
