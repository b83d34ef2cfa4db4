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
	"errors"
	"image"
	"image/color"
	"os"
	"path/filepath"
	"testing"

	"vocabgrid/internal/domain"
	"vocabgrid/internal/render"
)

func solid(w, h int) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: 200, G: 120, B: 40, A: 255})
		}
	}
	return img
}

func pngImage(t *testing.T, w, h int) *domain.Image {
	t.Helper()
	enc, err := render.EncodePNG(solid(w, h))
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	return &enc
}

func sampleDocument(t *testing.T) Document {
	t.Helper()
	cat := domain.Catalog{Theme: "Sir Isaac spends a day at the beach", Items: []domain.ContentItem{
		{ID: 1, Word: "shell", Phonetic: "[ʃɛl]", Definition: "貝殼", EnglishSentence: "She found a shell.", TargetSentence: "她找到一個貝殼。"},
		{ID: 2, Word: "tide", Phonetic: "[taɪd]", Definition: "潮汐", EnglishSentence: "The tide is coming in.", TargetSentence: "漲潮了。"},
	}}
	img := pngImage(t, 32, 24)
	return NewDocument(cat, func(id int64) (domain.Image, bool) {
		if id == 1 {
			return *img, true
		}
		return domain.Image{}, false
	}, nil)
}

func TestNewDocumentPairsImages(t *testing.T) {
	doc := sampleDocument(t)
	if len(doc.Entries) != 2 || doc.Entries[0].Image == nil || doc.Entries[1].Image != nil {
		t.Fatalf("unexpected entries: %+v", doc.Entries)
	}
	if !(Document{}).Empty() || doc.Empty() {
		t.Fatalf("Empty() mismatch")
	}
}

func TestWritePDF(t *testing.T) {
	doc := sampleDocument(t)
	doc.Stitched = pngImage(t, 64, 64)
	var buf bytes.Buffer
	if err := WritePDF(&buf, doc, PDFOptions{}); err != nil {
		t.Fatalf("write pdf: %v", err)
	}
	if !bytes.HasPrefix(buf.Bytes(), []byte("%PDF-")) {
		t.Fatalf("not a pdf: %q", buf.Bytes()[:8])
	}
	if err := WritePDF(&buf, Document{}, PDFOptions{}); !errors.Is(err, ErrEmptyDocument) {
		t.Fatalf("expected ErrEmptyDocument, got %v", err)
	}
}

func TestExportPDFBreaksPages(t *testing.T) {
	root := t.TempDir()
	var cat domain.Catalog
	cat.Theme = "Many words"
	for i := int64(1); i <= 12; i++ {
		cat.Items = append(cat.Items, domain.ContentItem{ID: i, Word: "word", Definition: "def", EnglishSentence: "An English sentence.", TargetSentence: "A translation."})
	}
	img := pngImage(t, 40, 40)
	doc := NewDocument(cat, func(int64) (domain.Image, bool) { return *img, true }, nil)
	p, err := ExportPDF(root, doc, "cards.pdf", PDFOptions{Title: "Test"})
	if err != nil {
		t.Fatalf("export pdf: %v", err)
	}
	if p != filepath.Join(root, "exports", "cards.pdf") {
		t.Fatalf("unexpected path %s", p)
	}
	data, err := os.ReadFile(p)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	// twelve 65mm-square thumbnails cannot fit on one A4 page
	if n := bytes.Count(data, []byte("/Type /Page\n")); n < 2 {
		t.Fatalf("expected several pages, got %d", n)
	}
}

func TestTextBitmapWrapsToColumn(t *testing.T) {
	faces := render.DefaultFaces()
	short, err := textBitmap(faces, "tide", 11, englishColor, false, 100)
	if err != nil {
		t.Fatalf("bitmap: %v", err)
	}
	long, err := textBitmap(faces, "the tide is coming in and the shells are washed up on the sand again and again", 11, englishColor, false, 30)
	if err != nil {
		t.Fatalf("bitmap: %v", err)
	}
	if long.h <= short.h {
		t.Fatalf("wrapped text must be taller: %v <= %v", long.h, short.h)
	}
	// column width plus the 40 unit gutter
	if want := 30 + 40/unitsPerMM; long.w < want-0.5 || long.w > want+0.5 {
		t.Fatalf("width %v, want about %v", long.w, want)
	}
}

func TestRoundedImageClipsCorners(t *testing.T) {
	data, ratio, err := roundedImage(solid(40, 20), thumbRadius)
	if err != nil {
		t.Fatalf("round: %v", err)
	}
	if ratio != 2 {
		t.Fatalf("ratio %v", ratio)
	}
	img, _, err := render.Decode(data)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if _, _, _, a := img.At(0, 0).RGBA(); a != 0 {
		t.Fatalf("corner must be transparent, alpha %d", a)
	}
	if _, _, _, a := img.At(20, 10).RGBA(); a == 0 {
		t.Fatalf("center must be opaque")
	}
}
