/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package textlayout

import (
	"fmt"
	"math"
	"os"
	"sync"

	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/gobold"
	"golang.org/x/image/font/gofont/gobolditalic"
	"golang.org/x/image/font/gofont/goitalic"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/font/opentype"
)

// DefaultFamily is the family name the built-in Go fonts are registered under.
const DefaultFamily = "Go"

// FontLibrary stores loaded OpenType fonts mapped by family/weight/italic.
// It does not support named instances/variations beyond weight and italic flags.
// Resolved faces are cached per size; a library is safe for concurrent use,
// the faces it hands out are not.
type FontLibrary struct {
	mu    sync.Mutex
	fonts map[fontKey]*opentype.Font
	faces map[faceKey]font.Face
}

type fontKey struct {
	family string
	weight int
	italic bool
}

type faceKey struct {
	fontKey
	size float64
}

func NewFontLibrary() *FontLibrary {
	return &FontLibrary{fonts: make(map[fontKey]*opentype.Font), faces: make(map[faceKey]font.Face)}
}

// NewGoFontLibrary returns a library preloaded with the Go font family.
func NewGoFontLibrary() *FontLibrary {
	fl := NewFontLibrary()
	for _, f := range []struct {
		data   []byte
		weight int
		italic bool
	}{
		{goregular.TTF, 400, false},
		{gobold.TTF, 700, false},
		{goitalic.TTF, 400, true},
		{gobolditalic.TTF, 700, true},
	} {
		// the embedded fonts are known-good
		_ = fl.LoadBytes(DefaultFamily, f.weight, f.italic, f.data)
	}
	return fl
}

// LoadTTF loads a font file into the library under the given family/weight/italic.
func (fl *FontLibrary) LoadTTF(family string, weight int, italic bool, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read font %s: %w", path, err)
	}
	if err := fl.LoadBytes(family, weight, italic, data); err != nil {
		return fmt.Errorf("parse font %s: %w", path, err)
	}
	return nil
}

// LoadBytes parses an in-memory TTF/OTF.
func (fl *FontLibrary) LoadBytes(family string, weight int, italic bool, data []byte) error {
	f, err := opentype.Parse(data)
	if err != nil {
		return err
	}
	fl.mu.Lock()
	defer fl.mu.Unlock()
	if fl.fonts == nil {
		fl.fonts = make(map[fontKey]*opentype.Font)
	}
	fl.fonts[fontKey{family: family, weight: weight, italic: italic}] = f
	// drop cached faces of the replaced font
	for k := range fl.faces {
		if k.fontKey == (fontKey{family: family, weight: weight, italic: italic}) {
			delete(fl.faces, k)
		}
	}
	return nil
}

// find returns the best font for the FontSpec and the key it is stored under.
// Caller holds fl.mu.
func (fl *FontLibrary) find(spec FontSpec) (*opentype.Font, fontKey, bool) {
	if fl == nil || fl.fonts == nil {
		return nil, fontKey{}, false
	}
	family := spec.Family
	if family == "" {
		family = DefaultFamily
	}
	weight := 400
	if spec.Bold() {
		weight = 700
	}
	// Exact match first
	want := fontKey{family: family, weight: weight, italic: spec.Italic}
	if f, ok := fl.fonts[want]; ok {
		return f, want, true
	}
	// then upright of the same weight, then any face of the family
	up := fontKey{family: family, weight: weight}
	if f, ok := fl.fonts[up]; ok {
		return f, up, true
	}
	var best fontKey
	var bestF *opentype.Font
	for k, f := range fl.fonts {
		if k.family != family {
			continue
		}
		// deterministic pick: closest weight, upright first
		if bestF == nil || math.Abs(float64(k.weight-weight)) < math.Abs(float64(best.weight-weight)) ||
			(k.weight == best.weight && !k.italic && best.italic) {
			best, bestF = k, f
		}
	}
	return bestF, best, bestF != nil
}

func (fl *FontLibrary) face(spec FontSpec, dpi float64) (font.Face, bool) {
	fl.mu.Lock()
	defer fl.mu.Unlock()
	f, key, ok := fl.find(spec)
	if !ok {
		return nil, false
	}
	fk := faceKey{fontKey: key, size: math.Round(spec.Size*2) / 2}
	if face, ok := fl.faces[fk]; ok {
		return face, true
	}
	face, err := opentype.NewFace(f, &opentype.FaceOptions{Size: fk.size, DPI: dpi, Hinting: font.HintingFull})
	if err != nil {
		return nil, false
	}
	if fl.faces == nil {
		fl.faces = make(map[faceKey]font.Face)
	}
	fl.faces[fk] = face
	return face, true
}

// OTProvider resolves FontSpec using a FontLibrary and falls back to another Provider.
// It uses kerning as provided by opentype.Face and font.Drawer.
type OTProvider struct {
	Lib      *FontLibrary
	DPI      float64 // default 72 if zero
	Fallback Provider
}

func (p OTProvider) Resolve(spec FontSpec) (font.Face, Metrics) {
	if spec.Size <= 0 {
		spec.Size = 12
	}
	dpi := p.DPI
	if dpi <= 0 {
		dpi = 72
	}
	if p.Lib != nil {
		if face, ok := p.Lib.face(spec, dpi); ok {
			return face, metricsOf(face)
		}
	}
	fb := p.Fallback
	if fb == nil {
		fb = BasicProvider{}
	}
	return fb.Resolve(spec)
}
