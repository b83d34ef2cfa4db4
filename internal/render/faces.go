/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package render

import (
	"math"
	"sync"

	"github.com/golang/freetype/truetype"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/gobold"
	"golang.org/x/image/font/gofont/goregular"

	"vocabgrid/internal/textlayout"
)

// TrueTypeFaces resolves font specs to freetype faces of the Go fonts.
// Faces are cached per weight and half-pixel size. The provider may be shared,
// the faces it returns must not be used from several goroutines at once.
type TrueTypeFaces struct {
	mu      sync.Mutex
	regular *truetype.Font
	bold    *truetype.Font
	faces   map[ttKey]font.Face
}

type ttKey struct {
	bold bool
	size float64
}

// NewTrueTypeFaces parses the embedded Go fonts.
func NewTrueTypeFaces() (*TrueTypeFaces, error) {
	reg, err := truetype.Parse(goregular.TTF)
	if err != nil {
		return nil, err
	}
	bold, err := truetype.Parse(gobold.TTF)
	if err != nil {
		return nil, err
	}
	return &TrueTypeFaces{regular: reg, bold: bold, faces: map[ttKey]font.Face{}}, nil
}

func (p *TrueTypeFaces) Resolve(spec textlayout.FontSpec) (font.Face, textlayout.Metrics) {
	size := spec.Size
	if size <= 0 {
		size = 12
	}
	k := ttKey{bold: spec.Bold(), size: math.Round(size*2) / 2}
	p.mu.Lock()
	defer p.mu.Unlock()
	face, ok := p.faces[k]
	if !ok {
		f := p.regular
		if k.bold {
			f = p.bold
		}
		face = truetype.NewFace(f, &truetype.Options{Size: k.size, DPI: 72, Hinting: font.HintingFull})
		p.faces[k] = face
	}
	m := face.Metrics()
	return face, textlayout.Metrics{
		Ascent:  float64(m.Ascent) / 64,
		Descent: float64(m.Descent) / 64,
		LineGap: float64(m.Height-m.Ascent-m.Descent) / 64,
	}
}

var (
	defaultFacesOnce sync.Once
	defaultFaces     textlayout.Provider
)

// DefaultFaces returns the shared Go font provider. If the embedded fonts
// cannot be parsed the basic bitmap face is used.
func DefaultFaces() textlayout.Provider {
	defaultFacesOnce.Do(func() {
		p, err := NewTrueTypeFaces()
		if err != nil {
			defaultFaces = textlayout.BasicProvider{}
			return
		}
		defaultFaces = p
	})
	return defaultFaces
}

// FacesWithFont loads a TTF/OTF file as the default overlay family, for
// scripts the Go fonts do not cover. Missing glyph weights fall back to the
// closest loaded weight, unknown families to DefaultFaces.
func FacesWithFont(path string) (textlayout.Provider, error) {
	lib := textlayout.NewGoFontLibrary()
	for _, w := range []int{400, 700} {
		if err := lib.LoadTTF(textlayout.DefaultFamily, w, false, path); err != nil {
			return nil, err
		}
	}
	return textlayout.OTProvider{Lib: lib, Fallback: DefaultFaces()}, nil
}
