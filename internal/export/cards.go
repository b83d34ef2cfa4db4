/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package export

import (
	"archive/zip"
	"bytes"
	"encoding/json"
	"fmt"
	"image"
	"image/png"
	"io"
	"strings"
	"unicode"

	"vocabgrid/internal/domain"
)

// ManifestName is the archive entry describing the cards.
const ManifestName = "manifest.json"

// Card is one rendered cell of the vocab board.
type Card struct {
	Index int                 // cell index on the board
	Item  *domain.ContentItem // nil for an empty cell
	Image image.Image
}

type cardManifest struct {
	Theme string      `json:"theme"`
	Cards []cardEntry `json:"cards"`
}

type cardEntry struct {
	File     string `json:"file"`
	Cell     int    `json:"cell"`
	ID       int64  `json:"id,omitempty"`
	Word     string `json:"word,omitempty"`
	Phonetic string `json:"phonetic,omitempty"`
}

// WriteCards packages one PNG per card into a ZIP archive and adds a JSON
// manifest listing the file, cell and word of every card.
func WriteCards(w io.Writer, theme string, cards []Card) error {
	if len(cards) == 0 {
		return ErrEmptyDocument
	}
	zw := zip.NewWriter(w)
	pad := len(fmt.Sprint(len(cards)))
	man := cardManifest{Theme: theme}
	imgBuf := &bytes.Buffer{}
	for i, c := range cards {
		if c.Image == nil {
			return fmt.Errorf("card %d has no image", c.Index+1)
		}
		imgBuf.Reset()
		if err := png.Encode(imgBuf, c.Image); err != nil {
			return fmt.Errorf("encode png: %w", err)
		}
		e := cardEntry{Cell: c.Index}
		name := fmt.Sprintf("%0*d", pad, i+1)
		if c.Item != nil {
			e.ID, e.Word, e.Phonetic = c.Item.ID, c.Item.Word, CleanPhonetic(c.Item.Phonetic)
			if s := slug(c.Item.Word); s != "" {
				name += "-" + s
			}
		}
		e.File = name + ".png"
		if err := addZipFile(zw, e.File, imgBuf.Bytes()); err != nil {
			return fmt.Errorf("zip add image: %w", err)
		}
		man.Cards = append(man.Cards, e)
	}
	data, err := json.MarshalIndent(man, "", "  ")
	if err != nil {
		return fmt.Errorf("build manifest: %w", err)
	}
	if err := addZipFile(zw, ManifestName, data); err != nil {
		return fmt.Errorf("zip add manifest: %w", err)
	}
	if err := zw.Close(); err != nil {
		return fmt.Errorf("close zip: %w", err)
	}
	return nil
}

// ExportCards writes the card archive. Relative paths go under <root>/exports
// and a missing .zip extension is added.
func ExportCards(root, theme string, cards []Card, outPath string) (string, error) {
	if len(cards) == 0 {
		return "", ErrEmptyDocument
	}
	if !strings.HasSuffix(strings.ToLower(outPath), ".zip") {
		outPath += ".zip"
	}
	f, p, err := createOut(root, outPath)
	if err != nil {
		return "", err
	}
	if err := WriteCards(f, theme, cards); err != nil {
		_ = f.Close()
		return "", err
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("close zip: %w", err)
	}
	return p, nil
}

func addZipFile(zw *zip.Writer, name string, data []byte) error {
	w, err := zw.Create(name)
	if err != nil {
		return err
	}
	_, err = w.Write(data)
	return err
}

// slug lowercases word and keeps letters and digits, joining the rest with dashes.
func slug(word string) string {
	var b strings.Builder
	dash := false
	for _, r := range strings.ToLower(word) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			if dash && b.Len() > 0 {
				b.WriteByte('-')
			}
			b.WriteRune(r)
			dash = false
			continue
		}
		dash = true
	}
	return b.String()
}
