/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany..
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package domain

import (
	"errors"
	"fmt"
	"strings"
)

// This file defines the core data model shared by the grid engine, the
// generation client and the exporters. Everything here is plain data.

// NoItem is the reserved content id meaning "cell is empty".
const NoItem int64 = 0

// ContentItem is one vocabulary entry. It is immutable once produced by
// generation; the catalog is replaced wholesale, never patched.
type ContentItem struct {
	ID              int64  `json:"id"`
	Word            string `json:"word"`
	Phonetic        string `json:"phonetic"`
	Definition      string `json:"definition"`
	EnglishSentence string `json:"englishSentence"`
	TargetSentence  string `json:"targetSentence"`
	ImagePrompt     string `json:"imagePrompt"`
}

// Catalog is the ordered result of one vocabulary generation.
type Catalog struct {
	Theme string        `json:"theme"`
	Items []ContentItem `json:"items"`
}

var (
	ErrReservedID  = errors.New("content id 0 is reserved")
	ErrDuplicateID = errors.New("duplicate content id")
)

// Len returns the number of items.
func (c Catalog) Len() int { return len(c.Items) }

// Find returns the item with the given id.
func (c Catalog) Find(id int64) (ContentItem, bool) {
	if id == NoItem {
		return ContentItem{}, false
	}
	for _, it := range c.Items {
		if it.ID == id {
			return it, true
		}
	}
	return ContentItem{}, false
}

// IDs returns item ids in catalog order.
func (c Catalog) IDs() []int64 {
	out := make([]int64, len(c.Items))
	for i, it := range c.Items {
		out[i] = it.ID
	}
	return out
}

// Validate rejects the reserved id and duplicates.
func (c Catalog) Validate() error {
	seen := make(map[int64]struct{}, len(c.Items))
	for i, it := range c.Items {
		if it.ID == NoItem {
			return fmt.Errorf("item %d (%q): %w", i, it.Word, ErrReservedID)
		}
		if _, dup := seen[it.ID]; dup {
			return fmt.Errorf("item %d (%q) id %d: %w", i, it.Word, it.ID, ErrDuplicateID)
		}
		seen[it.ID] = struct{}{}
	}
	return nil
}

// Image is an encoded raster payload as stored in the cache and sent to
// the generation service.
type Image struct {
	Data     []byte `json:"data"`
	MIMEType string `json:"mimeType"`
}

// Empty reports whether the image carries no data.
func (im *Image) Empty() bool { return im == nil || len(im.Data) == 0 }

// Mode selects how cells are bound to content.
type Mode uint8

const (
	// ModeVocab binds cells to catalog items by id.
	ModeVocab Mode = iota
	// ModeCollage binds images to physical cell positions.
	ModeCollage
)

func (m Mode) String() string {
	switch m {
	case ModeCollage:
		return "collage"
	default:
		return "vocab"
	}
}

// ParseMode accepts "vocab" or "collage" (case-insensitive).
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "vocab", "vocabulary":
		return ModeVocab, nil
	case "collage":
		return ModeCollage, nil
	}
	return ModeVocab, fmt.Errorf("unknown mode %q", s)
}

// ProficiencyLevels are the level tags accepted by vocabulary generation.
var ProficiencyLevels = []string{"A1", "A2", "B1", "B2", "C1", "C2", "TOEIC", "TOEFL", "IELTS", "CELPIP"}

// NormalizeLevels uppercases and filters levels against ProficiencyLevels,
// preserving first-seen order and dropping duplicates.
func NormalizeLevels(in []string) ([]string, error) {
	var out []string
	seen := map[string]bool{}
	for _, raw := range in {
		lv := strings.ToUpper(strings.TrimSpace(raw))
		if lv == "" || seen[lv] {
			continue
		}
		ok := false
		for _, known := range ProficiencyLevels {
			if known == lv {
				ok = true
				break
			}
		}
		if !ok {
			return nil, fmt.Errorf("unknown proficiency level %q", raw)
		}
		seen[lv] = true
		out = append(out, lv)
	}
	return out, nil
}
