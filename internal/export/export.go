/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package export writes vocabulary sets and boards to PNG, PDF, plain text
// and card archives.
package export

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"vocabgrid/internal/domain"
	"vocabgrid/internal/storage"
)

// ErrEmptyDocument is returned when there is nothing to export.
var ErrEmptyDocument = errors.New("nothing to export")

// Entry is one vocabulary item with its illustration, if any.
type Entry struct {
	Item  domain.ContentItem
	Image *domain.Image
}

// Document is the exportable view of a session.
type Document struct {
	Theme    string
	Entries  []Entry
	Stitched *domain.Image // stitched board PNG, optional
}

// NewDocument pairs every catalog item with the image images returns for its id.
func NewDocument(cat domain.Catalog, images func(id int64) (domain.Image, bool), stitched *domain.Image) Document {
	doc := Document{Theme: cat.Theme, Stitched: stitched}
	for _, it := range cat.Items {
		e := Entry{Item: it}
		if images != nil {
			if img, ok := images(it.ID); ok && !img.Empty() {
				e.Image = &img
			}
		}
		doc.Entries = append(doc.Entries, e)
	}
	return doc
}

// Empty reports whether the document has neither items nor a stitched board.
func (d Document) Empty() bool { return len(d.Entries) == 0 && d.Stitched.Empty() }

// resolveOut places relative paths under <root>/exports and creates the parent directory.
func resolveOut(root, outPath string) (string, error) {
	if outPath == "" {
		return "", errors.New("empty output path")
	}
	if !filepath.IsAbs(outPath) {
		outPath = filepath.Join(root, storage.ExportsDirName, outPath)
	}
	if err := os.MkdirAll(filepath.Dir(outPath), 0o755); err != nil {
		return "", fmt.Errorf("ensure out dir: %w", err)
	}
	return outPath, nil
}

// createOut resolves outPath and opens it for writing.
func createOut(root, outPath string) (*os.File, string, error) {
	p, err := resolveOut(root, outPath)
	if err != nil {
		return nil, "", err
	}
	f, err := os.Create(p)
	if err != nil {
		return nil, "", fmt.Errorf("create %s: %w", filepath.Base(p), err)
	}
	return f, p, nil
}
