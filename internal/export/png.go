/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package export

import (
	"errors"
	"fmt"
	"image"
	"image/png"
	"io"
	"strings"

	"vocabgrid/internal/domain"
)

// WritePNG encodes img as PNG.
func WritePNG(w io.Writer, img image.Image) error {
	if img == nil {
		return errors.New("png: nil image")
	}
	if err := png.Encode(w, img); err != nil {
		return fmt.Errorf("encode png: %w", err)
	}
	return nil
}

// ExportPNG writes a stitched board or a single rendered cell. Relative paths
// go under <root>/exports and a missing .png extension is added.
func ExportPNG(root string, img image.Image, outPath string) (string, error) {
	if !strings.HasSuffix(strings.ToLower(outPath), ".png") {
		outPath += ".png"
	}
	f, p, err := createOut(root, outPath)
	if err != nil {
		return "", err
	}
	if err := WritePNG(f, img); err != nil {
		_ = f.Close()
		return "", err
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("close png: %w", err)
	}
	return p, nil
}

// ExportImage writes an already encoded payload, such as the stitched board.
func ExportImage(root string, im *domain.Image, outPath string) (string, error) {
	if im.Empty() {
		return "", ErrEmptyDocument
	}
	f, p, err := createOut(root, outPath)
	if err != nil {
		return "", err
	}
	if _, err := f.Write(im.Data); err != nil {
		_ = f.Close()
		return "", fmt.Errorf("write image: %w", err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("close image: %w", err)
	}
	return p, nil
}
