/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * Licensed under the Apache License, Version 2.0
 */

package export

import (
	"fmt"
	"image"
	"path/filepath"
	"strings"
)

// PresetName represents a named export preset.
type PresetName string

const (
	PresetWeb   PresetName = "web"
	PresetPrint PresetName = "print"
)

// Default file names inside a bundle directory.
const (
	NotesFile   = "vocab_notes.txt"
	PDFFile     = "vocab_cards.pdf"
	CollageFile = "collage.png"
	CardsFile   = "cards.zip"
)

// BundleOptions controls a multi-format export.
//
// Path semantics:
//   - If OutDir is empty or relative, it is created under <root>/exports/<preset>/.
//   - Every format writes a single file with the default name into OutDir.
//
// A format whose input is missing (no stitched board for png, no cards for
// cards) is skipped when it comes from the preset and fails when requested.
//
//nolint:revive // keep fields explicit for clarity
type BundleOptions struct {
	Preset  PresetName
	Formats []string // allowed: pdf, txt, png, cards; empty means preset defaults
	OutDir  string
	PDF     PDFOptions
	Board   image.Image // stitched board for png
	Cards   []Card
}

// Bundle runs exports according to the given preset and returns the written paths.
func Bundle(root string, doc Document, opt BundleOptions) ([]string, error) {
	if doc.Empty() {
		return nil, ErrEmptyDocument
	}
	explicit := len(opt.Formats) > 0
	formats := opt.Formats
	if !explicit {
		formats = presetDefaultFormats(opt.Preset)
	}

	baseOut := opt.OutDir
	if baseOut == "" {
		baseOut = string(opt.Preset)
		if baseOut == "" {
			baseOut = "bundle"
		}
	}

	var written []string
	for _, f := range formats {
		var (
			p   string
			err error
		)
		switch strings.ToLower(strings.TrimSpace(f)) {
		case "pdf":
			p, err = ExportPDF(root, doc, filepath.Join(baseOut, PDFFile), opt.PDF)
		case "txt", "text":
			if len(doc.Entries) == 0 && !explicit {
				continue
			}
			p, err = ExportText(root, doc, filepath.Join(baseOut, NotesFile))
		case "png":
			if opt.Board == nil {
				if !explicit {
					continue
				}
				return written, fmt.Errorf("png: %w", ErrEmptyDocument)
			}
			p, err = ExportPNG(root, opt.Board, filepath.Join(baseOut, CollageFile))
		case "cards":
			if len(opt.Cards) == 0 && !explicit {
				continue
			}
			p, err = ExportCards(root, doc.Theme, opt.Cards, filepath.Join(baseOut, CardsFile))
		default:
			return written, fmt.Errorf("unknown format: %s", f)
		}
		if err != nil {
			return written, fmt.Errorf("%s: %w", f, err)
		}
		written = append(written, p)
	}
	return written, nil
}

func presetDefaultFormats(p PresetName) []string {
	switch p {
	case PresetWeb:
		return []string{"png", "txt", "cards"}
	case PresetPrint:
		return []string{"pdf", "txt"}
	default:
		return []string{"pdf"}
	}
}
