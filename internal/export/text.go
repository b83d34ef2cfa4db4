/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * Licensed under the Apache License, Version 2.0
 */

package export

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/atotto/clipboard"
)

var phoneticBrackets = strings.NewReplacer("[", "", "]", "")

// CleanPhonetic strips square brackets so exports can add their own.
func CleanPhonetic(p string) string { return phoneticBrackets.Replace(p) }

// Heading is the numbered title row of item n (zero based).
func Heading(n int, e Entry) string {
	return fmt.Sprintf("%d. %s [%s] %s", n+1, e.Item.Word, CleanPhonetic(e.Item.Phonetic), e.Item.Definition)
}

// Text serializes the document as study notes: the theme, a blank line, then
// per item its heading, both sentences and a blank line.
func Text(doc Document) string {
	var b strings.Builder
	b.WriteString(doc.Theme)
	b.WriteString("\n\n")
	for i, e := range doc.Entries {
		b.WriteString(Heading(i, e))
		b.WriteByte('\n')
		b.WriteString(e.Item.EnglishSentence)
		b.WriteByte('\n')
		b.WriteString(e.Item.TargetSentence)
		b.WriteString("\n\n")
	}
	return b.String()
}

// WriteText writes Text(doc) to w.
func WriteText(w io.Writer, doc Document) error {
	if len(doc.Entries) == 0 {
		return ErrEmptyDocument
	}
	_, err := io.WriteString(w, Text(doc))
	return err
}

// ExportText writes the notes file. Relative paths go under <root>/exports.
func ExportText(root string, doc Document, outPath string) (string, error) {
	if len(doc.Entries) == 0 {
		return "", ErrEmptyDocument
	}
	f, p, err := createOut(root, outPath)
	if err != nil {
		return "", err
	}
	if err := WriteText(f, doc); err != nil {
		_ = f.Close()
		return "", fmt.Errorf("write text: %w", err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("close text: %w", err)
	}
	return p, nil
}

// writeClipboard is replaced in tests.
var writeClipboard = func(text string) error {
	if clipboard.Unsupported {
		return errors.New("no clipboard utility available")
	}
	return clipboard.WriteAll(text)
}

// CopyText puts the notes on the system clipboard.
func CopyText(doc Document) error {
	if len(doc.Entries) == 0 {
		return ErrEmptyDocument
	}
	if err := writeClipboard(Text(doc)); err != nil {
		return fmt.Errorf("clipboard: %w", err)
	}
	return nil
}
