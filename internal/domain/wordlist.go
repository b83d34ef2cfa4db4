/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * Licensed under the Apache License, Version 2.0.
 */

package domain

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/BurntSushi/toml"
)

// WordList is a reusable generation request stored as TOML:
//
//	topic = "Kitchen tools"
//	words = ["whisk", "ladle"]
//	target_language = "Japanese"
//	levels = ["B1"]
//
// Either topic or words must be present; words win when both are set.
type WordList struct {
	Topic          string   `toml:"topic"`
	Words          []string `toml:"words"`
	TargetLanguage string   `toml:"target_language"`
	Levels         []string `toml:"levels"`
}

var ErrEmptyWordList = errors.New("word list has neither topic nor words")

// LoadWordList reads and validates a TOML word list file.
func LoadWordList(path string) (WordList, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return WordList{}, err
	}
	return ParseWordList(data)
}

// ParseWordList decodes a TOML word list, trimming blanks and normalizing levels.
func ParseWordList(data []byte) (WordList, error) {
	var wl WordList
	if err := toml.Unmarshal(data, &wl); err != nil {
		return WordList{}, fmt.Errorf("parse word list: %w", err)
	}
	words := wl.Words[:0]
	for _, w := range wl.Words {
		if w = strings.TrimSpace(w); w != "" {
			words = append(words, w)
		}
	}
	wl.Words = words
	wl.Topic = strings.TrimSpace(wl.Topic)
	if wl.Topic == "" && len(wl.Words) == 0 {
		return WordList{}, ErrEmptyWordList
	}
	lv, err := NormalizeLevels(wl.Levels)
	if err != nil {
		return WordList{}, err
	}
	wl.Levels = lv
	return wl, nil
}

// Input returns the free-text request: the comma-joined words, or the topic.
func (wl WordList) Input() string {
	if len(wl.Words) > 0 {
		return strings.Join(wl.Words, ", ")
	}
	return wl.Topic
}
