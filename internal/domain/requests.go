/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * Licensed under the Apache License, Version 2.0.
 */

package domain

// ImageRequest asks the generation service for one illustration.
// Base is set for edits; AspectRatio is one of "1:1", "9:16", "16:9".
type ImageRequest struct {
	Prompt      string
	Base        *Image
	AspectRatio string
}

// VocabRequest asks the generation service for a catalog.
// Words wins over Topic when both are set.
type VocabRequest struct {
	Topic          string
	Words          []string
	TargetLanguage string
	Levels         []string
	Character      Character
}

// Input is the free-text subject of the request.
func (r VocabRequest) Input() string {
	return WordList{Topic: r.Topic, Words: r.Words}.Input()
}
