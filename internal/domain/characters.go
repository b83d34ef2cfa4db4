/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * Licensed under the Apache License, Version 2.0.
 */

package domain

import "strings"

// Character is a mascot whose signature is substituted into illustration prompts.
type Character struct {
	ID              string `json:"id"`
	Name            string `json:"name"`
	Description     string `json:"description"`
	PromptSignature string `json:"promptSignature"`
}

// Characters lists the built-in mascots. The first entry is the default.
var Characters = []Character{
	{ID: "isaac", Name: "Sir Isaac", Description: "CHUBBY ORANGE CAT", PromptSignature: "a chubby orange tabby cat with round glasses named Sir Isaac"},
	{ID: "buddy", Name: "Buddy", Description: "ADVENTUROUS CORGI", PromptSignature: "a cute perky corgi named Buddy"},
	{ID: "rocket", Name: "Rocket", Description: "NAUGHTY RACCOON", PromptSignature: "a mischievous and clever raccoon named Rocket"},
}

// CharacterByID looks up a built-in character (case-insensitive).
func CharacterByID(id string) (Character, bool) {
	id = strings.ToLower(strings.TrimSpace(id))
	for _, c := range Characters {
		if c.ID == id {
			return c, true
		}
	}
	return Character{}, false
}
