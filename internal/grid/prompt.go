/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package grid

import (
	"fmt"
	"regexp"
	"strings"
)

const (
	defaultScene     = "[MASCOT] in a relevant setting"
	defaultSignature = "the character"
	styleKeyword     = "watercolor"
	stylePrefix      = "Soft watercolor and ink illustration of "
)

var mascotToken = regexp.MustCompile(`(?i)\[MASCOT\]`)

// CreatePrompt builds the illustration prompt for an item's scene.
func CreatePrompt(scene, signature string) string {
	if strings.TrimSpace(scene) == "" {
		scene = defaultScene
	}
	if strings.TrimSpace(signature) == "" {
		signature = defaultSignature
	}
	p := mascotToken.ReplaceAllLiteralString(scene, signature)
	if !strings.Contains(strings.ToLower(p), styleKeyword) {
		p = stylePrefix + p
	}
	return p
}

// EditPrompt builds the prompt for a magic edit of an existing image.
func EditPrompt(signature, instruction string) string {
	if strings.TrimSpace(signature) == "" {
		signature = defaultSignature
	}
	return fmt.Sprintf("Update this watercolor scene featuring %s: %s. Keep the character's clothing and actions consistent with the word context.", signature, instruction)
}
