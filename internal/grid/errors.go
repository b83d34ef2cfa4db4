/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package grid

import (
	"errors"

	"vocabgrid/internal/render"
)

// Precondition failures. A session returning one of these has changed
// nothing except, for some, the panel message.
var (
	ErrNoContent       = errors.New("cell has no content item")
	ErrNoImage         = render.ErrNoImage
	ErrCellBusy        = errors.New("cell is already generating")
	ErrCreateFreeform  = errors.New("images cannot be created in collage mode")
	ErrIncompleteBoard = render.ErrIncompleteBoard
	ErrCellRange       = errors.New("cell index out of range")

	ErrWrongMode        = errors.New("operation is only available in vocab mode")
	ErrUnknownItem      = errors.New("unknown content item")
	ErrUnknownLayout    = errors.New("unknown layout")
	ErrUnknownCharacter = errors.New("unknown character")
	ErrNoGenerator      = errors.New("no generator configured")
)

// Panel messages shown to the user.
const (
	MsgSelectWord     = "Please select a word first."
	MsgNeedImage      = "Please generate/upload an image first."
	msgGenerateFailed = "Failed to generate image for cell %d"
	msgVocabFailed    = "Failed to generate vocabulary."
)
