/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package render composites boards and single cells into rasters.
//
// All drawing goes through Surface so the layout and overlay rules can be
// checked against a Recorder without decoding pixels.
package render

import (
	"image"

	"vocabgrid/internal/textlayout"
	"vocabgrid/internal/vector"
)

// Align is the horizontal anchor of DrawText.
type Align int

const (
	AlignLeft Align = iota
	AlignCenter
)

// Surface is a 2D drawing target. Coordinates are pixels with the origin top-left;
// DrawText positions the baseline at y.
type Surface interface {
	Size() (w, h float64)
	FillRect(r vector.Rect, c vector.Color)
	FillRoundedRect(r vector.Rect, radius float64, c vector.Color)
	// DrawImage scales the src region of img into dst.
	DrawImage(img image.Image, src, dst vector.Rect)
	DrawText(text string, x, y float64, f textlayout.FontSpec, c vector.Color, a Align)
	MeasureText(text string, f textlayout.FontSpec) float64
	StrokeLine(seg vector.Segment, st vector.Stroke)
}
