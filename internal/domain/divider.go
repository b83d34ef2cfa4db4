/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * Licensed under the Apache License, Version 2.0.
 */

package domain

import (
	"errors"
	"fmt"
	"strings"

	"vocabgrid/internal/vector"
)

// StrokeStyle is the dash pattern family used for divider lines.
type StrokeStyle string

const (
	StrokeSolid  StrokeStyle = "solid"
	StrokeDashed StrokeStyle = "dashed"
	StrokeDotted StrokeStyle = "dotted"
)

// ParseStrokeStyle accepts solid, dashed or dotted.
func ParseStrokeStyle(s string) (StrokeStyle, error) {
	switch st := StrokeStyle(strings.ToLower(strings.TrimSpace(s))); st {
	case StrokeSolid, StrokeDashed, StrokeDotted:
		return st, nil
	}
	return "", fmt.Errorf("unknown stroke style %q", s)
}

// DividerStyle configures the lines drawn between cells of a stitched board.
type DividerStyle struct {
	Visible   bool         `json:"visible"`
	Color     vector.Color `json:"color"`
	Stroke    StrokeStyle  `json:"stroke"`
	Thickness float64      `json:"thickness"`
}

// DefaultDivider is hidden, white, solid and 20px thick.
func DefaultDivider() DividerStyle {
	return DividerStyle{Visible: false, Color: vector.White, Stroke: StrokeSolid, Thickness: 20}
}

var ErrDividerThickness = errors.New("divider thickness must be > 0 when visible")

// Validate enforces thickness > 0 for visible dividers.
func (d DividerStyle) Validate() error {
	if d.Visible && d.Thickness <= 0 {
		return ErrDividerThickness
	}
	if d.Stroke != "" {
		if _, err := ParseStrokeStyle(string(d.Stroke)); err != nil {
			return err
		}
	}
	return nil
}

// Dash returns the on/off pattern for the style at its thickness.
// Solid returns nil.
func (d DividerStyle) Dash() []float64 {
	t := d.Thickness
	switch d.Stroke {
	case StrokeDashed:
		return []float64{t * 2, t * 1.5}
	case StrokeDotted:
		return []float64{t, t}
	}
	return nil
}

// LineStroke converts the divider into a vector stroke with butt caps.
func (d DividerStyle) LineStroke() vector.Stroke {
	return vector.Stroke{Color: d.Color, Width: d.Thickness, Cap: vector.CapButt, Dash: d.Dash()}
}
