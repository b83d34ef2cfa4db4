/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * Licensed under the Apache License, Version 2.0
 */

package cli

import (
	"fmt"
	"strconv"
	"strings"

	"vocabgrid/internal/domain"
	"vocabgrid/internal/grid"
)

// parseCell converts a 1-based cell number into a board index.
func parseCell(s string, b grid.Board) (int, error) {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0, fmt.Errorf("cell must be a number, got %q", s)
	}
	if n < 1 || n > len(b.Cells) {
		return 0, fmt.Errorf("%w: %d (board has %d cells)", grid.ErrCellRange, n, len(b.Cells))
	}
	return n - 1, nil
}

// parseItem resolves a content item by id or, failing that, by its word.
// "0" and "none" mean no item.
func parseItem(s string, cat domain.Catalog) (int64, error) {
	s = strings.TrimSpace(s)
	if s == "" || strings.EqualFold(s, "none") {
		return domain.NoItem, nil
	}
	if id, err := strconv.ParseInt(s, 10, 64); err == nil {
		if id == domain.NoItem {
			return domain.NoItem, nil
		}
		if _, ok := cat.Find(id); ok {
			return id, nil
		}
		return 0, fmt.Errorf("%w: %d", grid.ErrUnknownItem, id)
	}
	for _, it := range cat.Items {
		if strings.EqualFold(it.Word, s) {
			return it.ID, nil
		}
	}
	return 0, fmt.Errorf("%w: %q", grid.ErrUnknownItem, s)
}

// parseLayout accepts a layout id.
func parseLayout(s string) (int, error) {
	id, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0, fmt.Errorf("layout must be a number, got %q", s)
	}
	return id, nil
}
