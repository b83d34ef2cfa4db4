/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * Licensed under the Apache License, Version 2.0.
 */

package imagecache

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Scope says what an image is bound to.
type Scope uint8

const (
	// ScopeItem binds an image to a content item id; it survives reshuffling.
	ScopeItem Scope = iota
	// ScopeCell binds an image to a layout cell position.
	ScopeCell
)

const (
	itemPrefix = "vocab_"
	cellPrefix = "collage_"
)

// Key is a composite cache key. Its string form is what the blob store sees.
type Key struct {
	Scope  Scope
	ItemID int64
	Layout int
	Index  int
}

// ItemKey returns the content-scoped key for id.
func ItemKey(id int64) Key { return Key{Scope: ScopeItem, ItemID: id} }

// CellKey returns the position-scoped key for a layout cell.
func CellKey(layoutID, index int) Key { return Key{Scope: ScopeCell, Layout: layoutID, Index: index} }

func (k Key) String() string {
	if k.Scope == ScopeCell {
		return cellPrefix + strconv.Itoa(k.Layout) + "_" + strconv.Itoa(k.Index)
	}
	return itemPrefix + strconv.FormatInt(k.ItemID, 10)
}

var ErrBadKey = errors.New("malformed cache key")

// ParseKey is the inverse of Key.String.
func ParseKey(s string) (Key, error) {
	switch {
	case strings.HasPrefix(s, itemPrefix):
		id, err := strconv.ParseInt(strings.TrimPrefix(s, itemPrefix), 10, 64)
		if err != nil || id == 0 {
			return Key{}, fmt.Errorf("%w: %q", ErrBadKey, s)
		}
		return ItemKey(id), nil
	case strings.HasPrefix(s, cellPrefix):
		l, i, ok := strings.Cut(strings.TrimPrefix(s, cellPrefix), "_")
		if !ok {
			return Key{}, fmt.Errorf("%w: %q", ErrBadKey, s)
		}
		li, err1 := strconv.Atoi(l)
		ii, err2 := strconv.Atoi(i)
		if err1 != nil || err2 != nil || li < 0 || ii < 0 {
			return Key{}, fmt.Errorf("%w: %q", ErrBadKey, s)
		}
		return CellKey(li, ii), nil
	}
	return Key{}, fmt.Errorf("%w: %q", ErrBadKey, s)
}
