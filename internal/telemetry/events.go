/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * Licensed under the Apache License, Version 2.0
 */

package telemetry

// Event names.
const (
	EventCatalogGenerated = "catalog_generated"
	EventImageGenerated   = "image_generated"
	EventStitchExported   = "stitch_exported"
)

// CatalogGenerated records a vocabulary generation. topicMode is false for
// explicit word lists.
func CatalogGenerated(items int, topicMode bool, levels int) {
	Event(EventCatalogGenerated, map[string]any{"items": items, "topic_mode": topicMode, "levels": levels})
}

// ImageGenerated records one create or edit request and whether it succeeded.
func ImageGenerated(mode string, edit, ok bool) {
	Event(EventImageGenerated, map[string]any{"mode": mode, "edit": edit, "ok": ok})
}

// StitchExported records a stitched board written in format.
func StitchExported(layoutID, cells int, format string) {
	Event(EventStitchExported, map[string]any{"layout": layoutID, "cells": cells, "format": format})
}
