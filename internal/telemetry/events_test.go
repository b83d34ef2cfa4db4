/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * Licensed under the Apache License, Version 2.0
 */

package telemetry

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"slices"
	"sync"
	"testing"
	"time"
)

func TestEventHelpers(t *testing.T) {
	var mu sync.Mutex
	got := map[string]map[string]any{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var m map[string]any
		_ = json.NewDecoder(r.Body).Decode(&m)
		mu.Lock()
		got[m["name"].(string)] = m
		mu.Unlock()
	}))
	defer srv.Close()

	NewDefault(Config{OptIn: true, EventsURL: srv.URL, Timeout: time.Second})
	defer NewDefault(Config{})

	CatalogGenerated(9, true, 2)
	ImageGenerated("collage", true, false)
	StitchExported(4, 3, "png")
	Flush(context.Background())

	deadline := time.Now().Add(2 * time.Second)
	for {
		mu.Lock()
		n := len(got)
		mu.Unlock()
		if n == 3 || time.Now().After(deadline) {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	mu.Lock()
	defer mu.Unlock()
	for name, keys := range map[string][]string{
		EventCatalogGenerated: {"items", "topic_mode", "levels"},
		EventImageGenerated:   {"mode", "edit", "ok"},
		EventStitchExported:   {"layout", "cells", "format"},
	} {
		assertPayloadKeys(t, got[name], keys)
	}
	if c := got[EventCatalogGenerated]; c == nil || c["items"] != float64(9) || c["topic_mode"] != true {
		t.Fatalf("catalog event: %v", c)
	}
	if i := got[EventImageGenerated]; i == nil || i["mode"] != "collage" || i["ok"] != false {
		t.Fatalf("image event: %v", i)
	}
	if s := got[EventStitchExported]; s == nil || s["layout"] != float64(4) || s["format"] != "png" {
		t.Fatalf("stitch event: %v", s)
	}
}

// assertPayloadKeys fails when an event carries anything beyond the common
// envelope and its own counters, so words and prompts never leave the machine.
func assertPayloadKeys(t *testing.T, payload map[string]any, own []string) {
	t.Helper()
	if payload == nil {
		t.Fatalf("event not received")
	}
	allowed := append([]string{"name", "ts", "run_id", "version", "os", "arch"}, own...)
	for k := range payload {
		if !slices.Contains(allowed, k) {
			t.Fatalf("unexpected payload field %q in %v", k, payload)
		}
	}
	for _, k := range own {
		if _, ok := payload[k]; !ok {
			t.Fatalf("missing payload field %q in %v", k, payload)
		}
	}
}
