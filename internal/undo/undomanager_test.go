/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package undo

import (
	"testing"
	"time"
)

func TestUndoRedoBasic(t *testing.T) {
	m := NewManager(Config{MaxBytes: 1024 * 1024, MaxPerStream: 10, MinInterval: 10 * time.Millisecond})
	t0 := time.Now()
	m.Push(Snapshot{Stream: "vocab", Blob: []byte("a"), TS: t0})
	m.Push(Snapshot{Stream: "vocab", Blob: []byte("b"), TS: t0.Add(20 * time.Millisecond)})
	if _, streams, total := m.Stats(); streams != 1 || total != 2 {
		t.Fatalf("expected 1 stream and 2 snapshots, got streams=%d total=%d", streams, total)
	}
	s, ok := m.Undo("vocab", []byte("c"))
	if !ok || string(s.Blob) != "b" {
		t.Fatalf("undo expected 'b', got ok=%v blob=%q", ok, string(s.Blob))
	}
	s, ok = m.Undo("vocab", []byte("b"))
	if !ok || string(s.Blob) != "a" {
		t.Fatalf("undo expected 'a', got ok=%v blob=%q", ok, string(s.Blob))
	}
	if _, ok := m.Undo("vocab", []byte("a")); ok {
		t.Fatalf("expected empty undo stack")
	}
	s, ok = m.Redo("vocab", []byte("a"))
	if !ok || string(s.Blob) != "b" {
		t.Fatalf("redo expected 'b', got ok=%v blob=%q", ok, string(s.Blob))
	}
	s, ok = m.Redo("vocab", []byte("b"))
	if !ok || string(s.Blob) != "c" {
		t.Fatalf("redo expected 'c', got ok=%v blob=%q", ok, string(s.Blob))
	}
	if m.CanRedo("vocab") || !m.CanUndo("vocab") {
		t.Fatalf("unexpected stack state after full redo")
	}
}

func TestPushInvalidatesRedo(t *testing.T) {
	m := NewManager(Config{})
	m.Push(Snapshot{Stream: "s", Blob: []byte("1")})
	if _, ok := m.Undo("s", []byte("2")); !ok {
		t.Fatalf("undo failed")
	}
	m.Push(Snapshot{Stream: "s", Blob: []byte("1")})
	if m.CanRedo("s") {
		t.Fatalf("new change must drop redo")
	}
}

func TestCoalesceKeepsEarliest(t *testing.T) {
	m := NewManager(Config{MaxBytes: 1024 * 1024, MaxPerStream: 10, MinInterval: 50 * time.Millisecond})
	t0 := time.Now()
	m.Push(Snapshot{Stream: "collage", Blob: []byte("1"), TS: t0})
	m.Push(Snapshot{Stream: "collage", Blob: []byte("2"), TS: t0.Add(10 * time.Millisecond)}) // coalesce
	_, _, total := m.Stats()
	if total != 1 {
		t.Fatalf("expected coalesced to 1 snapshot, got %d", total)
	}
	s, ok := m.Undo("collage", []byte("3"))
	if !ok || string(s.Blob) != "1" {
		t.Fatalf("expected earliest snapshot '1', got ok=%v blob=%q", ok, string(s.Blob))
	}
}

func TestStreamsAreIndependent(t *testing.T) {
	m := NewManager(Config{})
	m.Push(Snapshot{Stream: "vocab", Blob: []byte("v")})
	m.Push(Snapshot{Stream: "collage", Blob: []byte("c")})
	s, ok := m.Undo("collage", nil)
	if !ok || string(s.Blob) != "c" {
		t.Fatalf("got %q", s.Blob)
	}
	if !m.CanUndo("vocab") {
		t.Fatalf("vocab stream must be untouched")
	}
}

func TestCaps(t *testing.T) {
	m := NewManager(Config{MaxBytes: 20, MaxPerStream: 2, MinInterval: time.Millisecond})
	t0 := time.Now()
	for i := 0; i < 10; i++ {
		m.Push(Snapshot{Stream: "s", Blob: []byte("xxxxx"), TS: t0.Add(time.Duration(i) * 10 * time.Millisecond)})
	}
	_, _, total := m.Stats()
	if total > 2 {
		t.Fatalf("expected MaxPerStream cap to limit to 2, got %d", total)
	}
}
