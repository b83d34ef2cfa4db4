/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

// Package undo keeps bounded undo/redo stacks of opaque state blobs.
package undo

import (
	"sync"
	"time"
)

// Snapshot is a reversible state blob for one stream (for example one board mode).
// Blob content is opaque to the manager; size is estimated as len(Blob).
// TS is when the snapshot was captured.
type Snapshot struct {
	Stream string
	Blob   []byte
	TS     time.Time
}

// Config controls memory and depth caps and coalescing behavior.
type Config struct {
	// MaxBytes is a soft cap; older entries are pruned when exceeded.
	MaxBytes int
	// MaxPerStream limits number of undo snapshots per stream (0 means unlimited).
	MaxPerStream int
	// MinInterval coalesces snapshots captured within the interval for the same stream.
	// The earlier snapshot wins so one undo step rewinds the whole burst.
	MinInterval time.Duration
}

// Manager provides undo/redo stacks per stream with performance safeguards.
// Snapshots hold the state before a change. It is safe for concurrent use.
type Manager struct {
	cfg Config
	mu  sync.Mutex
	// per-stream stacks
	undo map[string][]Snapshot
	redo map[string][]Snapshot
	// accounting (undo and redo)
	totalBytes int
}

func NewManager(cfg Config) *Manager {
	// Set conservative defaults if not provided
	if cfg.MaxBytes <= 0 {
		cfg.MaxBytes = 4 * 1024 * 1024 // 4 MiB
	}
	if cfg.MinInterval < 0 {
		cfg.MinInterval = 0
	}
	return &Manager{cfg: cfg, undo: make(map[string][]Snapshot), redo: make(map[string][]Snapshot)}
}

// Push records the state before a change. Any new change invalidates redo for the stream.
func (m *Manager) Push(s Snapshot) {
	if s.TS.IsZero() {
		s.TS = time.Now()
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.dropRedoLocked(s.Stream)
	stack := m.undo[s.Stream]
	if n := len(stack); n > 0 && m.cfg.MinInterval > 0 {
		if s.TS.Sub(stack[n-1].TS) < m.cfg.MinInterval {
			return
		}
	}
	m.undo[s.Stream] = append(stack, s)
	m.totalBytes += len(s.Blob)
	m.enforceCapsLocked(s.Stream)
}

// Undo pops the previous state of the stream. current is the state being
// left; it goes onto the redo stack.
func (m *Manager) Undo(stream string, current []byte) (Snapshot, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	stack := m.undo[stream]
	if len(stack) == 0 {
		return Snapshot{}, false
	}
	s := stack[len(stack)-1]
	m.undo[stream] = stack[:len(stack)-1]
	m.totalBytes -= len(s.Blob)
	m.redo[stream] = append(m.redo[stream], Snapshot{Stream: stream, Blob: current, TS: time.Now()})
	m.totalBytes += len(current)
	return s, true
}

// Redo pops the most recently undone state. current goes back onto the undo stack.
func (m *Manager) Redo(stream string, current []byte) (Snapshot, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r := m.redo[stream]
	if len(r) == 0 {
		return Snapshot{}, false
	}
	s := r[len(r)-1]
	m.redo[stream] = r[:len(r)-1]
	m.totalBytes -= len(s.Blob)
	m.undo[stream] = append(m.undo[stream], Snapshot{Stream: stream, Blob: current, TS: time.Now()})
	m.totalBytes += len(current)
	m.enforceCapsLocked(stream)
	return s, true
}

// CanUndo and CanRedo report whether the stacks are non-empty.
func (m *Manager) CanUndo(stream string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.undo[stream]) > 0
}

func (m *Manager) CanRedo(stream string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.redo[stream]) > 0
}

// Clear drops undo/redo stacks for a stream to free memory.
func (m *Manager) Clear(stream string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range m.undo[stream] {
		m.totalBytes -= len(s.Blob)
	}
	m.dropRedoLocked(stream)
	delete(m.undo, stream)
	if m.totalBytes < 0 {
		m.totalBytes = 0
	}
}

// Export returns copies of both stacks of a stream, oldest first.
func (m *Manager) Export(stream string) (undo, redo []Snapshot) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Snapshot(nil), m.undo[stream]...), append([]Snapshot(nil), m.redo[stream]...)
}

// Restore replaces both stacks of a stream, for example with persisted history.
func (m *Manager) Restore(stream string, undo, redo []Snapshot) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range m.undo[stream] {
		m.totalBytes -= len(s.Blob)
	}
	m.dropRedoLocked(stream)
	m.undo[stream] = nil
	for _, s := range undo {
		s.Stream = stream
		m.undo[stream] = append(m.undo[stream], s)
		m.totalBytes += len(s.Blob)
	}
	for _, s := range redo {
		s.Stream = stream
		m.redo[stream] = append(m.redo[stream], s)
		m.totalBytes += len(s.Blob)
	}
	m.enforceCapsLocked(stream)
}

// Stats returns current sizes for diagnostics.
func (m *Manager) Stats() (totalBytes int, streams int, totalSnapshots int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, v := range m.undo {
		if len(v) > 0 {
			streams++
		}
		totalSnapshots += len(v)
	}
	return m.totalBytes, streams, totalSnapshots
}

func (m *Manager) dropRedoLocked(stream string) {
	for _, s := range m.redo[stream] {
		m.totalBytes -= len(s.Blob)
	}
	delete(m.redo, stream)
}

func (m *Manager) enforceCapsLocked(stream string) {
	// Per-stream depth cap
	if m.cfg.MaxPerStream > 0 {
		stack := m.undo[stream]
		if len(stack) > m.cfg.MaxPerStream {
			// drop the oldest extras
			toDrop := len(stack) - m.cfg.MaxPerStream
			for i := 0; i < toDrop; i++ {
				m.totalBytes -= len(stack[i].Blob)
			}
			m.undo[stream] = append([]Snapshot{}, stack[toDrop:]...)
		}
	}
	// Global memory cap: prune oldest undo entries across all streams
	for m.cfg.MaxBytes > 0 && m.totalBytes > m.cfg.MaxBytes {
		oldest := ""
		found := false
		var oldestTS time.Time
		for name, stack := range m.undo {
			if len(stack) == 0 {
				continue
			}
			if !found || stack[0].TS.Before(oldestTS) {
				oldest, oldestTS, found = name, stack[0].TS, true
			}
		}
		if !found {
			break
		}
		stack := m.undo[oldest]
		m.totalBytes -= len(stack[0].Blob)
		m.undo[oldest] = stack[1:]
		if len(m.undo[oldest]) == 0 {
			delete(m.undo, oldest)
		}
	}
}
