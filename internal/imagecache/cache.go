/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package imagecache is the session-lifetime store of cell images.
//
// The in-memory map is authoritative: Get always sees the latest Set or
// Delete. Persistence to a BlobStore is best-effort and debounced so that a
// burst of writes (a broadcast edit, a clear-all) turns into one flush.
// Flush failures are logged and never reach callers of Set/Delete.
package imagecache

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"sync"
	"time"

	"vocabgrid/internal/domain"
	applog "vocabgrid/internal/log"
)

// BlobStore is the durable side of the cache.
type BlobStore interface {
	All(ctx context.Context) (map[string]domain.Image, error)
	Put(ctx context.Context, key string, img domain.Image) error
	Delete(ctx context.Context, key string) error
}

// Options configures a Cache.
type Options struct {
	// FlushDelay is the idle window before pending writes are persisted.
	// Zero selects DefaultFlushDelay; a negative value persists on every write.
	FlushDelay time.Duration
	Logger     *slog.Logger
}

// DefaultFlushDelay is used when Options.FlushDelay is zero.
const DefaultFlushDelay = 500 * time.Millisecond

// FlushImmediately disables the debounce window.
const FlushImmediately time.Duration = -1

// Stats summarizes cache contents.
type Stats struct {
	Entries int
	Bytes   int64
	Pending int
}

type Cache struct {
	mu      sync.Mutex
	entries map[string]domain.Image
	pending map[string]bool // key -> true for put, false for delete
	timer   *time.Timer
	closed  bool

	flushMu sync.Mutex // serializes writes to store
	store   BlobStore
	delay   time.Duration
	log     *slog.Logger
}

// New creates an empty cache. store may be nil for a memory-only cache.
func New(store BlobStore, opts Options) *Cache {
	if opts.FlushDelay == 0 {
		opts.FlushDelay = DefaultFlushDelay
	}
	lg := opts.Logger
	if lg == nil {
		lg = applog.WithComponent("imagecache")
	}
	return &Cache{
		entries: make(map[string]domain.Image),
		pending: make(map[string]bool),
		store:   store,
		delay:   opts.FlushDelay,
		log:     lg,
	}
}

// Load hydrates the cache from the blob store. Entries already set in
// memory win over persisted ones. Keys that do not parse are skipped.
func (c *Cache) Load(ctx context.Context) (int, error) {
	if c.store == nil {
		return 0, nil
	}
	all, err := c.store.All(ctx)
	if err != nil {
		c.log.Warn("cache hydrate failed", slog.Any("err", err))
		return 0, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for k, img := range all {
		if _, err := ParseKey(k); err != nil {
			c.log.Debug("skip foreign cache key", slog.String("key", k))
			continue
		}
		if _, ok := c.entries[k]; ok {
			continue
		}
		if _, deleted := c.pending[k]; deleted {
			continue
		}
		c.entries[k] = img
		n++
	}
	c.log.Debug("cache hydrated", slog.Int("entries", n))
	return n, nil
}

// Get returns the image stored under key.
func (c *Cache) Get(key Key) (domain.Image, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	img, ok := c.entries[key.String()]
	return img, ok
}

// Set stores img under key and schedules persistence.
func (c *Cache) Set(key Key, img domain.Image) {
	if img.Empty() {
		c.Delete(key)
		return
	}
	k := key.String()
	c.mu.Lock()
	c.entries[k] = img
	c.pending[k] = true
	c.scheduleLocked()
	c.mu.Unlock()
}

// Delete removes key from memory immediately and schedules the durable delete.
func (c *Cache) Delete(key Key) {
	k := key.String()
	c.mu.Lock()
	delete(c.entries, k)
	c.pending[k] = false
	c.scheduleLocked()
	c.mu.Unlock()
}

// DeleteWhere removes every entry whose key satisfies pred and returns how many went.
func (c *Cache) DeleteWhere(pred func(Key) bool) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for k := range c.entries {
		key, err := ParseKey(k)
		if err != nil || !pred(key) {
			continue
		}
		delete(c.entries, k)
		c.pending[k] = false
		n++
	}
	if n > 0 {
		c.scheduleLocked()
	}
	return n
}

// Keys returns all keys in sorted order.
func (c *Cache) Keys() []Key {
	c.mu.Lock()
	names := make([]string, 0, len(c.entries))
	for k := range c.entries {
		names = append(names, k)
	}
	c.mu.Unlock()
	sort.Strings(names)
	out := make([]Key, 0, len(names))
	for _, k := range names {
		if key, err := ParseKey(k); err == nil {
			out = append(out, key)
		}
	}
	return out
}

// Stats reports entry count, payload size and queued writes.
func (c *Cache) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	s := Stats{Entries: len(c.entries), Pending: len(c.pending)}
	for _, img := range c.entries {
		s.Bytes += int64(len(img.Data))
	}
	return s
}

// scheduleLocked (re)arms the debounce timer. Caller holds c.mu.
func (c *Cache) scheduleLocked() {
	if c.store == nil {
		clear(c.pending)
		return
	}
	if c.closed {
		return
	}
	if c.delay < 0 {
		go c.flushLogged()
		return
	}
	if c.timer != nil {
		c.timer.Stop()
	}
	c.timer = time.AfterFunc(c.delay, c.flushLogged)
}

func (c *Cache) flushLogged() {
	if err := c.Flush(context.Background()); err != nil {
		c.log.Warn("cache flush failed", slog.Any("err", err))
	}
}

// Flush writes all pending changes now. It is safe to call concurrently
// with the timer; writes are applied in order.
func (c *Cache) Flush(ctx context.Context) error {
	if c.store == nil {
		return nil
	}
	c.flushMu.Lock()
	defer c.flushMu.Unlock()

	c.mu.Lock()
	if len(c.pending) == 0 {
		c.mu.Unlock()
		return nil
	}
	type op struct {
		key string
		img domain.Image
		put bool
	}
	ops := make([]op, 0, len(c.pending))
	for k, put := range c.pending {
		o := op{key: k, put: put}
		if put {
			img, ok := c.entries[k]
			if !ok {
				o.put = false
			}
			o.img = img
		}
		ops = append(ops, o)
	}
	c.pending = make(map[string]bool)
	c.mu.Unlock()

	sort.Slice(ops, func(i, j int) bool { return ops[i].key < ops[j].key })
	var errs []error
	for _, o := range ops {
		var err error
		if o.put {
			err = c.store.Put(ctx, o.key, o.img)
		} else {
			err = c.store.Delete(ctx, o.key)
		}
		if err != nil {
			errs = append(errs, err)
		}
	}
	c.log.Debug("cache flushed", slog.Int("ops", len(ops)), slog.Int("errors", len(errs)))
	return errors.Join(errs...)
}

// Close stops the debounce timer and flushes whatever is pending.
func (c *Cache) Close(ctx context.Context) error {
	c.mu.Lock()
	c.closed = true
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
	c.mu.Unlock()
	return c.Flush(ctx)
}
