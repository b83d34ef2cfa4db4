/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package log configures the process-wide slog logger: a compact console
// handler for humans, an optional rotated JSON file, and an enricher that
// copies the workspace root from the context onto every record.
package log

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync/atomic"

	lj "gopkg.in/natefinch/lumberjack.v2"

	"vocabgrid/internal/version"
)

// Options controls logger initialization. FromEnv fills it from
// VGS_LOG_LEVEL (debug, info, warn, error), VGS_LOG_FORMAT (console, json),
// VGS_LOG_FILE (rotated JSON file) and VGS_LOG_SOURCE (true, false).
//
// The console receives short one-line records; the rotated file receives
// JSON records tagged with the app name and version.
type Options struct {
	Level     string
	Format    string // "console" or "json"
	AddSource bool
	File      string    // optional path for file logging (rotated)
	Console   io.Writer // console destination, os.Stderr when nil
}

var current atomic.Pointer[slog.Logger]

// L returns the application logger, initializing it from the environment
// on first use.
func L() *slog.Logger {
	if l := current.Load(); l != nil {
		return l
	}
	Init(FromEnv())
	return current.Load()
}

// Init replaces the application logger and slog's default.
func Init(opts Options) {
	lvl := parseLevel(opts.Level)
	console := opts.Console
	if console == nil {
		console = os.Stderr
	}

	var primary slog.Handler
	if strings.EqualFold(strings.TrimSpace(opts.Format), "json") {
		primary = slog.NewJSONHandler(console, &slog.HandlerOptions{Level: lvl, AddSource: opts.AddSource})
	} else {
		primary = newConsoleHandler(console, lvl, opts.AddSource)
	}
	hs := fanout{primary}
	if path := strings.TrimSpace(opts.File); path != "" {
		rot := &lj.Logger{Filename: path, MaxSize: 10, MaxBackups: 3, MaxAge: 28, Compress: true}
		file := slog.NewJSONHandler(rot, &slog.HandlerOptions{Level: lvl, AddSource: opts.AddSource}).
			WithAttrs([]slog.Attr{slog.String("app", "vocabgrid"), slog.String("ver", version.Version)})
		hs = append(hs, file)
	}

	var h slog.Handler = hs
	if len(hs) == 1 {
		h = hs[0]
	}
	l := slog.New(withEnricher(h))
	current.Store(l)
	slog.SetDefault(l)
}

// FromEnv builds Options from environment variables.
func FromEnv() Options {
	return Options{
		Level:     getenv("VGS_LOG_LEVEL", "info"),
		Format:    getenv("VGS_LOG_FORMAT", "console"),
		AddSource: strings.EqualFold(getenv("VGS_LOG_SOURCE", "false"), "true"),
		File:      os.Getenv("VGS_LOG_FILE"),
	}
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

// WithComponent returns a logger with the component attribute pre-set.
func WithComponent(name string) *slog.Logger { return L().With(slog.String("component", name)) }

// WithOperation annotates the logger with an operation name.
func WithOperation(l *slog.Logger, op string) *slog.Logger { return l.With(slog.String("op", op)) }

type workspaceKey struct{}

// WithWorkspace returns a context whose log records carry the workspace root.
func WithWorkspace(ctx context.Context, root string) context.Context {
	return context.WithValue(ctx, workspaceKey{}, root)
}

// parseLevel accepts slog's level names in any case plus "warning".
// Anything else means info.
func parseLevel(s string) slog.Level {
	s = strings.TrimSpace(s)
	if strings.EqualFold(s, "warning") {
		return slog.LevelWarn
	}
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(s)); err != nil {
		return slog.LevelInfo
	}
	return lvl
}

// fanout sends every record to each handler that accepts its level.
type fanout []slog.Handler

func (f fanout) Enabled(ctx context.Context, level slog.Level) bool {
	for _, h := range f {
		if h.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

func (f fanout) Handle(ctx context.Context, r slog.Record) error {
	var errs []error
	for _, h := range f {
		if !h.Enabled(ctx, r.Level) {
			continue
		}
		if err := h.Handle(ctx, r.Clone()); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (f fanout) WithAttrs(attrs []slog.Attr) slog.Handler {
	return f.each(func(h slog.Handler) slog.Handler { return h.WithAttrs(attrs) })
}

func (f fanout) WithGroup(name string) slog.Handler {
	return f.each(func(h slog.Handler) slog.Handler { return h.WithGroup(name) })
}

func (f fanout) each(fn func(slog.Handler) slog.Handler) fanout {
	out := make(fanout, len(f))
	for i, h := range f {
		out[i] = fn(h)
	}
	return out
}

// withEnricher copies the workspace root from the context onto records.
func withEnricher(h slog.Handler) slog.Handler { return enricher{h} }

type enricher struct{ slog.Handler }

func (e enricher) Handle(ctx context.Context, r slog.Record) error {
	if ctx != nil {
		if root, ok := ctx.Value(workspaceKey{}).(string); ok && root != "" {
			r = r.Clone()
			r.AddAttrs(slog.String("workspace", root))
		}
	}
	return e.Handler.Handle(ctx, r)
}

func (e enricher) WithAttrs(attrs []slog.Attr) slog.Handler {
	return enricher{e.Handler.WithAttrs(attrs)}
}

func (e enricher) WithGroup(name string) slog.Handler { return enricher{e.Handler.WithGroup(name)} }
