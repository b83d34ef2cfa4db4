/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

// Package telemetry sends opt-in anonymous usage events (catalog and image
// generation, exports) and optional crash uploads.
package telemetry

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"os"
	"runtime"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	applog "vocabgrid/internal/log"
	"vocabgrid/internal/version"
)

// Environment variables read by FromEnv.
const (
	EnvOptIn     = "VGS_TELEMETRY_OPT_IN"     // "1", "true", "yes" or "on"
	EnvEventsURL = "VGS_TELEMETRY_URL"        // endpoint for JSON events
	EnvCrashURL  = "VGS_CRASH_UPLOAD_URL"     // endpoint for crash reports
	EnvTimeoutMs = "VGS_TELEMETRY_TIMEOUT_MS" // request timeout, default 1500ms
	EnvDebug     = "VGS_TELEMETRY_DEBUG"      // log send attempts when set
)

const (
	queueSize = 64
	flushWait = 2 * time.Second
)

// Config says whether and where usage data goes. Nothing is sent unless
// OptIn is set and the matching URL is non-empty.
type Config struct {
	OptIn        bool
	EventsURL    string
	CrashURL     string
	Timeout      time.Duration
	DebugLogging bool
}

// FromEnv reads Config from the VGS_TELEMETRY_* variables.
func FromEnv() Config {
	cfg := Config{
		OptIn:        truthy(os.Getenv(EnvOptIn)),
		EventsURL:    strings.TrimSpace(os.Getenv(EnvEventsURL)),
		CrashURL:     strings.TrimSpace(os.Getenv(EnvCrashURL)),
		Timeout:      1500 * time.Millisecond,
		DebugLogging: os.Getenv(EnvDebug) != "",
	}
	if ms := strings.TrimSpace(os.Getenv(EnvTimeoutMs)); ms != "" {
		if d, err := time.ParseDuration(ms + "ms"); err == nil && d > 0 {
			cfg.Timeout = d
		}
	}
	return cfg
}

func truthy(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "1", "true", "yes", "on":
		return true
	}
	return false
}

// outbound is one queued POST.
type outbound struct {
	url         string
	contentType string
	body        []byte
	what        string
}

// Client posts events and crash reports from a single background worker.
// Requests are dropped when the queue is full or the endpoint fails; a
// usage ping never blocks or fails the command that produced it.
type Client struct {
	cfg     Config
	runID   string
	log     *slog.Logger
	httpc   *http.Client
	queue   chan outbound
	pending atomic.Int64
	stop    chan struct{}
	stopped sync.Once
}

// New starts a client. Call Close when done with it.
func New(cfg Config) *Client {
	c := &Client{
		cfg:   cfg,
		runID: uuid.NewString(),
		log:   applog.WithComponent("telemetry"),
		httpc: &http.Client{Timeout: cfg.Timeout},
		queue: make(chan outbound, queueSize),
		stop:  make(chan struct{}),
	}
	go c.run()
	return c
}

// Enabled reports whether events would be sent.
func (c *Client) Enabled() bool { return c != nil && c.cfg.OptIn && c.cfg.EventsURL != "" }

// Event queues a named event. props must not carry words, prompts or images.
func (c *Client) Event(name string, props map[string]any) {
	if !c.Enabled() || name == "" {
		return
	}
	payload := make(map[string]any, len(props)+6)
	for k, v := range props {
		payload[k] = v
	}
	payload["name"] = name
	payload["ts"] = time.Now().UTC().Format(time.RFC3339Nano)
	payload["run_id"] = c.runID
	payload["version"] = version.String()
	payload["os"] = runtime.GOOS
	payload["arch"] = runtime.GOARCH
	body, err := json.Marshal(payload)
	if err != nil {
		c.debug("event not encodable", slog.String("event", name), slog.Any("err", err))
		return
	}
	c.enqueue(outbound{url: c.cfg.EventsURL, contentType: "application/json", body: body, what: name})
}

// UploadCrash queues a rendered crash report for the crash endpoint.
func (c *Client) UploadCrash(report []byte) {
	if c == nil || !c.cfg.OptIn || c.cfg.CrashURL == "" {
		return
	}
	c.enqueue(outbound{
		url:         c.cfg.CrashURL,
		contentType: "text/plain; charset=utf-8",
		body:        append([]byte(nil), report...),
		what:        "crash report",
	})
}

func (c *Client) enqueue(o outbound) {
	c.pending.Add(1)
	select {
	case c.queue <- o:
	default:
		c.pending.Add(-1)
		c.debug("telemetry queue full, dropped", slog.String("what", o.what))
	}
}

// Flush waits until every queued request has been attempted, ctx is done
// or a short grace period passes. A nil ctx waits for the grace period only.
func (c *Client) Flush(ctx context.Context) {
	if c == nil {
		return
	}
	if ctx == nil {
		ctx = context.Background()
	}
	deadline := time.NewTimer(flushWait)
	defer deadline.Stop()
	tick := time.NewTicker(10 * time.Millisecond)
	defer tick.Stop()
	for c.pending.Load() > 0 {
		select {
		case <-ctx.Done():
			return
		case <-deadline.C:
			return
		case <-tick.C:
		}
	}
}

// Close stops the worker. Queued requests that have not started are dropped.
func (c *Client) Close() { c.stopped.Do(func() { close(c.stop) }) }

func (c *Client) run() {
	for {
		select {
		case <-c.stop:
			return
		case o := <-c.queue:
			c.post(o)
			c.pending.Add(-1)
		}
	}
}

func (c *Client) post(o outbound) {
	ctx, cancel := context.WithTimeout(context.Background(), c.cfg.Timeout+time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.url, bytes.NewReader(o.body))
	if err != nil {
		c.debug("bad telemetry request", slog.String("what", o.what), slog.Any("err", err))
		return
	}
	req.Header.Set("Content-Type", o.contentType)
	req.Header.Set("User-Agent", "vocabgrid/"+version.Version)
	resp, err := c.httpc.Do(req)
	if err != nil {
		c.debug("telemetry send failed", slog.String("what", o.what), slog.Any("err", err))
		return
	}
	_ = resp.Body.Close()
	c.debug("telemetry sent", slog.String("what", o.what), slog.Int("status", resp.StatusCode))
}

func (c *Client) debug(msg string, attrs ...any) {
	if c.cfg.DebugLogging {
		c.log.Debug(msg, attrs...)
	}
}

var current atomic.Pointer[Client]

// NewDefault replaces the package client used by Event, UploadCrash and Flush.
func NewDefault(cfg Config) {
	if old := current.Swap(New(cfg)); old != nil {
		old.Close()
	}
}

// InitDefault installs a client from the environment unless one exists.
func InitDefault() {
	if current.Load() == nil {
		c := New(FromEnv())
		if !current.CompareAndSwap(nil, c) {
			c.Close()
		}
	}
}

// Configure installs the package client from the environment, opting in
// when the user config does even if the environment does not.
func Configure(configOptIn bool) {
	cfg := FromEnv()
	cfg.OptIn = cfg.OptIn || configOptIn
	NewDefault(cfg)
}

func client() *Client {
	InitDefault()
	return current.Load()
}

// Enabled reports whether the package client sends events.
func Enabled() bool { return client().Enabled() }

// Event queues an event on the package client.
func Event(name string, props map[string]any) { client().Event(name, props) }

// UploadCrash queues a crash report on the package client.
func UploadCrash(report []byte) { client().UploadCrash(report) }

// Flush drains the package client before the process exits.
func Flush(ctx context.Context) { client().Flush(ctx) }
