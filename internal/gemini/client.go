/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package gemini generates illustrations and vocabulary catalogs with the
// Google GenAI SDK, on either the Gemini API or Vertex AI.
package gemini

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"google.golang.org/genai"

	applog "vocabgrid/internal/log"
)

const (
	BackendGemini = "gemini"
	BackendVertex = "vertex"

	DefaultImageModel = "gemini-2.5-flash-image"
	DefaultTextModel  = "gemini-3-flash-preview"
	defaultLocation   = "us-central1"
	defaultTimeout    = 90 * time.Second
)

var ErrMissingAPIKey = errors.New("gemini backend needs an API key")

// Options selects the transport and models.
type Options struct {
	Backend    string // gemini | vertex
	APIKey     string // gemini backend only
	Project    string // vertex backend only
	Location   string
	ImageModel string
	TextModel  string
	Timeout    time.Duration
	Logger     *slog.Logger
}

// models is the part of genai.Models the client uses.
type models interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// Client implements grid.Generator.
type Client struct {
	models     models
	imageModel string
	textModel  string
	timeout    time.Duration
	attempts   int
	retryDelay time.Duration
	now        func() time.Time
	log        *slog.Logger
}

// NewClient creates a client. The vertex backend uses Application Default
// Credentials (GOOGLE_APPLICATION_CREDENTIALS).
func NewClient(ctx context.Context, opts Options) (*Client, error) {
	cc := &genai.ClientConfig{}
	switch strings.ToLower(strings.TrimSpace(opts.Backend)) {
	case BackendVertex:
		loc := opts.Location
		if loc == "" {
			loc = defaultLocation
		}
		cc.Backend = genai.BackendVertexAI
		cc.Project = opts.Project
		cc.Location = loc
	case BackendGemini, "":
		if strings.TrimSpace(opts.APIKey) == "" {
			return nil, ErrMissingAPIKey
		}
		cc.Backend = genai.BackendGeminiAPI
		cc.APIKey = opts.APIKey
	default:
		return nil, fmt.Errorf("unknown genai backend %q", opts.Backend)
	}
	gc, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}
	return newClient(gc.Models, opts), nil
}

func newClient(m models, opts Options) *Client {
	c := &Client{
		models:     m,
		imageModel: opts.ImageModel,
		textModel:  opts.TextModel,
		timeout:    opts.Timeout,
		attempts:   3,
		retryDelay: time.Second,
		now:        time.Now,
		log:        opts.Logger,
	}
	if c.imageModel == "" {
		c.imageModel = DefaultImageModel
	}
	if c.textModel == "" {
		c.textModel = DefaultTextModel
	}
	if c.timeout <= 0 {
		c.timeout = defaultTimeout
	}
	if c.log == nil {
		c.log = applog.WithComponent("gemini")
	}
	return c
}

// generate runs one GenerateContent call with the client timeout and retries.
func (c *Client) generate(ctx context.Context, model string, contents []*genai.Content, cfg *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	var resp *genai.GenerateContentResponse
	err := retry(ctx, c.attempts, c.retryDelay, func() error {
		r, err := c.models.GenerateContent(ctx, model, contents, cfg)
		if err != nil {
			return classify(err)
		}
		resp = r
		return nil
	})
	if err != nil {
		return nil, err
	}
	return resp, nil
}
