/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package gemini

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"google.golang.org/genai"

	"vocabgrid/internal/domain"
)

// ErrNoImageData is returned when a response carries no inline image.
var ErrNoImageData = errors.New("no image data found in response")

// GenerateImage sends the prompt, and the base image for edits, to the image
// model and returns the first inline image of the response.
func (c *Client) GenerateImage(ctx context.Context, req domain.ImageRequest) (domain.Image, error) {
	if strings.TrimSpace(req.Prompt) == "" {
		return domain.Image{}, errors.New("empty image prompt")
	}
	ratio := req.AspectRatio
	if ratio == "" {
		ratio = "1:1"
	}
	lg := c.log.With(slog.String("req_id", uuid.NewString()), slog.String("model", c.imageModel), slog.String("ratio", ratio))

	var parts []*genai.Part
	if !req.Base.Empty() {
		mime := req.Base.MIMEType
		if mime == "" {
			mime = "image/png"
		}
		parts = append(parts, &genai.Part{InlineData: &genai.Blob{MIMEType: mime, Data: req.Base.Data}})
	}
	parts = append(parts, &genai.Part{Text: req.Prompt})

	start := time.Now()
	resp, err := c.generate(ctx, c.imageModel,
		[]*genai.Content{{Role: "user", Parts: parts}},
		&genai.GenerateContentConfig{ImageConfig: &genai.ImageConfig{AspectRatio: ratio}},
	)
	if err != nil {
		lg.Warn("image generation failed", slog.Any("err", err))
		return domain.Image{}, fmt.Errorf("gemini generate image: %w", err)
	}
	img, ok := firstInlineImage(resp)
	if !ok {
		lg.Warn("image response without inline data")
		return domain.Image{}, ErrNoImageData
	}
	lg.Info("image generated", slog.Bool("edit", req.Base != nil), slog.Int("bytes", len(img.Data)), slog.Duration("took", time.Since(start)))
	return img, nil
}

func firstInlineImage(resp *genai.GenerateContentResponse) (domain.Image, bool) {
	if resp == nil {
		return domain.Image{}, false
	}
	for _, cand := range resp.Candidates {
		if cand == nil || cand.Content == nil {
			continue
		}
		for _, p := range cand.Content.Parts {
			if p == nil || p.InlineData == nil || len(p.InlineData.Data) == 0 {
				continue
			}
			mime := p.InlineData.MIMEType
			if mime == "" {
				mime = "image/png"
			}
			return domain.Image{Data: p.InlineData.Data, MIMEType: mime}, true
		}
	}
	return domain.Image{}, false
}
