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
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	gojsonschema "github.com/xeipuuv/gojsonschema"
	"google.golang.org/genai"

	"vocabgrid/internal/domain"
)

// TopicWordCount is how many words a topic request asks for.
const TopicWordCount = 9

const defaultSignature = "a chubby orange tabby cat with round glasses (Sir Isaac)"

var (
	ErrEmptyRequest  = errors.New("vocabulary request has neither topic nor words")
	ErrEmptyResponse = errors.New("empty response from the text model")
	ErrInvalidVocab  = errors.New("vocabulary response does not match the schema")
)

var itemFields = []string{"word", "phonetic", "definition", "englishSentence", "targetSentence", "imagePrompt"}

// vocabJSONSchema mirrors responseSchema for local validation.
const vocabJSONSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "required": ["theme", "items"],
  "properties": {
    "theme": {"type": "string"},
    "items": {
      "type": "array",
      "minItems": 1,
      "items": {
        "type": "object",
        "required": ["word", "phonetic", "definition", "englishSentence", "targetSentence", "imagePrompt"],
        "properties": {
          "word": {"type": "string", "minLength": 1},
          "phonetic": {"type": "string"},
          "definition": {"type": "string"},
          "englishSentence": {"type": "string"},
          "targetSentence": {"type": "string"},
          "imagePrompt": {"type": "string"}
        }
      }
    }
  }
}`

// SystemInstruction is the linguist persona sent with every vocabulary request.
func SystemInstruction(targetLanguage string, character domain.Character) string {
	sig := character.PromptSignature
	if sig == "" {
		sig = defaultSignature
	}
	return strings.Join([]string{
		"You are a professional linguist and vocabulary teacher.",
		`Your task is to generate structured vocabulary cards and a "Theme Sentence" that summarizes the collection.`,
		"The user wants the definitions and target sentences in this language: " + targetLanguage + ".",
		"Ensure the 'phonetic' field uses KK Phonetic symbols.",
		`Ensure the 'imagePrompt' describes a "Soft watercolor and ink illustration" featuring ` + sig + " acting out the word.",
		"Include a 'theme' property which is a creative 1-sentence summary or title for this set of words.",
	}, "\n")
}

// UserPrompt asks for the listed words, or for TopicWordCount words on the topic.
func UserPrompt(req domain.VocabRequest) string {
	if len(req.Words) > 0 {
		return fmt.Sprintf("Generate detailed vocabulary cards and a summary theme sentence for the following words: %s.", req.Input())
	}
	levels := "General"
	if len(req.Levels) > 0 {
		levels = strings.Join(req.Levels, ", ")
	}
	return fmt.Sprintf("Generate %d vocabulary words related to the topic: %q.\nTarget Proficiency Levels: %s.\nAlso provide a creative theme sentence.",
		TopicWordCount, req.Input(), levels)
}

func responseSchema(targetLanguage string) *genai.Schema {
	str := func(desc string) *genai.Schema { return &genai.Schema{Type: genai.TypeString, Description: desc} }
	return &genai.Schema{
		Type: genai.TypeObject,
		Properties: map[string]*genai.Schema{
			"theme": str("A creative summary sentence for the collection"),
			"items": {
				Type: genai.TypeArray,
				Items: &genai.Schema{
					Type: genai.TypeObject,
					Properties: map[string]*genai.Schema{
						"word":            str(""),
						"phonetic":        str("KK Phonetic transcription"),
						"definition":      str("Definition in " + targetLanguage),
						"englishSentence": str(""),
						"targetSentence":  str("Sentence translated to " + targetLanguage),
						"imagePrompt":     str("A visual description for an image generator"),
					},
					Required: itemFields,
				},
			},
		},
		Required: []string{"theme", "items"},
	}
}

type vocabResponse struct {
	Theme string `json:"theme"`
	Items []struct {
		Word            string `json:"word"`
		Phonetic        string `json:"phonetic"`
		Definition      string `json:"definition"`
		EnglishSentence string `json:"englishSentence"`
		TargetSentence  string `json:"targetSentence"`
		ImagePrompt     string `json:"imagePrompt"`
	} `json:"items"`
}

// GenerateVocabulary asks the text model for a catalog. Item ids are the
// request time in milliseconds plus the item index.
func (c *Client) GenerateVocabulary(ctx context.Context, req domain.VocabRequest) (domain.Catalog, error) {
	if strings.TrimSpace(req.Input()) == "" {
		return domain.Catalog{}, ErrEmptyRequest
	}
	lang := strings.TrimSpace(req.TargetLanguage)
	if lang == "" {
		lang = "English"
	}
	lg := c.log.With(slog.String("req_id", uuid.NewString()), slog.String("model", c.textModel))
	cfg := &genai.GenerateContentConfig{
		SystemInstruction: &genai.Content{Parts: []*genai.Part{{Text: SystemInstruction(lang, req.Character)}}},
		ResponseMIMEType:  "application/json",
		ResponseSchema:    responseSchema(lang),
	}
	resp, err := c.generate(ctx, c.textModel,
		[]*genai.Content{{Role: "user", Parts: []*genai.Part{{Text: UserPrompt(req)}}}}, cfg)
	if err != nil {
		lg.Warn("vocabulary generation failed", slog.Any("err", err))
		return domain.Catalog{}, fmt.Errorf("gemini generate vocabulary: %w", err)
	}
	text := resp.Text()
	if strings.TrimSpace(text) == "" {
		return domain.Catalog{}, ErrEmptyResponse
	}
	cat, err := ParseCatalog([]byte(text), c.now().UnixMilli())
	if err != nil {
		lg.Warn("vocabulary response rejected", slog.Any("err", err))
		return domain.Catalog{}, err
	}
	lg.Info("vocabulary generated", slog.String("theme", cat.Theme), slog.Int("items", len(cat.Items)))
	return cat, nil
}

// ParseCatalog validates a model response and assigns ids base+index.
func ParseCatalog(data []byte, base int64) (domain.Catalog, error) {
	result, err := gojsonschema.Validate(gojsonschema.NewStringLoader(vocabJSONSchema), gojsonschema.NewBytesLoader(data))
	if err != nil {
		return domain.Catalog{}, fmt.Errorf("%w: %v", ErrInvalidVocab, err)
	}
	if !result.Valid() {
		var msgs []string
		for _, e := range result.Errors() {
			msgs = append(msgs, e.String())
		}
		return domain.Catalog{}, fmt.Errorf("%w: %s", ErrInvalidVocab, strings.Join(msgs, "; "))
	}
	var vr vocabResponse
	if err := json.Unmarshal(data, &vr); err != nil {
		return domain.Catalog{}, fmt.Errorf("parse vocabulary JSON: %w", err)
	}
	if base <= 0 {
		base = 1
	}
	cat := domain.Catalog{Theme: vr.Theme}
	for i, it := range vr.Items {
		cat.Items = append(cat.Items, domain.ContentItem{
			ID:              base + int64(i),
			Word:            it.Word,
			Phonetic:        it.Phonetic,
			Definition:      it.Definition,
			EnglishSentence: it.EnglishSentence,
			TargetSentence:  it.TargetSentence,
			ImagePrompt:     it.ImagePrompt,
		})
	}
	if err := cat.Validate(); err != nil {
		return domain.Catalog{}, err
	}
	return cat, nil
}
