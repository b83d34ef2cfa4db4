/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * Licensed under the Apache License, Version 2.0.
 */

package gemini

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"google.golang.org/genai"

	"vocabgrid/internal/domain"
)

type call struct {
	model    string
	contents []*genai.Content
	cfg      *genai.GenerateContentConfig
}

// fakeModels replays responses and errors in order.
type fakeModels struct {
	mu    sync.Mutex
	calls []call
	resps []*genai.GenerateContentResponse
	errs  []error
}

func (f *fakeModels) GenerateContent(ctx context.Context, model string, contents []*genai.Content, cfg *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := len(f.calls)
	f.calls = append(f.calls, call{model: model, contents: contents, cfg: cfg})
	if n < len(f.errs) && f.errs[n] != nil {
		return nil, f.errs[n]
	}
	if n < len(f.resps) {
		return f.resps[n], nil
	}
	return f.resps[len(f.resps)-1], nil
}

func respWithParts(parts ...*genai.Part) *genai.GenerateContentResponse {
	return &genai.GenerateContentResponse{Candidates: []*genai.Candidate{{Content: &genai.Content{Parts: parts}}}}
}

func testClient(m models) *Client {
	c := newClient(m, Options{})
	c.retryDelay = time.Millisecond
	c.now = func() time.Time { return time.UnixMilli(1700000000000) }
	return c
}

func TestGenerateImageSendsBaseAndRatio(t *testing.T) {
	fm := &fakeModels{resps: []*genai.GenerateContentResponse{respWithParts(
		&genai.Part{Text: "here you go"},
		&genai.Part{InlineData: &genai.Blob{MIMEType: "image/png", Data: []byte{1, 2, 3}}},
	)}}
	c := testClient(fm)
	base := &domain.Image{Data: []byte{9}, MIMEType: "image/jpeg"}
	img, err := c.GenerateImage(context.Background(), domain.ImageRequest{Prompt: "add snow", Base: base, AspectRatio: "9:16"})
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if string(img.Data) != "\x01\x02\x03" || img.MIMEType != "image/png" {
		t.Fatalf("unexpected image: %+v", img)
	}
	got := fm.calls[0]
	if got.model != DefaultImageModel || got.cfg.ImageConfig == nil || got.cfg.ImageConfig.AspectRatio != "9:16" {
		t.Fatalf("unexpected call: %+v", got)
	}
	parts := got.contents[0].Parts
	if len(parts) != 2 || parts[0].InlineData == nil || parts[0].InlineData.MIMEType != "image/jpeg" || parts[1].Text != "add snow" {
		t.Fatalf("base image must precede the prompt: %+v", parts)
	}
}

func TestGenerateImageDefaultsAndMissingData(t *testing.T) {
	fm := &fakeModels{resps: []*genai.GenerateContentResponse{respWithParts(&genai.Part{Text: "sorry"})}}
	c := testClient(fm)
	_, err := c.GenerateImage(context.Background(), domain.ImageRequest{Prompt: "a cat"})
	if !errors.Is(err, ErrNoImageData) {
		t.Fatalf("expected ErrNoImageData, got %v", err)
	}
	if r := fm.calls[0].cfg.ImageConfig.AspectRatio; r != "1:1" {
		t.Fatalf("default ratio %q", r)
	}
	if len(fm.calls[0].contents[0].Parts) != 1 {
		t.Fatalf("create requests carry only the prompt")
	}
	if _, err := c.GenerateImage(context.Background(), domain.ImageRequest{Prompt: "  "}); err == nil {
		t.Fatalf("blank prompt must fail")
	}
}

func TestRetriesTransientErrors(t *testing.T) {
	fm := &fakeModels{
		errs:  []error{genai.APIError{Code: 429, Message: "slow down"}, genai.APIError{Code: 503}},
		resps: []*genai.GenerateContentResponse{respWithParts(&genai.Part{InlineData: &genai.Blob{Data: []byte{7}}})},
	}
	c := testClient(fm)
	img, err := c.GenerateImage(context.Background(), domain.ImageRequest{Prompt: "x"})
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if len(fm.calls) != 3 || img.MIMEType != "image/png" {
		t.Fatalf("calls=%d img=%+v", len(fm.calls), img)
	}
}

func TestDoesNotRetryClientErrors(t *testing.T) {
	fm := &fakeModels{errs: []error{genai.APIError{Code: 400, Message: "bad prompt"}}, resps: []*genai.GenerateContentResponse{nil}}
	c := testClient(fm)
	_, err := c.GenerateImage(context.Background(), domain.ImageRequest{Prompt: "x"})
	if err == nil || len(fm.calls) != 1 {
		t.Fatalf("err=%v calls=%d", err, len(fm.calls))
	}
	var apiErr genai.APIError
	if !errors.As(err, &apiErr) || apiErr.Code != 400 {
		t.Fatalf("cause lost: %v", err)
	}
}

func TestRetryGivesUp(t *testing.T) {
	n := 0
	err := retry(context.Background(), 3, time.Millisecond, func() error {
		n++
		return Retryable(errors.New("flaky"))
	})
	if n != 3 || !IsRetryable(err) {
		t.Fatalf("n=%d err=%v", n, err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err = retry(ctx, 3, time.Hour, func() error { return Retryable(errors.New("flaky")) })
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected cancellation, got %v", err)
	}
	if Retryable(nil) != nil {
		t.Fatalf("Retryable(nil) must be nil")
	}
}

const vocabJSON = `{"theme":"A cat cooks dinner","items":[
 {"word":"whisk","phonetic":"[hwɪsk]","definition":"打蛋器","englishSentence":"Whisk the eggs.","targetSentence":"把蛋打散。","imagePrompt":"[MASCOT] whisking eggs"},
 {"word":"ladle","phonetic":"[ˋled!]","definition":"湯杓","englishSentence":"Use a ladle.","targetSentence":"用湯杓。","imagePrompt":"[MASCOT] with a ladle"}]}`

func TestGenerateVocabulary(t *testing.T) {
	fm := &fakeModels{resps: []*genai.GenerateContentResponse{respWithParts(&genai.Part{Text: vocabJSON})}}
	c := testClient(fm)
	buddy, _ := domain.CharacterByID("buddy")
	cat, err := c.GenerateVocabulary(context.Background(), domain.VocabRequest{
		Topic: "Kitchen", TargetLanguage: "Traditional Chinese", Levels: []string{"B1", "TOEIC"}, Character: buddy,
	})
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if cat.Theme != "A cat cooks dinner" || len(cat.Items) != 2 {
		t.Fatalf("unexpected catalog: %+v", cat)
	}
	if cat.Items[0].ID != 1700000000000 || cat.Items[1].ID != 1700000000001 {
		t.Fatalf("ids %d %d", cat.Items[0].ID, cat.Items[1].ID)
	}
	got := fm.calls[0]
	if got.model != DefaultTextModel || got.cfg.ResponseMIMEType != "application/json" || got.cfg.ResponseSchema == nil {
		t.Fatalf("unexpected config: %+v", got.cfg)
	}
	sys := got.cfg.SystemInstruction.Parts[0].Text
	if !strings.Contains(sys, buddy.PromptSignature) || !strings.Contains(sys, "Traditional Chinese") {
		t.Fatalf("system instruction: %q", sys)
	}
	user := got.contents[0].Parts[0].Text
	if !strings.Contains(user, `"Kitchen"`) || !strings.Contains(user, "B1, TOEIC") || !strings.Contains(user, "Generate 9") {
		t.Fatalf("user prompt: %q", user)
	}
}

func TestUserPromptModes(t *testing.T) {
	p := UserPrompt(domain.VocabRequest{Words: []string{"whisk", "ladle"}, Topic: "ignored"})
	if !strings.HasSuffix(p, "following words: whisk, ladle.") {
		t.Fatalf("manual prompt: %q", p)
	}
	if p := UserPrompt(domain.VocabRequest{Topic: "Beach"}); !strings.Contains(p, "Target Proficiency Levels: General.") {
		t.Fatalf("topic prompt: %q", p)
	}
	if s := SystemInstruction("Japanese", domain.Character{}); !strings.Contains(s, "Sir Isaac") {
		t.Fatalf("default character missing: %q", s)
	}
}

func TestParseCatalogRejectsBadResponses(t *testing.T) {
	cases := map[string]string{
		"not json":      `{"theme":`,
		"missing field": `{"theme":"t","items":[{"word":"a","phonetic":"","definition":"","englishSentence":"","targetSentence":""}]}`,
		"no items":      `{"theme":"t","items":[]}`,
		"no theme":      `{"items":[{"word":"a","phonetic":"","definition":"","englishSentence":"","targetSentence":"","imagePrompt":""}]}`,
	}
	for name, data := range cases {
		if _, err := ParseCatalog([]byte(data), 1); !errors.Is(err, ErrInvalidVocab) {
			t.Fatalf("%s: expected ErrInvalidVocab, got %v", name, err)
		}
	}
	if _, err := (testClient(&fakeModels{})).GenerateVocabulary(context.Background(), domain.VocabRequest{}); !errors.Is(err, ErrEmptyRequest) {
		t.Fatalf("expected ErrEmptyRequest, got %v", err)
	}
}

func TestNewClientValidatesBackend(t *testing.T) {
	if _, err := NewClient(context.Background(), Options{Backend: "gemini"}); !errors.Is(err, ErrMissingAPIKey) {
		t.Fatalf("expected missing key, got %v", err)
	}
	if _, err := NewClient(context.Background(), Options{Backend: "bedrock", APIKey: "k"}); err == nil {
		t.Fatalf("unknown backend accepted")
	}
}
