/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * Licensed under the Apache License, Version 2.0.
 */

package grid

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"slices"
	"strings"
	"sync"
	"testing"
	"time"

	"vocabgrid/internal/domain"
	"vocabgrid/internal/imagecache"
	"vocabgrid/internal/render"
)

// fakeGen answers image requests with a fixed PNG. When gate is set every
// call announces itself on started and waits for gate to close.
type fakeGen struct {
	mu      sync.Mutex
	reqs    []domain.ImageRequest
	img     domain.Image
	err     error
	catalog domain.Catalog
	vocab   []domain.VocabRequest
	started chan struct{}
	gate    chan struct{}
}

func newFakeGen(t *testing.T) *fakeGen {
	return &fakeGen{img: pngImage(t, color.RGBA{R: 200, A: 255})}
}

func (g *fakeGen) GenerateImage(ctx context.Context, req domain.ImageRequest) (domain.Image, error) {
	g.mu.Lock()
	g.reqs = append(g.reqs, req)
	started, gate := g.started, g.gate
	img, err := g.img, g.err
	g.mu.Unlock()
	if started != nil {
		started <- struct{}{}
	}
	if gate != nil {
		<-gate
	}
	return img, err
}

func (g *fakeGen) GenerateVocabulary(ctx context.Context, req domain.VocabRequest) (domain.Catalog, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.vocab = append(g.vocab, req)
	return g.catalog, g.err
}

func (g *fakeGen) calls() []domain.ImageRequest {
	g.mu.Lock()
	defer g.mu.Unlock()
	return slices.Clone(g.reqs)
}

func (g *fakeGen) block() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.started = make(chan struct{}, 8)
	g.gate = make(chan struct{})
}

func pngImage(t *testing.T, c color.RGBA) domain.Image {
	t.Helper()
	return domain.Image{Data: pngBytes(t, c), MIMEType: "image/png"}
}

func pngBytes(t *testing.T, c color.RGBA) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 8, 8))
	for y := 0; y < 8; y++ {
		for x := 0; x < 8; x++ {
			img.Set(x, y, c)
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	return buf.Bytes()
}

func catalog9() domain.Catalog {
	c := domain.Catalog{Theme: "Kitchen"}
	for i := 0; i < 9; i++ {
		c.Items = append(c.Items, domain.ContentItem{
			ID:          int64(1001 + i),
			Word:        fmt.Sprintf("word%d", i+1),
			ImagePrompt: "[MASCOT] holding item " + fmt.Sprint(i+1),
		})
	}
	return c
}

type fixture struct {
	s     *Session
	gen   *fakeGen
	cache *imagecache.Cache
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	gen := newFakeGen(t)
	cache := imagecache.New(nil, imagecache.Options{})
	s := New(Options{Cache: cache, Generator: gen})
	if err := s.ReplaceCatalog(catalog9()); err != nil {
		t.Fatalf("replace catalog: %v", err)
	}
	return fixture{s: s, gen: gen, cache: cache}
}

func (f fixture) cached(k imagecache.Key) bool {
	_, ok := f.cache.Get(k)
	return ok
}

func TestReplaceCatalogSelectsFirst(t *testing.T) {
	f := newFixture(t)
	b := f.s.Board()
	if b.LayoutID != 0 || !slices.Equal(b.Assignment, []int64{1001}) || b.Active != 0 {
		t.Fatalf("unexpected board: %+v", b)
	}
	if f.s.Selected() != 1001 {
		t.Fatalf("selected = %d", f.s.Selected())
	}
	if err := f.s.ReplaceCatalog(domain.Catalog{Items: []domain.ContentItem{{ID: 0}}}); !errors.Is(err, domain.ErrReservedID) {
		t.Fatalf("expected reserved id error, got %v", err)
	}
}

func TestChangeLayoutFillsFromCatalog(t *testing.T) {
	f := newFixture(t)
	if err := f.s.ChangeLayout(3); err != nil {
		t.Fatalf("change layout: %v", err)
	}
	b := f.s.Board()
	if !slices.Equal(b.Assignment, []int64{1001, 1002, 1003, 1004}) || len(b.Cells) != 4 {
		t.Fatalf("unexpected board: %+v", b)
	}
	for i, c := range b.Cells {
		if want := fmt.Sprintf("cell-%d-%d", b.Assignment[i], i); c.Key != want {
			t.Fatalf("cell %d key %q want %q", i, c.Key, want)
		}
	}
	if err := f.s.ChangeLayout(42); !errors.Is(err, ErrUnknownLayout) {
		t.Fatalf("expected unknown layout, got %v", err)
	}
}

func TestEmptyCatalogMultiCellLayout(t *testing.T) {
	s := New(Options{})
	if err := s.ChangeLayout(6); err != nil {
		t.Fatalf("change layout: %v", err)
	}
	b := s.Board()
	if len(b.Assignment) != 9 || len(Duplicates(b.Assignment)) != 0 || b.Assignment[0] != 0 {
		t.Fatalf("unexpected board: %+v", b)
	}
	img := s.Preview(64, render.Options{Faces: nil})
	if img.Bounds().Dx() != 64 {
		t.Fatalf("preview size %v", img.Bounds())
	}
}

// Scenario A: nine cells, generate cell 0, clear it.
func TestScenarioClearSingleCell(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	if err := f.s.ChangeLayout(6); err != nil {
		t.Fatalf("change layout: %v", err)
	}
	want := []int64{1001, 1002, 1003, 1004, 1005, 1006, 1007, 1008, 1009}
	if b := f.s.Board(); !slices.Equal(b.Assignment, want) {
		t.Fatalf("assignment %v", b.Assignment)
	}
	if err := f.s.Create(ctx, 0); err != nil {
		t.Fatalf("create: %v", err)
	}
	if !f.s.Board().Cells[0].HasImage() || !f.cached(imagecache.ItemKey(1001)) {
		t.Fatalf("generated image not stored")
	}
	before := f.s.Board()
	if err := f.s.Clear(0); err != nil {
		t.Fatalf("clear: %v", err)
	}
	after := f.s.Board()
	if after.Cells[0].HasImage() || f.cached(imagecache.ItemKey(1001)) {
		t.Fatalf("cell 0 not cleared")
	}
	for i := 1; i < 9; i++ {
		if after.Cells[i] != before.Cells[i] {
			t.Fatalf("cell %d changed: %+v vs %+v", i, after.Cells[i], before.Cells[i])
		}
	}
}

// Scenario B: the single cell's image follows its item into a larger layout.
func TestScenarioLayoutSwitchCarriesImage(t *testing.T) {
	f := newFixture(t)
	if err := f.s.Create(context.Background(), 0); err != nil {
		t.Fatalf("create: %v", err)
	}
	img := f.s.Board().Cells[0].Image
	if err := f.s.ChangeLayout(3); err != nil {
		t.Fatalf("change layout: %v", err)
	}
	b := f.s.Board()
	if !slices.Equal(b.Assignment, []int64{1001, 1002, 1003, 1004}) {
		t.Fatalf("assignment %v", b.Assignment)
	}
	if b.Cells[0].Image != img {
		t.Fatalf("image not carried by identity")
	}
	for i := 1; i < 4; i++ {
		if b.Cells[i].HasImage() {
			t.Fatalf("cell %d unexpectedly has an image", i)
		}
	}
}

// Scenario C: collage cells survive a round trip through another layout.
func TestScenarioCollageSnapshotRestored(t *testing.T) {
	f := newFixture(t)
	f.s.SetMode(domain.ModeCollage)
	if err := f.s.ChangeLayout(3); err != nil {
		t.Fatalf("change layout: %v", err)
	}
	data := pngBytes(t, color.RGBA{G: 255, A: 255})
	if ok, err := f.s.Upload(0, data); !ok || err != nil {
		t.Fatalf("upload: %v %v", ok, err)
	}
	cell0 := f.s.Board().Cells[0]
	if err := f.s.ChangeLayout(6); err != nil {
		t.Fatalf("change layout: %v", err)
	}
	if b := f.s.Board(); len(b.Cells) != 9 || b.Cells[0].HasImage() {
		t.Fatalf("unexpected 9-cell board: %+v", b.Cells[0])
	}
	if err := f.s.ChangeLayout(3); err != nil {
		t.Fatalf("change layout: %v", err)
	}
	got := f.s.Board().Cells[0]
	if got.Key != cell0.Key || !bytes.Equal(got.Image.Data, data) {
		t.Fatalf("cell 0 not restored: %+v", got)
	}
	if len(f.gen.calls()) != 0 {
		t.Fatalf("restore must not regenerate")
	}
}

// Scenario D: broadcast edit only touches cells with images.
func TestScenarioBroadcastSkipsEmptyCells(t *testing.T) {
	f := newFixture(t)
	f.s.SetMode(domain.ModeCollage)
	if err := f.s.ChangeLayout(4); err != nil {
		t.Fatalf("change layout: %v", err)
	}
	for _, i := range []int{0, 2} {
		if ok, _ := f.s.Upload(i, pngBytes(t, color.RGBA{B: 255, A: 255})); !ok {
			t.Fatalf("upload %d failed", i)
		}
	}
	f.s.SetMagicPrompt("make it snowy", true)
	if err := f.s.ApplyMagic(context.Background()); err != nil {
		t.Fatalf("apply magic: %v", err)
	}
	calls := f.gen.calls()
	if len(calls) != 2 {
		t.Fatalf("expected 2 edit requests, got %d", len(calls))
	}
	for _, r := range calls {
		if r.Base == nil || !strings.Contains(r.Prompt, "make it snowy") {
			t.Fatalf("unexpected request: %+v", r)
		}
	}
	b := f.s.Board()
	if b.Cells[1].HasImage() || b.Cells[1].Loading || f.s.PanelError() != "" {
		t.Fatalf("empty cell touched: %+v %q", b.Cells[1], f.s.PanelError())
	}
}

func TestCreateRequiresContent(t *testing.T) {
	f := newFixture(t)
	if err := f.s.UnselectAll(); err != nil {
		t.Fatalf("unselect: %v", err)
	}
	if err := f.s.Create(context.Background(), 0); !errors.Is(err, ErrNoContent) {
		t.Fatalf("expected ErrNoContent, got %v", err)
	}
	if f.s.PanelError() != MsgSelectWord || len(f.gen.calls()) != 0 {
		t.Fatalf("panel %q calls %d", f.s.PanelError(), len(f.gen.calls()))
	}
	f.s.SetMode(domain.ModeCollage)
	if err := f.s.Create(context.Background(), 0); !errors.Is(err, ErrCreateFreeform) {
		t.Fatalf("expected ErrCreateFreeform, got %v", err)
	}
}

func TestCreateUsesCharacterAndCellRatio(t *testing.T) {
	f := newFixture(t)
	if err := f.s.SetCharacter("rocket"); err != nil {
		t.Fatalf("set character: %v", err)
	}
	if err := f.s.ChangeLayout(1); err != nil {
		t.Fatalf("change layout: %v", err)
	}
	if err := f.s.Create(context.Background(), 1); err != nil {
		t.Fatalf("create: %v", err)
	}
	r := f.gen.calls()[0]
	if r.AspectRatio != "9:16" || r.Base != nil {
		t.Fatalf("unexpected request: %+v", r)
	}
	want := "Soft watercolor and ink illustration of a mischievous and clever raccoon named Rocket holding item 2"
	if r.Prompt != want {
		t.Fatalf("prompt %q", r.Prompt)
	}
	if err := f.s.SetCharacter("dragon"); !errors.Is(err, ErrUnknownCharacter) {
		t.Fatalf("expected unknown character, got %v", err)
	}
}

func TestSecondRequestForBusyCell(t *testing.T) {
	f := newFixture(t)
	f.gen.block()
	done := make(chan error, 1)
	go func() { done <- f.s.Create(context.Background(), 0) }()
	<-f.gen.started
	if c := f.s.Board().Cells[0]; c.State() != StateLoading {
		t.Fatalf("state = %s", c.State())
	}
	if err := f.s.Create(context.Background(), 0); !errors.Is(err, ErrCellBusy) {
		t.Fatalf("expected ErrCellBusy, got %v", err)
	}
	close(f.gen.gate)
	if err := <-done; err != nil {
		t.Fatalf("create: %v", err)
	}
	if c := f.s.Board().Cells[0]; c.State() != StateReady {
		t.Fatalf("state = %s", c.State())
	}
	if n := len(f.gen.calls()); n != 1 {
		t.Fatalf("calls = %d", n)
	}
}

func TestCompletionAfterClearIsDropped(t *testing.T) {
	f := newFixture(t)
	f.gen.block()
	done := make(chan error, 1)
	go func() { done <- f.s.Create(context.Background(), 0) }()
	<-f.gen.started
	if err := f.s.Clear(0); err != nil {
		t.Fatalf("clear: %v", err)
	}
	close(f.gen.gate)
	if err := <-done; err != nil {
		t.Fatalf("create: %v", err)
	}
	if c := f.s.Board().Cells[0]; c.HasImage() || c.Loading {
		t.Fatalf("stale completion applied: %+v", c)
	}
	if f.cached(imagecache.ItemKey(1001)) || f.s.Pending() != 0 {
		t.Fatalf("stale completion cached")
	}
}

func TestCompletionFollowsMovedOccupant(t *testing.T) {
	f := newFixture(t)
	if err := f.s.ChangeLayout(3); err != nil {
		t.Fatalf("change layout: %v", err)
	}
	f.gen.block()
	done := make(chan error, 1)
	go func() { done <- f.s.Create(context.Background(), 0) }()
	<-f.gen.started
	if err := f.s.Move(0, 3); err != nil {
		t.Fatalf("move: %v", err)
	}
	close(f.gen.gate)
	if err := <-done; err != nil {
		t.Fatalf("create: %v", err)
	}
	b := f.s.Board()
	if !slices.Equal(b.Assignment, []int64{1002, 1003, 1004, 1001}) || b.Active != 3 {
		t.Fatalf("board %+v", b)
	}
	if !b.Cells[3].HasImage() || b.Cells[3].Occupant != 1001 || b.Cells[0].HasImage() {
		t.Fatalf("image landed on the wrong cell: %+v", b.Cells)
	}
}

// unboundBoard switches to the four-cell layout and empties every cell.
func unboundBoard(t *testing.T, f fixture) {
	t.Helper()
	if err := f.s.ChangeLayout(3); err != nil {
		t.Fatalf("change layout: %v", err)
	}
	if err := f.s.UnselectAll(); err != nil {
		t.Fatalf("unselect: %v", err)
	}
}

func TestEditOfUnboundCellStaysInPlace(t *testing.T) {
	f := newFixture(t)
	unboundBoard(t, f)
	if ok, _ := f.s.Upload(2, pngBytes(t, color.RGBA{G: 90, A: 255})); !ok {
		t.Fatalf("upload failed")
	}
	if err := f.s.Edit(context.Background(), 2, "add a hat"); err != nil {
		t.Fatalf("edit: %v", err)
	}
	b := f.s.Board()
	if c := b.Cells[2]; c.Loading || !bytes.Equal(c.Image.Data, f.gen.img.Data) {
		t.Fatalf("edited cell not updated: %+v", c)
	}
	for _, i := range []int{0, 1, 3} {
		if b.Cells[i].HasImage() || b.Cells[i].Loading {
			t.Fatalf("cell %d touched: %+v", i, b.Cells[i])
		}
	}
	if f.s.Pending() != 0 {
		t.Fatalf("pending = %d", f.s.Pending())
	}
	if err := f.s.Edit(context.Background(), 2, "add a scarf"); err != nil {
		t.Fatalf("second edit: %v", err)
	}
}

func TestBroadcastOverUnboundCells(t *testing.T) {
	f := newFixture(t)
	unboundBoard(t, f)
	for _, i := range []int{1, 3} {
		if ok, _ := f.s.Upload(i, pngBytes(t, color.RGBA{B: uint8(i), A: 255})); !ok {
			t.Fatalf("upload %d failed", i)
		}
	}
	f.gen.block()
	f.s.SetMagicPrompt("make it snowy", true)
	done := make(chan error, 1)
	go func() { done <- f.s.ApplyMagic(context.Background()) }()
	<-f.gen.started
	<-f.gen.started
	if f.s.Pending() != 2 {
		t.Fatalf("pending = %d", f.s.Pending())
	}
	close(f.gen.gate)
	if err := <-done; err != nil {
		t.Fatalf("apply magic: %v", err)
	}
	b := f.s.Board()
	for i, c := range b.Cells {
		want := i == 1 || i == 3
		if c.Loading || c.HasImage() != want {
			t.Fatalf("cell %d: %+v", i, c)
		}
		if want && !bytes.Equal(c.Image.Data, f.gen.img.Data) {
			t.Fatalf("cell %d kept its upload", i)
		}
	}
}

func TestBindingUnboundCellAbandonsEdit(t *testing.T) {
	f := newFixture(t)
	unboundBoard(t, f)
	if ok, _ := f.s.Upload(2, pngBytes(t, color.RGBA{R: 4, A: 255})); !ok {
		t.Fatalf("upload failed")
	}
	f.gen.block()
	done := make(chan error, 1)
	go func() { done <- f.s.Edit(context.Background(), 2, "add a hat") }()
	<-f.gen.started
	if err := f.s.SelectCell(2, 1001); err != nil {
		t.Fatalf("select: %v", err)
	}
	close(f.gen.gate)
	if err := <-done; err != nil {
		t.Fatalf("edit: %v", err)
	}
	c := f.s.Board().Cells[2]
	if c.Occupant != 1001 || c.Loading || c.HasImage() {
		t.Fatalf("abandoned edit applied: %+v", c)
	}
	if f.s.Pending() != 0 || f.cached(imagecache.ItemKey(1001)) {
		t.Fatalf("abandoned edit left state behind")
	}
}

func TestGenerationFailureKeepsPriorImage(t *testing.T) {
	f := newFixture(t)
	data := pngBytes(t, color.RGBA{R: 9, A: 255})
	if ok, _ := f.s.Upload(0, data); !ok {
		t.Fatalf("upload failed")
	}
	f.gen.err = errors.New("quota exceeded")
	err := f.s.Edit(context.Background(), 0, "add a hat")
	if err == nil || !strings.Contains(err.Error(), "quota exceeded") {
		t.Fatalf("expected wrapped failure, got %v", err)
	}
	c := f.s.Board().Cells[0]
	if c.Loading || !bytes.Equal(c.Image.Data, data) {
		t.Fatalf("prior image lost: %+v", c)
	}
	if f.s.PanelError() != "Failed to generate image for cell 1" {
		t.Fatalf("panel %q", f.s.PanelError())
	}
	f.s.DismissError()
	if f.s.PanelError() != "" {
		t.Fatalf("panel not dismissed")
	}
}

func TestApplyMagicActiveCell(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	if err := f.s.ApplyMagic(ctx); err != nil || len(f.gen.calls()) != 0 {
		t.Fatalf("blank prompt must be a no-op: %v", err)
	}
	f.s.SetMagicPrompt("sunset", false)
	if err := f.s.ApplyMagic(ctx); !errors.Is(err, ErrNoImage) || f.s.PanelError() != MsgNeedImage {
		t.Fatalf("got %v %q", err, f.s.PanelError())
	}
	if err := f.s.Create(ctx, 0); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := f.s.ApplyMagic(ctx); err != nil {
		t.Fatalf("apply magic: %v", err)
	}
	calls := f.gen.calls()
	if len(calls) != 2 || calls[1].Base == nil || !strings.HasPrefix(calls[1].Prompt, "Update this watercolor scene featuring a chubby orange tabby cat") {
		t.Fatalf("unexpected calls: %+v", calls)
	}
}

func TestSelectCellSteals(t *testing.T) {
	f := newFixture(t)
	if err := f.s.ChangeLayout(3); err != nil {
		t.Fatalf("change layout: %v", err)
	}
	if err := f.s.Create(context.Background(), 0); err != nil {
		t.Fatalf("create: %v", err)
	}
	img := f.s.Board().Cells[0].Image
	if err := f.s.SelectCell(2, 1001); err != nil {
		t.Fatalf("select: %v", err)
	}
	b := f.s.Board()
	if !slices.Equal(b.Assignment, []int64{0, 1002, 1001, 1004}) {
		t.Fatalf("assignment %v", b.Assignment)
	}
	if b.Cells[2].Image != img || b.Cells[0].HasImage() {
		t.Fatalf("image did not move with its item")
	}
	if err := f.s.SelectCell(4, 1001); !errors.Is(err, ErrCellRange) {
		t.Fatalf("expected range error, got %v", err)
	}
	if err := f.s.SelectCell(0, 77); !errors.Is(err, ErrUnknownItem) {
		t.Fatalf("expected unknown item, got %v", err)
	}
}

func TestSelectItem(t *testing.T) {
	f := newFixture(t)
	if err := f.s.SelectItem(1005); err != nil {
		t.Fatalf("select item: %v", err)
	}
	if b := f.s.Board(); !slices.Equal(b.Assignment, []int64{1005}) || f.s.Selected() != 1005 {
		t.Fatalf("single layout: %v", b.Assignment)
	}
	if err := f.s.ChangeLayout(3); err != nil {
		t.Fatalf("change layout: %v", err)
	}
	f.s.SetActive(9)
	if b := f.s.Board(); b.Active != 3 {
		t.Fatalf("active not clamped: %d", b.Active)
	}
	if err := f.s.SelectItem(1001); err != nil {
		t.Fatalf("select item: %v", err)
	}
	if b := f.s.Board(); !slices.Equal(b.Assignment, []int64{0, 1002, 1003, 1001}) {
		t.Fatalf("assignment %v", b.Assignment)
	}
	f.s.SetMode(domain.ModeCollage)
	if err := f.s.SelectItem(1001); !errors.Is(err, ErrWrongMode) {
		t.Fatalf("expected wrong mode, got %v", err)
	}
}

func TestClearAllVocab(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	if err := f.s.ChangeLayout(1); err != nil {
		t.Fatalf("change layout: %v", err)
	}
	for i := 0; i < 2; i++ {
		if err := f.s.Create(ctx, i); err != nil {
			t.Fatalf("create: %v", err)
		}
	}
	if err := f.s.ToggleWordInfo(0); err != nil {
		t.Fatalf("toggle: %v", err)
	}
	f.s.SetMagicPrompt("snow", true)
	f.s.ClearAll()
	b := f.s.Board()
	if !slices.Equal(b.Assignment, []int64{0, 0}) {
		t.Fatalf("assignment %v", b.Assignment)
	}
	for i, c := range b.Cells {
		if c.HasImage() || c.ShowWordInfo || c.Occupant != 0 {
			t.Fatalf("cell %d not blank: %+v", i, c)
		}
	}
	if f.cached(imagecache.ItemKey(1001)) || f.cached(imagecache.ItemKey(1002)) {
		t.Fatalf("cache not evicted")
	}
	if p, _ := f.s.MagicPrompt(); p != "" {
		t.Fatalf("magic prompt kept: %q", p)
	}
}

func TestClearAllCollageDropsSnapshot(t *testing.T) {
	f := newFixture(t)
	f.s.SetMode(domain.ModeCollage)
	if err := f.s.ChangeLayout(3); err != nil {
		t.Fatalf("change layout: %v", err)
	}
	if ok, _ := f.s.Upload(1, pngBytes(t, color.RGBA{R: 1, A: 255})); !ok {
		t.Fatalf("upload failed")
	}
	if !f.cached(imagecache.CellKey(3, 1)) {
		t.Fatalf("upload not cached by position")
	}
	f.s.ClearAll()
	if f.cached(imagecache.CellKey(3, 1)) {
		t.Fatalf("position entry kept")
	}
	_ = f.s.ChangeLayout(0)
	_ = f.s.ChangeLayout(3)
	for i, c := range f.s.Board().Cells {
		if c.HasImage() {
			t.Fatalf("cell %d came back", i)
		}
	}
}

func TestCollageMoveRekeysCache(t *testing.T) {
	f := newFixture(t)
	f.s.SetMode(domain.ModeCollage)
	if err := f.s.ChangeLayout(2); err != nil {
		t.Fatalf("change layout: %v", err)
	}
	data := pngBytes(t, color.RGBA{R: 3, A: 255})
	if ok, _ := f.s.Upload(0, data); !ok {
		t.Fatalf("upload failed")
	}
	key := f.s.Board().Cells[0].Key
	if err := f.s.Move(0, 1); err != nil {
		t.Fatalf("move: %v", err)
	}
	b := f.s.Board()
	if b.Cells[1].Key != key || b.Active != 1 {
		t.Fatalf("cell record did not move: %+v", b)
	}
	got, ok := f.cache.Get(imagecache.CellKey(2, 1))
	if !ok || !bytes.Equal(got.Data, data) || f.cached(imagecache.CellKey(2, 0)) {
		t.Fatalf("cache not re-keyed")
	}
}

func TestToggleAll(t *testing.T) {
	f := newFixture(t)
	if err := f.s.ChangeLayout(3); err != nil {
		t.Fatalf("change layout: %v", err)
	}
	if err := f.s.ToggleSentences(2); err != nil {
		t.Fatalf("toggle: %v", err)
	}
	f.s.ToggleAllSentences()
	for _, c := range f.s.Board().Cells {
		if !c.ShowSentences {
			t.Fatalf("expected all on")
		}
	}
	f.s.ToggleAllSentences()
	for _, c := range f.s.Board().Cells {
		if c.ShowSentences {
			t.Fatalf("expected all off")
		}
	}
	f.s.ToggleAllWordInfo()
	if !f.s.Board().Cells[0].ShowWordInfo {
		t.Fatalf("word info not toggled")
	}
	if err := f.s.ToggleWordInfo(4); !errors.Is(err, ErrCellRange) {
		t.Fatalf("expected range error, got %v", err)
	}
}

func TestUndoRedoArrangement(t *testing.T) {
	f := newFixture(t)
	if ok, _ := f.s.Undo(); ok {
		t.Fatalf("fresh catalog has no history")
	}
	if err := f.s.ChangeLayout(3); err != nil {
		t.Fatalf("change layout: %v", err)
	}
	if err := f.s.Move(0, 3); err != nil {
		t.Fatalf("move: %v", err)
	}
	if ok, err := f.s.Undo(); !ok || err != nil {
		t.Fatalf("undo: %v %v", ok, err)
	}
	if b := f.s.Board(); !slices.Equal(b.Assignment, []int64{1001, 1002, 1003, 1004}) {
		t.Fatalf("after undo %v", b.Assignment)
	}
	if ok, _ := f.s.Redo(); !ok {
		t.Fatalf("redo failed")
	}
	if b := f.s.Board(); !slices.Equal(b.Assignment, []int64{1002, 1003, 1004, 1001}) {
		t.Fatalf("after redo %v", b.Assignment)
	}
	_, _ = f.s.Undo()
	_, _ = f.s.Undo()
	if b := f.s.Board(); b.LayoutID != 0 || !slices.Equal(b.Assignment, []int64{1001}) {
		t.Fatalf("layout change not undone: %+v", b)
	}
}

func TestModesKeepIndependentBoards(t *testing.T) {
	f := newFixture(t)
	if err := f.s.ChangeLayout(3); err != nil {
		t.Fatalf("change layout: %v", err)
	}
	f.s.SetMode(domain.ModeCollage)
	if err := f.s.ChangeLayout(1); err != nil {
		t.Fatalf("change layout: %v", err)
	}
	if b := f.s.BoardFor(domain.ModeVocab); b.LayoutID != 3 {
		t.Fatalf("vocab board changed: %d", b.LayoutID)
	}
	f.s.SetMode(domain.ModeVocab)
	if b := f.s.Board(); b.LayoutID != 3 || len(b.Cells) != 4 {
		t.Fatalf("vocab board %+v", b)
	}
	if b := f.s.BoardFor(domain.ModeCollage); b.LayoutID != 1 || !slices.Equal(b.Assignment, []int64{0, 0}) {
		t.Fatalf("collage board %+v", b)
	}
}

func TestUploadIgnoresGarbage(t *testing.T) {
	f := newFixture(t)
	ok, err := f.s.Upload(0, []byte("not an image"))
	if ok || err != nil {
		t.Fatalf("got %v %v", ok, err)
	}
	if f.s.Board().Cells[0].HasImage() {
		t.Fatalf("garbage stored")
	}
	if _, err := f.s.Upload(3, pngBytes(t, color.RGBA{A: 255})); !errors.Is(err, ErrCellRange) {
		t.Fatalf("expected range error, got %v", err)
	}
}

func TestReconcilePullsFromCache(t *testing.T) {
	f := newFixture(t)
	cached := pngImage(t, color.RGBA{G: 7, A: 255})
	f.cache.Set(imagecache.ItemKey(1003), cached)
	if err := f.s.ChangeLayout(3); err != nil {
		t.Fatalf("change layout: %v", err)
	}
	if c := f.s.Board().Cells[2]; !c.HasImage() || !bytes.Equal(c.Image.Data, cached.Data) {
		t.Fatalf("cell 2 not filled from cache: %+v", c)
	}
	f.cache.Set(imagecache.ItemKey(1004), cached)
	if n := f.s.Hydrate(); n != 1 {
		t.Fatalf("hydrated %d", n)
	}
}

func TestStitchPrecondition(t *testing.T) {
	f := newFixture(t)
	opts := render.Options{Size: 64, Faces: render.DefaultFaces()}
	if err := f.s.ChangeLayout(1); err != nil {
		t.Fatalf("change layout: %v", err)
	}
	if err := f.s.Create(context.Background(), 0); err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := f.s.Stitch(opts); !errors.Is(err, ErrIncompleteBoard) {
		t.Fatalf("expected incomplete board, got %v", err)
	}
	if err := f.s.Create(context.Background(), 1); err != nil {
		t.Fatalf("create: %v", err)
	}
	img, err := f.s.Stitch(opts)
	if err != nil {
		t.Fatalf("stitch: %v", err)
	}
	if img.Bounds().Dx() != 64 || f.s.Stitched().Empty() {
		t.Fatalf("stitched preview not kept")
	}
	if err := f.s.ChangeLayout(3); err != nil {
		t.Fatalf("change layout: %v", err)
	}
	if f.s.Stitched() != nil {
		t.Fatalf("stitched preview survives a layout change")
	}
}

func TestRenderCell(t *testing.T) {
	f := newFixture(t)
	if _, err := f.s.RenderCell(0, render.DefaultFaces()); !errors.Is(err, ErrNoImage) {
		t.Fatalf("expected ErrNoImage, got %v", err)
	}
	if err := f.s.Create(context.Background(), 0); err != nil {
		t.Fatalf("create: %v", err)
	}
	img, err := f.s.RenderCell(0, render.DefaultFaces())
	if err != nil {
		t.Fatalf("render cell: %v", err)
	}
	if img.Bounds().Dx() != 8 || img.Bounds().Dy() != 8 {
		t.Fatalf("native size expected, got %v", img.Bounds())
	}
}

func TestGenerateCatalog(t *testing.T) {
	f := newFixture(t)
	f.gen.catalog = domain.Catalog{Theme: "Beach", Items: []domain.ContentItem{{ID: 5, Word: "sand"}, {ID: 6, Word: "wave"}}}
	c, err := f.s.GenerateCatalog(context.Background(), domain.VocabRequest{Topic: "beach"})
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if c.Theme != "Beach" || f.s.Selected() != 5 || !slices.Equal(f.s.Board().Assignment, []int64{5}) {
		t.Fatalf("catalog not installed")
	}
	if got := f.gen.vocab[0].Character.ID; got != "isaac" {
		t.Fatalf("default character not sent: %q", got)
	}
	f.gen.err = errors.New("boom")
	if _, err := f.s.GenerateCatalog(context.Background(), domain.VocabRequest{Topic: "x"}); err == nil {
		t.Fatalf("expected error")
	}
	if f.s.Catalog().Theme != "Beach" {
		t.Fatalf("catalog replaced on failure")
	}
}

type memKV map[string]json.RawMessage

func (m memKV) Get(key string, dst any) (bool, error) {
	raw, ok := m[key]
	if !ok {
		return false, nil
	}
	return true, json.Unmarshal(raw, dst)
}

func (m memKV) Set(key string, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	m[key] = b
	return nil
}

func TestPersistRestore(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	if err := f.s.ChangeLayout(3); err != nil {
		t.Fatalf("change layout: %v", err)
	}
	if err := f.s.Create(ctx, 1); err != nil {
		t.Fatalf("create: %v", err)
	}
	_ = f.s.ToggleSentences(1)
	_ = f.s.SetCharacter("buddy")
	div := domain.DividerStyle{Visible: true, Color: domain.DefaultDivider().Color, Stroke: domain.StrokeDashed, Thickness: 8}
	if err := f.s.SetDivider(div); err != nil {
		t.Fatalf("divider: %v", err)
	}
	f.s.SetMode(domain.ModeCollage)
	if ok, _ := f.s.Upload(0, pngBytes(t, color.RGBA{B: 3, A: 255})); !ok {
		t.Fatalf("upload failed")
	}
	kv := memKV{}
	if err := f.s.Persist(kv); err != nil {
		t.Fatalf("persist: %v", err)
	}

	s2 := New(Options{Cache: f.cache, Now: func() time.Time { return time.Unix(0, 0) }})
	if err := s2.Restore(kv); err != nil {
		t.Fatalf("restore: %v", err)
	}
	if s2.Mode() != domain.ModeCollage || s2.Character().ID != "buddy" || s2.Divider() != div {
		t.Fatalf("settings not restored")
	}
	if !s2.Board().Cells[0].HasImage() {
		t.Fatalf("collage image not hydrated")
	}
	vb := s2.BoardFor(domain.ModeVocab)
	if vb.LayoutID != 3 || !slices.Equal(vb.Assignment, []int64{1001, 1002, 1003, 1004}) {
		t.Fatalf("vocab board %+v", vb)
	}
	if !vb.Cells[1].HasImage() || !vb.Cells[1].ShowSentences || vb.Cells[0].HasImage() {
		t.Fatalf("vocab cells not restored: %+v", vb.Cells)
	}
	if s2.Catalog().Theme != "Kitchen" {
		t.Fatalf("catalog not restored")
	}

	empty := New(Options{})
	if err := empty.Restore(memKV{}); err != nil {
		t.Fatalf("restore from empty store: %v", err)
	}
}

func TestRestoreDropsRepeatedItems(t *testing.T) {
	kv := memKV{}
	if err := kv.Set(KeyCatalog, catalog9()); err != nil {
		t.Fatalf("set catalog: %v", err)
	}
	st := state{
		Mode:  domain.ModeVocab.String(),
		Vocab: Board{LayoutID: 3, Assignment: []int64{1001, 1001, 1002, 1002}},
	}
	if err := kv.Set(KeySession, st); err != nil {
		t.Fatalf("set session: %v", err)
	}
	s := New(Options{})
	if err := s.Restore(kv); err != nil {
		t.Fatalf("restore: %v", err)
	}
	b := s.Board()
	if !slices.Equal(b.Assignment, []int64{1001, 0, 1002, 0}) {
		t.Fatalf("assignment = %v", b.Assignment)
	}
	if d := Duplicates(b.Assignment); len(d) != 0 {
		t.Fatalf("duplicates left: %v", d)
	}
}
