package render

import (
	"errors"
	"image"
	"image/color"
	"math"
	"reflect"
	"testing"

	"vocabgrid/internal/domain"
	"vocabgrid/internal/layout"
	"vocabgrid/internal/vector"
)

func near(a, b float64) bool { return math.Abs(a-b) < 1e-6 }

func solid(w, h int, c color.Color) *image.RGBA {
	im := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			im.Set(x, y, c)
		}
	}
	return im
}

func fullBoard(l layout.Layout) Board {
	b := Board{Layout: l}
	for i := 0; i < l.CellCount; i++ {
		b.Cells = append(b.Cells, CellContent{Image: solid(4, 4, color.White)})
	}
	return b
}

func TestCoverCropKeepsTargetAspect(t *testing.T) {
	cases := []struct {
		w, h, ratio float64
	}{
		{1024, 1024, 9.0 / 16},
		{1024, 1024, 16.0 / 9},
		{1920, 1080, 1},
		{1080, 1920, 1},
		{333, 777, 16.0 / 9},
	}
	for _, c := range cases {
		r := CoverCrop(c.w, c.h, c.ratio)
		if !near(r.W/r.H, c.ratio) {
			t.Fatalf("crop of %vx%v to %v has aspect %v", c.w, c.h, c.ratio, r.W/r.H)
		}
		if r.X < 0 || r.Y < 0 || r.X+r.W > c.w+1e-9 || r.Y+r.H > c.h+1e-9 {
			t.Fatalf("crop %+v outside source %vx%v", r, c.w, c.h)
		}
		// centred and touching two opposite edges
		if !near(r.X*2+r.W, c.w) || !near(r.Y*2+r.H, c.h) {
			t.Fatalf("crop %+v not centred", r)
		}
		if !near(r.W, c.w) && !near(r.H, c.h) {
			t.Fatalf("crop %+v does not span a full dimension", r)
		}
	}
	if !CoverCrop(0, 10, 1).Empty() {
		t.Fatalf("degenerate source should yield empty crop")
	}
}

func TestStitchRequiresEveryImage(t *testing.T) {
	l := layout.MustLookup(3)
	b := fullBoard(l)
	b.Cells[2].Image = nil
	rec := NewRecorder(2048, 2048)
	if err := StitchTo(rec, b, Options{}); !errors.Is(err, ErrIncompleteBoard) {
		t.Fatalf("expected ErrIncompleteBoard, got %v", err)
	}
	if len(rec.Ops) != 0 {
		t.Fatalf("incomplete board must not draw, got %d ops", len(rec.Ops))
	}
	if _, err := Stitch(Board{Layout: l}, Options{}); !errors.Is(err, ErrIncompleteBoard) {
		t.Fatalf("empty board: %v", err)
	}
	short := fullBoard(l)
	short.Cells = short.Cells[:3]
	if short.Complete() {
		t.Fatalf("board shorter than the layout is not complete")
	}
}

func TestStitchDrawsCellsIntoRegions(t *testing.T) {
	for _, l := range layout.All() {
		rec := NewRecorder(2048, 2048)
		if err := StitchTo(rec, fullBoard(l), Options{}); err != nil {
			t.Fatalf("layout %d: %v", l.ID, err)
		}
		if rec.Ops[0].Kind != "fill" || rec.Ops[0].Rect != vector.R(0, 0, 2048, 2048) || rec.Ops[0].Color != vector.White {
			t.Fatalf("layout %d: expected white background first, got %v", l.ID, rec.Ops[0])
		}
		imgs := rec.Filter("image")
		if len(imgs) != l.CellCount {
			t.Fatalf("layout %d: %d images drawn", l.ID, len(imgs))
		}
		for i, op := range imgs {
			if op.Rect != l.Region(i, 2048, 2048) {
				t.Fatalf("layout %d cell %d drawn at %+v", l.ID, i, op.Rect)
			}
		}
		if len(rec.Filter("line")) != 0 {
			t.Fatalf("hidden dividers drawn")
		}
	}
}

func TestStitchDividersFollowStyle(t *testing.T) {
	l := layout.MustLookup(6)
	cases := []struct {
		style domain.StrokeStyle
		dash  []float64
	}{
		{domain.StrokeSolid, nil},
		{domain.StrokeDashed, []float64{20, 15}},
		{domain.StrokeDotted, []float64{10, 10}},
	}
	for _, c := range cases {
		d := domain.DividerStyle{Visible: true, Color: vector.Black, Stroke: c.style, Thickness: 10}
		run := func() []Op {
			rec := NewRecorder(2048, 2048)
			if err := StitchTo(rec, fullBoard(l), Options{Divider: d}); err != nil {
				t.Fatalf("stitch: %v", err)
			}
			return rec.Filter("line")
		}
		lines := run()
		if len(lines) != 4 {
			t.Fatalf("grid 9 expects 4 dividers, got %d", len(lines))
		}
		for _, op := range lines {
			if op.Stroke.Width != 10 || op.Stroke.Cap != vector.CapButt || !reflect.DeepEqual(op.Stroke.Dash, c.dash) {
				t.Fatalf("%s: unexpected stroke %+v", c.style, op.Stroke)
			}
		}
		if !reflect.DeepEqual(lines, run()) {
			t.Fatalf("dividers are not deterministic")
		}
	}
	bad := domain.DividerStyle{Visible: true, Thickness: 0}
	if err := StitchTo(NewRecorder(10, 10), fullBoard(l), Options{Divider: bad}); !errors.Is(err, domain.ErrDividerThickness) {
		t.Fatalf("expected thickness error, got %v", err)
	}
}

var whisk = domain.ContentItem{
	ID: 7, Word: "whisk", Phonetic: "/wisk/", Definition: "a small tool",
	EnglishSentence: "Sir Isaac uses a whisk.", TargetSentence: "Sir Isaac 用打蛋器。",
}

func TestDrawCellWordPanelGeometry(t *testing.T) {
	rec := NewRecorder(1000, 1000)
	DrawCell(rec, CellContent{Image: solid(10, 10, color.White), Item: &whisk, ShowWordInfo: true}, vector.R(0, 0, 1000, 1000))

	panels := rec.Filter("round")
	if len(panels) != 1 {
		t.Fatalf("expected one panel, got %d", len(panels))
	}
	// scale 1: word 56, definition 30 on one line, padding 16
	wantH := 56*1.1 + 10 + 30*1.4 + 16*1.5
	if p := panels[0]; p.Rect.Y != 0 || p.Rect.W != 1000 || !near(p.Rect.H, wantH) || p.Color != wordPanelFill {
		t.Fatalf("unexpected word panel %+v want height %v", p, wantH)
	}
	texts := rec.Filter("text")
	if len(texts) != 3 {
		t.Fatalf("expected word, phonetic and one definition line, got %v", texts)
	}
	word, phon, def := texts[0], texts[1], texts[2]
	ww := 5 * 28.0
	pw := 7 * 14.0
	start := 500 - (ww+pw)/2
	if !near(word.X, start) || !near(phon.X, start+ww) || !near(word.Y, 16+56*0.85) || word.Y != phon.Y {
		t.Fatalf("headline misplaced: %v %v", word, phon)
	}
	if word.Font.Weight < 700 || phon.Color != phoneticColor {
		t.Fatalf("headline styling: %+v %+v", word, phon)
	}
	wantDefY := 16 + 56*0.85 + 15 + 42 - 42*0.25
	if def.Align != AlignCenter || !near(def.X, 500) || !near(def.Y, wantDefY) {
		t.Fatalf("definition misplaced: %v want y %v", def, wantDefY)
	}
}

func TestDrawCellSentencePanelSitsAtBottom(t *testing.T) {
	rec := NewRecorder(600, 400)
	r := vector.R(100, 50, 600, 400)
	DrawCell(rec, CellContent{Item: &whisk, ShowSentences: true}, r)
	panels := rec.Filter("round")
	if len(panels) != 1 || panels[0].Color != sentencePanelFill {
		t.Fatalf("expected one sentence panel, got %v", panels)
	}
	p := panels[0].Rect
	if !near(p.Y+p.H, r.Y+r.H) || p.X != r.X || p.W != r.W {
		t.Fatalf("panel %+v not flush with the bottom of %+v", p, r)
	}
	texts := rec.Filter("text")
	if len(texts) < 2 || texts[0].Color != vector.White || texts[len(texts)-1].Color != targetColor {
		t.Fatalf("unexpected sentence text ops: %v", texts)
	}
	for _, op := range texts {
		if op.Y <= p.Y || op.Y >= p.Y+p.H {
			t.Fatalf("text %v outside panel %+v", op, p)
		}
	}
}

func TestDrawCellFreeformHasNoOverlays(t *testing.T) {
	rec := NewRecorder(100, 100)
	DrawCell(rec, CellContent{Image: solid(2, 2, color.White), ShowWordInfo: true, ShowSentences: true}, vector.R(0, 0, 100, 100))
	if len(rec.Ops) != 1 || rec.Ops[0].Kind != "image" {
		t.Fatalf("expected only the image, got %v", rec.Ops)
	}
}

func TestOverlayFloorsAndScaling(t *testing.T) {
	o := OverlayFor(200, 200)
	if o.Word != 24 || o.Phonetic != 12 || o.Definition != 16 || o.Sentence != 14 {
		t.Fatalf("floors not applied: %+v", o)
	}
	tall := OverlayFor(1000, 5000)
	if !near(tall.Scale, 1) {
		t.Fatalf("width bound: %+v", tall)
	}
	wide := OverlayFor(5000, 500)
	if !near(wide.Scale, 0.7) {
		t.Fatalf("height bound: %+v", wide)
	}
	s := OverlayFor(1000, 1000).Scaled(0.5)
	if s.Word != 28 || s.Padding != 16 {
		t.Fatalf("scaled overlay: %+v", s)
	}
}

func TestStitchRasterColorsAndDividers(t *testing.T) {
	l := layout.MustLookup(1)
	b := Board{Layout: l, Cells: []CellContent{
		{Image: solid(8, 8, color.RGBA{255, 0, 0, 255})},
		{Image: solid(8, 8, color.RGBA{0, 0, 255, 255})},
	}}
	d := domain.DividerStyle{Visible: true, Color: vector.Black, Stroke: domain.StrokeSolid, Thickness: 4}
	img, err := Stitch(b, Options{Size: 64, Divider: d})
	if err != nil {
		t.Fatalf("Stitch: %v", err)
	}
	if img.Bounds().Dx() != 64 || img.Bounds().Dy() != 64 {
		t.Fatalf("size: %v", img.Bounds())
	}
	if c := img.RGBAAt(10, 30); c.R < 240 || c.B > 15 {
		t.Fatalf("left cell not red: %v", c)
	}
	if c := img.RGBAAt(54, 30); c.B < 240 || c.R > 15 {
		t.Fatalf("right cell not blue: %v", c)
	}
	if c := img.RGBAAt(32, 30); c.R > 15 || c.G > 15 || c.B > 15 {
		t.Fatalf("divider not drawn: %v", c)
	}
}

func TestRenderCellNativeCrop(t *testing.T) {
	img, err := RenderCell(CellContent{Image: solid(300, 100, color.White), Item: &whisk, ShowWordInfo: true}, 1, nil)
	if err != nil {
		t.Fatalf("RenderCell: %v", err)
	}
	if img.Bounds().Dx() != 100 || img.Bounds().Dy() != 100 {
		t.Fatalf("expected 100x100 canvas, got %v", img.Bounds())
	}
	if _, err := RenderCell(CellContent{}, 1, nil); !errors.Is(err, ErrNoImage) {
		t.Fatalf("expected ErrNoImage, got %v", err)
	}
	w, h := CellCanvasSize(solid(160, 90, color.White), 9.0/16)
	if h != 90 || w != 51 {
		t.Fatalf("tall crop of wide image: %dx%d", w, h)
	}
}

func TestPreviewDrawsIncompleteBoard(t *testing.T) {
	l := layout.MustLookup(3)
	b := Board{Layout: l, Cells: []CellContent{{Image: solid(2, 2, color.White)}, {}, {}, {}}}
	rec := NewRecorder(512, 512)
	PreviewTo(rec, b, Options{})
	if n := len(rec.Filter("image")); n != 1 {
		t.Fatalf("expected one image, got %d", n)
	}
	if img := RenderPreview(b, 0, Options{}); img.Bounds().Dx() != 512 {
		t.Fatalf("default preview size: %v", img.Bounds())
	}
}

func TestDecodeRoundtrip(t *testing.T) {
	payload, err := EncodePNG(solid(3, 2, color.Black))
	if err != nil {
		t.Fatalf("EncodePNG: %v", err)
	}
	img, format, err := Decode(payload.Data)
	if err != nil || format != "png" || img.Bounds().Dx() != 3 {
		t.Fatalf("Decode: %v %s %v", img, format, err)
	}
	if MIMEFor(format) != payload.MIMEType {
		t.Fatalf("mime mismatch")
	}
	if _, _, err := Decode([]byte("not an image")); err == nil {
		t.Fatalf("expected decode error")
	}
	if im, err := DecodeImage(nil); im != nil || err != nil {
		t.Fatalf("nil payload: %v %v", im, err)
	}
}
