/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package export

import (
	"archive/zip"
	"encoding/json"
	"io"
	"path/filepath"
	"testing"

	"vocabgrid/internal/domain"
)

func TestExportCards(t *testing.T) {
	root := t.TempDir()
	shell := domain.ContentItem{ID: 7, Word: "Sea Shell", Phonetic: "[si ʃɛl]"}
	cards := []Card{
		{Index: 0, Item: &shell, Image: solid(8, 8)},
		{Index: 1, Image: solid(8, 8)},
	}
	out, err := ExportCards(root, "Beach", cards, "deck")
	if err != nil {
		t.Fatalf("export cards: %v", err)
	}
	if out != filepath.Join(root, "exports", "deck.zip") {
		t.Fatalf("unexpected path %s", out)
	}

	rd, err := zip.OpenReader(out)
	if err != nil {
		t.Fatalf("open zip: %v", err)
	}
	defer func() { _ = rd.Close() }()
	names := map[string]*zip.File{}
	for _, f := range rd.File {
		names[f.Name] = f
	}
	for _, n := range []string{"1-sea-shell.png", "2.png", ManifestName} {
		if names[n] == nil {
			t.Fatalf("entry %s not found in %v", n, names)
		}
	}

	r, err := names[ManifestName].Open()
	if err != nil {
		t.Fatalf("open manifest: %v", err)
	}
	data, err := io.ReadAll(r)
	_ = r.Close()
	if err != nil {
		t.Fatalf("read manifest: %v", err)
	}
	var man cardManifest
	if err := json.Unmarshal(data, &man); err != nil {
		t.Fatalf("manifest json: %v", err)
	}
	if man.Theme != "Beach" || len(man.Cards) != 2 || man.Cards[0].ID != 7 || man.Cards[0].Phonetic != "si ʃɛl" || man.Cards[1].Cell != 1 {
		t.Fatalf("unexpected manifest: %+v", man)
	}
}

func TestWriteCardsRejectsMissingImage(t *testing.T) {
	if err := WriteCards(io.Discard, "", []Card{{Index: 3}}); err == nil {
		t.Fatalf("card without image accepted")
	}
	if err := WriteCards(io.Discard, "", nil); err == nil {
		t.Fatalf("empty deck accepted")
	}
}

func TestSlug(t *testing.T) {
	cases := map[string]string{"Sea Shell": "sea-shell", "  ice-cream!": "ice-cream", "咖啡": "咖啡", "!!": ""}
	for in, want := range cases {
		if got := slug(in); got != want {
			t.Fatalf("slug(%q)=%q want %q", in, got, want)
		}
	}
}
