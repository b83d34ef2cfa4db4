/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package cli

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"vocabgrid/internal/domain"
	"vocabgrid/internal/gemini"
	"vocabgrid/internal/telemetry"
)

// attachGenerator connects the session to the generation service.
func (c *CLI) attachGenerator(cmd *cobra.Command, st *studio) error {
	gen, err := c.generator(cmd.Context())
	if errors.Is(err, gemini.ErrMissingAPIKey) {
		return fmt.Errorf("%w (run %q or set VGS_API_KEY)", err, appName+" auth set")
	}
	if err != nil {
		return fmt.Errorf("connect generator: %w", err)
	}
	st.sess.SetGenerator(gen)
	return nil
}

func (c *CLI) generateCommand() *cobra.Command {
	var (
		topic     string
		words     []string
		wordsFile string
		lang      string
		levels    []string
		character string
	)
	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Generate a vocabulary set from a topic or a word list",
		Example: `  vocabgrid generate --topic "a day at the beach" --level B1
  vocabgrid generate --words whisk,ladle --lang Japanese
  vocabgrid generate --words-file kitchen.toml`,
		Args: cobra.NoArgs,
		RunE: c.withStudio(true, func(cmd *cobra.Command, args []string, st *studio) error {
			req := domain.VocabRequest{
				Topic:          strings.TrimSpace(topic),
				Words:          words,
				TargetLanguage: c.cfg.General.TargetLanguage,
				Levels:         c.cfg.General.Levels,
			}
			if wordsFile != "" {
				wl, err := domain.LoadWordList(wordsFile)
				if err != nil {
					return err
				}
				req.Topic, req.Words = wl.Topic, wl.Words
				if wl.TargetLanguage != "" {
					req.TargetLanguage = wl.TargetLanguage
				}
				if len(wl.Levels) > 0 {
					req.Levels = wl.Levels
				}
			}
			if cmd.Flags().Changed("lang") {
				req.TargetLanguage = lang
			}
			if cmd.Flags().Changed("level") {
				req.Levels = levels
			}
			lv, err := domain.NormalizeLevels(req.Levels)
			if err != nil {
				return err
			}
			req.Levels = lv
			if req.Input() == "" {
				return errors.New("a topic or at least one word is required")
			}
			if character != "" {
				if err := st.sess.SetCharacter(character); err != nil {
					return err
				}
			}
			if err := c.attachGenerator(cmd, st); err != nil {
				return err
			}

			p := printer{cmd.OutOrStdout()}
			p.info("Generating vocabulary for %q", req.Input())
			cat, err := st.sess.GenerateCatalog(cmd.Context(), req)
			if err != nil {
				return err
			}
			telemetry.CatalogGenerated(cat.Len(), len(req.Words) == 0, len(req.Levels))
			p.success("%s", cat.Theme)
			for _, it := range cat.Items {
				p.detail("#%d %s %s  %s", it.ID, it.Word, it.Phonetic, it.Definition)
			}
			return nil
		}),
	}
	f := cmd.Flags()
	f.StringVar(&topic, "topic", "", "topic to build the vocabulary around")
	f.StringSliceVar(&words, "words", nil, "explicit words (comma separated)")
	f.StringVar(&wordsFile, "words-file", "", "TOML word list")
	f.StringVar(&lang, "lang", "", "target language of definitions and sentences")
	f.StringSliceVar(&levels, "level", nil, "proficiency levels, e.g. B1,TOEIC")
	f.StringVar(&character, "character", "", "mascot id (isaac, buddy, rocket)")
	cmd.MarkFlagsMutuallyExclusive("topic", "words", "words-file")
	return cmd
}

func (c *CLI) imageCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "image <cell>",
		Short: "Illustrate the word in a vocab cell",
		Args:  cobra.ExactArgs(1),
		RunE: c.withStudio(true, func(cmd *cobra.Command, args []string, st *studio) error {
			i, err := parseCell(args[0], st.sess.Board())
			if err != nil {
				return err
			}
			if err := c.attachGenerator(cmd, st); err != nil {
				return err
			}
			p := printer{cmd.OutOrStdout()}
			p.info("Generating image for cell %d", i+1)
			err = st.sess.Create(cmd.Context(), i)
			telemetry.ImageGenerated(st.sess.Mode().String(), false, err == nil)
			if err != nil {
				return err
			}
			p.success("Cell %d illustrated", i+1)
			return nil
		}),
	}
}

func (c *CLI) editCommand() *cobra.Command {
	var (
		all  bool
		cell int
	)
	cmd := &cobra.Command{
		Use:   "edit <prompt>",
		Short: "Edit the active cell's image, or every image with --all",
		Args:  cobra.MinimumNArgs(1),
		RunE: c.withStudio(true, func(cmd *cobra.Command, args []string, st *studio) error {
			prompt := strings.TrimSpace(strings.Join(args, " "))
			if prompt == "" {
				return errors.New("edit prompt is empty")
			}
			if cmd.Flags().Changed("cell") {
				i, err := parseCell(fmt.Sprint(cell), st.sess.Board())
				if err != nil {
					return err
				}
				st.sess.SetActive(i)
			}
			if err := c.attachGenerator(cmd, st); err != nil {
				return err
			}
			st.sess.SetMagicPrompt(prompt, all)
			p := printer{cmd.OutOrStdout()}
			if all {
				p.info("Applying %q to every image", prompt)
			} else {
				p.info("Applying %q to cell %d", prompt, st.sess.Board().Active+1)
			}
			err := st.sess.ApplyMagic(cmd.Context())
			telemetry.ImageGenerated(st.sess.Mode().String(), true, err == nil)
			if err != nil {
				return err
			}
			p.success("Edit applied")
			return nil
		}),
	}
	cmd.Flags().BoolVar(&all, "all", false, "edit every cell that holds an image")
	cmd.Flags().IntVar(&cell, "cell", 0, "make this cell active before editing")
	return cmd
}

func (c *CLI) uploadCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "upload <cell> <file>",
		Short: "Place an image file (PNG, JPEG, GIF or WebP) into a cell",
		Args:  cobra.ExactArgs(2),
		RunE: c.withStudio(true, func(cmd *cobra.Command, args []string, st *studio) error {
			i, err := parseCell(args[0], st.sess.Board())
			if err != nil {
				return err
			}
			data, err := os.ReadFile(args[1])
			if err != nil {
				return err
			}
			ok, err := st.sess.Upload(i, data)
			if err != nil {
				return err
			}
			if !ok {
				return fmt.Errorf("%s is not a supported image", args[1])
			}
			printer{cmd.OutOrStdout()}.success("Cell %d updated from %s", i+1, args[1])
			return nil
		}),
	}
}

func (c *CLI) clearCommand() *cobra.Command {
	var all bool
	cmd := &cobra.Command{
		Use:   "clear <cell>|--all",
		Short: "Remove the image of a cell, or reset the whole board",
		Args:  cobra.MaximumNArgs(1),
		RunE: c.withStudio(true, func(cmd *cobra.Command, args []string, st *studio) error {
			p := printer{cmd.OutOrStdout()}
			if all {
				st.sess.ClearAll()
				p.success("Board cleared")
				return nil
			}
			if len(args) != 1 {
				return errors.New("give a cell number or --all")
			}
			i, err := parseCell(args[0], st.sess.Board())
			if err != nil {
				return err
			}
			if err := st.sess.Clear(i); err != nil {
				return err
			}
			p.success("Cell %d cleared", i+1)
			return nil
		}),
	}
	cmd.Flags().BoolVar(&all, "all", false, "clear the whole board")
	return cmd
}
