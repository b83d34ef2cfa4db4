/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"vocabgrid/internal/domain"
	"vocabgrid/internal/vector"
)

func (c *CLI) modeCommand() *cobra.Command {
	return &cobra.Command{
		Use:       "mode vocab|collage",
		Short:     "Switch between the vocabulary and collage boards",
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{"vocab", "collage"},
		RunE: c.withStudio(true, func(cmd *cobra.Command, args []string, st *studio) error {
			m, err := domain.ParseMode(args[0])
			if err != nil {
				return err
			}
			st.sess.SetMode(m)
			printer{cmd.OutOrStdout()}.success("Mode %s, layout %s", m, st.sess.Board().Layout())
			return nil
		}),
	}
}

func (c *CLI) layoutCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "layout <id>",
		Short: "Switch the active board to a layout (see: layouts)",
		Args:  cobra.ExactArgs(1),
		RunE: c.withStudio(true, func(cmd *cobra.Command, args []string, st *studio) error {
			id, err := parseLayout(args[0])
			if err != nil {
				return err
			}
			if err := st.sess.ChangeLayout(id); err != nil {
				return err
			}
			printer{cmd.OutOrStdout()}.success("Layout %s", st.sess.Board().Layout())
			return nil
		}),
	}
}

func (c *CLI) selectCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "select <cell> <item>",
		Short: "Bind an item (id or word, 0 to empty) to a vocab cell",
		Args:  cobra.ExactArgs(2),
		RunE: c.withStudio(true, func(cmd *cobra.Command, args []string, st *studio) error {
			i, err := parseCell(args[0], st.sess.Board())
			if err != nil {
				return err
			}
			id, err := parseItem(args[1], st.sess.Catalog())
			if err != nil {
				return err
			}
			if err := st.sess.SelectCell(i, id); err != nil {
				return err
			}
			printer{cmd.OutOrStdout()}.success("Cell %d: %s", i+1, itemLabel(st.sess.Catalog(), id))
			return nil
		}),
	}
}

func (c *CLI) pickCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "pick <item>",
		Short: "Select an item and place it in the active cell",
		Args:  cobra.ExactArgs(1),
		RunE: c.withStudio(true, func(cmd *cobra.Command, args []string, st *studio) error {
			id, err := parseItem(args[0], st.sess.Catalog())
			if err != nil {
				return err
			}
			if err := st.sess.SelectItem(id); err != nil {
				return err
			}
			b := st.sess.Board()
			printer{cmd.OutOrStdout()}.success("Cell %d: %s", b.Active+1, itemLabel(st.sess.Catalog(), id))
			return nil
		}),
	}
}

func itemLabel(cat domain.Catalog, id int64) string {
	if it, ok := cat.Find(id); ok {
		return it.Word
	}
	return "empty"
}

func (c *CLI) activeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "active <cell>",
		Short: "Make a cell the target of pick and edit",
		Args:  cobra.ExactArgs(1),
		RunE: c.withStudio(true, func(cmd *cobra.Command, args []string, st *studio) error {
			i, err := parseCell(args[0], st.sess.Board())
			if err != nil {
				return err
			}
			st.sess.SetActive(i)
			printer{cmd.OutOrStdout()}.success("Active cell %d", i+1)
			return nil
		}),
	}
}

func (c *CLI) moveCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "move <from> <to>",
		Short: "Move a cell to another position",
		Args:  cobra.ExactArgs(2),
		RunE: c.withStudio(true, func(cmd *cobra.Command, args []string, st *studio) error {
			b := st.sess.Board()
			from, err := parseCell(args[0], b)
			if err != nil {
				return err
			}
			to, err := parseCell(args[1], b)
			if err != nil {
				return err
			}
			if err := st.sess.Move(from, to); err != nil {
				return err
			}
			printer{cmd.OutOrStdout()}.success("Moved cell %d to %d", from+1, to+1)
			return nil
		}),
	}
}

func (c *CLI) unselectCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "unselect",
		Short: "Empty every cell of the vocab board",
		Args:  cobra.NoArgs,
		RunE: c.withStudio(true, func(cmd *cobra.Command, args []string, st *studio) error {
			if err := st.sess.UnselectAll(); err != nil {
				return err
			}
			printer{cmd.OutOrStdout()}.success("All cells emptied")
			return nil
		}),
	}
}

func (c *CLI) overlayCommand() *cobra.Command {
	return &cobra.Command{
		Use:       "overlay word|sentences <cell|all>",
		Short:     "Toggle the word or sentence panel of a cell",
		Args:      cobra.ExactArgs(2),
		ValidArgs: []string{"word", "sentences"},
		RunE: c.withStudio(true, func(cmd *cobra.Command, args []string, st *studio) error {
			kind := strings.ToLower(args[0])
			all := strings.EqualFold(args[1], "all")
			var i int
			if !all {
				var err error
				if i, err = parseCell(args[1], st.sess.Board()); err != nil {
					return err
				}
			}
			var err error
			switch {
			case kind == "word" && all:
				st.sess.ToggleAllWordInfo()
			case kind == "word":
				err = st.sess.ToggleWordInfo(i)
			case (kind == "sentences" || kind == "sentence") && all:
				st.sess.ToggleAllSentences()
			case kind == "sentences" || kind == "sentence":
				err = st.sess.ToggleSentences(i)
			default:
				return fmt.Errorf("unknown overlay %q (want word or sentences)", args[0])
			}
			if err != nil {
				return err
			}
			printer{cmd.OutOrStdout()}.success("Toggled %s overlay", kind)
			return nil
		}),
	}
}

func (c *CLI) characterCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "character [id]",
		Short: "Show or select the mascot used in prompts",
		Args:  cobra.MaximumNArgs(1),
		RunE: c.withStudio(true, func(cmd *cobra.Command, args []string, st *studio) error {
			p := printer{cmd.OutOrStdout()}
			if len(args) == 1 {
				if err := st.sess.SetCharacter(args[0]); err != nil {
					return err
				}
			}
			cur := st.sess.Character()
			for _, ch := range domain.Characters {
				mark := " "
				if ch.ID == cur.ID {
					mark = "*"
				}
				p.detail("%s %-7s %s, %s", mark, ch.ID, ch.Name, strings.ToLower(ch.Description))
			}
			return nil
		}),
	}
}

func (c *CLI) dividerCommand() *cobra.Command {
	var (
		show      bool
		color     string
		style     string
		thickness float64
	)
	cmd := &cobra.Command{
		Use:   "divider",
		Short: "Configure the lines drawn between stitched cells",
		Args:  cobra.NoArgs,
		RunE: c.withStudio(true, func(cmd *cobra.Command, args []string, st *studio) error {
			d := st.sess.Divider()
			f := cmd.Flags()
			if f.Changed("show") {
				d.Visible = show
			}
			if f.Changed("color") {
				col, err := vector.ParseHex(color)
				if err != nil {
					return err
				}
				d.Color = col
			}
			if f.Changed("style") {
				s, err := domain.ParseStrokeStyle(style)
				if err != nil {
					return err
				}
				d.Stroke = s
			}
			if f.Changed("thickness") {
				d.Thickness = thickness
			}
			if err := st.sess.SetDivider(d); err != nil {
				return err
			}
			p := printer{cmd.OutOrStdout()}
			if d.Visible {
				p.success("Divider %s %s %.0fpx", d.Color.Hex(), d.Stroke, d.Thickness)
			} else {
				p.success("Divider hidden")
			}
			return nil
		}),
	}
	cmd.Flags().BoolVar(&show, "show", false, "draw dividers")
	cmd.Flags().StringVar(&color, "color", "", "divider color as #rrggbb")
	cmd.Flags().StringVar(&style, "style", "", "solid, dashed or dotted")
	cmd.Flags().Float64Var(&thickness, "thickness", 0, "line thickness in pixels of the stitched image")
	return cmd
}

func (c *CLI) undoCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "undo",
		Short: "Undo the last arrangement change of the active board",
		Args:  cobra.NoArgs,
		RunE: c.withStudio(true, func(cmd *cobra.Command, args []string, st *studio) error {
			ok, err := st.sess.Undo()
			if err != nil {
				return err
			}
			p := printer{cmd.OutOrStdout()}
			if !ok {
				p.info("Nothing to undo")
				return nil
			}
			p.success("Undone")
			return nil
		}),
	}
}

func (c *CLI) redoCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "redo",
		Short: "Redo the last undone arrangement change",
		Args:  cobra.NoArgs,
		RunE: c.withStudio(true, func(cmd *cobra.Command, args []string, st *studio) error {
			ok, err := st.sess.Redo()
			if err != nil {
				return err
			}
			p := printer{cmd.OutOrStdout()}
			if !ok {
				p.info("Nothing to redo")
				return nil
			}
			p.success("Redone")
			return nil
		}),
	}
}
