/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package cli implements the vocabgrid command-line interface. Every command
// opens a workspace, restores the session from its settings, performs one
// operation and persists the result.
package cli

import (
	"context"
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"vocabgrid/internal/config"
	"vocabgrid/internal/gemini"
	"vocabgrid/internal/grid"
	applog "vocabgrid/internal/log"
	"vocabgrid/internal/render"
	"vocabgrid/internal/telemetry"
	"vocabgrid/internal/textlayout"
	"vocabgrid/internal/version"
)

const appName = "vocabgrid"

// GeneratorFunc builds the generation collaborator on demand.
type GeneratorFunc func(ctx context.Context, cfg config.AppConfig, apiKey string) (grid.Generator, error)

// CLI holds shared state for all commands.
type CLI struct {
	// NewGenerator defaults to the Gemini client.
	NewGenerator GeneratorFunc
	// LoadConfig defaults to config.Load.
	LoadConfig func() (config.AppConfig, string, error)

	dir     string
	verbose bool
	cfg     config.AppConfig
	apiKey  string
	log     *slog.Logger
}

// New creates a CLI with the production collaborators.
func New() *CLI {
	return &CLI{NewGenerator: geminiGenerator, LoadConfig: config.Load}
}

func geminiGenerator(ctx context.Context, cfg config.AppConfig, apiKey string) (grid.Generator, error) {
	g := cfg.Generation
	return gemini.NewClient(ctx, gemini.Options{
		Backend:    g.Backend,
		APIKey:     apiKey,
		Project:    g.Project,
		Location:   g.Location,
		ImageModel: g.ImageModel,
		TextModel:  g.TextModel,
		Timeout:    g.Timeout(),
	})
}

// RootCommand creates the root cobra command with all subcommands registered.
func (c *CLI) RootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           appName,
		Short:         "Vocab Grid Studio composes illustrated vocabulary cards and photo collages",
		Long:          `Vocab Grid Studio generates vocabulary sets with Gemini, illustrates each word in a grid layout, and exports the result as stitched PNG, PDF, plain text or card archives.`,
		Version:       version.String(),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			c.setup()
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			telemetry.Flush(cmd.Context())
		},
	}
	root.SetVersionTemplate(appName + " {{.Version}}\n")
	root.PersistentFlags().StringVarP(&c.dir, "dir", "C", ".", "workspace directory")
	root.PersistentFlags().BoolVarP(&c.verbose, "verbose", "v", false, "enable debug logging")

	root.AddCommand(c.versionCommand())
	root.AddCommand(c.initCommand())
	root.AddCommand(c.authCommand())
	root.AddCommand(c.layoutsCommand())
	root.AddCommand(c.statusCommand())
	root.AddCommand(c.generateCommand())
	root.AddCommand(c.modeCommand())
	root.AddCommand(c.layoutCommand())
	root.AddCommand(c.selectCommand())
	root.AddCommand(c.pickCommand())
	root.AddCommand(c.activeCommand())
	root.AddCommand(c.moveCommand())
	root.AddCommand(c.unselectCommand())
	root.AddCommand(c.overlayCommand())
	root.AddCommand(c.characterCommand())
	root.AddCommand(c.dividerCommand())
	root.AddCommand(c.imageCommand())
	root.AddCommand(c.editCommand())
	root.AddCommand(c.uploadCommand())
	root.AddCommand(c.clearCommand())
	root.AddCommand(c.undoCommand())
	root.AddCommand(c.redoCommand())
	root.AddCommand(c.stitchCommand())
	root.AddCommand(c.exportCommand())
	root.AddCommand(c.copyCommand())
	root.AddCommand(c.cacheCommand())
	return root
}

// setup loads the user config and configures logging and telemetry from it.
func (c *CLI) setup() {
	load := c.LoadConfig
	if load == nil {
		load = config.Load
	}
	cfg, key, err := load()
	c.cfg, c.apiKey = cfg, key

	lc := cfg.Logging
	opts := applog.Options{Level: lc.Level, Format: lc.Format, AddSource: lc.Source, File: lc.File}
	if c.verbose {
		opts.Level = "debug"
	}
	applog.Init(opts)
	c.log = applog.WithComponent("cli")
	if err != nil {
		c.log.Warn("config not loaded, using defaults", slog.Any("err", err))
	}
	telemetry.Configure(cfg.General.TelemetryOptIn)
}

// faces returns the overlay fonts, preferring the configured font file.
func (c *CLI) faces() textlayout.Provider {
	if path := c.cfg.Render.FontFile; path != "" {
		f, err := render.FacesWithFont(path)
		if err == nil {
			return f
		}
		c.log.Warn("font file not usable, using Go fonts", slog.String("path", path), slog.Any("err", err))
	}
	return render.DefaultFaces()
}

func (c *CLI) generator(ctx context.Context) (grid.Generator, error) {
	gen := c.NewGenerator
	if gen == nil {
		gen = geminiGenerator
	}
	return gen(ctx, c.cfg, c.apiKey)
}

// Execute runs the CLI with args against ctx, writing command output to out.
func Execute(ctx context.Context, c *CLI, args []string, out io.Writer) error {
	root := c.RootCommand()
	root.SetArgs(args)
	if out != nil {
		root.SetOut(out)
		root.SetErr(out)
	}
	return root.ExecuteContext(ctx)
}
