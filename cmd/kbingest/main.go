// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/urfave/cli/v2"

	"github.com/poiesic/kbingest"
	"github.com/poiesic/kbingest/config"
	"github.com/poiesic/kbingest/tasks"
)

// openKnowledgeBase is replaced in tests.
var openKnowledgeBase = kbingest.Open

func main() {
	if err := newApp(os.Stdout).Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func newApp(out io.Writer) *cli.App {
	collectionFlag := func() *cli.StringFlag {
		return &cli.StringFlag{
			Name:     "collection",
			Aliases:  []string{"c"},
			Usage:    "Target collection (database name)",
			Required: true,
		}
	}

	return &cli.App{
		Name:      "kbingest",
		Usage:     "Ingest documents into a vector knowledge base",
		Writer:    out,
		ErrWriter: os.Stderr,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "log-level",
				Aliases: []string{"l"},
				Usage:   "Set logging level (debug, info, warn, error)",
				Value:   "info",
			},
			&cli.StringFlag{
				Name:    "config",
				Usage:   "Path to a YAML config file",
				EnvVars: []string{"KBINGEST_CONFIG"},
			},
			&cli.StringFlag{
				Name:  "data-dir",
				Usage: "Override the data directory",
			},
			&cli.StringFlag{
				Name:  "store",
				Usage: "Override the vector store (badger, chromem, pgvector, memory)",
			},
		},
		Before: setupLogger,
		Commands: []*cli.Command{
			{
				Name:      "ingest",
				Usage:     "Ingest a file or every file of a directory",
				ArgsUsage: "<path>",
				Action:    ingestCommand,
				Flags: []cli.Flag{
					collectionFlag(),
					&cli.StringFlag{
						Name:  "strategy",
						Usage: "Splitting strategy (auto, recursive, markdown, token)",
					},
					&cli.StringFlag{
						Name:  "project-dir",
						Usage: "Directory relative paths are resolved against",
						Value: ".",
					},
					&cli.BoolFlag{
						Name:  "fail-fast",
						Usage: "Abort a file on the first embedding or storage failure",
					},
					&cli.BoolFlag{
						Name:  "progress",
						Usage: "Report progress on stderr when ingesting a directory",
						Value: true,
					},
				},
			},
			{
				Name:   "watch",
				Usage:  "Watch a directory and ingest files as they change",
				Action: watchCommand,
				Flags: []cli.Flag{
					collectionFlag(),
					&cli.StringFlag{
						Name:     "dir",
						Aliases:  []string{"d"},
						Usage:    "Directory to watch",
						Required: true,
					},
					&cli.StringFlag{
						Name:  "strategy",
						Usage: "Splitting strategy (auto, recursive, markdown, token)",
					},
					&cli.StringSliceFlag{
						Name:  "ext",
						Usage: "Only ingest files with these extensions",
					},
				},
			},
			{
				Name:   "reset-dedup",
				Usage:  "Forget every deduplication hash of a collection",
				Action: resetDedupCommand,
				Flags: []cli.Flag{
					collectionFlag(),
					&cli.BoolFlag{
						Name:  "purge",
						Usage: "Also delete the stored chunks of the collection",
					},
				},
			},
			{
				Name:   "stats",
				Usage:  "Show stored chunk and deduplication counts of a collection",
				Action: statsCommand,
				Flags:  []cli.Flag{collectionFlag()},
			},
		},
	}
}

func loadConfig(c *cli.Context) (*config.Config, error) {
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return nil, err
	}
	if dir := c.String("data-dir"); dir != "" {
		cfg.DataDir = dir
	}
	if store := c.String("store"); store != "" {
		cfg.Store.Type = store
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func open(c *cli.Context, opts ...kbingest.Option) (*kbingest.KnowledgeBase, error) {
	cfg, err := loadConfig(c)
	if err != nil {
		return nil, err
	}
	if c.Bool("fail-fast") {
		cfg.Ingestion.FailFast = true
	}
	kb, err := openKnowledgeBase(c.Context, cfg, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to open knowledge base: %w", err)
	}
	return kb, nil
}

func ingestCommand(c *cli.Context) error {
	if c.NArg() != 1 {
		return fmt.Errorf("expected exactly one path, got %d", c.NArg())
	}

	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	var opts []kbingest.Option
	if c.Bool("progress") {
		opts = append(opts, kbingest.WithProgress(os.Stderr))
	}
	kb, err := open(c, opts...)
	if err != nil {
		return err
	}
	defer kb.Close()

	path := c.Args().First()
	in := tasks.IngestFileInput{
		ProjectDir:   c.String("project-dir"),
		StrategyName: c.String("strategy"),
		DatabaseName: c.String("collection"),
		SourcePath:   path,
	}
	if info, err := os.Stat(resolve(in.ProjectDir, path)); err == nil && !info.IsDir() {
		in.SourcePath = filepath.Dir(path)
		name := filepath.Base(path)
		in.Filename = &name
	}

	out := kb.IngestFile(ctx, in)
	if err := writeJSON(c.App.Writer, out); err != nil {
		return err
	}
	if !out.Success {
		return cli.Exit(fmt.Sprintf("ingestion of %s failed", path), 1)
	}
	return nil
}

func resolve(projectDir, path string) string {
	if filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(projectDir, path)
}

func watchCommand(c *cli.Context) error {
	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	kb, err := open(c)
	if err != nil {
		return err
	}
	defer kb.Close()
	cfg := kb.Config()

	queue := tasks.NewMemoryQueue(cfg.Workers.QueueSize)
	pool, err := kb.NewPool(queue, tasks.WithResultHandler(func(r tasks.Result) {
		if r.Err != nil {
			slog.Error("task failed", "task", r.Task.ID, "error", r.Err)
			return
		}
		var out tasks.IngestFileOutput
		if err := json.Unmarshal(r.Output, &out); err != nil {
			slog.Error("unreadable task output", "task", r.Task.ID, "error", err)
			return
		}
		slog.Info("file ingested",
			"file", out.Details.Filename,
			"status", out.Details.Status,
			"stored", out.Details.StoredCount,
			"skipped", out.Details.SkippedCount,
			"errors", len(out.Details.Errors))
	}))
	if err != nil {
		return err
	}
	defer pool.Release()

	extensions := c.StringSlice("ext")
	if len(extensions) == 0 {
		extensions = cfg.Watch.Extensions
	}
	watcher, err := tasks.NewWatcher(queue, tasks.IngestFileInput{
		StrategyName: c.String("strategy"),
		DatabaseName: c.String("collection"),
	}, tasks.WithExtensions(extensions...), tasks.WithDebounce(cfg.Watch.Debounce))
	if err != nil {
		return err
	}

	poolDone := make(chan error, 1)
	go func() { poolDone <- pool.Run(context.WithoutCancel(ctx)) }()

	watchErr := watcher.Run(ctx, c.String("dir"))

	// Finish queued files before exiting.
	queue.Close()
	if err := <-poolDone; err != nil {
		return err
	}
	return watchErr
}

func resetDedupCommand(c *cli.Context) error {
	kb, err := open(c)
	if err != nil {
		return err
	}
	defer kb.Close()

	collection := c.String("collection")
	if err := kb.ResetDedup(c.Context, collection, c.Bool("purge")); err != nil {
		return err
	}
	fmt.Fprintf(c.App.Writer, "deduplication state of %q reset\n", collection)
	return nil
}

func statsCommand(c *cli.Context) error {
	kb, err := open(c)
	if err != nil {
		return err
	}
	defer kb.Close()

	stats, err := kb.Stats(c.Context, c.String("collection"))
	if err != nil {
		return err
	}
	return writeJSON(c.App.Writer, stats)
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// setupLogger configures the global slog logger from the --log-level flag.
func setupLogger(c *cli.Context) error {
	levelStr := strings.ToLower(c.String("log-level"))

	var level slog.Level
	switch levelStr {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		return fmt.Errorf("invalid log level %q: must be one of debug, info, warn, error", levelStr)
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)

	return nil
}
