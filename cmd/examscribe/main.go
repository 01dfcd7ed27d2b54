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
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/poiesic/examscribe"
	"github.com/poiesic/examscribe/config"
	"github.com/poiesic/examscribe/core"
	"github.com/poiesic/examscribe/generation"
	"github.com/poiesic/examscribe/metrics"
	"github.com/poiesic/examscribe/search"
	"github.com/poiesic/examscribe/server"
	"github.com/poiesic/examscribe/strategy"
	"github.com/urfave/cli/v2"
)

// newProcessor builds the processor for every command. Tests replace it to
// inject test doubles.
var newProcessor = examscribe.NewProcessor

func main() {
	if err := newApp().Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:  "examscribe",
		Usage: "Generate marking schemes for exam papers",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "log-level",
				Aliases: []string{"l"},
				Usage:   "Set logging level (debug, info, warn, error)",
				Value:   "info",
			},
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to a YAML configuration file",
			},
		},
		Before: setupLogger,
		Commands: []*cli.Command{
			{
				Name:   "process",
				Usage:  "Answer the questions in a PDF exam paper",
				Action: processCommand,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "file",
						Aliases:  []string{"f"},
						Usage:    "Path to the PDF exam paper",
						Required: true,
					},
					&cli.StringFlag{
						Name:  "client",
						Usage: "Client key selecting the vector collection",
						Value: "local",
					},
					&cli.StringFlag{
						Name:  "strategy",
						Usage: "Extraction strategy (structured, retrieval, auto); overrides STRATEGY",
					},
					&cli.StringFlag{
						Name:  "output-dir",
						Usage: "Directory for rendered marking schemes; overrides OUTPUT_DIR",
					},
					&cli.BoolFlag{
						Name:  "progress",
						Usage: "Report answering progress on stderr",
						Value: true,
					},
				},
			},
			{
				Name:   "serve",
				Usage:  "Serve the HTTP API",
				Action: serveCommand,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "listen",
						Usage: "Listen address; overrides LISTEN_ADDR",
					},
				},
			},
			{
				Name:   "search",
				Usage:  "Search a client's indexed documents",
				Action: searchCommand,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "client",
						Usage:    "Client key selecting the vector collection",
						Required: true,
					},
					&cli.StringFlag{
						Name:     "query",
						Aliases:  []string{"q"},
						Usage:    "Text to search for",
						Required: true,
					},
					&cli.IntFlag{
						Name:  "limit",
						Usage: "Maximum number of hits",
						Value: 3,
					},
					&cli.BoolFlag{
						Name:  "verbose",
						Usage: "Print the collection, embedding size and timings",
					},
				},
			},
		},
	}
}

// loadConfig reads the configuration named by the global --config flag.
func loadConfig(c *cli.Context) (*config.Config, error) {
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	return cfg, nil
}

func processCommand(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	if s := c.String("strategy"); s != "" {
		if !strategy.ValidName(s) {
			return fmt.Errorf("invalid strategy %q: must be one of structured, retrieval, auto", s)
		}
		cfg.Strategy = s
	}
	if dir := c.String("output-dir"); dir != "" {
		cfg.OutputDir = dir
	}

	raw, err := os.ReadFile(c.String("file"))
	if err != nil {
		return fmt.Errorf("failed to read paper: %w", err)
	}

	var opts []examscribe.ProcessorOption
	if c.Bool("progress") {
		opts = append(opts, examscribe.WithMonitor(generation.NewProgressTracker(c.App.ErrWriter)))
	}
	processor, err := newProcessor(cfg, opts...)
	if err != nil {
		return fmt.Errorf("failed to create processor: %w", err)
	}
	defer processor.Close()

	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	result, err := processor.Process(ctx, raw, c.String("client"))
	if result != nil {
		if encErr := printJSON(c, result); encErr != nil {
			return encErr
		}
	}
	if err != nil {
		if errors.Is(err, core.ErrNoQuestionsFound) {
			return fmt.Errorf("no questions found in %s: %w", c.String("file"), err)
		}
		return err
	}
	return nil
}

func serveCommand(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	addr := cfg.ListenAddr
	if listen := c.String("listen"); listen != "" {
		addr = listen
	}

	m := metrics.New()
	processor, err := newProcessor(cfg, examscribe.WithMetrics(m))
	if err != nil {
		return fmt.Errorf("failed to create processor: %w", err)
	}
	defer processor.Close()

	srv, err := server.New(processor, cfg.OutputDir, server.WithMetrics(m))
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()
	return srv.ListenAndServe(ctx, addr)
}

func searchCommand(c *cli.Context) error {
	if c.Int("limit") <= 0 {
		return fmt.Errorf("limit must be greater than 0")
	}
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}

	processor, err := newProcessor(cfg)
	if err != nil {
		return fmt.Errorf("failed to create processor: %w", err)
	}
	defer processor.Close()

	var monitor search.SearchMonitor
	if c.Bool("verbose") {
		monitor = &searchTracer{w: c.App.Writer}
	}
	hits, err := processor.SearchWithMonitor(c.Context, c.String("client"), c.String("query"), c.Int("limit"), monitor)
	if err != nil {
		return err
	}

	fmt.Fprintf(c.App.Writer, "Found %d hits\n", len(hits))
	for i, hit := range hits {
		fmt.Fprintf(c.App.Writer, "%d: [%0.3f] (%s) %s\n", i, hit.Score, hit.DocumentID, oneLine(hit.Text))
	}
	return nil
}

// searchTracer prints each stage of a search with elapsed time.
type searchTracer struct {
	w     io.Writer
	start time.Time
}

func (t *searchTracer) Start(collection, query string) {
	t.start = time.Now()
	fmt.Fprintf(t.w, "Searching %s for %q\n", collection, query)
}

func (t *searchTracer) AfterEmbedding(vector []float32) {
	fmt.Fprintf(t.w, "Embedded query (%d dimensions) in %s\n", len(vector), t.elapsed())
}

func (t *searchTracer) Finish(hits []core.SearchHit, err error) {
	if err != nil {
		fmt.Fprintf(t.w, "Search failed after %s: %v\n", t.elapsed(), err)
		return
	}
	fmt.Fprintf(t.w, "Retrieved %d hits in %s\n", len(hits), t.elapsed())
}

func (t *searchTracer) elapsed() time.Duration {
	return time.Since(t.start).Round(time.Millisecond)
}

func printJSON(c *cli.Context, v any) error {
	enc := json.NewEncoder(c.App.Writer)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func oneLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

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
