// Command harvest runs one harvesting pass from the command line and writes
// the records to a file or stdout.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/use-agent/harvester/app"
	"github.com/use-agent/harvester/config"
	"github.com/use-agent/harvester/export"
	"github.com/use-agent/harvester/orchestrator"
)

func main() {
	var (
		startURL = flag.String("url", "", "start page: a listing or a single detail page (required)")
		format   = flag.String("format", "csv", "output format: csv, json or txt")
		out      = flag.String("out", "", "output file; \"-\" for stdout, default a timestamped property-data file")
		batch    = flag.Int("batch", 0, "targets per concurrency window, 1 for sequential (default from HARVEST_BATCH_SIZE)")
		send     = flag.Bool("send-message", false, "submit the contact form on every target (default from HARVEST_INTERACT)")
	)
	flag.Parse()

	// Only an explicit -send-message overrides HARVEST_INTERACT.
	var sendOpt *bool
	flag.Visit(func(fl *flag.Flag) {
		if fl.Name == "send-message" {
			sendOpt = send
		}
	})

	if *startURL == "" {
		fmt.Fprintln(os.Stderr, "harvest: -url is required")
		flag.Usage()
		os.Exit(2)
	}
	f, err := export.ParseFormat(*format)
	if err != nil {
		fmt.Fprintf(os.Stderr, "harvest: %v\n", err)
		os.Exit(2)
	}

	cfg := config.Load()
	// Logs go to stderr so "-out -" keeps stdout clean.
	slog.SetDefault(app.NewLogger(cfg.Log, os.Stderr))

	if err := run(cfg, *startURL, f, *out, *batch, sendOpt); err != nil {
		slog.Error("harvest failed", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, startURL string, f export.Format, out string, batch int, send *bool) error {
	a, err := app.Launch(cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	progress, cancel := a.Store.Subscribe()
	defer cancel()
	go func() {
		for st := range progress {
			slog.Info("progress", "processed", st.ProcessedTargets, "total", st.TotalTargets, "records", len(st.Records))
		}
	}()

	final, runErr := a.Orchestrator.Run(ctx, startURL, orchestrator.Options{BatchSize: batch, SendMessage: send})
	slog.Info(final.Summary())

	if out == "" {
		out = export.Filename(f, time.Now())
	}
	var w io.Writer = os.Stdout
	if out != "-" {
		file, err := os.Create(out)
		if err != nil {
			return fmt.Errorf("create %s: %w", out, err)
		}
		defer file.Close()
		w = file
	}
	if err := export.Write(w, f, final.Records); err != nil {
		return fmt.Errorf("write %s: %w", out, err)
	}
	if out != "-" {
		slog.Info("records written", "path", out, "count", len(final.Records))
	}
	return runErr
}
