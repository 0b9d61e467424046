// Package app wires configuration into a ready harvesting pipeline. It is
// shared by the server, the one-shot CLI and their tests.
package app

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/lmittmann/tint"

	"github.com/use-agent/harvester/browser"
	"github.com/use-agent/harvester/config"
	"github.com/use-agent/harvester/extract"
	"github.com/use-agent/harvester/interact"
	"github.com/use-agent/harvester/lifecycle"
	"github.com/use-agent/harvester/orchestrator"
	"github.com/use-agent/harvester/state"
)

// App is an assembled pipeline.
type App struct {
	Host         browser.Host
	Store        *state.Store
	Orchestrator *orchestrator.Orchestrator

	closers []io.Closer
}

// Launch starts (or connects to) the browser and assembles the pipeline
// around it.
func Launch(cfg *config.Config) (*App, error) {
	b, err := browser.Launch(cfg.Browser)
	if err != nil {
		return nil, err
	}
	a, err := Assemble(cfg, b)
	if err != nil {
		b.Close()
		return nil, err
	}
	a.closers = append(a.closers, b)
	return a, nil
}

// Assemble builds the pipeline on top of host.
func Assemble(cfg *config.Config, host browser.Host) (*App, error) {
	a := &App{Host: host}

	slot, err := openSlot(cfg.State)
	if err != nil {
		return nil, err
	}
	if c, ok := slot.(io.Closer); ok {
		a.closers = append(a.closers, c)
	}
	a.Store = state.NewStore(slot)

	h := cfg.Harvest
	ex := extract.New(extract.DefaultFields(), extract.Options{
		PollInterval: h.PollInterval,
		PollAttempts: h.PollAttempts,
	})
	script := interact.DefaultScript(h.Message(interact.DefaultMessage), h.InteractDelay)
	m := lifecycle.NewManager(host, ex, script, lifecycle.Options{
		LoadTimeout:   h.LoadTimeout,
		SettleDelay:   h.SettleDelay,
		TargetTimeout: h.TargetTimeout,
		Stealth:       h.Stealth,
	})
	a.Orchestrator = orchestrator.New(m, a.Store, orchestrator.Config{
		BatchSize:   h.BatchSize,
		WindowDelay: h.WindowDelay,
		SendMessage: h.Interact,
	})
	return a, nil
}

// Close releases the state slot and, for launched apps, the browser.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i].Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func openSlot(cfg config.StateConfig) (state.Slot, error) {
	switch strings.ToLower(cfg.Backend) {
	case "", "memory":
		return state.NewMemorySlot(), nil
	case "sqlite":
		slot, err := state.OpenSQLite(cfg.Path)
		if err != nil {
			return nil, err
		}
		slog.Info("state slot opened", "backend", "sqlite", "path", cfg.Path)
		return slot, nil
	}
	return nil, fmt.Errorf("unknown state backend %q", cfg.Backend)
}

// NewLogger builds the process logger. Format "text" writes colourised
// console output through tint, "plain" the stdlib text handler, anything
// else JSON.
func NewLogger(cfg config.LogConfig, w io.Writer) *slog.Logger {
	if w == nil {
		w = os.Stdout
	}
	level := ParseLevel(cfg.Level)

	var handler slog.Handler
	switch cfg.Format {
	case "text":
		handler = tint.NewHandler(w, &tint.Options{
			Level:      level,
			TimeFormat: time.DateTime,
			NoColor:    !isTerminal(w),
		})
	case "plain":
		handler = slog.NewTextHandler(w, &slog.HandlerOptions{Level: level})
	default:
		handler = slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level})
	}
	return slog.New(handler)
}

// ParseLevel maps a level name to a slog level, defaulting to info.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	fi, err := f.Stat()
	return err == nil && fi.Mode()&os.ModeCharDevice != 0
}
