// Package lifecycle opens one page per target, waits for it to settle, runs
// the extraction body and always closes the page afterwards.
package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/use-agent/harvester/browser"
	"github.com/use-agent/harvester/extract"
	"github.com/use-agent/harvester/interact"
	"github.com/use-agent/harvester/models"
)

// Options bounds the waits of one page context.
type Options struct {
	// LoadTimeout bounds the wait for the load signal.
	LoadTimeout time.Duration

	// SettleDelay is waited instead when the load signal never arrives.
	SettleDelay time.Duration

	// TargetTimeout bounds the whole context, from open to close.
	TargetTimeout time.Duration

	// Stealth injects anti-detection scripts.
	Stealth bool
}

// Manager owns page acquisition for harvesting.
type Manager struct {
	host      browser.Host
	extractor *extract.Extractor
	script    *interact.Script
	opts      Options
}

// NewManager creates a Manager. script may be nil when interaction is never
// requested.
func NewManager(host browser.Host, extractor *extract.Extractor, script *interact.Script, opts Options) *Manager {
	if opts.LoadTimeout <= 0 {
		opts.LoadTimeout = 15 * time.Second
	}
	if opts.SettleDelay <= 0 {
		opts.SettleDelay = 1500 * time.Millisecond
	}
	if opts.TargetTimeout <= 0 {
		opts.TargetTimeout = 60 * time.Second
	}
	return &Manager{host: host, extractor: extractor, script: script, opts: opts}
}

// Within opens a background page for url, waits for it to settle and runs
// body in it. The page is closed on every exit path, including a panic in
// body, which is returned as a CONTEXT_FAILURE error.
func Within[T any](ctx context.Context, m *Manager, url string, body func(ctx context.Context, page browser.Page) (T, error)) (result T, err error) {
	ctx, cancel := context.WithTimeout(ctx, m.opts.TargetTimeout)
	defer cancel()

	page, err := m.host.Open(ctx, url, browser.OpenOptions{Background: true, Stealth: m.opts.Stealth})
	if err != nil {
		return result, asHarvestError(err, "open page failed")
	}
	defer func() {
		if cerr := page.Close(); cerr != nil {
			slog.Debug("close page failed", "url", url, "error", cerr)
		}
	}()
	defer func() {
		if r := recover(); r != nil {
			var zero T
			result = zero
			err = models.NewHarvestError(models.ErrCodeContextFailure, fmt.Sprintf("page body panicked: %v", r), nil)
		}
	}()

	if err := m.settle(ctx, page); err != nil {
		return result, asHarvestError(err, "page did not settle")
	}

	result, err = body(ctx, page)
	if err != nil {
		return result, asHarvestError(err, "page body failed")
	}
	return result, nil
}

// Collect extracts the record from an open page and, when asked, runs the
// interaction script afterwards.
func (m *Manager) Collect(ctx context.Context, page browser.Page, sendMessage bool) *models.Record {
	rec := m.extractor.Extract(ctx, page)
	if sendMessage && m.script != nil {
		rec.InteractionCompleted = m.script.Attempt(ctx, page)
	}
	return rec
}

// Harvest runs Collect in a fresh page for target. It returns nil when the
// page could not be acquired or the body failed; the failure is logged.
func (m *Manager) Harvest(ctx context.Context, target models.Target, sendMessage bool) *models.Record {
	start := time.Now()
	rec, err := Within(ctx, m, target.URL, func(ctx context.Context, page browser.Page) (*models.Record, error) {
		return m.Collect(ctx, page, sendMessage), nil
	})
	if err != nil {
		slog.Warn("target failed", "url", target.URL, "position", target.Position, "error", err, "elapsed", time.Since(start))
		return nil
	}
	slog.Debug("target harvested", "url", target.URL, "position", target.Position, "elapsed", time.Since(start))
	return rec
}

// settle waits for the load signal, or for SettleDelay when the signal
// fails. Only the outer context expiring is an error.
func (m *Manager) settle(ctx context.Context, page browser.Page) error {
	loadCtx, cancel := context.WithTimeout(ctx, m.opts.LoadTimeout)
	err := page.WaitLoad(loadCtx)
	cancel()
	if err == nil {
		return nil
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}

	slog.Debug("load signal unavailable, using settle delay", "url", page.URL(), "error", err, "delay", m.opts.SettleDelay)
	t := time.NewTimer(m.opts.SettleDelay)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func asHarvestError(err error, msg string) error {
	var he *models.HarvestError
	if errors.As(err, &he) {
		return err
	}
	code := models.ErrCodeContextFailure
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		code = models.ErrCodeTimeout
	}
	return models.NewHarvestError(code, msg, err)
}
