// Package orchestrator drives one harvesting run: classify the start page,
// discover targets, harvest them in bounded windows and publish progress
// after every completion.
package orchestrator

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/use-agent/harvester/browser"
	"github.com/use-agent/harvester/discovery"
	"github.com/use-agent/harvester/lifecycle"
	"github.com/use-agent/harvester/models"
	"github.com/use-agent/harvester/state"
)

// Config holds the defaults applied when a run leaves an option unset.
type Config struct {
	BatchSize   int           // default: 3, 1 means sequential
	WindowDelay time.Duration // pause between two windows
	SendMessage bool          // run the interaction script by default
}

// Options tunes a single run. Zero values fall back to Config.
type Options struct {
	BatchSize   int
	SendMessage *bool
}

// Orchestrator runs harvesting passes. Only the most recently started run
// is reported by the store; an older run keeps going until its targets are
// exhausted but its updates are discarded.
type Orchestrator struct {
	manager *lifecycle.Manager
	store   *state.Store
	cfg     Config
}

// New creates an Orchestrator.
func New(manager *lifecycle.Manager, store *state.Store, cfg Config) *Orchestrator {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 3
	}
	if cfg.WindowDelay < 0 {
		cfg.WindowDelay = 0
	}
	return &Orchestrator{manager: manager, store: store, cfg: cfg}
}

// Store returns the store runs are published to.
func (o *Orchestrator) Store() *state.Store { return o.store }

// Start begins a run and returns its ID immediately; the run continues in
// the background and is observed through the store. ctx only needs to
// live for the call.
func (o *Orchestrator) Start(ctx context.Context, startURL string, opts Options) (string, error) {
	st, err := o.store.Begin(ctx, startURL)
	if err != nil {
		return "", err
	}
	bg := context.WithoutCancel(ctx)
	go func() {
		if _, err := o.execute(bg, st, opts); err != nil {
			slog.Warn("run ended with error", "run_id", st.ID, "error", err)
		}
	}()
	return st.ID, nil
}

// Run performs a complete run and returns its final state.
func (o *Orchestrator) Run(ctx context.Context, startURL string, opts Options) (models.RunState, error) {
	st, err := o.store.Begin(ctx, startURL)
	if err != nil {
		return st, err
	}
	return o.execute(ctx, st, opts)
}

type startPage struct {
	listing bool
	single  *models.Record
	targets []models.Target
}

func (o *Orchestrator) execute(ctx context.Context, st models.RunState, opts Options) (models.RunState, error) {
	batch := opts.BatchSize
	if batch <= 0 {
		batch = o.cfg.BatchSize
	}
	send := o.cfg.SendMessage
	if opts.SendMessage != nil {
		send = *opts.SendMessage
	}

	r := &run{store: o.store, st: st}
	log := slog.With("run_id", st.ID)
	log.Info("run started", "url", st.StartURL, "batch_size", batch, "send_message", send)
	start := time.Now()

	sp, err := lifecycle.Within(ctx, o.manager, st.StartURL, func(ctx context.Context, page browser.Page) (startPage, error) {
		doc, err := page.Document(ctx)
		if err != nil {
			return startPage{}, err
		}
		cls := discovery.Classify(doc)
		log.Debug("start page classified", "listing", cls.IsListing, "container", cls.HasContainer, "detail", cls.IsDetail)
		if !cls.IsListing {
			return startPage{single: o.manager.Collect(ctx, page, send)}, nil
		}
		return startPage{listing: true, targets: discovery.Discover(doc)}, nil
	})
	if err != nil {
		log.Error("start page failed", "error", err)
		return r.finish(ctx, models.StatusFailed, err)
	}

	if !sp.listing {
		r.setTotal(ctx, 1)
		r.complete(ctx, sp.single)
		log.Info("run finished", "mode", "single", "elapsed", time.Since(start))
		return r.finish(ctx, models.StatusCompleted, nil)
	}

	r.setTotal(ctx, len(sp.targets))
	if len(sp.targets) == 0 {
		log.Info("run finished", "mode", "listing", "targets", 0)
		return r.finish(ctx, models.StatusEmpty, nil)
	}

	for i := 0; i < len(sp.targets); i += batch {
		if i > 0 && !sleep(ctx, o.cfg.WindowDelay) {
			return r.finish(ctx, models.StatusFailed, models.NewHarvestError(models.ErrCodeTimeout, "run cancelled", ctx.Err()))
		}
		end := min(i+batch, len(sp.targets))
		window := sp.targets[i:end]
		log.Debug("window started", "from", i, "size", len(window))

		var wg sync.WaitGroup
		for _, target := range window {
			wg.Add(1)
			go func(target models.Target) {
				defer wg.Done()
				r.complete(ctx, o.manager.Harvest(ctx, target, send))
			}(target)
		}
		wg.Wait()
	}

	final, err := r.finish(ctx, models.StatusCompleted, nil)
	log.Info("run finished", "mode", "listing", "targets", final.TotalTargets,
		"records", len(final.Records), "elapsed", time.Since(start))
	return final, err
}

// run serialises every mutation and publish of one RunState.
type run struct {
	store *state.Store

	mu       sync.Mutex
	st       models.RunState
	storeErr error
}

func (r *run) setTotal(ctx context.Context, n int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.st.TotalTargets = n
	r.publish(ctx)
}

// complete counts one finished target and publishes the new state.
func (r *run) complete(ctx context.Context, rec *models.Record) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.st.ProcessedTargets++
	if rec != nil {
		r.st.Records = append(r.st.Records, rec)
	}
	r.publish(ctx)
}

func (r *run) finish(ctx context.Context, status string, cause error) (models.RunState, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if cause == nil && r.storeErr != nil {
		status, cause = models.StatusFailed, r.storeErr
	}
	r.st.Status = status
	r.st.IsRunning = false
	r.st.FinishedAt = time.Now().UTC()
	if cause != nil {
		r.st.Error = cause.Error()
	}
	r.publish(ctx)
	if cause == nil {
		cause = r.storeErr
	}
	return r.st.Clone(), cause
}

// publish must be called with r.mu held.
func (r *run) publish(ctx context.Context) {
	err := r.store.Publish(context.WithoutCancel(ctx), r.st)
	switch {
	case err == nil:
	case errors.Is(err, state.ErrSuperseded):
		slog.Debug("dropping update of superseded run", "run_id", r.st.ID)
	default:
		slog.Error("publish run state failed", "run_id", r.st.ID, "error", err)
		if r.storeErr == nil {
			r.storeErr = err
		}
	}
}

func sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	}
}
