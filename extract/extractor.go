package extract

import (
	"context"
	"log/slog"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/use-agent/harvester/browser"
	"github.com/use-agent/harvester/models"
)

// Extractor pulls a Record out of a loaded page.
type Extractor struct {
	fields Fields
	opts   Options
}

// New returns an Extractor using fields and opts. Zero options fall back to
// DefaultOptions.
func New(fields Fields, opts Options) *Extractor {
	def := DefaultOptions()
	if opts.PollInterval <= 0 {
		opts.PollInterval = def.PollInterval
	}
	if opts.PollAttempts <= 0 {
		opts.PollAttempts = def.PollAttempts
	}
	return &Extractor{fields: fields, opts: opts}
}

// Extract reads every field from page. It never fails: a field no strategy
// could resolve is left unknown, and a page that cannot be snapshotted
// yields a record carrying only its URL.
func (e *Extractor) Extract(ctx context.Context, page browser.Page) *models.Record {
	doc, err := page.Document(ctx)
	if err != nil {
		slog.Warn("snapshot failed", "url", page.URL(), "error", err)
		return models.NewRecord(page.URL())
	}

	rec := e.ExtractDocument(doc)
	if rec.SourceURL == "" {
		rec.SourceURL = page.URL()
	}
	if contact, ok := e.contact(ctx, page, doc); ok {
		rec.Contact = &contact
	}
	return rec
}

// ExtractDocument resolves the static fields of doc. Contact is left to
// Extract since it needs the live page.
func (e *Extractor) ExtractDocument(doc *goquery.Document) *models.Record {
	rec := models.NewRecord(documentURL(doc))

	if v, name, ok := e.fields.Price.Resolve(doc); ok {
		rec.Price = &v
		slog.Debug("field resolved", "field", "price", "strategy", name)
	}
	if v, name, ok := e.fields.Surface.Resolve(doc); ok {
		rec.SurfaceArea = &v
		slog.Debug("field resolved", "field", "surface_area", "strategy", name)
	}
	if v, name, ok := e.fields.Rooms.Resolve(doc); ok {
		rec.RoomCount = &v
		slog.Debug("field resolved", "field", "room_count", "strategy", name)
	}
	if v, name, ok := e.fields.Location.Resolve(doc); ok {
		rec.Location = &v
		slog.Debug("field resolved", "field", "location", "strategy", name)
	}
	return rec
}

// contact clicks the first reveal control once and polls the contact chain.
// Pages without a reveal control have no contact to wait for. Only values
// that were not on the page before the click count, since the broad
// contact selectors also match prices and buttons.
func (e *Extractor) contact(ctx context.Context, page browser.Page, doc *goquery.Document) (string, bool) {
	reveal, ok := FirstPresent(doc, e.fields.Reveal)
	if !ok {
		return "", false
	}
	before := make(map[string]struct{})
	for _, v := range e.fields.Contact.Values(doc) {
		before[v] = struct{}{}
	}
	revealed := func(v string) bool {
		_, seen := before[v]
		return !seen
	}
	if err := page.Click(ctx, reveal.Selector); err != nil {
		slog.Debug("reveal click failed", "url", page.URL(), "selector", reveal.Selector, "error", err)
		return "", false
	}

	return pollUntil(ctx, e.opts.PollAttempts, e.opts.PollInterval, func() (string, bool) {
		snap, err := page.Document(ctx)
		if err != nil {
			return "", false
		}
		v, _, ok := e.fields.Contact.ResolveFunc(snap, revealed)
		return v, ok
	})
}

// pollUntil waits interval and calls probe, at most attempts times. It
// returns the first successful probe and gives up early when ctx is done.
func pollUntil[T any](ctx context.Context, attempts int, interval time.Duration, probe func() (T, bool)) (T, bool) {
	var zero T
	timer := time.NewTimer(interval)
	defer timer.Stop()

	for i := 0; i < attempts; i++ {
		select {
		case <-ctx.Done():
			return zero, false
		case <-timer.C:
		}
		if v, ok := probe(); ok {
			return v, true
		}
		timer.Reset(interval)
	}
	return zero, false
}

func documentURL(doc *goquery.Document) string {
	if doc == nil || doc.Url == nil {
		return ""
	}
	u := doc.Url
	if !u.IsAbs() {
		return ""
	}
	return u.String()
}
