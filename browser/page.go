package browser

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"
	"github.com/use-agent/harvester/models"
)

const (
	// pressJS is the synthetic fallback when a CDP mouse press cannot reach
	// the element (hidden or zero-size controls).
	pressJS = `() => {
		this.dispatchEvent(new MouseEvent('mousedown', { bubbles: true }));
		this.dispatchEvent(new MouseEvent('mouseup', { bubbles: true }));
		this.click();
	}`

	clickJS = `() => this.click()`

	// pressBudget bounds the CDP mouse press. rod retries a covered
	// element until its context ends.
	pressBudget = 500 * time.Millisecond

	fillJS = `(value) => {
		this.focus();
		this.value = value;
		this.dispatchEvent(new Event('input', { bubbles: true }));
		this.dispatchEvent(new Event('change', { bubbles: true }));
	}`
)

// rodPage is a Page backed by a rod tab. All calls bind the caller's
// context; Close uses the original page reference so that it still succeeds
// after that context has expired.
type rodPage struct {
	page   *rod.Page
	router *rod.HijackRouter
	url    string
	owner  *Browser
	once   sync.Once
}

func (p *rodPage) URL() string { return p.url }

func (p *rodPage) WaitLoad(ctx context.Context) error {
	pg := p.page.Context(ctx)
	if err := pg.WaitLoad(); err != nil {
		return categorizeError(err, "page never reported load completion")
	}
	// Client-rendered listings keep mutating after the load event.
	if err := pg.WaitDOMStable(300*time.Millisecond, 0.1); err != nil {
		slog.Debug("WaitDOMStable did not converge, proceeding with current DOM",
			"url", p.url, "error", err)
	}
	return nil
}

func (p *rodPage) Document(ctx context.Context) (*goquery.Document, error) {
	pg := p.page.Context(ctx)
	raw, err := pg.HTML()
	if err != nil {
		return nil, categorizeError(err, "failed to read page HTML")
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(raw))
	if err != nil {
		return nil, models.NewHarvestError(models.ErrCodeContextFailure, "failed to parse page HTML", err)
	}

	current := evalStringOrEmpty(pg, `() => window.location.href`)
	if current == "" || current == "about:blank" {
		current = p.url
	}
	if u, parseErr := url.Parse(current); parseErr == nil {
		doc.Url = u
	}
	return doc, nil
}

func (p *rodPage) Click(ctx context.Context, selector string) error {
	el, err := p.element(ctx, selector)
	if err != nil {
		return err
	}
	if _, err := el.Eval(clickJS); err != nil {
		return fmt.Errorf("click %q: %w", selector, err)
	}
	return nil
}

func (p *rodPage) Press(ctx context.Context, selector string) error {
	el, err := p.element(ctx, selector)
	if err != nil {
		return err
	}
	return press(ctx, selector, pressBudget,
		func(ctx context.Context) error {
			return el.Context(ctx).Click(proto.InputMouseButtonLeft, 1)
		},
		func(ctx context.Context) error {
			_, err := el.Context(ctx).Eval(pressJS)
			return err
		})
}

// press tries mouse within budget and falls back to synthetic on the
// caller's ctx.
func press(ctx context.Context, selector string, budget time.Duration, mouse, synthetic func(context.Context) error) error {
	mctx, cancel := context.WithTimeout(ctx, budget)
	clickErr := mouse(mctx)
	cancel()
	if clickErr == nil {
		return nil
	}
	slog.Debug("mouse press failed, dispatching synthetic events",
		"selector", selector, "error", clickErr)
	if err := synthetic(ctx); err != nil {
		return fmt.Errorf("press %q: %w", selector, err)
	}
	return nil
}

func (p *rodPage) Fill(ctx context.Context, selector, value string) error {
	el, err := p.element(ctx, selector)
	if err != nil {
		return err
	}
	if _, err := el.Eval(fillJS, value); err != nil {
		return fmt.Errorf("fill %q: %w", selector, err)
	}
	return nil
}

func (p *rodPage) Close() error {
	var err error
	p.once.Do(func() {
		if p.router != nil {
			_ = p.router.Stop()
		}
		err = p.page.Close()
		p.owner.activePages.Add(-1)
	})
	return err
}

// element looks the selector up without rod's implicit retry, so a missing
// element is reported immediately instead of at the context deadline.
func (p *rodPage) element(ctx context.Context, selector string) (*rod.Element, error) {
	has, el, err := p.page.Context(ctx).Has(selector)
	if err != nil {
		return nil, categorizeError(err, "element lookup failed")
	}
	if !has {
		return nil, fmt.Errorf("%w: %s", ErrNoElement, selector)
	}
	return el, nil
}

// evalStringOrEmpty evaluates a JS expression and returns the string result,
// swallowing any errors (useful for optional metadata extraction).
func evalStringOrEmpty(page *rod.Page, js string) string {
	res, err := page.Eval(js)
	if err != nil {
		return ""
	}
	return res.Value.Str()
}

// categorizeError wraps raw errors into typed HarvestErrors so callers can
// tell timeouts from broken contexts.
func categorizeError(err error, msg string) *models.HarvestError {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return models.NewHarvestError(models.ErrCodeTimeout, msg, err)
	case errors.Is(err, context.Canceled):
		return models.NewHarvestError(models.ErrCodeTimeout, "operation canceled", err)
	default:
		return models.NewHarvestError(models.ErrCodeContextFailure, msg, err)
	}
}
