// Package browsertest provides an in-memory browser.Host for tests. Pages
// serve static HTML; hooks let a test mutate the DOM when a control is
// activated, which is how reveal-on-click content is simulated.
package browsertest

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/use-agent/harvester/browser"
)

// Hook runs when a control matching its selector is pressed or clicked.
type Hook func(p *Page)

// Fixture describes a page served by the Host.
type Fixture struct {
	HTML string

	// LoadErr is returned by WaitLoad.
	LoadErr error

	// LoadDelay is slept (respecting ctx) inside WaitLoad.
	LoadDelay time.Duration

	// DocumentErr is returned by Document.
	DocumentErr error

	// OnClick hooks run on Click or Press of a matching selector.
	OnClick map[string]Hook

	// Panic makes Document panic, simulating a crashing extraction.
	Panic bool
}

// Call is one recorded interaction.
type Call struct {
	Op       string // "click", "press", "fill"
	Selector string
	Value    string
}

// Page is an in-memory browser.Page.
type Page struct {
	url     string
	fixture Fixture
	host    *Host

	mu     sync.Mutex
	html   string
	calls  []Call
	values map[string]string
	closed int
}

// Host is an in-memory browser.Host. The zero value is not usable; call New.
type Host struct {
	mu      sync.Mutex
	pages   map[string]Fixture
	openErr map[string]error
	opened  []*Page
	options []browser.OpenOptions

	active    atomic.Int32
	maxActive atomic.Int32
}

// New creates an empty Host.
func New() *Host {
	return &Host{
		pages:   make(map[string]Fixture),
		openErr: make(map[string]error),
	}
}

// Serve registers a page for rawURL.
func (h *Host) Serve(rawURL string, fixture Fixture) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.pages[rawURL] = fixture
}

// FailOpen makes Open fail for rawURL.
func (h *Host) FailOpen(rawURL string, err error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.openErr[rawURL] = err
}

// Open implements browser.Host. Unknown URLs serve an empty document.
func (h *Host) Open(ctx context.Context, rawURL string, opts browser.OpenOptions) (browser.Page, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	h.mu.Lock()
	defer h.mu.Unlock()

	if err, ok := h.openErr[rawURL]; ok {
		return nil, err
	}
	fixture := h.pages[rawURL]
	p := &Page{
		url:     rawURL,
		fixture: fixture,
		host:    h,
		html:    fixture.HTML,
		values:  make(map[string]string),
	}
	h.opened = append(h.opened, p)
	h.options = append(h.options, opts)

	n := h.active.Add(1)
	for {
		cur := h.maxActive.Load()
		if n <= cur || h.maxActive.CompareAndSwap(cur, n) {
			break
		}
	}
	return p, nil
}

// Opened returns every page opened so far, in open order.
func (h *Host) Opened() []*Page {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]*Page, len(h.opened))
	copy(out, h.opened)
	return out
}

// Options returns the OpenOptions of every Open call, in order.
func (h *Host) Options() []browser.OpenOptions {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]browser.OpenOptions, len(h.options))
	copy(out, h.options)
	return out
}

// ActivePages returns the number of pages open right now.
func (h *Host) ActivePages() int { return int(h.active.Load()) }

// MaxActive returns the highest number of simultaneously open pages seen.
func (h *Host) MaxActive() int { return int(h.maxActive.Load()) }

// URL implements browser.Page.
func (p *Page) URL() string { return p.url }

// WaitLoad implements browser.Page.
func (p *Page) WaitLoad(ctx context.Context) error {
	if p.fixture.LoadDelay > 0 {
		select {
		case <-time.After(p.fixture.LoadDelay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return p.fixture.LoadErr
}

// Document implements browser.Page.
func (p *Page) Document(ctx context.Context) (*goquery.Document, error) {
	if p.fixture.Panic {
		panic("browsertest: document panic")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if p.fixture.DocumentErr != nil {
		return nil, p.fixture.DocumentErr
	}
	p.mu.Lock()
	html := p.html
	p.mu.Unlock()

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, err
	}
	if u, err := url.Parse(p.url); err == nil {
		doc.Url = u
	}
	return doc, nil
}

// Click implements browser.Page.
func (p *Page) Click(ctx context.Context, selector string) error {
	return p.activate(ctx, "click", selector)
}

// Press implements browser.Page.
func (p *Page) Press(ctx context.Context, selector string) error {
	return p.activate(ctx, "press", selector)
}

// Fill implements browser.Page.
func (p *Page) Fill(ctx context.Context, selector, value string) error {
	if err := p.require(ctx, selector); err != nil {
		return err
	}
	p.mu.Lock()
	p.values[selector] = value
	p.calls = append(p.calls, Call{Op: "fill", Selector: selector, Value: value})
	p.mu.Unlock()
	return nil
}

// Close implements browser.Page.
func (p *Page) Close() error {
	p.mu.Lock()
	p.closed++
	first := p.closed == 1
	p.mu.Unlock()
	if first {
		p.host.active.Add(-1)
	}
	return nil
}

// SetHTML replaces the page's DOM. Hooks use it to reveal content.
func (p *Page) SetHTML(html string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.html = html
}

// ReplaceHTML substitutes the first old with repl in the page's DOM.
func (p *Page) ReplaceHTML(old, repl string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.html = strings.Replace(p.html, old, repl, 1)
}

// Calls returns the recorded interactions.
func (p *Page) Calls() []Call {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]Call, len(p.calls))
	copy(out, p.calls)
	return out
}

// CallCount returns how many recorded calls match op and selector.
func (p *Page) CallCount(op, selector string) int {
	n := 0
	for _, c := range p.Calls() {
		if c.Op == op && c.Selector == selector {
			n++
		}
	}
	return n
}

// Value returns what Fill stored for selector.
func (p *Page) Value(selector string) string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.values[selector]
}

// CloseCount returns how many times Close was called.
func (p *Page) CloseCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closed
}

func (p *Page) activate(ctx context.Context, op, selector string) error {
	if err := p.require(ctx, selector); err != nil {
		return err
	}
	p.mu.Lock()
	p.calls = append(p.calls, Call{Op: op, Selector: selector})
	p.mu.Unlock()
	if hook, ok := p.fixture.OnClick[selector]; ok {
		hook(p)
	}
	return nil
}

func (p *Page) require(ctx context.Context, selector string) error {
	doc, err := p.Document(ctx)
	if err != nil {
		return err
	}
	if doc.Find(selector).Length() == 0 {
		return fmt.Errorf("%w: %s", browser.ErrNoElement, selector)
	}
	return nil
}

// ErrBoom is a generic failure for tests.
var ErrBoom = errors.New("browsertest: boom")
