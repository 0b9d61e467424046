// Package browser is the host automation surface the harvester depends on:
// create an execution context for a URL, detect its load completion, run code
// inside it, and close it. Browser is the go-rod implementation; tests use
// browsertest.
package browser

import (
	"context"
	"errors"

	"github.com/PuerkitoBio/goquery"
)

// ErrNoElement is returned when a selector matches nothing in the page.
var ErrNoElement = errors.New("browser: no element matches selector")

// OpenOptions controls how a new execution context is created.
type OpenOptions struct {
	// Background creates the page without stealing focus.
	Background bool

	// Stealth injects anti-detection scripts before navigation.
	Stealth bool
}

// Host creates execution contexts.
type Host interface {
	Open(ctx context.Context, url string, opts OpenOptions) (Page, error)
}

// Page is one isolated, closable execution context.
type Page interface {
	// URL returns the address the page was opened with.
	URL() string

	// WaitLoad blocks until the page reports load completion or ctx ends.
	WaitLoad(ctx context.Context) error

	// Document returns a parsed snapshot of the current DOM. Its Url is the
	// page's current location.
	Document(ctx context.Context) (*goquery.Document, error)

	// Click performs a high-level activation (element.click()) on the first
	// element matching selector.
	Click(ctx context.Context, selector string) error

	// Press simulates a full pointer press and release on the first element
	// matching selector.
	Press(ctx context.Context, selector string) error

	// Fill sets the value of the first element matching selector and emits
	// its input and change notifications.
	Fill(ctx context.Context, selector, value string) error

	// Close releases the context. Calling Close more than once is a no-op.
	Close() error
}
