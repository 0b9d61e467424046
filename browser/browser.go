package browser

import (
	"context"
	"log/slog"
	"net/url"
	"strings"
	"sync/atomic"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/launcher/flags"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"
	"github.com/use-agent/harvester/config"
	"github.com/use-agent/harvester/models"
	"github.com/ysmood/gson"
)

// Browser manages the rod browser lifecycle and hands out pages.
// It is safe for concurrent use.
type Browser struct {
	browser     *rod.Browser
	cfg         config.BrowserConfig
	remote      bool
	activePages atomic.Int32
}

// Launch starts a local Chromium, or connects to cfg.RemoteURL when set.
func Launch(cfg config.BrowserConfig) (*Browser, error) {
	controlURL := cfg.RemoteURL
	if controlURL == "" {
		l := launcher.New().
			Headless(cfg.Headless).
			NoSandbox(cfg.NoSandbox)

		if cfg.BrowserBin != "" {
			l = l.Bin(cfg.BrowserBin)
		}
		if cfg.Proxy != "" {
			l = l.Proxy(cfg.Proxy)
		}

		// ── Stealth flags ────────────────────────────────────────────────
		l.Set(flags.Flag("disable-blink-features"), "AutomationControlled")
		l.Delete(flags.Flag("enable-automation"))
		l.Set(flags.Flag("disable-features"), "AudioServiceOutOfProcess,TranslateUI")
		// Background tabs must keep running timers for the reveal poll.
		l.Set(flags.Flag("disable-renderer-backgrounding"))
		l.Set(flags.Flag("disable-background-timer-throttling"))
		l.Set(flags.Flag("disable-backgrounding-occluded-windows"))
		l.Set(flags.Flag("disable-popup-blocking"))
		l.Set(flags.Flag("disable-component-update"))
		l.Set(flags.Flag("disable-default-apps"))
		l.Set(flags.Flag("disable-dev-shm-usage"))
		l.Set(flags.Flag("disable-extensions"))
		l.Set(flags.Flag("no-first-run"))

		u, err := l.Launch()
		if err != nil {
			return nil, models.NewHarvestError(
				models.ErrCodeContextFailure,
				"failed to launch browser",
				err,
			)
		}
		controlURL = u
		slog.Info("browser launched", "controlURL", controlURL)
	}

	b := rod.New().ControlURL(controlURL)
	if err := b.Connect(); err != nil {
		return nil, models.NewHarvestError(
			models.ErrCodeContextFailure,
			"failed to connect to browser",
			err,
		)
	}

	return &Browser{
		browser: b,
		cfg:     cfg,
		remote:  cfg.RemoteURL != "",
	}, nil
}

// ActivePages returns the number of pages currently open.
func (b *Browser) ActivePages() int {
	return int(b.activePages.Load())
}

// Open creates a page, installs stealth and request hijacking, then navigates
// to rawURL. Both steps must happen before navigation to take effect.
func (b *Browser) Open(ctx context.Context, rawURL string, opts OpenOptions) (Page, error) {
	if !isHTTPURL(rawURL) {
		return nil, models.NewHarvestError(models.ErrCodeInvalidInput, "not an absolute http(s) URL: "+rawURL, nil)
	}

	page, err := b.browser.Page(proto.TargetCreateTarget{
		URL:        "about:blank",
		Background: opts.Background,
	})
	if err != nil {
		return nil, models.NewHarvestError(
			models.ErrCodeContextFailure,
			"failed to create page",
			err,
		)
	}
	b.activePages.Add(1)

	rp := &rodPage{page: page, url: rawURL, owner: b}

	if opts.Stealth {
		if _, evalErr := page.EvalOnNewDocument(stealth.JS); evalErr != nil {
			slog.Warn("stealth injection failed, proceeding without stealth",
				"error", evalErr,
			)
		}
	}

	extraHeaders := make(map[string]string, 2)
	if b.cfg.AcceptLanguage != "" {
		extraHeaders["Accept-Language"] = b.cfg.AcceptLanguage
	}
	if u, parseErr := url.Parse(rawURL); parseErr == nil {
		extraHeaders["Referer"] = u.Scheme + "://" + u.Host + "/"
	}
	_ = proto.NetworkSetExtraHTTPHeaders{Headers: toHeadersMap(extraHeaders)}.Call(page)

	rp.router = setupHijack(page, b.cfg.BlockedResourceTypes, b.cfg.BlockAds)

	if err := page.Context(ctx).Navigate(rawURL); err != nil {
		_ = rp.Close()
		return nil, categorizeError(err, "navigation to target URL failed")
	}
	return rp, nil
}

// Close closes the browser process. A remote Chrome is left running.
func (b *Browser) Close() error {
	if b.remote {
		// Browser.close over CDP would kill a Chrome we do not own.
		slog.Info("browser: leaving remote chrome running")
		return nil
	}
	slog.Info("browser: closing browser")
	if err := b.browser.Close(); err != nil {
		slog.Warn("browser: close failed", "error", err)
		return err
	}
	return nil
}

// toHeadersMap converts a plain string map to the proto.NetworkHeaders type
// (map[string]gson.JSON) required by NetworkSetExtraHTTPHeaders.
func toHeadersMap(headers map[string]string) proto.NetworkHeaders {
	m := make(proto.NetworkHeaders, len(headers))
	for k, v := range headers {
		m[k] = gson.New(v)
	}
	return m
}

// isHTTPURL reports whether raw looks like an absolute http(s) URL.
func isHTTPURL(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != "" && !strings.ContainsAny(u.Host, " ")
}
