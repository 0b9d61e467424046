// Package discovery decides whether a page lists several items and, if so,
// collects the item links on it.
package discovery

import (
	"log/slog"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/use-agent/harvester/extract"
	"github.com/use-agent/harvester/models"
)

var (
	containerLocators = extract.MustLocators(".items-container")

	// Both markers present means a single-item detail page.
	detailMarkers = extract.MustLocators(".txt-bold", ".icon-phone")

	linkCandidates = extract.MustLocators(
		".items-container .item-link",
		"article.item a.item-link",
	)

	promoted = ".listing-alert"
)

// Classification is the best-effort verdict on one page. It is a heuristic
// over markup markers, not a guarantee.
type Classification struct {
	IsListing    bool `json:"is_listing"`
	HasContainer bool `json:"has_container"`
	IsDetail     bool `json:"is_detail"`
}

// Classify evaluates the listing and detail markers of doc once.
func Classify(doc *goquery.Document) Classification {
	var c Classification
	if doc == nil {
		return c
	}
	_, c.HasContainer = extract.FirstPresent(doc, containerLocators)
	c.IsDetail = true
	for _, l := range detailMarkers {
		if !l.Present(doc) {
			c.IsDetail = false
			break
		}
	}
	c.IsListing = c.HasContainer && !c.IsDetail
	return c
}

// Discover returns the item links of a listing page, in document order.
// The first link candidate with any match is used alone. Promoted items
// are skipped, URLs are made absolute against the page URL and duplicates
// dropped. No match yields an empty slice, not an error.
func Discover(doc *goquery.Document) []models.Target {
	targets := []models.Target{}
	if doc == nil {
		return targets
	}
	cand, ok := extract.FirstPresent(doc, linkCandidates)
	if !ok {
		return targets
	}

	base := doc.Url
	seen := make(map[string]struct{})
	cand.Find(doc).Each(func(_ int, s *goquery.Selection) {
		if s.Find(promoted).Length() > 0 || s.Closest(promoted).Length() > 0 {
			return
		}
		href, ok := s.Attr("href")
		if !ok {
			return
		}
		abs, ok := resolve(base, href)
		if !ok {
			return
		}
		if _, dup := seen[abs]; dup {
			return
		}
		seen[abs] = struct{}{}
		targets = append(targets, models.Target{URL: abs, Position: len(targets)})
	})

	slog.Debug("targets discovered", "candidate", cand.Selector, "count", len(targets))
	return targets
}

func resolve(base *url.URL, href string) (string, bool) {
	href = strings.TrimSpace(href)
	if href == "" || strings.HasPrefix(href, "#") {
		return "", false
	}
	u, err := url.Parse(href)
	if err != nil {
		return "", false
	}
	if base != nil {
		u = base.ResolveReference(u)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", false
	}
	if u.Host == "" {
		return "", false
	}
	u.Fragment = ""
	return u.String(), true
}
