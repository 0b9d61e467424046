package extract

import (
	"context"
	"testing"
	"time"

	"github.com/use-agent/harvester/browser"
	"github.com/use-agent/harvester/browser/browsertest"
)

const detailURL = "https://www.example.it/annunci/123/"

const detailHTML = `<html><body>
<div class="info-data">
  <span class="info-data-price">€ 1.088.000</span>
</div>
<div id="headerMap">
  <span class="header-map-list">Roma</span>
  <span class="header-map-list">Parioli</span>
  <span class="header-map-list">Via Antonelli</span>
</div>
<ul class="details-property">
  <li>2 bagni</li>
  <li>90 m²</li>
  <li>3 locali</li>
</ul>
<a class="see-phones-btn icon-phone" href="#">Mostra telefono</a>
<p class="phone-placeholder"></p>
</body></html>`

const revealedPhone = `<p class="phone-number"> 333 123  4567 </p>`

func fastOptions() Options {
	return Options{PollInterval: 5 * time.Millisecond, PollAttempts: 5}
}

func open(t *testing.T, host *browsertest.Host, url string) *browsertest.Page {
	t.Helper()
	p, err := host.Open(context.Background(), url, browser.OpenOptions{Background: true})
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	return p.(*browsertest.Page)
}

func TestExtract_AllFields(t *testing.T) {
	host := browsertest.New()
	host.Serve(detailURL, browsertest.Fixture{
		HTML: detailHTML,
		OnClick: map[string]browsertest.Hook{
			"a.see-phones-btn.icon-phone": func(p *browsertest.Page) {
				p.ReplaceHTML(`<p class="phone-placeholder"></p>`, revealedPhone)
			},
		},
	})
	page := open(t, host, detailURL)

	rec := New(DefaultFields(), fastOptions()).Extract(context.Background(), page)

	if rec.SourceURL != detailURL {
		t.Errorf("SourceURL = %q", rec.SourceURL)
	}
	if rec.Price == nil || *rec.Price != 1088000 {
		t.Errorf("Price = %v, want 1088000", rec.Price)
	}
	if rec.Location == nil || *rec.Location != "Roma, Parioli, Via Antonelli" {
		t.Errorf("Location = %v", rec.Location)
	}
	if rec.SurfaceArea == nil || *rec.SurfaceArea != 90 {
		t.Errorf("SurfaceArea = %v, want 90", rec.SurfaceArea)
	}
	if rec.RoomCount == nil || *rec.RoomCount != 3 {
		t.Errorf("RoomCount = %v, want 3", rec.RoomCount)
	}
	if rec.Contact == nil || *rec.Contact != "333 123 4567" {
		t.Errorf("Contact = %v", rec.Contact)
	}
	if n := page.CallCount("click", "a.see-phones-btn.icon-phone"); n != 1 {
		t.Errorf("reveal clicked %d times, want 1", n)
	}
}

func TestExtract_DataPriceAttributeWins(t *testing.T) {
	host := browsertest.New()
	host.Serve(detailURL, browsertest.Fixture{
		HTML: `<span class="txt-bold" data-price="1088000">1.088.000 €</span><span class="price">5</span>`,
	})
	rec := New(DefaultFields(), fastOptions()).Extract(context.Background(), open(t, host, detailURL))
	if rec.Price == nil || *rec.Price != 1088000 {
		t.Errorf("Price = %v, want 1088000", rec.Price)
	}
}

func TestExtract_PriceWithoutDigitsIsUnknown(t *testing.T) {
	host := browsertest.New()
	host.Serve(detailURL, browsertest.Fixture{HTML: `<span class="price">Trattativa riservata</span>`})
	rec := New(DefaultFields(), fastOptions()).Extract(context.Background(), open(t, host, detailURL))
	if rec.Price != nil {
		t.Errorf("Price = %d, want unknown", *rec.Price)
	}
}

func TestExtract_MissingFieldsStayUnknown(t *testing.T) {
	host := browsertest.New()
	host.Serve(detailURL, browsertest.Fixture{HTML: `<html><body><h1>Annuncio</h1></body></html>`})
	page := open(t, host, detailURL)

	rec := New(DefaultFields(), fastOptions()).Extract(context.Background(), page)
	if rec.Price != nil || rec.Location != nil || rec.Contact != nil || rec.SurfaceArea != nil || rec.RoomCount != nil {
		t.Errorf("expected every field unknown, got %+v", rec)
	}
	if rec.InteractionCompleted {
		t.Error("InteractionCompleted should be false")
	}
	if len(page.Calls()) != 0 {
		t.Errorf("no reveal control, expected no calls, got %v", page.Calls())
	}
}

func TestExtract_BoundedWaitWhenContactNeverAppears(t *testing.T) {
	host := browsertest.New()
	host.Serve(detailURL, browsertest.Fixture{HTML: detailHTML})
	page := open(t, host, detailURL)

	opts := Options{PollInterval: 20 * time.Millisecond, PollAttempts: 3}
	start := time.Now()
	rec := New(DefaultFields(), opts).Extract(context.Background(), page)
	elapsed := time.Since(start)

	if rec.Contact != nil {
		t.Errorf("Contact = %q, want unknown", *rec.Contact)
	}
	if elapsed < 60*time.Millisecond {
		t.Errorf("returned after %v, expected to poll all attempts", elapsed)
	}
	if elapsed > time.Second {
		t.Errorf("returned after %v, wait is not bounded", elapsed)
	}
	if n := page.CallCount("click", "a.see-phones-btn.icon-phone"); n != 1 {
		t.Errorf("reveal clicked %d times, want exactly 1", n)
	}
}

func TestExtract_ContactAppearsLate(t *testing.T) {
	host := browsertest.New()
	host.Serve(detailURL, browsertest.Fixture{
		HTML: detailHTML,
		OnClick: map[string]browsertest.Hook{
			"a.see-phones-btn.icon-phone": func(p *browsertest.Page) {
				time.AfterFunc(30*time.Millisecond, func() {
					p.ReplaceHTML(`<p class="phone-placeholder"></p>`, revealedPhone)
				})
			},
		},
	})
	page := open(t, host, detailURL)

	opts := Options{PollInterval: 20 * time.Millisecond, PollAttempts: 10}
	rec := New(DefaultFields(), opts).Extract(context.Background(), page)
	if rec.Contact == nil || *rec.Contact != "333 123 4567" {
		t.Errorf("Contact = %v", rec.Contact)
	}
	if n := page.CallCount("click", "a.see-phones-btn.icon-phone"); n != 1 {
		t.Errorf("reveal clicked %d times, want 1", n)
	}
}

func TestExtract_ContactIgnoresTextPresentBeforeReveal(t *testing.T) {
	const html = `<span class="txt-bold txt-big">285.000 €</span>
<a class="see-phones-btn icon-phone" href="#">Mostra telefono</a>
<p class="phone-placeholder"></p>`
	revealBig := `<span class="txt-bold txt-big">06 555 1234</span>`

	tests := []struct {
		name     string
		reveal   string
		want     string
		wantNone bool
	}{
		{name: "reveal shows nothing", wantNone: true},
		{name: "reveal adds phone-number", reveal: revealedPhone, want: "333 123 4567"},
		{name: "reveal adds bold-big", reveal: revealBig, want: "06 555 1234"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			host := browsertest.New()
			fx := browsertest.Fixture{HTML: html}
			if tt.reveal != "" {
				reveal := tt.reveal
				fx.OnClick = map[string]browsertest.Hook{
					"a.see-phones-btn.icon-phone": func(p *browsertest.Page) {
						p.ReplaceHTML(`<p class="phone-placeholder"></p>`, reveal)
					},
				}
			}
			host.Serve(detailURL, fx)
			page := open(t, host, detailURL)

			rec := New(DefaultFields(), fastOptions()).Extract(context.Background(), page)
			if tt.wantNone {
				if rec.Contact != nil {
					t.Errorf("Contact = %q, want unknown", *rec.Contact)
				}
				return
			}
			if rec.Contact == nil || *rec.Contact != tt.want {
				t.Errorf("Contact = %v, want %q", rec.Contact, tt.want)
			}
		})
	}
}

func TestExtract_Idempotent(t *testing.T) {
	ex := New(DefaultFields(), fastOptions())

	a := ex.ExtractDocument(mustDoc(t, detailHTML))
	b := ex.ExtractDocument(mustDoc(t, detailHTML))
	if *a.Price != *b.Price || *a.Location != *b.Location || *a.SurfaceArea != *b.SurfaceArea || *a.RoomCount != *b.RoomCount {
		t.Errorf("extraction not idempotent: %+v vs %+v", a, b)
	}
}

func TestExtract_DocumentFailure(t *testing.T) {
	host := browsertest.New()
	host.Serve(detailURL, browsertest.Fixture{DocumentErr: browsertest.ErrBoom})
	rec := New(DefaultFields(), fastOptions()).Extract(context.Background(), open(t, host, detailURL))
	if rec == nil || rec.SourceURL != detailURL || rec.Price != nil {
		t.Errorf("expected URL-only record, got %+v", rec)
	}
}

func TestExtract_BreadcrumbFallback(t *testing.T) {
	doc := mustDoc(t, `<nav class="breadcrumb-navigation">
		<a>Home</a><a>Annunci</a><a>Lazio</a><a>Roma</a><a>Trastevere</a></nav>`)
	rec := New(DefaultFields(), fastOptions()).ExtractDocument(doc)
	if rec.Location == nil || *rec.Location != "Lazio, Roma, Trastevere" {
		t.Errorf("Location = %v", rec.Location)
	}
}

func TestPollUntil_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	calls := 0
	_, ok := pollUntil(ctx, 5, time.Hour, func() (int, bool) {
		calls++
		return 1, true
	})
	if ok || calls != 0 {
		t.Errorf("pollUntil on cancelled ctx = %v after %d probes", ok, calls)
	}
}
