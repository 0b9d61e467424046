package discovery

import (
	"net/url"
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"
)

func docAt(t *testing.T, pageURL, html string) *goquery.Document {
	t.Helper()
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if pageURL != "" {
		u, err := url.Parse(pageURL)
		if err != nil {
			t.Fatalf("parse url: %v", err)
		}
		doc.Url = u
	}
	return doc
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		html string
		want Classification
	}{
		{
			name: "listing",
			html: `<div class="items-container"><article class="item"></article></div>`,
			want: Classification{IsListing: true, HasContainer: true},
		},
		{
			name: "detail",
			html: `<span class="txt-bold">€ 1</span><a class="icon-phone"></a>`,
			want: Classification{IsDetail: true},
		},
		{
			name: "detail with related items container",
			html: `<div class="items-container"></div><span class="txt-bold"></span><a class="icon-phone"></a>`,
			want: Classification{HasContainer: true, IsDetail: true},
		},
		{
			name: "only one detail marker",
			html: `<div class="items-container"></div><span class="txt-bold"></span>`,
			want: Classification{IsListing: true, HasContainer: true},
		},
		{
			name: "neither",
			html: `<p>hello</p>`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Classify(docAt(t, "", tt.html)); got != tt.want {
				t.Errorf("Classify = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestDiscover(t *testing.T) {
	html := `<div class="items-container">
		<article class="item"><a class="item-link" href="/immobile/1/">uno</a></article>
		<article class="item"><a class="item-link" href="https://www.example.it/immobile/2/">due</a></article>
		<article class="item listing-alert"><a class="item-link" href="/immobile/promo/">promo</a></article>
		<article class="item"><a class="item-link" href="/immobile/3/"><span class="listing-alert">Top</span></a></article>
		<article class="item"><a class="item-link" href="/immobile/1/#foto">dup</a></article>
		<article class="item"><a class="item-link" href="javascript:void(0)">js</a></article>
		<article class="item"><a class="item-link">no href</a></article>
		<article class="item"><a class="item-link" href="immobile/4/">rel</a></article>
	</div>`
	got := Discover(docAt(t, "https://www.example.it/vendita-case/roma/", html))

	want := []string{
		"https://www.example.it/immobile/1/",
		"https://www.example.it/immobile/2/",
		"https://www.example.it/vendita-case/roma/immobile/4/",
	}
	if len(got) != len(want) {
		t.Fatalf("Discover returned %d targets %v, want %d", len(got), got, len(want))
	}
	for i, w := range want {
		if got[i].URL != w {
			t.Errorf("target[%d] = %q, want %q", i, got[i].URL, w)
		}
		if got[i].Position != i {
			t.Errorf("target[%d].Position = %d", i, got[i].Position)
		}
	}
}

func TestDiscover_FirstCandidateOnly(t *testing.T) {
	html := `<div class="items-container"><a class="item-link" href="/a/">a</a></div>
		<article class="item"><a class="item-link" href="/b/">b</a></article>`
	got := Discover(docAt(t, "https://www.example.it/", html))
	if len(got) != 1 || got[0].URL != "https://www.example.it/a/" {
		t.Errorf("Discover = %v", got)
	}
}

func TestDiscover_SecondCandidate(t *testing.T) {
	html := `<section><article class="item"><a class="item-link" href="/b/">b</a></article></section>`
	got := Discover(docAt(t, "https://www.example.it/", html))
	if len(got) != 1 || got[0].URL != "https://www.example.it/b/" {
		t.Errorf("Discover = %v", got)
	}
}

func TestDiscover_Empty(t *testing.T) {
	got := Discover(docAt(t, "https://www.example.it/", `<div class="items-container"></div>`))
	if got == nil || len(got) != 0 {
		t.Errorf("Discover = %#v, want empty non-nil slice", got)
	}
	if got := Discover(nil); got == nil || len(got) != 0 {
		t.Errorf("Discover(nil) = %#v", got)
	}
}
