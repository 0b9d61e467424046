package extract

import (
	"regexp"
	"time"
)

var (
	surfacePattern = regexp.MustCompile(`(\d[\d.,]*)\s*m(?:²|2|q)`)
	roomsPattern   = regexp.MustCompile(`(\d+)\s*local[ei]`)
)

// Fields holds the strategy chains for every record field.
type Fields struct {
	Price    Chain[int64]
	Surface  Chain[int]
	Rooms    Chain[int]
	Location Chain[string]

	// Contact is polled after one of Reveal has been clicked.
	Contact Chain[string]
	Reveal  []Locator
}

// DefaultFields returns the built-in chains for Italian real-estate
// listing pages.
func DefaultFields() Fields {
	price := AttrOrText("data-price")
	return Fields{
		Price: Chain[int64]{
			MustStrategy("data-price", "span[data-price]", price, Amount),
			MustStrategy("price-features", "span.price-features__price", FirstText, Amount),
			MustStrategy("bold-data-price", "span.txt-bold[data-price]", price, Amount),
			MustStrategy("h3-simulated", "span.h3-simulated", FirstText, Amount),
			MustStrategy("info-data-price", ".info-data-price", FirstText, Amount),
			MustStrategy("price", ".price", FirstText, Amount),
			MustStrategy("h1", "span.h1", FirstText, Amount),
		},
		Surface: Chain[int]{
			MustStrategy("details-surface", ".details-property li", EachText, Counted(surfacePattern)),
			MustStrategy("features-surface", ".info-features span", EachText, Counted(surfacePattern)),
		},
		Rooms: Chain[int]{
			MustStrategy("details-rooms", ".details-property li", EachText, Counted(roomsPattern)),
			MustStrategy("features-rooms", ".info-features span", EachText, Counted(roomsPattern)),
		},
		Location: Chain[string]{
			MustStrategy("header-map", "#headerMap .header-map-list", Joined(", "), Text),
			MustStrategy("breadcrumb", ".breadcrumb-navigation a, .breadcrumb a", Tail(3, ", ", "Home", "Annunci"), Text),
		},
		Contact: Chain[string]{
			MustStrategy("bold-big", ".txt-bold.txt-big", EachText, Phone(6)),
			MustStrategy("phone-number", ".phone-number", EachText, Phone(6)),
			MustStrategy("show-phone-number", ".show-phone-number span", EachText, Phone(6)),
			MustStrategy("show-phone", ".show-phone span", EachText, Phone(6)),
			MustStrategy("phone-content", ".phone-content", EachText, Phone(6)),
			MustStrategy("phone-number-content", ".phone-number-content", EachText, Phone(6)),
			MustStrategy("tracked-phone", `p[data-track-click="SHOW_PHONE"]`, EachText, Phone(6)),
		},
		Reveal: MustLocators(
			"a.see-phones-btn.icon-phone",
			".see-phones-btn.icon-phone",
			".hidden-contact-phones_link",
			`a[role="button"].see-phones-btn`,
		),
	}
}

// Options bounds the contact polling loop.
type Options struct {
	PollInterval time.Duration
	PollAttempts int
}

// DefaultOptions polls five times at 500ms.
func DefaultOptions() Options {
	return Options{PollInterval: 500 * time.Millisecond, PollAttempts: 5}
}
