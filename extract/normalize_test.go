package extract

import (
	"regexp"
	"testing"
)

func TestParseDigits(t *testing.T) {
	tests := []struct {
		in     string
		want   int64
		wantOK bool
	}{
		{"1088000", 1088000, true},
		{"1.088.000 €", 1088000, true},
		{"€ 250.000", 250000, true},
		{"1.200,50", 120050, true},
		{"1 200 000", 1200000, true},
		{"1\u00a0200\u00a0000", 1200000, true},
		{"0", 0, true},
		{"Prezzo su richiesta", 0, false},
		{"", 0, false},
		{"- €", 0, false},
		{"99999999999999999999999", 0, false},
	}
	for _, tt := range tests {
		got, ok := ParseDigits(tt.in)
		if ok != tt.wantOK || got != tt.want {
			t.Errorf("ParseDigits(%q) = %d, %v; want %d, %v", tt.in, got, ok, tt.want, tt.wantOK)
		}
	}
}

func TestCollapseSpace(t *testing.T) {
	if got := CollapseSpace("  +39 \n 333\t1234567  "); got != "+39 333 1234567" {
		t.Errorf("CollapseSpace = %q", got)
	}
	if got := CollapseSpace(" \n\t "); got != "" {
		t.Errorf("CollapseSpace of blanks = %q, want empty", got)
	}
}

func TestPhone(t *testing.T) {
	phone := Phone(6)
	tests := []struct {
		in     string
		want   string
		wantOK bool
	}{
		{"  333 123 4567 ", "333 123 4567", true},
		{"123456", "123456", true},
		{"12345", "", false},
		{"Mostra telefono", "", false},
		{"", "", false},
	}
	for _, tt := range tests {
		got, ok := phone(tt.in)
		if ok != tt.wantOK || got != tt.want {
			t.Errorf("Phone(%q) = %q, %v; want %q, %v", tt.in, got, ok, tt.want, tt.wantOK)
		}
	}
}

func TestCounted(t *testing.T) {
	rooms := Counted(regexp.MustCompile(`(\d+)\s*local[ei]`))
	surface := Counted(surfacePattern)
	tests := []struct {
		name   string
		fn     func(string) (int, bool)
		in     string
		want   int
		wantOK bool
	}{
		{"rooms plural", rooms, "3 locali", 3, true},
		{"rooms singular", rooms, "1 Locale", 1, true},
		{"rooms zero rejected", rooms, "0 locali", 0, false},
		{"rooms absent", rooms, "2 bagni", 0, false},
		{"surface superscript", surface, "90 m²", 90, true},
		{"surface ascii", surface, "120m2", 120, true},
		{"surface grouped", surface, "1.200 m²", 1200, true},
		{"surface absent", surface, "piano 3", 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := tt.fn(tt.in)
			if ok != tt.wantOK || got != tt.want {
				t.Errorf("got %d, %v; want %d, %v", got, ok, tt.want, tt.wantOK)
			}
		})
	}
}
