package export

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/use-agent/harvester/models"
)

func ptr[T any](v T) *T { return &v }

func sample() []*models.Record {
	return []*models.Record{
		{
			SourceURL:   "https://www.example.it/immobile/1/",
			Price:       ptr(int64(1200000)),
			Location:    ptr("Roma, Parioli, Via Antonelli"),
			SurfaceArea: ptr(90),
			RoomCount:   ptr(3),
		},
		{
			SourceURL:            "https://www.example.it/immobile/2/",
			Contact:              ptr("333 123 4567"),
			Price:                ptr(int64(0)),
			InteractionCompleted: true,
		},
	}
}

func TestWrite_CSV(t *testing.T) {
	var buf bytes.Buffer
	if err := Write(&buf, FormatCSV, sample()); err != nil {
		t.Fatalf("Write: %v", err)
	}
	want := "URL,Price (EUR),Address,Phone,Surface Area (m²),Rooms,Message Sent\n" +
		"https://www.example.it/immobile/1/,1200000,\"Roma, Parioli, Via Antonelli\",,90,3,No\n" +
		"https://www.example.it/immobile/2/,0,,333 123 4567,,,Yes\n"
	if buf.String() != want {
		t.Errorf("csv =\n%s\nwant\n%s", buf.String(), want)
	}
	if strings.Contains(buf.String(), "null") {
		t.Error("unknown fields must not render as null")
	}
}

func TestWrite_TXT(t *testing.T) {
	var buf bytes.Buffer
	if err := Write(&buf, FormatTXT, sample()[:1]); err != nil {
		t.Fatalf("Write: %v", err)
	}
	lines := strings.Split(strings.TrimSuffix(buf.String(), "\n"), "\n")
	if len(lines) != 2 {
		t.Fatalf("got %d lines", len(lines))
	}
	if lines[0] != "URL\tPrice (EUR)\tAddress\tPhone\tSurface Area (m²)\tRooms\tMessage Sent" {
		t.Errorf("header = %q", lines[0])
	}
	if lines[1] != "https://www.example.it/immobile/1/\t1200000\tRoma, Parioli, Via Antonelli\t\t90\t3\tNo" {
		t.Errorf("row = %q", lines[1])
	}
}

func TestWrite_JSONEmpty(t *testing.T) {
	var buf bytes.Buffer
	if err := Write(&buf, FormatJSON, nil); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if strings.TrimSpace(buf.String()) != "[]" {
		t.Errorf("json = %q, want []", buf.String())
	}
}

func TestRoundTrip(t *testing.T) {
	for _, f := range []Format{FormatCSV, FormatTXT, FormatJSON} {
		t.Run(string(f), func(t *testing.T) {
			var buf bytes.Buffer
			if err := Write(&buf, f, sample()); err != nil {
				t.Fatalf("Write: %v", err)
			}
			got, err := Read(&buf, f)
			if err != nil {
				t.Fatalf("Read: %v", err)
			}
			want := sample()
			if len(got) != len(want) {
				t.Fatalf("got %d records, want %d", len(got), len(want))
			}

			a := got[0]
			if a.SourceURL != want[0].SourceURL || *a.Price != 1200000 || *a.SurfaceArea != 90 || *a.RoomCount != 3 {
				t.Errorf("record 0 = %+v", a)
			}
			if a.Contact != nil {
				t.Errorf("unknown contact came back as %q", *a.Contact)
			}
			if *a.Location != "Roma, Parioli, Via Antonelli" {
				t.Errorf("location = %q", *a.Location)
			}

			b := got[1]
			if b.Price == nil || *b.Price != 0 {
				t.Error("zero price must survive as a real value")
			}
			if !b.InteractionCompleted || b.SurfaceArea != nil || *b.Contact != "333 123 4567" {
				t.Errorf("record 1 = %+v", b)
			}
		})
	}
}

func TestReadCSV_Invalid(t *testing.T) {
	in := strings.Join(Header, ",") + "\nhttps://x/,abc,,,,,No\n"
	if _, err := ReadCSV(strings.NewReader(in)); err == nil {
		t.Error("expected error for non-numeric price")
	}
	if _, err := ReadCSV(strings.NewReader("a,b\n")); err == nil {
		t.Error("expected error for wrong column count")
	}
}

func TestParseFormat(t *testing.T) {
	tests := []struct {
		in      string
		want    Format
		wantErr bool
	}{
		{"csv", FormatCSV, false},
		{"JSON", FormatJSON, false},
		{" txt ", FormatTXT, false},
		{"", FormatCSV, false},
		{"xlsx", "", true},
	}
	for _, tt := range tests {
		got, err := ParseFormat(tt.in)
		if (err != nil) != tt.wantErr || got != tt.want {
			t.Errorf("ParseFormat(%q) = %q, %v", tt.in, got, err)
		}
	}
}

func TestFilename(t *testing.T) {
	got := Filename(FormatTXT, time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC))
	if got != "property-data-2026-01-02T03-04-05Z.txt" {
		t.Errorf("Filename = %q", got)
	}
}
