// Package export serialises harvested records as tab-delimited text, JSON
// or CSV, and reads those files back.
package export

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/use-agent/harvester/models"
)

// Format is an export serialisation.
type Format string

const (
	FormatTXT  Format = "txt"
	FormatJSON Format = "json"
	FormatCSV  Format = "csv"
)

// Header is the column row shared by the delimited formats.
var Header = []string{"URL", "Price (EUR)", "Address", "Phone", "Surface Area (m²)", "Rooms", "Message Sent"}

// ParseFormat accepts "txt", "json" or "csv", case-insensitively.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case FormatTXT, FormatJSON, FormatCSV:
		return f, nil
	case "":
		return FormatCSV, nil
	}
	return "", models.NewHarvestError(models.ErrCodeInvalidInput, fmt.Sprintf("unknown export format %q", s), nil)
}

// ContentType returns the MIME type served for f.
func (f Format) ContentType() string {
	switch f {
	case FormatJSON:
		return "application/json; charset=utf-8"
	case FormatCSV:
		return "text/csv; charset=utf-8"
	default:
		return "text/plain; charset=utf-8"
	}
}

// Filename returns a timestamped download name such as
// property-data-2026-01-02T03-04-05Z.csv.
func Filename(f Format, t time.Time) string {
	stamp := strings.NewReplacer(":", "-", ".", "-").Replace(t.UTC().Format(time.RFC3339))
	return "property-data-" + stamp + "." + string(f)
}

// Write serialises records to w. Unknown fields are written as empty
// strings in the delimited formats and omitted in JSON.
func Write(w io.Writer, f Format, records []*models.Record) error {
	switch f {
	case FormatJSON:
		if records == nil {
			records = []*models.Record{}
		}
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(records)
	case FormatCSV:
		return writeDelimited(w, ',', records)
	case FormatTXT:
		return writeDelimited(w, '\t', records)
	}
	return fmt.Errorf("export: unsupported format %q", f)
}

// Read parses a file produced by Write.
func Read(r io.Reader, f Format) ([]*models.Record, error) {
	switch f {
	case FormatJSON:
		var records []*models.Record
		if err := json.NewDecoder(r).Decode(&records); err != nil {
			return nil, fmt.Errorf("export: decode json: %w", err)
		}
		return records, nil
	case FormatCSV:
		return readDelimited(r, ',')
	case FormatTXT:
		return readDelimited(r, '\t')
	}
	return nil, fmt.Errorf("export: unsupported format %q", f)
}

// ReadCSV parses CSV rows back into records; empty cells are unknown.
func ReadCSV(r io.Reader) ([]*models.Record, error) {
	return readDelimited(r, ',')
}

func writeDelimited(w io.Writer, comma rune, records []*models.Record) error {
	cw := csv.NewWriter(w)
	cw.Comma = comma
	if err := cw.Write(Header); err != nil {
		return err
	}
	for _, rec := range records {
		if rec == nil {
			continue
		}
		if err := cw.Write(row(rec)); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func row(rec *models.Record) []string {
	sent := "No"
	if rec.InteractionCompleted {
		sent = "Yes"
	}
	return []string{
		rec.SourceURL,
		formatInt(rec.Price),
		formatString(rec.Location),
		formatString(rec.Contact),
		formatInt(rec.SurfaceArea),
		formatInt(rec.RoomCount),
		sent,
	}
}

func readDelimited(r io.Reader, comma rune) ([]*models.Record, error) {
	cr := csv.NewReader(r)
	cr.Comma = comma
	cr.FieldsPerRecord = len(Header)

	rows, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("export: read rows: %w", err)
	}
	if len(rows) == 0 {
		return []*models.Record{}, nil
	}
	if rows[0][0] == Header[0] {
		rows = rows[1:]
	}

	records := make([]*models.Record, 0, len(rows))
	for i, cols := range rows {
		rec, err := parseRow(cols)
		if err != nil {
			return nil, fmt.Errorf("export: row %d: %w", i+1, err)
		}
		records = append(records, rec)
	}
	return records, nil
}

func parseRow(cols []string) (*models.Record, error) {
	rec := models.NewRecord(cols[0])
	var err error
	if rec.Price, err = parseInt[int64](cols[1]); err != nil {
		return nil, fmt.Errorf("price: %w", err)
	}
	rec.Location = parseString(cols[2])
	rec.Contact = parseString(cols[3])
	if rec.SurfaceArea, err = parseInt[int](cols[4]); err != nil {
		return nil, fmt.Errorf("surface area: %w", err)
	}
	if rec.RoomCount, err = parseInt[int](cols[5]); err != nil {
		return nil, fmt.Errorf("rooms: %w", err)
	}
	rec.InteractionCompleted = strings.EqualFold(cols[6], "yes")
	return rec, nil
}

func formatInt[T int | int64](v *T) string {
	if v == nil {
		return ""
	}
	return strconv.FormatInt(int64(*v), 10)
}

func formatString(v *string) string {
	if v == nil {
		return ""
	}
	return *v
}

func parseInt[T int | int64](s string) (*T, error) {
	if s == "" {
		return nil, nil
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return nil, err
	}
	v := T(n)
	return &v, nil
}

func parseString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
