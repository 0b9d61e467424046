package models

// Target is one discovered destination page. Position is the index at which
// discovery found it; it carries no ordering guarantee for results.
type Target struct {
	URL      string `json:"url"`
	Position int    `json:"position"`
}

// Record is the outcome of harvesting one Target.
//
// Optional fields are nil when unknown. Zero is a real value, never a
// placeholder for "not found". SourceURL is always populated.
type Record struct {
	SourceURL            string  `json:"source_url"`
	Price                *int64  `json:"price,omitempty"`
	Location             *string `json:"location,omitempty"`
	Contact              *string `json:"contact,omitempty"`
	SurfaceArea          *int    `json:"surface_area,omitempty"`
	RoomCount            *int    `json:"room_count,omitempty"`
	InteractionCompleted bool    `json:"interaction_completed"`
}

// NewRecord returns a Record with only the source URL set.
func NewRecord(sourceURL string) *Record {
	return &Record{SourceURL: sourceURL}
}

// Clone returns a deep copy so callers can hand records across goroutines.
func (r *Record) Clone() *Record {
	if r == nil {
		return nil
	}
	c := &Record{
		SourceURL:            r.SourceURL,
		InteractionCompleted: r.InteractionCompleted,
	}
	if r.Price != nil {
		v := *r.Price
		c.Price = &v
	}
	if r.Location != nil {
		v := *r.Location
		c.Location = &v
	}
	if r.Contact != nil {
		v := *r.Contact
		c.Contact = &v
	}
	if r.SurfaceArea != nil {
		v := *r.SurfaceArea
		c.SurfaceArea = &v
	}
	if r.RoomCount != nil {
		v := *r.RoomCount
		c.RoomCount = &v
	}
	return c
}
