package models

// HarvestRequest is the payload for POST /api/v1/harvest.
type HarvestRequest struct {
	// URL is the start page: a listing of targets or a single target. Required.
	URL string `json:"url" binding:"required,url"`

	// SendMessage enables the scripted contact-form interaction on every
	// target. Default: the server's configured value.
	SendMessage *bool `json:"send_message,omitempty"`

	// BatchSize overrides the concurrency window. 1 means sequential.
	BatchSize int `json:"batch_size,omitempty" binding:"omitempty,min=1,max=10"`
}

// HarvestResponse acknowledges that a run started.
type HarvestResponse struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

// StateResponse is the body of GET /api/v1/harvest/state.
type StateResponse struct {
	State   RunState `json:"state"`
	Summary string   `json:"summary"`
}

// HealthResponse is the response for GET /api/v1/health.
type HealthResponse struct {
	Status      string `json:"status"`
	Uptime      string `json:"uptime"`
	ActivePages int    `json:"active_pages"`
	Running     bool   `json:"running"`
	Version     string `json:"version"`
}
