package models

import (
	"fmt"
	"time"
)

// Run statuses.
const (
	StatusRunning   = "running"
	StatusCompleted = "completed"
	StatusEmpty     = "empty"
	StatusFailed    = "failed"
)

// RunState is the observable state of one harvesting run. A new run replaces
// the previous RunState wholesale.
type RunState struct {
	ID               string    `json:"id"`
	Status           string    `json:"status"`
	StartURL         string    `json:"start_url"`
	IsRunning        bool      `json:"is_running"`
	TotalTargets     int       `json:"total_targets"`
	ProcessedTargets int       `json:"processed_targets"`
	Records          []*Record `json:"records"`
	Error            string    `json:"error,omitempty"`
	StartedAt        time.Time `json:"started_at"`
	FinishedAt       time.Time `json:"finished_at,omitempty"`
}

// Clone returns a deep copy of the state, records included.
func (s RunState) Clone() RunState {
	c := s
	c.Records = make([]*Record, len(s.Records))
	for i, r := range s.Records {
		c.Records[i] = r.Clone()
	}
	return c
}

// Summary renders the progress message shown to users.
func (s RunState) Summary() string {
	switch s.Status {
	case StatusEmpty:
		return "no targets found on listing page"
	case StatusFailed:
		if s.Error != "" {
			return fmt.Sprintf("run failed after %d/%d targets: %s", s.ProcessedTargets, s.TotalTargets, s.Error)
		}
		return fmt.Sprintf("run failed after %d/%d targets", s.ProcessedTargets, s.TotalTargets)
	case StatusCompleted:
		return fmt.Sprintf("processed %d/%d targets, %d records", s.ProcessedTargets, s.TotalTargets, len(s.Records))
	case "":
		return "no run yet"
	default:
		return fmt.Sprintf("processed %d/%d targets", s.ProcessedTargets, s.TotalTargets)
	}
}
