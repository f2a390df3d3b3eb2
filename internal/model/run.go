package model

import "time"

// RunStatus tracks a run through its lifecycle.
type RunStatus string

const (
	RunStatusQueued   RunStatus = "queued"
	RunStatusRunning  RunStatus = "running"
	RunStatusComplete RunStatus = "complete"
	RunStatusFailed   RunStatus = "failed"
)

// Run is one recorded execution of the answering pipeline over a form.
type Run struct {
	ID        string          `json:"id"`
	Form      string          `json:"form"`
	Status    RunStatus       `json:"status"`
	Result    *ResultDocument `json:"result,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}
