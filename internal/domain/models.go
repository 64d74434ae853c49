package domain

import "time"

// Operation names the user action that produced an exchange.
type Operation string

const (
	OperationGet  Operation = "get"
	OperationPost Operation = "post"
)

// Exchange records one completed submission: what was sent and how it ended.
// The response text only ever lives in the display target; an exchange keeps
// its size, never its content.
type Exchange struct {
	ID         string        `json:"id"`
	Operation  Operation     `json:"operation"`
	Method     string        `json:"method"`
	URL        string        `json:"url"`
	Name       string        `json:"name"`
	Target     string        `json:"target"`
	StatusCode int           `json:"status_code,omitempty"`
	Bytes      int           `json:"bytes"`
	Error      string        `json:"error,omitempty"`
	Rendered   bool          `json:"rendered"`
	StartedAt  time.Time     `json:"started_at"`
	Duration   time.Duration `json:"duration_ns"`
}

// Failed reports whether the request never produced a response.
func (e Exchange) Failed() bool { return e.Error != "" }
