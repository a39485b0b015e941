// Package probe drives a running trends server through the full selection
// flow and checks that the views agree with each other.
package probe

import (
	"errors"
	"time"
)

var (
	// ErrUnhealthy is returned when /healthz does not answer 200.
	ErrUnhealthy = errors.New("probe: service unhealthy")
	// ErrUnexpectedStatus is returned for any other non-success answer.
	ErrUnexpectedStatus = errors.New("probe: unexpected status")
	// ErrInconsistent is returned when views disagree.
	ErrInconsistent = errors.New("probe: inconsistent series")
)

// Config holds configuration for a probe run.
type Config struct {
	BaseURL string        // Base URL of the service
	Workers int           // Organizations checked concurrently
	Timeout time.Duration // Per-request timeout
	Output  string        // Optional JSON report file
	Verbose bool          // Log every organization checked
}

// Choices mirrors the reload response.
type Choices struct {
	Organizations []string `json:"organizations"`
	IssueModes    []string `json:"issue_modes"`
}

// Point mirrors one series point.
type Point struct {
	Organization string  `json:"organization,omitempty"`
	IssueType    string  `json:"issue_type,omitempty"`
	Quarter      string  `json:"quarter"`
	Label        string  `json:"label"`
	Value        float64 `json:"value"`
}

// Selection mirrors a view response.
type Selection struct {
	Status string  `json:"status"`
	Series []Point `json:"series"`
	Trend  []Point `json:"trend"`
}

// Report summarizes a probe run.
type Report struct {
	SessionID     string        `json:"session_id"`
	Organizations int           `json:"organizations"`
	IssueModes    int           `json:"issue_modes"`
	Checked       int           `json:"checked"`
	Empty         int           `json:"empty"`
	Mismatches    []string      `json:"mismatches,omitempty"`
	StartTime     time.Time     `json:"start_time"`
	Duration      time.Duration `json:"duration_ns"`
}
