// Package model contains domain models passed between layers.
package model

import (
	"slices"
	"time"

	"github.com/secondvote/trends/internal/domain/quarter"
)

// WeightedMeanMode is the synthetic issue mode that aggregates every issue
// type with the weighted geometric mean. It is always the first issue mode.
const WeightedMeanMode = "weighted geometric mean"

// RawEvent is one "score" row from the action log.
type RawEvent struct {
	ID         string  // log row id
	ParentID   string  // organization id, from new_value.parent_id
	IssueID    string  // issue type id; empty when the store has none
	ChangeDate int64   // epoch milliseconds
	Score      float64 // new_value.score
}

// Organization is reference data keyed by id.
type Organization struct {
	ID   string
	Name string
}

// IssueType is reference data keyed by id.
type IssueType struct {
	ID   string
	Name string
}

// Record is a score event joined with its organization and issue type and
// annotated with its quarter.
type Record struct {
	EventID string
	// Organization is meaningful only when HasOrganization is set; events
	// whose parent id matched no organization are kept with it unset.
	Organization    string
	HasOrganization bool
	IssueType       string
	Quarter         quarter.Label
	ChangeDate      int64
	Score           float64
}

// Dataset is one session's normalized table plus the selectable choices.
type Dataset struct {
	Records []Record
	// Organizations is sorted ascending without duplicates.
	Organizations []string
	// IssueModes starts with WeightedMeanMode followed by issue type names
	// in store order.
	IssueModes []string
	LoadedAt   time.Time
}

// Choices returns the dropdown options for the dataset.
func (d *Dataset) Choices() Choices {
	return Choices{
		Organizations: slices.Clone(d.Organizations),
		IssueModes:    slices.Clone(d.IssueModes),
	}
}

// Choices are the selectable values produced by a reload.
type Choices struct {
	Organizations []string `json:"organizations"`
	IssueModes    []string `json:"issue_modes"`
}

// SeriesPoint is one value of a chart series. Organization and IssueType are
// set only for series keyed by them.
type SeriesPoint struct {
	Organization string        `json:"organization,omitempty"`
	IssueType    string        `json:"issue_type,omitempty"`
	Quarter      quarter.Label `json:"quarter"`
	Value        float64       `json:"value"`
}
