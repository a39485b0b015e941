// Package aggregate turns normalized records into chart series.
//
// Every function here is pure: records are read, never modified, so one
// dataset snapshot can serve concurrent callers without locking. Records
// without an organization never contribute to a series.
package aggregate

import (
	"cmp"
	"fmt"
	"slices"
	"strings"

	"github.com/samber/lo"

	"github.com/secondvote/trends/internal/domain/model"
	"github.com/secondvote/trends/internal/domain/quarter"
	"github.com/secondvote/trends/internal/domain/stats"
)

// Breakdown is the per-issue-type series of one organization together with
// its weighted geometric mean trend.
type Breakdown struct {
	Series []model.SeriesPoint `json:"series"`
	Trend  []model.SeriesPoint `json:"trend"`
}

type groupKey struct {
	organization string
	issueType    string
	quarter      quarter.Label
}

// ValidateOrganization reports ErrEmptySelection for an unset organization.
func ValidateOrganization(organization string) error {
	if strings.TrimSpace(organization) == "" {
		return fmt.Errorf("%w: no organization selected", ErrEmptySelection)
	}
	return nil
}

// ValidateMulti reports ErrEmptySelection unless at least one organization
// and an issue mode are selected.
func ValidateMulti(organizations []string, issueMode string) error {
	if len(selected(organizations)) == 0 {
		return fmt.Errorf("%w: no organizations selected", ErrEmptySelection)
	}
	if strings.TrimSpace(issueMode) == "" {
		return fmt.Errorf("%w: no issue mode selected", ErrEmptySelection)
	}
	return nil
}

// HistogramSeries sums the scores of one organization per quarter.
func HistogramSeries(records []model.Record, organization string) ([]model.SeriesPoint, error) {
	if err := ValidateOrganization(organization); err != nil {
		return nil, err
	}
	rows := ofOrganization(records, organization)
	if len(rows) == 0 {
		return nil, fmt.Errorf("%w: no records for organization %q", ErrEmptySelection, organization)
	}

	byQuarter := lo.GroupBy(rows, func(r model.Record) quarter.Label { return r.Quarter })
	points := make([]model.SeriesPoint, 0, len(byQuarter))
	for q, group := range byQuarter {
		points = append(points, model.SeriesPoint{Quarter: q, Value: sumScores(group)})
	}
	sortPoints(points)
	return points, nil
}

// MultiOrganizationTrend computes the weighted geometric mean of scores per
// organization and quarter. With WeightedMeanMode every issue type counts;
// any other issue mode restricts the records to that issue type first.
func MultiOrganizationTrend(records []model.Record, organizations []string, issueMode string) ([]model.SeriesPoint, error) {
	if err := ValidateMulti(organizations, issueMode); err != nil {
		return nil, err
	}
	orgs := lo.SliceToMap(selected(organizations), func(o string) (string, struct{}) { return o, struct{}{} })
	allIssues := issueMode == model.WeightedMeanMode

	rows := lo.Filter(records, func(r model.Record, _ int) bool {
		if !r.HasOrganization {
			return false
		}
		if _, ok := orgs[r.Organization]; !ok {
			return false
		}
		return allIssues || r.IssueType == issueMode
	})
	if len(rows) == 0 {
		return nil, fmt.Errorf("%w: no records for %d organizations in issue mode %q", ErrEmptySelection, len(orgs), issueMode)
	}

	groups := lo.GroupBy(rows, func(r model.Record) groupKey {
		return groupKey{organization: r.Organization, quarter: r.Quarter}
	})
	points := make([]model.SeriesPoint, 0, len(groups))
	for k, group := range groups {
		v, err := stats.WeightedGeometricMean(scores(group))
		if err != nil {
			return nil, fmt.Errorf("organization %q quarter %s: %w", k.organization, k.quarter, err)
		}
		points = append(points, model.SeriesPoint{Organization: k.organization, Quarter: k.quarter, Value: v})
	}
	sortPoints(points)
	return points, nil
}

// IssueBreakdownWithTrend sums one organization's scores per issue type and
// quarter, and computes the weighted geometric mean over all of its scores
// per quarter as the overlay trend.
func IssueBreakdownWithTrend(records []model.Record, organization string) (Breakdown, error) {
	if err := ValidateOrganization(organization); err != nil {
		return Breakdown{}, err
	}
	rows := ofOrganization(records, organization)
	if len(rows) == 0 {
		return Breakdown{}, fmt.Errorf("%w: no records for organization %q", ErrEmptySelection, organization)
	}

	byIssue := lo.GroupBy(rows, func(r model.Record) groupKey {
		return groupKey{issueType: r.IssueType, quarter: r.Quarter}
	})
	series := make([]model.SeriesPoint, 0, len(byIssue))
	for k, group := range byIssue {
		series = append(series, model.SeriesPoint{IssueType: k.issueType, Quarter: k.quarter, Value: sumScores(group)})
	}

	byQuarter := lo.GroupBy(rows, func(r model.Record) quarter.Label { return r.Quarter })
	trend := make([]model.SeriesPoint, 0, len(byQuarter))
	for q, group := range byQuarter {
		v, err := stats.WeightedGeometricMean(scores(group))
		if err != nil {
			return Breakdown{}, fmt.Errorf("organization %q quarter %s: %w", organization, q, err)
		}
		trend = append(trend, model.SeriesPoint{Quarter: q, Value: v})
	}

	sortPoints(series)
	sortPoints(trend)
	return Breakdown{Series: series, Trend: trend}, nil
}

func ofOrganization(records []model.Record, organization string) []model.Record {
	return lo.Filter(records, func(r model.Record, _ int) bool {
		return r.HasOrganization && r.Organization == organization
	})
}

// selected drops blank and repeated organization names.
func selected(organizations []string) []string {
	return lo.Uniq(lo.Filter(organizations, func(o string, _ int) bool {
		return strings.TrimSpace(o) != ""
	}))
}

func scores(rows []model.Record) []float64 {
	return lo.Map(rows, func(r model.Record, _ int) float64 { return r.Score })
}

func sumScores(rows []model.Record) float64 {
	return lo.SumBy(rows, func(r model.Record) float64 { return r.Score })
}

// sortPoints orders by quarter, then organization, then issue type.
func sortPoints(points []model.SeriesPoint) {
	slices.SortFunc(points, func(a, b model.SeriesPoint) int {
		return cmp.Or(
			cmp.Compare(a.Quarter, b.Quarter),
			cmp.Compare(a.Organization, b.Organization),
			cmp.Compare(a.IssueType, b.IssueType),
		)
	})
}
