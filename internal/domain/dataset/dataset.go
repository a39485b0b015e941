// Package dataset builds the normalized score table a session aggregates.
package dataset

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/samber/lo"
	"golang.org/x/sync/errgroup"

	"github.com/secondvote/trends/internal/domain/model"
	"github.com/secondvote/trends/internal/domain/quarter"
	"github.com/secondvote/trends/pkg/logger"
	"github.com/secondvote/trends/pkg/metrics"
)

// Source is the read-only store the loader pulls from.
type Source interface {
	FetchScoreEvents(ctx context.Context) ([]model.RawEvent, error)
	FetchOrganizations(ctx context.Context) ([]model.Organization, error)
	FetchIssueTypes(ctx context.Context) ([]model.IssueType, error)
}

// Stats counts what happened to the fetched events during normalization.
type Stats struct {
	Fetched                 int
	Kept                    int
	WithoutOrganization     int
	DroppedUnknownIssue     int
	DroppedInvalidTimestamp int
}

// Option applies a configuration option to the Loader.
type Option func(*Loader)

// WithLogger sets the logger used to report load statistics.
func WithLogger(l logger.Logger) Option {
	return func(ld *Loader) {
		if l != nil {
			ld.logger = l
		}
	}
}

// WithClock overrides the clock stamping LoadedAt.
func WithClock(now func() time.Time) Option {
	return func(ld *Loader) {
		if now != nil {
			ld.now = now
		}
	}
}

// Loader fetches and normalizes the dataset.
type Loader struct {
	source Source
	logger logger.Logger
	now    func() time.Time
}

// NewLoader creates a loader over source.
func NewLoader(source Source, opts ...Option) *Loader {
	l := &Loader{
		source: source,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Load fetches score events, organizations and issue types concurrently and
// joins them into a Dataset. Store failures are returned unchanged in kind;
// nothing is retried.
func (l *Loader) Load(ctx context.Context) (*model.Dataset, error) {
	start := time.Now()

	var (
		events []model.RawEvent
		orgs   []model.Organization
		issues []model.IssueType
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		events, err = l.source.FetchScoreEvents(gctx)
		return err
	})
	g.Go(func() (err error) {
		orgs, err = l.source.FetchOrganizations(gctx)
		return err
	})
	g.Go(func() (err error) {
		issues, err = l.source.FetchIssueTypes(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("load dataset: %w", err)
	}

	records, stats := Normalize(events, orgs, issues)
	orgNames, issueModes := Choices(orgs, issues)
	ds := &model.Dataset{
		Records:       records,
		Organizations: orgNames,
		IssueModes:    issueModes,
		LoadedAt:      l.now(),
	}

	metrics.UpdateRecordsLoaded(stats.Kept)
	metrics.RecordDroppedRecords("unknown_issue", stats.DroppedUnknownIssue)
	metrics.RecordDroppedRecords("invalid_timestamp", stats.DroppedInvalidTimestamp)

	if l.logger != nil {
		l.logger.Info(ctx, "dataset loaded",
			logger.Int("fetched", stats.Fetched),
			logger.Int("kept", stats.Kept),
			logger.Int("withoutOrganization", stats.WithoutOrganization),
			logger.Int("droppedUnknownIssue", stats.DroppedUnknownIssue),
			logger.Int("organizations", len(orgNames)),
			logger.Int("issueTypes", len(issues)),
			logger.Duration("took", time.Since(start)),
		)
		if stats.DroppedInvalidTimestamp > 0 {
			l.logger.Warn(ctx, "dropped score events with invalid change dates",
				logger.Int("count", stats.DroppedInvalidTimestamp),
			)
		}
	}
	return ds, nil
}

// Normalize joins events to organizations (left join on parent id) and issue
// types (inner join on issue id) and derives each record's quarter. Events
// whose change date has no quarter are dropped.
func Normalize(events []model.RawEvent, orgs []model.Organization, issues []model.IssueType) ([]model.Record, Stats) {
	orgByID := lo.SliceToMap(orgs, func(o model.Organization) (string, string) { return o.ID, o.Name })
	issueByID := lo.SliceToMap(issues, func(i model.IssueType) (string, string) { return i.ID, i.Name })

	stats := Stats{Fetched: len(events)}
	records := make([]model.Record, 0, len(events))
	for _, ev := range events {
		issue, ok := issueByID[ev.IssueID]
		if !ok || ev.IssueID == "" {
			stats.DroppedUnknownIssue++
			continue
		}
		q, err := quarter.Of(ev.ChangeDate)
		if err != nil {
			if errors.Is(err, quarter.ErrInvalidTimestamp) {
				stats.DroppedInvalidTimestamp++
			}
			continue
		}
		org, hasOrg := orgByID[ev.ParentID]
		if !hasOrg {
			stats.WithoutOrganization++
		}
		records = append(records, model.Record{
			EventID:         ev.ID,
			Organization:    org,
			HasOrganization: hasOrg,
			IssueType:       issue,
			Quarter:         q,
			ChangeDate:      ev.ChangeDate,
			Score:           ev.Score,
		})
	}
	stats.Kept = len(records)
	return records, stats
}

// Choices returns the organization names sorted ascending without blanks or
// duplicates, and the issue modes: WeightedMeanMode followed by the issue
// type names in store order.
func Choices(orgs []model.Organization, issues []model.IssueType) ([]string, []string) {
	names := lo.Uniq(lo.FilterMap(orgs, func(o model.Organization, _ int) (string, bool) {
		return o.Name, strings.TrimSpace(o.Name) != ""
	}))
	slices.Sort(names)

	modes := make([]string, 0, len(issues)+1)
	modes = append(modes, model.WeightedMeanMode)
	for _, i := range issues {
		modes = append(modes, i.Name)
	}
	return names, modes
}
