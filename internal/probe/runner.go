package probe

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/secondvote/trends/internal/domain/model"
	"github.com/secondvote/trends/pkg/logger"
)

const (
	statusOK             = "ok"
	statusEmptySelection = "empty_selection"

	defaultWorkers = 4
	defaultTimeout = 10 * time.Second

	directoryPermission = 0750
	filePermission      = 0600
)

// Run executes the probe against cfg.BaseURL and returns its report.
// ErrInconsistent is returned together with the report when any view
// disagrees with another.
func Run(ctx context.Context, cfg Config) (*Report, error) {
	if cfg.Workers <= 0 {
		cfg.Workers = defaultWorkers
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	log := logger.Get().Named("probe")
	c := newClient(cfg.BaseURL, cfg.Timeout)
	report := &Report{StartTime: time.Now()}

	log.Info(ctx, "starting probe",
		logger.String("baseURL", cfg.BaseURL),
		logger.Int("workers", cfg.Workers),
		logger.Duration("timeout", cfg.Timeout))

	if err := c.health(ctx); err != nil {
		return nil, err
	}

	id, err := c.createSession(ctx)
	if err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}
	report.SessionID = id
	defer func() {
		// The run context may already be cancelled.
		closeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cfg.Timeout)
		defer cancel()
		if err := c.closeSession(closeCtx, id); err != nil {
			log.Warn(ctx, "failed to close probe session", logger.String("session", id), logger.Error(err))
		}
	}()

	empty, err := c.view(ctx, id, "histogram", nil)
	if err != nil {
		return nil, fmt.Errorf("unset selection: %w", err)
	}
	if empty.Status != statusEmptySelection {
		report.Mismatches = append(report.Mismatches, fmt.Sprintf("unset selection answered %q", empty.Status))
	}

	choices, err := c.reload(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("reload: %w", err)
	}
	report.Organizations = len(choices.Organizations)
	report.IssueModes = len(choices.IssueModes)
	log.Info(ctx, "dataset reloaded",
		logger.Int("organizations", report.Organizations),
		logger.Int("issueModes", report.IssueModes))

	if err := checkOrganizations(ctx, c, cfg, id, choices.Organizations, report, log); err != nil {
		return nil, err
	}
	if err := checkIssueModes(ctx, c, id, choices, report); err != nil {
		return nil, err
	}

	report.Duration = time.Since(report.StartTime)
	logReport(ctx, log, report)

	if cfg.Output != "" {
		if err := saveReport(cfg.Output, report); err != nil {
			log.Warn(ctx, "failed to save report", logger.String("file", cfg.Output), logger.Error(err))
		}
	}

	if len(report.Mismatches) > 0 {
		return report, fmt.Errorf("%w: %d mismatches", ErrInconsistent, len(report.Mismatches))
	}
	return report, nil
}

// checkOrganizations fetches the three views of every organization
// concurrently and cross-checks them.
func checkOrganizations(ctx context.Context, c *client, cfg Config, id string, orgs []string, report *Report, log logger.Logger) error {
	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(cfg.Workers)

	for _, org := range orgs {
		g.Go(func() error {
			q := url.Values{"organization": {org}}
			hist, err := c.view(gctx, id, "histogram", q)
			if err != nil {
				return fmt.Errorf("histogram %q: %w", org, err)
			}
			breakdown, err := c.view(gctx, id, "breakdown", q)
			if err != nil {
				return fmt.Errorf("breakdown %q: %w", org, err)
			}
			trend, err := c.view(gctx, id, "trend", url.Values{
				"organization": {org},
				"issue_mode":   {model.WeightedMeanMode},
			})
			if err != nil {
				return fmt.Errorf("trend %q: %w", org, err)
			}

			var problems []string
			empty := false
			switch {
			case hist.Status == statusEmptySelection:
				// An organization without records must be empty in every view.
				empty = true
				if breakdown.Status != statusEmptySelection || trend.Status != statusEmptySelection {
					problems = append(problems, fmt.Sprintf("%s: empty histogram but breakdown %q, trend %q", org, breakdown.Status, trend.Status))
				}
			case hist.Status != statusOK || breakdown.Status != statusOK || trend.Status != statusOK:
				problems = append(problems, fmt.Sprintf("%s: statuses histogram %q, breakdown %q, trend %q", org, hist.Status, breakdown.Status, trend.Status))
			default:
				problems = verifyOrganization(org, hist, breakdown, trend.Series)
			}

			if cfg.Verbose {
				log.Debug(gctx, "organization checked",
					logger.String("organization", org),
					logger.Int("quarters", len(hist.Series)),
					logger.Int("problems", len(problems)))
			}

			mu.Lock()
			defer mu.Unlock()
			report.Checked++
			if empty {
				report.Empty++
			}
			report.Mismatches = append(report.Mismatches, problems...)
			return nil
		})
	}
	return g.Wait()
}

// checkIssueModes requests the multi-organization trend once per issue mode
// over every organization. Each answer must be ok or empty_selection.
func checkIssueModes(ctx context.Context, c *client, id string, choices Choices, report *Report) error {
	if len(choices.Organizations) == 0 {
		return nil
	}
	for _, mode := range choices.IssueModes {
		sel, err := c.view(ctx, id, "trend", url.Values{
			"organization": choices.Organizations,
			"issue_mode":   {mode},
		})
		if err != nil {
			return fmt.Errorf("trend mode %q: %w", mode, err)
		}
		if sel.Status != statusOK && sel.Status != statusEmptySelection {
			report.Mismatches = append(report.Mismatches, fmt.Sprintf("trend mode %q answered %q", mode, sel.Status))
		}
	}
	return nil
}

func logReport(ctx context.Context, log logger.Logger, report *Report) {
	log.Info(ctx, "probe finished",
		logger.String("session", report.SessionID),
		logger.Int("organizations", report.Organizations),
		logger.Int("issueModes", report.IssueModes),
		logger.Int("checked", report.Checked),
		logger.Int("empty", report.Empty),
		logger.Int("mismatches", len(report.Mismatches)),
		logger.Duration("duration", report.Duration))
	for _, m := range report.Mismatches {
		log.Warn(ctx, "mismatch", logger.String("detail", m))
	}
}

// saveReport writes the report as indented JSON.
func saveReport(path string, report *Report) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, directoryPermission); err != nil {
			return fmt.Errorf("create directory: %w", err)
		}
	}
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal report: %w", err)
	}
	if err := os.WriteFile(path, append(data, '\n'), filePermission); err != nil {
		return fmt.Errorf("write report: %w", err)
	}
	return nil
}

// IsInconsistent reports whether err came from a run whose views disagreed.
func IsInconsistent(err error) bool {
	return errors.Is(err, ErrInconsistent)
}
