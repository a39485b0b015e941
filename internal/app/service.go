// Package service provides the session-scoped operations the HTTP API
// exposes: create a session, reload its dataset, and turn selections into
// chart series.
package service

import (
	"context"
	"errors"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/secondvote/trends/internal/adapters/repository"
	"github.com/secondvote/trends/internal/domain/aggregate"
	"github.com/secondvote/trends/internal/domain/model"
	"github.com/secondvote/trends/internal/domain/session"
	"github.com/secondvote/trends/pkg/logger"
	"github.com/secondvote/trends/pkg/metrics"
)

// Views reported in logs and metrics.
const (
	ViewHistogram = "histogram"
	ViewTrend     = "trend"
	ViewBreakdown = "breakdown"
)

// Loader produces a freshly normalized dataset.
type Loader interface {
	Load(ctx context.Context) (*model.Dataset, error)
}

// Service implements the API dependencies for the trends dashboard.
type Service struct {
	mu sync.RWMutex

	loader   Loader
	registry *session.Registry

	// Configuration
	maxSessions   int
	idleTTL       time.Duration
	sweepInterval time.Duration
	now           func() time.Time

	// State
	started bool
	stopCh  chan struct{}
	doneCh  chan struct{}

	reloads        atomic.Int64
	reloadFailures atomic.Int64
	selections     atomic.Int64

	logger logger.Logger
}

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithLoader sets the dataset loader used by Reload.
func WithLoader(l Loader) Option {
	return func(s *Service) {
		s.loader = l
	}
}

// WithMaxSessions bounds the number of live sessions.
func WithMaxSessions(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.maxSessions = n
		}
	}
}

// WithIdleTTL sets how long an untouched session survives.
func WithIdleTTL(ttl time.Duration) Option {
	return func(s *Service) {
		if ttl > 0 {
			s.idleTTL = ttl
		}
	}
}

// WithSweepInterval sets how often idle sessions are evicted.
func WithSweepInterval(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.sweepInterval = d
		}
	}
}

// WithClock overrides the time source for session bookkeeping.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// New constructs a Service. Sessions can be used immediately; Start only
// launches the idle sweeper.
func New(opts ...Option) *Service {
	s := &Service{
		maxSessions:   1000,
		idleTTL:       30 * time.Minute,
		sweepInterval: time.Minute,
		now:           time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = logger.Get().Named("service")
	}
	s.registry = session.NewRegistry(
		session.WithMaxSessions(s.maxSessions),
		session.WithIdleTTL(s.idleTTL),
		session.WithClock(s.now),
	)
	return s
}

// Start launches the background sweeper.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}
	s.stopCh = make(chan struct{})
	s.doneCh = make(chan struct{})
	go s.sweepLoop(ctx, s.stopCh, s.doneCh)

	s.started = true
	s.logger.Info(ctx, "trends service started",
		logger.Int("maxSessions", s.maxSessions),
		logger.Duration("idleTTL", s.idleTTL),
		logger.Duration("sweepInterval", s.sweepInterval),
	)
	return nil
}

// Stop halts the sweeper and waits for it to exit.
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return
	}
	close(s.stopCh)
	<-s.doneCh
	s.started = false
	s.logger.Info(context.Background(), "trends service stopped")
}

func (s *Service) sweepLoop(ctx context.Context, stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)
	ticker := time.NewTicker(s.sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-stop:
			return
		case <-ticker.C:
			if n := s.registry.Sweep(s.now()); n > 0 {
				s.logger.Debug(ctx, "evicted idle sessions", logger.Int("count", n))
			}
		}
	}
}

// NewSession creates an empty session and returns its id.
func (s *Service) NewSession(ctx context.Context) (string, error) {
	sess := s.registry.Create()
	s.logger.Debug(ctx, "session created", logger.String("session", sess.ID))
	return sess.ID, nil
}

// CloseSession discards a session and its dataset.
func (s *Service) CloseSession(ctx context.Context, id string) error {
	if !s.registry.Delete(id) {
		return session.ErrUnknownSession
	}
	s.logger.Debug(ctx, "session closed", logger.String("session", id))
	return nil
}

// Reload replaces the session's dataset with a fresh load from the store
// and returns the dropdown choices. While it runs, selections in the session
// see session.ErrNotLoaded. A failed reload leaves the session unloaded.
// When reloads overlap, the one begun last wins. A session closed or
// evicted before its reload finishes reports session.ErrUnknownSession.
func (s *Service) Reload(ctx context.Context, id string) (model.Choices, error) {
	sess, err := s.registry.Get(id)
	if err != nil {
		return model.Choices{}, err
	}
	s.reloads.Add(1)
	if s.loader == nil {
		s.reloadFailures.Add(1)
		metrics.RecordReload("unavailable", 0)
		return model.Choices{}, ErrNoLoader
	}

	cache := sess.Cache()
	ticket := cache.Begin()
	start := time.Now()
	ds, err := s.loader.Load(ctx)
	elapsed := float64(time.Since(start).Microseconds()) / 1000
	if err != nil {
		cache.Abort(ticket)
		s.reloadFailures.Add(1)
		outcome := reloadOutcome(err)
		metrics.RecordReload(outcome, elapsed)
		metrics.RecordErrorByType(outcome, "error")
		s.logger.Error(ctx, "reload failed",
			logger.String("session", id),
			logger.String("outcome", outcome),
			logger.Error(err),
		)
		return model.Choices{}, err
	}

	committed := cache.Commit(ticket, ds)
	// The session may have been closed or evicted while the load ran; its
	// cache is then unreachable and the caller must see the session as gone.
	if _, err := s.registry.Get(id); err != nil {
		s.reloadFailures.Add(1)
		metrics.RecordReload("evicted", elapsed)
		s.logger.Debug(ctx, "session went away during reload", logger.String("session", id))
		return model.Choices{}, err
	}
	if !committed {
		metrics.RecordReload("superseded", elapsed)
		s.logger.Debug(ctx, "reload superseded by a newer one", logger.String("session", id))
		return ds.Choices(), nil
	}
	metrics.RecordReload("ok", elapsed)
	s.logger.Info(ctx, "session reloaded",
		logger.String("session", id),
		logger.Int("records", len(ds.Records)),
		logger.Int("organizations", len(ds.Organizations)),
	)
	return ds.Choices(), nil
}

// SelectOrganization returns the per-quarter score sums of one organization.
func (s *Service) SelectOrganization(ctx context.Context, id, organization string) ([]model.SeriesPoint, error) {
	return selectView(ctx, s, id, ViewHistogram,
		func() error { return aggregate.ValidateOrganization(organization) },
		func(ds *model.Dataset) ([]model.SeriesPoint, error) {
			return aggregate.HistogramSeries(ds.Records, organization)
		},
	)
}

// SelectMulti returns the weighted geometric mean trend of several
// organizations, optionally restricted to one issue type.
func (s *Service) SelectMulti(ctx context.Context, id string, organizations []string, issueMode string) ([]model.SeriesPoint, error) {
	return selectView(ctx, s, id, ViewTrend,
		func() error { return aggregate.ValidateMulti(organizations, issueMode) },
		func(ds *model.Dataset) ([]model.SeriesPoint, error) {
			return aggregate.MultiOrganizationTrend(ds.Records, organizations, issueMode)
		},
	)
}

// SelectBreakdown returns per-issue-type sums of one organization with its
// overall trend.
func (s *Service) SelectBreakdown(ctx context.Context, id, organization string) (aggregate.Breakdown, error) {
	return selectView(ctx, s, id, ViewBreakdown,
		func() error { return aggregate.ValidateOrganization(organization) },
		func(ds *model.Dataset) (aggregate.Breakdown, error) {
			return aggregate.IssueBreakdownWithTrend(ds.Records, organization)
		},
	)
}

// selectView checks the selection before the cache so an unset dropdown is
// reported as an empty selection even before the first reload.
func selectView[T any](
	ctx context.Context,
	s *Service,
	id, view string,
	validate func() error,
	run func(*model.Dataset) (T, error),
) (T, error) {
	var zero T
	sess, err := s.registry.Get(id)
	if err != nil {
		return zero, err
	}
	s.selections.Add(1)

	if err := validate(); err != nil {
		metrics.RecordSelection(view, "empty_selection")
		return zero, err
	}
	ds, err := sess.Cache().Get()
	if err != nil {
		metrics.RecordSelection(view, "not_loaded")
		return zero, err
	}

	start := time.Now()
	out, err := run(ds)
	metrics.RecordAggregationLatency(view, float64(time.Since(start).Microseconds())/1000)
	switch {
	case err == nil:
		metrics.RecordSelection(view, "ok")
	case errors.Is(err, aggregate.ErrEmptySelection):
		metrics.RecordSelection(view, "empty_selection")
	default:
		metrics.RecordSelection(view, "error")
		s.logger.Warn(ctx, "aggregation failed",
			logger.String("session", id),
			logger.String("view", view),
			logger.Error(err),
		)
	}
	if err != nil {
		return zero, err
	}
	return out, nil
}

func reloadOutcome(err error) string {
	switch {
	case errors.Is(err, repository.ErrUnavailable):
		return "unavailable"
	case errors.Is(err, repository.ErrSchemaMismatch):
		return "schema_mismatch"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "canceled"
	default:
		return "error"
	}
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats() map[string]interface{} {
	s.mu.RLock()
	defer s.mu.RUnlock()

	active := s.registry.Len()
	metrics.UpdateActiveSessions(active)

	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)
	return map[string]interface{}{
		"started":        s.started,
		"activeSessions": active,
		"maxSessions":    s.maxSessions,
		"idleTTLSeconds": int(s.idleTTL.Seconds()),
		"reloads":        s.reloads.Load(),
		"reloadFailures": s.reloadFailures.Load(),
		"selections":     s.selections.Load(),
		"goroutines":     runtime.NumGoroutine(),
		"heapAllocBytes": mem.HeapAlloc,
	}
}
