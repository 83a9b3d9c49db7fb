package scheduler

import (
	"context"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/ukudarovv/instachecker-sub000/internal/models"
	"github.com/ukudarovv/instachecker-sub000/internal/notify"
	"github.com/ukudarovv/instachecker-sub000/internal/repositories"
)

// Pipeline is the orchestrator contract the scheduler drives. The two phases
// are exposed separately so each can run at its own pace.
type Pipeline interface {
	PhaseLookup(ctx context.Context, owner *models.Owner, username string) *models.CheckResult
	NeedsDeepVerify(owner *models.Owner, lookupResult *models.CheckResult) bool
	PhaseVerify(ctx context.Context, owner *models.Owner, username string, lookupResult *models.CheckResult) *models.CheckResult
}

// Stats aggregates one owner's outcomes for a single run
type Stats struct {
	Checked  int `json:"checked"`
	Found    int `json:"found"`
	NotFound int `json:"not_found"`
	Errors   int `json:"errors"`
}

// RunSummary is the aggregate outcome of the most recently completed run,
// served through the ops API.
type RunSummary struct {
	StartedAt  time.Time        `json:"started_at"`
	FinishedAt time.Time        `json:"finished_at"`
	Owners     map[string]Stats `json:"owners"`
	Total      Stats            `json:"total"`
}

// Config holds the scheduler's pacing knobs
type Config struct {
	Interval         time.Duration // periodic sweep interval
	Phase1Delay      time.Duration // inter-call delay for lookups
	Phase2Delay      time.Duration // inter-call delay for deep verification
	OwnerConcurrency int           // concurrent owner tasks
}

// Scheduler sweeps pending targets through the verification pipeline. Owners
// run in parallel up to the configured bound; within one owner everything is
// strictly sequential so a single session or proxy is never used twice at
// once. All run state lives here, handed to the process entry point.
type Scheduler struct {
	targets  repositories.TargetRepository
	owners   repositories.OwnerRepository
	pipeline Pipeline
	notifier notify.Notifier
	cfg      Config
	logger   *slog.Logger
	stopCh   chan struct{}
	runNowCh chan struct{}

	mu      sync.Mutex
	lastRun *RunSummary
}

// New creates a scheduler
func New(
	targets repositories.TargetRepository,
	owners repositories.OwnerRepository,
	pipeline Pipeline,
	notifier notify.Notifier,
	cfg Config,
	logger *slog.Logger,
) *Scheduler {
	if cfg.OwnerConcurrency <= 0 {
		cfg.OwnerConcurrency = 1
	}
	return &Scheduler{
		targets:  targets,
		owners:   owners,
		pipeline: pipeline,
		notifier: notifier,
		cfg:      cfg,
		logger:   logger,
		stopCh:   make(chan struct{}),
		runNowCh: make(chan struct{}, 1),
	}
}

// Start begins the periodic driver. It runs a full sweep immediately, then
// on every interval tick and every TriggerRun call, until Stop or the
// context ends.
func (s *Scheduler) Start(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()

	// Run immediately on startup
	s.sweep(ctx)

	for {
		select {
		case <-ticker.C:
			s.sweep(ctx)
		case <-s.runNowCh:
			s.sweep(ctx)
		case <-s.stopCh:
			s.logger.Info("scheduler stopped")
			return
		case <-ctx.Done():
			s.logger.Info("scheduler context cancelled")
			return
		}
	}
}

// Stop signals the periodic driver to halt
func (s *Scheduler) Stop() {
	close(s.stopCh)
}

// TriggerRun requests an immediate sweep. Coalesces with a pending request.
func (s *Scheduler) TriggerRun() {
	select {
	case s.runNowCh <- struct{}{}:
	default:
	}
}

func (s *Scheduler) sweep(ctx context.Context) {
	stats, err := s.RunOnce(ctx, 0)
	if err != nil {
		s.logger.Error("scheduler sweep failed", slog.Any("error", err))
		return
	}

	for ownerID, st := range stats {
		s.logger.Info("owner sweep complete",
			slog.String("owner_id", ownerID),
			slog.Int("checked", st.Checked),
			slog.Int("found", st.Found),
			slog.Int("not_found", st.NotFound),
			slog.Int("errors", st.Errors),
		)
	}

	if summary := s.LastRun(); summary != nil {
		s.logger.Info("sweep complete",
			slog.Int("checked", summary.Total.Checked),
			slog.Int("found", summary.Total.Found),
			slog.Int("not_found", summary.Total.NotFound),
			slog.Int("errors", summary.Total.Errors),
		)
	}
}

// LastRun returns a copy of the most recent run's aggregates, or nil before
// the first run completes.
func (s *Scheduler) LastRun() *RunSummary {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.lastRun == nil {
		return nil
	}
	out := *s.lastRun
	out.Owners = make(map[string]Stats, len(s.lastRun.Owners))
	for ownerID, st := range s.lastRun.Owners {
		out.Owners[ownerID] = st
	}
	return &out
}

// recordRun snapshots a completed run's aggregates for the ops API
func (s *Scheduler) recordRun(startedAt time.Time, stats map[string]*Stats) {
	summary := &RunSummary{
		StartedAt:  startedAt,
		FinishedAt: time.Now(),
		Owners:     make(map[string]Stats, len(stats)),
	}
	for ownerID, st := range stats {
		summary.Owners[ownerID] = *st
		summary.Total.Checked += st.Checked
		summary.Total.Found += st.Found
		summary.Total.NotFound += st.NotFound
		summary.Total.Errors += st.Errors
	}

	s.mu.Lock()
	s.lastRun = summary
	s.mu.Unlock()
}

// RunOnce processes up to maxItems pending targets (maxItems <= 0 means all)
// and returns per-owner aggregates. One failing owner never aborts the rest.
func (s *Scheduler) RunOnce(ctx context.Context, maxItems int) (map[string]*Stats, error) {
	startedAt := time.Now()

	pending, err := s.targets.ListPending(ctx, maxItems)
	if err != nil {
		return nil, err
	}

	// Group by owner, keeping enumeration order within each owner
	byOwner := make(map[string][]*models.Target)
	order := make([]string, 0)
	for _, t := range pending {
		if _, seen := byOwner[t.OwnerID]; !seen {
			order = append(order, t.OwnerID)
		}
		byOwner[t.OwnerID] = append(byOwner[t.OwnerID], t)
	}

	// Pre-populate so each owner task writes only its own entry
	stats := make(map[string]*Stats, len(order))
	for _, ownerID := range order {
		stats[ownerID] = &Stats{}
	}

	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(s.cfg.OwnerConcurrency)

	for _, ownerID := range order {
		ownerID := ownerID
		targets := byOwner[ownerID]
		group.Go(func() error {
			s.runOwner(groupCtx, ownerID, targets, stats[ownerID])
			return nil
		})
	}

	if err := group.Wait(); err != nil {
		return stats, err
	}

	s.recordRun(startedAt, stats)

	return stats, nil
}

// runOwner drives one owner's sequential two-speed pipeline. A panic in any
// backend below is already contained by the orchestrator; this recovery is
// the last line for everything else, charged as one error to this owner.
func (s *Scheduler) runOwner(ctx context.Context, ownerID string, targets []*models.Target, st *Stats) {
	defer func() {
		if r := recover(); r != nil {
			st.Errors++
			s.logger.Error("owner task panicked",
				slog.String("owner_id", ownerID),
				slog.Any("panic", r))
		}
	}()

	owner, err := s.owners.GetByID(ctx, ownerID)
	if err != nil {
		st.Errors++
		s.logger.Error("failed to load owner", slog.String("owner_id", ownerID), slog.Any("error", err))
		return
	}
	if !owner.Active {
		return
	}

	// Phase 1: cheap quota-bound lookups at the short delay
	type phase2Item struct {
		target       *models.Target
		lookupResult *models.CheckResult
	}

	lookupLimiter := rate.NewLimiter(rate.Every(s.cfg.Phase1Delay), 1)
	batch := make([]phase2Item, 0)

	for _, target := range targets {
		if err := lookupLimiter.Wait(ctx); err != nil {
			return
		}

		lookupResult := s.pipeline.PhaseLookup(ctx, owner, target.Username)
		if s.pipeline.NeedsDeepVerify(owner, lookupResult) {
			batch = append(batch, phase2Item{target: target, lookupResult: lookupResult})
			continue
		}
		s.finalize(ctx, owner, target, lookupResult, st)
	}

	if len(batch) == 0 {
		return
	}

	// Phase 2: expensive renders at the long delay
	verifyLimiter := rate.NewLimiter(rate.Every(s.cfg.Phase2Delay), 1)
	for _, item := range batch {
		if err := verifyLimiter.Wait(ctx); err != nil {
			return
		}

		result := s.pipeline.PhaseVerify(ctx, owner, item.target.Username, item.lookupResult)
		s.finalize(ctx, owner, item.target, result, st)
	}
}

// finalize applies one result's side effects: status transition, the single
// positive notification, and evidence disposal.
func (s *Scheduler) finalize(ctx context.Context, owner *models.Owner, target *models.Target, result *models.CheckResult, st *Stats) {
	st.Checked++

	now := time.Now()
	if err := s.targets.RecordCheck(ctx, target.ID, now, result.Reason); err != nil {
		s.logger.Warn("failed to record check", slog.String("target_id", target.ID), slog.Any("error", err))
	}

	switch result.Exists {
	case models.ExistenceTrue:
		st.Found++
		if err := s.targets.MarkDone(ctx, target.ID); err != nil {
			st.Errors++
			s.logger.Error("failed to mark target done", slog.String("target_id", target.ID), slog.Any("error", err))
			return
		}
		// Delivered once, then discarded; delivery failure is not retried
		if err := s.notifier.NotifyFound(ctx, owner, target.Username, result.EvidencePath); err != nil {
			s.logger.Warn("failed to deliver notification",
				slog.String("owner_id", owner.ID),
				slog.String("username", target.Username),
				slog.Any("error", err))
		}
		s.discardEvidence(result.EvidencePath)

	case models.ExistenceFalse:
		st.NotFound++

	default:
		if strings.HasPrefix(result.Reason, "backend_exception:") {
			st.Errors++
		}
	}
}

func (s *Scheduler) discardEvidence(path string) {
	if path == "" {
		return
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		s.logger.Warn("failed to discard evidence", slog.String("path", path), slog.Any("error", err))
	}
}
