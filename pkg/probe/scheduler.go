package probe

import (
	"context"
	"fmt"
	"sync"
	"time"

	"mercator-hq/callmeter/pkg/config"
	"mercator-hq/callmeter/pkg/telemetry/logging"

	"github.com/robfig/cron/v3"
)

// Scheduler runs the prober on a cron schedule.
//
// Common schedules:
//   - "@every 30s"   - every 30 seconds
//   - "*/5 * * * *"  - every 5 minutes
//   - "0 * * * *"    - hourly
type Scheduler struct {
	prober *Prober
	logger *logging.Logger

	mu       sync.Mutex
	cron     *cron.Cron
	schedule string
	entry    cron.EntryID
	ctx      context.Context
	running  bool
	runs     int
}

// NewScheduler creates a scheduler for prober. An empty schedule disables
// scheduled runs.
func NewScheduler(prober *Prober, schedule string, logger *logging.Logger) *Scheduler {
	if logger == nil {
		logger = logging.Nop()
	}
	return &Scheduler{
		prober:   prober,
		logger:   logger.With("component", "probe.scheduler"),
		cron:     cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger))),
		schedule: schedule,
	}
}

// Start schedules probe runs and returns immediately. Runs use ctx; the
// scheduler stops when ctx is cancelled.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return nil
	}
	if s.schedule == "" {
		s.logger.Info("probe schedule not configured, skipping scheduler")
		return nil
	}

	s.ctx = ctx
	if err := s.addJob(s.schedule); err != nil {
		return err
	}

	s.cron.Start()
	s.running = true

	s.logger.Info("probe scheduler started",
		"schedule", s.schedule,
		"targets", len(s.prober.Targets()),
	)

	// Wait for context cancellation in background
	go func() {
		<-ctx.Done()
		s.Stop()
	}()

	return nil
}

// addJob registers the probe job under schedule. Callers hold s.mu.
func (s *Scheduler) addJob(schedule string) error {
	if _, err := cron.ParseStandard(schedule); err != nil {
		return fmt.Errorf("invalid cron schedule %q: %w", schedule, err)
	}

	id, err := s.cron.AddFunc(schedule, s.run)
	if err != nil {
		return fmt.Errorf("failed to schedule probes: %w", err)
	}
	s.entry = id
	return nil
}

// run executes one scheduled probe cycle.
func (s *Scheduler) run() {
	s.mu.Lock()
	ctx := s.ctx
	s.runs++
	s.mu.Unlock()

	if ctx.Err() != nil {
		return
	}

	results := s.prober.RunOnce(ctx)

	failed := 0
	for _, r := range results {
		if r.Failed() {
			failed++
		}
	}
	s.logger.Debug("scheduled probe run completed",
		"targets", len(results),
		"failed", failed,
	)
}

// Reload applies a new schedule, timeout and target list. Targets take effect on the
// next run; a changed schedule replaces the cron entry.
func (s *Scheduler) Reload(cfg *config.ProbesConfig) error {
	if _, err := cron.ParseStandard(cfg.Schedule); err != nil {
		return fmt.Errorf("invalid cron schedule %q: %w", cfg.Schedule, err)
	}

	s.prober.SetTargets(cfg.Targets)
	s.prober.SetTimeout(cfg.Timeout)

	s.mu.Lock()
	defer s.mu.Unlock()

	if cfg.Schedule == s.schedule {
		s.logger.Info("probe targets reloaded", "targets", len(cfg.Targets))
		return nil
	}

	if s.running {
		s.cron.Remove(s.entry)
		if err := s.addJob(cfg.Schedule); err != nil {
			return err
		}
	}
	s.logger.Info("probe schedule reloaded",
		"previous", s.schedule,
		"schedule", cfg.Schedule,
		"targets", len(cfg.Targets),
	)
	s.schedule = cfg.Schedule
	return nil
}

// Stop stops the scheduler and waits for a running probe cycle to finish.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	s.mu.Unlock()

	// Wait outside the lock: the running job takes s.mu in run.
	<-s.cron.Stop().Done()
	s.logger.Info("probe scheduler stopped")
}

// IsRunning returns true if the scheduler is running.
func (s *Scheduler) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// Schedule returns the active cron schedule.
func (s *Scheduler) Schedule() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.schedule
}

// Runs returns the number of scheduled cycles started.
func (s *Scheduler) Runs() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.runs
}

// NextRun returns the next scheduled run time.
func (s *Scheduler) NextRun() *time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return nil
	}
	entry := s.cron.Entry(s.entry)
	if !entry.Valid() {
		return nil
	}
	next := entry.Next
	return &next
}
