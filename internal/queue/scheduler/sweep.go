package scheduler

import (
	"log"
	"sync"
	"time"

	"followq-backend/internal/queue/usecase"

	"github.com/robfig/cron/v3"
)

// Sweep is the periodic background pass over the queue: it resurfaces due
// snoozed items, refreshes deadline standings (escalating overdue items),
// archives old completed items, prunes aged history and refreshes the
// statistics aggregate. It holds no state beyond its last-run timestamp;
// all reads and writes go through the queue store.
type Sweep struct {
	queue     usecase.QueueUsecase
	spec      string
	retention time.Duration
	cron      *cron.Cron

	mu      sync.Mutex
	lastRun time.Time
}

// NewSweep creates a sweep running on the given cron spec (e.g. "@hourly",
// "@every 15m"). retention is how long completed items stay before
// archival; history entries follow the same window.
func NewSweep(queue usecase.QueueUsecase, spec string, retention time.Duration) *Sweep {
	if spec == "" {
		spec = "@hourly"
	}
	if retention <= 0 {
		retention = 30 * 24 * time.Hour
	}
	return &Sweep{
		queue:     queue,
		spec:      spec,
		retention: retention,
	}
}

// Start registers the cron schedule and runs one sweep immediately
func (s *Sweep) Start() error {
	c := cron.New()
	if _, err := c.AddFunc(s.spec, func() { s.Run(time.Now()) }); err != nil {
		return err
	}
	s.cron = c

	log.Printf("[Sweep] Starting queue sweep (schedule: %s, retention: %s)", s.spec, s.retention)
	go s.Run(time.Now())
	c.Start()
	return nil
}

// Stop halts the schedule; an in-flight run finishes
func (s *Sweep) Stop() {
	if s.cron != nil {
		s.cron.Stop()
	}
}

// LastRun returns when the sweep last completed
func (s *Sweep) LastRun() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastRun
}

// Run executes one sweep at the given reference time. Sub-steps are
// independent: a failing step is logged and the rest still run.
func (s *Sweep) Run(now time.Time) {
	started := time.Now()

	resurfaced, err := s.queue.ResurfaceDueSnoozed(now)
	if err != nil {
		log.Printf("[Sweep] Resurfacing pass failed: %v", err)
	}

	escalated, refreshed, err := s.queue.RefreshDeadlineStatuses(now)
	if err != nil {
		log.Printf("[Sweep] Deadline pass failed: %v", err)
	}

	cutoff := now.Add(-s.retention)
	archived, err := s.queue.ArchiveCompletedBefore(cutoff)
	if err != nil {
		log.Printf("[Sweep] Archival pass failed: %v", err)
	}

	pruned, err := s.queue.PruneHistoryBefore(cutoff)
	if err != nil {
		log.Printf("[Sweep] History pruning failed: %v", err)
	}

	if _, err := s.queue.Statistics(true); err != nil {
		log.Printf("[Sweep] Statistics refresh failed: %v", err)
	}

	s.mu.Lock()
	s.lastRun = now
	s.mu.Unlock()

	log.Printf("[Sweep] Completed in %s: %d resurfaced, %d escalated, %d deadline refreshes, %d archived, %d history entries pruned",
		time.Since(started).Round(time.Millisecond), resurfaced, escalated, refreshed, archived, pruned)
}
