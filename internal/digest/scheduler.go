// Package digest produces the daily protection summary. A [Scheduler]
// sleeps until the configured wall-clock time each day, aggregates that
// day's call history into [notify.DigestStats] and hands them to the
// notification dispatcher.
package digest

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/MrWong99/riskguard/internal/notify"
	"github.com/MrWong99/riskguard/internal/store"
)

// highRiskThreshold is the minimum risk score counted as high-risk in the
// digest.
const highRiskThreshold = 70

// aiProbabilityThreshold is the minimum synthetic-voice probability counted
// as an AI detection in the digest.
const aiProbabilityThreshold = 0.7

// Notifier delivers a finished digest. Satisfied by [notify.Dispatcher].
type Notifier interface {
	DailyDigest(ctx context.Context, stats notify.DigestStats)
}

// Scheduler fires the daily digest at a configured hour and minute. The
// schedule is persisted through [store.Settings] so it survives restarts.
//
// All methods are safe for concurrent use.
type Scheduler struct {
	history  *store.History
	settings *store.Settings
	notifier Notifier
	now      func() time.Time

	mu       sync.Mutex
	schedule store.DigestSchedule
	rearm    chan struct{}
	done     chan struct{}
	stopOnce sync.Once
}

// Config configures a [Scheduler].
type Config struct {
	// History is queried for the day's call records.
	History *store.History

	// Settings persists the digest schedule across restarts.
	Settings *store.Settings

	// Notifier receives the aggregated digest.
	Notifier Notifier

	// Now overrides the clock. Defaults to [time.Now].
	Now func() time.Time
}

// NewScheduler creates a new [Scheduler] with the given configuration. The
// persisted schedule is loaded on the first call to [Scheduler.Start].
func NewScheduler(cfg Config) *Scheduler {
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &Scheduler{
		history:  cfg.History,
		settings: cfg.Settings,
		notifier: cfg.Notifier,
		now:      now,
		rearm:    make(chan struct{}, 1),
		done:     make(chan struct{}),
	}
}

// Start loads the persisted schedule and begins the timer loop in a
// background goroutine. The goroutine runs until [Scheduler.Stop] is called
// or ctx is cancelled.
func (s *Scheduler) Start(ctx context.Context) error {
	sched, err := s.settings.Digest(ctx)
	if err != nil {
		return fmt.Errorf("digest: load schedule: %w", err)
	}
	s.mu.Lock()
	s.schedule = sched
	s.mu.Unlock()

	go s.loop(ctx)
	return nil
}

// Stop halts the timer loop. Safe to call multiple times.
func (s *Scheduler) Stop() {
	s.stopOnce.Do(func() {
		close(s.done)
	})
}

// Schedule returns the currently active schedule.
func (s *Scheduler) Schedule() store.DigestSchedule {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.schedule
}

// SetSchedule persists a new schedule and re-arms the timer so the change
// takes effect without waiting for the previous firing.
func (s *Scheduler) SetSchedule(ctx context.Context, sched store.DigestSchedule) error {
	if err := s.settings.SetDigest(ctx, sched); err != nil {
		return fmt.Errorf("digest: persist schedule: %w", err)
	}
	s.mu.Lock()
	s.schedule = sched
	s.mu.Unlock()

	select {
	case s.rearm <- struct{}{}:
	default:
	}
	return nil
}

// RunNow aggregates today's activity and delivers the digest immediately,
// regardless of the schedule. Days with no analyzed calls produce no
// notification.
func (s *Scheduler) RunNow(ctx context.Context) error {
	stats, err := s.collect(ctx)
	if err != nil {
		return err
	}
	if stats.TotalCalls == 0 {
		slog.Debug("digest skipped, no calls today")
		return nil
	}
	s.notifier.DailyDigest(ctx, stats)
	return nil
}

// loop sleeps until the next scheduled firing, delivers, and re-arms for the
// following day.
func (s *Scheduler) loop(ctx context.Context) {
	timer := time.NewTimer(s.untilNextFiring())
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.done:
			return
		case <-s.rearm:
			if !timer.Stop() {
				select {
				case <-timer.C:
				default:
				}
			}
			timer.Reset(s.untilNextFiring())
		case <-timer.C:
			s.mu.Lock()
			enabled := s.schedule.Enabled
			s.mu.Unlock()
			if enabled {
				if err := s.RunNow(ctx); err != nil {
					slog.Warn("daily digest failed", "error", err)
				}
			}
			timer.Reset(s.untilNextFiring())
		}
	}
}

// untilNextFiring returns the duration until the schedule's wall-clock time
// next occurs. If today's firing time has already passed, it targets
// tomorrow.
func (s *Scheduler) untilNextFiring() time.Duration {
	s.mu.Lock()
	sched := s.schedule
	s.mu.Unlock()

	now := s.now()
	next := time.Date(now.Year(), now.Month(), now.Day(), sched.Hour, sched.Minute, 0, 0, now.Location())
	if !next.After(now) {
		next = next.AddDate(0, 0, 1)
	}
	return next.Sub(now)
}

// collect aggregates today's call history into digest statistics.
func (s *Scheduler) collect(ctx context.Context) (notify.DigestStats, error) {
	now := s.now()
	startOfDay := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())

	records, err := s.history.Since(ctx, startOfDay)
	if err != nil {
		return notify.DigestStats{}, fmt.Errorf("digest: query history: %w", err)
	}

	stats := notify.DigestStats{TotalCalls: len(records)}
	for _, r := range records {
		if r.RiskScore >= highRiskThreshold {
			stats.HighRisk++
		}
		if r.AIProbability >= aiProbabilityThreshold {
			stats.AIDetected++
		}
		if r.WasBlocked {
			stats.Blocked++
		}
	}
	return stats, nil
}
