// file: internal/housekeeping/housekeeping.go
// version: 1.0.0
// guid: 91f3b6c2-8d4e-4a07-b1e5-6c2a9d0f7e38

// Package housekeeping runs the periodic cleanup jobs of a running server.
package housekeeping

import (
	"context"
	"runtime"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/jdfalk/mediashare/internal/logging"
	"github.com/jdfalk/mediashare/internal/metrics"
)

// Default schedules.
const (
	DefaultArchiveSchedule = "@every 10m"
	DefaultVisitorSchedule = "@every 1h"
	DefaultCacheSchedule   = "@every 15m"
	DefaultStatsSchedule   = "@every 30s"
)

// ArchiveExpirer drops finished archive jobs nobody collected.
type ArchiveExpirer interface {
	Expire(olderThan time.Duration) int
}

// VisitorEvictor drops visitors that have gone quiet.
type VisitorEvictor interface {
	EvictIdle(ttl time.Duration) int
}

// CacheSweeper drops expired in-memory entries.
type CacheSweeper interface {
	Sweep() int
}

// Config holds TTLs and cron schedules. Empty schedules use the defaults.
type Config struct {
	ArchiveResultTTL time.Duration
	VisitorIdleTTL   time.Duration

	ArchiveSchedule string
	VisitorSchedule string
	CacheSchedule   string
	StatsSchedule   string
}

// Scheduler wraps a cron runner with the cleanup jobs registered.
type Scheduler struct {
	cron     *cron.Cron
	cfg      Config
	archives ArchiveExpirer
	visitors VisitorEvictor
	caches   []CacheSweeper
}

// New registers the jobs. Nil dependencies skip their job.
func New(cfg Config, archives ArchiveExpirer, visitors VisitorEvictor, caches ...CacheSweeper) (*Scheduler, error) {
	s := &Scheduler{
		cron:     cron.New(),
		cfg:      cfg,
		archives: archives,
		visitors: visitors,
		caches:   caches,
	}

	jobs := []struct {
		schedule string
		def      string
		enabled  bool
		run      func()
	}{
		{cfg.ArchiveSchedule, DefaultArchiveSchedule, archives != nil && cfg.ArchiveResultTTL > 0, s.ExpireArchives},
		{cfg.VisitorSchedule, DefaultVisitorSchedule, visitors != nil && cfg.VisitorIdleTTL > 0, s.EvictVisitors},
		{cfg.CacheSchedule, DefaultCacheSchedule, len(caches) > 0, s.SweepCaches},
		{cfg.StatsSchedule, DefaultStatsSchedule, true, s.RecordRuntimeStats},
	}
	for _, j := range jobs {
		if !j.enabled {
			continue
		}
		schedule := j.schedule
		if schedule == "" {
			schedule = j.def
		}
		if _, err := s.cron.AddFunc(schedule, j.run); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// Start runs the scheduler in the background.
func (s *Scheduler) Start() {
	log := logging.With("housekeeping")
	log.Info().Int("jobs", len(s.cron.Entries())).Msg("housekeeping started")
	s.cron.Start()
}

// Stop stops scheduling and waits for running jobs, up to ctx.
func (s *Scheduler) Stop(ctx context.Context) {
	done := s.cron.Stop()
	select {
	case <-done.Done():
	case <-ctx.Done():
		logging.Warn().Msg("housekeeping jobs still running at shutdown")
	}
}

// Entries returns the number of registered jobs.
func (s *Scheduler) Entries() int {
	return len(s.cron.Entries())
}

// ExpireArchives removes uncollected archive results.
func (s *Scheduler) ExpireArchives() {
	if s.archives == nil {
		return
	}
	if n := s.archives.Expire(s.cfg.ArchiveResultTTL); n > 0 {
		logging.Info().Int("count", n).Msg("expired archive results")
	}
}

// EvictVisitors removes idle visitors.
func (s *Scheduler) EvictVisitors() {
	if s.visitors == nil {
		return
	}
	if n := s.visitors.EvictIdle(s.cfg.VisitorIdleTTL); n > 0 {
		logging.Info().Int("count", n).Msg("evicted idle visitors")
	}
}

// SweepCaches drops expired entries from every registered cache.
func (s *Scheduler) SweepCaches() {
	total := 0
	for _, c := range s.caches {
		total += c.Sweep()
	}
	if total > 0 {
		log := logging.With("housekeeping")
		log.Debug().Int("count", total).Msg("swept expired cache entries")
	}
}

// RecordRuntimeStats publishes memory and goroutine gauges.
func (s *Scheduler) RecordRuntimeStats() {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	metrics.SetMemoryAlloc(m.Alloc)
	metrics.SetGoroutines(runtime.NumGoroutine())
}
