// Baktainer - Label-driven Database Backup Orchestrator
// Copyright 2026 The Baktainer Authors
//
// https://github.com/baktainer/baktainer

// Package scheduler runs the single-threaded cron loop that drives one
// backup cycle per fire: pre-flight health check, discovery, fan-out to the
// worker pool, rotation, and a summary log line with a metrics snapshot.
package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"github.com/baktainer/baktainer/internal/container"
	"github.com/baktainer/baktainer/internal/discovery"
	"github.com/baktainer/baktainer/internal/monitor"
	"github.com/baktainer/baktainer/internal/notifier"
	"github.com/baktainer/baktainer/internal/orchestrator"
	"github.com/baktainer/baktainer/internal/rotation"
	"github.com/baktainer/baktainer/internal/runtime"
	"github.com/baktainer/baktainer/internal/workerpool"
)

const defaultCronSchedule = "0 0 * * *"

// CycleResult summarizes the outcome of one backup cycle, returned by Run
// for logging and for the "run once and exit" CLI mode.
type CycleResult struct {
	Aborted     bool
	AbortReason string
	Discovered  int
	Succeeded   int
	Failed      int
}

// Scheduler ticks on a cron schedule and drives one cycle per fire. It
// implements suture.Service (a Serve(context.Context) error method) so it
// can be supervised alongside the HTTP observability surface.
type Scheduler struct {
	schedule        cron.Schedule
	runtime         runtime.Client
	discovery       *discovery.Discovery
	orchestrator    *orchestrator.Orchestrator
	pool            *workerpool.Pool
	rotation        *rotation.Rotation
	rotationEnabled bool
	rotationPolicy  rotation.Policy
	mon             *monitor.Monitor
	notify          *notifier.Notifier
	logger          zerolog.Logger
}

// Config carries the values New needs beyond the already-constructed
// collaborators.
type Config struct {
	CronSchedule    string
	RotationEnabled bool
	RotationPolicy  rotation.Policy
}

// New parses cfg.CronSchedule, falling back to the daily-midnight default
// and logging a warning on a parse error. notify may be nil, in which case
// health and summary events are simply not dispatched.
func New(cfg Config, runtimeClient runtime.Client, disc *discovery.Discovery, orch *orchestrator.Orchestrator, pool *workerpool.Pool, rot *rotation.Rotation, mon *monitor.Monitor, notify *notifier.Notifier, logger zerolog.Logger) *Scheduler {
	schedule, err := cron.ParseStandard(cfg.CronSchedule)
	if err != nil {
		logger.Warn().Err(err).Str("schedule", cfg.CronSchedule).Msg("invalid cron schedule, falling back to default")
		schedule, _ = cron.ParseStandard(defaultCronSchedule)
	}

	return &Scheduler{
		schedule:        schedule,
		runtime:         runtimeClient,
		discovery:       disc,
		orchestrator:    orch,
		pool:            pool,
		rotation:        rot,
		rotationEnabled: cfg.RotationEnabled,
		rotationPolicy:  cfg.RotationPolicy,
		mon:             mon,
		notify:          notify,
		logger:          logger,
	}
}

// Serve runs the tick loop until ctx is canceled.
func (s *Scheduler) Serve(ctx context.Context) error {
	for {
		next := s.schedule.Next(time.Now())
		wait := time.Until(next)
		s.logger.Info().Time("next_run", next).Msg("scheduler waiting for next cycle")

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(wait):
		}

		result := s.RunCycle(ctx)
		s.logCycle(ctx, result)
	}
}

// RunOnce runs a single cycle immediately, for the --now CLI mode. It does
// not touch the cron schedule at all.
func (s *Scheduler) RunOnce(ctx context.Context) CycleResult {
	result := s.RunCycle(ctx)
	s.logCycle(ctx, result)
	return result
}

// RunCycle is one backup cycle: health probe, discover, fan out, await,
// rotate. A single container's failure never aborts the cycle; only a
// runtime-level failure (health probe or the enumeration call itself) does.
func (s *Scheduler) RunCycle(ctx context.Context) CycleResult {
	if err := s.runtime.Version(ctx); err != nil {
		s.logger.Error().Err(err).Msg("runtime health probe failed, aborting cycle")
		if s.notify != nil {
			s.notify.Dispatch(ctx, notifier.Event{
				Kind:      notifier.KindHealth,
				Timestamp: time.Now().UTC(),
				Status:    "unhealthy",
				Message:   "runtime health probe failed, cycle aborted",
				Error:     err.Error(),
			})
		}
		return CycleResult{Aborted: true, AbortReason: err.Error()}
	}

	containers, err := s.discovery.Scan(ctx)
	if err != nil {
		s.logger.Error().Err(err).Msg("discovery failed, aborting cycle")
		return CycleResult{Aborted: true, AbortReason: err.Error()}
	}

	result := CycleResult{Discovered: len(containers)}
	futures := make([]*workerpool.Future, 0, len(containers))
	for _, c := range containers {
		c := c
		futures = append(futures, s.pool.Submit(func() (interface{}, error) {
			_, err := s.orchestrator.Run(ctx, c)
			return nil, err
		}))
	}

	for i, f := range futures {
		_, err := f.Await()
		if err != nil {
			result.Failed++
			s.logger.Warn().Str("container", containerName(containers, i)).Err(err).Msg("backup failed")
		} else {
			result.Succeeded++
		}
	}

	if s.rotationEnabled && s.rotation != nil {
		overrides := make(map[string]rotation.Policy)
		for _, c := range containers {
			if c.RetentionDaysOverride == nil && c.RetentionCountOverride == nil {
				continue
			}
			p := s.rotationPolicy
			if c.RetentionDaysOverride != nil {
				p.RetentionDays = *c.RetentionDaysOverride
			}
			if c.RetentionCountOverride != nil {
				p.RetentionCount = *c.RetentionCountOverride
			}
			overrides[c.BackupName] = p
		}
		rotResult := s.rotation.Run(s.rotationPolicy, overrides)
		s.logger.Info().
			Int("deleted_count", rotResult.DeletedCount).
			Int64("deleted_bytes", rotResult.DeletedSize).
			Int("errors", len(rotResult.Errors)).
			Msg("rotation complete")
	}

	return result
}

func containerName(containers []container.Container, i int) string {
	if i < 0 || i >= len(containers) {
		return "<unknown>"
	}
	return containers[i].Name
}

func (s *Scheduler) logCycle(ctx context.Context, result CycleResult) {
	if result.Aborted {
		s.logger.Error().Str("reason", result.AbortReason).Msg("backup cycle aborted")
		return
	}
	summary := s.mon.Summary()
	s.logger.Info().
		Int("discovered", result.Discovered).
		Int("succeeded", result.Succeeded).
		Int("failed", result.Failed).
		Interface("summary", summary).
		Msg("backup cycle complete")

	if s.notify != nil {
		s.notify.Dispatch(ctx, notifier.Event{
			Kind:      notifier.KindSummary,
			Timestamp: time.Now().UTC(),
			Status:    "complete",
			Message:   fmt.Sprintf("cycle complete: %d discovered, %d succeeded, %d failed", result.Discovered, result.Succeeded, result.Failed),
		})
	}
}
