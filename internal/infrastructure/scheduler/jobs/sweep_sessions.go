// Package jobs contains the scheduled housekeeping jobs.
package jobs

import (
	"context"

	"github.com/webmasters-learning/receipt-desk/pkg/logger"
)

// SessionSweeper evicts idle sessions.
type SessionSweeper interface {
	Sweep() int
	Len() int
}

// SweepSessionsJob evicts operator sessions that have been idle too long.
type SweepSessionsJob struct {
	sessions SessionSweeper
	logger   *logger.Logger
}

// NewSweepSessionsJob creates the job.
func NewSweepSessionsJob(sessions SessionSweeper, log *logger.Logger) *SweepSessionsJob {
	if log == nil {
		log = logger.Nop()
	}
	return &SweepSessionsJob{sessions: sessions, logger: log}
}

// Name implements scheduler.Job.
func (j *SweepSessionsJob) Name() string { return "sweep_sessions" }

// Run implements scheduler.Job.
func (j *SweepSessionsJob) Run(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if n := j.sessions.Sweep(); n > 0 {
		j.logger.Debug("sessions swept", logger.Int("evicted", n), logger.Int("live", j.sessions.Len()))
	}
	return nil
}
