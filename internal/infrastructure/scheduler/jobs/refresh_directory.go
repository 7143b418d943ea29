package jobs

import (
	"context"
	"fmt"

	"github.com/webmasters-learning/receipt-desk/internal/domain/student"
)

// DirectoryCache is a cached student directory that can be dropped.
type DirectoryCache interface {
	student.Source
	Invalidate(ctx context.Context) error
}

// RefreshDirectoryJob drops the cached listing and reloads it so new
// sessions see a warm cache.
type RefreshDirectoryJob struct {
	cache DirectoryCache
}

// NewRefreshDirectoryJob creates the job.
func NewRefreshDirectoryJob(cache DirectoryCache) *RefreshDirectoryJob {
	return &RefreshDirectoryJob{cache: cache}
}

// Name implements scheduler.Job.
func (j *RefreshDirectoryJob) Name() string { return "refresh_directory" }

// Run implements scheduler.Job.
func (j *RefreshDirectoryJob) Run(ctx context.Context) error {
	if err := j.cache.Invalidate(ctx); err != nil {
		return fmt.Errorf("invalidate directory: %w", err)
	}
	if _, err := j.cache.ListStudents(ctx); err != nil {
		return fmt.Errorf("reload directory: %w", err)
	}
	return nil
}
