package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countJob struct {
	name string
	runs atomic.Int32
	err  error
}

func (j *countJob) Name() string { return j.name }

func (j *countJob) Run(context.Context) error {
	j.runs.Add(1)
	return j.err
}

func TestScheduler_RunsDueJobs(t *testing.T) {
	s := NewScheduler(Config{Tick: 5 * time.Millisecond})
	job := &countJob{name: "count"}
	require.NoError(t, s.Register(job, Every(10*time.Millisecond)))

	require.NoError(t, s.Start(context.Background()))
	require.Eventually(t, func() bool { return job.runs.Load() >= 2 }, time.Second, 5*time.Millisecond)
	require.NoError(t, s.Stop())

	assert.ErrorIs(t, s.Stop(), ErrSchedulerNotRunning)
}

func TestScheduler_RegisterErrors(t *testing.T) {
	s := NewScheduler(Config{})
	assert.ErrorIs(t, s.Register(nil, Every(time.Second)), ErrNilJob)
	assert.ErrorIs(t, s.Register(&countJob{name: "a"}, nil), ErrNilSchedule)

	require.NoError(t, s.Register(&countJob{name: "a"}, Every(time.Second)))
	assert.ErrorIs(t, s.Register(&countJob{name: "a"}, Every(time.Second)), ErrJobAlreadyExists)
}

func TestScheduler_RunNow(t *testing.T) {
	s := NewScheduler(Config{})
	boom := errors.New("boom")
	job := &countJob{name: "fail", err: boom}
	require.NoError(t, s.Register(job, Every(time.Hour)))

	var seen JobResult
	s.OnJobComplete(func(r JobResult) { seen = r })

	res, err := s.RunNow(context.Background(), "fail")
	assert.ErrorIs(t, err, boom)
	assert.False(t, res.Success())
	assert.Equal(t, "fail", seen.JobName)

	infos := s.Jobs()
	require.Len(t, infos, 1)
	assert.Equal(t, int64(1), infos[0].RunCount)
	assert.Equal(t, "boom", infos[0].LastErr)
	assert.Equal(t, "@every 1h0m0s", infos[0].Schedule)

	_, err = s.RunNow(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrJobNotFound)
}
