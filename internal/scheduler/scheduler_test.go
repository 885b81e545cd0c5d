package scheduler

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yukikurage/rollout-ready-api/internal/config"
	"github.com/yukikurage/rollout-ready-api/internal/metrics"
)

type fakeSessions struct {
	removed int64
	err     error
	calls   int
}

func (f *fakeSessions) CleanupExpiredSessions() (int64, error) {
	f.calls++
	return f.removed, f.err
}

type fakeSweeper struct {
	grace    time.Duration
	deadline bool
}

func (f *fakeSweeper) SweepOrphans(ctx context.Context, grace time.Duration) (int, error) {
	f.grace = grace
	_, f.deadline = ctx.Deadline()
	return 3, nil
}

func jobsConfig() config.JobsConfig {
	return config.JobsConfig{
		SessionCleanup: "@hourly",
		OrphanSweep:    "@daily",
		OrphanGrace:    2 * time.Hour,
	}
}

func TestNew_RegistersJobs(t *testing.T) {
	s, err := New(jobsConfig(), &fakeSessions{}, &fakeSweeper{}, nil)
	require.NoError(t, err)
	assert.Len(t, s.cron.Entries(), 2)

	s.Start()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	s.Stop(ctx)
}

func TestNew_InvalidSchedule(t *testing.T) {
	cfg := jobsConfig()
	cfg.OrphanSweep = "every now and then"

	_, err := New(cfg, &fakeSessions{}, &fakeSweeper{}, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "orphan sweep")
}

func TestCleanupSessions(t *testing.T) {
	sessions := &fakeSessions{removed: 4}
	s, err := New(jobsConfig(), sessions, &fakeSweeper{}, nil)
	require.NoError(t, err)

	counter := metrics.HousekeepingRemovedTotal.WithLabelValues("sessions")
	before := testutil.ToFloat64(counter)

	removed, err := s.CleanupSessions()
	require.NoError(t, err)
	assert.Equal(t, int64(4), removed)
	assert.Equal(t, before+4, testutil.ToFloat64(counter))

	sessions.err = errors.New("db gone")
	_, err = s.CleanupSessions()
	assert.Error(t, err)

	// The cron wrapper logs failures instead of returning them.
	s.runSessionCleanup()
	assert.Equal(t, 3, sessions.calls)
}

func TestSweepOrphans_UsesGraceAndDeadline(t *testing.T) {
	sweeper := &fakeSweeper{}
	s, err := New(jobsConfig(), &fakeSessions{}, sweeper, nil)
	require.NoError(t, err)

	removed, err := s.SweepOrphans(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, removed)
	assert.Equal(t, 2*time.Hour, sweeper.grace)
	assert.True(t, sweeper.deadline)
}
