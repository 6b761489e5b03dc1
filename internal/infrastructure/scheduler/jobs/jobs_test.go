package jobs

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/englishprofesor/tutor-bot/internal/application/command"
	"github.com/englishprofesor/tutor-bot/pkg/logger"
)

type fakeCloser struct {
	got command.CloseStaleLessonsCommand
	res *command.CloseStaleLessonsResult
	err error
}

func (f *fakeCloser) Handle(_ context.Context, cmd command.CloseStaleLessonsCommand) (*command.CloseStaleLessonsResult, error) {
	f.got = cmd
	return f.res, f.err
}

func TestCloseStaleLessonsJob(t *testing.T) {
	tests := []struct {
		name    string
		res     *command.CloseStaleLessonsResult
		err     error
		wantErr bool
	}{
		{name: "nothing stale", res: &command.CloseStaleLessonsResult{}},
		{name: "partial failure tolerated", res: &command.CloseStaleLessonsResult{Found: 3, Closed: 2, Failed: 1}},
		{name: "all failed", res: &command.CloseStaleLessonsResult{Found: 2, Failed: 2}, wantErr: true},
		{name: "list error", err: errors.New("db down"), wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			closer := &fakeCloser{res: tt.res, err: tt.err}
			job := NewCloseStaleLessonsJob(closer, 3*time.Hour, 50, logger.Discard())

			err := job.Run(context.Background())
			if tt.wantErr {
				require.Error(t, err)
			} else {
				require.NoError(t, err)
			}
			assert.Equal(t, 3*time.Hour, closer.got.IdleTimeout)
			assert.Equal(t, 50, closer.got.BatchSize)
		})
	}
	assert.Equal(t, "close_stale_lessons", (&CloseStaleLessonsJob{}).Name())
}

type fakeRefresher struct {
	days int
	err  error
}

func (f *fakeRefresher) RefreshDaily(_ context.Context, days int) (int, error) {
	f.days = days
	return days, f.err
}

func TestRefreshDailyStatsJob(t *testing.T) {
	r := &fakeRefresher{}
	job := NewRefreshDailyStatsJob(r, 30, logger.Discard())

	require.NoError(t, job.Run(context.Background()))
	assert.Equal(t, 30, r.days)
	assert.Equal(t, "refresh_daily_stats", job.Name())

	r.err = errors.New("redis down")
	assert.ErrorContains(t, job.Run(context.Background()), "refresh daily stats: redis down")
}
