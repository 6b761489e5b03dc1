// Package jobs contains the tutor's scheduled jobs.
package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/englishprofesor/tutor-bot/internal/application/command"
)

// StaleLessonCloser closes lessons idle longer than a timeout.
type StaleLessonCloser interface {
	Handle(ctx context.Context, cmd command.CloseStaleLessonsCommand) (*command.CloseStaleLessonsResult, error)
}

// CloseStaleLessonsJob ends lessons the student walked away from,
// so duration, streak and lesson counters get finalised.
type CloseStaleLessonsJob struct {
	closer      StaleLessonCloser
	idleTimeout time.Duration
	batchSize   int
	logger      *slog.Logger
}

// NewCloseStaleLessonsJob creates the job. Zero values fall back to the
// handler defaults (3h idle, 200 per sweep).
func NewCloseStaleLessonsJob(closer StaleLessonCloser, idleTimeout time.Duration, batchSize int, logger *slog.Logger) *CloseStaleLessonsJob {
	return &CloseStaleLessonsJob{
		closer:      closer,
		idleTimeout: idleTimeout,
		batchSize:   batchSize,
		logger:      logger,
	}
}

// Name implements scheduler.Job.
func (j *CloseStaleLessonsJob) Name() string { return "close_stale_lessons" }

// Run implements scheduler.Job.
func (j *CloseStaleLessonsJob) Run(ctx context.Context) error {
	res, err := j.closer.Handle(ctx, command.CloseStaleLessonsCommand{
		IdleTimeout: j.idleTimeout,
		BatchSize:   j.batchSize,
	})
	if err != nil {
		return fmt.Errorf("close stale lessons: %w", err)
	}

	j.logger.Debug("stale lesson sweep done", "found", res.Found)

	// частичный сбой не валит задачу: оставшиеся уроки закроет следующий прогон
	if res.Failed > 0 && res.Closed == 0 {
		return fmt.Errorf("close stale lessons: all %d attempts failed", res.Failed)
	}
	return nil
}
