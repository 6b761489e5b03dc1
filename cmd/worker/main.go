// Package main - точка входа фонового процесса (Worker) English Profesor Expert.
//
// Worker выполняет периодические задачи:
//   - закрытие уроков, в которых студент давно не писал (close_stale_lessons)
//   - прогрев кеша дневной статистики админ-панели (refresh_daily_stats)
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/englishprofesor/tutor-bot/config"
	"github.com/englishprofesor/tutor-bot/internal/application/command"
	"github.com/englishprofesor/tutor-bot/internal/application/query"
	"github.com/englishprofesor/tutor-bot/internal/infrastructure/persistence/postgres"
	"github.com/englishprofesor/tutor-bot/internal/infrastructure/persistence/redis"
	"github.com/englishprofesor/tutor-bot/internal/infrastructure/scheduler"
	"github.com/englishprofesor/tutor-bot/internal/infrastructure/scheduler/jobs"
	"github.com/englishprofesor/tutor-bot/pkg/logger"
	"github.com/englishprofesor/tutor-bot/pkg/timeutil"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

// staleLessonBatch - сколько уроков закрывается за один прогон.
const staleLessonBatch = 200

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "fatal error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	// ─────────────────────────────────────────────────────────────────────────
	// 1. КОНФИГУРАЦИЯ И ЛОГИРОВАНИЕ
	// ─────────────────────────────────────────────────────────────────────────
	cfg, err := config.LoadWorker()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	log := logger.New(logger.Options{
		Environment: string(cfg.App.Environment),
		Debug:       cfg.App.Debug,
		Level:       cfg.App.LogLevel,
		Service:     "worker",
	})
	log.Info("starting worker",
		"version", version,
		"env", cfg.App.Environment,
		"timezone", cfg.App.Timezone,
		"enabled", cfg.Worker.Enabled,
	)

	if !cfg.Worker.Enabled {
		log.Info("worker disabled by WORKER_ENABLED=false, waiting for shutdown")
		<-ctx.Done()
		return nil
	}

	clock := timeutil.NewSystemClock(cfg.App.Location)

	// ─────────────────────────────────────────────────────────────────────────
	// 2. POSTGRES
	// ─────────────────────────────────────────────────────────────────────────
	db, err := postgres.NewConnectionFromURL(ctx, cfg.Database.URL, postgres.PoolOptions{
		MaxConns:        cfg.Database.MaxConns,
		MinConns:        cfg.Database.MinConns,
		MaxConnLifetime: cfg.Database.ConnMaxLifetime,
		MaxConnIdleTime: cfg.Database.ConnMaxIdleTime,
	})
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer db.Close()

	if cfg.Database.AutoMigrate {
		if err := postgres.NewMigrator(db).Migrate(ctx); err != nil {
			return fmt.Errorf("failed to run migrations: %w", err)
		}
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 3. REDIS (опционально: без него нечего прогревать)
	// ─────────────────────────────────────────────────────────────────────────
	var cache *redis.Cache
	if cfg.Redis.URL != "" {
		cache, err = redis.NewCache(ctx, redis.Config{
			URL:          cfg.Redis.URL,
			PoolSize:     cfg.Redis.PoolSize,
			MinIdleConns: cfg.Redis.MinIdleConns,
			DialTimeout:  cfg.Redis.DialTimeout,
			ReadTimeout:  cfg.Redis.ReadTimeout,
			WriteTimeout: cfg.Redis.WriteTimeout,
		})
		if err != nil {
			log.Warn("redis unavailable, daily stats warm-up disabled", "error", err)
			cache = nil
		} else {
			defer cache.Close()
		}
	}
	stats := redis.NewStatsCache(cache)

	// ─────────────────────────────────────────────────────────────────────────
	// 4. APPLICATION LAYER
	// ─────────────────────────────────────────────────────────────────────────
	students := postgres.NewStudentRepository(db)
	lessons := postgres.NewLessonRepository(db)

	ender := command.NewEndLessonHandler(students, lessons, stats, clock, log)
	closer := command.NewCloseStaleLessonsHandler(lessons, ender, clock, log)

	// ─────────────────────────────────────────────────────────────────────────
	// 5. SCHEDULER
	// ─────────────────────────────────────────────────────────────────────────
	sched := scheduler.New(scheduler.Config{
		Logger:         log,
		Location:       cfg.App.Location,
		DefaultTimeout: cfg.Worker.JobTimeout,
	})

	err = sched.Register(
		jobs.NewCloseStaleLessonsJob(closer, cfg.Worker.LessonIdleTimeout, staleLessonBatch, log),
		scheduler.NewIntervalSchedule(cfg.Worker.Interval),
		scheduler.JobOptions{RunOnStart: true},
	)
	if err != nil {
		return err
	}

	if cache != nil {
		daily, err := scheduler.ParseCron(cfg.Worker.DailyStatsCron)
		if err != nil {
			return fmt.Errorf("WORKER_DAILY_STATS_CRON: %w", err)
		}
		admin := query.NewAdminStatsHandler(postgres.NewAnalyticsRepository(db), lessons, stats, clock, log)
		err = sched.Register(
			jobs.NewRefreshDailyStatsJob(admin, cfg.Worker.DailyStatsDays, log),
			daily,
			scheduler.JobOptions{RunOnStart: true},
		)
		if err != nil {
			return err
		}
	}

	if err := sched.Start(ctx); err != nil {
		return fmt.Errorf("failed to start scheduler: %w", err)
	}
	log.Info("worker is running", "jobs", len(sched.Jobs()))

	// ─────────────────────────────────────────────────────────────────────────
	// 6. GRACEFUL SHUTDOWN
	// ─────────────────────────────────────────────────────────────────────────
	<-ctx.Done()
	log.Info("received shutdown signal")

	done := make(chan struct{})
	go func() {
		_ = sched.Stop()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(cfg.App.ShutdownTimeout):
		log.Warn("jobs did not finish before shutdown timeout")
	}

	for _, j := range sched.Jobs() {
		log.Info("job summary", "job", j.Name, "runs", j.RunCount, "failures", j.FailCount, "skipped", j.Skipped)
	}
	log.Info("shutdown completed")
	return nil
}
