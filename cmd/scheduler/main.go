package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/hibiken/asynq"
	"go.uber.org/zap"

	"podcast-archiver/internal/app"
	"podcast-archiver/internal/config"
	"podcast-archiver/internal/models"
	"podcast-archiver/pkg/tasks"
)

func main() {
	env, logger, err := app.Bootstrap("scheduler")
	if err != nil {
		fmt.Fprintf(os.Stderr, "scheduler: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	doc, err := config.LoadPodcasts(env)
	if err != nil {
		logger.Fatal("could not load podcasts config", zap.Error(err))
	}
	interval := doc.Settings.CheckInterval()

	scheduler := asynq.NewScheduler(
		asynq.RedisClientOpt{Addr: env.RedisAddr},
		&asynq.SchedulerOpts{
			Logger: logger.Sugar(),
			PostEnqueueFunc: func(info *asynq.TaskInfo, err error) {
				switch {
				case errors.Is(err, asynq.ErrDuplicateTask):
					logger.Info("previous pass still queued, skipping")
				case err != nil:
					logger.Error("could not enqueue pass", zap.Error(err))
				default:
					logger.Info("pass enqueued", zap.String("task_id", info.ID))
				}
			},
		},
	)

	task, err := tasks.NewRunPassTask(models.RunTypeScheduled, tasks.UniqueFor(interval))
	if err != nil {
		logger.Fatal("could not create task", zap.Error(err))
	}

	cronspec := fmt.Sprintf("@every %s", interval)
	if _, err := scheduler.Register(cronspec, task); err != nil {
		logger.Fatal("could not register task", zap.Error(err))
	}

	logger.Info("scheduler starting", zap.String("cronspec", cronspec))
	if err := scheduler.Run(); err != nil {
		logger.Fatal("could not run scheduler", zap.Error(err))
	}
}
