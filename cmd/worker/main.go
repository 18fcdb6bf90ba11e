package main

import (
	"context"
	"fmt"
	"os"

	"github.com/hibiken/asynq"
	"go.uber.org/zap"

	"podcast-archiver/internal/app"
	"podcast-archiver/internal/worker"
)

func main() {
	setup, err := app.NewSetup(context.Background(), "worker")
	if err != nil {
		fmt.Fprintf(os.Stderr, "worker: %v\n", err)
		os.Exit(1)
	}
	defer setup.Close()
	logger := setup.Logger

	srv := asynq.NewServer(
		asynq.RedisClientOpt{Addr: setup.Env.RedisAddr},
		asynq.Config{
			// One pass at a time; the run lock covers other hosts and the CLI.
			Concurrency: 1,
			Queues: map[string]int{
				"high":    2,
				"default": 1,
			},
			Logger: logger.Sugar(),
			ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
				logger.Error("task failed", zap.String("task", task.Type()), zap.Error(err))
			}),
		},
	)

	mux := asynq.NewServeMux()
	worker.NewTaskHandler(setup.Orchestrator, logger.Named("worker")).Register(mux)

	logger.Info("worker listening", zap.String("redis", setup.Env.RedisAddr))
	if err := srv.Run(mux); err != nil {
		logger.Error("could not run worker", zap.Error(err))
		setup.Close()
		os.Exit(1)
	}
}
