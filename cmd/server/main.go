package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"podcast-archiver/internal/app"
	"podcast-archiver/internal/config"
	"podcast-archiver/internal/handlers"
	"podcast-archiver/internal/middleware"
	"podcast-archiver/pkg/tasks"
)

const (
	requestsPerSecond = 5
	requestBurst      = 20
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	env, logger, err := app.Bootstrap("server")
	if err != nil {
		fmt.Fprintf(os.Stderr, "server: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	catalog, err := app.OpenCatalog(ctx, env, logger)
	if err != nil {
		logger.Fatal("could not open catalog", zap.Error(err))
	}
	defer catalog.Close()

	client := asynq.NewClient(asynq.RedisClientOpt{Addr: env.RedisAddr})
	defer client.Close()

	srv := &http.Server{
		Addr:              ":" + env.Port,
		Handler:           newHandler(catalog, client, env, logger),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	logger.Info("starting server", zap.String("addr", srv.Addr), zap.Bool("auth", env.APIToken != ""))
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Fatal("server stopped", zap.Error(err))
	}
}

func newHandler(catalog handlers.Catalog, client tasks.TaskEnqueuer, env config.Env, logger *zap.Logger) http.Handler {
	h := handlers.New(catalog, client, handlers.Options{BaseURL: env.BaseURL}, logger.Named("api"))
	limiter := middleware.NewRateLimiterMiddleware(rate.Limit(requestsPerSecond), requestBurst, logger.Named("ratelimit"))
	return handlers.NewRouter(h, env.APIToken, limiter)
}
