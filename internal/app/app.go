// Package app assembles the catalog, object store and orchestrator shared by
// the binaries under cmd/.
package app

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"podcast-archiver/internal/config"
	"podcast-archiver/internal/db"
	"podcast-archiver/internal/downloader"
	"podcast-archiver/internal/feed"
	"podcast-archiver/internal/logging"
	"podcast-archiver/internal/pipeline"
	"podcast-archiver/internal/runlock"
	"podcast-archiver/internal/storage"
)

// CommitSHA is set at build time via ldflags.
var CommitSHA = "unknown"

// Bootstrap loads .env, reads the environment and builds the logger. A missing
// .env file is logged and ignored.
func Bootstrap(component string) (config.Env, *zap.Logger, error) {
	dotenvErr := config.LoadDotEnv()
	env := config.FromEnv()

	logger, err := logging.New(logging.Options{
		Level:  env.LogLevel,
		Format: env.LogFormat,
		Dir:    env.LogDir,
	})
	if err != nil {
		return env, nil, err
	}
	logger = logger.With(zap.String("component", component))
	if dotenvErr != nil {
		logger.Debug("no .env file loaded", zap.Error(dotenvErr))
	}
	logger.Info("starting", zap.String("commit", CommitSHA))
	return env, logger, nil
}

// OpenCatalog connects to the catalog and ensures its schema.
func OpenCatalog(ctx context.Context, env config.Env, logger *zap.Logger) (*db.Store, error) {
	store, err := db.InitDB(ctx, env.DatabaseURL)
	if err != nil {
		return nil, err
	}
	logger.Info("catalog ready")
	return store, nil
}

// OpenStore returns the configured object store, or nil when it cannot be
// used. Passes then catalogue episodes without downloading or uploading.
func OpenStore(ctx context.Context, env config.Env, catalog storage.SettingsSource, logger *zap.Logger) storage.ObjectStore {
	store, err := storage.Open(ctx, env.Storage, catalog)
	switch {
	case errors.Is(err, storage.ErrNoCredentials):
		logger.Warn("no object store credentials, uploads disabled", zap.String("backend", env.Storage.Backend))
		return nil
	case err != nil:
		logger.Error("object store unavailable, uploads disabled", zap.String("backend", env.Storage.Backend), zap.Error(err))
		return nil
	}
	logger.Info("object store ready", zap.String("backend", env.Storage.Backend))
	return store
}

// newTransports builds the feed reader and downloader without client
// timeouts. Each pass bounds its calls with request_timeout_seconds and
// transfer_timeout_seconds from the podcasts document through the context,
// and a client timeout would cap those.
func newTransports(logger *zap.Logger) (*feed.Reader, *downloader.HTTPDownloader) {
	return feed.NewReader(0), downloader.New(0, "", logger.Named("downloader"))
}

// NewOrchestrator wires the pass pipeline. store may be nil.
func NewOrchestrator(env config.Env, catalog *db.Store, store storage.ObjectStore, logger *zap.Logger) *pipeline.Orchestrator {
	reader, dl := newTransports(logger)
	return pipeline.New(pipeline.Deps{
		Catalog:    catalog,
		Feeds:      reader,
		Downloader: dl,
		Store:      store,
		LoadConfig: func() (*config.Document, error) { return config.LoadPodcasts(env) },
		Lock:       runlock.New(env.LockFile),
	}, logger.Named("pipeline"))
}

// Setup runs Bootstrap, opens the catalog and the store, and builds the
// orchestrator. Close releases what it opened.
type Setup struct {
	Env          config.Env
	Logger       *zap.Logger
	Catalog      *db.Store
	Store        storage.ObjectStore
	Orchestrator *pipeline.Orchestrator
}

func NewSetup(ctx context.Context, component string) (*Setup, error) {
	env, logger, err := Bootstrap(component)
	if err != nil {
		return nil, err
	}
	catalog, err := OpenCatalog(ctx, env, logger)
	if err != nil {
		logger.Sync()
		return nil, err
	}
	store := OpenStore(ctx, env, catalog, logger)
	return &Setup{
		Env:          env,
		Logger:       logger,
		Catalog:      catalog,
		Store:        store,
		Orchestrator: NewOrchestrator(env, catalog, store, logger),
	}, nil
}

func (s *Setup) Close() {
	if err := s.Catalog.Close(); err != nil {
		s.Logger.Warn("failed to close catalog", zap.Error(err))
	}
	s.Logger.Sync()
}
