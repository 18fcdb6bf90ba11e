package storage

import (
	"context"
	"fmt"

	"podcast-archiver/internal/config"
)

// Open builds the configured object store. For the s3 backend it resolves
// credentials first and returns ErrNoCredentials when none are available, so
// callers can run without a destination.
func Open(ctx context.Context, env config.StorageEnv, settings SettingsSource) (ObjectStore, error) {
	switch env.Backend {
	case config.BackendLocal:
		store, err := NewLocalStore(env.LocalDir)
		if err != nil {
			return nil, err
		}
		return store, nil
	case config.BackendS3:
		creds, err := ResolveCredentials(ctx, settings)
		if err != nil {
			return nil, err
		}
		store, err := NewS3Store(S3Config{
			Endpoint: env.Endpoint,
			Bucket:   env.Bucket,
			Region:   env.Region,
			UseSSL:   env.UseSSL,
		}, creds)
		if err != nil {
			return nil, err
		}
		if err := store.EnsureBucket(ctx); err != nil {
			return nil, fmt.Errorf("ensure bucket %s: %w", env.Bucket, err)
		}
		return store, nil
	default:
		return nil, fmt.Errorf("unknown storage backend %q", env.Backend)
	}
}
