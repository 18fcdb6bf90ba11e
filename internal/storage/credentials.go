package storage

import (
	"context"
	"fmt"

	"github.com/minio/minio-go/v7/pkg/credentials"
)

// Settings keys consulted when neither MINIO_* nor AWS_* variables are set.
const (
	SettingAccessKey = "object_store_access_key"
	SettingSecretKey = "object_store_secret_key"
)

// SettingsSource reads persisted key/value settings.
type SettingsSource interface {
	GetSetting(ctx context.Context, key string) (string, bool, error)
}

// ResolveCredentials chains MINIO_ACCESS_KEY/MINIO_SECRET_KEY,
// AWS_ACCESS_KEY_ID/AWS_SECRET_ACCESS_KEY and the catalog settings, in that
// order. It returns ErrNoCredentials when every source is empty.
func ResolveCredentials(ctx context.Context, settings SettingsSource) (*credentials.Credentials, error) {
	providers := []credentials.Provider{
		&credentials.EnvMinio{},
		&credentials.EnvAWS{},
	}

	if settings != nil {
		access, okAccess, err := settings.GetSetting(ctx, SettingAccessKey)
		if err != nil {
			return nil, fmt.Errorf("read object store access key: %w", err)
		}
		secret, okSecret, err := settings.GetSetting(ctx, SettingSecretKey)
		if err != nil {
			return nil, fmt.Errorf("read object store secret key: %w", err)
		}
		if okAccess && okSecret {
			providers = append(providers, &credentials.Static{Value: credentials.Value{
				AccessKeyID:     access,
				SecretAccessKey: secret,
				SignerType:      credentials.SignatureV4,
			}})
		}
	}

	creds := credentials.NewChainCredentials(providers)
	value, err := creds.Get()
	if err != nil {
		return nil, fmt.Errorf("resolve object store credentials: %w", err)
	}
	if value.AccessKeyID == "" || value.SecretAccessKey == "" {
		return nil, ErrNoCredentials
	}
	return creds, nil
}
