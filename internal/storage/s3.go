package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/url"
	"path"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// S3Config locates an S3-compatible bucket.
type S3Config struct {
	Endpoint string
	Bucket   string
	Region   string
	UseSSL   bool
}

// S3Store implements ObjectStore on an S3-compatible bucket. Folders are key
// prefixes marked by an empty object; object ids are keys.
type S3Store struct {
	client *minio.Client
	cfg    S3Config
}

// NewS3Store creates a client for cfg. No request is made until the first
// operation.
func NewS3Store(cfg S3Config, creds *credentials.Credentials) (*S3Store, error) {
	if cfg.Endpoint == "" {
		return nil, wrapError(CodeEndpointUnreachable, false, fmt.Errorf("endpoint is required"))
	}
	if cfg.Bucket == "" {
		return nil, wrapError(CodeBucketNotFound, false, fmt.Errorf("bucket is required"))
	}
	if creds == nil {
		return nil, wrapError(CodeAuthInvalid, false, ErrNoCredentials)
	}

	endpoint := cfg.Endpoint
	useSSL := cfg.UseSSL
	if u, err := url.Parse(cfg.Endpoint); err == nil && u.Host != "" {
		endpoint = u.Host
		useSSL = u.Scheme == "https"
	}

	client, err := minio.New(endpoint, &minio.Options{
		Creds:  creds,
		Secure: useSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, wrapError(CodeEndpointUnreachable, true, fmt.Errorf("create minio client: %w", err))
	}
	return &S3Store{client: client, cfg: cfg}, nil
}

// EnsureBucket creates the bucket when it is missing.
func (s *S3Store) EnsureBucket(ctx context.Context) error {
	exists, err := s.client.BucketExists(ctx, s.cfg.Bucket)
	if err != nil {
		return classifyMinioError(err)
	}
	if exists {
		return nil
	}
	if err := s.client.MakeBucket(ctx, s.cfg.Bucket, minio.MakeBucketOptions{Region: s.cfg.Region}); err != nil {
		return classifyMinioError(err)
	}
	return nil
}

func (s *S3Store) EnsureFolder(ctx context.Context, name, parentID string) (string, error) {
	key := folderKey(parentID, name)
	exists, err := s.exists(ctx, key)
	if err != nil {
		return "", err
	}
	if exists {
		return key, nil
	}

	_, err = s.client.PutObject(ctx, s.cfg.Bucket, key, bytes.NewReader(nil), 0, minio.PutObjectOptions{
		ContentType: "application/x-directory",
	})
	if err != nil {
		return "", classifyMinioError(err)
	}
	return key, nil
}

func (s *S3Store) Upload(ctx context.Context, body io.Reader, size int64, name, folderID, contentType string) (UploadResult, error) {
	key := objectKey(folderID, name)
	exists, err := s.exists(ctx, key)
	if err != nil {
		return UploadResult{}, err
	}
	if exists {
		return UploadResult{RemoteID: key, RemoteURL: s.objectURL(key), Status: StatusAlreadyExists}, nil
	}

	if contentType == "" {
		contentType = ContentType(name)
	}
	if _, err := s.client.PutObject(ctx, s.cfg.Bucket, key, body, size, minio.PutObjectOptions{ContentType: contentType}); err != nil {
		return UploadResult{}, classifyMinioError(err)
	}
	return UploadResult{RemoteID: key, RemoteURL: s.objectURL(key), Status: StatusUploaded}, nil
}

func (s *S3Store) Delete(ctx context.Context, remoteID string) error {
	if remoteID == "" {
		return wrapError(CodeObjectNotFound, false, fmt.Errorf("object id is required"))
	}
	if err := s.client.RemoveObject(ctx, s.cfg.Bucket, remoteID, minio.RemoveObjectOptions{}); err != nil {
		return classifyMinioError(err)
	}
	return nil
}

func (s *S3Store) List(ctx context.Context, folderID string) ([]Object, error) {
	var objects []Object
	for obj := range s.client.ListObjects(ctx, s.cfg.Bucket, minio.ListObjectsOptions{Prefix: folderID}) {
		if obj.Err != nil {
			return nil, classifyMinioError(obj.Err)
		}
		if obj.Key == folderID || strings.HasSuffix(obj.Key, "/") {
			continue
		}
		objects = append(objects, Object{
			ID:          obj.Key,
			Name:        path.Base(obj.Key),
			URL:         s.objectURL(obj.Key),
			Size:        obj.Size,
			CreatedTime: obj.LastModified,
		})
	}
	return objects, nil
}

// Rename copies the object to its new key within the same folder and removes
// the original. The returned Object carries the new id.
func (s *S3Store) Rename(ctx context.Context, remoteID, newName string) (Object, error) {
	newKey := objectKey(path.Dir(remoteID), newName)
	if newKey == remoteID {
		return Object{ID: remoteID, Name: newName, URL: s.objectURL(remoteID)}, nil
	}

	info, err := s.client.CopyObject(ctx,
		minio.CopyDestOptions{Bucket: s.cfg.Bucket, Object: newKey},
		minio.CopySrcOptions{Bucket: s.cfg.Bucket, Object: remoteID},
	)
	if err != nil {
		return Object{}, classifyMinioError(err)
	}
	if err := s.client.RemoveObject(ctx, s.cfg.Bucket, remoteID, minio.RemoveObjectOptions{}); err != nil {
		return Object{}, classifyMinioError(err)
	}
	return Object{ID: newKey, Name: newName, URL: s.objectURL(newKey), Size: info.Size}, nil
}

func (s *S3Store) exists(ctx context.Context, key string) (bool, error) {
	_, err := s.client.StatObject(ctx, s.cfg.Bucket, key, minio.StatObjectOptions{})
	if err == nil {
		return true, nil
	}
	classified := classifyMinioError(err)
	if IsNotFound(classified) {
		return false, nil
	}
	return false, classified
}

func (s *S3Store) objectURL(key string) string {
	u := *s.client.EndpointURL()
	u.Path = "/" + s.cfg.Bucket + "/" + key
	return u.String()
}
