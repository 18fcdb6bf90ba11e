package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
)

// LocalStore persists objects on disk with the same id scheme as S3Store.
// It backs development setups and tests.
type LocalStore struct {
	root string
}

// NewLocalStore creates a store rooted at root.
func NewLocalStore(root string) (*LocalStore, error) {
	if root == "" {
		return nil, wrapError(CodeBucketNotFound, false, errors.New("storage directory is required"))
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve storage directory: %w", err)
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, wrapError(CodePermissionDenied, false, err)
	}
	return &LocalStore{root: abs}, nil
}

func (s *LocalStore) EnsureFolder(ctx context.Context, name, parentID string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	key := folderKey(parentID, name)
	if err := os.MkdirAll(s.fullPath(key), 0o755); err != nil {
		return "", wrapError(CodePermissionDenied, false, err)
	}
	return key, nil
}

func (s *LocalStore) Upload(ctx context.Context, body io.Reader, size int64, name, folderID, contentType string) (UploadResult, error) {
	if err := ctx.Err(); err != nil {
		return UploadResult{}, err
	}
	key := objectKey(folderID, name)
	full := s.fullPath(key)
	if _, err := os.Stat(full); err == nil {
		return UploadResult{RemoteID: key, RemoteURL: s.objectURL(key), Status: StatusAlreadyExists}, nil
	}

	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return UploadResult{}, wrapError(CodePermissionDenied, false, err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(full), ".upload-*")
	if err != nil {
		return UploadResult{}, wrapError(CodeWriteFailed, true, err)
	}
	written, err := io.Copy(tmp, body)
	closeErr := tmp.Close()
	if err == nil {
		err = closeErr
	}
	if err == nil && size >= 0 && written != size {
		err = fmt.Errorf("short write: %d of %d bytes", written, size)
	}
	if err == nil {
		err = os.Rename(tmp.Name(), full)
	}
	if err != nil {
		os.Remove(tmp.Name())
		return UploadResult{}, wrapError(CodeWriteFailed, true, err)
	}
	return UploadResult{RemoteID: key, RemoteURL: s.objectURL(key), Status: StatusUploaded}, nil
}

func (s *LocalStore) Delete(ctx context.Context, remoteID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := os.Remove(s.fullPath(remoteID)); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return wrapError(CodeObjectNotFound, false, err)
		}
		return wrapError(CodeWriteFailed, true, err)
	}
	return nil
}

func (s *LocalStore) List(ctx context.Context, folderID string) ([]Object, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(s.fullPath(folderID))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, wrapError(CodeWriteFailed, true, err)
	}

	var objects []Object
	for _, entry := range entries {
		if entry.IsDir() || strings.HasPrefix(entry.Name(), ".") {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		key := objectKey(folderID, entry.Name())
		objects = append(objects, Object{
			ID:          key,
			Name:        entry.Name(),
			URL:         s.objectURL(key),
			Size:        info.Size(),
			CreatedTime: info.ModTime(),
		})
	}
	sort.Slice(objects, func(i, j int) bool { return objects[i].Name < objects[j].Name })
	return objects, nil
}

func (s *LocalStore) Rename(ctx context.Context, remoteID, newName string) (Object, error) {
	if err := ctx.Err(); err != nil {
		return Object{}, err
	}
	newKey := objectKey(path.Dir(remoteID), newName)
	if err := os.Rename(s.fullPath(remoteID), s.fullPath(newKey)); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return Object{}, wrapError(CodeObjectNotFound, false, err)
		}
		return Object{}, wrapError(CodeWriteFailed, true, err)
	}
	obj := Object{ID: newKey, Name: newName, URL: s.objectURL(newKey)}
	if info, err := os.Stat(s.fullPath(newKey)); err == nil {
		obj.Size = info.Size()
		obj.CreatedTime = info.ModTime()
	}
	return obj, nil
}

func (s *LocalStore) fullPath(key string) string {
	return filepath.Join(s.root, filepath.FromSlash(path.Clean("/"+key)))
}

func (s *LocalStore) objectURL(key string) string {
	return (&url.URL{Scheme: "file", Path: filepath.ToSlash(s.fullPath(key))}).String()
}
