package storage

import (
	"context"
	"io"
	"path"
	"strings"
	"time"
)

// UploadStatus distinguishes a fresh upload from a name collision.
type UploadStatus string

const (
	StatusUploaded      UploadStatus = "uploaded"
	StatusAlreadyExists UploadStatus = "already_exists"
)

// Object is one file in a remote folder. ID is stable for the object's
// lifetime and is what the catalog records as remote_file_id.
type Object struct {
	ID          string
	Name        string
	URL         string
	Size        int64
	CreatedTime time.Time
}

// UploadResult is returned by ObjectStore.Upload.
type UploadResult struct {
	RemoteID  string
	RemoteURL string
	Status    UploadStatus
}

// ObjectStore is the remote destination for episode audio. Folder ids are
// opaque to callers; pass "" as parent for a top-level folder.
type ObjectStore interface {
	EnsureFolder(ctx context.Context, name, parentID string) (string, error)
	Upload(ctx context.Context, body io.Reader, size int64, name, folderID, contentType string) (UploadResult, error)
	Delete(ctx context.Context, remoteID string) error
	List(ctx context.Context, folderID string) ([]Object, error)
	Rename(ctx context.Context, remoteID, newName string) (Object, error)
}

// folderKey joins a parent folder id and a folder name into a key prefix
// ending with a slash. The name always stays a single segment below parentID.
func folderKey(parentID, name string) string {
	clean := strings.Trim(strings.ReplaceAll(name, "/", "_"), " ")
	switch clean {
	case "":
		clean = "_"
	case ".", "..":
		clean = strings.Repeat("_", len(clean))
	}
	return strings.TrimPrefix(path.Join(parentID, clean), "/") + "/"
}

func objectKey(folderID, name string) string {
	if folderID == "" || folderID == "." {
		return strings.ReplaceAll(name, "/", "_")
	}
	return strings.TrimSuffix(folderID, "/") + "/" + strings.ReplaceAll(name, "/", "_")
}
