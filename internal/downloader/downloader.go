package downloader

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"go.uber.org/zap"
)

// Request describes one episode download.
type Request struct {
	URL    string
	Title  string
	Prefix string
}

// Download is a fully fetched episode. Body reads the content from the
// start; closing it discards any spooled data.
type Download struct {
	Body     io.ReadCloser
	Filename string
	Size     int64
}

// Close releases Body.
func (d *Download) Close() error {
	if d == nil || d.Body == nil {
		return nil
	}
	return d.Body.Close()
}

// tempFile removes itself on Close.
type tempFile struct {
	*os.File
}

func (f tempFile) Close() error {
	err := f.File.Close()
	if rmErr := os.Remove(f.Name()); rmErr != nil && !errors.Is(rmErr, os.ErrNotExist) && err == nil {
		err = rmErr
	}
	return err
}

// HTTPDownloader streams episode audio over HTTP into temporary files.
type HTTPDownloader struct {
	client  *http.Client
	tempDir string
	logger  *zap.Logger
}

// New returns a downloader whose transfers are bounded by timeout. Zero
// leaves the bound to the context passed to Fetch. tempDir may be empty to use
// the system default.
func New(timeout time.Duration, tempDir string, logger *zap.Logger) *HTTPDownloader {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &HTTPDownloader{
		client:  &http.Client{Timeout: timeout},
		tempDir: tempDir,
		logger:  logger,
	}
}

// Timeout is the client-side bound on each transfer, zero when unbounded.
func (d *HTTPDownloader) Timeout() time.Duration {
	return d.client.Timeout
}

// Fetch downloads req.URL and names the result with GenerateFilename. The
// returned Download is positioned at the start of the content.
func (d *HTTPDownloader) Fetch(ctx context.Context, req Request) (*Download, error) {
	if req.URL == "" {
		return nil, errors.New("no audio url")
	}
	filename := GenerateFilename(req.Title, req.URL, req.Prefix)

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, req.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("build download request: %w", err)
	}
	httpReq.Header.Set("User-Agent", "podcast-archiver")

	resp, err := d.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("download %s: %w", req.URL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("download %s: unexpected status %s", req.URL, resp.Status)
	}

	file, err := os.CreateTemp(d.tempDir, "episode-*")
	if err != nil {
		return nil, fmt.Errorf("create temp file: %w", err)
	}
	body := tempFile{File: file}

	size, err := io.Copy(file, resp.Body)
	if err != nil {
		body.Close()
		return nil, fmt.Errorf("download %s: %w", req.URL, err)
	}
	if _, err := file.Seek(0, io.SeekStart); err != nil {
		body.Close()
		return nil, fmt.Errorf("rewind download: %w", err)
	}

	d.logger.Debug("downloaded episode",
		zap.String("filename", filename),
		zap.Int64("bytes", size))
	return &Download{Body: body, Filename: filename, Size: size}, nil
}
