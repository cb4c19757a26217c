package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"videogen/internal/domain"
	"videogen/internal/infra"
)

// FileStore persists files onto the local filesystem. It backs the "local"
// storage provider for development where no media host is available.
type FileStore struct {
	basePath string
}

// NewFileStore initializes a FileStore rooted at basePath.
func NewFileStore(basePath string) (*FileStore, error) {
	basePath = strings.TrimSpace(basePath)
	if basePath == "" {
		return nil, errors.New("storage: base path is required")
	}
	if err := os.MkdirAll(basePath, 0o755); err != nil {
		return nil, fmt.Errorf("storage: ensure base path: %w", err)
	}
	return &FileStore{basePath: basePath}, nil
}

// BasePath returns the configured root directory.
func (s *FileStore) BasePath() string {
	if s == nil {
		return ""
	}
	return s.basePath
}

// Copy streams src into the given relative key and returns the cleaned key.
func (s *FileStore) Copy(ctx context.Context, key string, src io.Reader) (string, error) {
	if s == nil {
		return "", errors.New("storage: no store configured")
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}
	cleanKey, err := sanitizeKey(key)
	if err != nil {
		return "", err
	}
	fullPath := filepath.Join(s.basePath, filepath.FromSlash(cleanKey))
	if err := os.MkdirAll(filepath.Dir(fullPath), 0o755); err != nil {
		return "", fmt.Errorf("storage: ensure directory: %w", err)
	}
	dst, err := os.Create(fullPath)
	if err != nil {
		return "", fmt.Errorf("storage: create file: %w", err)
	}
	if _, err := io.Copy(dst, src); err != nil {
		dst.Close()
		_ = os.Remove(fullPath)
		return "", fmt.Errorf("storage: write file: %w", err)
	}
	if err := dst.Close(); err != nil {
		return "", fmt.Errorf("storage: close file: %w", err)
	}
	return cleanKey, nil
}

// sanitizeKey normalizes a key and prevents escaping the storage root.
func sanitizeKey(key string) (string, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return "", errors.New("storage: key is required")
	}
	key = strings.ReplaceAll(key, "\\", "/")
	key = strings.TrimPrefix(key, "./")
	key = strings.TrimLeft(key, "/")
	cleaned := filepath.ToSlash(filepath.Clean(key))
	if cleaned == "." || cleaned == ".." || strings.HasPrefix(cleaned, "../") {
		return "", errors.New("storage: invalid key")
	}
	return cleaned, nil
}

// Local copies videos into a FileStore served over HTTP at baseURL.
type Local struct {
	store   *FileStore
	baseURL string
	folder  string
	logger  infra.Logger
}

func NewLocal(opts Options) (*Local, error) {
	store, err := NewFileStore(opts.LocalPath)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrConfiguration, err)
	}
	return &Local{
		store:   store,
		baseURL: strings.TrimRight(opts.LocalBaseURL, "/"),
		folder:  folderOrDefault(opts.Folder),
		logger:  infra.Component(loggerOrNop(opts.Logger), "local_storage"),
	}, nil
}

// Root is the directory served under /static.
func (l *Local) Root() string { return l.store.BasePath() }

func (l *Local) Upload(ctx context.Context, localPath string) (UploadResult, error) {
	src, err := os.Open(localPath)
	if err != nil {
		return UploadResult{}, fmt.Errorf("%w: open %s: %v", domain.ErrUpload, localPath, err)
	}
	key, err := l.store.Copy(ctx, objectKey(l.folder, localPath), src)
	src.Close()
	if err != nil {
		return UploadResult{}, fmt.Errorf("%w: %v", domain.ErrUpload, err)
	}
	finish(l.logger, localPath)
	l.logger.Info().Str("key", key).Msg("storage: stored video")
	return UploadResult{URL: l.baseURL + "/" + key, ID: key}, nil
}

var _ Uploader = (*Local)(nil)
