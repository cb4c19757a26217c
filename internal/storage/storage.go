// Package storage uploads finished videos to a media host and returns the
// public URL.
package storage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path"
	"strings"

	"github.com/google/uuid"

	"videogen/internal/domain"
	"videogen/internal/infra"
)

// DefaultFolder is the remote folder videos are uploaded into.
const DefaultFolder = "ai_videos"

// UploadResult identifies an uploaded asset.
type UploadResult struct {
	URL string
	ID  string
}

// Uploader pushes a local file to remote storage. A successful upload removes
// the local file; a failed one leaves it in place.
type Uploader interface {
	Upload(ctx context.Context, localPath string) (UploadResult, error)
}

// Options selects and configures a backend.
type Options struct {
	Provider string
	Folder   string

	CloudinaryCloudName string
	CloudinaryAPIKey    string
	CloudinaryAPISecret string

	S3Bucket        string
	AWSRegion       string
	S3PublicBaseURL string

	LocalPath    string
	LocalBaseURL string

	Logger *infra.Logger
}

// New builds the uploader named by opts.Provider.
func New(ctx context.Context, opts Options) (Uploader, error) {
	switch strings.ToLower(strings.TrimSpace(opts.Provider)) {
	case "", infra.StorageCloudinary:
		return NewCloudinary(opts), nil
	case infra.StorageS3:
		return NewS3(ctx, opts)
	case infra.StorageLocal:
		return NewLocal(opts)
	}
	return nil, fmt.Errorf("%w: unsupported storage provider %q", domain.ErrConfiguration, opts.Provider)
}

// RemoveLocal deletes path. A file that is already gone is not an error.
func RemoveLocal(path string) error {
	if strings.TrimSpace(path) == "" {
		return nil
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

func folderOrDefault(folder string) string {
	folder = strings.Trim(strings.TrimSpace(folder), "/")
	if folder == "" {
		return DefaultFolder
	}
	return folder
}

// objectKey returns "<folder>/<uuid><ext>".
func objectKey(folder, localPath string) string {
	ext := strings.ToLower(path.Ext(localPath))
	if ext == "" {
		ext = ".mp4"
	}
	return folder + "/" + uuid.NewString() + ext
}

func loggerOrNop(l *infra.Logger) infra.Logger {
	if l != nil {
		return *l
	}
	return infra.NopLogger()
}

// finish removes the uploaded source and logs when that fails.
func finish(logger infra.Logger, localPath string) {
	if err := RemoveLocal(localPath); err != nil {
		logger.Warn().Err(err).Str("path", localPath).Msg("storage: remove local file failed")
	}
}
