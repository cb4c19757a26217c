// Package jobstore persists the last-known status of each job. Writes are
// upserts keyed by job id that merge metadata field by field and always
// overwrite the status.
package jobstore

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"videogen/internal/domain"
	"videogen/internal/infra"
)

// Store is a key-value upsert sink for job status.
type Store interface {
	Upsert(ctx context.Context, jobID string, status domain.JobStatus, metadata map[string]any) error
	Get(ctx context.Context, jobID string) (*domain.Job, error)
	Close(ctx context.Context) error
}

// Options selects and configures a backend.
type Options struct {
	// URL is the connection string; its scheme picks the backend. Empty
	// disables persistence.
	URL string
	// Database is used by the Mongo backend.
	Database string
	// Collection names the Mongo collection, Postgres table or Redis key prefix.
	Collection string
	// Logger receives SQL diagnostics from the Postgres backend.
	Logger *infra.Logger
}

// Backend returns the backend name for a connection string.
func Backend(rawURL string) (string, error) {
	rawURL = strings.TrimSpace(rawURL)
	if rawURL == "" {
		return "noop", nil
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("jobstore: parse url: %w", err)
	}
	switch strings.ToLower(u.Scheme) {
	case "mongodb", "mongodb+srv":
		return "mongo", nil
	case "postgres", "postgresql":
		return "postgres", nil
	case "redis", "rediss":
		return "redis", nil
	case "memory":
		return "memory", nil
	default:
		return "", fmt.Errorf("jobstore: unsupported scheme %q", u.Scheme)
	}
}

// Open connects the backend selected by opts.URL.
func Open(ctx context.Context, opts Options) (Store, error) {
	backend, err := Backend(opts.URL)
	if err != nil {
		return nil, err
	}
	collection := strings.TrimSpace(opts.Collection)
	if collection == "" {
		collection = "video_jobs"
	}
	switch backend {
	case "noop":
		return Noop{}, nil
	case "memory":
		return NewMemory(), nil
	case "mongo":
		database := strings.TrimSpace(opts.Database)
		if database == "" {
			database = "ai_video"
		}
		return OpenMongo(ctx, opts.URL, database, collection)
	case "postgres":
		logger := infra.NopLogger()
		if opts.Logger != nil {
			logger = *opts.Logger
		}
		return OpenPostgres(ctx, opts.URL, collection, logger)
	case "redis":
		return OpenRedis(ctx, opts.URL, collection)
	}
	return nil, fmt.Errorf("jobstore: unsupported backend %q", backend)
}

// mergeFields builds the field set written by an upsert. status is applied
// last so a metadata key of the same name never wins.
func mergeFields(status domain.JobStatus, metadata map[string]any) map[string]any {
	fields := make(map[string]any, len(metadata)+1)
	for k, v := range metadata {
		if k == "_id" || k == "id" {
			continue
		}
		fields[k] = v
	}
	fields["status"] = string(status)
	return fields
}

// Noop is used when no store is configured.
type Noop struct{}

func (Noop) Upsert(context.Context, string, domain.JobStatus, map[string]any) error { return nil }

func (Noop) Get(context.Context, string) (*domain.Job, error) { return nil, domain.ErrNotFound }

func (Noop) Close(context.Context) error { return nil }

var _ Store = Noop{}
