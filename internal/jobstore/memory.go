package jobstore

import (
	"context"
	"sync"

	"videogen/internal/domain"
)

// Memory keeps records in process. Used for local runs and tests.
type Memory struct {
	mu   sync.RWMutex
	docs map[string]map[string]any
}

func NewMemory() *Memory {
	return &Memory{docs: make(map[string]map[string]any)}
}

func (m *Memory) Upsert(ctx context.Context, jobID string, status domain.JobStatus, metadata map[string]any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	doc, ok := m.docs[jobID]
	if !ok {
		doc = make(map[string]any)
		m.docs[jobID] = doc
	}
	for k, v := range mergeFields(status, metadata) {
		doc[k] = v
	}
	return nil
}

func (m *Memory) Get(ctx context.Context, jobID string) (*domain.Job, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	doc, ok := m.docs[jobID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return jobFromFields(jobID, doc), nil
}

func (m *Memory) Close(context.Context) error { return nil }

// jobFromFields splits a stored field set into status and metadata.
func jobFromFields(jobID string, fields map[string]any) *domain.Job {
	job := &domain.Job{ID: jobID, Metadata: make(map[string]any, len(fields))}
	for k, v := range fields {
		switch k {
		case "status":
			if s, ok := v.(string); ok {
				job.Status = domain.JobStatus(s)
			}
		case "_id", "id":
		default:
			job.Metadata[k] = v
		}
	}
	return job
}

var _ Store = (*Memory)(nil)
