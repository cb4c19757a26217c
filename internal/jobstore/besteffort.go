package jobstore

import (
	"context"
	"time"

	"videogen/internal/domain"
	"videogen/internal/infra"
)

// DefaultWriteTimeout bounds each best-effort write.
const DefaultWriteTimeout = 5 * time.Second

// BestEffort wraps a Store so status writes never fail the caller. Errors
// and panics are logged and dropped.
type BestEffort struct {
	store   Store
	timeout time.Duration
	logger  infra.Logger
}

func NewBestEffort(store Store, timeout time.Duration, logger infra.Logger) *BestEffort {
	if store == nil {
		store = Noop{}
	}
	if timeout <= 0 {
		timeout = DefaultWriteTimeout
	}
	return &BestEffort{store: store, timeout: timeout, logger: logger}
}

// SetStatus upserts the job record. It always returns.
func (b *BestEffort) SetStatus(ctx context.Context, jobID string, status domain.JobStatus, data map[string]any) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Warn().Str("job_id", jobID).Interface("panic", r).Msg("jobstore: status write panicked")
		}
	}()

	ctx, cancel := context.WithTimeout(ctx, b.timeout)
	defer cancel()

	if err := b.store.Upsert(ctx, jobID, status, data); err != nil {
		b.logger.Warn().Err(err).Str("job_id", jobID).Str("status", string(status)).Msg("jobstore: status write failed")
		return
	}
	b.logger.Debug().Str("job_id", jobID).Str("status", string(status)).Msg("jobstore: status written")
}

// Get reads through to the wrapped store. Unlike SetStatus it reports errors.
func (b *BestEffort) Get(ctx context.Context, jobID string) (*domain.Job, error) {
	ctx, cancel := context.WithTimeout(ctx, b.timeout)
	defer cancel()
	return b.store.Get(ctx, jobID)
}

func (b *BestEffort) Close(ctx context.Context) error {
	return b.store.Close(ctx)
}
