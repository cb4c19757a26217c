package jobstore

import (
	"context"
	"sync"

	"videogen/internal/domain"
)

// OpenFunc connects a store.
type OpenFunc func(ctx context.Context) (Store, error)

// Lazy connects on first use. A failed connect is not cached, so the next
// call tries again. Callers waiting on another caller's connect give up when
// their own ctx is done.
type Lazy struct {
	open OpenFunc
	// connecting is held by the single caller running open.
	connecting chan struct{}

	mu    sync.Mutex
	store Store
}

func NewLazy(open OpenFunc) *Lazy {
	return &Lazy{open: open, connecting: make(chan struct{}, 1)}
}

// LazyFromOptions defers Open(opts) until the first call.
func LazyFromOptions(opts Options) *Lazy {
	return NewLazy(func(ctx context.Context) (Store, error) {
		return Open(ctx, opts)
	})
}

func (l *Lazy) current() Store {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.store
}

func (l *Lazy) get(ctx context.Context) (Store, error) {
	if s := l.current(); s != nil {
		return s, nil
	}
	select {
	case l.connecting <- struct{}{}:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	defer func() { <-l.connecting }()

	if s := l.current(); s != nil {
		return s, nil
	}
	s, err := l.open(ctx)
	if err != nil {
		return nil, err
	}
	l.mu.Lock()
	l.store = s
	l.mu.Unlock()
	return s, nil
}

func (l *Lazy) Upsert(ctx context.Context, jobID string, status domain.JobStatus, metadata map[string]any) error {
	s, err := l.get(ctx)
	if err != nil {
		return err
	}
	return s.Upsert(ctx, jobID, status, metadata)
}

func (l *Lazy) Get(ctx context.Context, jobID string) (*domain.Job, error) {
	s, err := l.get(ctx)
	if err != nil {
		return nil, err
	}
	return s.Get(ctx, jobID)
}

// Close releases the connection if one was made.
func (l *Lazy) Close(ctx context.Context) error {
	l.mu.Lock()
	s := l.store
	l.store = nil
	l.mu.Unlock()
	if s == nil {
		return nil
	}
	return s.Close(ctx)
}

var _ Store = (*Lazy)(nil)
