package jobstore

import (
	"context"
	"errors"
	"testing"
	"time"

	"videogen/internal/domain"
	"videogen/internal/infra"
)

func TestBackendByScheme(t *testing.T) {
	cases := []struct {
		url     string
		want    string
		wantErr bool
	}{
		{url: "", want: "noop"},
		{url: "mongodb://localhost:27017", want: "mongo"},
		{url: "mongodb+srv://user:pw@cluster.example.net", want: "mongo"},
		{url: "postgres://u:p@localhost:5432/db", want: "postgres"},
		{url: "postgresql://localhost/db", want: "postgres"},
		{url: "redis://localhost:6379/0", want: "redis"},
		{url: "memory://", want: "memory"},
		{url: "mysql://localhost", wantErr: true},
	}
	for _, tc := range cases {
		got, err := Backend(tc.url)
		if tc.wantErr {
			if err == nil {
				t.Fatalf("Backend(%q) expected error", tc.url)
			}
			continue
		}
		if err != nil || got != tc.want {
			t.Fatalf("Backend(%q) = %q, %v; want %q", tc.url, got, err, tc.want)
		}
	}
}

func TestOpenNoopAndMemory(t *testing.T) {
	s, err := Open(context.Background(), Options{})
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := s.(Noop); !ok {
		t.Fatalf("empty url opened %T, want Noop", s)
	}
	if _, err := s.Get(context.Background(), "x"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("noop Get err = %v", err)
	}

	s, err = Open(context.Background(), Options{URL: "memory://"})
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := s.(*Memory); !ok {
		t.Fatalf("memory url opened %T", s)
	}
}

func TestMemoryMergesMetadataAndOverwritesStatus(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	if err := m.Upsert(ctx, "j1", domain.JobStatusProcessing, map[string]any{"step": "veo:start", "prompt": "cat"}); err != nil {
		t.Fatal(err)
	}
	if err := m.Upsert(ctx, "j1", domain.JobStatusProcessing, map[string]any{"step": "upload"}); err != nil {
		t.Fatal(err)
	}
	if err := m.Upsert(ctx, "j1", domain.JobStatusCompleted, map[string]any{"video_url": "https://cdn/x.mp4", "status": "bogus"}); err != nil {
		t.Fatal(err)
	}

	job, err := m.Get(ctx, "j1")
	if err != nil {
		t.Fatal(err)
	}
	if job.Status != domain.JobStatusCompleted {
		t.Fatalf("status = %q", job.Status)
	}
	want := map[string]any{"step": "upload", "prompt": "cat", "video_url": "https://cdn/x.mp4"}
	for k, v := range want {
		if job.Metadata[k] != v {
			t.Fatalf("metadata[%s] = %v, want %v", k, job.Metadata[k], v)
		}
	}
	if _, ok := job.Metadata["status"]; ok {
		t.Fatal("status must not leak into metadata")
	}

	if _, err := m.Get(ctx, "missing"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("missing err = %v", err)
	}
}

func TestRedisValueCodec(t *testing.T) {
	cases := []struct {
		in   any
		want any
	}{
		{in: "plain text", want: "plain text"},
		{in: "8", want: "8"},
		{in: "404", want: "404"},
		{in: "true", want: "true"},
		{in: "null", want: "null"},
		{in: `{"a":1}`, want: `{"a":1}`},
		{in: "", want: ""},
		{in: true, want: true},
		{in: 3, want: float64(3)},
		{in: nil, want: nil},
	}
	for _, tc := range cases {
		enc, err := encodeRedisValue(tc.in)
		if err != nil {
			t.Fatal(err)
		}
		if got := decodeRedisValue(enc); got != tc.want {
			t.Fatalf("round trip %#v via %q = %#v (%T), want %#v", tc.in, enc, got, got, tc.want)
		}
	}

	enc, err := encodeRedisValue(map[string]any{"a": "b"})
	if err != nil {
		t.Fatal(err)
	}
	if m, ok := decodeRedisValue(enc).(map[string]any); !ok || m["a"] != "b" {
		t.Fatalf("decode(%q) = %#v", enc, decodeRedisValue(enc))
	}
	if got := decodeRedisValue("written elsewhere"); got != "written elsewhere" {
		t.Fatalf("non-JSON field = %#v, want raw string", got)
	}
}

type failingStore struct {
	Noop
	calls int
	panic bool
}

func (f *failingStore) Upsert(context.Context, string, domain.JobStatus, map[string]any) error {
	f.calls++
	if f.panic {
		panic("driver exploded")
	}
	return errors.New("connection refused")
}

func TestBestEffortSwallowsErrorsAndPanics(t *testing.T) {
	fs := &failingStore{}
	b := NewBestEffort(fs, 0, infra.NopLogger())
	b.SetStatus(context.Background(), "j1", domain.JobStatusProcessing, nil)

	fs.panic = true
	b.SetStatus(context.Background(), "j1", domain.JobStatusFailed, map[string]any{"message": "boom"})

	if fs.calls != 2 {
		t.Fatalf("calls = %d, want 2", fs.calls)
	}
}

func TestLazyWaiterHonoursItsDeadline(t *testing.T) {
	release := make(chan struct{})
	entered := make(chan struct{})
	l := NewLazy(func(ctx context.Context) (Store, error) {
		close(entered)
		<-release
		return NewMemory(), nil
	})

	done := make(chan error, 1)
	go func() { done <- l.Upsert(context.Background(), "j1", domain.JobStatusProcessing, nil) }()
	<-entered

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	start := time.Now()
	err := l.Upsert(ctx, "j2", domain.JobStatusProcessing, nil)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("err = %v, want DeadlineExceeded", err)
	}
	if waited := time.Since(start); waited > time.Second {
		t.Fatalf("waiter blocked for %s behind the connect", waited)
	}

	close(release)
	if err := <-done; err != nil {
		t.Fatalf("connecting caller: %v", err)
	}
	if err := l.Upsert(context.Background(), "j2", domain.JobStatusProcessing, nil); err != nil {
		t.Fatalf("upsert after connect: %v", err)
	}
}

func TestLazyRetriesFailedConnect(t *testing.T) {
	attempts := 0
	l := NewLazy(func(context.Context) (Store, error) {
		attempts++
		if attempts == 1 {
			return nil, errors.New("server selection timeout")
		}
		return NewMemory(), nil
	})
	ctx := context.Background()
	if err := l.Upsert(ctx, "j1", domain.JobStatusProcessing, nil); err == nil {
		t.Fatal("first upsert should surface the connect error")
	}
	if err := l.Upsert(ctx, "j1", domain.JobStatusProcessing, nil); err != nil {
		t.Fatalf("second upsert: %v", err)
	}
	if _, err := l.Get(ctx, "j1"); err != nil {
		t.Fatalf("Get: %v", err)
	}
	if attempts != 2 {
		t.Fatalf("attempts = %d, want 2", attempts)
	}
	if err := l.Close(ctx); err != nil {
		t.Fatal(err)
	}
}
