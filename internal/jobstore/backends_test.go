package jobstore

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/redis/go-redis/v9"

	"videogen/internal/domain"
	"videogen/internal/infra"
)

type execCall struct {
	query string
	args  []any
}

type fakeExecutor struct {
	execs   []execCall
	execErr error
	rows    []execCall
	scan    func(dest ...any) error
}

func (f *fakeExecutor) Exec(ctx context.Context, query string, args ...any) (pgconn.CommandTag, error) {
	f.execs = append(f.execs, execCall{query: query, args: args})
	if f.execErr != nil {
		return pgconn.CommandTag{}, f.execErr
	}
	return pgconn.NewCommandTag("INSERT 0 1"), nil
}

func (f *fakeExecutor) QueryRow(ctx context.Context, query string, args ...any) pgx.Row {
	f.rows = append(f.rows, execCall{query: query, args: args})
	return scanRow{scan: f.scan}
}

type scanRow struct {
	scan func(dest ...any) error
}

func (r scanRow) Scan(dest ...any) error {
	if r.scan == nil {
		return pgx.ErrNoRows
	}
	return r.scan(dest...)
}

func newTestPostgres(exec *fakeExecutor) *Postgres {
	return &Postgres{sql: exec, table: pgx.Identifier{"video_jobs"}.Sanitize()}
}

func TestPostgresMigrateCreatesTable(t *testing.T) {
	exec := &fakeExecutor{}
	if err := newTestPostgres(exec).migrate(context.Background()); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	if len(exec.execs) != 1 || !strings.Contains(exec.execs[0].query, `CREATE TABLE IF NOT EXISTS "video_jobs"`) {
		t.Fatalf("execs = %+v", exec.execs)
	}
	if _, _, err := infra.ExtractMarker(exec.execs[0].query); err != nil {
		t.Fatalf("create table query is not runnable: %v", err)
	}
}

func TestPostgresUpsertArgs(t *testing.T) {
	exec := &fakeExecutor{}
	p := newTestPostgres(exec)
	err := p.Upsert(context.Background(), "j1", domain.JobStatusProcessing, map[string]any{
		"step":   "upload",
		"status": "stale",
		"_id":    "other",
	})
	if err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	if len(exec.execs) != 1 {
		t.Fatalf("execs = %d, want 1", len(exec.execs))
	}
	call := exec.execs[0]
	if !strings.Contains(call.query, `INSERT INTO "video_jobs" AS t`) || !strings.Contains(call.query, "t.metadata || EXCLUDED.metadata") {
		t.Fatalf("query = %s", call.query)
	}
	if _, _, err := infra.ExtractMarker(call.query); err != nil {
		t.Fatalf("upsert query is not runnable: %v", err)
	}
	if len(call.args) != 3 || call.args[0] != "j1" || call.args[1] != "processing" {
		t.Fatalf("args = %#v", call.args)
	}
	var meta map[string]any
	if err := json.Unmarshal([]byte(call.args[2].(string)), &meta); err != nil {
		t.Fatalf("metadata arg: %v", err)
	}
	if len(meta) != 1 || meta["step"] != "upload" {
		t.Fatalf("metadata = %#v, want only step", meta)
	}
}

func TestPostgresUpsertExecError(t *testing.T) {
	exec := &fakeExecutor{execErr: errors.New("connection reset")}
	err := newTestPostgres(exec).Upsert(context.Background(), "j1", domain.JobStatusFailed, nil)
	if err == nil || !strings.Contains(err.Error(), "connection reset") {
		t.Fatalf("err = %v", err)
	}
}

func TestPostgresGet(t *testing.T) {
	exec := &fakeExecutor{scan: func(dest ...any) error {
		*dest[0].(*string) = "completed"
		*dest[1].(*[]byte) = []byte(`{"video_url":"https://cdn.test/v.mp4","status":"stale"}`)
		return nil
	}}
	job, err := newTestPostgres(exec).Get(context.Background(), "j1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if len(exec.rows) != 1 || exec.rows[0].args[0] != "j1" || !strings.Contains(exec.rows[0].query, `FROM "video_jobs" WHERE id = $1`) {
		t.Fatalf("rows = %+v", exec.rows)
	}
	if job.ID != "j1" || job.Status != domain.JobStatusCompleted {
		t.Fatalf("job = %+v", job)
	}
	if job.Metadata["video_url"] != "https://cdn.test/v.mp4" {
		t.Fatalf("metadata = %#v", job.Metadata)
	}
	if _, ok := job.Metadata["status"]; ok {
		t.Fatal("status must not leak into metadata")
	}
}

func TestPostgresGetErrors(t *testing.T) {
	if _, err := newTestPostgres(&fakeExecutor{}).Get(context.Background(), "missing"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("no rows: err = %v, want ErrNotFound", err)
	}
	exec := &fakeExecutor{scan: func(dest ...any) error { return errors.New("conn closed") }}
	_, err := newTestPostgres(exec).Get(context.Background(), "j1")
	if err == nil || errors.Is(err, domain.ErrNotFound) || !strings.Contains(err.Error(), "conn closed") {
		t.Fatalf("scan failure: err = %v", err)
	}
}

type fakeRedis struct {
	hashes map[string]map[string]string
	err    error
	closed bool
}

func newFakeRedis() *fakeRedis {
	return &fakeRedis{hashes: make(map[string]map[string]string)}
}

func (f *fakeRedis) HSet(ctx context.Context, key string, values ...any) *redis.IntCmd {
	if f.err != nil {
		return redis.NewIntResult(0, f.err)
	}
	h, ok := f.hashes[key]
	if !ok {
		h = make(map[string]string)
		f.hashes[key] = h
	}
	fields := values[0].(map[string]any)
	for k, v := range fields {
		h[k] = v.(string)
	}
	return redis.NewIntResult(int64(len(fields)), nil)
}

func (f *fakeRedis) HGetAll(ctx context.Context, key string) *redis.MapStringStringCmd {
	if f.err != nil {
		return redis.NewMapStringStringResult(nil, f.err)
	}
	out := make(map[string]string, len(f.hashes[key]))
	for k, v := range f.hashes[key] {
		out[k] = v
	}
	return redis.NewMapStringStringResult(out, nil)
}

func (f *fakeRedis) Close() error {
	f.closed = true
	return nil
}

func TestRedisUpsertMergesAndGetPreservesTypes(t *testing.T) {
	client := newFakeRedis()
	r := &Redis{client: client, prefix: "video_jobs"}
	ctx := context.Background()

	if err := r.Upsert(ctx, "j1", domain.JobStatusProcessing, map[string]any{"step": "gen:start", "code": "404"}); err != nil {
		t.Fatalf("Upsert processing: %v", err)
	}
	if err := r.Upsert(ctx, "j1", domain.JobStatusCompleted, map[string]any{"video_url": "u", "status": "stale", "attempts": 2}); err != nil {
		t.Fatalf("Upsert completed: %v", err)
	}

	hash := client.hashes["video_jobs:j1"]
	if hash["status"] != `"completed"` || hash["code"] != `"404"` || hash["attempts"] != "2" {
		t.Fatalf("hash = %#v", hash)
	}

	job, err := r.Get(ctx, "j1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if job.Status != domain.JobStatusCompleted {
		t.Fatalf("status = %q", job.Status)
	}
	if job.Metadata["step"] != "gen:start" || job.Metadata["code"] != "404" || job.Metadata["video_url"] != "u" {
		t.Fatalf("metadata = %#v", job.Metadata)
	}
	if job.Metadata["attempts"] != float64(2) {
		t.Fatalf("attempts = %#v", job.Metadata["attempts"])
	}

	if _, err := r.Get(ctx, "missing"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("missing: err = %v, want ErrNotFound", err)
	}
	if err := r.Close(ctx); err != nil || !client.closed {
		t.Fatalf("Close: %v closed=%v", err, client.closed)
	}
}

func TestRedisErrors(t *testing.T) {
	client := newFakeRedis()
	client.err = errors.New("READONLY replica")
	r := &Redis{client: client, prefix: "video_jobs"}
	if err := r.Upsert(context.Background(), "j1", domain.JobStatusFailed, nil); err == nil || !strings.Contains(err.Error(), "READONLY") {
		t.Fatalf("Upsert err = %v", err)
	}
	if _, err := r.Get(context.Background(), "j1"); err == nil || errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("Get err = %v", err)
	}
}
