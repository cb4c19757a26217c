package jobstore

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"

	"videogen/internal/domain"
)

// redisHashes is the slice of the go-redis client the store uses.
type redisHashes interface {
	HSet(ctx context.Context, key string, values ...any) *redis.IntCmd
	HGetAll(ctx context.Context, key string) *redis.MapStringStringCmd
	Close() error
}

// Redis stores each job as a hash under "<prefix>:<job id>". Every field is
// JSON encoded so values read back with the type they were written with.
type Redis struct {
	client redisHashes
	prefix string
}

// OpenRedis parses a redis:// URL and pings the server.
func OpenRedis(ctx context.Context, rawURL, prefix string) (*Redis, error) {
	opt, err := redis.ParseURL(rawURL)
	if err != nil {
		return nil, fmt.Errorf("jobstore: parse redis url: %w", err)
	}
	client := redis.NewClient(opt)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("jobstore: ping redis: %w", err)
	}
	return &Redis{client: client, prefix: prefix}, nil
}

func (r *Redis) key(jobID string) string {
	return r.prefix + ":" + jobID
}

func (r *Redis) Upsert(ctx context.Context, jobID string, status domain.JobStatus, metadata map[string]any) error {
	fields := mergeFields(status, metadata)
	values := make(map[string]any, len(fields))
	for k, v := range fields {
		encoded, err := encodeRedisValue(v)
		if err != nil {
			return fmt.Errorf("jobstore: encode %s: %w", k, err)
		}
		values[k] = encoded
	}
	if err := r.client.HSet(ctx, r.key(jobID), values).Err(); err != nil {
		return fmt.Errorf("jobstore: hset %s: %w", jobID, err)
	}
	return nil
}

func (r *Redis) Get(ctx context.Context, jobID string) (*domain.Job, error) {
	raw, err := r.client.HGetAll(ctx, r.key(jobID)).Result()
	if err != nil {
		return nil, fmt.Errorf("jobstore: hgetall %s: %w", jobID, err)
	}
	if len(raw) == 0 {
		return nil, domain.ErrNotFound
	}
	fields := make(map[string]any, len(raw))
	for k, v := range raw {
		fields[k] = decodeRedisValue(v)
	}
	return jobFromFields(jobID, fields), nil
}

func (r *Redis) Close(context.Context) error {
	return r.client.Close()
}

func encodeRedisValue(v any) (string, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// decodeRedisValue reverses encodeRedisValue. A field that is not valid JSON
// was not written by this store and comes back as the raw string.
func decodeRedisValue(s string) any {
	var v any
	if err := json.Unmarshal([]byte(s), &v); err != nil {
		return s
	}
	return v
}

var _ Store = (*Redis)(nil)
