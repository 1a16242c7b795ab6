package recovery

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/geocoder89/lifeplus/internal/apperr"
	"github.com/redis/go-redis/v9"
)

const redisKeyPrefix = "lifeplus:recovery:"

// bumps attempts only while the code key still exists, so an expired key is
// never recreated without a TTL
var recordFailureScript = redis.NewScript(`
if redis.call("EXISTS", KEYS[1]) == 0 then
	return -1
end
return redis.call("HINCRBY", KEYS[1], "attempts", 1)
`)

// RedisStore shares pending codes across API instances. Each code is a hash
// {code, expiresAt, attempts}; Redis expires the key once the code is no
// longer valid.
type RedisStore struct {
	rdb *redis.Client
	now func() time.Time
}

func NewRedisStore(rdb *redis.Client) *RedisStore {
	return &RedisStore{rdb: rdb, now: time.Now}
}

func (s *RedisStore) key(email string) string {
	return redisKeyPrefix + NormalizeEmail(email)
}

func (s *RedisStore) Get(ctx context.Context, email string) (Entry, error) {
	fields, err := s.rdb.HGetAll(ctx, s.key(email)).Result()
	if err != nil {
		return Entry{}, fmt.Errorf("%w: recovery redis get: %w", apperr.ErrDependency, err)
	}
	if len(fields) == 0 {
		return Entry{}, ErrNoCode
	}

	exp, err := time.Parse(time.RFC3339Nano, fields["expiresAt"])
	if err != nil {
		return Entry{}, fmt.Errorf("%w: recovery redis decode expiresAt: %w", apperr.ErrDependency, err)
	}

	attempts := 0
	if v := fields["attempts"]; v != "" {
		if attempts, err = strconv.Atoi(v); err != nil {
			return Entry{}, fmt.Errorf("%w: recovery redis decode attempts: %w", apperr.ErrDependency, err)
		}
	}

	return Entry{Code: fields["code"], ExpiresAt: exp, Attempts: attempts}, nil
}

func (s *RedisStore) Put(ctx context.Context, email string, e Entry) error {
	ttl := e.ExpiresAt.Sub(s.now())
	if ttl <= 0 {
		return s.Delete(ctx, email)
	}

	// round up so the key outlives the last valid instant
	ttl = ttl.Truncate(time.Second) + time.Second

	key := s.key(email)
	_, err := s.rdb.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.Del(ctx, key)
		p.HSet(ctx, key,
			"code", e.Code,
			"expiresAt", e.ExpiresAt.UTC().Format(time.RFC3339Nano),
			"attempts", e.Attempts,
		)
		p.Expire(ctx, key, ttl)
		return nil
	})
	if err != nil {
		return fmt.Errorf("%w: recovery redis set: %w", apperr.ErrDependency, err)
	}
	return nil
}

func (s *RedisStore) Delete(ctx context.Context, email string) error {
	if err := s.rdb.Del(ctx, s.key(email)).Err(); err != nil {
		return fmt.Errorf("%w: recovery redis del: %w", apperr.ErrDependency, err)
	}
	return nil
}

func (s *RedisStore) RecordFailure(ctx context.Context, email string) (int, error) {
	n, err := recordFailureScript.Run(ctx, s.rdb, []string{s.key(email)}).Int()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, ErrNoCode
		}
		return 0, fmt.Errorf("%w: recovery redis record failure: %w", apperr.ErrDependency, err)
	}
	if n < 0 {
		return 0, ErrNoCode
	}
	return n, nil
}
