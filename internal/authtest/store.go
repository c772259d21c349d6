package authtest

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	sessionPrefix = "sess:"
	userPrefix    = "user:"
	countPrefix   = "count:"
)

var (
	errNoSession     = errors.New("session not found")
	errRefreshReused = errors.New("refresh secret reused")
)

// rotateScript swaps the refresh secret hash and bumps the generation. A
// mismatching secret means a rotated secret was replayed; the session is
// destroyed.
//
// Returns the new generation, -1 on reuse, -2 when the session is gone.
var rotateScript = redis.NewScript(`
local cur = redis.call('HGET', KEYS[1], 'refresh')
if not cur then
	return -2
end
if cur ~= ARGV[1] then
	redis.call('DEL', KEYS[1])
	return -1
end
redis.call('HSET', KEYS[1], 'refresh', ARGV[2])
redis.call('PEXPIRE', KEYS[1], ARGV[3])
return redis.call('HINCRBY', KEYS[1], 'gen', 1)
`)

type store struct {
	rdb *redis.Client
	ttl time.Duration
}

func sessionKey(sid string) string { return sessionPrefix + sid }

func (s *store) putUser(ctx context.Context, name, hash string) error {
	return s.rdb.Set(ctx, userPrefix+name, hash, 0).Err()
}

func (s *store) userHash(ctx context.Context, name string) (string, error) {
	hash, err := s.rdb.Get(ctx, userPrefix+name).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	return hash, err
}

func (s *store) create(ctx context.Context, sid, user, refreshHash string) error {
	key := sessionKey(sid)
	_, err := s.rdb.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.HSet(ctx, key, "user", user, "refresh", refreshHash, "gen", 1)
		p.Expire(ctx, key, s.ttl)
		return nil
	})
	if err != nil {
		return fmt.Errorf("create session: %w", err)
	}
	return nil
}

func (s *store) generation(ctx context.Context, sid string) (int64, error) {
	gen, err := s.rdb.HGet(ctx, sessionKey(sid), "gen").Int64()
	if errors.Is(err, redis.Nil) {
		return 0, errNoSession
	}
	return gen, err
}

func (s *store) user(ctx context.Context, sid string) (string, error) {
	name, err := s.rdb.HGet(ctx, sessionKey(sid), "user").Result()
	if errors.Is(err, redis.Nil) {
		return "", errNoSession
	}
	return name, err
}

func (s *store) rotate(ctx context.Context, sid, oldHash, newHash string) (int64, error) {
	res, err := rotateScript.Run(ctx, s.rdb, []string{sessionKey(sid)},
		oldHash, newHash, s.ttl.Milliseconds()).Int64()
	if err != nil {
		return 0, fmt.Errorf("rotate refresh: %w", err)
	}
	switch res {
	case -2:
		return 0, errNoSession
	case -1:
		return 0, errRefreshReused
	}
	return res, nil
}

func (s *store) delete(ctx context.Context, sid string) error {
	return s.rdb.Del(ctx, sessionKey(sid)).Err()
}

// each calls fn for every live session key.
func (s *store) each(ctx context.Context, fn func(key string) error) error {
	iter := s.rdb.Scan(ctx, 0, sessionPrefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		if err := fn(iter.Val()); err != nil {
			return err
		}
	}
	return iter.Err()
}

func (s *store) bumpAll(ctx context.Context) error {
	return s.each(ctx, func(key string) error {
		return s.rdb.HIncrBy(ctx, key, "gen", 1).Err()
	})
}

func (s *store) deleteAll(ctx context.Context) error {
	return s.each(ctx, func(key string) error {
		return s.rdb.Del(ctx, key).Err()
	})
}

func (s *store) incr(ctx context.Context, name string) {
	_ = s.rdb.Incr(ctx, countPrefix+name).Err()
}

func (s *store) count(ctx context.Context, name string) int64 {
	n, err := s.rdb.Get(ctx, countPrefix+name).Int64()
	if err != nil {
		return 0
	}
	return n
}

func (s *store) resetCounts(ctx context.Context) error {
	iter := s.rdb.Scan(ctx, 0, countPrefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		if err := s.rdb.Del(ctx, iter.Val()).Err(); err != nil {
			return err
		}
	}
	return iter.Err()
}
