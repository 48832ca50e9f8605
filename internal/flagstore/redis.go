package flagstore

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/go-redis/redis/v8"

	"github.com/qs3c/regflow_go_server/internal/model"
)

// RedisStore keeps one string key per (cycle, report): "<prefix>:<cycle>:<report>" = "true"|"false".
type RedisStore struct {
	client *redis.Client
	prefix string
}

func NewRedisStore(client *redis.Client, prefix string) *RedisStore {
	return &RedisStore{client: client, prefix: prefix}
}

func (s *RedisStore) key(k model.ReportKey) string {
	return fmt.Sprintf("%s:%d:%d", s.prefix, k.CycleID, k.ReportID)
}

func (s *RedisStore) Get(ctx context.Context, key model.ReportKey) (bool, error) {
	val, err := s.client.Get(ctx, s.key(key)).Result()
	if err != nil {
		if err == redis.Nil {
			return false, nil
		}
		return false, fmt.Errorf("failed to read flag %s: %w", key, err)
	}
	return val == "true", nil
}

func (s *RedisStore) Set(ctx context.Context, key model.ReportKey, advanced bool) error {
	if err := s.client.Set(ctx, s.key(key), strconv.FormatBool(advanced), 0).Err(); err != nil {
		return fmt.Errorf("failed to write flag %s: %w", key, err)
	}
	return nil
}

func (s *RedisStore) Delete(ctx context.Context, key model.ReportKey) error {
	return s.client.Del(ctx, s.key(key)).Err()
}

// List scans "<prefix>:*".
func (s *RedisStore) List(ctx context.Context) ([]Entry, error) {
	var entries []Entry
	iter := s.client.Scan(ctx, 0, s.prefix+":*", 100).Iterator()
	for iter.Next(ctx) {
		redisKey := iter.Val()
		key, ok := s.parseKey(redisKey)
		if !ok {
			continue
		}
		val, err := s.client.Get(ctx, redisKey).Result()
		if err != nil {
			if err == redis.Nil {
				continue
			}
			return nil, err
		}
		entries = append(entries, Entry{Key: key, Advanced: val == "true"})
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("failed to scan flags: %w", err)
	}
	return entries, nil
}

func (s *RedisStore) parseKey(redisKey string) (model.ReportKey, bool) {
	rest := strings.TrimPrefix(redisKey, s.prefix+":")
	parts := strings.Split(rest, ":")
	if len(parts) != 2 {
		return model.ReportKey{}, false
	}
	cycleID, err1 := strconv.ParseInt(parts[0], 10, 64)
	reportID, err2 := strconv.ParseInt(parts[1], 10, 64)
	if err1 != nil || err2 != nil {
		return model.ReportKey{}, false
	}
	return model.ReportKey{CycleID: cycleID, ReportID: reportID}, true
}
