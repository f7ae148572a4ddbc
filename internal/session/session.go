package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"ai-recruiter-go/internal/constants"
	"ai-recruiter-go/internal/logger"
	"ai-recruiter-go/internal/storage"
)

// ErrSessionNotFound 会话不存在或已过期
var ErrSessionNotFound = errors.New("会话不存在或已过期")

// Store TTL键值记录存储。
// 优先使用Redis，Redis不可用时降级到进程内缓存（无跨进程共享）。
type Store struct {
	redis    *storage.Redis
	fallback *gocache.Cache
	ttl      time.Duration
	prefix   string
}

// Option 定义Store构造选项
type Option func(*Store)

// WithTTL 设置记录默认过期时间
func WithTTL(ttl time.Duration) Option {
	return func(s *Store) {
		s.ttl = ttl
	}
}

// WithKeyPrefix 设置键前缀，用于在同一Redis上隔离不同用途的记录
func WithKeyPrefix(prefix string) Option {
	return func(s *Store) {
		s.prefix = prefix
	}
}

// NewStore 创建会话存储。redis为nil时直接以进程内缓存模式运行。
func NewStore(redis *storage.Redis, opts ...Option) *Store {
	s := &Store{
		redis:  redis,
		ttl:    constants.SessionTTL,
		prefix: constants.SessionKeyPrefix,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.fallback = gocache.New(s.ttl, 10*time.Minute)

	if redis == nil {
		logger.Warn().Msg("Redis未配置，会话存储以进程内缓存模式运行")
	}
	return s
}

func (s *Store) key(id string) string {
	return s.prefix + id
}

// Set 写入一条记录，value会被序列化为JSON
func (s *Store) Set(ctx context.Context, id string, value interface{}) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("序列化会话记录失败: %w", err)
	}

	if s.redis != nil {
		if err := s.redis.Client.Set(ctx, s.key(id), data, s.ttl).Err(); err == nil {
			return nil
		} else {
			logger.Warn().Err(err).Str("session_id", id).Msg("Redis写入失败，降级到进程内缓存")
		}
	}

	s.fallback.Set(s.key(id), data, s.ttl)
	return nil
}

// Get 读取一条记录并反序列化到dest。
// 不存在或已过期时返回 ErrSessionNotFound。
func (s *Store) Get(ctx context.Context, id string, dest interface{}) error {
	if s.redis != nil {
		data, err := s.redis.Client.Get(ctx, s.key(id)).Bytes()
		if err == nil {
			return json.Unmarshal(data, dest)
		}
		if errors.Is(err, storage.ErrNotFound) {
			return ErrSessionNotFound
		}
		logger.Warn().Err(err).Str("session_id", id).Msg("Redis读取失败，降级到进程内缓存")
	}

	raw, found := s.fallback.Get(s.key(id))
	if !found {
		return ErrSessionNotFound
	}
	data, ok := raw.([]byte)
	if !ok {
		return ErrSessionNotFound
	}
	return json.Unmarshal(data, dest)
}

// Delete 删除一条记录
func (s *Store) Delete(ctx context.Context, id string) error {
	if s.redis != nil {
		if err := s.redis.Client.Del(ctx, s.key(id)).Err(); err != nil {
			logger.Warn().Err(err).Str("session_id", id).Msg("Redis删除失败")
		}
	}
	s.fallback.Delete(s.key(id))
	return nil
}

// Extend 续期一条记录的TTL
func (s *Store) Extend(ctx context.Context, id string) error {
	if s.redis != nil {
		ok, err := s.redis.Client.Expire(ctx, s.key(id), s.ttl).Result()
		if err == nil && ok {
			return nil
		}
		if err != nil {
			logger.Warn().Err(err).Str("session_id", id).Msg("Redis续期失败")
		}
	}

	raw, found := s.fallback.Get(s.key(id))
	if !found {
		return ErrSessionNotFound
	}
	s.fallback.Set(s.key(id), raw, s.ttl)
	return nil
}
