// Package cache はRedisを使用した一時ストアを提供する。
//
// 確認待ち登録のようにTTLを超えて生存してはならない状態を保持する。
// ストア自体が到達不能な場合、全操作はno-op/キャッシュミスとして振る舞い、
// 呼び出し側にエラーを伝播しない。システムは「確認機能が縮退した状態」で
// 動作を継続し、クラッシュしない。
package cache

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"
)

// Store は一時ストアのインターフェース。
// 値の直列化はストア側の責務とし、TTLはストアが強制する。
type Store interface {
	// Set はキーに値をTTL付きで保存する。ストアが利用不能な場合はno-op。
	Set(ctx context.Context, key string, value any, ttl time.Duration)
	// Get はキーの値をdestにデコードする。
	// キーが存在しない、またはストアが利用不能な場合はfalseを返す。
	Get(ctx context.Context, key string, dest any) bool
	// Delete はキーを削除する。ストアが利用不能な場合はno-op。
	Delete(ctx context.Context, key string)
}

// RedisStore はRedisを使用したStoreの実装。
// 接続はプロセス起動時に1回確立し、自動再接続は行わない。
// 初回接続に失敗した場合、明示的にConnectを呼び直すまで縮退状態が続く。
type RedisStore struct {
	client         *redis.Client
	commandTimeout time.Duration
	connected      atomic.Bool
	errorLogged    atomic.Bool
}

// NewRedisStore はRedisStoreを生成する。接続はまだ確立しない。
// redisURLのパースに失敗した場合のみエラーを返す。
func NewRedisStore(redisURL string, connectTimeout, commandTimeout time.Duration) (*RedisStore, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, err
	}

	// 自動リトライを無効化する。失敗はキャッシュミスとして扱うため、
	// コマンド単位の再試行は不要。
	opts.MaxRetries = -1
	opts.DialTimeout = connectTimeout

	return &RedisStore{
		client:         redis.NewClient(opts),
		commandTimeout: commandTimeout,
	}, nil
}

// Connect はRedisへの接続を確認する。
// 失敗した場合はエラーを返し、ストアは縮退状態のまま動作する。
func (s *RedisStore) Connect(ctx context.Context) error {
	if err := s.client.Ping(ctx).Err(); err != nil {
		s.connected.Store(false)
		slog.Warn("redis is not available, verification caching is degraded",
			slog.String("error", err.Error()),
		)
		return err
	}

	s.connected.Store(true)
	s.errorLogged.Store(false)
	slog.Info("connected to redis")
	return nil
}

// Disconnect はRedis接続を閉じる。
func (s *RedisStore) Disconnect() error {
	s.connected.Store(false)
	return s.client.Close()
}

// Healthcheck はRedisへの疎通を確認する。
func (s *RedisStore) Healthcheck(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, s.commandTimeout)
	defer cancel()
	return s.client.Ping(ctx).Err()
}

// Set はキーに値をTTL付きで保存する。
// 未接続またはコマンド失敗時はno-opとし、エラーはログのみに記録する。
func (s *RedisStore) Set(ctx context.Context, key string, value any, ttl time.Duration) {
	if !s.connected.Load() {
		return
	}

	data, err := json.Marshal(value)
	if err != nil {
		slog.Error("failed to marshal cache value", slog.String("key", key), slog.String("error", err.Error()))
		return
	}

	ctx, cancel := context.WithTimeout(ctx, s.commandTimeout)
	defer cancel()

	if err := s.client.Set(ctx, key, data, ttl).Err(); err != nil {
		s.logCommandError("set", err)
	}
}

// Get はキーの値をdestにJSONデコードする。
// キー不在・未接続・コマンド失敗のいずれもfalseを返す。
func (s *RedisStore) Get(ctx context.Context, key string, dest any) bool {
	if !s.connected.Load() {
		return false
	}

	ctx, cancel := context.WithTimeout(ctx, s.commandTimeout)
	defer cancel()

	data, err := s.client.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return false
	}
	if err != nil {
		s.logCommandError("get", err)
		return false
	}

	if err := json.Unmarshal(data, dest); err != nil {
		slog.Error("failed to unmarshal cache value", slog.String("key", key), slog.String("error", err.Error()))
		return false
	}

	return true
}

// Delete はキーを削除する。未接続またはコマンド失敗時はno-op。
func (s *RedisStore) Delete(ctx context.Context, key string) {
	if !s.connected.Load() {
		return
	}

	ctx, cancel := context.WithTimeout(ctx, s.commandTimeout)
	defer cancel()

	if err := s.client.Del(ctx, key).Err(); err != nil {
		s.logCommandError("delete", err)
	}
}

// logCommandError はコマンド失敗を初回のみログに記録する。
// 障害中の全リクエストが同じエラーを吐き続けるのを防ぐ。
func (s *RedisStore) logCommandError(op string, err error) {
	if s.errorLogged.CompareAndSwap(false, true) {
		slog.Error("redis command failed, treating as cache miss",
			slog.String("op", op),
			slog.String("error", err.Error()),
		)
	}
}

// compile-time interface check
var _ Store = (*RedisStore)(nil)
