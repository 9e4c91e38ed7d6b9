// Package store は不透明なリスト/文字列ストアへのアダプタを提供する。
//
// ストアにトランザクションは存在しない。複数エントリの更新はすべて
// 「全件読み出し→メモリ上で変更→キー削除→残りを書き戻し」であり、
// 競合時はlast-writer-winsとなる（既知の弱整合性設計として維持する）。
package store

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// KV はリポジトリ層が必要とするストアプリミティブのインターフェース。
// getやLRangeでキーが存在しない場合はエラーではなく空値を返す。
type KV interface {
	// Get は文字列値を取得する。キーが存在しない場合は空文字列を返す。
	Get(ctx context.Context, key string) (string, error)
	// Set は文字列値を設定する。
	Set(ctx context.Context, key, value string) error
	// LPush はリストの先頭に値を挿入する（最新が先頭）。
	LPush(ctx context.Context, key string, values ...string) error
	// RPush はリストの末尾に値を追加する（リスト書き戻し用）。
	RPush(ctx context.Context, key string, values ...string) error
	// LRange はリストの[start, stop]範囲を返す。stop=-1で末尾まで。
	LRange(ctx context.Context, key string, start, stop int64) ([]string, error)
	// LLen はリストの長さを返す。キーが存在しない場合は0。
	LLen(ctx context.Context, key string) (int64, error)
	// Del はキーを削除する。存在しないキーは無視される。
	Del(ctx context.Context, keys ...string) error
	// Keys はパターンに一致するキーの一覧を返す。
	Keys(ctx context.Context, pattern string) ([]string, error)
}

// RedisKV はgo-redisを使用したKVの実装。
type RedisKV struct {
	client *redis.Client
}

// NewRedisKV はRedisへ接続し、疎通確認済みのRedisKVを返す。
// rawURLは redis://host:port/db 形式。passwordが指定された場合は
// URL側の設定を上書きする（認証必須環境向けのフォールバック）。
func NewRedisKV(rawURL, password string) (*RedisKV, error) {
	opts, err := redis.ParseURL(rawURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis url: %w", err)
	}
	if password != "" {
		opts.Password = password
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return &RedisKV{client: client}, nil
}

// Close は接続を閉じる。
func (k *RedisKV) Close() error {
	return k.client.Close()
}

// Ping はストアへの疎通を確認する。ヘルスチェックで使用する。
func (k *RedisKV) Ping(ctx context.Context) error {
	return k.client.Ping(ctx).Err()
}

// Get は文字列値を取得する。キーが存在しない場合は空文字列を返す。
func (k *RedisKV) Get(ctx context.Context, key string) (string, error) {
	v, err := k.client.Get(ctx, key).Result()
	if err == redis.Nil {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to get %s: %w", key, err)
	}
	return v, nil
}

// Set は文字列値を設定する。
func (k *RedisKV) Set(ctx context.Context, key, value string) error {
	if err := k.client.Set(ctx, key, value, 0).Err(); err != nil {
		return fmt.Errorf("failed to set %s: %w", key, err)
	}
	return nil
}

// LPush はリストの先頭に値を挿入する。
func (k *RedisKV) LPush(ctx context.Context, key string, values ...string) error {
	args := make([]interface{}, len(values))
	for i, v := range values {
		args[i] = v
	}
	if err := k.client.LPush(ctx, key, args...).Err(); err != nil {
		return fmt.Errorf("failed to lpush %s: %w", key, err)
	}
	return nil
}

// RPush はリストの末尾に値を追加する。
func (k *RedisKV) RPush(ctx context.Context, key string, values ...string) error {
	args := make([]interface{}, len(values))
	for i, v := range values {
		args[i] = v
	}
	if err := k.client.RPush(ctx, key, args...).Err(); err != nil {
		return fmt.Errorf("failed to rpush %s: %w", key, err)
	}
	return nil
}

// LRange はリストの範囲を返す。キーが存在しない場合は空スライスを返す。
func (k *RedisKV) LRange(ctx context.Context, key string, start, stop int64) ([]string, error) {
	vs, err := k.client.LRange(ctx, key, start, stop).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to lrange %s: %w", key, err)
	}
	return vs, nil
}

// LLen はリストの長さを返す。
func (k *RedisKV) LLen(ctx context.Context, key string) (int64, error) {
	n, err := k.client.LLen(ctx, key).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to llen %s: %w", key, err)
	}
	return n, nil
}

// Del はキーを削除する。
func (k *RedisKV) Del(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	if err := k.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("failed to del %v: %w", keys, err)
	}
	return nil
}

// Keys はパターンに一致するキーの一覧を返す。
// データセットが小さい前提のフルスキャンであり、スケーラビリティは非目標。
func (k *RedisKV) Keys(ctx context.Context, pattern string) ([]string, error) {
	ks, err := k.client.Keys(ctx, pattern).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to keys %s: %w", pattern, err)
	}
	return ks, nil
}
