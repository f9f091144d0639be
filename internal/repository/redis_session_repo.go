package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

const redisSessionKeyPrefix = "agriguard:session:"

// RedisSessionRepo はRedisを使用したセッションスロットストア。
// キーに有効期限は設定しない。
type RedisSessionRepo struct {
	client redis.UniversalClient
}

// NewRedisSessionRepo はRedisSessionRepoを生成する。
func NewRedisSessionRepo(client redis.UniversalClient) *RedisSessionRepo {
	return &RedisSessionRepo{client: client}
}

func redisSessionKey(clientID string) string {
	return redisSessionKeyPrefix + clientID
}

// Get は指定クライアントのスロットの値を取得する。存在しない場合はnilを返す。
func (r *RedisSessionRepo) Get(ctx context.Context, clientID string) ([]byte, error) {
	data, err := r.client.Get(ctx, redisSessionKey(clientID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get session slot: %w", err)
	}
	return data, nil
}

// Set はスロットの値を上書きする。
func (r *RedisSessionRepo) Set(ctx context.Context, clientID string, data []byte) error {
	if err := r.client.Set(ctx, redisSessionKey(clientID), data, 0).Err(); err != nil {
		return fmt.Errorf("failed to set session slot: %w", err)
	}
	return nil
}

// Clear はスロットを削除する。
func (r *RedisSessionRepo) Clear(ctx context.Context, clientID string) error {
	if err := r.client.Del(ctx, redisSessionKey(clientID)).Err(); err != nil {
		return fmt.Errorf("failed to clear session slot: %w", err)
	}
	return nil
}

// compile-time interface check
var _ SessionSlotStore = (*RedisSessionRepo)(nil)
