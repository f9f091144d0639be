package database

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisOptions はRedis接続の設定。
type RedisOptions struct {
	URL      string
	Password string
	DB       int
}

// OpenRedis はRedisクライアントを生成し、疎通確認を行う。
// Password、DBが指定された場合はURLの値より優先する。
func OpenRedis(ctx context.Context, opts RedisOptions) (*redis.Client, error) {
	parsed, err := redis.ParseURL(opts.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis url: %w", err)
	}
	if opts.Password != "" {
		parsed.Password = opts.Password
	}
	if opts.DB != 0 {
		parsed.DB = opts.DB
	}

	client := redis.NewClient(parsed)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return client, nil
}
