package cache

import (
	"context"
	"crypto/tls"
	"fmt"
	"time"

	"github.com/Dosada05/trivia-duel/config"
	"github.com/redis/go-redis/v9"
)

// NewClient opens a Redis client and pings it within timeout.
func NewClient(cfg config.RedisConfig, timeout time.Duration) (*redis.Client, error) {
	var tlsConf *tls.Config
	if cfg.TLS {
		tlsConf = &tls.Config{MinVersion: tls.VersionTLS12}
	}
	client := redis.NewClient(&redis.Options{
		Addr:      cfg.Addr,
		Password:  cfg.Password,
		DB:        cfg.DB,
		TLSConfig: tlsConf,
	})

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to ping redis at %s within %v: %w", cfg.Addr, timeout, err)
	}
	return client, nil
}
