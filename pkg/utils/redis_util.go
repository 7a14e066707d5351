package utils

import (
	"context"
	"fmt"

	"fanzone/internal/config"
	"fanzone/pkg/logger"

	"github.com/go-redis/redis/v8"
)

func InitializeRedis(ctx context.Context, cfg config.RedisConfig, log logger.Logger) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("failed to connect to Redis at %s: %w", cfg.Address, err)
	}

	log.Info("Connected to Redis", "address", cfg.Address)
	return rdb, nil
}
