package db

import (
	"context"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/offerhub/offerhub-backend/internal/platform/envutil"
	"github.com/offerhub/offerhub-backend/internal/platform/logger"
)

func NewRedisClient(log *logger.Logger) (*goredis.Client, error) {
	addr := envutil.String("REDIS_ADDR", "localhost:6379")
	password := envutil.String("REDIS_PASSWORD", "")
	dbNum := envutil.Int("REDIS_DB", 0)

	rdb := goredis.NewClient(&goredis.Options{
		Addr:     addr,
		Password: password,
		DB:       dbNum,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		log.Error("Failed to connect to Redis", "addr", addr, "error", err)
		return nil, fmt.Errorf("connect redis: %w", err)
	}
	log.Info("Connected to Redis", "addr", addr)
	return rdb, nil
}
