package redisdb

import (
	"context"
	"errors"
	"time"

	"github.com/bsm/redislock"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// Connect はRedisにつないでPingする。attempts回まで待って再試行。
func Connect(ctx context.Context, addr string, password string, db int, attempts int, logger *logrus.Logger) (*redis.Client, error) {
	if attempts < 1 {
		attempts = 1
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		rdb := redis.NewClient(&redis.Options{
			Addr:     addr,
			Password: password,
			DB:       db,
			PoolSize: 100,
		})
		if err := rdb.Ping(ctx).Err(); err == nil {
			logger.WithFields(logrus.Fields{"addr": addr, "attempt": attempt}).Info("connected to redis")
			return rdb, nil
		} else {
			lastErr = err
			_ = rdb.Close()
		}

		if attempt == attempts {
			break
		}
		sleep := time.Second * time.Duration(1<<min(attempt, 5))
		logger.WithFields(logrus.Fields{"addr": addr, "attempt": attempt}).
			WithError(lastErr).
			Warnf("failed to connect redis; retrying in %s", sleep)

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(sleep):
		}
	}
	return nil, lastErr
}

// redislockで定期処理のリーダーを決める。
// 取れたロックは解放せずTTLで切れるのを待つ（同じ間隔内で他が実行しないように）。
type Locker struct {
	client *redislock.Client
}

func NewLocker(rdb *redis.Client) *Locker {
	return &Locker{client: redislock.New(rdb)}
}

func (l *Locker) Obtain(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	_, err := l.client.Obtain(ctx, "lock:"+key, ttl, nil)
	if errors.Is(err, redislock.ErrNotObtained) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}
