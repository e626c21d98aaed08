package events

import (
	"context"
	"encoding/json"
	"fmt"

	"ecinventory/internal/domain/model"

	"github.com/redis/go-redis/v9"
)

const (
	StockChangedChannel = "inventory:stock-changed"
	StockAlertChannel   = "inventory:stock-alerts"
)

// Redis pub/sub へJSONで流す（ダッシュボードや別サービス向け）
type RedisPublisher struct {
	rdb *redis.Client
}

func NewRedisPublisher(rdb *redis.Client) *RedisPublisher {
	return &RedisPublisher{rdb: rdb}
}

func (p *RedisPublisher) Publish(ctx context.Context, ev model.StockChanged) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	if err := p.rdb.Publish(ctx, StockChangedChannel, payload).Err(); err != nil {
		return fmt.Errorf("redis publish stock changed: %w", err)
	}
	return nil
}

func (p *RedisPublisher) Notify(ctx context.Context, alerts []model.StockAlert) error {
	payload, err := json.Marshal(alerts)
	if err != nil {
		return err
	}
	if err := p.rdb.Publish(ctx, StockAlertChannel, payload).Err(); err != nil {
		return fmt.Errorf("redis publish stock alerts: %w", err)
	}
	return nil
}
