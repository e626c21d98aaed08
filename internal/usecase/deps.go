package usecase

import (
	"context"
	"time"

	"ecinventory/internal/domain/model"
)

// UUID 等のIDを作る約束
type IDGenerator interface {
	NewID() string
}

// 現在の時間
type Clock interface {
	Now() time.Time
}

// コミット後の在庫変更通知。台帳はこれに依存しない（送るだけ）。
type StockEventPublisher interface {
	Publish(ctx context.Context, ev model.StockChanged) error
}

// 在庫アラートの通知先
type AlertNotifier interface {
	Notify(ctx context.Context, alerts []model.StockAlert) error
}

// 複数インスタンスで定期処理を1台だけにするためのロック
type Locker interface {
	Obtain(ctx context.Context, key string, ttl time.Duration) (bool, error)
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now().UTC() }

// SystemClock はUTCの現在時刻を返す
var SystemClock Clock = systemClock{}

type noopPublisher struct{}

func (noopPublisher) Publish(context.Context, model.StockChanged) error { return nil }
