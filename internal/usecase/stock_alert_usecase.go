package usecase

import (
	"context"
	"errors"
	"time"

	"ecinventory/internal/domain/model"
	repo "ecinventory/internal/repository"

	"github.com/sirupsen/logrus"
)

const sweepLockKey = "stock-alert:sweep"

// 在庫アラートの評価。products を読むだけ。
type StockAlertUsecase struct {
	products         repo.ProductRepository
	notifier         AlertNotifier
	locker           Locker
	defaultThreshold int64
	logger           *logrus.Logger
}

// DI。lockerはnilでよい（単一インスタンス）
func NewStockAlertUsecase(
	products repo.ProductRepository,
	notifier AlertNotifier,
	locker Locker,
	defaultThreshold int64,
	logger *logrus.Logger,
) *StockAlertUsecase {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &StockAlertUsecase{
		products:         products,
		notifier:         notifier,
		locker:           locker,
		defaultThreshold: defaultThreshold,
		logger:           logger,
	}
}

// 閾値以下の商品すべて
func (u *StockAlertUsecase) Evaluate(ctx context.Context) ([]model.StockAlert, error) {
	products, err := u.products.ListAtOrBelowThreshold(ctx, u.defaultThreshold)
	if err != nil {
		return nil, classify(err)
	}

	alerts := make([]model.StockAlert, 0, len(products))
	for _, p := range products {
		if a, ok := model.AlertFor(p, u.defaultThreshold); ok {
			alerts = append(alerts, a)
		}
	}
	return alerts, nil
}

// 1商品だけ評価
func (u *StockAlertUsecase) EvaluateProduct(ctx context.Context, productID int64) (model.StockAlert, bool, error) {
	p, err := u.products.FindByID(ctx, productID)
	if errors.Is(err, repo.ErrNotFound) {
		return model.StockAlert{}, false, NewError(KindProductNotFound, "product not found", nil)
	}
	if err != nil {
		return model.StockAlert{}, false, classify(err)
	}

	a, ok := model.AlertFor(p, u.defaultThreshold)
	return a, ok, nil
}

// 評価して通知（ロックが取れなければ何もしない）
func (u *StockAlertUsecase) Sweep(ctx context.Context, lockTTL time.Duration) ([]model.StockAlert, error) {
	if u.locker != nil {
		ok, err := u.locker.Obtain(ctx, sweepLockKey, lockTTL)
		if err != nil {
			return nil, err
		}
		if !ok {
			u.logger.Debug("stock alert sweep skipped, lock held by another instance")
			return nil, nil
		}
	}

	alerts, err := u.Evaluate(ctx)
	if err != nil {
		return nil, err
	}
	if len(alerts) > 0 && u.notifier != nil {
		if err := u.notifier.Notify(ctx, alerts); err != nil {
			return alerts, err
		}
	}
	return alerts, nil
}

// 定期評価＋在庫変更イベントごとの評価。ctxが切れるまで回る。
func (u *StockAlertUsecase) Run(ctx context.Context, interval time.Duration, events <-chan model.StockChanged) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case <-ticker.C:
			if _, err := u.Sweep(ctx, interval); err != nil && ctx.Err() == nil {
				u.logger.WithError(err).Error("stock alert sweep")
			}

		case ev, ok := <-events:
			if !ok {
				events = nil
				continue
			}
			u.onStockChanged(ctx, ev)
		}
	}
}

func (u *StockAlertUsecase) onStockChanged(ctx context.Context, ev model.StockChanged) {
	//増えた場合は見なくてよい
	if ev.Type != model.StockTransactionRemove {
		return
	}

	a, ok, err := u.EvaluateProduct(ctx, ev.ProductID)
	if err != nil {
		u.logger.WithError(err).WithField("product_id", ev.ProductID).Error("evaluate stock alert")
		return
	}
	if !ok || u.notifier == nil {
		return
	}
	if err := u.notifier.Notify(ctx, []model.StockAlert{a}); err != nil {
		u.logger.WithError(err).WithField("product_id", ev.ProductID).Error("notify stock alert")
	}
}
