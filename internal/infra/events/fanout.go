package events

import (
	"context"
	"errors"

	"ecinventory/internal/domain/model"
	"ecinventory/internal/usecase"
)

// 複数の送信先へ順に送る。失敗してもほかへは送る。
type Fanout []usecase.StockEventPublisher

func (f Fanout) Publish(ctx context.Context, ev model.StockChanged) error {
	var errs []error
	for _, p := range f {
		if p == nil {
			continue
		}
		if err := p.Publish(ctx, ev); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// アラート通知も同じく
type NotifierFanout []usecase.AlertNotifier

func (f NotifierFanout) Notify(ctx context.Context, alerts []model.StockAlert) error {
	var errs []error
	for _, n := range f {
		if n == nil {
			continue
		}
		if err := n.Notify(ctx, alerts); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
