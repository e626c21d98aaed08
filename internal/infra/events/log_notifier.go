package events

import (
	"context"

	"ecinventory/internal/domain/model"

	"github.com/sirupsen/logrus"
)

// アラートをログに出すだけの通知先
type LogNotifier struct {
	logger *logrus.Logger
}

func NewLogNotifier(logger *logrus.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

func (n *LogNotifier) Notify(_ context.Context, alerts []model.StockAlert) error {
	for _, a := range alerts {
		n.logger.WithFields(logrus.Fields{
			"product_id": a.ProductID,
			"name":       a.Name,
			"stock":      a.Stock,
			"threshold":  a.Threshold,
			"level":      a.Level,
		}).Warn("stock alert")
	}
	return nil
}
