package model

import "time"

// コミット後に外へ流す在庫変更イベント
type StockChanged struct {
	EventID       string               `json:"eventId"`
	TransactionID int64                `json:"transactionId"`
	ProductID     int64                `json:"productId"`
	Type          StockTransactionType `json:"type"`
	Quantity      int64                `json:"quantity"`
	PreviousStock int64                `json:"previousStock"`
	NewStock      int64                `json:"newStock"`
	OccurredAt    time.Time            `json:"occurredAt"`
}

func NewStockChanged(eventID string, t StockTransaction) StockChanged {
	return StockChanged{
		EventID:       eventID,
		TransactionID: t.ID,
		ProductID:     t.ProductID,
		Type:          t.Type,
		Quantity:      t.Quantity,
		PreviousStock: t.PreviousStock,
		NewStock:      t.NewStock,
		OccurredAt:    t.CreatedAt,
	}
}
