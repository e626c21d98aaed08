package model

import "time"

// 在庫の増減の種類
type StockTransactionType string

const (
	//入荷など
	StockTransactionAdd StockTransactionType = "add"
	//破損・出荷など
	StockTransactionRemove StockTransactionType = "remove"
)

func (t StockTransactionType) Valid() bool {
	return t == StockTransactionAdd || t == StockTransactionRemove
}

// 管理画面で候補として出す理由。強制はしない。
var SuggestedReasons = []string{
	"shipment",
	"restock",
	"return",
	"sale",
	"damage",
	"expired",
	"theft",
	"correction",
}

// 在庫台帳の1行。作成後は更新も削除もしない（append-only）。
type StockTransaction struct {
	ID        int64                `gorm:"primaryKey;autoIncrement" json:"id"`
	ProductID int64                `gorm:"not null;index" json:"productId"`
	Type      StockTransactionType `gorm:"type:varchar(16);not null;index" json:"type"`
	Quantity  int64                `gorm:"not null" json:"quantity"`

	//変更前後のスナップショット
	PreviousStock int64 `gorm:"not null" json:"previousStock"`
	NewStock      int64 `gorm:"not null" json:"newStock"`

	Reason      string `gorm:"type:varchar(255);not null" json:"reason"`
	Notes       string `gorm:"type:text" json:"notes,omitempty"`
	PerformedBy *int64 `gorm:"index" json:"performedBy,omitempty"`

	//同じキーの再送は同じ結果を返す
	IdempotencyKey *string `gorm:"type:varchar(255);uniqueIndex" json:"-"`

	CreatedAt time.Time `gorm:"not null;index" json:"createdAt"`
}

func (StockTransaction) TableName() string { return "stock_transactions" }

// 増減を符号付きで返す
func (t StockTransaction) Delta() int64 {
	if t.Type == StockTransactionRemove {
		return -t.Quantity
	}
	return t.Quantity
}
