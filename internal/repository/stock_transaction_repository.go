package repository

import (
	"context"
	"time"

	"ecinventory/internal/domain/model"
)

// 台帳の絞り込み条件。nilは条件なし。From/Toは両端を含む。
type StockTransactionFilter struct {
	ProductID *int64
	Type      *model.StockTransactionType
	From      *time.Time
	To        *time.Time
}

type StockTransactionListQuery struct {
	StockTransactionFilter
	Page  int
	Limit int
}

// 在庫台帳。追加と参照だけでUpdate/Deleteは無い。
type StockTransactionRepository interface {
	Create(ctx context.Context, t model.StockTransaction) (model.StockTransaction, error)

	FindByIdempotencyKey(ctx context.Context, key string) (model.StockTransaction, bool, error)

	// 新しい順
	ListByProductID(ctx context.Context, productID int64) ([]model.StockTransaction, error)

	// 新しい順＋件数
	List(ctx context.Context, q StockTransactionListQuery) ([]model.StockTransaction, int64, error)

	SumQuantity(ctx context.Context, f StockTransactionFilter) (int64, error)
	Count(ctx context.Context, f StockTransactionFilter) (int64, error)
}
