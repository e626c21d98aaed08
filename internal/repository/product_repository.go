package repository

import (
	"context"
	"errors"

	"ecinventory/internal/domain/model"
)

var (
	ErrNotFound = errors.New("not found")

	// 同時更新・ロック待ち失敗・一意制約違反など。再試行してよい。
	ErrConflict = errors.New("conflict")
)

// 商品の永続化を約束。stockを書くのはUpdateStockだけ。
type ProductRepository interface {
	FindByID(ctx context.Context, id int64) (model.Product, error)

	// トランザクション内で行ロックを取って読む（SELECT ... FOR UPDATE）
	LockByID(ctx context.Context, id int64) (model.Product, error)

	Create(ctx context.Context, p model.Product) (model.Product, error)

	// 在庫台帳からのみ呼ぶ
	UpdateStock(ctx context.Context, id int64, newStock int64) error

	// stock <= 閾値 の商品（在庫少ない順）
	ListAtOrBelowThreshold(ctx context.Context, defaultThreshold int64) ([]model.Product, error)
}
