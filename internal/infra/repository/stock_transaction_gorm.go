package repository

import (
	"context"
	"errors"

	"ecinventory/internal/domain/model"
	repo "ecinventory/internal/repository"

	"gorm.io/gorm"
)

type StockTransactionGormRepository struct {
	db *gorm.DB
}

func NewStockTransactionGormRepository(db *gorm.DB) *StockTransactionGormRepository {
	return &StockTransactionGormRepository{db: db}
}

// 台帳に1行追加（IDはDBが採番）
func (r *StockTransactionGormRepository) Create(ctx context.Context, t model.StockTransaction) (model.StockTransaction, error) {
	if err := r.db.WithContext(ctx).Create(&t).Error; err != nil {
		return model.StockTransaction{}, wrap(err, "create stock transaction")
	}
	return t, nil
}

func (r *StockTransactionGormRepository) FindByIdempotencyKey(ctx context.Context, key string) (model.StockTransaction, bool, error) {
	var t model.StockTransaction
	err := r.db.WithContext(ctx).Where("idempotency_key = ?", key).First(&t).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return model.StockTransaction{}, false, nil
	}
	if err != nil {
		return model.StockTransaction{}, false, wrap(err, "find stock transaction by idempotency key")
	}
	return t, true, nil
}

// 商品の履歴（新しい順）
func (r *StockTransactionGormRepository) ListByProductID(ctx context.Context, productID int64) ([]model.StockTransaction, error) {
	var items []model.StockTransaction
	err := r.db.WithContext(ctx).
		Where("product_id = ?", productID).
		Order("id desc").
		Find(&items).Error
	if err != nil {
		return nil, wrap(err, "list stock transactions by product")
	}
	return items, nil
}

func (r *StockTransactionGormRepository) List(ctx context.Context, q repo.StockTransactionListQuery) ([]model.StockTransaction, int64, error) {
	var (
		items []model.StockTransaction
		total int64
	)

	//total（件数）
	if err := r.scoped(ctx, q.StockTransactionFilter).Count(&total).Error; err != nil {
		return nil, 0, wrap(err, "count stock transactions")
	}

	offset := (q.Page - 1) * q.Limit
	err := r.scoped(ctx, q.StockTransactionFilter).
		Order("id desc").
		Offset(offset).
		Limit(q.Limit).
		Find(&items).Error
	if err != nil {
		return nil, 0, wrap(err, "list stock transactions")
	}
	return items, total, nil
}

func (r *StockTransactionGormRepository) SumQuantity(ctx context.Context, f repo.StockTransactionFilter) (int64, error) {
	var total int64
	err := r.scoped(ctx, f).
		Select("COALESCE(SUM(quantity), 0)").
		Scan(&total).Error
	if err != nil {
		return 0, wrap(err, "sum stock transactions")
	}
	return total, nil
}

func (r *StockTransactionGormRepository) Count(ctx context.Context, f repo.StockTransactionFilter) (int64, error) {
	var total int64
	if err := r.scoped(ctx, f).Count(&total).Error; err != nil {
		return 0, wrap(err, "count stock transactions")
	}
	return total, nil
}

func (r *StockTransactionGormRepository) scoped(ctx context.Context, f repo.StockTransactionFilter) *gorm.DB {
	tx := r.db.WithContext(ctx).Model(&model.StockTransaction{})

	if f.ProductID != nil {
		tx = tx.Where("product_id = ?", *f.ProductID)
	}
	if f.Type != nil {
		tx = tx.Where("type = ?", *f.Type)
	}
	if f.From != nil {
		tx = tx.Where("created_at >= ?", f.From.UTC())
	}
	if f.To != nil {
		tx = tx.Where("created_at <= ?", f.To.UTC())
	}
	return tx
}

var _ repo.StockTransactionRepository = (*StockTransactionGormRepository)(nil)
