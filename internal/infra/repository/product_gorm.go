package repository

import (
	"context"

	"ecinventory/internal/domain/model"
	repo "ecinventory/internal/repository"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type ProductGormRepository struct {
	db *gorm.DB
}

// DI
func NewProductGormRepository(db *gorm.DB) *ProductGormRepository {
	return &ProductGormRepository{db: db}
}

// IDで商品を取得
func (r *ProductGormRepository) FindByID(ctx context.Context, id int64) (model.Product, error) {
	var p model.Product
	if err := r.db.WithContext(ctx).First(&p, id).Error; err != nil {
		return model.Product{}, wrap(err, "find product")
	}
	return p, nil
}

// 行ロック付きで取得（トランザクション内で使う）
func (r *ProductGormRepository) LockByID(ctx context.Context, id int64) (model.Product, error) {
	var p model.Product
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&p, id).Error
	if err != nil {
		return model.Product{}, wrap(err, "lock product")
	}
	return p, nil
}

// 商品の作成
func (r *ProductGormRepository) Create(ctx context.Context, p model.Product) (model.Product, error) {
	if err := r.db.WithContext(ctx).Create(&p).Error; err != nil {
		return model.Product{}, wrap(err, "create product")
	}
	return p, nil
}

// 在庫の現在値を設定
func (r *ProductGormRepository) UpdateStock(ctx context.Context, id int64, newStock int64) error {
	res := r.db.WithContext(ctx).
		Model(&model.Product{}).
		Where("id = ?", id).
		Update("stock", newStock)

	if res.Error != nil {
		return wrap(res.Error, "update stock")
	}
	if res.RowsAffected == 0 {
		return repo.ErrNotFound
	}
	return nil
}

// 閾値以下（商品ごとの閾値が0ならdefault）
func (r *ProductGormRepository) ListAtOrBelowThreshold(ctx context.Context, defaultThreshold int64) ([]model.Product, error) {
	var products []model.Product
	err := r.db.WithContext(ctx).
		Where("stock <= CASE WHEN low_stock_threshold > 0 THEN low_stock_threshold ELSE ? END", defaultThreshold).
		Order("stock asc").
		Order("id asc").
		Find(&products).Error
	if err != nil {
		return nil, wrap(err, "list low stock products")
	}
	return products, nil
}

var _ repo.ProductRepository = (*ProductGormRepository)(nil)
