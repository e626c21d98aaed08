package usecase

import (
	"context"
	"errors"
	"strings"

	"ecinventory/internal/domain/model"
	repo "ecinventory/internal/repository"
)

type ProductUsecase struct {
	productRepo repo.ProductRepository
}

// DI
func NewProductUsecase(productRepo repo.ProductRepository) *ProductUsecase {
	return &ProductUsecase{productRepo: productRepo}
}

type AdminCreateProductInput struct {
	Name              string
	Description       string
	InitialStock      int64
	LowStockThreshold int64
}

// 商品の作成。初期在庫はここでだけ設定でき、以後は台帳経由。
func (u *ProductUsecase) AdminCreateProduct(ctx context.Context, in AdminCreateProductInput) (model.Product, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return model.Product{}, NewError(KindInvalidInput, "name required", nil)
	}
	if len(name) > 255 {
		return model.Product{}, NewError(KindInvalidInput, "name too long", nil)
	}
	if in.InitialStock < 0 {
		return model.Product{}, NewError(KindInvalidQuantity, "stock must be >= 0", nil)
	}
	if in.LowStockThreshold < 0 {
		return model.Product{}, NewError(KindInvalidInput, "lowStockThreshold must be >= 0", nil)
	}

	p, err := u.productRepo.Create(ctx, model.Product{
		Name:              name,
		Description:       in.Description,
		Stock:             in.InitialStock,
		LowStockThreshold: in.LowStockThreshold,
	})
	if err != nil {
		return model.Product{}, classify(err)
	}
	return p, nil
}

func (u *ProductUsecase) GetProduct(ctx context.Context, productID int64) (model.Product, error) {
	if productID <= 0 {
		return model.Product{}, NewError(KindProductNotFound, "product not found", nil)
	}

	p, err := u.productRepo.FindByID(ctx, productID)
	if errors.Is(err, repo.ErrNotFound) {
		return model.Product{}, NewError(KindProductNotFound, "product not found", nil)
	}
	if err != nil {
		return model.Product{}, classify(err)
	}
	return p, nil
}
