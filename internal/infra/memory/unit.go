package memory

import (
	"context"

	"ecinventory/internal/domain/model"
)

// WithinTx 1回分の未コミットの変更と、取った商品ロック
type unit struct {
	s *Store

	held  map[int64]bool
	order []int64

	stock    map[int64]int64
	products []model.Product
	txs      []model.StockTransaction
}

func newUnit(s *Store) *unit {
	return &unit{
		s:     s,
		held:  map[int64]bool{},
		stock: map[int64]int64{},
	}
}

func (u *unit) lock(ctx context.Context, id int64) error {
	if u.held[id] {
		return nil
	}
	if err := u.s.acquire(ctx, id); err != nil {
		return err
	}
	u.held[id] = true
	u.order = append(u.order, id)
	return nil
}

func (u *unit) release() {
	for i := len(u.order) - 1; i >= 0; i-- {
		u.s.releaseLock(u.order[i])
	}
	u.order = nil
	u.held = map[int64]bool{}
}

func (u *unit) created(id int64) bool {
	for _, p := range u.products {
		if p.ID == id {
			return true
		}
	}
	return false
}

func (u *unit) createdProduct(id int64) (model.Product, bool) {
	for _, p := range u.products {
		if p.ID == id {
			return p, true
		}
	}
	return model.Product{}, false
}
